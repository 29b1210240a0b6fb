package models

import (
	"math"
	"time"
)

/*
LOAD → raw rows as read from a CSV file or a database, before validation.
*/

// RawOrder is an order row before the quality gate has parsed it.
type RawOrder struct {
	OrderID    string
	CustomerID string
	Timestamp  string
	Status     string
}

// RawPayment is a payment row before the quality gate has parsed it.
// Many payments may reference one order.
type RawPayment struct {
	OrderID string
	Value   string
}

/*
CLEAN → typed records produced by the quality gate. Immutable once produced;
a re-run replaces them wholesale.
*/

// Order is a validated order row.
type Order struct {
	OrderID    string
	CustomerID string
	Timestamp  time.Time
	Status     string
}

// Payment is a validated payment row. Outlier marks values beyond the
// configured z-score bound; outliers are flagged, never dropped.
type Payment struct {
	OrderID string
	Value   float64
	Outlier bool
}

// QualityReport counts everything the gate inspected, dropped and flagged,
// plus the viability verdict. Produced once per run, never mutated after.
type QualityReport struct {
	OrdersInspected   int
	PaymentsInspected int
	OrdersKept        int
	PaymentsKept      int
	Drops             map[string]int
	Flags             map[string]int
	JoinRatio         float64
	Passed            bool
}

// Dropped returns the total number of dropped rows across all reasons.
func (r *QualityReport) Dropped() int {
	total := 0
	for _, n := range r.Drops {
		total += n
	}
	return total
}

/*
COMPUTE → result records exported by the engines.
*/

// ResultMeta carries structured metadata returned alongside engine results.
// Fallbacks maps a measure name to the fallback applied (e.g. equal-width
// binning for a degenerate distribution). Never only logged.
type ResultMeta struct {
	Fallbacks map[string]string
	Warnings  []string
}

// Action is the recommended marketing action for a segment. Pure data,
// resolvable by segment name alone.
type Action struct {
	DiscountPct int
	Channel     string
	Note        string
}

// RFMRecord scores one customer. Scores are quantile ranks within the
// current population, so they are relative, not absolute.
type RFMRecord struct {
	CustomerID  string
	RecencyDays int
	Frequency   int
	Monetary    float64
	RScore      int
	FScore      int
	MScore      int
	Segment     string
	Action      Action
}

// SegmentSummary aggregates one segment of the RFM result.
type SegmentSummary struct {
	Segment      string
	Customers    int
	CustomerPct  float64
	TotalRevenue float64
	RevenuePct   float64
	AvgMonetary  float64
}

// RFMResult is the full output of the RFM engine, sorted by customer ID.
type RFMResult struct {
	AsOf    time.Time
	Records []RFMRecord
	Summary []SegmentSummary
	Meta    ResultMeta
}

// CohortRecord is one cell of the retention matrix. Cells beyond the data
// horizon are absent, not zero.
type CohortRecord struct {
	CohortMonth   string // "MM/YYYY"
	PeriodIndex   int
	CohortSize    int
	Retained      int
	RetentionRate float64
	Revenue       float64
}

// TrendPoint averages retention per period index across the cohorts that
// have an observed value for that period.
type TrendPoint struct {
	PeriodIndex     int
	CohortsObserved int
	AvgRetention    float64
}

// CohortMetrics summarizes one acquisition cohort across its whole life.
type CohortMetrics struct {
	CohortMonth   string
	Customers     int
	Orders        int
	Revenue       float64
	AvgOrderValue float64
}

// CohortResult is the full output of the cohort engine.
type CohortResult struct {
	Records []CohortRecord
	Trend   []TrendPoint
	Metrics []CohortMetrics
	Meta    ResultMeta
}

// LTVRecord values one customer: realized spend to date plus a light
// frequency/monetary extrapolation over the forward horizon.
type LTVRecord struct {
	CustomerID      string
	Orders          int
	HistoricalValue float64
	AvgOrderValue   float64
	LifespanDays    int
	PredictedValue  float64
	Tier            string
}

// LTVResult is the full output of the LTV engine, sorted by customer ID.
type LTVResult struct {
	Records []LTVRecord
	Meta    ResultMeta
}

// CACSummary relates population lifetime value to an externally supplied
// acquisition cost. Pure arithmetic, no stored state.
type CACSummary struct {
	AvgLTV        float64
	MedianLTV     float64
	CAC           float64
	Ratio         float64
	ProfitablePct float64
}

// BusinessSummary merges the three engine outputs into one record.
type BusinessSummary struct {
	TopSegment             string
	TopSegmentRevenueShare float64
	AtRiskValue            float64
	WinBackOpportunity     float64
	AvgMonth1Retention     float64
	AvgLTV                 float64
	LTVCACRatio            float64
	Customers              int
}

// RoundMoney rounds half away from zero to cents. All monetary outputs go
// through this before export.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// Package export writes the result tables as flat CSV files. Column names
// and order are a compatibility contract with downstream consumers; change
// them only with a migration plan.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"customer-insights/pkg/models"
	"customer-insights/pkg/pipeline"
)

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func rate(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// WriteRFM emits: customer_id, recency_days, frequency, monetary, r_score,
// f_score, m_score, segment, action.
func WriteRFM(w io.Writer, res *models.RFMResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"customer_id", "recency_days", "frequency", "monetary", "r_score", "f_score", "m_score", "segment", "action"}); err != nil {
		return err
	}
	for _, r := range res.Records {
		err := cw.Write([]string{
			r.CustomerID,
			strconv.Itoa(r.RecencyDays),
			strconv.Itoa(r.Frequency),
			money(r.Monetary),
			strconv.Itoa(r.RScore),
			strconv.Itoa(r.FScore),
			strconv.Itoa(r.MScore),
			r.Segment,
			r.Action.Note,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSegmentSummary emits: segment, customers, customer_pct,
// total_revenue, revenue_pct, avg_monetary.
func WriteSegmentSummary(w io.Writer, res *models.RFMResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"segment", "customers", "customer_pct", "total_revenue", "revenue_pct", "avg_monetary"}); err != nil {
		return err
	}
	for _, s := range res.Summary {
		err := cw.Write([]string{
			s.Segment,
			strconv.Itoa(s.Customers),
			money(s.CustomerPct),
			money(s.TotalRevenue),
			money(s.RevenuePct),
			money(s.AvgMonetary),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCohort emits the triangular retention matrix: cohort_month,
// period_index, cohort_size, retained_customers, retention_rate, revenue.
// Absent cells are absent rows, never zero rows.
func WriteCohort(w io.Writer, res *models.CohortResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"cohort_month", "period_index", "cohort_size", "retained_customers", "retention_rate", "revenue"}); err != nil {
		return err
	}
	for _, r := range res.Records {
		err := cw.Write([]string{
			r.CohortMonth,
			strconv.Itoa(r.PeriodIndex),
			strconv.Itoa(r.CohortSize),
			strconv.Itoa(r.Retained),
			rate(r.RetentionRate),
			money(r.Revenue),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTrend emits: period_index, cohorts_observed, avg_retention_rate.
func WriteTrend(w io.Writer, res *models.CohortResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"period_index", "cohorts_observed", "avg_retention_rate"}); err != nil {
		return err
	}
	for _, p := range res.Trend {
		err := cw.Write([]string{
			strconv.Itoa(p.PeriodIndex),
			strconv.Itoa(p.CohortsObserved),
			rate(p.AvgRetention),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLTV emits: customer_id, orders, historical_value, avg_order_value,
// lifespan_days, predicted_value, tier.
func WriteLTV(w io.Writer, res *models.LTVResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"customer_id", "orders", "historical_value", "avg_order_value", "lifespan_days", "predicted_value", "tier"}); err != nil {
		return err
	}
	for _, r := range res.Records {
		err := cw.Write([]string{
			r.CustomerID,
			strconv.Itoa(r.Orders),
			money(r.HistoricalValue),
			money(r.AvgOrderValue),
			strconv.Itoa(r.LifespanDays),
			money(r.PredictedValue),
			r.Tier,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteInsights emits a single summary row.
func WriteInsights(w io.Writer, s *models.BusinessSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"top_segment", "top_segment_revenue_share", "at_risk_value", "win_back_opportunity", "avg_month1_retention", "avg_ltv", "ltv_cac_ratio", "customers"}); err != nil {
		return err
	}
	err := cw.Write([]string{
		s.TopSegment,
		money(s.TopSegmentRevenueShare),
		money(s.AtRiskValue),
		money(s.WinBackOpportunity),
		money(s.AvgMonth1Retention),
		money(s.AvgLTV),
		money(s.LTVCACRatio),
		strconv.Itoa(s.Customers),
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// TimestampedFilename builds "<dir>/<name>_<YYYYMMDD_HHMMSS>.csv".
func TimestampedFilename(dir, name string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.csv", name, now.Format("20060102_150405")))
}

// ExportAll writes every available result table of a run into dir with
// timestamped names, and returns the written paths. Tables missing from the
// run (a skipped engine) are skipped, not written empty.
func ExportAll(dir string, res *pipeline.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	now := time.Now()

	var written []string
	write := func(name string, fn func(io.Writer) error) error {
		path := TimestampedFilename(dir, name, now)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := fn(f); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if res.RFM != nil {
		if err := write("rfm", func(w io.Writer) error { return WriteRFM(w, res.RFM) }); err != nil {
			return written, err
		}
		if err := write("rfm_segment_summary", func(w io.Writer) error { return WriteSegmentSummary(w, res.RFM) }); err != nil {
			return written, err
		}
	}
	if res.Cohort != nil {
		if err := write("cohort_retention", func(w io.Writer) error { return WriteCohort(w, res.Cohort) }); err != nil {
			return written, err
		}
		if err := write("cohort_trend", func(w io.Writer) error { return WriteTrend(w, res.Cohort) }); err != nil {
			return written, err
		}
	}
	if res.LTV != nil {
		if err := write("ltv", func(w io.Writer) error { return WriteLTV(w, res.LTV) }); err != nil {
			return written, err
		}
	}
	if res.Summary != nil {
		if err := write("insights", func(w io.Writer) error { return WriteInsights(w, res.Summary) }); err != nil {
			return written, err
		}
	}
	return written, nil
}

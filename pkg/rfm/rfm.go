// Package rfm scores customers on recency, frequency and monetary value and
// assigns each to a segment of the fixed enumeration.
package rfm

import (
	"context"
	"sort"
	"time"

	"customer-insights/pkg/analyticserr"
	"customer-insights/pkg/bucket"
	"customer-insights/pkg/models"
)

type customerStats struct {
	lastOrder time.Time
	orders    int
	monetary  float64
}

// Compute returns one RFMRecord per distinct customer in the cleaned data,
// sorted by customer ID. Scores are quantile ranks within this population;
// degenerate distributions fall back to equal-width binning, recorded in the
// result metadata.
func Compute(ctx context.Context, orders []models.Order, payments []models.Payment, cfg models.Config) (*models.RFMResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, &analyticserr.InsufficientDataError{Engine: "rfm"}
	}

	asOf := cfg.AsOf
	if asOf.IsZero() {
		asOf = ResolveAsOf(orders)
	}

	orderByID := make(map[string]models.Order, len(orders))
	stats := make(map[string]*customerStats)
	for _, o := range orders {
		orderByID[o.OrderID] = o
		s := stats[o.CustomerID]
		if s == nil {
			s = &customerStats{}
			stats[o.CustomerID] = s
		}
		s.orders++
		if o.Timestamp.After(s.lastOrder) {
			s.lastOrder = o.Timestamp
		}
	}
	for _, p := range payments {
		o, ok := orderByID[p.OrderID]
		if !ok || cfg.StatusExcluded(o.Status) {
			continue
		}
		stats[o.CustomerID].monetary += p.Value
	}

	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	recency := make([]float64, len(ids))
	frequency := make([]float64, len(ids))
	monetary := make([]float64, len(ids))
	for i, id := range ids {
		s := stats[id]
		recency[i] = float64(int(asOf.Sub(s.lastOrder).Hours() / 24))
		frequency[i] = float64(s.orders)
		monetary[i] = s.monetary
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := models.ResultMeta{Fallbacks: map[string]string{}}
	rScores, rFell := bucket.Scores(recency, cfg.BucketCount, cfg.MinQuantilePopulation)
	rScores = bucket.Invert(rScores, cfg.BucketCount)
	fScores, fFell := bucket.Scores(frequency, cfg.BucketCount, cfg.MinQuantilePopulation)
	mScores, mFell := bucket.Scores(monetary, cfg.BucketCount, cfg.MinQuantilePopulation)
	if rFell {
		meta.Fallbacks["r_score"] = "equal_width"
	}
	if fFell {
		meta.Fallbacks["f_score"] = "equal_width"
	}
	if mFell {
		meta.Fallbacks["m_score"] = "equal_width"
	}

	records := make([]models.RFMRecord, len(ids))
	for i, id := range ids {
		segment := classify(rScores[i], fScores[i], mScores[i])
		records[i] = models.RFMRecord{
			CustomerID:  id,
			RecencyDays: int(recency[i]),
			Frequency:   int(frequency[i]),
			Monetary:    models.RoundMoney(monetary[i]),
			RScore:      rScores[i],
			FScore:      fScores[i],
			MScore:      mScores[i],
			Segment:     segment,
			Action:      actionFor(segment, cfg.Actions),
		}
	}

	return &models.RFMResult{
		AsOf:    asOf,
		Records: records,
		Summary: summarize(records),
		Meta:    meta,
	}, nil
}

// ResolveAsOf returns the default recency reference date for a dataset: the
// day after its newest order.
func ResolveAsOf(orders []models.Order) time.Time {
	var last time.Time
	for _, o := range orders {
		if o.Timestamp.After(last) {
			last = o.Timestamp
		}
	}
	return last.Add(24 * time.Hour)
}

// summarize aggregates the records per segment, ordered by the fixed
// segment enumeration so output is deterministic.
func summarize(records []models.RFMRecord) []models.SegmentSummary {
	byName := map[string]*models.SegmentSummary{}
	total := 0.0
	for _, r := range records {
		s := byName[r.Segment]
		if s == nil {
			s = &models.SegmentSummary{Segment: r.Segment}
			byName[r.Segment] = s
		}
		s.Customers++
		s.TotalRevenue += r.Monetary
		total += r.Monetary
	}

	out := make([]models.SegmentSummary, 0, len(byName))
	for _, name := range Segments {
		s, ok := byName[name]
		if !ok {
			continue
		}
		s.CustomerPct = models.RoundMoney(float64(s.Customers) / float64(len(records)) * 100)
		if total > 0 {
			s.RevenuePct = models.RoundMoney(s.TotalRevenue / total * 100)
		}
		s.AvgMonetary = models.RoundMoney(s.TotalRevenue / float64(s.Customers))
		s.TotalRevenue = models.RoundMoney(s.TotalRevenue)
		out = append(out, *s)
	}
	return out
}

// Package ltv estimates historical and predicted customer lifetime value and
// assigns each customer a value tier.
package ltv

import (
	"context"
	"sort"
	"time"

	"customer-insights/pkg/analyticserr"
	"customer-insights/pkg/bucket"
	"customer-insights/pkg/models"
)

// CustomerStats is the per-customer input to the prediction formula.
type CustomerStats struct {
	Orders        int
	Historical    float64
	AvgOrderValue float64
	FirstOrder    time.Time
	LastOrder     time.Time
	ActiveDays    int
}

// Estimator turns per-customer stats into a predicted value over the
// configured horizon. Swappable without touching callers.
type Estimator func(s CustomerStats, cfg models.Config) float64

// RateExtrapolation is the default estimator: purchase rate (orders per
// active day) times average order value times the forward horizon. A
// deliberate simplification, not a churn model.
func RateExtrapolation(s CustomerStats, cfg models.Config) float64 {
	if s.ActiveDays <= 0 || s.Orders == 0 {
		return 0
	}
	rate := float64(s.Orders) / float64(s.ActiveDays)
	return rate * s.AvgOrderValue * float64(cfg.HorizonDays)
}

var tierNames = []string{"Low", "Medium", "High", "VIP"}

// Compute returns one LTVRecord per customer using the default estimator.
func Compute(ctx context.Context, orders []models.Order, payments []models.Payment, cfg models.Config) (*models.LTVResult, error) {
	return ComputeWith(ctx, orders, payments, cfg, RateExtrapolation)
}

// ComputeWith runs the engine with a caller-supplied prediction formula.
func ComputeWith(ctx context.Context, orders []models.Order, payments []models.Payment, cfg models.Config, estimate Estimator) (*models.LTVResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, &analyticserr.InsufficientDataError{Engine: "ltv"}
	}

	asOf := cfg.AsOf
	if asOf.IsZero() {
		var last time.Time
		for _, o := range orders {
			if o.Timestamp.After(last) {
				last = o.Timestamp
			}
		}
		asOf = last.Add(24 * time.Hour)
	}

	type acc struct {
		counted    int
		historical float64
		first      time.Time
		last       time.Time
	}
	orderByID := make(map[string]models.Order, len(orders))
	byCustomer := make(map[string]*acc)
	for _, o := range orders {
		orderByID[o.OrderID] = o
		a := byCustomer[o.CustomerID]
		if a == nil {
			a = &acc{first: o.Timestamp, last: o.Timestamp}
			byCustomer[o.CustomerID] = a
		}
		if o.Timestamp.Before(a.first) {
			a.first = o.Timestamp
		}
		if o.Timestamp.After(a.last) {
			a.last = o.Timestamp
		}
		if !cfg.StatusExcluded(o.Status) {
			a.counted++
		}
	}
	for _, p := range payments {
		o, ok := orderByID[p.OrderID]
		if !ok || cfg.StatusExcluded(o.Status) {
			continue
		}
		byCustomer[o.CustomerID].historical += p.Value
	}

	ids := make([]string, 0, len(byCustomer))
	for id := range byCustomer {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]models.LTVRecord, len(ids))
	predicted := make([]float64, len(ids))
	for i, id := range ids {
		a := byCustomer[id]
		stats := CustomerStats{
			Orders:     a.counted,
			Historical: a.historical,
			FirstOrder: a.first,
			LastOrder:  a.last,
		}
		if a.counted > 0 {
			stats.AvgOrderValue = a.historical / float64(a.counted)
		}
		stats.ActiveDays = int(asOf.Sub(a.first).Hours() / 24)
		if stats.ActiveDays < 1 {
			stats.ActiveDays = 1
		}
		predicted[i] = estimate(stats, cfg)

		records[i] = models.LTVRecord{
			CustomerID:      id,
			Orders:          a.counted,
			HistoricalValue: models.RoundMoney(a.historical),
			AvgOrderValue:   models.RoundMoney(stats.AvgOrderValue),
			LifespanDays:    int(a.last.Sub(a.first).Hours()/24) + 1,
			PredictedValue:  models.RoundMoney(predicted[i]),
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := models.ResultMeta{Fallbacks: map[string]string{}}
	tiers, fell := bucket.Scores(predicted, len(tierNames), cfg.MinQuantilePopulation)
	if fell {
		meta.Fallbacks["tier"] = "equal_width"
	}
	for i := range records {
		records[i].Tier = tierNames[tiers[i]-1]
	}

	return &models.LTVResult{Records: records, Meta: meta}, nil
}

// CACRatio relates the population's lifetime value to an externally supplied
// acquisition cost. Pure arithmetic over the result records.
func CACRatio(result *models.LTVResult, cac float64) models.CACSummary {
	n := len(result.Records)
	if n == 0 || cac <= 0 {
		return models.CACSummary{CAC: cac}
	}

	values := make([]float64, n)
	total := 0.0
	profitable := 0
	for i, r := range result.Records {
		values[i] = r.HistoricalValue
		total += r.HistoricalValue
		if r.HistoricalValue > cac {
			profitable++
		}
	}
	sort.Float64s(values)

	median := values[n/2]
	if n%2 == 0 {
		median = (values[n/2-1] + values[n/2]) / 2
	}
	avg := total / float64(n)

	return models.CACSummary{
		AvgLTV:        models.RoundMoney(avg),
		MedianLTV:     models.RoundMoney(median),
		CAC:           cac,
		Ratio:         models.RoundMoney(avg / cac),
		ProfitablePct: models.RoundMoney(float64(profitable) / float64(n) * 100),
	}
}

// Package cohort groups customers by acquisition month and builds the
// retention matrix. The matrix is triangular: cells beyond the observed data
// horizon are absent, not zero.
package cohort

import (
	"context"
	"fmt"
	"sort"
	"time"

	"customer-insights/pkg/analyticserr"
	"customer-insights/pkg/models"
)

type cellKey struct {
	cohort int // month index of the acquisition month
	period int // months since acquisition
}

// Compute builds the retention matrix, the per-period trend line and the
// per-cohort metrics from cleaned order and payment data.
func Compute(ctx context.Context, orders []models.Order, payments []models.Payment, cfg models.Config) (*models.CohortResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, &analyticserr.InsufficientDataError{Engine: "cohort"}
	}

	// Acquisition month per customer.
	firstMonth := make(map[string]int)
	for _, o := range orders {
		m := monthIndex(o.Timestamp)
		if cur, ok := firstMonth[o.CustomerID]; !ok || m < cur {
			firstMonth[o.CustomerID] = m
		}
	}

	// Distinct active customers and revenue per (cohort, period) cell.
	active := make(map[cellKey]map[string]bool)
	revenue := make(map[cellKey]float64)
	orderCell := make(map[string]cellKey, len(orders))
	orderStatus := make(map[string]string, len(orders))
	cohortOrders := make(map[int]int)
	for _, o := range orders {
		key := cellKey{cohort: firstMonth[o.CustomerID], period: monthIndex(o.Timestamp) - firstMonth[o.CustomerID]}
		if active[key] == nil {
			active[key] = map[string]bool{}
		}
		active[key][o.CustomerID] = true
		orderCell[o.OrderID] = key
		orderStatus[o.OrderID] = o.Status
		cohortOrders[key.cohort]++
	}
	for _, p := range payments {
		key, ok := orderCell[p.OrderID]
		if !ok || cfg.StatusExcluded(orderStatus[p.OrderID]) {
			continue
		}
		revenue[key] += p.Value
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Cohort size is the distinct customer count at period 0; every
	// customer is active in their own acquisition month by construction.
	size := make(map[int]int)
	for key, customers := range active {
		if key.period == 0 {
			size[key.cohort] = len(customers)
		}
	}

	keys := make([]cellKey, 0, len(active))
	for key := range active {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].cohort != keys[j].cohort {
			return keys[i].cohort < keys[j].cohort
		}
		return keys[i].period < keys[j].period
	})

	records := make([]models.CohortRecord, 0, len(keys))
	for _, key := range keys {
		retained := len(active[key])
		records = append(records, models.CohortRecord{
			CohortMonth:   formatMonth(key.cohort),
			PeriodIndex:   key.period,
			CohortSize:    size[key.cohort],
			Retained:      retained,
			RetentionRate: float64(retained) / float64(size[key.cohort]),
			Revenue:       models.RoundMoney(revenue[key]),
		})
	}

	return &models.CohortResult{
		Records: records,
		Trend:   trend(keys, active, size, cfg.WeightTrendByCohortSize),
		Metrics: metrics(size, cohortOrders, active, revenue),
		Meta:    models.ResultMeta{Fallbacks: map[string]string{}},
	}, nil
}

// trend averages retention per period index across cohorts that have an
// observed cell for that period. Unweighted unless configured otherwise.
func trend(keys []cellKey, active map[cellKey]map[string]bool, size map[int]int, weighted bool) []models.TrendPoint {
	sum := make(map[int]float64)
	weight := make(map[int]float64)
	count := make(map[int]int)
	for _, key := range keys {
		rate := float64(len(active[key])) / float64(size[key.cohort])
		w := 1.0
		if weighted {
			w = float64(size[key.cohort])
		}
		sum[key.period] += rate * w
		weight[key.period] += w
		count[key.period]++
	}

	periods := make([]int, 0, len(sum))
	for p := range sum {
		periods = append(periods, p)
	}
	sort.Ints(periods)

	out := make([]models.TrendPoint, 0, len(periods))
	for _, p := range periods {
		out = append(out, models.TrendPoint{
			PeriodIndex:     p,
			CohortsObserved: count[p],
			AvgRetention:    sum[p] / weight[p],
		})
	}
	return out
}

func metrics(size, orders map[int]int, active map[cellKey]map[string]bool, revenue map[cellKey]float64) []models.CohortMetrics {
	totalRevenue := make(map[int]float64)
	for key, v := range revenue {
		totalRevenue[key.cohort] += v
	}

	cohorts := make([]int, 0, len(size))
	for c := range size {
		cohorts = append(cohorts, c)
	}
	sort.Ints(cohorts)

	out := make([]models.CohortMetrics, 0, len(cohorts))
	for _, c := range cohorts {
		m := models.CohortMetrics{
			CohortMonth: formatMonth(c),
			Customers:   size[c],
			Orders:      orders[c],
			Revenue:     models.RoundMoney(totalRevenue[c]),
		}
		if m.Orders > 0 {
			m.AvgOrderValue = models.RoundMoney(m.Revenue / float64(m.Orders))
		}
		out = append(out, m)
	}
	return out
}

// monthIndex maps a timestamp to a linear month count, so period offsets are
// plain subtraction.
func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// formatMonth renders a month index back to "MM/YYYY".
func formatMonth(idx int) string {
	return fmt.Sprintf("%02d/%04d", idx%12+1, idx/12)
}

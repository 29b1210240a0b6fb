// Package quality is the data quality gate. It turns raw order and payment
// rows into typed, cleaned tables and a QualityReport, or fails the run when
// the cleaned data is not viable. Malformed input is terminal for the run;
// nothing here is retried.
package quality

import (
	"math"
	"strconv"
	"strings"
	"time"

	"customer-insights/pkg/analyticserr"
	"customer-insights/pkg/models"
)

// Drop and flag counter names. Every drop or flag increments exactly one of
// these in the QualityReport.
const (
	DropMissingOrderID    = "missing_order_id"
	DropMissingCustomerID = "missing_customer_id"
	DropMissingTimestamp  = "missing_timestamp"
	DropBadTimestamp      = "bad_timestamp"
	DropFutureOrder       = "future_order"
	DropDuplicateOrder    = "duplicate_order"
	DropNegativePayment   = "negative_payment"
	DropNonNumericPayment = "non_numeric_payment"
	DropOrphanPayment     = "payment_missing_order_id"

	FlagOutlierPayment      = "outlier_payment"
	FlagOrderWithoutPayment = "order_without_payment"
	FlagPaymentWithoutOrder = "payment_without_order"
	FlagLowJoinRatio        = "low_join_ratio"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Clean applies the gate rules in order: required-key drops, payment value
// drops, outlier flagging, order dedup by first occurrence. The report is
// returned even when the verdict fails, so the caller can log the counts.
func Clean(rawOrders []models.RawOrder, rawPayments []models.RawPayment, cfg models.Config) ([]models.Order, []models.Payment, *models.QualityReport, error) {
	report := &models.QualityReport{
		OrdersInspected:   len(rawOrders),
		PaymentsInspected: len(rawPayments),
		Drops:             map[string]int{},
		Flags:             map[string]int{},
	}

	horizon := cfg.AsOf
	if horizon.IsZero() {
		horizon = time.Now().UTC()
	}

	orders := make([]models.Order, 0, len(rawOrders))
	seen := make(map[string]bool, len(rawOrders))
	for _, raw := range rawOrders {
		switch {
		case strings.TrimSpace(raw.OrderID) == "":
			report.Drops[DropMissingOrderID]++
			continue
		case strings.TrimSpace(raw.CustomerID) == "":
			report.Drops[DropMissingCustomerID]++
			continue
		case strings.TrimSpace(raw.Timestamp) == "":
			report.Drops[DropMissingTimestamp]++
			continue
		}
		ts, ok := parseTimestamp(strings.TrimSpace(raw.Timestamp))
		if !ok {
			report.Drops[DropBadTimestamp]++
			continue
		}
		if ts.After(horizon) {
			report.Drops[DropFutureOrder]++
			continue
		}
		if seen[raw.OrderID] {
			report.Drops[DropDuplicateOrder]++
			continue
		}
		seen[raw.OrderID] = true
		orders = append(orders, models.Order{
			OrderID:    raw.OrderID,
			CustomerID: raw.CustomerID,
			Timestamp:  ts,
			Status:     strings.TrimSpace(raw.Status),
		})
	}

	payments := make([]models.Payment, 0, len(rawPayments))
	for _, raw := range rawPayments {
		if strings.TrimSpace(raw.OrderID) == "" {
			report.Drops[DropOrphanPayment]++
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw.Value), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			report.Drops[DropNonNumericPayment]++
			continue
		}
		if v < 0 {
			report.Drops[DropNegativePayment]++
			continue
		}
		payments = append(payments, models.Payment{OrderID: raw.OrderID, Value: v})
	}

	flagOutliers(payments, cfg.OutlierZScore, report)
	report.JoinRatio = joinIntegrity(orders, payments, report)
	if len(orders) > 0 && report.JoinRatio < cfg.MinJoinRatio {
		report.Flags[FlagLowJoinRatio]++
	}

	report.OrdersKept = len(orders)
	report.PaymentsKept = len(payments)

	if err := verdict(report, cfg); err != nil {
		return nil, nil, report, err
	}
	report.Passed = true
	return orders, payments, report, nil
}

// flagOutliers annotates payments beyond the z-score bound. Extreme but
// valid purchases are business-relevant, so they stay in the table.
func flagOutliers(payments []models.Payment, zBound float64, report *models.QualityReport) {
	if len(payments) < 2 || zBound <= 0 {
		return
	}
	mean := 0.0
	for _, p := range payments {
		mean += p.Value
	}
	mean /= float64(len(payments))

	variance := 0.0
	for _, p := range payments {
		d := p.Value - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(payments)))
	if stddev == 0 {
		return
	}

	for i := range payments {
		if math.Abs(payments[i].Value-mean)/stddev > zBound {
			payments[i].Outlier = true
			report.Flags[FlagOutlierPayment]++
		}
	}
}

// joinIntegrity counts orders without payments and payments without orders,
// and returns the orders-with-payments ratio.
func joinIntegrity(orders []models.Order, payments []models.Payment, report *models.QualityReport) float64 {
	if len(orders) == 0 {
		return 0
	}
	paid := make(map[string]bool, len(payments))
	for _, p := range payments {
		paid[p.OrderID] = true
	}
	known := make(map[string]bool, len(orders))
	matched := 0
	for _, o := range orders {
		known[o.OrderID] = true
		if paid[o.OrderID] {
			matched++
		} else {
			report.Flags[FlagOrderWithoutPayment]++
		}
	}
	orphans := make(map[string]bool)
	for _, p := range payments {
		if !known[p.OrderID] && !orphans[p.OrderID] {
			orphans[p.OrderID] = true
			report.Flags[FlagPaymentWithoutOrder]++
		}
	}
	return float64(matched) / float64(len(orders))
}

func verdict(report *models.QualityReport, cfg models.Config) error {
	if report.OrdersKept < cfg.MinViableRows {
		return &analyticserr.DataQualityError{
			Reason: "cleaned orders below minimum viable row count",
			Drops:  report.Drops,
		}
	}
	if report.OrdersInspected > 0 {
		kept := float64(report.OrdersKept) / float64(report.OrdersInspected)
		if kept < cfg.MinKeptRate {
			return &analyticserr.DataQualityError{
				Reason: "cleaned order rate below threshold",
				Drops:  report.Drops,
			}
		}
	}
	return nil
}

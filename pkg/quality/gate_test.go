package quality

import (
	"errors"
	"testing"
	"time"

	"customer-insights/pkg/analyticserr"
	"customer-insights/pkg/models"
)

func testConfig() models.Config {
	cfg := models.Default()
	cfg.MinViableRows = 1
	cfg.AsOf = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	return cfg
}

func TestClean_ValidInputHasNoDrops(t *testing.T) {
	orders := []models.RawOrder{
		{OrderID: "o1", CustomerID: "A", Timestamp: "2025-06-20 10:00:00", Status: "delivered"},
		{OrderID: "o2", CustomerID: "B", Timestamp: "2025-04-01 09:30:00", Status: "delivered"},
	}
	payments := []models.RawPayment{
		{OrderID: "o1", Value: "100.00"},
		{OrderID: "o2", Value: "50.00"},
	}

	cleanOrders, cleanPayments, report, err := Clean(orders, payments, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cleanOrders) != 2 || len(cleanPayments) != 2 {
		t.Fatalf("kept %d orders, %d payments, want 2 and 2", len(cleanOrders), len(cleanPayments))
	}
	if got := report.Dropped(); got != 0 {
		t.Fatalf("dropped %d rows, want 0 (drops: %v)", got, report.Drops)
	}
	if !report.Passed {
		t.Fatal("report should pass")
	}
	if report.JoinRatio != 1.0 {
		t.Fatalf("join ratio: got %v, want 1.0", report.JoinRatio)
	}
}

func TestClean_NegativePaymentDroppedAndCounted(t *testing.T) {
	orders := []models.RawOrder{
		{OrderID: "o1", CustomerID: "A", Timestamp: "2025-06-20 10:00:00"},
	}
	payments := []models.RawPayment{
		{OrderID: "o1", Value: "100.00"},
		{OrderID: "o1", Value: "-5"},
	}

	_, cleanPayments, report, err := Clean(orders, payments, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cleanPayments) != 1 {
		t.Fatalf("kept %d payments, want 1", len(cleanPayments))
	}
	if got := report.Drops[DropNegativePayment]; got != 1 {
		t.Fatalf("negative_payment counter: got %d, want 1", got)
	}
}

func TestClean_NonNumericPaymentDropped(t *testing.T) {
	orders := []models.RawOrder{
		{OrderID: "o1", CustomerID: "A", Timestamp: "2025-06-20 10:00:00"},
	}
	payments := []models.RawPayment{
		{OrderID: "o1", Value: "abc"},
		{OrderID: "o1", Value: ""},
	}

	_, cleanPayments, report, err := Clean(orders, payments, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cleanPayments) != 0 {
		t.Fatalf("kept %d payments, want 0", len(cleanPayments))
	}
	if got := report.Drops[DropNonNumericPayment]; got != 2 {
		t.Fatalf("non_numeric_payment counter: got %d, want 2", got)
	}
}

func TestClean_MissingKeysDropped(t *testing.T) {
	orders := []models.RawOrder{
		{OrderID: "", CustomerID: "A", Timestamp: "2025-06-20 10:00:00"},
		{OrderID: "o2", CustomerID: "", Timestamp: "2025-06-20 10:00:00"},
		{OrderID: "o3", CustomerID: "C", Timestamp: ""},
		{OrderID: "o4", CustomerID: "D", Timestamp: "not-a-date"},
		{OrderID: "o5", CustomerID: "E", Timestamp: "2025-06-20 10:00:00"},
	}

	cleanOrders, _, report, err := Clean(orders, nil, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cleanOrders) != 1 {
		t.Fatalf("kept %d orders, want 1", len(cleanOrders))
	}
	for counter, want := range map[string]int{
		DropMissingOrderID:    1,
		DropMissingCustomerID: 1,
		DropMissingTimestamp:  1,
		DropBadTimestamp:      1,
	} {
		if got := report.Drops[counter]; got != want {
			t.Fatalf("%s: got %d, want %d", counter, got, want)
		}
	}
}

func TestClean_DuplicateOrderKeepsFirst(t *testing.T) {
	orders := []models.RawOrder{
		{OrderID: "o1", CustomerID: "A", Timestamp: "2025-06-20 10:00:00", Status: "delivered"},
		{OrderID: "o1", CustomerID: "B", Timestamp: "2025-06-21 10:00:00", Status: "canceled"},
	}

	cleanOrders, _, report, err := Clean(orders, nil, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cleanOrders) != 1 {
		t.Fatalf("kept %d orders, want 1", len(cleanOrders))
	}
	if cleanOrders[0].CustomerID != "A" {
		t.Fatalf("kept occurrence: got customer %q, want first occurrence A", cleanOrders[0].CustomerID)
	}
	if got := report.Drops[DropDuplicateOrder]; got != 1 {
		t.Fatalf("duplicate_order counter: got %d, want 1", got)
	}
}

func TestClean_FutureOrderDropped(t *testing.T) {
	orders := []models.RawOrder{
		{OrderID: "o1", CustomerID: "A", Timestamp: "2025-06-20 10:00:00"},
		{OrderID: "o2", CustomerID: "A", Timestamp: "2025-07-15 10:00:00"}, // past the as-of date
	}

	cleanOrders, _, report, err := Clean(orders, nil, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cleanOrders) != 1 {
		t.Fatalf("kept %d orders, want 1", len(cleanOrders))
	}
	if got := report.Drops[DropFutureOrder]; got != 1 {
		t.Fatalf("future_order counter: got %d, want 1", got)
	}
}

func TestClean_OutliersFlaggedNotDropped(t *testing.T) {
	orders := make([]models.RawOrder, 0, 11)
	payments := make([]models.RawPayment, 0, 11)
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		orders = append(orders, models.RawOrder{OrderID: id, CustomerID: id, Timestamp: "2025-06-01 00:00:00"})
		payments = append(payments, models.RawPayment{OrderID: id, Value: "100"})
	}
	orders = append(orders, models.RawOrder{OrderID: "big", CustomerID: "big", Timestamp: "2025-06-01 00:00:00"})
	payments = append(payments, models.RawPayment{OrderID: "big", Value: "100000"})

	_, cleanPayments, report, err := Clean(orders, payments, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cleanPayments) != 11 {
		t.Fatalf("kept %d payments, want all 11", len(cleanPayments))
	}
	if got := report.Flags[FlagOutlierPayment]; got != 1 {
		t.Fatalf("outlier_payment flag: got %d, want 1", got)
	}
	flagged := 0
	for _, p := range cleanPayments {
		if p.Outlier {
			flagged++
			if p.OrderID != "big" {
				t.Fatalf("flagged wrong payment: %s", p.OrderID)
			}
		}
	}
	if flagged != 1 {
		t.Fatalf("flagged %d payments, want 1", flagged)
	}
}

func TestClean_BelowMinimumRowsFails(t *testing.T) {
	cfg := testConfig()
	cfg.MinViableRows = 5
	orders := []models.RawOrder{
		{OrderID: "o1", CustomerID: "A", Timestamp: "2025-06-20 10:00:00"},
	}

	_, _, report, err := Clean(orders, nil, cfg)
	if !errors.Is(err, analyticserr.ErrDataQuality) {
		t.Fatalf("got %v, want data quality error", err)
	}
	var dqErr *analyticserr.DataQualityError
	if !errors.As(err, &dqErr) {
		t.Fatalf("expected *DataQualityError, got %T", err)
	}
	if report == nil || report.Passed {
		t.Fatal("report must be returned and not passed")
	}
}

func TestClean_LowKeptRateFails(t *testing.T) {
	cfg := testConfig()
	cfg.MinViableRows = 1
	cfg.MinKeptRate = 0.9
	orders := []models.RawOrder{
		{OrderID: "o1", CustomerID: "A", Timestamp: "2025-06-20 10:00:00"},
		{OrderID: "", CustomerID: "B", Timestamp: "2025-06-20 10:00:00"},
		{OrderID: "", CustomerID: "C", Timestamp: "2025-06-20 10:00:00"},
	}

	_, _, _, err := Clean(orders, nil, cfg)
	if !errors.Is(err, analyticserr.ErrDataQuality) {
		t.Fatalf("got %v, want data quality error", err)
	}
}

func TestClean_JoinIntegrityFlags(t *testing.T) {
	orders := []models.RawOrder{
		{OrderID: "o1", CustomerID: "A", Timestamp: "2025-06-20 10:00:00"},
		{OrderID: "o2", CustomerID: "B", Timestamp: "2025-06-20 10:00:00"},
	}
	payments := []models.RawPayment{
		{OrderID: "o1", Value: "10"},
		{OrderID: "ghost", Value: "10"},
	}

	_, _, report, err := Clean(orders, payments, testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := report.Flags[FlagOrderWithoutPayment]; got != 1 {
		t.Fatalf("order_without_payment: got %d, want 1", got)
	}
	if got := report.Flags[FlagPaymentWithoutOrder]; got != 1 {
		t.Fatalf("payment_without_order: got %d, want 1", got)
	}
	if report.JoinRatio != 0.5 {
		t.Fatalf("join ratio: got %v, want 0.5", report.JoinRatio)
	}
	if got := report.Flags[FlagLowJoinRatio]; got != 1 {
		t.Fatalf("low_join_ratio: got %d, want 1", got)
	}
}

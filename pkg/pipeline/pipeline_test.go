package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"customer-insights/pkg/analyticserr"
	"customer-insights/pkg/cache"
	"customer-insights/pkg/models"
)

// A small but quality-clean dataset spanning two cohort months.
func sampleInput() ([]models.RawOrder, []models.RawPayment) {
	var orders []models.RawOrder
	var payments []models.RawPayment
	for i := 0; i < 12; i++ {
		customer := fmt.Sprintf("c%02d", i)
		id := customer + "-o1"
		month := 1 + i%2
		orders = append(orders, models.RawOrder{
			OrderID:    id,
			CustomerID: customer,
			Timestamp:  fmt.Sprintf("2025-%02d-10 09:00:00", month),
			Status:     "delivered",
		})
		payments = append(payments, models.RawPayment{OrderID: id, Value: fmt.Sprintf("%d.50", 20+i*7)})
		if i%3 == 0 {
			id2 := customer + "-o2"
			orders = append(orders, models.RawOrder{
				OrderID:    id2,
				CustomerID: customer,
				Timestamp:  fmt.Sprintf("2025-%02d-05 15:00:00", month+1),
				Status:     "delivered",
			})
			payments = append(payments, models.RawPayment{OrderID: id2, Value: "33.00"})
		}
	}
	return orders, payments
}

func testConfig() models.Config {
	cfg := models.Default()
	cfg.MinViableRows = 5
	return cfg
}

func TestRun_ProducesAllEngineResults(t *testing.T) {
	orders, payments := sampleInput()

	res, err := Run(context.Background(), orders, payments, testConfig(), Deps{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RunID == "" {
		t.Fatal("run id missing")
	}
	if res.Report == nil || !res.Report.Passed {
		t.Fatalf("quality report: %+v", res.Report)
	}
	if res.RFM == nil || res.Cohort == nil || res.LTV == nil {
		t.Fatalf("missing engine output: rfm=%v cohort=%v ltv=%v", res.RFM != nil, res.Cohort != nil, res.LTV != nil)
	}
	if res.Summary == nil {
		t.Fatal("summary missing despite all engines succeeding")
	}
	if len(res.EngineErrors) != 0 {
		t.Fatalf("engine errors: %v", res.EngineErrors)
	}
	if res.RFMFromCache || res.CohortFromCache || res.LTVFromCache {
		t.Fatal("first run on a fresh store must not report cache hits")
	}
}

func TestRun_SecondRunIsServedFromCacheAndIdentical(t *testing.T) {
	orders, payments := sampleInput()
	store := cache.NewMemory()
	cfg := testConfig()

	first, err := Run(context.Background(), orders, payments, cfg, Deps{Store: store})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := Run(context.Background(), orders, payments, cfg, Deps{Store: store})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !second.RFMFromCache || !second.CohortFromCache || !second.LTVFromCache {
		t.Fatalf("second run cache hits: rfm=%t cohort=%t ltv=%t",
			second.RFMFromCache, second.CohortFromCache, second.LTVFromCache)
	}
	if !reflect.DeepEqual(first.RFM, second.RFM) {
		t.Fatal("cached RFM result differs from computed result")
	}
	if !reflect.DeepEqual(first.Cohort, second.Cohort) {
		t.Fatal("cached cohort result differs from computed result")
	}
	if !reflect.DeepEqual(first.LTV, second.LTV) {
		t.Fatal("cached LTV result differs from computed result")
	}
	if !reflect.DeepEqual(first.Summary, second.Summary) {
		t.Fatal("summary differs between cached and uncached runs")
	}
}

func TestRun_ChangedDataMissesCache(t *testing.T) {
	orders, payments := sampleInput()
	store := cache.NewMemory()
	cfg := testConfig()

	if _, err := Run(context.Background(), orders, payments, cfg, Deps{Store: store}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	payments[0].Value = "999.99"
	res, err := Run(context.Background(), orders, payments, cfg, Deps{Store: store})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.RFMFromCache || res.CohortFromCache || res.LTVFromCache {
		t.Fatal("changed input content must not hit the cache")
	}
}

func TestRun_ChangedParamsMissCache(t *testing.T) {
	orders, payments := sampleInput()
	store := cache.NewMemory()
	cfg := testConfig()

	if _, err := Run(context.Background(), orders, payments, cfg, Deps{Store: store}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	cfg.HorizonDays = 730
	res, err := Run(context.Background(), orders, payments, cfg, Deps{Store: store})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.LTVFromCache {
		t.Fatal("changed LTV horizon must miss the LTV cache")
	}
	// The other engines' parameter sets are untouched.
	if !res.RFMFromCache || !res.CohortFromCache {
		t.Fatalf("rfm=%t cohort=%t, want both cached", res.RFMFromCache, res.CohortFromCache)
	}
}

func TestRun_InvalidConfigFailsBeforeComputation(t *testing.T) {
	cfg := testConfig()
	cfg.BucketCount = 0

	orders, payments := sampleInput()
	res, err := Run(context.Background(), orders, payments, cfg, Deps{})
	if !errors.Is(err, analyticserr.ErrConfiguration) {
		t.Fatalf("got %v, want configuration error", err)
	}
	if res != nil {
		t.Fatal("no partial result on configuration failure")
	}
}

func TestRun_QualityFailureReturnsReport(t *testing.T) {
	orders := []models.RawOrder{
		{OrderID: "o1", CustomerID: "A", Timestamp: "2025-01-10 09:00:00"},
	}

	cfg := testConfig()
	cfg.MinViableRows = 50
	res, err := Run(context.Background(), orders, nil, cfg, Deps{})
	if !errors.Is(err, analyticserr.ErrDataQuality) {
		t.Fatalf("got %v, want data quality error", err)
	}
	if res == nil || res.Report == nil {
		t.Fatal("quality report must accompany the failure")
	}
}

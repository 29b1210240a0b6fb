// Package pipeline orchestrates one analytics run: quality gate, then the
// three engines in parallel, then the insights aggregator. Engine outputs
// are memoized through the result cache keyed by input fingerprint and
// parameter set.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"customer-insights/pkg/analyticserr"
	"customer-insights/pkg/cache"
	"customer-insights/pkg/cohort"
	"customer-insights/pkg/insights"
	"customer-insights/pkg/logger"
	"customer-insights/pkg/ltv"
	"customer-insights/pkg/models"
	"customer-insights/pkg/quality"
	"customer-insights/pkg/rfm"
)

// Deps are the pipeline's external collaborators. Nil fields get safe
// defaults (nop logger, fresh in-memory store).
type Deps struct {
	Log   *logger.Logger
	Store cache.Store
}

// Result is one full pipeline run. Summary is set only when all three
// engines succeeded; a single engine running out of eligible data is
// recorded in EngineErrors without failing the others.
type Result struct {
	RunID   string
	Report  *models.QualityReport
	RFM     *models.RFMResult
	Cohort  *models.CohortResult
	LTV     *models.LTVResult
	Summary *models.BusinessSummary

	RFMFromCache    bool
	CohortFromCache bool
	LTVFromCache    bool

	EngineErrors map[string]error
}

type rfmParams struct {
	AsOf                  time.Time                `json:"as_of"`
	BucketCount           int                      `json:"bucket_count"`
	MinQuantilePopulation int                      `json:"min_quantile_population"`
	ExcludedStatuses      []string                 `json:"excluded_statuses"`
	Actions               map[string]models.Action `json:"actions,omitempty"`
}

type cohortParams struct {
	ExcludedStatuses        []string `json:"excluded_statuses"`
	WeightTrendByCohortSize bool     `json:"weight_trend_by_cohort_size"`
}

type ltvParams struct {
	AsOf                  time.Time `json:"as_of"`
	HorizonDays           int       `json:"horizon_days"`
	MinQuantilePopulation int       `json:"min_quantile_population"`
	ExcludedStatuses      []string  `json:"excluded_statuses"`
}

// Run executes the whole pipeline on raw input tables. Validation errors
// surface before any computation; a caller-supplied context deadline aborts
// in-flight engines rather than returning partial results.
func Run(ctx context.Context, rawOrders []models.RawOrder, rawPayments []models.RawPayment, cfg models.Config, deps Deps) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	store := deps.Store
	if store == nil {
		store = cache.NewMemory()
	}

	res := &Result{RunID: uuid.NewString(), EngineErrors: map[string]error{}}
	log = log.With("run_id", res.RunID)

	log.Info("quality gate start", "orders", len(rawOrders), "payments", len(rawPayments))
	orders, payments, report, err := quality.Clean(rawOrders, rawPayments, cfg)
	res.Report = report
	if err != nil {
		log.Error("quality gate failed", "drops", report.Drops)
		return res, err
	}
	log.Info("quality gate passed",
		"orders_kept", report.OrdersKept,
		"payments_kept", report.PaymentsKept,
		"dropped", report.Dropped(),
		"join_ratio", report.JoinRatio)

	// Resolve the as-of date before fingerprinting so identical data and
	// parameters always map to the same cache keys.
	if cfg.AsOf.IsZero() {
		cfg.AsOf = rfm.ResolveAsOf(orders)
	}
	hash := cache.DataHash(orders, payments)
	client := cache.NewClient(store)

	// Per-engine insufficiency is captured in goroutine-local slots; the
	// shared map is only assembled after the join point.
	var rfmErr, cohortErr, ltvErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		key := cache.Key(hash, "rfm", rfmParams{
			AsOf:                  cfg.AsOf,
			BucketCount:           cfg.BucketCount,
			MinQuantilePopulation: cfg.MinQuantilePopulation,
			ExcludedStatuses:      cfg.ExcludedStatuses,
			Actions:               cfg.Actions,
		})
		out, hit, err := runCached[models.RFMResult](gctx, client, key, cfg.CacheTTL, func(ctx context.Context) (*models.RFMResult, error) {
			return rfm.Compute(ctx, orders, payments, cfg)
		})
		if errors.Is(err, analyticserr.ErrInsufficientData) {
			rfmErr = err
			return nil
		}
		if err != nil {
			return err
		}
		res.RFM, res.RFMFromCache = out, hit
		return nil
	})
	g.Go(func() error {
		key := cache.Key(hash, "cohort", cohortParams{
			ExcludedStatuses:        cfg.ExcludedStatuses,
			WeightTrendByCohortSize: cfg.WeightTrendByCohortSize,
		})
		out, hit, err := runCached[models.CohortResult](gctx, client, key, cfg.CacheTTL, func(ctx context.Context) (*models.CohortResult, error) {
			return cohort.Compute(ctx, orders, payments, cfg)
		})
		if errors.Is(err, analyticserr.ErrInsufficientData) {
			cohortErr = err
			return nil
		}
		if err != nil {
			return err
		}
		res.Cohort, res.CohortFromCache = out, hit
		return nil
	})
	g.Go(func() error {
		key := cache.Key(hash, "ltv", ltvParams{
			AsOf:                  cfg.AsOf,
			HorizonDays:           cfg.HorizonDays,
			MinQuantilePopulation: cfg.MinQuantilePopulation,
			ExcludedStatuses:      cfg.ExcludedStatuses,
		})
		out, hit, err := runCached[models.LTVResult](gctx, client, key, cfg.CacheTTL, func(ctx context.Context) (*models.LTVResult, error) {
			return ltv.Compute(ctx, orders, payments, cfg)
		})
		if errors.Is(err, analyticserr.ErrInsufficientData) {
			ltvErr = err
			return nil
		}
		if err != nil {
			return err
		}
		res.LTV, res.LTVFromCache = out, hit
		return nil
	})
	if err := g.Wait(); err != nil {
		return res, err
	}

	if rfmErr != nil {
		res.EngineErrors["rfm"] = rfmErr
	}
	if cohortErr != nil {
		res.EngineErrors["cohort"] = cohortErr
	}
	if ltvErr != nil {
		res.EngineErrors["ltv"] = ltvErr
	}
	for engine, engineErr := range res.EngineErrors {
		log.Warn("engine skipped", "engine", engine, "error", engineErr)
	}
	if len(res.EngineErrors) == 3 {
		return res, &analyticserr.InsufficientDataError{Engine: "all"}
	}

	if res.RFM != nil && res.Cohort != nil && res.LTV != nil {
		res.Summary = insights.Summarize(res.RFM, res.Cohort, res.LTV, cfg)
		log.Info("insights aggregated",
			"top_segment", res.Summary.TopSegment,
			"win_back", res.Summary.WinBackOpportunity)
	}

	log.Info("pipeline complete",
		"rfm_cache_hit", res.RFMFromCache,
		"cohort_cache_hit", res.CohortFromCache,
		"ltv_cache_hit", res.LTVFromCache)
	return res, nil
}

// runCached memoizes one engine invocation. The stored form is JSON, and
// fresh computations are decoded from their own encoding so cached and
// uncached runs return byte-identical structures.
func runCached[T any](ctx context.Context, client *cache.Client, key string, ttl time.Duration, compute func(context.Context) (*T, error)) (*T, bool, error) {
	raw, hit, err := client.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return nil, false, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, err
	}
	return &out, hit, nil
}

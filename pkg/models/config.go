package models

import (
	"time"

	"customer-insights/pkg/analyticserr"
)

/*
CONFIG → one structured value constructed by the caller and passed
explicitly into every engine call. No engine reads ambient process state.
*/

// Config carries every tunable of the pipeline. The zero value is not
// usable; start from Default().
type Config struct {
	// AsOf is the reference date for recency. Zero means "day after the
	// newest cleaned order".
	AsOf time.Time

	// BucketCount is the number of quantile buckets for r/f/m scoring.
	BucketCount int
	// MinQuantilePopulation is the population size below which scoring
	// falls back to equal-width binning.
	MinQuantilePopulation int

	// MinViableRows and MinKeptRate gate the cleaned data. Falling below
	// either fails the run with a data quality error.
	MinViableRows int
	MinKeptRate   float64

	// OutlierZScore flags (never drops) payments beyond this many standard
	// deviations from the mean.
	OutlierZScore float64
	// MinJoinRatio is the orders-with-payments ratio below which the gate
	// records a join integrity warning.
	MinJoinRatio float64

	// ExcludedStatuses lists order statuses left out of monetary
	// aggregation. The orders themselves still count toward recency,
	// frequency and cohort activity.
	ExcludedStatuses []string

	// HorizonDays is the forward horizon of the LTV extrapolation.
	HorizonDays int
	// AcquisitionCost feeds the LTV/CAC ratio.
	AcquisitionCost float64

	// WinBackRate is the assumed success rate of a win-back campaign
	// applied to the at-risk segment's monetary total.
	WinBackRate float64

	// WeightTrendByCohortSize switches the retention trend from an
	// unweighted average to a cohort-size weighted one.
	WeightTrendByCohortSize bool

	// CacheTTL bounds how long a cached engine result is served.
	CacheTTL time.Duration

	// Actions overrides the per-segment recommended actions.
	Actions map[string]Action
}

// Default returns the configuration used when the caller tunes nothing.
func Default() Config {
	return Config{
		BucketCount:           5,
		MinQuantilePopulation: 20,
		MinViableRows:         10,
		MinKeptRate:           0.5,
		OutlierZScore:         3.0,
		MinJoinRatio:          0.95,
		ExcludedStatuses:      []string{"canceled", "unavailable"},
		HorizonDays:           365,
		AcquisitionCost:       50,
		WinBackRate:           0.25,
		CacheTTL:              time.Hour,
	}
}

// Validate rejects unusable parameters before the pipeline starts.
func (c Config) Validate() error {
	if c.BucketCount < 2 {
		return &analyticserr.ConfigurationError{Param: "BucketCount", Detail: "must be at least 2"}
	}
	if c.MinViableRows < 1 {
		return &analyticserr.ConfigurationError{Param: "MinViableRows", Detail: "must be at least 1"}
	}
	if c.MinKeptRate < 0 || c.MinKeptRate > 1 {
		return &analyticserr.ConfigurationError{Param: "MinKeptRate", Detail: "must be within [0,1]"}
	}
	if c.OutlierZScore <= 0 {
		return &analyticserr.ConfigurationError{Param: "OutlierZScore", Detail: "must be positive"}
	}
	if c.MinJoinRatio < 0 || c.MinJoinRatio > 1 {
		return &analyticserr.ConfigurationError{Param: "MinJoinRatio", Detail: "must be within [0,1]"}
	}
	if c.HorizonDays <= 0 {
		return &analyticserr.ConfigurationError{Param: "HorizonDays", Detail: "must be positive"}
	}
	if c.WinBackRate < 0 || c.WinBackRate > 1 {
		return &analyticserr.ConfigurationError{Param: "WinBackRate", Detail: "must be within [0,1]"}
	}
	if c.CacheTTL < 0 {
		return &analyticserr.ConfigurationError{Param: "CacheTTL", Detail: "must not be negative"}
	}
	return nil
}

// StatusExcluded reports whether an order status is left out of monetary
// aggregation.
func (c Config) StatusExcluded(status string) bool {
	for _, s := range c.ExcludedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Package analyticserr defines the error taxonomy of the pipeline. Every
// failure class is a typed error unwrapping to a sentinel, so callers can
// branch with errors.Is and still read structured details with errors.As.
package analyticserr

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema marks missing or malformed required columns. Fatal before
	// any computation.
	ErrSchema = errors.New("schema error")
	// ErrDataQuality marks cleaned data below the viability thresholds.
	// Fatal for the run.
	ErrDataQuality = errors.New("data quality below threshold")
	// ErrInsufficientData marks an engine with zero eligible customers or
	// cohorts. Fatal to that engine only.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrConfiguration marks an invalid parameter, caught before the
	// pipeline starts.
	ErrConfiguration = errors.New("invalid configuration")
)

// SchemaError reports a required column missing from an input table.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: table %q missing required column %q", ErrSchema, e.Table, e.Column)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// DataQualityError reports cleaned data below the configured thresholds,
// with the per-reason drop counts.
type DataQualityError struct {
	Reason string
	Drops  map[string]int
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("%s: %s (drops: %v)", ErrDataQuality, e.Reason, e.Drops)
}

func (e *DataQualityError) Unwrap() error { return ErrDataQuality }

// InsufficientDataError reports which engine ran out of eligible input.
type InsufficientDataError struct {
	Engine string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: engine %q has no eligible customers", ErrInsufficientData, e.Engine)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// ConfigurationError reports the offending parameter.
type ConfigurationError struct {
	Param  string
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrConfiguration, e.Param, e.Detail)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

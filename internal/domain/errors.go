package domain

import "fmt"

// InsufficientDataError indicates fewer than the minimum usable assets were
// supplied for an analysis step.
type InsufficientDataError struct {
	Needed int
	Got    int
	Detail string
}

func (e *InsufficientDataError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("insufficient data: need %d, got %d (%s)", e.Needed, e.Got, e.Detail)
	}
	return fmt.Sprintf("insufficient data: need %d, got %d", e.Needed, e.Got)
}

// OptimizationFailure indicates the solver did not converge, timed out, or
// hit an internal numerical error. The engine never lets numerical panics
// escape; they are converted into this type.
type OptimizationFailure struct {
	Diagnostic string
	Err        error
}

func (e *OptimizationFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("optimization failed: %s: %v", e.Diagnostic, e.Err)
	}
	return fmt.Sprintf("optimization failed: %s", e.Diagnostic)
}

func (e *OptimizationFailure) Unwrap() error { return e.Err }

// InvalidConfigurationError indicates the supplied configuration makes the
// optimization constraints infeasible.
type InvalidConfigurationError struct {
	Detail string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Detail)
}

// AssetNotFoundError indicates a referenced symbol is absent from the
// correlation matrix.
type AssetNotFoundError struct {
	Symbol string
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("asset %q not found in correlation matrix", e.Symbol)
}

// Package estimation provides pluggable expected-return and volatility
// estimators. The default estimator is deterministic: identical histories
// always produce identical estimates, which keeps the optimizer reproducible.
package estimation

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/allocator/internal/domain"
)

// DefaultPeriodsPerYear annualizes daily observations (trading days).
const DefaultPeriodsPerYear = 252

// Estimator estimates annualized expected return and volatility for an
// asset from its return history.
type Estimator interface {
	Estimate(asset domain.Asset, history []float64) (domain.Estimate, error)
}

// HistoricalEstimator derives estimates from the historical mean and
// standard deviation of the return series.
type HistoricalEstimator struct {
	PeriodsPerYear float64
}

// NewHistoricalEstimator creates the default estimator.
func NewHistoricalEstimator() HistoricalEstimator {
	return HistoricalEstimator{PeriodsPerYear: DefaultPeriodsPerYear}
}

// Estimate returns the annualized mean return and volatility of the series.
func (h HistoricalEstimator) Estimate(asset domain.Asset, history []float64) (domain.Estimate, error) {
	if len(history) < 2 {
		return domain.Estimate{}, &domain.InsufficientDataError{
			Needed: 2,
			Got:    len(history),
			Detail: "return history for " + asset.Symbol,
		}
	}

	periods := h.PeriodsPerYear
	if periods <= 0 {
		periods = DefaultPeriodsPerYear
	}

	mean, std := stat.MeanStdDev(history, nil)
	if math.IsNaN(std) {
		std = 0
	}

	return domain.Estimate{
		ExpectedReturn: mean * periods,
		Volatility:     std * math.Sqrt(periods),
	}, nil
}

// ReturnsFromPnL converts a raw per-trade P&L history into a return series
// against a fixed capital base, so trade logs can feed the correlation
// engine in place of price returns.
func ReturnsFromPnL(pnl []float64, capitalBase float64) []float64 {
	if capitalBase <= 0 {
		capitalBase = 1
	}
	returns := make([]float64, len(pnl))
	for i, p := range pnl {
		returns[i] = p / capitalBase
	}
	return returns
}

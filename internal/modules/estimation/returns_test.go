package estimation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/domain"
)

func TestHistoricalEstimator_Annualization(t *testing.T) {
	history := []float64{0.01, 0.03}
	estimator := NewHistoricalEstimator()

	est, err := estimator.Estimate(domain.Asset{Symbol: "AAA"}, history)
	require.NoError(t, err)

	// mean 0.02 daily, sample std sqrt(0.0002)
	assert.InDelta(t, 0.02*252, est.ExpectedReturn, 1e-9)
	assert.InDelta(t, math.Sqrt(0.0002)*math.Sqrt(252), est.Volatility, 1e-9)
}

func TestHistoricalEstimator_Deterministic(t *testing.T) {
	history := []float64{0.01, -0.02, 0.03, 0.01, -0.01}
	estimator := NewHistoricalEstimator()

	first, err := estimator.Estimate(domain.Asset{Symbol: "AAA"}, history)
	require.NoError(t, err)
	second, err := estimator.Estimate(domain.Asset{Symbol: "AAA"}, history)
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical history must produce identical estimates")
}

func TestHistoricalEstimator_ConstantSeries(t *testing.T) {
	history := []float64{0.01, 0.01, 0.01, 0.01}
	estimator := NewHistoricalEstimator()

	est, err := estimator.Estimate(domain.Asset{Symbol: "AAA"}, history)
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.Volatility)
	assert.InDelta(t, 0.01*252, est.ExpectedReturn, 1e-9)
}

func TestHistoricalEstimator_TooShort(t *testing.T) {
	estimator := NewHistoricalEstimator()

	_, err := estimator.Estimate(domain.Asset{Symbol: "AAA"}, []float64{0.01})
	var insufficient *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
}

func TestReturnsFromPnL(t *testing.T) {
	returns := ReturnsFromPnL([]float64{100, -50, 25}, 1000)
	assert.Equal(t, []float64{0.1, -0.05, 0.025}, returns)
}

func TestReturnsFromPnL_InvalidBase(t *testing.T) {
	// A non-positive capital base falls back to 1 instead of dividing by zero.
	returns := ReturnsFromPnL([]float64{2, 3}, 0)
	assert.Equal(t, []float64{2, 3}, returns)
}

package optimization

import (
	"time"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/correlation"
)

// Default optimization parameters.
const (
	DefaultTargetVolatility        = 0.15
	DefaultMaxAssetWeight          = 0.30
	DefaultRiskFreeRate            = 0.02
	DefaultRecommendationThreshold = 0.05
	DefaultMaxIterations           = 1000
	DefaultTimeout                 = 10 * time.Second
	DefaultVolatilityTolerance     = 0.02
)

// Config holds optimizer parameters.
type Config struct {
	TargetVolatility        float64       // portfolio volatility the solution is pinned to
	MaxAssetWeight          float64       // per-asset upper bound; lower bound is 0
	RiskFreeRate            float64       // for the Sharpe objective
	RecommendationThreshold float64       // min |delta| for a rebalance recommendation
	MaxIterations           int           // deterministic solver iteration cap
	Timeout                 time.Duration // wall-clock bound on the solver
	VolatilityTolerance     float64       // accepted deviation from the volatility target
}

// DefaultConfig returns the standard optimizer configuration.
func DefaultConfig() Config {
	return Config{
		TargetVolatility:        DefaultTargetVolatility,
		MaxAssetWeight:          DefaultMaxAssetWeight,
		RiskFreeRate:            DefaultRiskFreeRate,
		RecommendationThreshold: DefaultRecommendationThreshold,
		MaxIterations:           DefaultMaxIterations,
		Timeout:                 DefaultTimeout,
		VolatilityTolerance:     DefaultVolatilityTolerance,
	}
}

// Input bundles everything the optimizer consumes. The correlation matrix is
// passed explicitly; the optimizer holds no shared state between calls.
type Input struct {
	Assets         []domain.Asset
	Estimates      map[string]domain.Estimate
	CurrentWeights map[string]float64
	Correlations   *correlation.Matrix
	Config         Config
}

// Recommendation is a per-asset weight change suggestion.
type Recommendation struct {
	Symbol        string        `json:"symbol"`
	Action        domain.Action `json:"action"`
	CurrentWeight float64       `json:"current_weight"`
	TargetWeight  float64       `json:"target_weight"`
	Delta         float64       `json:"delta"`
}

// Result is a successful optimization outcome. Weights are rounded to three
// decimals and still sum to 1 within tolerance.
type Result struct {
	Weights         map[string]float64 `json:"weights"`
	ExpectedReturn  float64            `json:"expected_return"`
	Volatility      float64            `json:"volatility"`
	SharpeRatio     float64            `json:"sharpe_ratio"`
	Recommendations []Recommendation   `json:"recommendations"`
}

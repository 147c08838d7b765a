// Package regime supplies market-condition labels for the rebalancing
// scheduler. Forecasts are an injectable capability; the fixed rotation is
// only a fallback and is always labeled as such in the schedule output.
package regime

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/allocator/internal/domain"
)

// Forecast supplies condition labels for the next n periods.
type Forecast interface {
	Conditions(n int) []domain.MarketCondition
	Source() string
}

// SourceRotation identifies the round-robin fallback in schedule output.
const SourceRotation = "rotation_fallback"

// SourceDetector identifies the market-return detector.
const SourceDetector = "market_detector"

// RotationForecast cycles stable, volatile, trending. It exists only as the
// explicit fallback for when no real forecast collaborator is wired in.
type RotationForecast struct{}

// Conditions returns the fixed rotation for n periods.
func (RotationForecast) Conditions(n int) []domain.MarketCondition {
	rotation := []domain.MarketCondition{
		domain.ConditionStable,
		domain.ConditionVolatile,
		domain.ConditionTrending,
	}
	out := make([]domain.MarketCondition, n)
	for i := 0; i < n; i++ {
		out[i] = rotation[i%len(rotation)]
	}
	return out
}

// Source labels the rotation as a fallback, never a real forecast.
func (RotationForecast) Source() string { return SourceRotation }

// Detector thresholds.
const (
	DefaultShortWindow       = 10
	DefaultLongWindow        = 30
	DefaultVolatileThreshold = 0.25 // annualized volatility above this is "volatile"
	DefaultTrendThreshold    = 0.02 // short/long SMA divergence above this is "trending"
	detectorPeriodsPerYear   = 252
)

// DetectorConfig holds detector thresholds.
type DetectorConfig struct {
	ShortWindow       int
	LongWindow        int
	VolatileThreshold float64
	TrendThreshold    float64
}

// DefaultDetectorConfig returns the standard detector thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		ShortWindow:       DefaultShortWindow,
		LongWindow:        DefaultLongWindow,
		VolatileThreshold: DefaultVolatileThreshold,
		TrendThreshold:    DefaultTrendThreshold,
	}
}

// DetectorForecast derives one condition from a market return series and
// projects it over the forecast horizon. Volatility wins over trend: a
// volatile market is labeled volatile even when trending.
type DetectorForecast struct {
	cfg       DetectorConfig
	condition domain.MarketCondition
}

// NewDetectorForecast classifies the market return series once at
// construction; the resulting forecast is immutable.
func NewDetectorForecast(marketReturns []float64, cfg DetectorConfig, log zerolog.Logger) *DetectorForecast {
	if cfg.ShortWindow <= 0 {
		cfg.ShortWindow = DefaultShortWindow
	}
	if cfg.LongWindow <= cfg.ShortWindow {
		cfg.LongWindow = DefaultLongWindow
	}
	if cfg.VolatileThreshold <= 0 {
		cfg.VolatileThreshold = DefaultVolatileThreshold
	}
	if cfg.TrendThreshold <= 0 {
		cfg.TrendThreshold = DefaultTrendThreshold
	}

	d := &DetectorForecast{cfg: cfg, condition: classify(marketReturns, cfg)}
	log.Debug().
		Str("component", "regime_detector").
		Str("condition", string(d.condition)).
		Int("observations", len(marketReturns)).
		Msg("Classified market regime")
	return d
}

// Conditions repeats the detected condition over the horizon.
func (d *DetectorForecast) Conditions(n int) []domain.MarketCondition {
	out := make([]domain.MarketCondition, n)
	for i := range out {
		out[i] = d.condition
	}
	return out
}

// Source identifies the detector.
func (d *DetectorForecast) Source() string { return SourceDetector }

// classify labels the series: volatile when annualized stddev exceeds the
// threshold, trending when the short SMA of the equity curve diverges from
// the long SMA, stable otherwise. Too little history defaults to stable.
func classify(returns []float64, cfg DetectorConfig) domain.MarketCondition {
	if len(returns) < cfg.LongWindow {
		return domain.ConditionStable
	}

	annualVol := stat.StdDev(returns, nil) * math.Sqrt(detectorPeriodsPerYear)
	if annualVol > cfg.VolatileThreshold {
		return domain.ConditionVolatile
	}

	// Equity curve from returns; SMA divergence measures trend.
	curve := make([]float64, len(returns)+1)
	curve[0] = 1.0
	for i, r := range returns {
		curve[i+1] = curve[i] * (1.0 + r)
	}
	short := talib.Sma(curve, cfg.ShortWindow)
	long := talib.Sma(curve, cfg.LongWindow)

	last := len(curve) - 1
	if long[last] > 0 {
		divergence := (short[last] - long[last]) / long[last]
		if math.Abs(divergence) > cfg.TrendThreshold {
			return domain.ConditionTrending
		}
	}
	return domain.ConditionStable
}

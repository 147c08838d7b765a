// Package risk computes concentration metrics and warnings for a set of
// portfolio weights against a correlation matrix.
package risk

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/modules/correlation"
)

// Default analyzer thresholds.
const (
	DefaultExposureCorrelationFloor = 0.5
	DefaultMaxAssetWeight           = 0.30
	DefaultMaxCorrelationExposure   = 0.7
	DefaultConcentrationLimit       = 0.5
)

// Warning codes.
const (
	WarnConcentration       = "high_concentration"
	WarnWeightLimit         = "weight_above_limit"
	WarnCorrelationExposure = "correlation_exposure"
)

// Config holds analyzer thresholds.
type Config struct {
	ExposureCorrelationFloor float64 // |corr| must exceed this to count toward exposure
	MaxAssetWeight           float64 // per-asset weight limit
	MaxCorrelationExposure   float64 // per-asset exposure limit
	ConcentrationLimit       float64 // HHI above this warns
}

// DefaultConfig returns the standard analyzer configuration.
func DefaultConfig() Config {
	return Config{
		ExposureCorrelationFloor: DefaultExposureCorrelationFloor,
		MaxAssetWeight:           DefaultMaxAssetWeight,
		MaxCorrelationExposure:   DefaultMaxCorrelationExposure,
		ConcentrationLimit:       DefaultConcentrationLimit,
	}
}

// Warning is a structured threshold breach. Rendering to human text is the
// presentation layer's job.
type Warning struct {
	Code   string  `json:"code"`
	Symbol string  `json:"symbol,omitempty"`
	Value  float64 `json:"value"`
	Limit  float64 `json:"limit"`
}

// Report is the concentration analysis output.
type Report struct {
	Herfindahl      float64            `json:"herfindahl_index"`
	EffectiveAssets float64            `json:"effective_asset_count"`
	MaxWeightSymbol string             `json:"max_weight_symbol"`
	MaxWeight       float64            `json:"max_weight"`
	Exposure        map[string]float64 `json:"correlation_exposure"`
	Warnings        []Warning          `json:"warnings"`
}

// Analyzer computes concentration reports. Stateless; safe for concurrent use.
type Analyzer struct {
	cfg Config
	log zerolog.Logger
}

// NewAnalyzer creates a concentration analyzer.
func NewAnalyzer(cfg Config, log zerolog.Logger) *Analyzer {
	if cfg.ExposureCorrelationFloor <= 0 {
		cfg.ExposureCorrelationFloor = DefaultExposureCorrelationFloor
	}
	if cfg.MaxAssetWeight <= 0 {
		cfg.MaxAssetWeight = DefaultMaxAssetWeight
	}
	if cfg.MaxCorrelationExposure <= 0 {
		cfg.MaxCorrelationExposure = DefaultMaxCorrelationExposure
	}
	if cfg.ConcentrationLimit <= 0 {
		cfg.ConcentrationLimit = DefaultConcentrationLimit
	}
	return &Analyzer{
		cfg: cfg,
		log: log.With().Str("component", "risk_analyzer").Logger(),
	}
}

// Analyze computes the Herfindahl index, effective asset count, per-asset
// correlation exposure, and threshold warnings for the given weights.
//
// Exposure for asset i sums w_j * |corr(i,j)| over every other asset j whose
// absolute correlation with i exceeds the configured floor.
func (a *Analyzer) Analyze(weights map[string]float64, corr *correlation.Matrix) (*Report, error) {
	report := &Report{
		Exposure: make(map[string]float64, len(weights)),
		Warnings: make([]Warning, 0),
	}

	for symbol, w := range weights {
		report.Herfindahl += w * w
		if w > report.MaxWeight {
			report.MaxWeight = w
			report.MaxWeightSymbol = symbol
		}
	}
	if report.Herfindahl > 0 {
		report.EffectiveAssets = 1.0 / report.Herfindahl
	}

	for symbol := range weights {
		var exposure float64
		for other, w := range weights {
			if other == symbol {
				continue
			}
			c, err := corr.At(symbol, other)
			if err != nil {
				return nil, err
			}
			if math.Abs(c) > a.cfg.ExposureCorrelationFloor {
				exposure += w * math.Abs(c)
			}
		}
		report.Exposure[symbol] = exposure

		if exposure > a.cfg.MaxCorrelationExposure {
			report.Warnings = append(report.Warnings, Warning{
				Code:   WarnCorrelationExposure,
				Symbol: symbol,
				Value:  exposure,
				Limit:  a.cfg.MaxCorrelationExposure,
			})
		}
	}

	if report.Herfindahl > a.cfg.ConcentrationLimit {
		report.Warnings = append(report.Warnings, Warning{
			Code:  WarnConcentration,
			Value: report.Herfindahl,
			Limit: a.cfg.ConcentrationLimit,
		})
	}
	for symbol, w := range weights {
		if w > a.cfg.MaxAssetWeight {
			report.Warnings = append(report.Warnings, Warning{
				Code:   WarnWeightLimit,
				Symbol: symbol,
				Value:  w,
				Limit:  a.cfg.MaxAssetWeight,
			})
		}
	}

	a.log.Debug().
		Float64("herfindahl", report.Herfindahl).
		Float64("effective_assets", report.EffectiveAssets).
		Int("warnings", len(report.Warnings)).
		Msg("Computed concentration report")

	return report, nil
}

// Package engine orchestrates the analysis pipeline:
// returns → correlation → {optimizer, risk} → scheduler → exporter.
//
// Every call is a pure function of its explicit inputs. The correlation
// matrix is threaded through call arguments, never cached on the service,
// so concurrent analyses for different portfolios need no locking.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/correlation"
	"github.com/aristath/allocator/internal/modules/estimation"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/regime"
	"github.com/aristath/allocator/internal/modules/risk"
	"github.com/aristath/allocator/internal/modules/scheduling"
	"github.com/aristath/allocator/internal/modules/snapshots"
)

// Options overrides engine defaults per request. Zero values fall back to
// the component defaults.
type Options struct {
	TargetVolatility float64                   `json:"target_volatility"`
	MaxAssetWeight   float64                   `json:"max_asset_weight"`
	RiskFreeRate     float64                   `json:"risk_free_rate"`
	Frequency        domain.RebalanceFrequency `json:"rebalancing_frequency"`
}

// AnalysisRequest carries everything an analysis needs. Return series and
// weights are owned by the caller (the position-tracking collaborator) and
// passed by value.
type AnalysisRequest struct {
	Assets  []domain.Asset       `json:"assets"`
	Returns map[string][]float64 `json:"returns"`
	Weights map[string]float64   `json:"weights"`
	Options Options              `json:"options"`
}

// Service wires the analysis components together.
type Service struct {
	estimator   estimation.Estimator
	correlation *correlation.Engine
	optimizer   *optimization.MVOptimizer
	analyzer    *risk.Analyzer
	scheduler   *scheduling.Scheduler
	exporter    *snapshots.Exporter
	forecast    regime.Forecast // optional; nil falls back to the labeled rotation
	defaults    optimization.Config
	now         func() time.Time
	log         zerolog.Logger
}

// NewService creates the analysis engine. forecast may be nil; the scheduler
// then uses its explicit rotation fallback. defaults supplies the optimizer
// configuration used when a request carries no overrides.
func NewService(
	estimator estimation.Estimator,
	correlationEngine *correlation.Engine,
	optimizer *optimization.MVOptimizer,
	analyzer *risk.Analyzer,
	scheduler *scheduling.Scheduler,
	exporter *snapshots.Exporter,
	forecast regime.Forecast,
	defaults optimization.Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		estimator:   estimator,
		correlation: correlationEngine,
		optimizer:   optimizer,
		analyzer:    analyzer,
		scheduler:   scheduler,
		exporter:    exporter,
		forecast:    forecast,
		defaults:    defaults,
		now:         time.Now,
		log:         log.With().Str("service", "engine").Logger(),
	}
}

// Analyze runs the full pipeline and returns the exported snapshot.
// Failures surface as the typed errors in the domain package.
func (s *Service) Analyze(ctx context.Context, req AnalysisRequest) (*snapshots.Snapshot, error) {
	if len(req.Assets) < 2 {
		return nil, &domain.InsufficientDataError{Needed: 2, Got: len(req.Assets)}
	}

	corrAnalysis, err := s.correlation.Analyze(req.Returns)
	if err != nil {
		return nil, err
	}

	estimates := make(map[string]domain.Estimate, len(req.Assets))
	for _, asset := range req.Assets {
		est, err := s.estimator.Estimate(asset, req.Returns[asset.Symbol])
		if err != nil {
			return nil, err
		}
		estimates[asset.Symbol] = est
	}

	optCfg := s.defaults
	if req.Options.TargetVolatility > 0 {
		optCfg.TargetVolatility = req.Options.TargetVolatility
	}
	if req.Options.MaxAssetWeight > 0 {
		optCfg.MaxAssetWeight = req.Options.MaxAssetWeight
	}
	if req.Options.RiskFreeRate != 0 {
		optCfg.RiskFreeRate = req.Options.RiskFreeRate
	}

	result, err := s.optimizer.Optimize(ctx, optimization.Input{
		Assets:         req.Assets,
		Estimates:      estimates,
		CurrentWeights: req.Weights,
		Correlations:   corrAnalysis.Matrix,
		Config:         optCfg,
	})
	if err != nil {
		return nil, err
	}

	riskReport, err := s.analyzer.Analyze(req.Weights, corrAnalysis.Matrix)
	if err != nil {
		return nil, err
	}

	scheduler := s.scheduler
	if req.Options.Frequency != "" {
		cfg := scheduling.DefaultConfig()
		cfg.Frequency = req.Options.Frequency
		scheduler = scheduling.NewScheduler(cfg, s.log)
	}
	schedule := scheduler.Plan(s.now(), req.Assets, result, s.forecast)

	symbols := make([]string, len(req.Assets))
	for i, asset := range req.Assets {
		symbols[i] = asset.Symbol
	}

	snapshot := s.exporter.Export(
		s.now(),
		snapshots.Inputs{
			Symbols:          symbols,
			TargetVolatility: optCfg.TargetVolatility,
			MaxAssetWeight:   optCfg.MaxAssetWeight,
			RiskFreeRate:     optCfg.RiskFreeRate,
			Frequency:        scheduleFrequency(req.Options.Frequency),
		},
		corrAnalysis,
		result,
		riskReport,
		schedule,
	)

	s.log.Info().
		Str("snapshot_id", snapshot.ID).
		Int("num_assets", len(req.Assets)).
		Msg("Analysis complete")

	return snapshot, nil
}

func scheduleFrequency(f domain.RebalanceFrequency) domain.RebalanceFrequency {
	if f == "" {
		return domain.FrequencyWeekly
	}
	return f
}

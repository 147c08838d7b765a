// Package snapshots assembles analysis outputs into immutable report
// snapshots and persists them for downstream collaborators.
package snapshots

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/modules/correlation"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/risk"
	"github.com/aristath/allocator/internal/modules/scheduling"
)

// Exporter aggregates component outputs into snapshots. Stateless.
type Exporter struct {
	log zerolog.Logger
}

// NewExporter creates a report exporter.
func NewExporter(log zerolog.Logger) *Exporter {
	return &Exporter{
		log: log.With().Str("component", "exporter").Logger(),
	}
}

// Export builds the immutable snapshot. Inputs are copied, never aliased, so
// later mutation of the component outputs cannot change a published report.
func (e *Exporter) Export(
	now time.Time,
	inputs Inputs,
	corr *correlation.Analysis,
	opt *optimization.Result,
	riskReport *risk.Report,
	schedule []scheduling.Entry,
) *Snapshot {
	snapshot := &Snapshot{
		ID: uuid.NewString(),
		Metadata: Metadata{
			Timestamp: now.UTC(),
			Inputs:    inputs,
		},
		CorrelationAnalysis: roundCorrelation(corr),
		OptimizationResults: roundOptimization(opt),
		RiskAnalysis:        roundRisk(riskReport),
		RebalancingSchedule: roundSchedule(schedule),
	}

	snapshot.Summary = Summary{
		NumAssets:            len(corr.Matrix.Symbols),
		DiversificationScore: round3(corr.DiversificationScore),
		ExpectedReturn:       round3(opt.ExpectedReturn),
		Volatility:           round3(opt.Volatility),
		SharpeRatio:          round3(opt.SharpeRatio),
		NumClusters:          len(corr.Clusters),
		NumWarnings:          len(riskReport.Warnings),
	}

	e.log.Info().
		Str("snapshot_id", snapshot.ID).
		Int("num_assets", snapshot.Summary.NumAssets).
		Msg("Exported analysis snapshot")

	return snapshot
}

func roundCorrelation(a *correlation.Analysis) correlation.Analysis {
	values := make([][]float64, len(a.Matrix.Values))
	for i, row := range a.Matrix.Values {
		values[i] = make([]float64, len(row))
		for j, v := range row {
			values[i][j] = round3(v)
		}
	}

	clusters := make([]correlation.Cluster, len(a.Clusters))
	for i, c := range a.Clusters {
		clusters[i] = c
		clusters[i].Members = append([]string(nil), c.Members...)
		clusters[i].AvgCorrelation = round3(c.AvgCorrelation)
	}

	pairs := make([]correlation.Pair, len(a.StrongPairs))
	for i, p := range a.StrongPairs {
		pairs[i] = p
		pairs[i].Correlation = round3(p.Correlation)
	}

	return correlation.Analysis{
		Matrix:               correlation.NewMatrix(append([]string(nil), a.Matrix.Symbols...), values),
		DiversificationScore: round3(a.DiversificationScore),
		Clusters:             clusters,
		StrongPairs:          pairs,
		Periods:              a.Periods,
	}
}

func roundOptimization(r *optimization.Result) optimization.Result {
	weights := make(map[string]float64, len(r.Weights))
	for symbol, w := range r.Weights {
		weights[symbol] = round3(w)
	}

	recs := make([]optimization.Recommendation, len(r.Recommendations))
	for i, rec := range r.Recommendations {
		recs[i] = rec
		recs[i].CurrentWeight = round3(rec.CurrentWeight)
		recs[i].TargetWeight = round3(rec.TargetWeight)
		recs[i].Delta = round3(rec.Delta)
	}

	return optimization.Result{
		Weights:         weights,
		ExpectedReturn:  round3(r.ExpectedReturn),
		Volatility:      round3(r.Volatility),
		SharpeRatio:     round3(r.SharpeRatio),
		Recommendations: recs,
	}
}

func roundRisk(r *risk.Report) risk.Report {
	exposure := make(map[string]float64, len(r.Exposure))
	for symbol, e := range r.Exposure {
		exposure[symbol] = round3(e)
	}

	warnings := make([]risk.Warning, len(r.Warnings))
	for i, w := range r.Warnings {
		warnings[i] = w
		warnings[i].Value = round3(w.Value)
	}

	return risk.Report{
		Herfindahl:      round3(r.Herfindahl),
		EffectiveAssets: round3(r.EffectiveAssets),
		MaxWeightSymbol: r.MaxWeightSymbol,
		MaxWeight:       round3(r.MaxWeight),
		Exposure:        exposure,
		Warnings:        warnings,
	}
}

func roundSchedule(entries []scheduling.Entry) []scheduling.Entry {
	out := make([]scheduling.Entry, len(entries))
	for i, entry := range entries {
		out[i] = entry
		recs := make([]scheduling.AdjustedRecommendation, len(entry.Recommendations))
		for j, rec := range entry.Recommendations {
			recs[j] = rec
			recs[j].Delta = round3(rec.Delta)
		}
		out[i].Recommendations = recs
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

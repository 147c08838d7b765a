// Package correlation computes correlation matrices and diversification
// statistics from historical return series.
package correlation

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/allocator/internal/domain"
)

// Default thresholds for clustering and pair ranking.
const (
	DefaultLookbackPeriods  = 90
	DefaultClusterThreshold = 0.6
	DefaultStrongThreshold  = 0.7
	DefaultVeryStrongCutoff = 0.9
	minUsableObservations   = 2
)

// Config holds correlation engine parameters.
type Config struct {
	LookbackPeriods  int     // window length; series are truncated to the most recent periods
	ClusterThreshold float64 // min |corr| to the seed for cluster membership
	StrongThreshold  float64 // min |corr| for a pair to be reported
	VeryStrongCutoff float64 // |corr| at or above this is labeled very_strong
	Hierarchical     bool    // opt-in single-linkage merging; greedy grouping is the default
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		LookbackPeriods:  DefaultLookbackPeriods,
		ClusterThreshold: DefaultClusterThreshold,
		StrongThreshold:  DefaultStrongThreshold,
		VeryStrongCutoff: DefaultVeryStrongCutoff,
	}
}

// Engine computes correlation analyses. Every call is a pure function of its
// inputs; the engine holds no per-call state, so concurrent use is safe.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// NewEngine creates a correlation engine.
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	if cfg.LookbackPeriods <= 0 {
		cfg.LookbackPeriods = DefaultLookbackPeriods
	}
	if cfg.ClusterThreshold <= 0 {
		cfg.ClusterThreshold = DefaultClusterThreshold
	}
	if cfg.StrongThreshold <= 0 {
		cfg.StrongThreshold = DefaultStrongThreshold
	}
	if cfg.VeryStrongCutoff <= 0 {
		cfg.VeryStrongCutoff = DefaultVeryStrongCutoff
	}
	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "correlation").Logger(),
	}
}

// Analyze computes the correlation matrix, diversification score, clusters
// and ranked strong pairs for the given per-symbol return series.
//
// Series are aligned to a common window: each is truncated to the most
// recent LookbackPeriods observations, then all are cut to the shortest
// remaining length. Symbols with fewer than two observations are dropped as
// unusable; fewer than two usable symbols is an InsufficientDataError.
func (e *Engine) Analyze(returns map[string][]float64) (*Analysis, error) {
	symbols, aligned, periods := e.alignSeries(returns)
	if len(symbols) < 2 {
		return nil, &domain.InsufficientDataError{
			Needed: 2,
			Got:    len(symbols),
			Detail: "return history too short",
		}
	}

	matrix := e.buildMatrix(symbols, aligned, periods)

	analysis := &Analysis{
		Matrix:               matrix,
		DiversificationScore: diversificationScore(matrix),
		Clusters:             e.greedyClusters(matrix),
		StrongPairs:          e.rankPairs(matrix),
		Periods:              periods,
	}

	if e.cfg.Hierarchical {
		analysis.Clusters = e.singleLinkageClusters(matrix)
	}

	e.log.Debug().
		Int("num_assets", len(symbols)).
		Int("periods", periods).
		Float64("diversification_score", analysis.DiversificationScore).
		Int("clusters", len(analysis.Clusters)).
		Int("strong_pairs", len(analysis.StrongPairs)).
		Msg("Computed correlation analysis")

	return analysis, nil
}

// alignSeries truncates every usable series to the common lookback window.
// Symbols are returned in sorted order so clustering iterates a fixed order.
func (e *Engine) alignSeries(returns map[string][]float64) ([]string, map[string][]float64, int) {
	symbols := make([]string, 0, len(returns))
	for symbol, series := range returns {
		if len(series) >= minUsableObservations {
			symbols = append(symbols, symbol)
		} else {
			e.log.Warn().Str("symbol", symbol).Int("observations", len(series)).
				Msg("Dropping asset with unusable return history")
		}
	}
	sort.Strings(symbols)

	// Common window = min(shortest series, lookback).
	window := e.cfg.LookbackPeriods
	for _, symbol := range symbols {
		if n := len(returns[symbol]); n < window {
			window = n
		}
	}

	aligned := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		series := returns[symbol]
		aligned[symbol] = series[len(series)-window:]
	}
	return symbols, aligned, window
}

// buildMatrix computes the pairwise Pearson correlation matrix.
// Zero-variance series correlate as 0 with everything (divide-by-zero guard);
// the diagonal stays at exactly 1.
func (e *Engine) buildMatrix(symbols []string, aligned map[string][]float64, periods int) *Matrix {
	n := len(symbols)
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
		values[i][i] = 1.0
	}

	variances := make([]float64, n)
	for i, symbol := range symbols {
		variances[i] = stat.Variance(aligned[symbol], nil)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var corr float64
			if variances[i] > 0 && variances[j] > 0 {
				corr = stat.Correlation(aligned[symbols[i]], aligned[symbols[j]], nil)
				if math.IsNaN(corr) {
					corr = 0
				}
				corr = math.Max(-1, math.Min(1, corr))
			}
			values[i][j] = corr
			values[j][i] = corr
		}
	}

	return NewMatrix(symbols, values)
}

// diversificationScore is 100 * (1 - mean |off-diagonal correlation|).
func diversificationScore(m *Matrix) float64 {
	n := len(m.Symbols)
	if n < 2 {
		return 100
	}
	var sum float64
	var count int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += math.Abs(m.Values[i][j])
			count++
		}
	}
	return 100 * (1 - sum/float64(count))
}

// greedyClusters groups assets by single-link correlation to a seed asset.
// Assets are iterated in the matrix's fixed (sorted) order; each unprocessed
// asset seeds a cluster collecting every other unprocessed asset whose
// absolute correlation with the seed exceeds the threshold. The result is
// deliberately non-transitive: members are linked to the seed, not to each
// other. Kept for behavioral compatibility with the original grouping.
func (e *Engine) greedyClusters(m *Matrix) []Cluster {
	n := len(m.Symbols)
	processed := make([]bool, n)
	clusters := make([]Cluster, 0)

	for i := 0; i < n; i++ {
		if processed[i] {
			continue
		}
		processed[i] = true

		members := []string{m.Symbols[i]}
		var corrSum float64
		for j := 0; j < n; j++ {
			if j == i || processed[j] {
				continue
			}
			if math.Abs(m.Values[i][j]) > e.cfg.ClusterThreshold {
				members = append(members, m.Symbols[j])
				corrSum += m.Values[i][j]
				processed[j] = true
			}
		}

		if len(members) < 2 {
			continue
		}
		clusters = append(clusters, Cluster{
			Seed:           m.Symbols[i],
			Members:        members,
			AvgCorrelation: corrSum / float64(len(members)-1),
			Size:           len(members),
		})
	}
	return clusters
}

// singleLinkageClusters merges assets transitively whenever any pair exceeds
// the threshold. Opt-in alternative; never the default.
func (e *Engine) singleLinkageClusters(m *Matrix) []Cluster {
	n := len(m.Symbols)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(m.Values[i][j]) > e.cfg.ClusterThreshold {
				parent[find(j)] = find(i)
			}
		}
	}

	groups := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	clusters := make([]Cluster, 0)
	for _, root := range roots {
		idx := groups[root]
		if len(idx) < 2 {
			continue
		}
		members := make([]string, len(idx))
		seed := idx[0]
		var corrSum float64
		for k, i := range idx {
			members[k] = m.Symbols[i]
			if i != seed {
				corrSum += m.Values[seed][i]
			}
		}
		clusters = append(clusters, Cluster{
			Seed:           m.Symbols[seed],
			Members:        members,
			AvgCorrelation: corrSum / float64(len(idx)-1),
			Size:           len(idx),
		})
	}
	return clusters
}

// rankPairs lists pairs with |corr| >= StrongThreshold, strongest first.
func (e *Engine) rankPairs(m *Matrix) []Pair {
	n := len(m.Symbols)
	pairs := make([]Pair, 0)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			corr := m.Values[i][j]
			if math.Abs(corr) < e.cfg.StrongThreshold {
				continue
			}
			strength := PairStrong
			if math.Abs(corr) >= e.cfg.VeryStrongCutoff {
				strength = PairVeryStrong
			}
			pairs = append(pairs, Pair{
				SymbolA:     m.Symbols[i],
				SymbolB:     m.Symbols[j],
				Correlation: corr,
				Strength:    strength,
			})
		}
	}
	sort.Slice(pairs, func(a, b int) bool {
		return math.Abs(pairs[a].Correlation) > math.Abs(pairs[b].Correlation)
	})
	return pairs
}

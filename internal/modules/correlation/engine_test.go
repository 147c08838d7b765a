package correlation

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/domain"
)

func newTestEngine(cfg Config) *Engine {
	return NewEngine(cfg, zerolog.Nop())
}

func TestAnalyze_PerfectCorrelation(t *testing.T) {
	base := []float64{0.01, -0.02, 0.03, 0.01, -0.01, 0.02, -0.03, 0.01}
	scaled := make([]float64, len(base))
	for i, v := range base {
		scaled[i] = v * 2 // perfectly correlated, different scale
	}

	engine := newTestEngine(DefaultConfig())
	analysis, err := engine.Analyze(map[string][]float64{
		"AAA": base,
		"BBB": scaled,
	})
	require.NoError(t, err)

	corr, err := analysis.Matrix.At("AAA", "BBB")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, corr, 1e-9)

	// Perfect correlation leaves nothing diversified
	assert.InDelta(t, 0.0, analysis.DiversificationScore, 1e-6)
}

func TestAnalyze_PerfectAntiCorrelation(t *testing.T) {
	base := []float64{0.01, -0.02, 0.03, 0.01, -0.01, 0.02}
	inverse := make([]float64, len(base))
	for i, v := range base {
		inverse[i] = -v
	}

	engine := newTestEngine(DefaultConfig())
	analysis, err := engine.Analyze(map[string][]float64{
		"AAA": base,
		"BBB": inverse,
	})
	require.NoError(t, err)

	corr, err := analysis.Matrix.At("AAA", "BBB")
	require.NoError(t, err)
	assert.InDelta(t, -1.0, corr, 1e-9)

	// Anti-correlation counts as concentration too: the score uses |corr|
	assert.InDelta(t, 0.0, analysis.DiversificationScore, 1e-6)
}

func TestAnalyze_MatrixProperties(t *testing.T) {
	returns := map[string][]float64{
		"AAA": {0.01, -0.02, 0.03, 0.01, -0.01, 0.02, -0.03, 0.01},
		"BBB": {0.02, 0.01, -0.01, 0.03, -0.02, 0.01, 0.02, -0.01},
		"CCC": {-0.01, 0.02, 0.01, -0.03, 0.01, -0.02, 0.03, 0.02},
	}

	engine := newTestEngine(DefaultConfig())
	analysis, err := engine.Analyze(returns)
	require.NoError(t, err)

	m := analysis.Matrix
	n := len(m.Symbols)
	require.Equal(t, 3, n)

	for i := 0; i < n; i++ {
		assert.Equal(t, 1.0, m.Values[i][i], "diagonal must be exactly 1")
		for j := 0; j < n; j++ {
			assert.InDelta(t, m.Values[i][j], m.Values[j][i], 1e-12, "matrix must be symmetric")
			assert.LessOrEqual(t, math.Abs(m.Values[i][j]), 1.0)
		}
	}
}

func TestAnalyze_ZeroVarianceSeries(t *testing.T) {
	returns := map[string][]float64{
		"FLAT": {0.01, 0.01, 0.01, 0.01, 0.01},
		"MOVE": {0.02, -0.01, 0.03, -0.02, 0.01},
	}

	engine := newTestEngine(DefaultConfig())
	analysis, err := engine.Analyze(returns)
	require.NoError(t, err)

	corr, err := analysis.Matrix.At("FLAT", "MOVE")
	require.NoError(t, err)
	assert.Equal(t, 0.0, corr, "zero-variance series must correlate as 0")

	self, err := analysis.Matrix.At("FLAT", "FLAT")
	require.NoError(t, err)
	assert.Equal(t, 1.0, self)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	engine := newTestEngine(DefaultConfig())

	_, err := engine.Analyze(map[string][]float64{
		"AAA": {0.01, 0.02, 0.03},
	})
	var insufficient *domain.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2, insufficient.Needed)
	assert.Equal(t, 1, insufficient.Got)
}

func TestAnalyze_DropsUnusableSeries(t *testing.T) {
	// Single-observation series must be dropped, not crash the analysis.
	returns := map[string][]float64{
		"AAA":   {0.01, -0.02, 0.03, 0.01},
		"BBB":   {0.02, 0.01, -0.01, 0.03},
		"EMPTY": {0.01},
	}

	engine := newTestEngine(DefaultConfig())
	analysis, err := engine.Analyze(returns)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, analysis.Matrix.Symbols)
}

func TestAnalyze_LookbackWindow(t *testing.T) {
	long := make([]float64, 200)
	for i := range long {
		long[i] = math.Sin(float64(i)) * 0.02
	}
	short := make([]float64, 200)
	for i := range short {
		short[i] = math.Cos(float64(i)) * 0.02
	}

	engine := newTestEngine(DefaultConfig())
	analysis, err := engine.Analyze(map[string][]float64{"A": long, "B": short})
	require.NoError(t, err)
	assert.Equal(t, DefaultLookbackPeriods, analysis.Periods)
}

func TestGreedyClusters_SeedLinked(t *testing.T) {
	// A-B and A-C correlate above threshold, B-C do not: the greedy grouping
	// still puts all three in one cluster seeded at A.
	m := NewMatrix(
		[]string{"A", "B", "C"},
		[][]float64{
			{1.0, 0.8, 0.7},
			{0.8, 1.0, 0.1},
			{0.7, 0.1, 1.0},
		},
	)

	engine := newTestEngine(DefaultConfig())
	clusters := engine.greedyClusters(m)
	require.Len(t, clusters, 1)
	assert.Equal(t, "A", clusters[0].Seed)
	assert.Equal(t, []string{"A", "B", "C"}, clusters[0].Members)
	assert.Equal(t, 3, clusters[0].Size)
	assert.InDelta(t, 0.75, clusters[0].AvgCorrelation, 1e-9)
}

func TestGreedyClusters_ProcessedMembersDoNotSeed(t *testing.T) {
	// B joins A's cluster, so B cannot seed its own cluster with D even
	// though B-D correlate strongly.
	m := NewMatrix(
		[]string{"A", "B", "D"},
		[][]float64{
			{1.0, 0.8, 0.1},
			{0.8, 1.0, 0.9},
			{0.1, 0.9, 1.0},
		},
	)

	engine := newTestEngine(DefaultConfig())
	clusters := engine.greedyClusters(m)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"A", "B"}, clusters[0].Members)
}

func TestSingleLinkageClusters_Transitive(t *testing.T) {
	// Same shape as the greedy non-seed case: single linkage merges all
	// three through the B-D edge.
	m := NewMatrix(
		[]string{"A", "B", "D"},
		[][]float64{
			{1.0, 0.8, 0.1},
			{0.8, 1.0, 0.9},
			{0.1, 0.9, 1.0},
		},
	)

	cfg := DefaultConfig()
	cfg.Hierarchical = true
	engine := newTestEngine(cfg)
	clusters := engine.singleLinkageClusters(m)
	require.Len(t, clusters, 1)
	assert.Equal(t, 3, clusters[0].Size)
}

func TestRankPairs_StrengthLabels(t *testing.T) {
	m := NewMatrix(
		[]string{"A", "B", "C"},
		[][]float64{
			{1.0, 0.95, 0.75},
			{0.95, 1.0, 0.3},
			{0.75, 0.3, 1.0},
		},
	)

	engine := newTestEngine(DefaultConfig())
	pairs := engine.rankPairs(m)
	require.Len(t, pairs, 2)

	// Strongest first
	assert.Equal(t, "A", pairs[0].SymbolA)
	assert.Equal(t, "B", pairs[0].SymbolB)
	assert.Equal(t, PairVeryStrong, pairs[0].Strength)
	assert.Equal(t, PairStrong, pairs[1].Strength)
}

func TestSubmatrix_UnknownSymbol(t *testing.T) {
	m := NewMatrix([]string{"A", "B"}, [][]float64{{1, 0.5}, {0.5, 1}})

	_, err := m.Submatrix([]string{"A", "ZZZ"})
	var notFound *domain.AssetNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ZZZ", notFound.Symbol)
}

func TestSubmatrix_PreservesOrder(t *testing.T) {
	m := NewMatrix(
		[]string{"A", "B", "C"},
		[][]float64{
			{1.0, 0.2, 0.4},
			{0.2, 1.0, 0.6},
			{0.4, 0.6, 1.0},
		},
	)

	sub, err := m.Submatrix([]string{"C", "A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, sub.Symbols)
	assert.Equal(t, 0.4, sub.Values[0][1])
	assert.Equal(t, 1.0, sub.Values[0][0])
}

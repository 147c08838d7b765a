package correlation

import (
	"github.com/aristath/allocator/internal/domain"
)

// Matrix is a symbol-indexed correlation matrix. Symmetric with a unit
// diagonal; values lie in [-1, 1].
type Matrix struct {
	Symbols []string    `json:"symbols"`
	Values  [][]float64 `json:"values"`

	index map[string]int
}

// NewMatrix builds a Matrix over the given symbols. The values slice is
// adopted, not copied; callers must not mutate it afterwards.
func NewMatrix(symbols []string, values [][]float64) *Matrix {
	index := make(map[string]int, len(symbols))
	for i, s := range symbols {
		index[s] = i
	}
	return &Matrix{Symbols: symbols, Values: values, index: index}
}

// At returns the correlation between two symbols.
func (m *Matrix) At(a, b string) (float64, error) {
	i, ok := m.lookup(a)
	if !ok {
		return 0, &domain.AssetNotFoundError{Symbol: a}
	}
	j, ok := m.lookup(b)
	if !ok {
		return 0, &domain.AssetNotFoundError{Symbol: b}
	}
	return m.Values[i][j], nil
}

// Submatrix extracts the correlation submatrix for the given symbols,
// preserving their order.
func (m *Matrix) Submatrix(symbols []string) (*Matrix, error) {
	idx := make([]int, len(symbols))
	for k, s := range symbols {
		i, ok := m.lookup(s)
		if !ok {
			return nil, &domain.AssetNotFoundError{Symbol: s}
		}
		idx[k] = i
	}

	values := make([][]float64, len(symbols))
	for a := range symbols {
		values[a] = make([]float64, len(symbols))
		for b := range symbols {
			values[a][b] = m.Values[idx[a]][idx[b]]
		}
	}
	return NewMatrix(symbols, values), nil
}

func (m *Matrix) lookup(symbol string) (int, bool) {
	if m.index == nil {
		m.index = make(map[string]int, len(m.Symbols))
		for i, s := range m.Symbols {
			m.index[s] = i
		}
	}
	i, ok := m.index[symbol]
	return i, ok
}

// Cluster is a greedily-grouped set of symbols, each linked to the seed by
// at least the cluster threshold in absolute correlation. Membership is not
// transitive: members need not correlate with each other.
type Cluster struct {
	Seed           string   `json:"seed"`
	Members        []string `json:"members"`
	AvgCorrelation float64  `json:"avg_correlation"`
	Size           int      `json:"size"`
}

// PairStrength labels a high-correlation pair.
type PairStrength string

const (
	PairStrong     PairStrength = "strong"
	PairVeryStrong PairStrength = "very_strong"
)

// Pair is a ranked high-correlation asset pair.
type Pair struct {
	SymbolA     string       `json:"symbol_a"`
	SymbolB     string       `json:"symbol_b"`
	Correlation float64      `json:"correlation"`
	Strength    PairStrength `json:"strength"`
}

// Analysis is the full output of the correlation engine.
type Analysis struct {
	Matrix               *Matrix   `json:"matrix"`
	DiversificationScore float64   `json:"diversification_score"`
	Clusters             []Cluster `json:"clusters"`
	StrongPairs          []Pair    `json:"strong_pairs"`
	Periods              int       `json:"periods"`
}

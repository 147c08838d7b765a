package snapshots

import (
	"time"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/correlation"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/risk"
	"github.com/aristath/allocator/internal/modules/scheduling"
)

// Inputs records the configuration an analysis ran with, for reproducibility.
type Inputs struct {
	Symbols          []string                  `json:"symbols"`
	TargetVolatility float64                   `json:"target_volatility"`
	MaxAssetWeight   float64                   `json:"max_asset_weight"`
	RiskFreeRate     float64                   `json:"risk_free_rate"`
	Frequency        domain.RebalanceFrequency `json:"rebalancing_frequency"`
}

// Metadata describes when and with what inputs the snapshot was produced.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Inputs    Inputs    `json:"inputs"`
}

// Summary condenses the snapshot for list views and messaging collaborators.
type Summary struct {
	NumAssets            int     `json:"num_assets"`
	DiversificationScore float64 `json:"diversification_score"`
	ExpectedReturn       float64 `json:"expected_return"`
	Volatility           float64 `json:"volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	NumClusters          int     `json:"num_clusters"`
	NumWarnings          int     `json:"num_warnings"`
}

// Snapshot is the immutable, serializable analysis report handed to the
// storage collaborator. All weights and ratios are rounded to three decimals.
type Snapshot struct {
	ID                  string               `json:"id"`
	Metadata            Metadata             `json:"metadata"`
	CorrelationAnalysis correlation.Analysis `json:"correlation_analysis"`
	OptimizationResults optimization.Result  `json:"optimization_results"`
	RiskAnalysis        risk.Report          `json:"risk_analysis"`
	RebalancingSchedule []scheduling.Entry   `json:"rebalancing_schedule"`
	Summary             Summary              `json:"summary"`
}

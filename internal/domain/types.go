// Package domain holds the shared types of the analysis engine.
// It is pure: no infrastructure dependencies.
package domain

import "time"

// Asset identifies a position in the analysis universe.
type Asset struct {
	Symbol string `json:"symbol"`
	Class  string `json:"class"` // e.g. "forex", "crypto", "commodity", "equity"
}

// Estimate holds annualized return and volatility estimates for one asset.
type Estimate struct {
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
}

// MarketCondition labels the assumed regime for a future period.
type MarketCondition string

const (
	ConditionStable   MarketCondition = "stable"
	ConditionVolatile MarketCondition = "volatile"
	ConditionTrending MarketCondition = "trending"
)

// RebalanceFrequency determines the spacing of scheduled rebalance entries.
type RebalanceFrequency string

const (
	FrequencyDaily   RebalanceFrequency = "daily"
	FrequencyWeekly  RebalanceFrequency = "weekly"
	FrequencyMonthly RebalanceFrequency = "monthly"
)

// Interval returns the calendar spacing for the frequency.
// Unknown values fall back to weekly.
func (f RebalanceFrequency) Interval() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// Action tags the direction of a rebalance recommendation.
type Action string

const (
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
)

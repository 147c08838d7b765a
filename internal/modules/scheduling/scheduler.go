// Package scheduling projects an optimization result into a forward
// rebalancing plan adjusted by market-condition forecasts.
package scheduling

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/aristath/allocator/internal/modules/regime"
)

// Scheduling defaults.
const (
	DefaultPeriods  = 4
	DefaultMinDelta = 0.03

	volatileDampening = 0.5
	trendingBoost     = 1.2
)

// Config holds scheduler parameters.
type Config struct {
	Periods         int                       // number of future entries
	Frequency       domain.RebalanceFrequency // spacing between entries
	MinDelta        float64                   // adjusted deltas at or below this are dropped
	MomentumClasses map[string]bool           // asset classes boosted in trending markets
}

// DefaultConfig returns the standard scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Periods:         DefaultPeriods,
		Frequency:       domain.FrequencyWeekly,
		MinDelta:        DefaultMinDelta,
		MomentumClasses: map[string]bool{"crypto": true},
	}
}

// AdjustedRecommendation is a per-asset action scaled for the assumed
// market condition of its period.
type AdjustedRecommendation struct {
	Symbol    string        `json:"symbol"`
	Action    domain.Action `json:"action"`
	Delta     float64       `json:"delta"`
	Rationale string        `json:"rationale"`
}

// Entry is one projected rebalancing date.
type Entry struct {
	Date            time.Time                `json:"date"`
	Condition       domain.MarketCondition   `json:"condition"`
	ConditionSource string                   `json:"condition_source"`
	Recommendations []AdjustedRecommendation `json:"recommendations"`
}

// Scheduler builds rebalancing plans. Stateless; safe for concurrent use.
type Scheduler struct {
	cfg Config
	log zerolog.Logger
}

// NewScheduler creates a rebalancing scheduler.
func NewScheduler(cfg Config, log zerolog.Logger) *Scheduler {
	if cfg.Periods <= 0 {
		cfg.Periods = DefaultPeriods
	}
	if cfg.Frequency == "" {
		cfg.Frequency = domain.FrequencyWeekly
	}
	if cfg.MinDelta <= 0 {
		cfg.MinDelta = DefaultMinDelta
	}
	if cfg.MomentumClasses == nil {
		cfg.MomentumClasses = map[string]bool{"crypto": true}
	}
	return &Scheduler{
		cfg: cfg,
		log: log.With().Str("component", "scheduler").Logger(),
	}
}

// Plan projects the optimizer's recommendations over the next Periods
// rebalancing dates. Condition labels come from the supplied forecast; a nil
// forecast falls back to the fixed rotation, which is logged and labeled in
// every entry rather than silently assumed.
func (s *Scheduler) Plan(
	now time.Time,
	assets []domain.Asset,
	result *optimization.Result,
	forecast regime.Forecast,
) []Entry {
	if forecast == nil {
		s.log.Warn().Msg("No regime forecast supplied, using fixed rotation fallback")
		forecast = regime.RotationForecast{}
	}

	classes := make(map[string]string, len(assets))
	for _, asset := range assets {
		classes[asset.Symbol] = asset.Class
	}

	conditions := forecast.Conditions(s.cfg.Periods)
	interval := s.cfg.Frequency.Interval()

	entries := make([]Entry, 0, s.cfg.Periods)
	for k := 1; k <= s.cfg.Periods; k++ {
		condition := conditions[k-1]
		entry := Entry{
			Date:            now.Add(time.Duration(k) * interval),
			Condition:       condition,
			ConditionSource: forecast.Source(),
			Recommendations: make([]AdjustedRecommendation, 0, len(result.Recommendations)),
		}

		for _, rec := range result.Recommendations {
			adjusted, rationale := s.adjust(rec, condition, classes[rec.Symbol])
			if math.Abs(adjusted) <= s.cfg.MinDelta {
				continue
			}
			entry.Recommendations = append(entry.Recommendations, AdjustedRecommendation{
				Symbol:    rec.Symbol,
				Action:    rec.Action,
				Delta:     adjusted,
				Rationale: rationale,
			})
		}
		entries = append(entries, entry)
	}

	s.log.Debug().
		Int("entries", len(entries)).
		Str("frequency", string(s.cfg.Frequency)).
		Str("condition_source", forecast.Source()).
		Msg("Built rebalancing schedule")

	return entries
}

// adjust scales a recommendation delta for the assumed condition:
// volatile halves it, trending boosts increases of momentum-class assets,
// stable leaves it unchanged.
func (s *Scheduler) adjust(
	rec optimization.Recommendation,
	condition domain.MarketCondition,
	class string,
) (float64, string) {
	switch condition {
	case domain.ConditionVolatile:
		return rec.Delta * volatileDampening, fmt.Sprintf("delta scaled x%.1f for volatile market", volatileDampening)
	case domain.ConditionTrending:
		if rec.Action == domain.ActionIncrease && s.cfg.MomentumClasses[class] {
			return rec.Delta * trendingBoost, fmt.Sprintf("momentum %s increase scaled x%.1f for trending market", class, trendingBoost)
		}
		return rec.Delta, "unchanged in trending market"
	default:
		return rec.Delta, "unchanged in stable market"
	}
}

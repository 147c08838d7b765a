// Package optimization solves the constrained mean-variance allocation
// problem: maximize the Sharpe ratio subject to full investment, per-asset
// bounds, and a portfolio volatility pinned to the configured target.
package optimization

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/allocator/internal/domain"
)

// penaltyWeight scales the quadratic penalties for the equality constraints.
const penaltyWeight = 1000.0

// MVOptimizer performs mean-variance portfolio optimization.
type MVOptimizer struct {
	log zerolog.Logger
}

// NewMVOptimizer creates a new mean-variance optimizer.
func NewMVOptimizer(log zerolog.Logger) *MVOptimizer {
	return &MVOptimizer{
		log: log.With().Str("component", "mv_optimizer").Logger(),
	}
}

// Optimize solves the allocation problem.
//
// Mathematical formulation:
//   - maximize (μ'w - r_f) / sqrt(w'Σw)
//   - subject to Σw = 1, sqrt(w'Σw) = target_volatility, 0 ≤ w_i ≤ max_weight
//   - Σ = Corr ⊙ outer(vol, vol)
//
// Equality constraints are enforced with quadratic penalties and bounds with
// projection; the initial guess is equal weights. The solver runs on its own
// goroutine under a deterministic iteration cap and a wall-clock timeout;
// timeouts, non-convergence and internal numerical panics all surface as
// *domain.OptimizationFailure.
func (mvo *MVOptimizer) Optimize(ctx context.Context, in Input) (*Result, error) {
	cfg := withDefaults(in.Config)
	n := len(in.Assets)
	if n < 2 {
		return nil, &domain.InsufficientDataError{Needed: 2, Got: n, Detail: "optimization requires at least 2 assets"}
	}
	if cfg.MaxAssetWeight*float64(n) < 1.0 {
		return nil, &domain.InvalidConfigurationError{
			Detail: fmt.Sprintf("max asset weight %.2f over %d assets cannot reach full investment", cfg.MaxAssetWeight, n),
		}
	}

	symbols := make([]string, n)
	mu := make([]float64, n)
	vol := make([]float64, n)
	for i, asset := range in.Assets {
		est, ok := in.Estimates[asset.Symbol]
		if !ok {
			return nil, fmt.Errorf("missing return estimate for %s", asset.Symbol)
		}
		symbols[i] = asset.Symbol
		mu[i] = est.ExpectedReturn
		vol[i] = est.Volatility
	}

	corr, err := in.Correlations.Submatrix(symbols)
	if err != nil {
		return nil, err
	}

	// Σ = Corr ⊙ outer(vol, vol)
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, corr.Values[i][j]*vol[i]*vol[j])
		}
	}

	mvo.log.Debug().
		Int("num_assets", n).
		Float64("target_volatility", cfg.TargetVolatility).
		Float64("max_weight", cfg.MaxAssetWeight).
		Msg("Starting mean-variance optimization")

	xFinal, err := mvo.solve(ctx, mu, sigma, cfg)
	if err != nil {
		return nil, err
	}

	weights := finalizeWeights(xFinal, cfg.MaxAssetWeight)

	ret, volatility := portfolioStats(weights, mu, sigma)
	if math.Abs(volatility-cfg.TargetVolatility) > cfg.VolatilityTolerance {
		return nil, &domain.OptimizationFailure{
			Diagnostic: fmt.Sprintf("converged to volatility %.4f, outside tolerance of target %.4f", volatility, cfg.TargetVolatility),
		}
	}

	sharpe := 0.0
	if volatility > 0 {
		sharpe = (ret - cfg.RiskFreeRate) / volatility
	}

	result := &Result{
		Weights:        make(map[string]float64, n),
		ExpectedReturn: ret,
		Volatility:     volatility,
		SharpeRatio:    sharpe,
	}
	for i, symbol := range symbols {
		result.Weights[symbol] = weights[i]
	}
	result.Recommendations = buildRecommendations(in.Assets, in.CurrentWeights, result.Weights, cfg.RecommendationThreshold)

	mvo.log.Info().
		Float64("expected_return", ret).
		Float64("volatility", volatility).
		Float64("sharpe_ratio", sharpe).
		Int("recommendations", len(result.Recommendations)).
		Msg("Optimization converged")

	return result, nil
}

// solve runs the penalized problem on a worker goroutine so the caller's
// timeout is honored even if the solver stalls internally.
func (mvo *MVOptimizer) solve(ctx context.Context, mu []float64, sigma *mat.SymDense, cfg Config) ([]float64, error) {
	type solveOutcome struct {
		x   []float64
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	outcome := make(chan solveOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcome <- solveOutcome{err: &domain.OptimizationFailure{
					Diagnostic: fmt.Sprintf("numerical error in solver: %v", r),
				}}
			}
		}()
		x, err := mvo.runSolvers(mu, sigma, cfg)
		outcome <- solveOutcome{x: x, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &domain.OptimizationFailure{
			Diagnostic: "solver exceeded wall-clock timeout",
			Err:        ctx.Err(),
		}
	case out := <-outcome:
		return out.x, out.err
	}
}

// runSolvers attempts BFGS first and falls back to Nelder-Mead when BFGS
// fails to converge.
func (mvo *MVOptimizer) runSolvers(mu []float64, sigma *mat.SymDense, cfg Config) ([]float64, error) {
	n := len(mu)
	problem := buildProblem(mu, sigma, cfg)

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	settings := &optimize.Settings{
		MajorIterations: cfg.MaxIterations,
		Runtime:         cfg.Timeout,
	}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err != nil || !successStatuses[result.Status] {
		mvo.log.Debug().Err(err).Msg("BFGS did not converge, retrying with Nelder-Mead")
		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
		if err != nil {
			return nil, &domain.OptimizationFailure{Diagnostic: "solver error", Err: err}
		}
		if !successStatuses[result.Status] {
			return nil, &domain.OptimizationFailure{
				Diagnostic: fmt.Sprintf("solver did not converge: status=%v", result.Status),
			}
		}
	}

	return result.X, nil
}

// buildProblem constructs the penalized objective and its gradient.
func buildProblem(mu []float64, sigma *mat.SymDense, cfg Config) optimize.Problem {
	n := len(mu)
	targetVar := cfg.TargetVolatility * cfg.TargetVolatility

	return optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToBounds(x, cfg.MaxAssetWeight)

			ret, variance := rawStats(xProj, mu, sigma)
			stdDev := math.Sqrt(math.Max(variance, 1e-10))

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}

			obj := -(ret - cfg.RiskFreeRate) / stdDev
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)
			obj += penaltyWeight * (variance - targetVar) * (variance - targetVar)
			return obj
		},
		Grad: func(grad, x []float64) {
			xProj := projectToBounds(x, cfg.MaxAssetWeight)

			ret, variance := rawStats(xProj, mu, sigma)
			stdDev := math.Sqrt(math.Max(variance, 1e-10))
			excess := ret - cfg.RiskFreeRate

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}

			for i := 0; i < n; i++ {
				var dVariance float64
				for j := 0; j < n; j++ {
					dVariance += 2 * sigma.At(i, j) * xProj[j]
				}
				grad[i] = -mu[i]/stdDev + excess*dVariance/(2*stdDev*stdDev*stdDev)
				grad[i] += 2 * penaltyWeight * (variance - targetVar) * dVariance
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
			}
		},
	}
}

// finalizeWeights projects the raw solution to bounds, normalizes to full
// investment, and rounds to three decimals. The rounding residual is folded
// into the weight with the most headroom below its bound so the published
// weights still sum to 1 without breaching bounds.
func finalizeWeights(x []float64, maxWeight float64) []float64 {
	n := len(x)
	weights := projectToBounds(x, maxWeight)

	sum := 0.0
	for i := range weights {
		sum += weights[i]
	}
	for i := range weights {
		weights[i] = math.Max(0, weights[i]/math.Max(sum, 1e-10))
	}

	rounded := make([]float64, n)
	roundedSum := 0.0
	for i := range weights {
		rounded[i] = math.Round(weights[i]*1000) / 1000
		roundedSum += rounded[i]
	}

	residual := 1.0 - roundedSum
	if residual != 0 {
		best := 0
		bestHeadroom := maxWeight - rounded[0]
		for i := 1; i < n; i++ {
			if headroom := maxWeight - rounded[i]; headroom > bestHeadroom {
				best = i
				bestHeadroom = headroom
			}
		}
		rounded[best] = math.Round((rounded[best]+residual)*1000) / 1000
	}

	return rounded
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.TargetVolatility <= 0 {
		cfg.TargetVolatility = def.TargetVolatility
	}
	if cfg.MaxAssetWeight <= 0 {
		cfg.MaxAssetWeight = def.MaxAssetWeight
	}
	if cfg.RiskFreeRate == 0 {
		cfg.RiskFreeRate = def.RiskFreeRate
	}
	if cfg.RecommendationThreshold <= 0 {
		cfg.RecommendationThreshold = def.RecommendationThreshold
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.VolatilityTolerance <= 0 {
		cfg.VolatilityTolerance = def.VolatilityTolerance
	}
	return cfg
}

func projectToBounds(x []float64, maxWeight float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(0, math.Min(maxWeight, x[i]))
	}
	return proj
}

func rawStats(x, mu []float64, sigma *mat.SymDense) (ret, variance float64) {
	n := len(x)
	for i := 0; i < n; i++ {
		ret += mu[i] * x[i]
		for j := 0; j < n; j++ {
			variance += x[i] * x[j] * sigma.At(i, j)
		}
	}
	return ret, variance
}

func portfolioStats(weights, mu []float64, sigma *mat.SymDense) (ret, volatility float64) {
	ret, variance := rawStats(weights, mu, sigma)
	return ret, math.Sqrt(math.Max(variance, 0))
}

func buildRecommendations(
	assets []domain.Asset,
	current map[string]float64,
	target map[string]float64,
	threshold float64,
) []Recommendation {
	recs := make([]Recommendation, 0)
	for _, asset := range assets {
		cur := current[asset.Symbol]
		tgt := target[asset.Symbol]
		delta := tgt - cur
		if math.Abs(delta) <= threshold {
			continue
		}
		action := domain.ActionIncrease
		if delta < 0 {
			action = domain.ActionDecrease
		}
		recs = append(recs, Recommendation{
			Symbol:        asset.Symbol,
			Action:        action,
			CurrentWeight: cur,
			TargetWeight:  tgt,
			Delta:         delta,
		})
	}
	return recs
}

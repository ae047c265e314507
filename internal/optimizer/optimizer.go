// Package optimizer computes constrained asset allocations from historical
// returns. Four objective formulations are supported, all solved over the
// weight set {sum w = 1, min <= w_i <= max} from an equal-weight start.
package optimizer

import (
	"fmt"
	"math"

	"speedquant/internal/errors"
	"speedquant/internal/logging"
)

// Optimization methods.
const (
	MethodMeanVariance  = "mean_variance"
	MethodRiskParity    = "risk_parity"
	MethodMinVolatility = "min_volatility"
	MethodMaxSharpe     = "max_sharpe"
)

const frontierPoints = 20

// Constraints are uniform per-asset weight bounds.
type Constraints struct {
	MinWeight float64 `json:"min_weight" yaml:"min_weight"`
	MaxWeight float64 `json:"max_weight" yaml:"max_weight"`
}

// Config represents optimizer configuration.
type Config struct {
	Method       string
	RiskFreeRate float64
	Constraints  Constraints
}

// DefaultConfig returns the default optimizer configuration.
func DefaultConfig() *Config {
	return &Config{
		Method:       MethodMeanVariance,
		RiskFreeRate: 0.02,
		Constraints:  Constraints{MinWeight: 0, MaxWeight: 1},
	}
}

// Request carries the inputs for one optimization: per-asset historical
// return series, optional externally supplied expected returns and an
// optional portfolio return target (mean-variance only).
type Request struct {
	Returns         map[string][]float64 `json:"returns"`
	ExpectedReturns map[string]float64   `json:"expected_returns,omitempty"`
	ReturnTarget    *float64             `json:"return_target,omitempty"`
}

// FrontierPoint is one efficient-frontier sample.
type FrontierPoint struct {
	Return      float64 `json:"return"`
	Volatility  float64 `json:"volatility"`
	SharpeRatio float64 `json:"sharpe_ratio"`
}

// Result is the structured outcome of one optimization. Failures are
// carried in Error instead of propagating across the core boundary.
type Result struct {
	Success            bool               `json:"success"`
	Error              *errors.AppError   `json:"error,omitempty"`
	Method             string             `json:"optimization_method"`
	Weights            map[string]float64 `json:"optimal_weights,omitempty"`
	ExpectedReturn     float64            `json:"expected_return"`
	ExpectedVolatility float64            `json:"expected_volatility"`
	SharpeRatio        float64            `json:"sharpe_ratio"`
	EfficientFrontier  []FrontierPoint    `json:"efficient_frontier,omitempty"`
	Constraints        Constraints        `json:"constraints"`
}

// Optimizer runs allocation solves under one configuration. Stateless
// across Run calls; independent calls are safe to run concurrently.
type Optimizer struct {
	config *Config
	log    *logging.Logger
}

// New creates an optimizer.
func New(config *Config, log *logging.Logger) *Optimizer {
	return &Optimizer{
		config: config,
		log:    log.WithComponent("optimizer"),
	}
}

// Run executes one optimization and returns a structured result. Panics
// inside objective evaluation are converted to failure results with the
// underlying message preserved.
func (o *Optimizer) Run(req *Request) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result = o.failure(errors.NewAppError(errors.ErrCodeOptimizationFailed,
				fmt.Sprintf("optimization failed: %v", r), nil))
		}
	}()

	in, err := buildInputs(req.Returns, req.ExpectedReturns)
	if err != nil {
		return o.failure(errors.NewAppError(errors.ErrCodeInvalidInput, err.Error(), nil))
	}

	var (
		w            []float64
		solveErr     error
		withFrontier bool
	)
	switch o.config.Method {
	case MethodMeanVariance:
		w, solveErr = o.solveMeanVariance(in, req.ReturnTarget)
		withFrontier = true
	case MethodRiskParity:
		w, solveErr = o.solveRiskParity(in)
	case MethodMinVolatility:
		w, solveErr = o.solveMinVolatility(in)
	case MethodMaxSharpe:
		w, solveErr = o.solveMaxSharpe(in)
		withFrontier = true
	default:
		return o.failure(errors.NewAppError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unknown optimization method: %s", o.config.Method), nil))
	}
	if solveErr != nil {
		return o.failure(errors.NewAppError(errors.ErrCodeOptimizationFailed, solveErr.Error(), nil))
	}

	ret := portfolioReturn(w, in.mu)
	vol := portfolioVolatility(w, in.cov)

	weights := make(map[string]float64, len(in.assets))
	for i, asset := range in.assets {
		weights[asset] = w[i]
	}

	result = &Result{
		Success:            true,
		Method:             o.config.Method,
		Weights:            weights,
		ExpectedReturn:     ret,
		ExpectedVolatility: vol,
		SharpeRatio:        o.sharpe(ret, vol),
		Constraints:        o.config.Constraints,
	}
	if withFrontier {
		result.EfficientFrontier = o.frontier(in)
	}

	o.log.WithFields(map[string]interface{}{
		"method":     o.config.Method,
		"assets":     len(in.assets),
		"return":     ret,
		"volatility": vol,
	}).Info("optimization completed")
	return result
}

func (o *Optimizer) failure(err *errors.AppError) *Result {
	o.log.WithError(err).Error("optimization failed")
	return &Result{
		Success:     false,
		Error:       err,
		Method:      o.config.Method,
		Constraints: o.config.Constraints,
	}
}

func (o *Optimizer) newProblem(in *inputs, objective func([]float64) float64) *problem {
	return &problem{
		n:         len(in.assets),
		lo:        o.config.Constraints.MinWeight,
		hi:        o.config.Constraints.MaxWeight,
		objective: objective,
	}
}

// solveMeanVariance minimizes volatility, or with a target, the squared
// deviation of portfolio return from it subject to reaching it.
func (o *Optimizer) solveMeanVariance(in *inputs, target *float64) ([]float64, error) {
	if target == nil {
		return o.solveMinVolatility(in)
	}
	p := o.newProblem(in, func(w []float64) float64 {
		miss := portfolioReturn(w, in.mu) - *target
		return miss * miss
	})
	p.mu, p.target, p.hasTarget = in.mu, *target, true
	return minimize(p)
}

// solveRiskParity minimizes the squared deviations of each asset's risk
// contribution from the equal-contribution target.
func (o *Optimizer) solveRiskParity(in *inputs) ([]float64, error) {
	n := len(in.assets)
	p := o.newProblem(in, func(w []float64) float64 {
		vol := portfolioVolatility(w, in.cov)
		if vol == 0 {
			// Every contribution and the equal-share target vanish with
			// the volatility, so the objective's limit value is 0.
			return 0
		}
		sum := 0.0
		for i := range w {
			marginal := 0.0
			for j := range w {
				marginal += in.cov[i][j] * w[j]
			}
			contribution := w[i] * marginal / vol
			miss := contribution - vol/float64(n)
			sum += miss * miss
		}
		return sum
	})
	return minimize(p)
}

func (o *Optimizer) solveMinVolatility(in *inputs) ([]float64, error) {
	p := o.newProblem(in, func(w []float64) float64 {
		return portfolioVolatility(w, in.cov)
	})
	return minimize(p)
}

// solveMaxSharpe minimizes the negated Sharpe ratio.
func (o *Optimizer) solveMaxSharpe(in *inputs) ([]float64, error) {
	p := o.newProblem(in, func(w []float64) float64 {
		return -o.sharpe(portfolioReturn(w, in.mu), portfolioVolatility(w, in.cov))
	})
	return minimize(p)
}

// sharpe reports 0 for a zero-volatility portfolio; the ratio's infinity
// has no JSON representation.
func (o *Optimizer) sharpe(ret, vol float64) float64 {
	if vol == 0 {
		return 0
	}
	return (ret - o.config.RiskFreeRate) / vol
}

// frontier traces minimum-volatility portfolios across evenly spaced
// return targets between the single-asset minimum and maximum expected
// returns. Targets whose solve fails are dropped without error.
func (o *Optimizer) frontier(in *inputs) []FrontierPoint {
	minR, maxR := in.mu[0], in.mu[0]
	for _, m := range in.mu[1:] {
		minR = math.Min(minR, m)
		maxR = math.Max(maxR, m)
	}

	points := make([]FrontierPoint, 0, frontierPoints)
	for i := 0; i < frontierPoints; i++ {
		target := minR + (maxR-minR)*float64(i)/float64(frontierPoints-1)

		p := o.newProblem(in, func(w []float64) float64 {
			return portfolioVolatility(w, in.cov)
		})
		p.mu, p.target, p.hasTarget = in.mu, target, true

		w, err := minimize(p)
		if err != nil {
			continue
		}
		vol := portfolioVolatility(w, in.cov)
		points = append(points, FrontierPoint{
			Return:      target,
			Volatility:  vol,
			SharpeRatio: o.sharpe(target, vol),
		})
	}
	return points
}

package optimizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speedquant/internal/errors"
	"speedquant/internal/logging"
)

func sampleReturns() map[string][]float64 {
	return map[string][]float64{
		"AAPL": {0.010, -0.005, 0.008, 0.012, -0.002, 0.006, 0.009, -0.004},
		"MSFT": {0.004, 0.002, -0.001, 0.005, 0.003, -0.002, 0.004, 0.001},
		"TLT":  {-0.002, 0.003, 0.001, -0.001, 0.002, 0.003, -0.001, 0.002},
	}
}

func newOptimizer(method string, constraints Constraints) *Optimizer {
	return New(&Config{
		Method:       method,
		RiskFreeRate: 0.02,
		Constraints:  constraints,
	}, logging.NewNop())
}

func fullRange() Constraints {
	return Constraints{MinWeight: 0, MaxWeight: 1}
}

func assertFeasible(t *testing.T, result *Result, c Constraints) {
	t.Helper()
	require.True(t, result.Success)

	sum := 0.0
	for asset, w := range result.Weights {
		sum += w
		assert.GreaterOrEqualf(t, w, c.MinWeight-1e-9, "weight for %s below bound", asset)
		assert.LessOrEqualf(t, w, c.MaxWeight+1e-9, "weight for %s above bound", asset)
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestAllMethodsProduceFeasibleWeights(t *testing.T) {
	methods := []string{MethodMeanVariance, MethodRiskParity, MethodMinVolatility, MethodMaxSharpe}
	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			result := newOptimizer(method, fullRange()).Run(&Request{Returns: sampleReturns()})
			assertFeasible(t, result, fullRange())
			assert.Equal(t, method, result.Method)
			assert.GreaterOrEqual(t, result.ExpectedVolatility, 0.0)
		})
	}
}

func TestBoundsAreRespected(t *testing.T) {
	c := Constraints{MinWeight: 0.1, MaxWeight: 0.6}
	for _, method := range []string{MethodMinVolatility, MethodMaxSharpe, MethodRiskParity} {
		result := newOptimizer(method, c).Run(&Request{Returns: sampleReturns()})
		assertFeasible(t, result, c)
	}
}

func TestMinVolatilityBeatsEqualWeight(t *testing.T) {
	returns := sampleReturns()
	result := newOptimizer(MethodMinVolatility, fullRange()).Run(&Request{Returns: returns})
	require.True(t, result.Success)

	in, err := buildInputs(returns, nil)
	require.NoError(t, err)
	equal := make([]float64, len(in.assets))
	for i := range equal {
		equal[i] = 1.0 / float64(len(equal))
	}
	assert.LessOrEqual(t, result.ExpectedVolatility, portfolioVolatility(equal, in.cov)+1e-12)
}

func TestMaxSharpeBeatsMeanVariance(t *testing.T) {
	returns := sampleReturns()
	mv := newOptimizer(MethodMeanVariance, fullRange()).Run(&Request{Returns: returns})
	ms := newOptimizer(MethodMaxSharpe, fullRange()).Run(&Request{Returns: returns})
	require.True(t, mv.Success)
	require.True(t, ms.Success)
	assert.GreaterOrEqual(t, ms.SharpeRatio, mv.SharpeRatio-1e-9)
}

func TestRiskParityAntiCorrelated(t *testing.T) {
	// Two perfectly anti-correlated assets with equal volatility: equal
	// weights hedge the portfolio to zero volatility.
	returns := map[string][]float64{
		"A": {0.01, -0.01, 0.01, -0.01, 0.01, -0.01},
		"B": {-0.01, 0.01, -0.01, 0.01, -0.01, 0.01},
	}

	result := newOptimizer(MethodRiskParity, fullRange()).Run(&Request{Returns: returns})
	require.True(t, result.Success)
	assert.InDelta(t, 0.5, result.Weights["A"], 1e-6)
	assert.InDelta(t, 0.5, result.Weights["B"], 1e-6)
	assert.InDelta(t, 0, result.ExpectedVolatility, 1e-9)
	assert.Zero(t, result.SharpeRatio)
}

func TestMeanVarianceHitsReturnTarget(t *testing.T) {
	returns := map[string][]float64{
		"LOW":  {0.002, 0.000, 0.001, 0.001},
		"HIGH": {0.020, 0.000, 0.010, 0.010},
	}
	// Means are 0.001 and 0.01; the midpoint is reachable.
	target := 0.0055

	result := newOptimizer(MethodMeanVariance, fullRange()).Run(&Request{
		Returns:      returns,
		ReturnTarget: &target,
	})
	assertFeasible(t, result, fullRange())
	assert.InDelta(t, target, result.ExpectedReturn, 1e-4)
}

func TestMeanVarianceUnreachableTargetFails(t *testing.T) {
	target := 0.5
	result := newOptimizer(MethodMeanVariance, fullRange()).Run(&Request{
		Returns:      sampleReturns(),
		ReturnTarget: &target,
	})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, errors.ErrCodeOptimizationFailed, result.Error.Code)
	assert.Contains(t, result.Error.Message, "target")
}

func TestInfeasibleBoundsFail(t *testing.T) {
	result := newOptimizer(MethodMinVolatility, Constraints{MinWeight: 0, MaxWeight: 0.2}).
		Run(&Request{Returns: sampleReturns()})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, errors.ErrCodeOptimizationFailed, result.Error.Code)
}

func TestUnknownMethodFails(t *testing.T) {
	result := newOptimizer("genetic", fullRange()).Run(&Request{Returns: sampleReturns()})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, errors.ErrCodeInvalidConfig, result.Error.Code)
	assert.Contains(t, result.Error.Message, "genetic")
}

func TestMissingReturnsFails(t *testing.T) {
	result := newOptimizer(MethodMeanVariance, fullRange()).Run(&Request{})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, errors.ErrCodeInvalidInput, result.Error.Code)
}

func TestMismatchedSeriesLengthFails(t *testing.T) {
	result := newOptimizer(MethodMeanVariance, fullRange()).Run(&Request{
		Returns: map[string][]float64{
			"A": {0.01, 0.02, 0.03},
			"B": {0.01, 0.02},
		},
	})

	assert.False(t, result.Success)
	assert.Equal(t, errors.ErrCodeInvalidInput, result.Error.Code)
}

func TestIncompleteExpectedReturnsFails(t *testing.T) {
	result := newOptimizer(MethodMinVolatility, fullRange()).Run(&Request{
		Returns:         sampleReturns(),
		ExpectedReturns: map[string]float64{"AAPL": 0.01},
	})

	assert.False(t, result.Success)
	assert.Equal(t, errors.ErrCodeInvalidInput, result.Error.Code)
}

func TestExpectedReturnsOverride(t *testing.T) {
	expected := map[string]float64{"AAPL": 0.30, "MSFT": 0.10, "TLT": 0.05}
	result := newOptimizer(MethodMinVolatility, fullRange()).Run(&Request{
		Returns:         sampleReturns(),
		ExpectedReturns: expected,
	})
	require.True(t, result.Success)

	want := 0.0
	for asset, w := range result.Weights {
		want += w * expected[asset]
	}
	assert.InDelta(t, want, result.ExpectedReturn, 1e-12)
}

func TestEfficientFrontier(t *testing.T) {
	result := newOptimizer(MethodMeanVariance, fullRange()).Run(&Request{Returns: sampleReturns()})
	require.True(t, result.Success)
	require.NotEmpty(t, result.EfficientFrontier)
	assert.LessOrEqual(t, len(result.EfficientFrontier), 20)

	in, err := buildInputs(sampleReturns(), nil)
	require.NoError(t, err)
	minR, maxR := in.mu[0], in.mu[0]
	for _, m := range in.mu[1:] {
		minR = math.Min(minR, m)
		maxR = math.Max(maxR, m)
	}
	for _, pt := range result.EfficientFrontier {
		assert.GreaterOrEqual(t, pt.Return, minR-1e-12)
		assert.LessOrEqual(t, pt.Return, maxR+1e-12)
		assert.GreaterOrEqual(t, pt.Volatility, 0.0)
	}
}

func TestFrontierOnlyForFrontierMethods(t *testing.T) {
	minVol := newOptimizer(MethodMinVolatility, fullRange()).Run(&Request{Returns: sampleReturns()})
	riskParity := newOptimizer(MethodRiskParity, fullRange()).Run(&Request{Returns: sampleReturns()})
	maxSharpe := newOptimizer(MethodMaxSharpe, fullRange()).Run(&Request{Returns: sampleReturns()})

	assert.Empty(t, minVol.EfficientFrontier)
	assert.Empty(t, riskParity.EfficientFrontier)
	assert.NotEmpty(t, maxSharpe.EfficientFrontier)
}

func TestRunIsDeterministic(t *testing.T) {
	first := newOptimizer(MethodMaxSharpe, fullRange()).Run(&Request{Returns: sampleReturns()})
	second := newOptimizer(MethodMaxSharpe, fullRange()).Run(&Request{Returns: sampleReturns()})
	require.True(t, first.Success)
	assert.Equal(t, first.Weights, second.Weights)
	assert.Equal(t, first.SharpeRatio, second.SharpeRatio)
}

func TestProjectProducesFeasiblePoint(t *testing.T) {
	w := project([]float64{0.9, 0.4, -0.3}, 0, 1)

	sum := 0.0
	for _, wi := range w {
		sum += wi
		assert.GreaterOrEqual(t, wi, 0.0)
		assert.LessOrEqual(t, wi, 1.0)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	// Ordering is preserved by a uniform shift.
	assert.Greater(t, w[0], w[1])
	assert.GreaterOrEqual(t, w[1], w[2])
}

func TestCovarianceMatchesSampleFormula(t *testing.T) {
	returns := map[string][]float64{
		"A": {0.01, 0.02, 0.03},
		"B": {0.03, 0.02, 0.01},
	}
	cov := covariance(returns, []string{"A", "B"})

	assert.InDelta(t, 0.0001, cov[0][0], 1e-12)
	assert.InDelta(t, 0.0001, cov[1][1], 1e-12)
	assert.InDelta(t, -0.0001, cov[0][1], 1e-12)
	assert.Equal(t, cov[0][1], cov[1][0])
}

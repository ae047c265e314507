package optimizer

import (
	"fmt"
	"math"
	"sort"
)

// inputs is the numeric form of one optimization request: the asset order,
// the expected-return vector and the covariance matrix, all index-aligned.
type inputs struct {
	assets []string
	mu     []float64
	cov    [][]float64
}

// buildInputs converts the per-asset return series into mu and sigma. Assets
// are sorted by name so map-shaped requests produce reproducible results.
func buildInputs(returns map[string][]float64, expected map[string]float64) (*inputs, error) {
	if len(returns) == 0 {
		return nil, fmt.Errorf("missing required input: returns")
	}

	assets := make([]string, 0, len(returns))
	for asset := range returns {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	length := len(returns[assets[0]])
	if length < 2 {
		return nil, fmt.Errorf("need at least 2 return observations, got %d", length)
	}
	for _, asset := range assets {
		if len(returns[asset]) != length {
			return nil, fmt.Errorf("return series length mismatch for %s: %d vs %d",
				asset, len(returns[asset]), length)
		}
	}

	mu := make([]float64, len(assets))
	for i, asset := range assets {
		if expected != nil {
			v, ok := expected[asset]
			if !ok {
				return nil, fmt.Errorf("expected return missing for asset %s", asset)
			}
			mu[i] = v
		} else {
			mu[i] = mean(returns[assets[i]])
		}
	}

	return &inputs{
		assets: assets,
		mu:     mu,
		cov:    covariance(returns, assets),
	}, nil
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// covariance builds the sample covariance matrix (n-1 denominator).
func covariance(returns map[string][]float64, assets []string) [][]float64 {
	n := len(assets)
	length := len(returns[assets[0]])

	means := make([]float64, n)
	for i, asset := range assets {
		means[i] = mean(returns[asset])
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sum := 0.0
			for k := 0; k < length; k++ {
				sum += (returns[assets[i]][k] - means[i]) * (returns[assets[j]][k] - means[j])
			}
			cov[i][j] = sum / float64(length-1)
			cov[j][i] = cov[i][j]
		}
	}
	return cov
}

// portfolioReturn is w . mu.
func portfolioReturn(w, mu []float64) float64 {
	sum := 0.0
	for i, wi := range w {
		sum += wi * mu[i]
	}
	return sum
}

// portfolioVariance is the quadratic form w' Sigma w.
func portfolioVariance(w []float64, cov [][]float64) float64 {
	sum := 0.0
	for i, wi := range w {
		for j, wj := range w {
			sum += wi * cov[i][j] * wj
		}
	}
	return sum
}

func portfolioVolatility(w []float64, cov [][]float64) float64 {
	v := portfolioVariance(w, cov)
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

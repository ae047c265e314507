package optimizer

import (
	"fmt"
	"math"
)

const (
	maxIterations = 500
	gradientStep  = 1e-7
	targetTol     = 1e-4
)

// problem is one constrained minimization: an objective over the weight set
// {sum w = 1, lo <= w_i <= hi}, optionally with the additional equality
// w . mu = target.
type problem struct {
	n         int
	lo, hi    float64
	objective func(w []float64) float64

	mu        []float64
	target    float64
	hasTarget bool
}

// minimize solves the problem by projected gradient descent from the
// equal-weight start. Only improving steps are accepted, so the returned
// point never scores worse than the start.
func minimize(p *problem) ([]float64, error) {
	if float64(p.n)*p.lo > 1+1e-9 {
		return nil, fmt.Errorf("infeasible bounds: %d assets with min weight %g cannot sum to 1", p.n, p.lo)
	}
	if float64(p.n)*p.hi < 1-1e-9 {
		return nil, fmt.Errorf("infeasible bounds: %d assets with max weight %g cannot sum to 1", p.n, p.hi)
	}

	w := make([]float64, p.n)
	for i := range w {
		w[i] = 1.0 / float64(p.n)
	}
	w = project(w, p.lo, p.hi)

	if p.hasTarget {
		// The return equality enters as a quadratic penalty with an
		// escalating coefficient, then gets verified at the solution.
		for rho := 1e2; rho <= 1e6; rho *= 10 {
			coeff := rho
			penalized := func(w []float64) float64 {
				miss := portfolioReturn(w, p.mu) - p.target
				return p.objective(w) + coeff*miss*miss
			}
			w = descend(w, penalized, p.lo, p.hi)
		}
		if miss := math.Abs(portfolioReturn(w, p.mu) - p.target); miss > targetTol {
			return nil, fmt.Errorf("return target %g unreachable within bounds: missed by %g", p.target, miss)
		}
	} else {
		w = descend(w, p.objective, p.lo, p.hi)
	}

	if f := p.objective(w); math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("objective is not finite at the solution")
	}
	for _, wi := range w {
		if math.IsNaN(wi) || math.IsInf(wi, 0) {
			return nil, fmt.Errorf("solution weights are not finite")
		}
	}
	return w, nil
}

// descend runs projected gradient descent with backtracking line search.
func descend(w []float64, obj func([]float64) float64, lo, hi float64) []float64 {
	f := obj(w)
	step := 0.1

	for iter := 0; iter < maxIterations; iter++ {
		g := gradient(obj, w)

		improved := false
		for s := step; s > 1e-12; s /= 2 {
			cand := make([]float64, len(w))
			for i := range w {
				cand[i] = w[i] - s*g[i]
			}
			cand = project(cand, lo, hi)

			if fc := obj(cand); fc < f-1e-15 {
				w, f = cand, fc
				step = s * 2
				improved = true
				break
			}
		}
		if !improved {
			break
		}
	}
	return w
}

// gradient approximates the objective's gradient by central differences.
func gradient(obj func([]float64) float64, w []float64) []float64 {
	g := make([]float64, len(w))
	probe := make([]float64, len(w))
	copy(probe, w)

	for i := range w {
		probe[i] = w[i] + gradientStep
		fp := obj(probe)
		probe[i] = w[i] - gradientStep
		fm := obj(probe)
		probe[i] = w[i]
		g[i] = (fp - fm) / (2 * gradientStep)
	}
	return g
}

// project maps v onto {sum w = 1, lo <= w_i <= hi} by bisecting on the
// shift lambda in w_i = clamp(v_i - lambda, lo, hi). The clamped sum is
// non-increasing in lambda and the feasibility check in minimize
// guarantees the root is bracketed.
func project(v []float64, lo, hi float64) []float64 {
	low, high := v[0]-hi, v[0]-lo
	for _, vi := range v[1:] {
		low = math.Min(low, vi-hi)
		high = math.Max(high, vi-lo)
	}

	for i := 0; i < 100; i++ {
		mid := (low + high) / 2
		if clampedSum(v, mid, lo, hi) > 1 {
			low = mid
		} else {
			high = mid
		}
	}

	lambda := (low + high) / 2
	w := make([]float64, len(v))
	for i, vi := range v {
		w[i] = clamp(vi-lambda, lo, hi)
	}
	return w
}

func clampedSum(v []float64, lambda, lo, hi float64) float64 {
	sum := 0.0
	for _, vi := range v {
		sum += clamp(vi-lambda, lo, hi)
	}
	return sum
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Package optimize provides the derivative-free minimizer used to fit
// thermal model parameters.
package optimize

import "maps"

// defaultThreshold stops the search once the summed step sizes shrink
// below it.
const defaultThreshold = 0.001

// CoordinateDescent iterates single-parameter minimizations until the
// per-parameter step sizes collectively converge. It needs no gradients
// and tolerates sentinel-valued costs for infeasible points.
type CoordinateDescent struct {
	// Threshold overrides the convergence threshold when positive.
	Threshold float64
	// Checkpoint, when set, is invoked once per cost evaluation. Long
	// fits use it as a cooperative scheduling / cancellation check-in.
	Checkpoint func()
}

// Minimize adjusts the named parameters of guess to minimize cost and
// returns the best parameter set found. The guess map is not mutated.
func (cd *CoordinateDescent) Minimize(names []string, guess map[string]float64,
	cost func(params map[string]float64) float64) map[string]float64 {
	threshold := cd.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	params := maps.Clone(guess)
	eval := func() float64 {
		err := cost(params)
		if cd.Checkpoint != nil {
			cd.Checkpoint()
		}
		return err
	}
	dp := make(map[string]float64, len(names))
	for _, name := range names {
		dp[name] = 1.0
	}
	bestErr := eval()
	for sumSteps(dp) > threshold {
		for _, name := range names {
			orig := params[name]
			params[name] = orig + dp[name]
			if err := eval(); err < bestErr {
				bestErr = err
				dp[name] *= 1.1
				continue
			}
			params[name] = orig - dp[name]
			if err := eval(); err < bestErr {
				bestErr = err
				dp[name] *= 1.1
				continue
			}
			params[name] = orig
			dp[name] *= 0.9
		}
	}
	return params
}

func sumSteps(dp map[string]float64) float64 {
	sum := 0.0
	for _, v := range dp {
		sum += v
	}
	return sum
}

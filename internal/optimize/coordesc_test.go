package optimize

import (
	"math"
	"testing"
)

func TestMinimizeQuadratic(t *testing.T) {
	cd := &CoordinateDescent{}
	cost := func(p map[string]float64) float64 {
		dx := p["x"] - 3.0
		dy := p["y"] + 2.0
		return dx*dx + dy*dy + 7.0
	}
	guess := map[string]float64{"x": 0, "y": 0}
	best := cd.Minimize([]string{"x", "y"}, guess, cost)

	if math.Abs(best["x"]-3.0) > 0.01 || math.Abs(best["y"]+2.0) > 0.01 {
		t.Fatalf("minimum at (%v, %v), want (3, -2)", best["x"], best["y"])
	}
	// The caller's guess is left untouched.
	if guess["x"] != 0 || guess["y"] != 0 {
		t.Fatalf("guess mutated: %v", guess)
	}
}

func TestMinimizeToleratesSentinelCosts(t *testing.T) {
	// Infeasible region left of zero returns a sentinel; the true minimum
	// sits at 0.5, close to the boundary.
	cd := &CoordinateDescent{}
	cost := func(p map[string]float64) float64 {
		x := p["x"]
		if x <= 0 {
			return 9.9e99
		}
		return (x - 0.5) * (x - 0.5)
	}
	best := cd.Minimize([]string{"x"}, map[string]float64{"x": 4.0}, cost)
	if math.Abs(best["x"]-0.5) > 0.01 {
		t.Fatalf("minimum at %v, want 0.5", best["x"])
	}
}

func TestCheckpointInvokedPerEvaluation(t *testing.T) {
	evals, checkpoints := 0, 0
	cd := &CoordinateDescent{Checkpoint: func() { checkpoints++ }}
	cost := func(p map[string]float64) float64 {
		evals++
		return p["x"] * p["x"]
	}
	cd.Minimize([]string{"x"}, map[string]float64{"x": 10}, cost)
	if evals == 0 {
		t.Fatalf("cost never evaluated")
	}
	if checkpoints != evals {
		t.Fatalf("checkpoints = %d, evaluations = %d", checkpoints, evals)
	}
}

func TestThresholdControlsPrecision(t *testing.T) {
	cost := func(p map[string]float64) float64 {
		d := p["x"] - 1.0
		return d * d
	}
	coarse := (&CoordinateDescent{Threshold: 0.5}).Minimize([]string{"x"}, map[string]float64{"x": 30}, cost)
	fine := (&CoordinateDescent{Threshold: 1e-6}).Minimize([]string{"x"}, map[string]float64{"x": 30}, cost)
	coarseErr := math.Abs(coarse["x"] - 1.0)
	fineErr := math.Abs(fine["x"] - 1.0)
	if fineErr > coarseErr {
		t.Fatalf("tighter threshold gave a worse result: %v vs %v", fineErr, coarseErr)
	}
	if fineErr > 1e-3 {
		t.Fatalf("fine result off by %v", fineErr)
	}
}

package heater

import "math"

// Settle thresholds shared by the PID and FOPDT busy checks.
const (
	pidSettleDelta = 1.0 // °C
	pidSettleSlope = 0.1 // °C/s
)

// ControlPID is proportional-integral-derivative control with derivative
// smoothing and integral anti-windup.
type ControlPID struct {
	heater       *Heater
	kp, ki, kd   float64
	minDerivTime float64
	tempIntegMax float64

	prevTemp      float64
	prevTempTime  float64
	prevTempDeriv float64
	prevTempInteg float64
}

func newControlPID(h *Heater, cfg Config) (*ControlPID, error) {
	if cfg.PidKi <= 0 {
		return nil, newError(ErrInvalidConfig, "heater %s: pid_ki must be positive", cfg.Name)
	}
	c := &ControlPID{
		heater:       h,
		kp:           cfg.PidKp / PIDParamBase,
		ki:           cfg.PidKi / PIDParamBase,
		kd:           cfg.PidKd / PIDParamBase,
		minDerivTime: cfg.PidDerivTime,
		prevTemp:     AmbientTemp,
	}
	// Convert the configured maximum integral output into the matching
	// bound on the accumulated error.
	c.tempIntegMax = cfg.PidIntegralMax / c.ki
	return c, nil
}

func (c *ControlPID) TemperatureCallback(readTime, temp float64) {
	timeDiff := readTime - c.prevTempTime
	tempDiff := temp - c.prevTemp
	// Below min_deriv_time the raw estimate is too noisy: low-pass the
	// stored derivative toward it, weighted by the sample interval.
	var tempDeriv float64
	if timeDiff >= c.minDerivTime {
		tempDeriv = tempDiff / timeDiff
	} else {
		tempDeriv = (c.prevTempDeriv*(c.minDerivTime-timeDiff) + tempDiff) / c.minDerivTime
	}
	// Accumulated temperature error, clamped to the integral bound.
	tempErr := c.heater.targetTemp - temp
	tempInteg := c.prevTempInteg + tempErr*timeDiff
	tempInteg = math.Max(0, math.Min(c.tempIntegMax, tempInteg))
	co := c.kp*tempErr + c.ki*tempInteg - c.kd*tempDeriv
	boundedCo := math.Max(0, math.Min(c.heater.maxPower, co))
	c.heater.setPWM(readTime, boundedCo)
	c.prevTemp = temp
	c.prevTempTime = readTime
	c.prevTempDeriv = tempDeriv
	// Anti-windup: commit the integral only while the output is unsaturated.
	if co == boundedCo {
		c.prevTempInteg = tempInteg
	}
}

func (c *ControlPID) CheckBusy(eventtime float64) bool {
	tempDiff := c.heater.targetTemp - c.heater.lastTemp
	return math.Abs(tempDiff) > pidSettleDelta || math.Abs(c.prevTempDeriv) > pidSettleSlope
}

package heater

import (
	"math"

	"heater_host/internal/logger"
)

// The key idea of a first order model is that future temperatures can be
// estimated with:
//
//	new_temp = prev_temp*exp(-time_diff/time_constant)
//	           + gain*heater_pwm*(1 - exp(-time_diff/time_constant))
//
// where both temperatures are relative to ambient. The "plus delay time"
// part adds a delay parameter for the lag between a PWM change and its
// effect on measured temperatures, modeled as an exponential smoothing of
// the first order temperature over the delay time.

const (
	invAmbientSmooth = 1.0 / 8.0 // ambient re-estimation time constant
	minAmbient       = 0.0       // °C floor for a plausible ambient estimate
	invTempSmooth    = 1.0 / 2.0 // busy-check slope smoothing
)

// ControlFOPDT is model-based control built on a first-order-plus-delay
// thermal model with continuous ambient re-estimation.
type ControlFOPDT struct {
	heater *Heater
	log    *logger.Logger
	name   string

	gain            float64
	invGain         float64
	invTimeConstant float64
	invDelay        float64

	// One-time startup correction bookkeeping.
	firstSetTemp bool
	startTime    float64

	// Piecewise-exponential model keyed on the last power change.
	lastPWMTime     float64
	nextPWMTime     float64
	lastModelTime   float64
	lastPWM         float64
	nextPWM         float64
	modelTemp       float64
	lastModelTemp   float64
	modelSmoothTemp float64

	// Ambient estimation and fault tracking.
	smoothAmbient float64
	didFault      bool

	kp float64

	// Busy-check slope detection.
	prevTemp     float64
	prevTempTime float64
	tempSlope    float64
}

func newControlFOPDT(h *Heater, cfg Config) (*ControlFOPDT, error) {
	if cfg.Gain <= 0 || cfg.TimeConstant <= 0 || cfg.DelayTime <= 0 {
		return nil, newError(ErrInvalidConfig,
			"heater %s: fopdt gain/time_constant/delay_time must all be positive", cfg.Name)
	}
	c := &ControlFOPDT{
		heater:          h,
		log:             h.log,
		name:            cfg.Name,
		gain:            cfg.Gain,
		invGain:         1.0 / cfg.Gain,
		invTimeConstant: 1.0 / cfg.TimeConstant,
		invDelay:        1.0 / cfg.DelayTime,
		firstSetTemp:    true,
		startTime:       h.clock.Monotonic(),
		smoothAmbient:   AmbientTemp,
		kp:              0.7 * cfg.TimeConstant / cfg.Gain,
		prevTemp:        AmbientTemp,
	}
	c.log.Debugw("fopdt_control", "heater", cfg.Name, "kp", c.kp)
	return c, nil
}

// calcModelTemp extrapolates the model temperature (relative to ambient)
// from the last power change to readTime.
func (c *ControlFOPDT) calcModelTemp(readTime float64) float64 {
	timeDiff := readTime - c.lastPWMTime
	tcFactor := math.Exp(-timeDiff * c.invTimeConstant)
	return c.modelTemp*tcFactor + c.gain*c.lastPWM*(1.0-tcFactor)
}

// noteTemperature advances the internal model (driven solely by the PWM
// output history) and re-estimates ambient from the measurement.
func (c *ControlFOPDT) noteTemperature(readTime, temp float64) {
	if c.lastPWM != c.nextPWM && readTime > c.nextPWMTime {
		c.modelTemp = c.calcModelTemp(c.nextPWMTime)
		c.lastPWM = c.nextPWM
		c.lastPWMTime = c.nextPWMTime
	}
	modelTemp := c.calcModelTemp(readTime)
	c.lastModelTemp = modelTemp
	timeDiff := readTime - c.lastModelTime
	c.lastModelTime = readTime
	smoothFactor := 1.0 - math.Exp(-timeDiff*c.invDelay)
	c.modelSmoothTemp += (modelTemp - c.modelSmoothTemp) * smoothFactor
	// Ambient temperature that would make the model match the measurement.
	ambient := temp - c.modelSmoothTemp
	ambientFactor := 1.0 - math.Exp(-timeDiff*invAmbientSmooth)
	c.smoothAmbient += (ambient - c.smoothAmbient) * ambientFactor
	// An implausibly low ambient while short of target means the heater is
	// not heating at the modeled rate. Soft diagnostic: log once, flag.
	if c.smoothAmbient < minAmbient && !c.didFault && temp <= c.heater.targetTemp {
		c.log.Errorw("heater_not_heating_at_expected_rate", "heater", c.name,
			"model", c.modelSmoothTemp, "ambient", c.smoothAmbient, "temp", temp)
		c.didFault = true
	}
}

// setPWM forwards the command to the heater and re-anchors the model on
// the actually scheduled power change.
func (c *ControlFOPDT) setPWM(readTime, value float64) {
	pwmTime, value := c.heater.setPWM(readTime, value)
	if c.lastPWM != c.nextPWM {
		c.modelTemp = c.calcModelTemp(c.nextPWMTime)
		c.lastPWM = c.nextPWM
		c.lastPWMTime = c.nextPWMTime
	}
	c.nextPWMTime = pwmTime
	c.nextPWM = value
}

// noteFirstTemp folds excess ambient offset seen shortly after startup
// into the model, attributing it to residual heat from a previous session.
func (c *ControlFOPDT) noteFirstTemp() {
	c.firstSetTemp = false
	curtime := c.heater.clock.Monotonic()
	if curtime >= c.startTime+5.0/c.invTimeConstant {
		return
	}
	delta := c.smoothAmbient - AmbientTemp
	if delta <= 0 {
		return
	}
	c.modelTemp += delta
	c.modelSmoothTemp += delta
	c.smoothAmbient -= delta
	c.lastPWMTime = c.lastModelTime
	c.log.Infow("fopdt_model_adjust", "heater", c.name, "delta", delta)
}

func (c *ControlFOPDT) TemperatureCallback(readTime, temp float64) {
	if c.heater.targetTemp != 0 && c.firstSetTemp {
		c.noteFirstTemp()
	}
	c.noteTemperature(readTime, temp)
	// Smoothed temperature slope for the busy check.
	timeDiff := readTime - c.prevTempTime
	tempDiff := temp - c.prevTemp
	c.prevTemp = temp
	c.prevTempTime = readTime
	smoothFactor := 1.0 - math.Exp(-timeDiff*invTempSmooth)
	c.tempSlope += (tempDiff - c.tempSlope) * smoothFactor
	// Feed-forward bias plus proportional correction on the model error.
	targetTemp := c.heater.targetTemp - c.smoothAmbient
	bias := targetTemp * c.invGain
	tempErr := targetTemp - c.lastModelTemp
	boundedCo := math.Max(0, math.Min(c.heater.maxPower, bias+c.kp*tempErr))
	c.setPWM(readTime, boundedCo)
}

func (c *ControlFOPDT) CheckBusy(eventtime float64) bool {
	tempDiff := c.heater.targetTemp - c.heater.lastTemp
	return math.Abs(tempDiff) > pidSettleDelta || math.Abs(c.tempSlope) > pidSettleSlope
}

// Fault reports the soft thermal fault flag.
func (c *ControlFOPDT) Fault() bool { return c.didFault }

package heater

import (
	"fmt"
	"math"
	"sync"

	"heater_host/internal/logger"
)

// Temperature control constants shared by all algorithms.
const (
	KelvinToCelsius = -273.15
	// MaxHeatTime is the PWM driver watchdog window: the driver must see a
	// refresh within this many seconds or it force-disables the output.
	MaxHeatTime  = 5.0
	AmbientTemp  = 25.0
	PIDParamBase = 255.0
)

// pwmSettleBand is the minimum change in commanded power that forces an
// update ahead of the regular refresh schedule.
const pwmSettleBand = 0.05

// PWMOutput is the hardware (or simulated) PWM driver for a heating element.
type PWMOutput interface {
	// SetPWM schedules the output value (in [0,1]) to take effect at pwmTime.
	SetPWM(pwmTime, value float64)
	SetupCycleTime(seconds float64)
	// SetupMaxDuration arms the driver watchdog window.
	SetupMaxDuration(seconds float64)
}

// Sensor is a temperature sensor reporting at a fixed cadence.
type Sensor interface {
	SetupMinmax(min, max float64)
	SetupCallback(cb func(readTime, temp float64))
	// ReportTimeDelta is the sensor reporting interval; it doubles as the
	// delay between a PWM command and its scheduled effect.
	ReportTimeDelta() float64
}

// Config is the validated-upstream configuration surface of one heater.
// Zero values for the optional tuning fields select the usual defaults.
type Config struct {
	Name       string `mapstructure:"name"`
	SensorType string `mapstructure:"sensor_type"`
	Control    string `mapstructure:"control"` // watermark | pid | fopdt

	MinTemp        float64 `mapstructure:"min_temp"`
	MaxTemp        float64 `mapstructure:"max_temp"`
	MinExtrudeTemp float64 `mapstructure:"min_extrude_temp"`
	MaxPower       float64 `mapstructure:"max_power"`      // (0,1], default 1.0
	PWMCycleTime   float64 `mapstructure:"pwm_cycle_time"` // default 0.100

	// watermark
	MaxDelta float64 `mapstructure:"max_delta"` // default 2.0

	// pid (Kp/Ki/Kd on the conventional 0-255 scale)
	PidKp          float64 `mapstructure:"pid_kp"`
	PidKi          float64 `mapstructure:"pid_ki"`
	PidKd          float64 `mapstructure:"pid_kd"`
	PidDerivTime   float64 `mapstructure:"pid_deriv_time"`   // default 2.0
	PidIntegralMax float64 `mapstructure:"pid_integral_max"` // default MaxPower

	// fopdt
	Gain         float64 `mapstructure:"gain"`
	TimeConstant float64 `mapstructure:"time_constant"`
	DelayTime    float64 `mapstructure:"delay_time"`

	// EstimatePrintTime maps an event time to the estimated current print
	// time for the stale-sample check. Identity when nil.
	EstimatePrintTime func(eventtime float64) float64 `mapstructure:"-"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxPower == 0 {
		out.MaxPower = 1.0
	}
	if out.PWMCycleTime == 0 {
		out.PWMCycleTime = 0.100
	}
	if out.MaxDelta == 0 {
		out.MaxDelta = 2.0
	}
	if out.PidDerivTime == 0 {
		out.PidDerivTime = 2.0
	}
	if out.PidIntegralMax == 0 {
		out.PidIntegralMax = out.MaxPower
	}
	return out
}

func (c *Config) validate() error {
	if c.Name == "" {
		return newError(ErrInvalidConfig, "heater: name is required")
	}
	if c.MinTemp < KelvinToCelsius {
		return newError(ErrInvalidConfig, "heater %s: min_temp %.1f below absolute zero", c.Name, c.MinTemp)
	}
	if c.MaxTemp <= c.MinTemp {
		return newError(ErrInvalidConfig, "heater %s: max_temp %.1f must exceed min_temp %.1f",
			c.Name, c.MaxTemp, c.MinTemp)
	}
	if c.MaxPower <= 0 || c.MaxPower > 1 {
		return newError(ErrInvalidConfig, "heater %s: max_power %.3f outside (0,1]", c.Name, c.MaxPower)
	}
	if c.MinExtrudeTemp != 0 && (c.MinExtrudeTemp < c.MinTemp || c.MinExtrudeTemp > c.MaxTemp) {
		return newError(ErrInvalidConfig, "heater %s: min_extrude_temp %.1f outside [%.1f, %.1f]",
			c.Name, c.MinExtrudeTemp, c.MinTemp, c.MaxTemp)
	}
	return nil
}

// Heater keeps one heating element at its commanded target. All mutable
// state is guarded by a single mutex; the active control algorithm runs
// its callback while that mutex is held and must not block.
type Heater struct {
	name   string
	sensor Sensor
	out    PWMOutput
	clock  Clock
	log    *logger.Logger

	minTemp           float64
	maxTemp           float64
	minExtrudeTemp    float64
	maxPower          float64
	pwmDelay          float64
	estimatePrintTime func(eventtime float64) float64

	mu           sync.Mutex
	lastTemp     float64
	lastTempTime float64
	targetTemp   float64
	canExtrude   bool
	nextPWMTime  float64
	lastPWMValue float64
	control      Control
}

// Status is a read-only telemetry snapshot.
type Status struct {
	Temperature float64
	Target      float64
	Power       float64
	CanExtrude  bool
	Fault       bool
}

// NewHeater wires a heater to its sensor and PWM driver and installs the
// configured control algorithm.
func NewHeater(cfg Config, sensor Sensor, out PWMOutput, clock Clock, log *logger.Logger) (*Heater, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	h := &Heater{
		name:              cfg.Name,
		sensor:            sensor,
		out:               out,
		clock:             clock,
		log:               log,
		minTemp:           cfg.MinTemp,
		maxTemp:           cfg.MaxTemp,
		minExtrudeTemp:    cfg.MinExtrudeTemp,
		maxPower:          cfg.MaxPower,
		estimatePrintTime: cfg.EstimatePrintTime,
	}
	if h.estimatePrintTime == nil {
		h.estimatePrintTime = func(eventtime float64) float64 { return eventtime }
	}
	sensor.SetupMinmax(cfg.MinTemp, cfg.MaxTemp)
	sensor.SetupCallback(h.TemperatureCallback)
	h.pwmDelay = sensor.ReportTimeDelta()
	h.canExtrude = h.minExtrudeTemp <= 0

	out.SetupCycleTime(cfg.PWMCycleTime)
	out.SetupMaxDuration(MaxHeatTime)

	control, err := newControl(h, cfg)
	if err != nil {
		return nil, err
	}
	h.control = control
	return h, nil
}

func (h *Heater) Name() string      { return h.name }
func (h *Heater) PWMDelay() float64 { return h.pwmDelay }
func (h *Heater) MaxPower() float64 { return h.maxPower }

// setPWM issues a power command to the driver. The heater mutex must be
// held. A zero or negative target forces the output off. Commands within
// pwmSettleBand of the last value are suppressed until the scheduled
// refresh, which itself is throttled to stay inside the watchdog window.
func (h *Heater) setPWM(readTime, value float64) (float64, float64) {
	if h.targetTemp <= 0 {
		value = 0
	}
	if (readTime < h.nextPWMTime || h.lastPWMValue == 0) &&
		math.Abs(value-h.lastPWMValue) < pwmSettleBand {
		// No significant change in value - suppress the update.
		return 0, h.lastPWMValue
	}
	pwmTime := readTime + h.pwmDelay
	h.nextPWMTime = pwmTime + 0.75*MaxHeatTime
	h.lastPWMValue = value
	h.log.Debugw("heater_pwm", "heater", h.name, "value", value, "pwm_time", pwmTime,
		"temp", h.lastTemp, "target", h.targetTemp)
	h.out.SetPWM(pwmTime, value)
	return pwmTime, value
}

// TemperatureCallback is invoked from the sensor sampling path. The active
// control algorithm runs while the lock is held; the deferred unlock keeps
// the lock released on every exit path.
func (h *Heater) TemperatureCallback(readTime, temp float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTemp = temp
	h.lastTempTime = readTime
	h.canExtrude = temp >= h.minExtrudeTemp
	h.control.TemperatureCallback(readTime, temp)
}

// SetTemp sets the target temperature. A target of 0 (off) is always
// accepted; any other value must be within [min_temp, max_temp].
func (h *Heater) SetTemp(printTime, degrees float64) error {
	_ = printTime
	if degrees != 0 && (degrees < h.minTemp || degrees > h.maxTemp) {
		return newError(ErrTargetOutOfRange,
			"heater %s: requested temperature %.1f out of range (%.1f:%.1f)",
			h.name, degrees, h.minTemp, h.maxTemp)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.targetTemp = degrees
	return nil
}

// GetTemp returns the last measured temperature and the target. A sample
// older than the estimated current print time minus 5s is treated as stale
// and reported as 0.
func (h *Heater) GetTemp(eventtime float64) (float64, float64) {
	printTime := h.estimatePrintTime(eventtime) - 5.0
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastTempTime < printTime {
		return 0, h.targetTemp
	}
	return h.lastTemp, h.targetTemp
}

// CheckBusy reports whether the heater is still settling toward its target.
func (h *Heater) CheckBusy(eventtime float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.control.CheckBusy(eventtime)
}

// SetControl atomically swaps the active control algorithm and returns the
// previous one. The target is reset to 0 so the heater never keeps heating
// under a foreign algorithm's stale target.
func (h *Heater) SetControl(control Control) Control {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.control
	h.control = control
	h.targetTemp = 0
	return old
}

// CanExtrude reports whether the last sample reached min_extrude_temp.
func (h *Heater) CanExtrude() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.canExtrude
}

// Stats returns an activity flag and a one-line summary for telemetry.
func (h *Heater) Stats(eventtime float64) (bool, string) {
	_ = eventtime
	h.mu.Lock()
	target := h.targetTemp
	last := h.lastTemp
	pwm := h.lastPWMValue
	h.mu.Unlock()
	active := target != 0 || last > 50
	return active, statsLine(h.name, target, last, pwm)
}

func statsLine(name string, target, last, pwm float64) string {
	return fmt.Sprintf("%s: target=%.0f temp=%.1f pwm=%.3f", name, target, last, pwm)
}

// Status returns a read-only snapshot of the heater state.
func (h *Heater) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := Status{
		Temperature: h.lastTemp,
		Target:      h.targetTemp,
		Power:       h.lastPWMValue,
		CanExtrude:  h.canExtrude,
	}
	if f, ok := h.control.(interface{ Fault() bool }); ok {
		st.Fault = f.Fault()
	}
	return st
}

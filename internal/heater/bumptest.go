package heater

import "heater_host/internal/fit"

// BumpTestState is the calibration protocol state. Values only ever
// increase over the life of a session.
type BumpTestState int

const (
	StateIdle BumpTestState = iota
	StateRampUp
	StateCooling
	StateDone
)

func (s BumpTestState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRampUp:
		return "ramp_up"
	case StateCooling:
		return "cooling"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// idleSampleCount is how many power-off samples are collected before the
// ramp starts, establishing the ambient baseline for the fit.
const idleSampleCount = 20

// doneFraction of the total rise above start temperature that the heater
// must cool back through before the test completes.
const doneFraction = 0.35

// BumpTest drives a heater through an open-loop step test (full power,
// then off) while recording every PWM edge and temperature sample. It is
// installed as the heater's control algorithm for the duration of the
// test and discarded afterwards. The working target is private to the
// session; the heater's nominal target is never mutated mid-test.
type BumpTest struct {
	heater *Heater
	target float64

	state           BumpTestState
	startTemp       float64
	doneTemperature float64

	lastPWM     float64
	pwmSamples  []fit.Sample
	tempSamples []fit.Sample
}

// NewBumpTest creates a session targeting the given peak temperature. The
// caller still sets the heater's nominal target (via SetTemp) so range
// validation applies and the PWM zero-target clamp does not suppress the
// ramp.
func NewBumpTest(h *Heater, target float64) *BumpTest {
	return &BumpTest{heater: h, target: target}
}

// setPWM records the power change (timestamped at its eventual thermal
// effect, event time + pwm delay) and forwards it to the heater.
func (b *BumpTest) setPWM(readTime, value float64) {
	if value != b.lastPWM {
		b.pwmSamples = append(b.pwmSamples, fit.Sample{Time: readTime + b.heater.pwmDelay, Value: value})
		b.lastPWM = value
	}
	b.heater.setPWM(readTime, value)
}

// TemperatureCallback runs the bump-test state machine. It executes under
// the heater lock like any control algorithm.
func (b *BumpTest) TemperatureCallback(readTime, temp float64) {
	b.tempSamples = append(b.tempSamples, fit.Sample{Time: readTime, Value: temp})
	switch b.state {
	case StateIdle:
		b.setPWM(readTime, 0)
		if len(b.tempSamples) >= idleSampleCount {
			// TODO: verify the recorded ambient samples are plausible
			// before starting the ramp.
			b.startTemp = temp
			b.state = StateRampUp
		}
	case StateRampUp:
		if temp < b.target {
			b.setPWM(readTime, b.heater.maxPower)
			return
		}
		b.setPWM(readTime, 0)
		b.doneTemperature = b.startTemp + doneFraction*(b.target-b.startTemp)
		b.state = StateCooling
	case StateCooling:
		b.setPWM(readTime, 0)
		if temp <= b.doneTemperature {
			b.state = StateDone
		}
	case StateDone:
		// Terminal; power is already off.
	}
}

// CheckBusy reports false only once the session reached Done.
func (b *BumpTest) CheckBusy(eventtime float64) bool {
	return b.state < StateDone
}

// State returns the current protocol state.
func (b *BumpTest) State() BumpTestState { return b.state }

// PWMSamples returns the recorded power edges. Read after Done.
func (b *BumpTest) PWMSamples() []fit.Sample { return b.pwmSamples }

// TempSamples returns the recorded temperature samples. Read after Done.
func (b *BumpTest) TempSamples() []fit.Sample { return b.tempSamples }

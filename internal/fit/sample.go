package fit

// Sample is one timestamped measurement: a (time, power) PWM edge or a
// (time, temperature) sensor reading, both in seconds/event time.
type Sample struct {
	Time  float64
	Value float64
}

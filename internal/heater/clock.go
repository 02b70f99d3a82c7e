package heater

import "time"

// Clock supplies monotonic event time in seconds. The simulator provides
// its own implementation so tests and dev mode control the time base.
type Clock interface {
	Monotonic() float64
}

// SystemClock reports seconds elapsed since its creation.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Monotonic() float64 {
	return time.Since(c.start).Seconds()
}

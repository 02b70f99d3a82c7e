package heater

// ControlBangBang is hysteresis ("watermark") control: full power below
// target-max_delta, off above target+max_delta, no transition inside the
// band so the output never chatters.
type ControlBangBang struct {
	heater   *Heater
	maxDelta float64
	heating  bool
}

func newControlBangBang(h *Heater, cfg Config) *ControlBangBang {
	return &ControlBangBang{heater: h, maxDelta: cfg.MaxDelta}
}

func (c *ControlBangBang) TemperatureCallback(readTime, temp float64) {
	if c.heating && temp >= c.heater.targetTemp+c.maxDelta {
		c.heating = false
	} else if !c.heating && temp <= c.heater.targetTemp-c.maxDelta {
		c.heating = true
	}
	if c.heating {
		c.heater.setPWM(readTime, c.heater.maxPower)
	} else {
		c.heater.setPWM(readTime, 0)
	}
}

func (c *ControlBangBang) CheckBusy(eventtime float64) bool {
	return c.heater.lastTemp < c.heater.targetTemp-c.maxDelta
}

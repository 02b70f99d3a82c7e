package heater

// Control is a pure control law converting a temperature sample into a
// power command. TemperatureCallback runs while the heater mutex is held
// and issues at most one setPWM call; it must not block.
type Control interface {
	TemperatureCallback(readTime, temp float64)
	// CheckBusy reports whether the heater is still settling.
	CheckBusy(eventtime float64) bool
}

// Algorithm selector values accepted in Config.Control.
const (
	ControlWatermark = "watermark"
	ControlPid       = "pid"
	ControlFopdt     = "fopdt"
)

// newControl selects the control variant from the configuration tag.
func newControl(h *Heater, cfg Config) (Control, error) {
	switch cfg.Control {
	case ControlWatermark, "":
		return newControlBangBang(h, cfg), nil
	case ControlPid:
		return newControlPID(h, cfg)
	case ControlFopdt:
		return newControlFOPDT(h, cfg)
	}
	return nil, newError(ErrInvalidConfig, "heater %s: unknown control algorithm %q", cfg.Name, cfg.Control)
}

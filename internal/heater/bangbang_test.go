package heater

import "testing"

func newWatermarkHeater(t *testing.T, maxDelta float64) (*Heater, *fakeSensor, *fakeOutput) {
	t.Helper()
	cfg := baseConfig()
	cfg.MaxDelta = maxDelta
	h, sensor, out, _ := newTestHeater(t, cfg)
	return h, sensor, out
}

func TestBangBangHysteresis(t *testing.T) {
	h, sensor, out := newWatermarkHeater(t, 2.0)
	mustSetTemp(t, h, 200)

	// Rising through the band: turn-off only at target+max_delta. Samples
	// are closely spaced so no periodic refresh interleaves.
	temps := []float64{195, 197, 199, 201, 203, 205}
	for i, temp := range temps {
		sensor.cb(float64(i)*0.3, temp)
	}
	// 195 turns the output on; it stays on through 201 (inside the band);
	// 203 crosses 202 and turns it off. 205 is another off, suppressed.
	if len(out.commands) != 2 {
		t.Fatalf("commands = %d (%+v), want on then off", len(out.commands), out.commands)
	}
	if out.commands[0].value != 1.0 || out.commands[1].value != 0 {
		t.Fatalf("command values = %+v", out.commands)
	}

	// Falling back: no turn-on at 199 (inside the band), on again at 197.
	sensor.cb(2.0, 199)
	if len(out.commands) != 2 {
		t.Fatalf("199 must not re-enable inside the band, commands = %+v", out.commands)
	}
	sensor.cb(2.3, 197)
	if len(out.commands) != 3 || out.last(t).value != 1.0 {
		t.Fatalf("197 must re-enable, commands = %+v", out.commands)
	}
}

func TestBangBangCheckBusy(t *testing.T) {
	h, sensor, _ := newWatermarkHeater(t, 2.0)
	mustSetTemp(t, h, 200)

	sensor.cb(1.0, 150)
	if !h.CheckBusy(1.0) {
		t.Fatalf("well below the band must be busy")
	}
	sensor.cb(1.3, 198)
	if h.CheckBusy(1.3) {
		t.Fatalf("at target-max_delta the heater has settled")
	}
	sensor.cb(1.6, 205)
	if h.CheckBusy(1.6) {
		t.Fatalf("above target is never busy for watermark control")
	}
}

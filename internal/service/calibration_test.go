package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"heater_host/internal/heater"
	"heater_host/internal/logger"
)

func newCalibrationRig(t *testing.T) (*CalibrationService, *heater.Registry, *fakeSensor, *fakeCalibrationRepo, *fakeEventRepo) {
	t.Helper()
	reg, sensor, clock := newHeaterRig(t)
	calRepo := &fakeCalibrationRepo{}
	events := &fakeEventRepo{}
	svc := NewCalibrationService(reg, calRepo, events, clock, logger.Nop())
	svc.PollInterval = 2 * time.Millisecond
	return svc, reg, sensor, calRepo, events
}

// driveBumpTest feeds a full idle/ramp/cool sample sequence once the
// session control is installed (detected through the busy flag).
func driveBumpTest(t *testing.T, reg *heater.Registry, sensor *fakeSensor, target float64) {
	t.Helper()
	h, err := reg.LookupHeater("extruder0")
	if err != nil {
		t.Fatalf("LookupHeater: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !h.CheckBusy(0) {
		if time.Now().After(deadline) {
			t.Errorf("session control never installed")
			return
		}
		time.Sleep(time.Millisecond)
	}

	readTime := 0.0
	feed := func(temp float64) {
		sensor.cb(readTime, temp)
		readTime += 0.3
	}
	for i := 0; i < 20; i++ {
		feed(25)
	}
	for temp := 25.0; temp < target; temp += 1.5 {
		feed(temp)
	}
	feed(target + 1)
	done := 25 + 0.35*(target-25)
	for temp := target; temp > done-1; temp -= 1.0 {
		feed(temp)
	}
}

func TestCalibrateRunsBumpTestAndPersists(t *testing.T) {
	svc, reg, sensor, calRepo, events := newCalibrationRig(t)

	go driveBumpTest(t, reg, sensor, 60)

	run, err := svc.Calibrate(context.Background(), CalibrateParams{Heater: "extruder0", TargetC: 60})
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if run.Heater != "extruder0" || run.Target != 60 {
		t.Fatalf("unexpected run identity: %+v", run)
	}
	if run.Gain <= 0 || run.TimeConstant <= 0 || run.DelayTime <= 0 {
		t.Fatalf("non-positive fitted parameters: %+v", run)
	}
	if run.Ambient != 25 {
		t.Fatalf("ambient = %v, want 25", run.Ambient)
	}
	if run.SampleCount < 40 {
		t.Fatalf("sample count = %d", run.SampleCount)
	}

	calRepo.mu.Lock()
	stored := len(calRepo.runs)
	calRepo.mu.Unlock()
	if stored != 1 {
		t.Fatalf("runs stored = %d", stored)
	}
	evs := events.appended()
	if len(evs) != 1 || evs[0].Type != EventCalibration {
		t.Fatalf("unexpected events: %+v", evs)
	}

	// The original control algorithm is back and the target is off.
	h, _ := reg.LookupHeater("extruder0")
	if st := h.Status(); st.Target != 0 {
		t.Fatalf("target after calibration = %v", st.Target)
	}
	if h.CheckBusy(0) {
		t.Fatalf("restored watermark control must not be busy with target 0")
	}
}

func TestCalibrateRejectsOutOfRangeTarget(t *testing.T) {
	svc, reg, sensor, calRepo, _ := newCalibrationRig(t)

	_, err := svc.Calibrate(context.Background(), CalibrateParams{Heater: "extruder0", TargetC: 400})
	if !heater.IsKind(err, heater.ErrTargetOutOfRange) {
		t.Fatalf("expected target_out_of_range, got %v", err)
	}
	calRepo.mu.Lock()
	stored := len(calRepo.runs)
	calRepo.mu.Unlock()
	if stored != 0 {
		t.Fatalf("failed calibration must not store a run")
	}

	// The previous control algorithm was restored on the error path: the
	// heater accepts targets and settles like watermark control again.
	h, _ := reg.LookupHeater("extruder0")
	if err := h.SetTemp(0, 200); err != nil {
		t.Fatalf("SetTemp after failed calibration: %v", err)
	}
	sensor.cb(1.0, 205)
	if h.CheckBusy(1.0) {
		t.Fatalf("watermark control not restored: busy above target")
	}
}

func TestCalibrateUnknownHeater(t *testing.T) {
	svc, _, _, _, _ := newCalibrationRig(t)
	_, err := svc.Calibrate(context.Background(), CalibrateParams{Heater: "ghost", TargetC: 60})
	if !heater.IsKind(err, heater.ErrUnknownHeater) {
		t.Fatalf("expected unknown_heater, got %v", err)
	}
}

func TestCalibrateAbortsOnContextCancel(t *testing.T) {
	svc, reg, _, calRepo, _ := newCalibrationRig(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	// No samples are ever fed, so the session never finishes on its own.
	_, err := svc.Calibrate(ctx, CalibrateParams{Heater: "extruder0", TargetC: 60})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	calRepo.mu.Lock()
	stored := len(calRepo.runs)
	calRepo.mu.Unlock()
	if stored != 0 {
		t.Fatalf("aborted calibration must not store a run")
	}
	// Control restored; target reset by the swap.
	h, _ := reg.LookupHeater("extruder0")
	if st := h.Status(); st.Target != 0 {
		t.Fatalf("target after abort = %v", st.Target)
	}
}

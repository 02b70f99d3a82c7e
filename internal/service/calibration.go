package service

import (
	"context"
	"runtime"
	"time"

	hh "heater_host"
	"heater_host/internal/fit"
	"heater_host/internal/heater"
	"heater_host/internal/logger"
	"heater_host/internal/optimize"
	"heater_host/internal/repository"

	"github.com/google/uuid"
)

// defaultPollInterval is how often the blocked calibration command checks
// whether the bump test reached Done.
const defaultPollInterval = 500 * time.Millisecond

// CalibrationService owns the bump-test protocol: it temporarily replaces
// a heater's control algorithm with a recording session, waits for the
// test to finish, fits the thermal model and persists the result. The
// previous control algorithm is restored on every exit path.
type CalibrationService struct {
	registry  *heater.Registry
	calRepo   repository.CalibrationRepo
	eventRepo repository.EventRepo
	clock     heater.Clock
	log       *logger.Logger

	// PollInterval overrides defaultPollInterval when positive.
	PollInterval time.Duration
}

func NewCalibrationService(reg *heater.Registry, calRepo repository.CalibrationRepo,
	eventRepo repository.EventRepo, clock heater.Clock, log *logger.Logger) *CalibrationService {
	return &CalibrationService{
		registry:  reg,
		calRepo:   calRepo,
		eventRepo: eventRepo,
		clock:     clock,
		log:       log,
	}
}

// Calibrate runs one bump test against the named heater and returns the
// fitted (gain, time_constant, delay_time). It blocks the caller until
// the test reaches Done or ctx is canceled; cancellation aborts the test.
// The fitted parameters are meant to be persisted into configuration
// selecting the fopdt algorithm; they are not hot-reloaded.
func (s *CalibrationService) Calibrate(ctx context.Context, p CalibrateParams) (hh.CalibrationRun, error) {
	h, err := s.registry.LookupHeater(p.Heater)
	if err != nil {
		return hh.CalibrationRun{}, err
	}
	startedAt := time.Now().UTC()

	session := heater.NewBumpTest(h, p.TargetC)
	old := h.SetControl(session)
	if err := h.SetTemp(s.clock.Monotonic(), p.TargetC); err != nil {
		// Restore the previous control algorithm before surfacing the
		// setup error. Guaranteed, not best-effort.
		h.SetControl(old)
		return hh.CalibrationRun{}, err
	}
	if err := s.waitForDone(ctx, h); err != nil {
		h.SetControl(old)
		return hh.CalibrationRun{}, err
	}
	// SetControl also resets the target to 0, so the heater stays off
	// under the restored algorithm until commanded again.
	h.SetControl(old)

	fitter, err := fit.NewFitter(session.PWMSamples(), session.TempSamples(), s.minimizer(), s.log)
	if err != nil {
		return hh.CalibrationRun{}, err
	}
	res, err := fitter.Fit()
	if err != nil {
		return hh.CalibrationRun{}, err
	}

	run := hh.CalibrationRun{
		RunID:        uuid.NewString(),
		Heater:       h.Name(),
		Target:       p.TargetC,
		Ambient:      res.Ambient,
		Gain:         res.Gain,
		TimeConstant: res.TimeConstant,
		DelayTime:    res.DelayTime,
		SampleCount:  len(session.TempSamples()),
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
	}
	if err := s.calRepo.Insert(ctx, run); err != nil {
		return hh.CalibrationRun{}, err
	}
	_ = s.eventRepo.Append(ctx, hh.HeaterEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  run.FinishedAt,
		Type:        EventCalibration,
		Heater:      h.Name(),
		Description: "Bump test completed",
		Metadata: map[string]any{
			"gain":          run.Gain,
			"time_constant": run.TimeConstant,
			"delay_time":    run.DelayTime,
			"ambient_c":     run.Ambient,
		},
	})
	return run, nil
}

// List returns past calibration runs, optionally filtered by heater.
func (s *CalibrationService) List(ctx context.Context, name string) ([]hh.CalibrationRun, error) {
	return s.calRepo.List(ctx, name)
}

// waitForDone blocks until the session control reports not busy or the
// context is canceled.
func (s *CalibrationService) waitForDone(ctx context.Context, h *heater.Heater) error {
	interval := s.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !h.CheckBusy(s.clock.Monotonic()) {
				return nil
			}
		}
	}
}

// minimizer builds the coordinate-descent minimizer with a cooperative
// check-in once per cost evaluation, so a long fit never monopolizes the
// scheduler.
func (s *CalibrationService) minimizer() fit.Minimizer {
	return &optimize.CoordinateDescent{Checkpoint: runtime.Gosched}
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	hh "heater_host"
	"heater_host/internal/heater"
	"heater_host/internal/logger"
)

// ---- Repository Fakes ----

type fakeStateRepo struct {
	mu    sync.Mutex
	saved []hh.HeaterState
	err   error
}

func (f *fakeStateRepo) Save(ctx context.Context, s hh.HeaterState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, s)
	return f.err
}

func (f *fakeStateRepo) Load(ctx context.Context, name string) (hh.HeaterState, error) {
	return hh.HeaterState{}, nil
}

func (f *fakeStateRepo) LoadAll(ctx context.Context) ([]hh.HeaterState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hh.HeaterState(nil), f.saved...), nil
}

func (f *fakeStateRepo) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeEventRepo struct {
	mu       sync.Mutex
	events   []hh.HeaterEvent
	listResp []hh.HeaterEvent
	listErr  error

	lastFrom   time.Time
	lastTo     time.Time
	lastHeater string
	lastType   string
}

func (f *fakeEventRepo) Append(ctx context.Context, e hh.HeaterEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, heater, typ string) ([]hh.HeaterEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFrom, f.lastTo, f.lastHeater, f.lastType = from, to, heater, typ
	return f.listResp, f.listErr
}

func (f *fakeEventRepo) appended() []hh.HeaterEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hh.HeaterEvent(nil), f.events...)
}

type fakeCalibrationRepo struct {
	mu        sync.Mutex
	runs      []hh.CalibrationRun
	insertErr error
}

func (f *fakeCalibrationRepo) Insert(ctx context.Context, run hh.CalibrationRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeCalibrationRepo) List(ctx context.Context, heater string) ([]hh.CalibrationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hh.CalibrationRun(nil), f.runs...), nil
}

type fakeAuthRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*hh.User
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{users: make(map[string]*hh.User)}
}

func (f *fakeAuthRepo) Create(username, hash string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.users[username] = &hh.User{ID: f.nextID, Username: username, PasswordHash: hash}
	return f.nextID, nil
}

func (f *fakeAuthRepo) GetByUsername(username string) (*hh.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[username], nil
}

// ---- Heater Rig ----

type fakeSensor struct {
	cb func(readTime, temp float64)
}

func (s *fakeSensor) SetupMinmax(min, max float64)                  {}
func (s *fakeSensor) SetupCallback(cb func(readTime, temp float64)) { s.cb = cb }
func (s *fakeSensor) ReportTimeDelta() float64                      { return 0.3 }

type fakeOutput struct{}

func (o *fakeOutput) SetPWM(pwmTime, value float64)    {}
func (o *fakeOutput) SetupCycleTime(seconds float64)   {}
func (o *fakeOutput) SetupMaxDuration(seconds float64) {}

type fakeClock struct{ now float64 }

func (c *fakeClock) Monotonic() float64 { return c.now }

// newHeaterRig builds a registry with one watermark heater named
// extruder0 and returns the sensor used to drive temperature samples.
func newHeaterRig(t *testing.T) (*heater.Registry, *fakeSensor, *fakeClock) {
	t.Helper()
	reg := heater.NewRegistry(logger.Nop())
	sensor := &fakeSensor{}
	reg.AddSensorFactory("fake", func(cfg heater.Config) (heater.Sensor, error) {
		return sensor, nil
	})
	clock := &fakeClock{}
	_, err := reg.SetupHeater(heater.Config{
		Name:       "extruder0",
		SensorType: "fake",
		Control:    "watermark",
		MinTemp:    0,
		MaxTemp:    300,
	}, &fakeOutput{}, clock)
	if err != nil {
		t.Fatalf("SetupHeater: %v", err)
	}
	return reg, sensor, clock
}

package service

import (
	"context"
	"time"

	hh "heater_host"
	"heater_host/internal/heater"
	"heater_host/internal/logger"
	"heater_host/internal/repository"
)

// Event types recorded into the event log.
const (
	EventTargetSet   = "TARGET_SET"
	EventOff         = "OFF"
	EventCalibration = "CALIBRATION"
	EventFault       = "FAULT"
	EventTelemetry   = "TELEMETRY"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// HeaterControl exposes the command path: target changes per heater.
type HeaterControl interface {
	SetTarget(ctx context.Context, name string, targetC float64) error
	Off(ctx context.Context, name string) error
}

// Monitoring exposes read-only live snapshots.
type Monitoring interface {
	GetState(ctx context.Context, name string) (hh.HeaterState, error)
	GetStates(ctx context.Context) ([]hh.HeaterState, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]hh.HeaterEvent, error)
}

// Calibration runs the bump-test protocol and serves past runs. Calibrate
// blocks until the test completes or ctx is canceled.
type Calibration interface {
	Calibrate(ctx context.Context, p CalibrateParams) (hh.CalibrationRun, error)
	List(ctx context.Context, name string) ([]hh.CalibrationRun, error)
}

// Simulator runs the background plant loop standing in for the MCU.
// Stop via context cancellation in main() for graceful shutdown.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// CalibrateParams selects the heater and the bump-test peak target.
type CalibrateParams struct {
	Heater  string
	TargetC float64
}

// LogFilter supports history filtering by time range, heater and type.
type LogFilter struct {
	From   time.Time // inclusive; zero means no lower bound
	To     time.Time // inclusive; zero means no upper bound
	Heater string    // "" means all heaters
	Type   string    // "", or one of the Event* types
}

// Service aggregates all sub-services.
type Service struct {
	HeaterControl
	Monitoring
	EventLog
	Calibration
	Simulator
	Authorization
}

// Deps carries everything the services are wired from.
type Deps struct {
	Repos      *repository.Repository
	Registry   *heater.Registry
	Clock      heater.Clock
	Simulator  *SimulatorService
	SigningKey string
	Log        *logger.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		HeaterControl: NewHeaterControlService(d.Registry, d.Repos.StateRepo, d.Repos.EventRepo, d.Clock),
		Monitoring:    NewMonitoringService(d.Registry, d.Clock),
		EventLog:      NewEventLogService(d.Repos.EventRepo),
		Calibration:   NewCalibrationService(d.Registry, d.Repos.CalibrationRepo, d.Repos.EventRepo, d.Clock, d.Log),
		Simulator:     d.Simulator,
		Authorization: NewAuthService(d.Repos.Auth, d.SigningKey),
	}
}

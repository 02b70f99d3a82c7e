package repository

import (
	"context"
	"database/sql"
	"time"

	hh "heater_host"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*hh.User, error)
}

// StateRepo persists per-heater telemetry snapshots.
type StateRepo interface {
	Save(ctx context.Context, s hh.HeaterState) error
	Load(ctx context.Context, name string) (hh.HeaterState, error)
	LoadAll(ctx context.Context) ([]hh.HeaterState, error)
}

// EventRepo is the append-only event log.
type EventRepo interface {
	Append(ctx context.Context, e hh.HeaterEvent) error
	List(ctx context.Context, from, to time.Time, heater, typ string) ([]hh.HeaterEvent, error)
}

// CalibrationRepo stores completed bump-test runs and their fitted models.
type CalibrationRepo interface {
	Insert(ctx context.Context, run hh.CalibrationRun) error
	List(ctx context.Context, heater string) ([]hh.CalibrationRun, error)
}

type Repository struct {
	StateRepo       StateRepo
	EventRepo       EventRepo
	CalibrationRepo CalibrationRepo
	Auth            Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo:       NewStateSQLite(db),
		EventRepo:       NewEventSQLite(db),
		CalibrationRepo: NewCalibrationSQLite(db),
		Auth:            NewUserRepository(db),
	}
}

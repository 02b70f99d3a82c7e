package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	hh "heater_host"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

var _ StateRepo = (*StateSQLite)(nil)

const (
	upsertStateSQL = `
		INSERT INTO heater_states (name, temp_c, target_c, power, can_extrude, busy, fault, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			temp_c=excluded.temp_c,
			target_c=excluded.target_c,
			power=excluded.power,
			can_extrude=excluded.can_extrude,
			busy=excluded.busy,
			fault=excluded.fault,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT name, temp_c, target_c, power, can_extrude, busy, fault, updated_at
		FROM heater_states WHERE name=?
	`

	selectAllStatesSQL = `
		SELECT name, temp_c, target_c, power, can_extrude, busy, fault, updated_at
		FROM heater_states ORDER BY name ASC
	`
)

// Save upserts the snapshot row for one heater.
func (r *StateSQLite) Save(ctx context.Context, state hh.HeaterState) error {
	// Persist UpdatedAt as UTC; set if zero.
	tsUTC := state.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}

	_, err := r.db.ExecContext(ctx, upsertStateSQL,
		state.Name,
		state.Temperature,
		state.Target,
		state.Power,
		state.CanExtrude,
		state.Busy,
		state.Fault,
		tsUTC,
	)
	return err
}

// Load fetches one heater's snapshot. A missing row yields a zero state.
func (r *StateSQLite) Load(ctx context.Context, name string) (hh.HeaterState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, name)
	s, err := scanState(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hh.HeaterState{}, nil // no snapshot yet
		}
		return hh.HeaterState{}, err
	}
	return s, nil
}

// LoadAll fetches all persisted snapshots ordered by name.
func (r *StateSQLite) LoadAll(ctx context.Context) ([]hh.HeaterState, error) {
	rows, err := r.db.QueryContext(ctx, selectAllStatesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]hh.HeaterState, 0, 4)
	for rows.Next() {
		s, err := scanState(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanState(scan func(dest ...any) error) (hh.HeaterState, error) {
	var s hh.HeaterState
	if err := scan(
		&s.Name,
		&s.Temperature,
		&s.Target,
		&s.Power,
		&s.CanExtrude,
		&s.Busy,
		&s.Fault,
		&s.UpdatedAt,
	); err != nil {
		return hh.HeaterState{}, err
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

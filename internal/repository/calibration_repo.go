package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	hh "heater_host"

	"github.com/google/uuid"
)

type CalibrationSQLite struct {
	db *sql.DB
}

func NewCalibrationSQLite(db *sql.DB) *CalibrationSQLite { return &CalibrationSQLite{db: db} }

var _ CalibrationRepo = (*CalibrationSQLite)(nil)

const insertCalibrationSQL = `
	INSERT INTO calibration_runs
		(id, heater, target_c, ambient_c, gain, time_constant, delay_time, sample_count, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectCalibrationsSQL = `
	SELECT id, heater, target_c, ambient_c, gain, time_constant, delay_time, sample_count, started_at, finished_at
	FROM calibration_runs
`

// Insert stores one completed run. An empty RunID is filled in.
func (r *CalibrationSQLite) Insert(ctx context.Context, run hh.CalibrationRun) error {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertCalibrationSQL,
		run.RunID,
		run.Heater,
		run.Target,
		run.Ambient,
		run.Gain,
		run.TimeConstant,
		run.DelayTime,
		run.SampleCount,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
	)
	return err
}

// List returns runs, newest first, optionally filtered by heater name.
func (r *CalibrationSQLite) List(ctx context.Context, heater string) ([]hh.CalibrationRun, error) {
	q := selectCalibrationsSQL
	var args []any
	if heater = strings.TrimSpace(heater); heater != "" {
		q += " WHERE heater = ?"
		args = append(args, heater)
	}
	q += " ORDER BY finished_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]hh.CalibrationRun, 0, 8)
	for rows.Next() {
		var run hh.CalibrationRun
		if err := rows.Scan(
			&run.RunID,
			&run.Heater,
			&run.Target,
			&run.Ambient,
			&run.Gain,
			&run.TimeConstant,
			&run.DelayTime,
			&run.SampleCount,
			&run.StartedAt,
			&run.FinishedAt,
		); err != nil {
			return nil, err
		}
		run.StartedAt = run.StartedAt.UTC()
		run.FinishedAt = run.FinishedAt.UTC()
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

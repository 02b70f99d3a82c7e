package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	hh "heater_host"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestStateSave_UpsertArgs(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewStateSQLite(db)

	ts := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO heater_states")).
		WithArgs("extruder0", 203.5, 210.0, 0.42, true, true, false, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(ctx(t), hh.HeaterState{
		Name:        "extruder0",
		Temperature: 203.5,
		Target:      210.0,
		Power:       0.42,
		CanExtrude:  true,
		Busy:        true,
		Fault:       false,
		UpdatedAt:   ts,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	expectMet(t, mock)
}

func TestStateSave_FillsZeroTimestamp(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewStateSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO heater_states")).
		WithArgs("heater_bed", 0.0, 0.0, 0.0, false, false, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(ctx(t), hh.HeaterState{Name: "heater_bed"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	expectMet(t, mock)
}

func TestStateLoad_MissingRowYieldsZeroState(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewStateSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM heater_states WHERE name=?")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Load(ctx(t), "ghost")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != (hh.HeaterState{}) {
		t.Fatalf("expected zero state, got %+v", got)
	}
	expectMet(t, mock)
}

func TestStateLoadAll_ScansRows(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewStateSQLite(db)

	ts := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"name", "temp_c", "target_c", "power", "can_extrude", "busy", "fault", "updated_at"}).
		AddRow("extruder0", 210.0, 210.0, 0.4, true, false, false, ts).
		AddRow("heater_bed", 60.0, 60.0, 0.2, false, false, false, ts)

	mock.ExpectQuery(regexp.QuoteMeta("FROM heater_states ORDER BY name ASC")).
		WillReturnRows(rows)

	got, err := repo.LoadAll(ctx(t))
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 2 || got[0].Name != "extruder0" || got[1].Name != "heater_bed" {
		t.Fatalf("unexpected states: %+v", got)
	}
	if !got[0].CanExtrude || got[0].Temperature != 210.0 {
		t.Fatalf("first state mismatch: %+v", got[0])
	}
	expectMet(t, mock)
}

package repository

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	hh "heater_host"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestEventAppend_FillsDefaultsAndNormalizesType(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO heater_events")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "TARGET_SET", "extruder0", "Heater target changed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), hh.HeaterEvent{
		// EventID empty -> repo generates
		// OccurredAt zero -> repo sets UTC now
		Type:        "  target_set ",
		Heater:      "extruder0",
		Description: "Heater target changed",
		Metadata:    map[string]any{"target_c": 210},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	expectMet(t, mock)
}

func TestEventAppend_DBError(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	mock.ExpectExec("INSERT INTO heater_events").
		WillReturnError(errors.New("down"))

	err := repo.Append(ctx(t), hh.HeaterEvent{Type: "FAULT", Heater: "extruder0"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
	expectMet(t, mock)
}

func TestEventList_NoFilters_MetadataParsing(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	js, _ := json.Marshal(map[string]any{"gain": 44.2})

	rows := sqlmock.NewRows([]string{"id", "occurred_at", "type", "heater", "message", "meta"}).
		AddRow("1", now, "CALIBRATION", "extruder0", "Bump test completed", string(js)).
		AddRow("2", now.Add(time.Hour), "OFF", "heater_bed", "Heater target changed", nil)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, occurred_at, type, heater, message, meta FROM heater_events ORDER BY occurred_at ASC`)).
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), time.Time{}, time.Time{}, "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2, got %d", len(got))
	}
	if got[0].EventID != "1" || got[0].Heater != "extruder0" {
		t.Fatalf("unexpected first event: %+v", got[0])
	}
	b, _ := json.Marshal(got[0].Metadata)
	if string(b) != string(js) {
		t.Fatalf("metadata mismatch: %s vs %s", string(b), string(js))
	}
	if got[1].Metadata != nil {
		t.Fatalf("expected nil meta, got %#v", got[1].Metadata)
	}
	expectMet(t, mock)
}

func TestEventList_AllFilters(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	from := time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	query := `SELECT id, occurred_at, type, heater, message, meta FROM heater_events WHERE occurred_at >= ? AND occurred_at <= ? AND heater = ? AND type = ? ORDER BY occurred_at ASC`
	rows := sqlmock.NewRows([]string{"id", "occurred_at", "type", "heater", "message", "meta"}).
		AddRow("3", from, "FAULT", "extruder0", "x", nil)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs(from.UTC(), to.UTC(), "extruder0", "FAULT").
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), from, to, " extruder0 ", " fault ")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "3" {
		t.Fatalf("unexpected results: %+v", got)
	}
	expectMet(t, mock)
}

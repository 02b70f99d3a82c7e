package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	hh "heater_host"
	"heater_host/internal/service"
)

func newLogsRouter(el *mockEventLog) http.Handler {
	return newTestRouter(&service.Service{
		Authorization: &mockAuth{parseID: 7},
		EventLog:      el,
	})
}

func TestGetLogsParsesTimeFormats(t *testing.T) {
	cases := []struct {
		name     string
		from, to string
		wantFrom time.Time
		wantTo   time.Time
	}{
		{
			name:     "rfc3339",
			from:     "2026-08-01T10:00:00Z",
			to:       "2026-08-02T10:00:00Z",
			wantFrom: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "datetime",
			from:     "2026-08-01 10:00:00",
			wantFrom: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "date only to becomes end of day",
			to:       "2026-08-01",
			wantTo:   time.Date(2026, 8, 1, 23, 59, 59, 999999999, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			el := &mockEventLog{}
			r := newLogsRouter(el)

			q := url.Values{}
			if tc.from != "" {
				q.Set("from", tc.from)
			}
			if tc.to != "" {
				q.Set("to", tc.to)
			}
			w := doRequest(t, r, http.MethodGet, "/api/v1/logs/?"+q.Encode(), "valid", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
			}
			if !el.lastFilter.From.Equal(tc.wantFrom) {
				t.Fatalf("from = %v, want %v", el.lastFilter.From, tc.wantFrom)
			}
			if !el.lastFilter.To.Equal(tc.wantTo) {
				t.Fatalf("to = %v, want %v", el.lastFilter.To, tc.wantTo)
			}
		})
	}
}

func TestGetLogsForwardsHeaterAndType(t *testing.T) {
	el := &mockEventLog{resp: []hh.HeaterEvent{{Heater: "extruder0", Type: "TARGET_SET"}}}
	r := newLogsRouter(el)

	w := doRequest(t, r, http.MethodGet, "/api/v1/logs/?heater=extruder0&type=+target_set+", "valid", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	if el.lastFilter.Heater != "extruder0" {
		t.Fatalf("heater filter = %q", el.lastFilter.Heater)
	}
	if el.lastFilter.Type != "TARGET_SET" {
		t.Fatalf("type filter = %q", el.lastFilter.Type)
	}
	var resp struct {
		Count  int              `json:"count"`
		Events []hh.HeaterEvent `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || len(resp.Events) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetLogsRejectsBadInput(t *testing.T) {
	el := &mockEventLog{}
	r := newLogsRouter(el)

	w := doRequest(t, r, http.MethodGet, "/api/v1/logs/?from=yesterday", "valid", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad from status=%d", w.Code)
	}

	w = doRequest(t, r, http.MethodGet, "/api/v1/logs/?from=2026-08-02&to=2026-08-01", "valid", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("inverted range status=%d", w.Code)
	}
}

func TestGetLogsServiceError(t *testing.T) {
	el := &mockEventLog{err: errors.New("db down")}
	r := newLogsRouter(el)

	w := doRequest(t, r, http.MethodGet, "/api/v1/logs/", "valid", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
}

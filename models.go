package heater_host

import "time"

// HeaterState is the current snapshot of one heater.
type HeaterState struct {
	Name        string    `json:"name"`
	Temperature float64   `json:"temperature_c"`          // °C
	Target      float64   `json:"target_c,omitempty"`     // °C, 0 = off
	Power       float64   `json:"power"`                  // last commanded PWM in [0,1]
	CanExtrude  bool      `json:"can_extrude"`
	Busy        bool      `json:"busy"`
	Fault       bool      `json:"fault,omitempty"` // FOPDT soft thermal fault
	UpdatedAt   time.Time `json:"updated_at"`
}

// HeaterEvent is a single log entry.
type HeaterEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`   // TARGET_SET | OFF | CALIBRATION | FAULT | TELEMETRY
	Heater      string    `json:"heater"` // heater name, may be empty for system events
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}

// CalibrationRun records one completed bump test and its fitted model.
type CalibrationRun struct {
	RunID        string    `json:"run_id"`
	Heater       string    `json:"heater"`
	Target       float64   `json:"target_c"`
	Ambient      float64   `json:"ambient_c"`
	Gain         float64   `json:"gain"`          // °C per unit power
	TimeConstant float64   `json:"time_constant"` // seconds
	DelayTime    float64   `json:"delay_time"`    // seconds
	SampleCount  int       `json:"sample_count"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // never expose the hash
}

package heater

import (
	"errors"
	"fmt"
)

// ErrorKind classifies heater errors so callers can branch on the kind
// instead of matching message text.
type ErrorKind int

const (
	// ErrTargetOutOfRange is returned by SetTemp for a non-zero target
	// outside [min_temp, max_temp]. A target of 0 is always accepted.
	ErrTargetOutOfRange ErrorKind = iota
	// ErrUnknownHeater is returned by registry lookups for missing names.
	ErrUnknownHeater
	// ErrUnknownSensor is returned when no factory is registered for a
	// configured sensor type. Configuration-time, fatal.
	ErrUnknownSensor
	// ErrInvalidConfig covers malformed heater configuration.
	ErrInvalidConfig
)

func (k ErrorKind) String() string {
	switch k {
	case ErrTargetOutOfRange:
		return "target_out_of_range"
	case ErrUnknownHeater:
		return "unknown_heater"
	case ErrUnknownSensor:
		return "unknown_sensor"
	case ErrInvalidConfig:
		return "invalid_config"
	}
	return "unknown"
}

// Error carries an ErrorKind plus a human-readable message.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// NewError builds a kinded error. Exported for callers that implement
// their own sensors or outputs.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return newError(kind, format, args...)
}

// IsKind reports whether err (or anything it wraps) is a heater Error of
// the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var he *Error
	return errors.As(err, &he) && he.Kind == kind
}

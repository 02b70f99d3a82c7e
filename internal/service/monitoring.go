package service

import (
	"context"
	"time"

	hh "heater_host"
	"heater_host/internal/heater"
)

// MonitoringService serves live snapshots straight from the registry.
type MonitoringService struct {
	registry *heater.Registry
	clock    heater.Clock
}

func NewMonitoringService(reg *heater.Registry, clock heater.Clock) *MonitoringService {
	return &MonitoringService{registry: reg, clock: clock}
}

// GetState returns the live snapshot for one heater.
func (s *MonitoringService) GetState(ctx context.Context, name string) (hh.HeaterState, error) {
	h, err := s.registry.LookupHeater(name)
	if err != nil {
		return hh.HeaterState{}, err
	}
	return s.snapshot(h), nil
}

// GetStates returns live snapshots for every registered heater.
func (s *MonitoringService) GetStates(ctx context.Context) ([]hh.HeaterState, error) {
	names := s.registry.Names()
	out := make([]hh.HeaterState, 0, len(names))
	for _, name := range names {
		h, err := s.registry.LookupHeater(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s.snapshot(h))
	}
	return out, nil
}

func (s *MonitoringService) snapshot(h *heater.Heater) hh.HeaterState {
	st := h.Status()
	return hh.HeaterState{
		Name:        h.Name(),
		Temperature: st.Temperature,
		Target:      st.Target,
		Power:       st.Power,
		CanExtrude:  st.CanExtrude,
		Busy:        h.CheckBusy(s.clock.Monotonic()),
		Fault:       st.Fault,
		UpdatedAt:   time.Now().UTC(),
	}
}

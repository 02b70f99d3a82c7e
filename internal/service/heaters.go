package service

import (
	"context"
	"time"

	hh "heater_host"
	"heater_host/internal/heater"
	"heater_host/internal/repository"

	"github.com/google/uuid"
)

// HeaterControlService is the command path: it forwards target changes to
// the live heaters and records them.
type HeaterControlService struct {
	registry  *heater.Registry
	stateRepo repository.StateRepo
	eventRepo repository.EventRepo
	clock     heater.Clock
}

func NewHeaterControlService(reg *heater.Registry, stateRepo repository.StateRepo,
	eventRepo repository.EventRepo, clock heater.Clock) *HeaterControlService {
	return &HeaterControlService{
		registry:  reg,
		stateRepo: stateRepo,
		eventRepo: eventRepo,
		clock:     clock,
	}
}

// SetTarget sets a heater's target temperature. Out-of-range targets are
// rejected by the heater itself (kind TargetOutOfRange).
func (s *HeaterControlService) SetTarget(ctx context.Context, name string, targetC float64) error {
	eventType := EventTargetSet
	if targetC == 0 {
		eventType = EventOff
	}
	return s.applyTarget(ctx, name, targetC, eventType)
}

// Off turns a heater off. Always in range.
func (s *HeaterControlService) Off(ctx context.Context, name string) error {
	return s.applyTarget(ctx, name, 0, EventOff)
}

func (s *HeaterControlService) applyTarget(ctx context.Context, name string, targetC float64, eventType string) error {
	h, err := s.registry.LookupHeater(name)
	if err != nil {
		return err
	}
	now := s.clock.Monotonic()
	if err := h.SetTemp(now, targetC); err != nil {
		return err
	}
	s.persist(ctx, h, now)
	return s.eventRepo.Append(ctx, hh.HeaterEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        eventType,
		Heater:      h.Name(),
		Description: "Heater target changed",
		Metadata:    map[string]any{"target_c": targetC},
	})
}

// persist stores a best-effort snapshot; a failed write never blocks the
// command path.
func (s *HeaterControlService) persist(ctx context.Context, h *heater.Heater, now float64) {
	st := h.Status()
	_ = s.stateRepo.Save(ctx, hh.HeaterState{
		Name:        h.Name(),
		Temperature: st.Temperature,
		Target:      st.Target,
		Power:       st.Power,
		CanExtrude:  st.CanExtrude,
		Busy:        h.CheckBusy(now),
		Fault:       st.Fault,
		UpdatedAt:   time.Now().UTC(),
	})
}

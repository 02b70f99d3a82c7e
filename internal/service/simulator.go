package service

import (
	"context"
	"math"
	"sync"
	"time"

	hh "heater_host"
	"heater_host/internal/heater"
	"heater_host/internal/logger"
	"heater_host/internal/repository"

	"github.com/google/uuid"
)

// Default physical parameters for a simulated hotend-class heater.
const (
	defaultPlantGain           = 40.0 // °C per unit power
	defaultPlantTimeConstant   = 90.0 // seconds
	defaultPlantDelay          = 5.0  // seconds
	defaultPlantAmbient        = 25.0 // °C
	defaultPlantReportInterval = 0.3  // seconds between sensor reports
)

// PlantConfig describes the simulated thermal response of one heater.
type PlantConfig struct {
	Gain           float64 `mapstructure:"gain"`
	TimeConstant   float64 `mapstructure:"time_constant"`
	DelayTime      float64 `mapstructure:"delay_time"`
	Ambient        float64 `mapstructure:"ambient"`
	ReportInterval float64 `mapstructure:"report_interval"`
}

func (c PlantConfig) withDefaults() PlantConfig {
	if c.Gain == 0 {
		c.Gain = defaultPlantGain
	}
	if c.TimeConstant == 0 {
		c.TimeConstant = defaultPlantTimeConstant
	}
	if c.DelayTime == 0 {
		c.DelayTime = defaultPlantDelay
	}
	if c.Ambient == 0 {
		c.Ambient = defaultPlantAmbient
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = defaultPlantReportInterval
	}
	return c
}

type pwmEdge struct {
	time  float64
	value float64
}

// Plant is a first-order-plus-delay thermal model standing in for the
// MCU: it is both the PWM driver (scheduled edges, cycle time, a
// max-duration watchdog that forces power off when not refreshed) and
// the temperature sensor (fixed report cadence into the heater callback)
// for one heater.
type Plant struct {
	name  string
	cfg   PlantConfig
	clock heater.Clock

	mu          sync.Mutex
	pending     []pwmEdge
	power       float64
	lastRefresh float64
	maxDuration float64
	cycleTime   float64
	minTemp     float64
	maxTemp     float64
	callback    func(readTime, temp float64)

	modelTemp  float64 // relative to ambient
	smoothTemp float64
	lastUpdate float64
	nextReport float64
}

var (
	_ heater.PWMOutput = (*Plant)(nil)
	_ heater.Sensor    = (*Plant)(nil)
)

func newPlant(name string, cfg PlantConfig, clock heater.Clock) *Plant {
	return &Plant{name: name, cfg: cfg.withDefaults(), clock: clock}
}

// SetPWM schedules a power change; the schedule time also refreshes the
// watchdog window.
func (p *Plant) SetPWM(pwmTime, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, pwmEdge{time: pwmTime, value: value})
	p.lastRefresh = pwmTime
}

func (p *Plant) SetupCycleTime(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycleTime = seconds
}

func (p *Plant) SetupMaxDuration(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxDuration = seconds
}

func (p *Plant) SetupMinmax(min, max float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minTemp, p.maxTemp = min, max
}

func (p *Plant) SetupCallback(cb func(readTime, temp float64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callback = cb
}

func (p *Plant) ReportTimeDelta() float64 {
	return p.cfg.ReportInterval
}

// integrateTo advances the model to time t with the current power.
func (p *Plant) integrateTo(t float64) {
	dt := t - p.lastUpdate
	if dt <= 0 {
		return
	}
	tcFactor := math.Exp(-dt / p.cfg.TimeConstant)
	p.modelTemp = p.modelTemp*tcFactor + p.cfg.Gain*p.power*(1.0-tcFactor)
	smoothFactor := 1.0 - math.Exp(-dt/p.cfg.DelayTime)
	p.smoothTemp += (p.modelTemp - p.smoothTemp) * smoothFactor
	p.lastUpdate = t
}

// Advance steps the simulation to now and, when the report cadence is
// due, invokes the sensor callback outside the plant mutex (the callback
// re-enters the plant through the heater's control loop).
func (p *Plant) Advance(now float64) {
	p.mu.Lock()
	// Apply scheduled edges in order.
	for len(p.pending) > 0 && p.pending[0].time <= now {
		edge := p.pending[0]
		p.pending = p.pending[1:]
		p.integrateTo(edge.time)
		p.power = edge.value
	}
	// Driver watchdog: without a refresh inside the window the output is
	// forced to its safe state.
	if p.maxDuration > 0 && p.power > 0 && now > p.lastRefresh+p.maxDuration {
		p.integrateTo(p.lastRefresh + p.maxDuration)
		p.power = 0
	}
	p.integrateTo(now)
	cb := p.callback
	due := cb != nil && now >= p.nextReport
	var temp float64
	if due {
		p.nextReport = now + p.cfg.ReportInterval
		temp = p.cfg.Ambient + p.smoothTemp
	}
	p.mu.Unlock()
	if due {
		cb(now, temp)
	}
}

// Power returns the currently applied PWM value.
func (p *Plant) Power() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.power
}

// Temperature returns the current simulated sensor temperature.
func (p *Plant) Temperature() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Ambient + p.smoothTemp
}

// SimulatorService owns the plants and ticks them, persisting telemetry
// snapshots and raising FAULT events once per heater.
type SimulatorService struct {
	stateRepo repository.StateRepo
	eventRepo repository.EventRepo
	registry  *heater.Registry
	clock     heater.Clock
	log       *logger.Logger

	mu      sync.Mutex
	plants  map[string]*Plant
	faulted map[string]bool
}

func NewSimulatorService(stateRepo repository.StateRepo, eventRepo repository.EventRepo,
	reg *heater.Registry, clock heater.Clock, log *logger.Logger) *SimulatorService {
	return &SimulatorService{
		stateRepo: stateRepo,
		eventRepo: eventRepo,
		registry:  reg,
		clock:     clock,
		log:       log,
		plants:    make(map[string]*Plant),
		faulted:   make(map[string]bool),
	}
}

// CreatePlant registers a simulated plant for the named heater and
// returns it. The plant serves as both the heater's PWM output and its
// sensor.
func (s *SimulatorService) CreatePlant(name string, cfg PlantConfig) *Plant {
	p := newPlant(name, cfg, s.clock)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plants[name] = p
	return p
}

// Plant returns the plant registered for name.
func (s *SimulatorService) Plant(name string) (*Plant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plants[name]
	return p, ok
}

// Run ticks all plants at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			now := s.clock.Monotonic()
			for _, p := range s.snapshotPlants() {
				p.Advance(now)
			}
			s.persist(ctx, now)
		}
	}
}

func (s *SimulatorService) snapshotPlants() []*Plant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Plant, 0, len(s.plants))
	for _, p := range s.plants {
		out = append(out, p)
	}
	return out
}

// persist writes a telemetry snapshot per heater and appends a FAULT
// event the first time a heater reports its soft thermal fault.
func (s *SimulatorService) persist(ctx context.Context, now float64) {
	for _, name := range s.registry.Names() {
		h, err := s.registry.LookupHeater(name)
		if err != nil {
			continue
		}
		st := h.Status()
		if err := s.stateRepo.Save(ctx, hh.HeaterState{
			Name:        name,
			Temperature: st.Temperature,
			Target:      st.Target,
			Power:       st.Power,
			CanExtrude:  st.CanExtrude,
			Busy:        h.CheckBusy(now),
			Fault:       st.Fault,
			UpdatedAt:   time.Now().UTC(),
		}); err != nil {
			s.log.Warnw("simulator_persist_failed", "heater", name, "err", err)
		}
		if st.Fault && !s.markFaulted(name) {
			_ = s.eventRepo.Append(ctx, hh.HeaterEvent{
				EventID:     uuid.NewString(),
				OccurredAt:  time.Now().UTC(),
				Type:        EventFault,
				Heater:      name,
				Description: "Heater not heating at expected rate",
			})
		}
	}
}

// markFaulted records the fault flag and reports whether it was already
// set.
func (s *SimulatorService) markFaulted(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.faulted[name]
	s.faulted[name] = true
	return was
}

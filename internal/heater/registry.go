package heater

import (
	"sort"
	"sync"

	"heater_host/internal/logger"
)

// SensorFactory builds a sensor from the heater configuration.
type SensorFactory func(cfg Config) (Sensor, error)

// Registry maps heater names to heaters and sensor types to factories.
// It is an explicit object passed to its callers, not process-wide state.
type Registry struct {
	log *logger.Logger

	mu      sync.Mutex
	sensors map[string]SensorFactory
	heaters map[string]*Heater
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		log:     log,
		sensors: make(map[string]SensorFactory),
		heaters: make(map[string]*Heater),
	}
}

// AddSensorFactory registers a factory for a sensor type.
func (r *Registry) AddSensorFactory(sensorType string, factory SensorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sensors[sensorType] = factory
}

// canonicalName resolves the legacy "extruder" alias.
func canonicalName(name string) string {
	if name == "extruder" {
		return "extruder0"
	}
	return name
}

// SetupHeater builds the sensor for cfg.SensorType, creates the heater
// and registers it under its (canonical) name.
func (r *Registry) SetupHeater(cfg Config, out PWMOutput, clock Clock) (*Heater, error) {
	name := canonicalName(cfg.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.heaters[name]; ok {
		return nil, newError(ErrInvalidConfig, "heater %s already registered", name)
	}
	factory, ok := r.sensors[cfg.SensorType]
	if !ok {
		return nil, newError(ErrUnknownSensor, "unknown temperature sensor %q", cfg.SensorType)
	}
	sensor, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Name = name
	h, err := NewHeater(cfg, sensor, out, clock, r.log)
	if err != nil {
		return nil, err
	}
	r.heaters[name] = h
	return h, nil
}

// LookupHeater returns the heater registered under name.
func (r *Registry) LookupHeater(name string) (*Heater, error) {
	name = canonicalName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.heaters[name]
	if !ok {
		return nil, newError(ErrUnknownHeater, "unknown heater %q", name)
	}
	return h, nil
}

// Names returns the registered heater names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.heaters))
	for name := range r.heaters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

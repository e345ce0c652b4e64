package instrument

import (
	"fmt"
	"sort"
	"sync"

	"github.com/timzifer/qlab/config"
)

// Transport moves raw register values between parameters and hardware.
type Transport interface {
	Read(register string) (interface{}, error)
	Write(register string, value interface{}) error
	Close() error
}

// Factory builds an instrument for a configured driver.
type Factory func(cfg config.InstrumentConfig, opts ...Option) (*Instrument, error)

// TransportFactory opens the transport of a configured instrument.
type TransportFactory func(cfg config.InstrumentConfig) (Transport, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterDriver makes a driver available to Open under id. Drivers
// register from init and a duplicate id panics.
func RegisterDriver(id string, factory Factory) {
	if id == "" {
		panic("driver id must not be empty")
	}
	if factory == nil {
		panic("driver factory must not be nil")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[id]; exists {
		panic(fmt.Sprintf("driver %s already registered", id))
	}
	registry[id] = factory
}

// RegisteredDrivers lists the registered driver ids in sorted order.
func RegisteredDrivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FromTransport adapts a TransportFactory into a Factory that builds the
// configured parameters on top of the opened transport.
func FromTransport(open TransportFactory) Factory {
	return func(cfg config.InstrumentConfig, opts ...Option) (*Instrument, error) {
		transport, err := open(cfg)
		if err != nil {
			return nil, fmt.Errorf("instrument %s: open transport: %w", cfg.Name, err)
		}
		inst, err := Build(cfg, transport, opts...)
		if err != nil {
			_ = transport.Close()
			return nil, err
		}
		return inst, nil
	}
}

// Open builds the instrument described by cfg with the factory registered
// for its driver. Factories passed through WithDriver take precedence.
func Open(cfg config.InstrumentConfig, opts ...Option) (*Instrument, error) {
	s, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	factory, ok := s.drivers[cfg.Driver]
	if !ok {
		registryMu.RLock()
		factory, ok = registry[cfg.Driver]
		registryMu.RUnlock()
	}
	if !ok {
		return nil, fmt.Errorf("instrument %s: driver %q not registered", cfg.Name, cfg.Driver)
	}
	return factory(cfg, opts...)
}

// Package instrument groups parameters behind a named instrument and builds
// instruments from configuration through registered drivers.
package instrument

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/timzifer/qlab/parameter"
)

// Instrument owns a set of parameters and the transport they talk through.
type Instrument struct {
	name      string
	driver    string
	transport Transport
	logger    zerolog.Logger

	mu        sync.RWMutex
	params    map[string]*parameter.Parameter
	extension interface{}
}

// New creates an empty instrument. transport may be nil for instruments
// whose parameters only use manual or custom capabilities.
func New(name, driver string, transport Transport, logger zerolog.Logger) *Instrument {
	return &Instrument{
		name:      name,
		driver:    driver,
		transport: transport,
		logger:    logger.With().Str("instrument", name).Logger(),
		params:    make(map[string]*parameter.Parameter),
	}
}

// Name returns the instrument name.
func (i *Instrument) Name() string {
	return i.name
}

// Driver returns the driver id the instrument was built with.
func (i *Instrument) Driver() string {
	return i.driver
}

// Transport returns the transport of the instrument, possibly nil.
func (i *Instrument) Transport() Transport {
	return i.transport
}

// Logger returns the instrument scoped logger.
func (i *Instrument) Logger() zerolog.Logger {
	return i.logger
}

// SetExtension attaches driver specific state, such as a board handle, to
// the instrument.
func (i *Instrument) SetExtension(ext interface{}) {
	i.mu.Lock()
	i.extension = ext
	i.mu.Unlock()
}

// Extension returns the value stored with SetExtension.
func (i *Instrument) Extension() interface{} {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.extension
}

// AddParameter registers p. Names must be unique within the instrument.
func (i *Instrument) AddParameter(p *parameter.Parameter) error {
	if p == nil {
		return errors.New("parameter must not be nil")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.params[p.Name()]; exists {
		return fmt.Errorf("instrument %s: duplicate parameter %q", i.name, p.Name())
	}
	i.params[p.Name()] = p
	return nil
}

// Parameter returns the named parameter.
func (i *Instrument) Parameter(name string) (*parameter.Parameter, error) {
	i.mu.RLock()
	p, ok := i.params[name]
	i.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("instrument %s: unknown parameter %q", i.name, name)
	}
	return p, nil
}

// Parameters returns all parameters ordered by name.
func (i *Instrument) Parameters() []*parameter.Parameter {
	i.mu.RLock()
	defer i.mu.RUnlock()
	params := make([]*parameter.Parameter, 0, len(i.params))
	for _, p := range i.params {
		params = append(params, p)
	}
	sort.Slice(params, func(a, b int) bool { return params[a].Name() < params[b].Name() })
	return params
}

// Get reads the named parameter from the instrument.
func (i *Instrument) Get(name string) (interface{}, error) {
	p, err := i.Parameter(name)
	if err != nil {
		return nil, err
	}
	return p.Get()
}

// Set writes value to the named parameter.
func (i *Instrument) Set(name string, value interface{}) error {
	p, err := i.Parameter(name)
	if err != nil {
		return err
	}
	return p.Set(value)
}

// Snapshot is the state of an instrument and all of its parameters.
type Snapshot struct {
	Name       string                        `json:"name"`
	Driver     string                        `json:"driver,omitempty"`
	Parameters map[string]parameter.Snapshot `json:"parameters"`
}

// Snapshot records every parameter. With update set gettable parameters are
// read first; a failing read aborts the snapshot.
func (i *Instrument) Snapshot(update bool) (Snapshot, error) {
	snap := Snapshot{Name: i.name, Driver: i.driver, Parameters: make(map[string]parameter.Snapshot)}
	for _, p := range i.Parameters() {
		ps, err := p.Snapshot(update)
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot %s: %w", p.FullName(), err)
		}
		snap.Parameters[p.Name()] = ps
	}
	return snap, nil
}

// Close releases the transport.
func (i *Instrument) Close() error {
	if i.transport == nil {
		return nil
	}
	return i.transport.Close()
}

// Package random provides a read-only instrument driver whose registers
// return random values, useful as a noise source when exercising sweeps.
package random

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/timzifer/qlab/config"
	"github.com/timzifer/qlab/instrument"
)

// DriverID is the driver name used in configuration files.
const DriverID = "random"

// ErrReadOnly is returned for every write.
var ErrReadOnly = errors.New("random registers are read-only")

func init() {
	instrument.RegisterDriver(DriverID, instrument.FromTransport(func(cfg config.InstrumentConfig) (instrument.Transport, error) {
		return Open(cfg.DriverSettings)
	}))
}

// Transport generates a fresh value on every read.
type Transport struct {
	mu       sync.Mutex
	rng      *rand.Rand
	settings Settings
	specs    map[string]registerSpec
}

// Open decodes settings and prepares the random source.
func Open(node *yaml.Node) (*Transport, error) {
	settings, err := parseSettings(node)
	if err != nil {
		return nil, err
	}
	return NewTransport(settings)
}

// NewTransport validates settings and builds a transport.
func NewTransport(settings Settings) (*Transport, error) {
	rng, err := newRand(settings.Source, settings.Seed)
	if err != nil {
		return nil, err
	}
	specs := make(map[string]registerSpec, len(settings.Registers))
	for name := range settings.Registers {
		spec, err := settings.resolve(name)
		if err != nil {
			return nil, err
		}
		specs[name] = spec
	}
	return &Transport{rng: rng, settings: settings, specs: specs}, nil
}

// Read implements instrument.Transport.
func (t *Transport) Read(register string) (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	spec, ok := t.specs[register]
	if !ok {
		var err error
		if spec, err = t.settings.resolve(register); err != nil {
			return nil, err
		}
		t.specs[register] = spec
	}
	return spec.generate(t.rng)
}

// Write implements instrument.Transport.
func (t *Transport) Write(register string, _ interface{}) error {
	return fmt.Errorf("register %s: %w", register, ErrReadOnly)
}

// Close implements instrument.Transport.
func (t *Transport) Close() error {
	return nil
}

func (r registerSpec) generate(rng *rand.Rand) (interface{}, error) {
	switch r.kind {
	case "int":
		return uniformInt(rng, int64(math.Ceil(r.min)), int64(math.Floor(r.max)))
	case "bool":
		return rng.Float64() < r.probability, nil
	case "string":
		return word(rng, r.length, r.alphabet)
	case "decimal":
		return decimal.NewFromFloat(uniform(rng, r.min, r.max)), nil
	default:
		return uniform(rng, r.min, r.max), nil
	}
}

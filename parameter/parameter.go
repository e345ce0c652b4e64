// Package parameter models a single named instrument setting with a cached,
// validated value.
//
// A Parameter wraps optional raw get and set functions with a Transform
// between the raw value the instrument understands and the cooked value
// callers work with. Every successful get or set records the value in the
// parameter's Cache, which can answer later reads without instrument I/O as
// long as the value is still valid.
package parameter

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/timzifer/qlab/telemetry"
)

// Clock returns the current time.
type Clock func() time.Time

// Validator checks a cooked value before it is written.
type Validator interface {
	Validate(value interface{}) error
}

// Parameter is a named, optionally gettable and settable instrument value.
type Parameter struct {
	name       string
	instrument string
	label      string
	unit       string

	getter    Getter
	setter    Setter
	transform Transform
	validator Validator

	cache *Cache

	clock     Clock
	logger    zerolog.Logger
	collector telemetry.Collector

	getCount int
	setCount int
}

// New creates a parameter and verifies at construction time that a maximum
// value age is only configured together with a getter.
func New(name string, opts ...Option) (*Parameter, error) {
	return build(name, true, opts)
}

// NewBase creates a parameter without the getter check for the maximum value
// age. It is meant for types that attach a getter after construction with
// AttachGetter; a missing getter is then reported lazily by Cache.Get.
func NewBase(name string, opts ...Option) (*Parameter, error) {
	return build(name, false, opts)
}

func build(name string, checkGetter bool, opts []Option) (*Parameter, error) {
	if name == "" {
		return nil, &UsageError{Parameter: "<unnamed>", Reason: "name must not be empty"}
	}
	cfg := settings{
		getter:    NoGetter(),
		setter:    NoSetter(),
		clock:     time.Now,
		logger:    zerolog.Nop(),
		collector: telemetry.Noop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, &UsageError{Parameter: name, Reason: err.Error()}
		}
	}
	if cfg.hasInitialValue && cfg.hasInitialCacheValue {
		return nil, &UsageError{Parameter: name, Reason: "it is not possible to specify both `initial_value` and `initial_cache_value`"}
	}
	if checkGetter && cfg.hasMaxValAge && !cfg.getter.Present() {
		return nil, &UsageError{Parameter: name, Reason: "a parameter without get cannot have `max_val_age`"}
	}
	if cfg.hasMaxValAge && cfg.maxValAge < 0 {
		return nil, &UsageError{Parameter: name, Reason: "`max_val_age` must not be negative"}
	}
	if err := cfg.transform.validate(); err != nil {
		return nil, &UsageError{Parameter: name, Reason: err.Error()}
	}

	p := &Parameter{
		name:       name,
		instrument: cfg.instrument,
		label:      cfg.label,
		unit:       cfg.unit,
		getter:     cfg.getter,
		setter:     cfg.setter,
		transform:  cfg.transform,
		validator:  cfg.validator,
		clock:      cfg.clock,
		logger:     cfg.logger.With().Str("parameter", fullName(cfg.instrument, name)).Logger(),
		collector:  cfg.collector,
	}
	if p.label == "" {
		p.label = name
	}
	p.cache = newCache(p, cfg.maxValAge, cfg.hasMaxValAge)

	switch {
	case cfg.hasInitialValue:
		if err := p.Set(cfg.initialValue); err != nil {
			return nil, fmt.Errorf("parameter %s: set initial value: %w", p.FullName(), err)
		}
	case cfg.hasInitialCacheValue:
		if err := p.cache.Set(cfg.initialCacheValue); err != nil {
			return nil, fmt.Errorf("parameter %s: set initial cache value: %w", p.FullName(), err)
		}
	}
	return p, nil
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// FullName prefixes the name with the owning instrument, if any.
func (p *Parameter) FullName() string {
	return fullName(p.instrument, p.name)
}

// Label returns the human readable label. It defaults to the name.
func (p *Parameter) Label() string {
	return p.label
}

// Unit returns the physical unit of the cooked value.
func (p *Parameter) Unit() string {
	return p.unit
}

// Cache returns the value cache owned by the parameter.
func (p *Parameter) Cache() *Cache {
	return p.cache
}

// Transform returns the configured raw/cooked transform.
func (p *Parameter) Transform() Transform {
	return p.transform
}

// Validator returns the validator checking set values, or nil.
func (p *Parameter) Validator() Validator {
	return p.validator
}

// Gettable reports whether Get can succeed.
func (p *Parameter) Gettable() bool {
	return p.getter.Present()
}

// Settable reports whether Set can succeed.
func (p *Parameter) Settable() bool {
	return p.setter.Present()
}

// GetCount returns how many gets completed successfully.
func (p *Parameter) GetCount() int {
	return p.getCount
}

// SetCount returns how many sets completed successfully.
func (p *Parameter) SetCount() int {
	return p.setCount
}

// AttachGetter replaces the read capability after construction.
func (p *Parameter) AttachGetter(g Getter) {
	p.getter = g
}

// AttachSetter replaces the write capability after construction.
func (p *Parameter) AttachSetter(s Setter) {
	p.setter = s
}

// Get reads the raw value, converts it to the cooked value and records both
// in the cache. Errors of the underlying getter are returned unchanged.
func (p *Parameter) Get() (interface{}, error) {
	var raw interface{}
	switch p.getter.mode {
	case CapabilityManual:
		raw = p.cache.raw
	case CapabilityFunc:
		value, err := p.getter.fn()
		if err != nil {
			p.collector.IncParameterError(p.FullName(), "get")
			p.logger.Debug().Err(err).Msg("parameter get failed")
			return nil, err
		}
		raw = value
	default:
		p.collector.IncParameterError(p.FullName(), "get")
		return nil, &CapabilityError{Parameter: p.FullName(), Capability: "get"}
	}

	value, err := p.transform.FromRaw(raw)
	if err != nil {
		p.collector.IncParameterError(p.FullName(), "get")
		return nil, fmt.Errorf("parameter %s: %w", p.FullName(), err)
	}
	p.cache.UpdateWith(value, raw, p.now())
	p.getCount++
	p.collector.IncParameterGet(p.FullName())
	p.logger.Debug().Interface("value", value).Interface("raw", raw).Msg("parameter get")
	return value, nil
}

// Set validates value, converts it to the raw value and writes it. The cache
// is only updated after the underlying setter succeeded.
func (p *Parameter) Set(value interface{}) error {
	if !p.setter.Present() {
		p.collector.IncParameterError(p.FullName(), "set")
		return &CapabilityError{Parameter: p.FullName(), Capability: "set"}
	}
	raw, err := p.prepareSet(value)
	if err != nil {
		p.collector.IncParameterError(p.FullName(), "set")
		return err
	}
	if p.setter.mode == CapabilityFunc {
		if err := p.setter.fn(raw); err != nil {
			p.collector.IncParameterError(p.FullName(), "set")
			p.logger.Debug().Err(err).Interface("value", value).Msg("parameter set failed")
			return err
		}
	}
	p.cache.UpdateWith(value, raw, p.now())
	p.setCount++
	p.collector.IncParameterSet(p.FullName())
	p.logger.Debug().Interface("value", value).Interface("raw", raw).Msg("parameter set")
	return nil
}

// Validate runs the configured validator and mapping check without any I/O.
func (p *Parameter) Validate(value interface{}) error {
	_, err := p.prepareSet(value)
	return err
}

func (p *Parameter) prepareSet(value interface{}) (interface{}, error) {
	if p.validator != nil {
		if err := p.validator.Validate(value); err != nil {
			return nil, &ValidationError{Parameter: p.FullName(), Value: value, Err: err}
		}
	}
	raw, err := p.transform.ToRaw(value)
	if err != nil {
		return nil, &ValidationError{Parameter: p.FullName(), Value: value, Err: err}
	}
	return raw, nil
}

func (p *Parameter) now() time.Time {
	return p.clock()
}

func fullName(instrument, name string) string {
	if instrument == "" {
		return name
	}
	return instrument + "." + name
}

package parameter

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/timzifer/qlab/telemetry"
)

// Option configures a parameter during construction.
type Option func(*settings) error

type settings struct {
	instrument string
	label      string
	unit       string

	getter    Getter
	setter    Setter
	transform Transform
	validator Validator

	maxValAge    time.Duration
	hasMaxValAge bool

	initialValue         interface{}
	hasInitialValue      bool
	initialCacheValue    interface{}
	hasInitialCacheValue bool

	clock     Clock
	logger    zerolog.Logger
	collector telemetry.Collector
}

// WithGetter sets the read capability.
func WithGetter(g Getter) Option {
	return func(cfg *settings) error {
		cfg.getter = g
		return nil
	}
}

// WithGetFunc reads raw values through fn.
func WithGetFunc(fn GetFunc) Option {
	return WithGetter(GetterFunc(fn))
}

// WithSetter sets the write capability.
func WithSetter(s Setter) Option {
	return func(cfg *settings) error {
		cfg.setter = s
		return nil
	}
}

// WithSetFunc writes raw values through fn.
func WithSetFunc(fn SetFunc) Option {
	return WithSetter(SetterFunc(fn))
}

// WithMaxValAge lets cached values expire after age.
func WithMaxValAge(age time.Duration) Option {
	return func(cfg *settings) error {
		cfg.maxValAge = age
		cfg.hasMaxValAge = true
		return nil
	}
}

// WithInitialValue sets the value once during construction, which performs
// real instrument I/O.
func WithInitialValue(value interface{}) Option {
	return func(cfg *settings) error {
		cfg.initialValue = value
		cfg.hasInitialValue = true
		return nil
	}
}

// WithInitialCacheValue seeds the cache without instrument I/O.
func WithInitialCacheValue(value interface{}) Option {
	return func(cfg *settings) error {
		cfg.initialCacheValue = value
		cfg.hasInitialCacheValue = true
		return nil
	}
}

// WithScale divides raw values by scale on get and multiplies on set.
func WithScale(scale float64) Option {
	return func(cfg *settings) error {
		cfg.transform.Scale = &scale
		return nil
	}
}

// WithOffset subtracts offset from raw values on get and adds it on set.
func WithOffset(offset float64) Option {
	return func(cfg *settings) error {
		cfg.transform.Offset = &offset
		return nil
	}
}

// WithValueMapping translates between cooked labels and raw codes.
func WithValueMapping(m *ValueMapping) Option {
	return func(cfg *settings) error {
		if m == nil {
			return fmt.Errorf("value mapping must not be nil")
		}
		cfg.transform.Mapping = m
		return nil
	}
}

// WithGetParser post-processes raw values on get.
func WithGetParser(fn Parser) Option {
	return func(cfg *settings) error {
		cfg.transform.GetParser = fn
		return nil
	}
}

// WithSetParser pre-processes values on set, after the mapping.
func WithSetParser(fn Parser) Option {
	return func(cfg *settings) error {
		cfg.transform.SetParser = fn
		return nil
	}
}

// WithTransform replaces the whole transform.
func WithTransform(t Transform) Option {
	return func(cfg *settings) error {
		cfg.transform = t
		return nil
	}
}

// WithValidator checks values before they are set.
func WithValidator(v Validator) Option {
	return func(cfg *settings) error {
		cfg.validator = v
		return nil
	}
}

// WithLabel sets the human readable label.
func WithLabel(label string) Option {
	return func(cfg *settings) error {
		cfg.label = label
		return nil
	}
}

// WithUnit sets the physical unit.
func WithUnit(unit string) Option {
	return func(cfg *settings) error {
		cfg.unit = unit
		return nil
	}
}

// WithInstrument records the owning instrument name used in FullName.
func WithInstrument(name string) Option {
	return func(cfg *settings) error {
		cfg.instrument = name
		return nil
	}
}

// WithClock overrides the time source used for cache timestamps.
func WithClock(clock Clock) Option {
	return func(cfg *settings) error {
		if clock == nil {
			return fmt.Errorf("clock must not be nil")
		}
		cfg.clock = clock
		return nil
	}
}

// WithLogger provides a logger for debug events.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *settings) error {
		cfg.logger = logger
		return nil
	}
}

// WithTelemetry reports gets, sets and cache refreshes to collector.
func WithTelemetry(collector telemetry.Collector) Option {
	return func(cfg *settings) error {
		if collector == nil {
			collector = telemetry.Noop()
		}
		cfg.collector = collector
		return nil
	}
}

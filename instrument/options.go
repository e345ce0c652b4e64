package instrument

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/timzifer/qlab/parameter"
	"github.com/timzifer/qlab/telemetry"
)

// Option configures how instruments are built.
type Option func(*settings) error

type settings struct {
	logger    zerolog.Logger
	collector telemetry.Collector
	clock     parameter.Clock
	drivers   map[string]Factory
}

func applyOptions(opts []Option) (settings, error) {
	s := settings{
		logger:    zerolog.Nop(),
		collector: telemetry.Noop(),
		drivers:   make(map[string]Factory),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&s); err != nil {
			return settings{}, err
		}
	}
	return s, nil
}

// WithLogger sets the logger handed to the instrument and its parameters.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) error {
		s.logger = logger
		return nil
	}
}

// WithTelemetry sets the metrics collector of every parameter.
func WithTelemetry(collector telemetry.Collector) Option {
	return func(s *settings) error {
		if collector == nil {
			collector = telemetry.Noop()
		}
		s.collector = collector
		return nil
	}
}

// WithClock sets the clock used for cache timestamps.
func WithClock(clock parameter.Clock) Option {
	return func(s *settings) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}
		s.clock = clock
		return nil
	}
}

// WithDriver overrides the registered factory for driver id.
func WithDriver(id string, factory Factory) Option {
	return func(s *settings) error {
		if id == "" {
			return errors.New("driver id must not be empty")
		}
		if factory == nil {
			return errors.New("driver factory must not be nil")
		}
		s.drivers[id] = factory
		return nil
	}
}

func (s settings) parameterOptions(instrument string) []parameter.Option {
	opts := []parameter.Option{
		parameter.WithInstrument(instrument),
		parameter.WithLogger(s.logger),
		parameter.WithTelemetry(s.collector),
	}
	if s.clock != nil {
		opts = append(opts, parameter.WithClock(s.clock))
	}
	return opts
}

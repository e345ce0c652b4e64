package station

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/timzifer/qlab/config"
	"github.com/timzifer/qlab/instrument"
	"github.com/timzifer/qlab/parameter"
	"github.com/timzifer/qlab/telemetry"
)

// Option configures the station during construction.
type Option func(*settings) error

type settings struct {
	config            *config.Config
	configPath        string
	logger            zerolog.Logger
	customLogger      bool
	telemetry         telemetry.Collector
	telemetryProvided bool
	drivers           map[string]instrument.Factory
	overlays          []config.OverlayDescriptor
	clock             parameter.Clock
}

// WithConfig uses an already loaded configuration. Reload is unavailable
// unless WithConfigPath is given as well.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) error {
		if cfg == nil {
			return errors.New("configuration must not be nil")
		}
		s.config = cfg
		return nil
	}
}

// WithConfigPath loads the configuration from a file or directory and
// enables Reload and Watch.
func WithConfigPath(path string) Option {
	return func(s *settings) error {
		if path == "" {
			return errors.New("configuration path must not be empty")
		}
		s.configPath = path
		return nil
	}
}

// WithLogger provides a custom logger instead of one built from the
// configuration's logging section.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) error {
		s.logger = logger
		s.customLogger = true
		return nil
	}
}

// WithTelemetry overrides the collector selected by the configuration.
func WithTelemetry(collector telemetry.Collector) Option {
	return func(s *settings) error {
		if collector == nil {
			collector = telemetry.Noop()
		}
		s.telemetry = collector
		s.telemetryProvided = true
		return nil
	}
}

// WithDriver installs a driver factory for this station only. It takes
// precedence over drivers registered globally.
func WithDriver(id string, factory instrument.Factory) Option {
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

// WithOverlays registers CUE overlays before the configuration is loaded,
// so CUE files can import schemas shipped with custom drivers.
func WithOverlays(descs ...config.OverlayDescriptor) Option {
	return func(s *settings) error {
		s.overlays = append(s.overlays, descs...)
		return nil
	}
}

// WithClock sets the clock of every parameter cache.
func WithClock(clock parameter.Clock) Option {
	return func(s *settings) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}
		s.clock = clock
		return nil
	}
}

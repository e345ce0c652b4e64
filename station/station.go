// Package station assembles the instruments declared in a configuration and
// keeps them up to date when the configuration changes on disk.
package station

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/timzifer/qlab/config"
	"github.com/timzifer/qlab/instrument"
	"github.com/timzifer/qlab/internal/logging"
	"github.com/timzifer/qlab/internal/reload"
	"github.com/timzifer/qlab/parameter"
	"github.com/timzifer/qlab/telemetry"
)

// Station owns the instruments of one configuration.
type Station struct {
	mu sync.RWMutex

	config     *config.Config
	configPath string

	collector      telemetry.Collector
	customLogger   bool
	baseLogger     zerolog.Logger
	instrumentOpts []instrument.Option

	watcher *reload.Watcher
	current *runtimeState
}

type runtimeState struct {
	cfg         *config.Config
	logger      zerolog.Logger
	cleanup     func()
	instruments map[string]*instrument.Instrument
	// global marks a logger built from the configuration; it replaces
	// log.Logger once the runtime is in service.
	global bool
}

// Snapshot is the state of every instrument of the station.
type Snapshot struct {
	Name        string                         `json:"name,omitempty"`
	Instruments map[string]instrument.Snapshot `json:"instruments"`
}

// New loads the configuration and builds every configured instrument.
func New(ctx context.Context, opts ...Option) (*Station, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cfg := settings{
		logger:    zerolog.Nop(),
		telemetry: telemetry.Noop(),
		drivers:   make(map[string]instrument.Factory),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.overlays) > 0 {
		if err := config.RegisterOverlayDescriptors(cfg.overlays...); err != nil {
			return nil, fmt.Errorf("register overlays: %w", err)
		}
	}

	if cfg.config == nil {
		if cfg.configPath == "" {
			return nil, errors.New("configuration path required")
		}
		loaded, err := config.Load(cfg.configPath)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		cfg.config = loaded
	} else if err := config.Validate(cfg.config); err != nil {
		return nil, err
	}

	if !cfg.telemetryProvided {
		collector, err := telemetry.ForProvider(cfg.config.Telemetry.Enabled, cfg.config.Telemetry.Provider)
		if err != nil {
			fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
			collector = telemetry.Noop()
		}
		cfg.telemetry = collector
	}

	st := &Station{
		config:       cfg.config,
		configPath:   cfg.configPath,
		collector:    cfg.telemetry,
		customLogger: cfg.customLogger,
		baseLogger:   cfg.logger,
	}
	st.instrumentOpts = append(st.instrumentOpts, instrument.WithTelemetry(cfg.telemetry))
	for id, factory := range cfg.drivers {
		st.instrumentOpts = append(st.instrumentOpts, instrument.WithDriver(id, factory))
	}
	if cfg.clock != nil {
		st.instrumentOpts = append(st.instrumentOpts, instrument.WithClock(cfg.clock))
	}

	runtime, err := st.buildRuntime(cfg.config)
	if err != nil {
		return nil, err
	}
	st.current = runtime
	if err := st.initWatcher(cfg.config); err != nil {
		runtime.close()
		return nil, err
	}
	runtime.activate()
	runtime.logger.Info().Int("instruments", len(runtime.instruments)).Msg("station ready")
	return st, nil
}

// Config returns the active configuration.
func (s *Station) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Instrument returns the named instrument.
func (s *Station) Instrument(name string) (*instrument.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, errors.New("station closed")
	}
	inst, ok := s.current.instruments[name]
	if !ok {
		return nil, fmt.Errorf("unknown instrument %q", name)
	}
	return inst, nil
}

// Instruments returns all instruments ordered by name.
func (s *Station) Instruments() []*instrument.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	out := make([]*instrument.Instrument, 0, len(s.current.instruments))
	for _, inst := range s.current.instruments {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Parameter resolves a full parameter name of the form "instrument.parameter".
func (s *Station) Parameter(fullName string) (*parameter.Parameter, error) {
	instName, paramName, ok := strings.Cut(fullName, ".")
	if !ok || instName == "" || paramName == "" {
		return nil, fmt.Errorf("parameter name %q must have the form instrument.parameter", fullName)
	}
	inst, err := s.Instrument(instName)
	if err != nil {
		return nil, err
	}
	return inst.Parameter(paramName)
}

// Snapshot records all instruments. With update set gettable parameters are
// read from their instruments first.
func (s *Station) Snapshot(update bool) (Snapshot, error) {
	snap := Snapshot{Instruments: make(map[string]instrument.Snapshot)}
	if cfg := s.Config(); cfg != nil {
		snap.Name = cfg.Name
	}
	for _, inst := range s.Instruments() {
		is, err := inst.Snapshot(update)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Instruments[inst.Name()] = is
	}
	return snap, nil
}

// Reload reads the configuration again and replaces every instrument. The
// running instruments stay untouched if the new configuration fails to load
// or build.
func (s *Station) Reload(ctx context.Context) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	return s.swapRuntime(cfg)
}

// Watch polls the configuration sources every interval and reloads the
// station when one of them changes. A zero interval uses the configured
// reload_interval. Watch blocks until ctx is done.
func (s *Station) Watch(ctx context.Context, interval time.Duration) error {
	s.mu.Lock()
	if s.configPath == "" {
		s.mu.Unlock()
		return errors.New("watch requires a configuration path")
	}
	if s.watcher == nil {
		w, err := reload.NewWatcher(s.configPath, s.config)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.watcher = w
	}
	w := s.watcher
	if interval <= 0 {
		interval = s.config.ReloadEvery()
	}
	s.mu.Unlock()

	return w.Run(ctx, interval, func(changed []string) {
		logger := s.logger()
		cfg, err := s.loadConfig()
		if err == nil {
			err = s.swapRuntime(cfg)
		}
		if err != nil {
			logger.Error().Err(err).Strs("files", changed).Msg("failed to reload configuration")
			// Remember the broken revision so only the next edit triggers a retry.
			s.mu.RLock()
			current := s.config
			s.mu.RUnlock()
			_ = w.Update(s.configPath, current)
			return
		}
		for _, file := range changed {
			s.collector.IncHotReload(file)
		}
		logger.Info().Strs("files", changed).Msg("configuration reloaded")
	})
}

// Close releases every instrument and the log shipping.
func (s *Station) Close() error {
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.mu.Unlock()
	if current == nil {
		return nil
	}
	return current.close()
}

func (s *Station) logger() zerolog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return s.baseLogger
	}
	return s.current.logger
}

func (s *Station) swapRuntime(cfg *config.Config) error {
	runtime, err := s.buildRuntime(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.current
	s.current = runtime
	s.config = cfg
	err = s.initWatcher(cfg)
	s.mu.Unlock()
	runtime.activate()

	if old != nil {
		if cerr := old.close(); cerr != nil {
			runtime.logger.Warn().Err(cerr).Msg("closing previous instruments failed")
		}
	}
	return err
}

func (s *Station) buildRuntime(cfg *config.Config) (*runtimeState, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	runtime := &runtimeState{cfg: cfg, cleanup: func() {}, instruments: make(map[string]*instrument.Instrument)}
	if s.customLogger {
		runtime.logger = s.baseLogger
	} else {
		logger, cleanup, err := logging.Setup(cfg.Logging)
		if err != nil {
			return nil, err
		}
		runtime.logger = logger
		runtime.cleanup = cleanup
		runtime.global = true
	}

	opts := append([]instrument.Option{instrument.WithLogger(runtime.logger)}, s.instrumentOpts...)
	for _, instCfg := range cfg.Instruments {
		inst, err := instrument.Open(instCfg, opts...)
		if err != nil {
			_ = runtime.close()
			return nil, err
		}
		runtime.instruments[inst.Name()] = inst
		runtime.logger.Debug().Str("instrument", inst.Name()).Str("driver", instCfg.Driver).Msg("instrument ready")
	}
	return runtime, nil
}

func (s *Station) loadConfig() (*config.Config, error) {
	if s.configPath == "" {
		return nil, errors.New("reload not supported without configuration path")
	}
	return config.Load(s.configPath)
}

// initWatcher tracks the configuration sources when hot_reload is enabled
// and refreshes a watcher that is already running. Callers hold s.mu or own
// s exclusively.
func (s *Station) initWatcher(cfg *config.Config) error {
	if s.configPath == "" {
		return nil
	}
	if s.watcher != nil {
		return s.watcher.Update(s.configPath, cfg)
	}
	if !cfg.HotReload {
		return nil
	}
	w, err := reload.NewWatcher(s.configPath, cfg)
	if err != nil {
		return err
	}
	s.watcher = w
	return nil
}

func (r *runtimeState) activate() {
	if r.global {
		log.Logger = r.logger
	}
}

func (r *runtimeState) close() error {
	var errs []error
	for name, inst := range r.instruments {
		if err := inst.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	r.cleanup()
	return errors.Join(errs...)
}

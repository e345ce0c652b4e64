package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "5s" or "1m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// AccessMode selects how a parameter reads or writes its value.
type AccessMode string

const (
	// AccessDriver performs I/O through the instrument driver. It is the default.
	AccessDriver AccessMode = "driver"
	// AccessManual keeps the value in the parameter cache only.
	AccessManual AccessMode = "manual"
	// AccessNone disables the direction.
	AccessNone AccessMode = "none"
)

// Normalize returns the effective mode, defaulting to AccessDriver.
func (m AccessMode) Normalize() AccessMode {
	if strings.TrimSpace(string(m)) == "" {
		return AccessDriver
	}
	return AccessMode(strings.ToLower(strings.TrimSpace(string(m))))
}

// ModuleReference captures metadata about the configuration source that defined an entry.
type ModuleReference struct {
	File        string `json:"file,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ModuleInclude describes a referenced configuration module.
type ModuleInclude struct {
	Path        string
	Name        string
	Description string
}

// UnmarshalYAML allows module includes to be declared either as scalar strings or structured objects.
func (m *ModuleInclude) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return errors.New("module include node is nil")
	}
	switch value.Kind {
	case yaml.ScalarNode:
		var path string
		if err := value.Decode(&path); err != nil {
			return fmt.Errorf("decode module path: %w", err)
		}
		m.Path = strings.TrimSpace(path)
		return nil
	case yaml.MappingNode:
		type rawModule struct {
			Path        string `yaml:"path"`
			Name        string `yaml:"name"`
			Description string `yaml:"description"`
		}
		var raw rawModule
		if err := value.Decode(&raw); err != nil {
			return fmt.Errorf("decode module include: %w", err)
		}
		if raw.Path == "" {
			return errors.New("module include missing path")
		}
		m.Path = raw.Path
		m.Name = raw.Name
		m.Description = raw.Description
		return nil
	default:
		return fmt.Errorf("unsupported module include node kind %d", value.Kind)
	}
}

// MappingConfig pairs a cooked label with its raw instrument code.
type MappingConfig struct {
	Value interface{} `yaml:"value"`
	Raw   interface{} `yaml:"raw"`
}

// OnOffConfig declares a boolean parameter with the raw codes for on and off.
type OnOffConfig struct {
	On  interface{} `yaml:"on"`
	Off interface{} `yaml:"off"`
}

// ValidatorConfig declares the constraints checked before a value is set.
type ValidatorConfig struct {
	Type       string            `yaml:"type"`
	Min        *float64          `yaml:"min,omitempty"`
	Max        *float64          `yaml:"max,omitempty"`
	Values     []interface{}     `yaml:"values,omitempty"`
	MinLength  int               `yaml:"min_length,omitempty"`
	MaxLength  int               `yaml:"max_length,omitempty"`
	Divisor    int64             `yaml:"divisor,omitempty"`
	Expression string            `yaml:"expression,omitempty"`
	Options    []ValidatorConfig `yaml:"options,omitempty"`
}

// ParameterConfig configures one instrument parameter.
type ParameterConfig struct {
	Name     string     `yaml:"name"`
	Label    string     `yaml:"label,omitempty"`
	Unit     string     `yaml:"unit,omitempty"`
	Register string     `yaml:"register,omitempty"`
	Get      AccessMode `yaml:"get,omitempty"`
	Set      AccessMode `yaml:"set,omitempty"`

	Scale      *float64        `yaml:"scale,omitempty"`
	Offset     *float64        `yaml:"offset,omitempty"`
	ValMapping []MappingConfig `yaml:"val_mapping,omitempty"`
	OnOff      *OnOffConfig    `yaml:"on_off,omitempty"`
	// GetParser and SetParser are expressions over `value`.
	GetParser string `yaml:"get_parser,omitempty"`
	SetParser string `yaml:"set_parser,omitempty"`

	MaxValAge         *Duration        `yaml:"max_val_age,omitempty"`
	InitialValue      interface{}      `yaml:"initial_value,omitempty"`
	InitialCacheValue interface{}      `yaml:"initial_cache_value,omitempty"`
	Vals              *ValidatorConfig `yaml:"vals,omitempty"`
}

// RegisterName returns the driver register backing the parameter.
func (p ParameterConfig) RegisterName() string {
	if p.Register != "" {
		return p.Register
	}
	return p.Name
}

// InstrumentConfig describes an instrument and the parameters it exposes.
type InstrumentConfig struct {
	Name           string            `yaml:"name"`
	Driver         string            `yaml:"driver"`
	Description    string            `yaml:"description,omitempty"`
	DriverSettings *yaml.Node        `yaml:"driver_settings,omitempty"`
	Parameters     []ParameterConfig `yaml:"parameters,omitempty"`
	Source         ModuleReference   `yaml:"-"`
}

// LokiConfig configures optional Loki integration for logging.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Labels  map[string]string `yaml:"labels"`
}

// LoggingConfig encapsulates runtime logging options.
type LoggingConfig struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format,omitempty"`
	Loki   LokiConfig `yaml:"loki"`
}

// TelemetryConfig configures runtime telemetry exporters.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider,omitempty"`
}

// Config is the root configuration structure of a station.
type Config struct {
	Name           string             `yaml:"name,omitempty"`
	Description    string             `yaml:"description,omitempty"`
	Logging        LoggingConfig      `yaml:"logging"`
	Telemetry      TelemetryConfig    `yaml:"telemetry"`
	Modules        []ModuleInclude    `yaml:"modules"`
	Instruments    []InstrumentConfig `yaml:"instruments"`
	HotReload      bool               `yaml:"hot_reload,omitempty"`
	ReloadInterval Duration           `yaml:"reload_interval,omitempty"`
	Source         ModuleReference    `yaml:"-"`
}

// ReloadEvery returns the polling interval for configuration changes.
func (c *Config) ReloadEvery() time.Duration {
	if c == nil || c.ReloadInterval.Duration <= 0 {
		return 2 * time.Second
	}
	return c.ReloadInterval.Duration
}

// Instrument returns the configuration of the named instrument.
func (c *Config) Instrument(name string) (InstrumentConfig, bool) {
	if c == nil {
		return InstrumentConfig{}, false
	}
	for _, inst := range c.Instruments {
		if inst.Name == name {
			return inst, true
		}
	}
	return InstrumentConfig{}, false
}

package random

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultStringLength = 12
	defaultAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Settings is decoded from the instrument's driver_settings.
//
//	driver_settings:
//	  source: pseudo      # or secure
//	  seed: 42
//	  defaults: {min: 0, max: 1}
//	  registers:
//	    noise: {kind: float, min: -0.01, max: 0.01}
//	    state: {kind: bool, true_probability: 0.2}
type Settings struct {
	Source    string                      `yaml:"source,omitempty"`
	Seed      *int64                      `yaml:"seed,omitempty"`
	Defaults  RegisterSettings            `yaml:"defaults,omitempty"`
	Registers map[string]RegisterSettings `yaml:"registers,omitempty"`
}

// RegisterSettings shapes the values produced for one register.
type RegisterSettings struct {
	Kind            string   `yaml:"kind,omitempty"`
	Min             *float64 `yaml:"min,omitempty"`
	Max             *float64 `yaml:"max,omitempty"`
	TrueProbability *float64 `yaml:"true_probability,omitempty"`
	StringLength    *int     `yaml:"string_length,omitempty"`
	Alphabet        string   `yaml:"alphabet,omitempty"`
}

type registerSpec struct {
	kind        string
	min, max    float64
	probability float64
	length      int
	alphabet    []rune
}

func parseSettings(node *yaml.Node) (Settings, error) {
	if node == nil {
		return Settings{}, nil
	}
	var s Settings
	if err := node.Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("decode random settings: %w", err)
	}
	return s, nil
}

// resolve merges the defaults with the override for register.
func (s Settings) resolve(register string) (registerSpec, error) {
	spec := registerSpec{
		kind:        "float",
		min:         0,
		max:         1,
		probability: 0.5,
		length:      defaultStringLength,
		alphabet:    []rune(defaultAlphabet),
	}
	spec.apply(s.Defaults)
	if override, ok := s.Registers[register]; ok {
		spec.apply(override)
	}
	switch spec.kind {
	case "float", "int", "bool", "string", "decimal":
	default:
		return registerSpec{}, fmt.Errorf("register %s: unsupported kind %q", register, spec.kind)
	}
	if math.IsNaN(spec.min) || math.IsNaN(spec.max) {
		return registerSpec{}, fmt.Errorf("register %s: min/max must not be NaN", register)
	}
	if spec.max < spec.min {
		return registerSpec{}, fmt.Errorf("register %s: max must be >= min", register)
	}
	if spec.probability < 0 || spec.probability > 1 {
		return registerSpec{}, fmt.Errorf("register %s: true_probability must be between 0 and 1", register)
	}
	if spec.length <= 0 {
		return registerSpec{}, fmt.Errorf("register %s: string_length must be positive", register)
	}
	return spec, nil
}

func (r *registerSpec) apply(s RegisterSettings) {
	if kind := strings.ToLower(strings.TrimSpace(s.Kind)); kind != "" {
		r.kind = kind
	}
	if s.Min != nil {
		r.min = *s.Min
	}
	if s.Max != nil {
		r.max = *s.Max
	}
	if s.TrueProbability != nil {
		r.probability = *s.TrueProbability
	}
	if s.StringLength != nil {
		r.length = *s.StringLength
	}
	if s.Alphabet != "" {
		r.alphabet = []rune(s.Alphabet)
	}
}

package modbus

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/timzifer/qlab/config"
)

// Settings is decoded from driver_settings.
type Settings struct {
	Address   string                    `yaml:"address"`
	UnitID    byte                      `yaml:"unit_id,omitempty"`
	Timeout   config.Duration           `yaml:"timeout,omitempty"`
	Registers map[string]RegisterConfig `yaml:"registers"`
}

// RegisterConfig locates one parameter register on the device.
type RegisterConfig struct {
	Function   string `yaml:"function"`
	Address    uint16 `yaml:"address"`
	Signed     bool   `yaml:"signed,omitempty"`
	Bit        *uint8 `yaml:"bit,omitempty"`
	Endianness string `yaml:"endianness,omitempty"`
}

const (
	functionCoil     = "coil"
	functionDiscrete = "discrete"
	functionHolding  = "holding"
	functionInput    = "input"
)

func decodeSettings(node *yaml.Node) (Settings, error) {
	var settings Settings
	if node != nil {
		if err := node.Decode(&settings); err != nil {
			return Settings{}, fmt.Errorf("decode modbus settings: %w", err)
		}
	}
	for name, reg := range settings.Registers {
		resolved, err := reg.resolve()
		if err != nil {
			return Settings{}, fmt.Errorf("register %s: %w", name, err)
		}
		settings.Registers[name] = resolved
	}
	return settings, nil
}

func (r RegisterConfig) resolve() (RegisterConfig, error) {
	switch strings.ToLower(strings.TrimSpace(r.Function)) {
	case "coil", "coils":
		r.Function = functionCoil
	case "discrete", "discrete_input", "discrete_inputs":
		r.Function = functionDiscrete
	case "", "holding", "holding_register", "holding_registers":
		r.Function = functionHolding
	case "input", "input_register", "input_registers":
		r.Function = functionInput
	default:
		return RegisterConfig{}, fmt.Errorf("unsupported function %q", r.Function)
	}
	if r.Bit != nil && *r.Bit >= 16 {
		return RegisterConfig{}, fmt.Errorf("bit index %d out of range", *r.Bit)
	}
	switch strings.ToLower(r.Endianness) {
	case "", "big", "big_endian":
		r.Endianness = "big"
	case "little", "little_endian":
		r.Endianness = "little"
	default:
		return RegisterConfig{}, fmt.Errorf("unsupported endianness %q", r.Endianness)
	}
	return r, nil
}

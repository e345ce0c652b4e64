// Package modbus exposes Modbus TCP devices as instruments. Every parameter
// register maps to a single coil, discrete input or 16 bit register.
package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/timzifer/qlab/config"
	"github.com/timzifer/qlab/instrument"
	"github.com/timzifer/qlab/internal/numeric"
)

// DriverID is the driver name used in configuration files.
const DriverID = "modbus"

// ErrReadOnly is returned when writing discrete inputs or input registers.
var ErrReadOnly = errors.New("register is read-only")

func init() {
	instrument.RegisterDriver(DriverID, instrument.FromTransport(func(cfg config.InstrumentConfig) (instrument.Transport, error) {
		return Open(cfg.DriverSettings, nil)
	}))
}

// Transport reads and writes parameter registers over a lazily connected
// client. A failed request drops the connection so the next one reconnects.
type Transport struct {
	mu       sync.Mutex
	settings Settings
	factory  ClientFactory
	client   Client
	closed   bool
}

// Open decodes node and builds a transport. A nil factory connects over TCP.
func Open(node *yaml.Node, factory ClientFactory) (*Transport, error) {
	settings, err := decodeSettings(node)
	if err != nil {
		return nil, err
	}
	return New(settings, factory), nil
}

// New builds a transport from already resolved settings.
func New(settings Settings, factory ClientFactory) *Transport {
	if factory == nil {
		factory = dialTCP
	}
	if settings.Registers == nil {
		settings.Registers = make(map[string]RegisterConfig)
	}
	return &Transport{settings: settings, factory: factory}
}

// Read implements instrument.Transport. Registers yield int64, coils and
// discrete inputs yield bool.
func (t *Transport) Read(register string) (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	reg, client, err := t.prepare(register)
	if err != nil {
		return nil, err
	}
	value, err := readRegister(client, reg)
	if err != nil {
		t.dropClient()
		return nil, fmt.Errorf("read %s: %w", register, err)
	}
	return value, nil
}

// Write implements instrument.Transport.
func (t *Transport) Write(register string, value interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	reg, client, err := t.prepare(register)
	if err != nil {
		return err
	}
	if err := writeRegister(client, reg, value); err != nil {
		if !errors.Is(err, ErrReadOnly) {
			t.dropClient()
		}
		return fmt.Errorf("write %s: %w", register, err)
	}
	return nil
}

// Close implements instrument.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func (t *Transport) prepare(register string) (RegisterConfig, Client, error) {
	if t.closed {
		return RegisterConfig{}, nil, fmt.Errorf("register %s: transport closed", register)
	}
	reg, ok := t.settings.Registers[register]
	if !ok {
		return RegisterConfig{}, nil, fmt.Errorf("register %s: not configured", register)
	}
	if t.client == nil {
		client, err := t.factory(t.settings)
		if err != nil {
			return RegisterConfig{}, nil, err
		}
		t.client = client
	}
	return reg, t.client, nil
}

func (t *Transport) dropClient() {
	if t.client == nil {
		return
	}
	_ = t.client.Close()
	t.client = nil
}

func readRegister(client Client, reg RegisterConfig) (interface{}, error) {
	switch reg.Function {
	case functionCoil, functionDiscrete:
		read := client.ReadCoils
		if reg.Function == functionDiscrete {
			read = client.ReadDiscreteInputs
		}
		raw, err := read(reg.Address, 1)
		if err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			return nil, errors.New("empty response")
		}
		return raw[0]&0x01 != 0, nil
	default:
		read := client.ReadHoldingRegisters
		if reg.Function == functionInput {
			read = client.ReadInputRegisters
		}
		raw, err := read(reg.Address, 1)
		if err != nil {
			return nil, err
		}
		if len(raw) < 2 {
			return nil, fmt.Errorf("short response of %d bytes", len(raw))
		}
		word := binary.BigEndian.Uint16(raw)
		if reg.Endianness == "little" {
			word = binary.LittleEndian.Uint16(raw)
		}
		if reg.Bit != nil {
			return word&(uint16(1)<<*reg.Bit) != 0, nil
		}
		if reg.Signed {
			return int64(int16(word)), nil
		}
		return int64(word), nil
	}
}

func writeRegister(client Client, reg RegisterConfig, value interface{}) error {
	switch reg.Function {
	case functionDiscrete, functionInput:
		return ErrReadOnly
	case functionCoil:
		on, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool value for coil write, got %T", value)
		}
		var word uint16
		if on {
			word = 0xFF00
		}
		_, err := client.WriteSingleCoil(reg.Address, word)
		return err
	}

	if reg.Bit != nil {
		return errors.New("bit registers are read-only")
	}
	number, err := numeric.Float(value)
	if err != nil {
		return fmt.Errorf("expected numeric value for register write, got %T", value)
	}
	rounded := math.Round(number)
	var word uint16
	if reg.Signed {
		if rounded < math.MinInt16 || rounded > math.MaxInt16 {
			return fmt.Errorf("value %v out of range for int16", value)
		}
		word = uint16(int16(rounded))
	} else {
		if rounded < 0 || rounded > math.MaxUint16 {
			return fmt.Errorf("value %v out of range for uint16", value)
		}
		word = uint16(rounded)
	}
	if reg.Endianness == "little" {
		word = word>>8 | word<<8
	}
	_, err = client.WriteSingleRegister(reg.Address, word)
	return err
}

// Package virtual provides an in-memory instrument driver. Registers hold
// whatever was last written, and selected registers can be made to fail so
// error paths can be exercised without hardware.
package virtual

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/timzifer/qlab/config"
	"github.com/timzifer/qlab/instrument"
)

// DriverID is the driver name used in configuration files.
const DriverID = "virtual"

// ErrInjected is returned by registers listed in fail_reads or fail_writes.
var ErrInjected = errors.New("injected failure")

func init() {
	instrument.RegisterDriver(DriverID, instrument.FromTransport(func(cfg config.InstrumentConfig) (instrument.Transport, error) {
		return Open(cfg.DriverSettings)
	}))
}

// Settings is decoded from driver_settings.
type Settings struct {
	Registers  map[string]interface{} `yaml:"registers,omitempty"`
	FailReads  []string               `yaml:"fail_reads,omitempty"`
	FailWrites []string               `yaml:"fail_writes,omitempty"`
}

// Transport is a thread-safe register bank.
type Transport struct {
	mu         sync.Mutex
	registers  map[string]interface{}
	failReads  map[string]bool
	failWrites map[string]bool
	reads      map[string]int
	writes     map[string]int
	closed     bool
}

// Open decodes node and builds a transport. A nil node yields an empty bank.
func Open(node *yaml.Node) (*Transport, error) {
	var settings Settings
	if node != nil {
		if err := node.Decode(&settings); err != nil {
			return nil, fmt.Errorf("decode virtual settings: %w", err)
		}
	}
	return New(settings), nil
}

// New builds a transport preloaded with settings.Registers.
func New(settings Settings) *Transport {
	t := &Transport{
		registers:  make(map[string]interface{}, len(settings.Registers)),
		failReads:  make(map[string]bool),
		failWrites: make(map[string]bool),
		reads:      make(map[string]int),
		writes:     make(map[string]int),
	}
	for k, v := range settings.Registers {
		t.registers[k] = v
	}
	for _, r := range settings.FailReads {
		t.failReads[r] = true
	}
	for _, r := range settings.FailWrites {
		t.failWrites[r] = true
	}
	return t
}

// Read implements instrument.Transport. Unknown registers read as nil.
func (t *Transport) Read(register string) (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, fmt.Errorf("register %s: transport closed", register)
	}
	t.reads[register]++
	if t.failReads[register] {
		return nil, fmt.Errorf("read %s: %w", register, ErrInjected)
	}
	return t.registers[register], nil
}

// Write implements instrument.Transport.
func (t *Transport) Write(register string, value interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("register %s: transport closed", register)
	}
	t.writes[register]++
	if t.failWrites[register] {
		return fmt.Errorf("write %s: %w", register, ErrInjected)
	}
	t.registers[register] = value
	return nil
}

// Close implements instrument.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// Poke changes a register behind the parameters' back, as the instrument
// front panel would.
func (t *Transport) Poke(register string, value interface{}) {
	t.mu.Lock()
	t.registers[register] = value
	t.mu.Unlock()
}

// Peek returns the stored register value without counting a read.
func (t *Transport) Peek(register string) (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.registers[register]
	return v, ok
}

// FailReads toggles read failures for register.
func (t *Transport) FailReads(register string, fail bool) {
	t.mu.Lock()
	t.failReads[register] = fail
	t.mu.Unlock()
}

// FailWrites toggles write failures for register.
func (t *Transport) FailWrites(register string, fail bool) {
	t.mu.Lock()
	t.failWrites[register] = fail
	t.mu.Unlock()
}

// Reads returns how often register was read.
func (t *Transport) Reads(register string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reads[register]
}

// Writes returns how often register was written.
func (t *Transport) Writes(register string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes[register]
}

// Registers lists the names of all stored registers.
func (t *Transport) Registers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.registers))
	for name := range t.registers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

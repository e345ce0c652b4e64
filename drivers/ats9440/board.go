// Package ats9440 drives the AlazarTech ATS9440 digitizer.
//
// Board settings such as the clock source or the trigger levels are staged
// in the parameter cache when set and only written to the card by
// SyncSettings, which mirrors how the card expects to be configured in one
// go before an acquisition.
package ats9440

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/timzifer/qlab/config"
	"github.com/timzifer/qlab/drivers/virtual"
	"github.com/timzifer/qlab/instrument"
)

// DriverID is the driver name used in configuration files.
const DriverID = "ats9440"

func init() {
	instrument.RegisterDriver(DriverID, func(cfg config.InstrumentConfig, opts ...instrument.Option) (*instrument.Instrument, error) {
		card, err := virtual.Open(cfg.DriverSettings)
		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", cfg.Name, err)
		}
		board, err := New(cfg.Name, card, cfg.Parameters, opts...)
		if err != nil {
			return nil, err
		}
		return board.Instrument, nil
	})
}

// Board is an ATS9440 instrument with its pending card settings.
type Board struct {
	*instrument.Instrument

	card   instrument.Transport
	staged *stagingTransport
	logger zerolog.Logger
	// registers written through the card, table settings first.
	registers []string
}

// New builds the board on top of card. Extra parameter configurations are
// added after the built-in settings. The card is closed when the board
// cannot be built.
func New(name string, card instrument.Transport, extra []config.ParameterConfig, opts ...instrument.Option) (*Board, error) {
	if card == nil {
		return nil, fmt.Errorf("instrument %s: card transport must not be nil", name)
	}
	staged := &stagingTransport{card: card, values: make(map[string]interface{})}
	params := append(Parameters(), extra...)
	inst, err := instrument.Build(config.InstrumentConfig{Name: name, Driver: DriverID, Parameters: params}, staged, opts...)
	if err != nil {
		return nil, errors.Join(err, card.Close())
	}
	board := &Board{
		Instrument: inst,
		card:       card,
		staged:     staged,
		logger:     inst.Logger(),
		registers:  syncedRegisters(params),
	}
	inst.SetExtension(board)
	return board, nil
}

// FromInstrument returns the board behind an instrument built by this driver.
func FromInstrument(inst *instrument.Instrument) (*Board, bool) {
	if inst == nil {
		return nil, false
	}
	board, ok := inst.Extension().(*Board)
	return board, ok
}

// SettingsChanged reports whether a board setting was set since the last sync.
func (b *Board) SettingsChanged() bool {
	return b.staged.dirty()
}

// SyncSettings writes every staged board setting to the card in table order.
// The settings stay pending when a write fails.
func (b *Board) SyncSettings() error {
	if !b.staged.dirty() {
		return nil
	}
	for _, register := range b.registers {
		raw, ok := b.staged.value(register)
		if !ok {
			continue
		}
		if err := b.card.Write(register, raw); err != nil {
			return fmt.Errorf("sync %s: %w", register, err)
		}
	}
	b.staged.markSynced()
	b.logger.Debug().Msg("board settings synced")
	return nil
}

func syncedRegisters(params []config.ParameterConfig) []string {
	seen := make(map[string]bool, len(params))
	var registers []string
	for _, pc := range params {
		register := pc.RegisterName()
		if pc.Set != config.AccessDriver || seen[register] {
			continue
		}
		seen[register] = true
		registers = append(registers, register)
	}
	return registers
}

// stagingTransport keeps the raw board settings until they are synced.
type stagingTransport struct {
	card instrument.Transport

	mu      sync.Mutex
	values  map[string]interface{}
	pending bool
}

func (s *stagingTransport) Read(register string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[register]; ok {
		return v, nil
	}
	return s.card.Read(register)
}

func (s *stagingTransport) Write(register string, value interface{}) error {
	s.mu.Lock()
	s.values[register] = value
	s.pending = true
	s.mu.Unlock()
	return nil
}

func (s *stagingTransport) Close() error {
	return s.card.Close()
}

func (s *stagingTransport) value(register string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[register]
	return v, ok
}

func (s *stagingTransport) dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *stagingTransport) markSynced() {
	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()
}

// Package mqtt exposes devices that publish their state to an MQTT broker as
// instruments. Reads answer with the latest message seen on a register's
// state topic; writes publish to its command topic.
package mqtt

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/timzifer/qlab/config"
	"github.com/timzifer/qlab/instrument"
)

// DriverID is the driver name used in configuration files.
const DriverID = "mqtt"

var (
	// ErrReadOnly is returned when writing a register without command topic.
	ErrReadOnly = errors.New("register has no command topic")
	// ErrNoValue is returned when nothing was received on a state topic yet.
	ErrNoValue = errors.New("no value received")
)

func init() {
	instrument.RegisterDriver(DriverID, instrument.FromTransport(func(cfg config.InstrumentConfig) (instrument.Transport, error) {
		return Open(cfg.DriverSettings, nil, log.Logger.With().Str("instrument", cfg.Name).Logger())
	}))
}

type registerState struct {
	topic    TopicConfig
	value    interface{}
	err      error
	at       time.Time
	received chan struct{}
	seen     bool
}

// Transport caches state topic messages per register.
type Transport struct {
	settings Settings
	client   Client
	logger   zerolog.Logger

	mu        sync.Mutex
	registers map[string]*registerState
	closed    bool
}

// Open decodes node, connects and subscribes every state topic. A nil
// factory uses the Paho client.
func Open(node *yaml.Node, factory ClientFactory, logger zerolog.Logger) (*Transport, error) {
	settings, err := decodeSettings(node)
	if err != nil {
		return nil, err
	}
	if factory == nil {
		factory = NewPahoClientFactory()
	}
	client, err := factory(settings.Connection, logger)
	if err != nil {
		return nil, err
	}
	t := &Transport{
		settings:  settings,
		client:    client,
		logger:    logger,
		registers: make(map[string]*registerState, len(settings.Registers)),
	}
	byTopic := make(map[string][]string)
	for name, topic := range settings.Registers {
		t.registers[name] = &registerState{topic: topic, received: make(chan struct{})}
		if topic.State != "" {
			byTopic[topic.State] = append(byTopic[topic.State], name)
		}
	}
	topics := make([]string, 0, len(byTopic))
	for topic := range byTopic {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	for _, topic := range topics {
		names := byTopic[topic]
		sort.Strings(names)
		qos := settings.qos(settings.Registers[names[0]])
		if err := client.Subscribe(topic, qos, func(_ string, payload []byte) { t.handle(names, payload) }); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return t, nil
}

func (t *Transport) handle(names []string, payload []byte) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, name := range names {
		state := t.registers[name]
		state.value, state.err = DecodePayload(t.settings.payload(state.topic), payload)
		state.at = now
		if state.err != nil {
			t.logger.Warn().Err(state.err).Str("register", name).Msg("mqtt: undecodable payload")
		}
		if !state.seen {
			state.seen = true
			close(state.received)
		}
	}
}

// Read implements instrument.Transport. With read_timeout set, a register
// that has not seen a message yet waits that long for the first one.
func (t *Transport) Read(register string) (interface{}, error) {
	t.mu.Lock()
	state, err := t.lookup(register)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	if state.topic.State == "" {
		t.mu.Unlock()
		return nil, fmt.Errorf("register %s has no state topic", register)
	}
	received := state.received
	t.mu.Unlock()

	if wait := t.settings.ReadTimeout.Duration; wait > 0 {
		select {
		case <-received:
		case <-time.After(wait):
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !state.seen {
		return nil, fmt.Errorf("register %s on %s: %w", register, state.topic.State, ErrNoValue)
	}
	if state.err != nil {
		return nil, fmt.Errorf("register %s: %w", register, state.err)
	}
	return state.value, nil
}

// Write implements instrument.Transport.
func (t *Transport) Write(register string, value interface{}) error {
	t.mu.Lock()
	state, err := t.lookup(register)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	if state.topic.Command == "" {
		return fmt.Errorf("register %s: %w", register, ErrReadOnly)
	}
	payload, err := EncodePayload(t.settings.payload(state.topic), value)
	if err != nil {
		return fmt.Errorf("register %s: %w", register, err)
	}
	retain := state.topic.Retain != nil && *state.topic.Retain
	return t.client.Publish(state.topic.Command, t.settings.qos(state.topic), retain, payload)
}

// Close implements instrument.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.client.Close()
}

// LastUpdate reports when the register last received a message.
func (t *Transport) LastUpdate(register string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.registers[register]
	if !ok || !state.seen {
		return time.Time{}, false
	}
	return state.at, true
}

func (t *Transport) lookup(register string) (*registerState, error) {
	if t.closed {
		return nil, fmt.Errorf("register %s: transport closed", register)
	}
	state, ok := t.registers[register]
	if !ok {
		return nil, fmt.Errorf("register %s: not configured", register)
	}
	return state, nil
}

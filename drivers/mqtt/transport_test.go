package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/timzifer/qlab/config"
	"github.com/timzifer/qlab/instrument"
)

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload string
}

type fakeBroker struct {
	mu        sync.Mutex
	handlers  map[string]MessageHandler
	qos       map[string]byte
	published []published
	closed    bool
	failSub   error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]MessageHandler), qos: make(map[string]byte)}
}

func (b *fakeBroker) factory() ClientFactory {
	return func(ConnectionSettings, zerolog.Logger) (Client, error) { return b, nil }
}

func (b *fakeBroker) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if b.failSub != nil {
		return b.failSub
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	b.qos[topic] = qos
	return nil
}

func (b *fakeBroker) Publish(topic string, qos byte, retain bool, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, published{topic: topic, qos: qos, retain: retain, payload: string(payload)})
	return nil
}

func (b *fakeBroker) Close() error {
	b.closed = true
	return nil
}

func (b *fakeBroker) deliver(topic, payload string) {
	b.mu.Lock()
	handler := b.handlers[topic]
	b.mu.Unlock()
	handler(topic, []byte(payload))
}

func settingsNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	return doc.Content[0]
}

const ovenSettings = `
connection:
  broker: tcp://localhost:1883
default_qos: 1
registers:
  temperature:
    state: lab/oven/state
    payload: {path: temperature, value_type: float}
  setpoint:
    state: lab/oven/state
    command: lab/oven/setpoint/set
    retain: true
    payload: {path: setpoint}
  door:
    state: lab/oven/door
    qos: 0
    payload: {encoding: string, value_type: bool}
  reset:
    command: lab/oven/reset
`

func TestReadsLatestStateMessage(t *testing.T) {
	broker := newFakeBroker()
	transport, err := Open(settingsNode(t, ovenSettings), broker.factory(), zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, byte(0), broker.qos["lab/oven/door"])
	require.Contains(t, broker.handlers, "lab/oven/state")

	_, err = transport.Read("temperature")
	require.ErrorIs(t, err, ErrNoValue)
	_, ok := transport.LastUpdate("temperature")
	require.False(t, ok)

	broker.deliver("lab/oven/state", `{"temperature": 21.5, "setpoint": 80}`)
	value, err := transport.Read("temperature")
	require.NoError(t, err)
	require.Equal(t, 21.5, value)
	value, err = transport.Read("setpoint")
	require.NoError(t, err)
	require.Equal(t, 80.0, value)
	_, ok = transport.LastUpdate("setpoint")
	require.True(t, ok)

	broker.deliver("lab/oven/door", "true")
	value, err = transport.Read("door")
	require.NoError(t, err)
	require.Equal(t, true, value)

	broker.deliver("lab/oven/door", "ajar")
	_, err = transport.Read("door")
	require.Error(t, err)

	_, err = transport.Read("reset")
	require.ErrorContains(t, err, "no state topic")
	_, err = transport.Read("unknown")
	require.ErrorContains(t, err, "not configured")
}

func TestWritePublishesCommand(t *testing.T) {
	broker := newFakeBroker()
	transport, err := Open(settingsNode(t, ovenSettings), broker.factory(), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, transport.Write("setpoint", 95.5))
	require.NoError(t, transport.Write("reset", true))
	require.ErrorIs(t, transport.Write("temperature", 1), ErrReadOnly)

	require.Equal(t, []published{
		{topic: "lab/oven/setpoint/set", qos: 1, retain: true, payload: "95.5"},
		{topic: "lab/oven/reset", qos: 1, payload: "true"},
	}, broker.published)

	require.NoError(t, transport.Close())
	require.True(t, broker.closed)
	require.Error(t, transport.Write("reset", true))
}

func TestReadTimeoutWaitsForFirstMessage(t *testing.T) {
	broker := newFakeBroker()
	transport, err := Open(settingsNode(t, `
connection: {broker: tcp://localhost:1883}
read_timeout: 2s
registers:
  level: {state: tank/level}
`), broker.factory(), zerolog.Nop())
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		broker.deliver("tank/level", "42")
	}()
	value, err := transport.Read("level")
	require.NoError(t, err)
	require.Equal(t, 42.0, value)
}

func TestOpenValidatesSettings(t *testing.T) {
	broker := newFakeBroker()
	_, err := Open(settingsNode(t, "registers: {}\n"), broker.factory(), zerolog.Nop())
	require.ErrorContains(t, err, "broker is required")

	_, err = Open(settingsNode(t, "connection: {broker: x}\nregisters:\n  a: {}\n"), broker.factory(), zerolog.Nop())
	require.ErrorContains(t, err, "state or command")

	broker.failSub = errors.New("not authorized")
	_, err = Open(settingsNode(t, ovenSettings), broker.factory(), zerolog.Nop())
	require.ErrorContains(t, err, "not authorized")
	require.True(t, broker.closed)
}

func TestParametersOverMQTT(t *testing.T) {
	broker := newFakeBroker()
	factory := instrument.FromTransport(func(cfg config.InstrumentConfig) (instrument.Transport, error) {
		return Open(cfg.DriverSettings, broker.factory(), zerolog.Nop())
	})
	cfg := config.InstrumentConfig{
		Name:           "oven",
		Driver:         DriverID,
		DriverSettings: settingsNode(t, ovenSettings),
		Parameters: []config.ParameterConfig{
			{Name: "temperature", Unit: "C"},
			{Name: "setpoint", Unit: "C"},
		},
	}
	inst, err := instrument.Open(cfg, instrument.WithDriver(DriverID, factory))
	require.NoError(t, err)

	broker.deliver("lab/oven/state", `{"temperature": 30, "setpoint": 60}`)
	value, err := inst.Get("temperature")
	require.NoError(t, err)
	require.Equal(t, 30.0, value)

	require.NoError(t, inst.Set("setpoint", 70))
	require.Equal(t, "70", broker.published[0].payload)
}

func TestDecodePayload(t *testing.T) {
	value, err := DecodePayload(PayloadConversion{}, []byte("12.5"))
	require.NoError(t, err)
	require.Equal(t, 12.5, value)

	_, err = DecodePayload(PayloadConversion{ValueType: "int"}, []byte("not json 7"))
	require.Error(t, err)

	value, err = DecodePayload(PayloadConversion{ValueType: "int"}, []byte(" 7 "))
	require.NoError(t, err)
	require.Equal(t, int64(7), value)

	value, err = DecodePayload(PayloadConversion{Path: "a.b", ValueType: "string"}, []byte(`{"a": {"b": 3}}`))
	require.NoError(t, err)
	require.Equal(t, "3", value)

	_, err = DecodePayload(PayloadConversion{Path: "a.c"}, []byte(`{"a": {"b": 3}}`))
	require.ErrorContains(t, err, "not present")

	_, err = DecodePayload(PayloadConversion{Encoding: "xml"}, []byte(`<a/>`))
	require.ErrorIs(t, err, errUnsupportedEncoding)

	out, err := EncodePayload(PayloadConversion{ValueType: "string"}, 5)
	require.NoError(t, err)
	require.Equal(t, `"5"`, string(out))
}

package virtual

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/timzifer/qlab/config"
	"github.com/timzifer/qlab/instrument"
	"github.com/timzifer/qlab/parameter"
)

func settingsNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	return doc.Content[0]
}

func TestOpenPreloadsRegisters(t *testing.T) {
	transport, err := Open(settingsNode(t, `
registers:
  VOLT: 1.25
  MODE: 1
fail_reads: [BROKEN]
`))
	require.NoError(t, err)
	require.Equal(t, []string{"MODE", "VOLT"}, transport.Registers())

	v, err := transport.Read("VOLT")
	require.NoError(t, err)
	require.Equal(t, 1.25, v)
	require.Equal(t, 1, transport.Reads("VOLT"))

	_, err = transport.Read("BROKEN")
	require.True(t, errors.Is(err, ErrInjected))
}

func TestWriteFailureKeepsRegister(t *testing.T) {
	transport := New(Settings{Registers: map[string]interface{}{"OUT": 0}, FailWrites: []string{"OUT"}})
	err := transport.Write("OUT", 1)
	require.True(t, errors.Is(err, ErrInjected))
	v, _ := transport.Peek("OUT")
	require.Equal(t, 0, v)
	require.Equal(t, 1, transport.Writes("OUT"))

	transport.FailWrites("OUT", false)
	require.NoError(t, transport.Write("OUT", 1))
	v, _ = transport.Peek("OUT")
	require.Equal(t, 1, v)
}

func TestClosedTransportRejectsIO(t *testing.T) {
	transport := New(Settings{})
	require.NoError(t, transport.Close())
	_, err := transport.Read("x")
	require.Error(t, err)
	require.Error(t, transport.Write("x", 1))
}

func TestParametersOverVirtualDriver(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cfg := config.InstrumentConfig{
		Name:           "dmm",
		Driver:         DriverID,
		DriverSettings: settingsNode(t, "registers:\n  VOLT: 2000\n"),
		Parameters: []config.ParameterConfig{{
			Name:      "volt",
			Register:  "VOLT",
			Scale:     func() *float64 { v := 1000.0; return &v }(),
			MaxValAge: &config.Duration{Duration: time.Second},
		}},
	}
	inst, err := instrument.Open(cfg, instrument.WithClock(clock))
	require.NoError(t, err)
	transport := inst.Transport().(*Transport)
	p, err := inst.Parameter("volt")
	require.NoError(t, err)

	value, err := p.Cache().Get(true)
	require.NoError(t, err)
	require.Equal(t, 2.0, value)
	require.Equal(t, 1, transport.Reads("VOLT"))

	value, err = p.Cache().Get(true)
	require.NoError(t, err)
	require.Equal(t, 2.0, value)
	require.Equal(t, 1, transport.Reads("VOLT"), "fresh cache must not read")

	transport.Poke("VOLT", 3000)
	now = now.Add(2 * time.Second)
	value, err = p.Cache().Get(true)
	require.NoError(t, err)
	require.Equal(t, 3.0, value)
	require.Equal(t, 2, transport.Reads("VOLT"))

	transport.FailReads("VOLT", true)
	p.Cache().Invalidate()
	_, err = p.Cache().Get(true)
	require.True(t, errors.Is(err, ErrInjected))
	require.False(t, errors.Is(err, parameter.ErrInvalidState))
}

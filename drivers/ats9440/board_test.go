package ats9440

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timzifer/qlab/config"
	"github.com/timzifer/qlab/drivers/virtual"
	"github.com/timzifer/qlab/instrument"
	"github.com/timzifer/qlab/parameter"
)

func newBoard(t *testing.T) (*Board, *virtual.Transport) {
	t.Helper()
	card := virtual.New(virtual.Settings{})
	board, err := New("alazar", card, nil)
	require.NoError(t, err)
	return board, card
}

func TestInitialValues(t *testing.T) {
	board, card := newBoard(t)

	value, err := board.Get("sample_rate")
	require.NoError(t, err)
	require.Equal(t, 100_000_000, value)

	value, err = board.Get("clock_source")
	require.NoError(t, err)
	require.Equal(t, "INTERNAL_CLOCK", value)

	value, err = board.Get("samples_per_record")
	require.NoError(t, err)
	require.Equal(t, 1024, value)

	require.True(t, board.SettingsChanged(), "a fresh board has never been synced")
	require.Empty(t, card.Registers())
}

func TestSyncSettingsWritesRawValues(t *testing.T) {
	board, card := newBoard(t)
	require.NoError(t, board.SyncSettings())
	require.False(t, board.SettingsChanged())

	raw, ok := card.Peek("sample_rate")
	require.True(t, ok)
	require.Equal(t, 36, raw)
	raw, ok = card.Peek("clock_source")
	require.True(t, ok)
	require.Equal(t, 1, raw)
	_, ok = card.Peek("mode")
	require.False(t, ok, "acquisition settings are not board registers")

	require.NoError(t, board.Set("trigger_level1", 200))
	require.True(t, board.SettingsChanged())
	require.Equal(t, 1, card.Writes("trigger_level1"))

	require.NoError(t, board.SyncSettings())
	raw, _ = card.Peek("trigger_level1")
	require.Equal(t, 200, raw)
	require.Equal(t, 2, card.Writes("trigger_level1"))
}

func TestAcquisitionSettingsDoNotNeedSync(t *testing.T) {
	board, _ := newBoard(t)
	require.NoError(t, board.SyncSettings())
	require.NoError(t, board.Set("records_per_buffer", 20))
	require.False(t, board.SettingsChanged())
}

func TestSyncFailureKeepsSettingsPending(t *testing.T) {
	board, card := newBoard(t)
	card.FailWrites("decimation", true)
	err := board.SyncSettings()
	require.True(t, errors.Is(err, virtual.ErrInjected))
	require.True(t, board.SettingsChanged())
}

func TestValidation(t *testing.T) {
	board, _ := newBoard(t)
	cases := map[string]interface{}{
		"sample_rate":          3_000,
		"external_sample_rate": 10,
		"trigger_delay":        7,
		"samples_per_record":   1000,
		"decimation":           0,
		"coupling1":            "GND",
	}
	for name, value := range cases {
		err := board.Set(name, value)
		require.True(t, errors.Is(err, parameter.ErrValidation), "%s=%v: %v", name, value, err)
	}
	require.NoError(t, board.Set("external_sample_rate", 10_000_000))
	require.NoError(t, board.Set("trigger_delay", 16))
	require.NoError(t, board.Set("sample_rate", "EXTERNAL_CLOCK"))
}

func TestDriverRegistered(t *testing.T) {
	inst, err := instrument.Open(config.InstrumentConfig{
		Name:   "alazar",
		Driver: DriverID,
		Parameters: []config.ParameterConfig{{
			Name: "note", Get: config.AccessManual, Set: config.AccessManual,
		}},
	})
	require.NoError(t, err)
	board, ok := FromInstrument(inst)
	require.True(t, ok)
	require.NoError(t, board.SyncSettings())

	_, err = inst.Parameter("note")
	require.NoError(t, err)
	_, ok = FromInstrument(nil)
	require.False(t, ok)
}

func TestSyncSettingsWritesExtraDriverParameters(t *testing.T) {
	card := virtual.New(virtual.Settings{})
	board, err := New("alazar", card, []config.ParameterConfig{{
		Name: "aux_gain", Get: config.AccessManual, Set: config.AccessDriver,
	}})
	require.NoError(t, err)
	require.NoError(t, board.SyncSettings())

	require.NoError(t, board.Set("aux_gain", 5))
	require.True(t, board.SettingsChanged())
	_, ok := card.Peek("aux_gain")
	require.False(t, ok, "settings are staged until the next sync")

	require.NoError(t, board.SyncSettings())
	require.False(t, board.SettingsChanged())
	raw, ok := card.Peek("aux_gain")
	require.True(t, ok)
	require.Equal(t, 5, raw)
}

func TestNewClosesCardWhenBuildFails(t *testing.T) {
	card := virtual.New(virtual.Settings{})
	_, err := New("alazar", card, []config.ParameterConfig{{
		Name: "sample_rate", Get: config.AccessManual, Set: config.AccessManual,
	}})
	require.Error(t, err)

	_, err = card.Read("sample_rate")
	require.ErrorContains(t, err, "transport closed")
}

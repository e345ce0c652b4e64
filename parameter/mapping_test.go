package parameter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueMappingRejectsDuplicateRawCodes(t *testing.T) {
	_, err := NewValueMapping(
		MappingEntry{Value: "AC", Raw: 1},
		MappingEntry{Value: "DC", Raw: 1},
	)
	require.ErrorContains(t, err, "raw code 1 mapped by both AC and DC")
}

func TestValueMappingRejectsDuplicateValues(t *testing.T) {
	_, err := NewValueMapping(
		MappingEntry{Value: 50, Raw: 1},
		MappingEntry{Value: 50.0, Raw: 2},
	)
	require.ErrorContains(t, err, "duplicate mapping value")
}

func TestValueMappingRejectsEmptyAndUncomparable(t *testing.T) {
	_, err := NewValueMapping()
	require.Error(t, err)

	_, err = NewValueMapping(MappingEntry{Value: []int{1}, Raw: 1})
	require.ErrorContains(t, err, "cannot be used in a mapping")
}

func TestValueMappingNumericKeysCompareByValue(t *testing.T) {
	m := MustValueMapping(
		MappingEntry{Value: 1000, Raw: 1},
		MappingEntry{Value: 125_000_000, Raw: 38},
		MappingEntry{Value: "UNDEFINED", Raw: "UNDEFINED"},
	)

	raw, err := m.ToRaw(int64(1000))
	require.NoError(t, err)
	require.Equal(t, 1, raw)

	raw, err = m.ToRaw(125e6)
	require.NoError(t, err)
	require.Equal(t, 38, raw)

	value, err := m.FromRaw(uint8(38))
	require.NoError(t, err)
	require.Equal(t, 125_000_000, value)

	value, err = m.FromRaw("UNDEFINED")
	require.NoError(t, err)
	require.Equal(t, "UNDEFINED", value)

	_, err = m.ToRaw(2000)
	require.ErrorContains(t, err, "2000 is not one of {1000, 125000000, UNDEFINED}")
}

func TestValueMappingOrder(t *testing.T) {
	m := MustValueMapping(
		MappingEntry{Value: "b", Raw: 2},
		MappingEntry{Value: "a", Raw: 1},
	)
	require.Equal(t, []interface{}{"b", "a"}, m.Values())
	require.Equal(t, 2, m.Len())
	require.Len(t, m.Entries(), 2)
}

func TestMustValueMappingPanics(t *testing.T) {
	require.Panics(t, func() {
		MustValueMapping(MappingEntry{Value: 1, Raw: 1}, MappingEntry{Value: 2, Raw: 1})
	})
}

func TestCreateOnOffValMapping(t *testing.T) {
	for _, tc := range []struct {
		on, off interface{}
	}{
		{on: 1, off: 0},
		{on: "ON", off: "OFF"},
		{on: "1", off: "0"},
	} {
		m, err := CreateOnOffValMapping(tc.on, tc.off)
		require.NoError(t, err)

		entries := m.Entries()
		require.Len(t, entries, 2)
		require.Equal(t, tc.on, entries[0].Raw)
		require.Equal(t, tc.off, entries[1].Raw)

		value, err := m.FromRaw(tc.on)
		require.NoError(t, err)
		require.Equal(t, true, value)
		value, err = m.FromRaw(tc.off)
		require.NoError(t, err)
		require.Equal(t, false, value)
	}
}

func TestCreateOnOffValMappingRejectsEqualValues(t *testing.T) {
	_, err := CreateOnOffValMapping(1, 1)
	require.Error(t, err)
}

package snapshot

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func mustNormalize(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	out, err := Normalize(v)
	require.NoError(t, err)
	return out.(map[string]interface{})
}

func TestCompareSame(t *testing.T) {
	a := mustNormalize(t, map[string]interface{}{"a": 1, "2": []interface{}{3, 4, map[string]int{"5": 6}}, "b": map[string]string{"c": "d"}})
	b := mustNormalize(t, map[string]interface{}{"a": 1, "2": []interface{}{3, 4, map[string]int{"5": 6}}, "b": map[string]string{"c": "d"}})
	match, diffs := Compare(a, b)
	require.True(t, match)
	require.Empty(t, diffs)
	require.Equal(t, "", Report(diffs))
}

func TestCompareKeyDiff(t *testing.T) {
	a := mustNormalize(t, map[string]int{"a": 1, "c": 4})
	b := mustNormalize(t, map[string]int{"b": 1, "c": 4})

	match, diffs := Compare(a, b)
	require.False(t, match)
	report := Report(diffs)
	require.Contains(t, report, "Key d1[a] not in d2")
	require.Contains(t, report, "Key d2[b] not in d1")

	_, diffs = Compare(a, b, "a", "b")
	report = Report(diffs)
	require.Contains(t, report, "Key a[a] not in b")
	require.Contains(t, report, "Key b[b] not in a")
}

func TestCompareValueDiff(t *testing.T) {
	a := mustNormalize(t, map[string]int{"a": 1})
	b := mustNormalize(t, map[string]int{"a": 2})

	match, diffs := Compare(a, b)
	require.False(t, match)
	require.Len(t, diffs, 1)
	require.Equal(t, ValueMismatch, diffs[0].Kind)
	require.Equal(t, []string{"a"}, diffs[0].Path)
	require.Equal(t, `Value of "d1[a]" (1, int64) not same as "d2[a]" (2, int64)`, diffs[0].String())
}

func TestCompareSequencesAsAWhole(t *testing.T) {
	a := mustNormalize(t, map[string]interface{}{"a": []interface{}{1, map[string]int{"2": 3}, 4}})
	b := mustNormalize(t, map[string]interface{}{"a": []interface{}{1, map[string]int{"5": 6}, 4}})

	match, diffs := Compare(a, b)
	require.False(t, match)
	require.Len(t, diffs, 1)
	require.Equal(t, []string{"a"}, diffs[0].Path)
}

func TestCompareNestedKeyDiff(t *testing.T) {
	a := mustNormalize(t, map[string]interface{}{"a": map[string]string{"b": "c"}})
	b := mustNormalize(t, map[string]interface{}{"a": map[string]string{"d": "c"}})

	match, diffs := Compare(a, b)
	require.False(t, match)
	report := Report(diffs)
	require.Contains(t, report, "Key d1[a][b] not in d2")
	require.Contains(t, report, "Key d2[a][d] not in d1")
}

func TestCompareNumbersByValue(t *testing.T) {
	a := mustNormalize(t, map[string]interface{}{"a": 1, "b": []interface{}{2, map[string]interface{}{"c": 3}}})
	b := mustNormalize(t, map[string]interface{}{"a": 1.0, "b": []interface{}{2.0, map[string]interface{}{"c": int64(3)}}})
	match, diffs := Compare(a, b)
	require.True(t, match, Report(diffs))

	match, diffs = Compare(map[string]interface{}{"a": 1}, map[string]interface{}{"a": "1"})
	require.False(t, match)
	require.Len(t, diffs, 1)

	match, _ = Compare(map[string]interface{}{"a": []interface{}{1, 2}}, map[string]interface{}{"a": []interface{}{1.0, 2.5}})
	require.False(t, match)
}

func TestCompareNormalizedDecimals(t *testing.T) {
	a := mustNormalize(t, map[string]interface{}{"gain": decimal.RequireFromString("2.50")})
	b := mustNormalize(t, map[string]interface{}{"gain": 2.5})
	match, diffs := Compare(a, b)
	require.True(t, match, Report(diffs))
}

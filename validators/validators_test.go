package validators

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestInts(t *testing.T) {
	v := IntRange(1, 100000)
	for _, ok := range []interface{}{1, int64(100000), uint16(42), 7.0, decimal.NewFromInt(5)} {
		require.NoError(t, v.Validate(ok), "%v", ok)
	}
	for _, bad := range []interface{}{0, 100001, 1.5, "3", true, nil} {
		require.Error(t, v.Validate(bad), "%v", bad)
	}
	require.Equal(t, "<Ints 1..100000>", v.String())
	require.NoError(t, Ints{}.Validate(-5))
}

func TestNumbers(t *testing.T) {
	v := NumberRange(-0.5, 2.5)
	for _, ok := range []interface{}{-0.5, 0, 2, float32(1.25), decimal.RequireFromString("2.5")} {
		require.NoError(t, v.Validate(ok), "%v", ok)
	}
	for _, bad := range []interface{}{-0.51, 3, "1", false, math.NaN(), math.Inf(1)} {
		require.Error(t, v.Validate(bad), "%v", bad)
	}
	require.NoError(t, Numbers{}.Validate(1e300))
}

func TestEnum(t *testing.T) {
	v := Enum("UNDEFINED", 50, true)
	require.NoError(t, v.Validate("UNDEFINED"))
	require.NoError(t, v.Validate(50.0))
	require.NoError(t, v.Validate(true))
	require.ErrorContains(t, v.Validate("DEFINED"), "{UNDEFINED, 50, true}")
	require.Error(t, v.Validate([]int{50}))
	require.Len(t, v.Values(), 3)
}

func TestStrings(t *testing.T) {
	v := Strings{MinLength: 1, MaxLength: 4}
	require.NoError(t, v.Validate("µV"))
	require.Error(t, v.Validate(""))
	require.Error(t, v.Validate("volts"))
	require.Error(t, v.Validate(3))
	require.NoError(t, Strings{}.Validate("any length at all"))
}

func TestBool(t *testing.T) {
	require.NoError(t, Bool{}.Validate(false))
	require.Error(t, Bool{}.Validate(0))
}

func TestMultiType(t *testing.T) {
	v := MultiType(IntRange(1000000, 125000000), Enum("UNDEFINED"))
	require.NoError(t, v.Validate(10000000))
	require.NoError(t, v.Validate("UNDEFINED"))
	err := v.Validate(5)
	require.ErrorContains(t, err, "matches none of the allowed types")
	require.ErrorContains(t, err, "below the minimum")

	require.Error(t, MultiType().Validate(1))
}

func TestExpr(t *testing.T) {
	v, err := Expr("value % 256 == 0 && value <= 4096")
	require.NoError(t, err)
	require.NoError(t, v.Validate(512))
	require.ErrorContains(t, v.Validate(500), "does not satisfy")
	require.ErrorContains(t, v.Validate(8192), "does not satisfy")
	require.Equal(t, "<Expr value % 256 == 0 && value <= 4096>", v.String())

	_, err = Expr("")
	require.Error(t, err)
	_, err = Expr("value +")
	require.Error(t, err)
}

func TestMultiples(t *testing.T) {
	v := Multiples{Divisor: 256, Min: 256}
	require.NoError(t, v.Validate(1024))
	require.NoError(t, v.Validate(int64(256)))
	require.ErrorContains(t, v.Validate(1000), "not a multiple of 256")
	require.ErrorContains(t, v.Validate(0), "below the minimum")
	require.Error(t, v.Validate(512.5))
	require.Error(t, Multiples{}.Validate(8))
}

// Package numeric converts the loosely typed values that flow through
// parameters into float64 or decimal form.
package numeric

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// IsNumber reports whether value is a Go numeric type or a decimal.
func IsNumber(value interface{}) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		decimal.Decimal, *decimal.Decimal:
		return true
	default:
		return false
	}
}

// IsInteger reports whether value is integral. Floats and decimals with no
// fractional part count as integers.
func IsInteger(value interface{}) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return !math.IsInf(float64(v), 0) && float64(v) == math.Trunc(float64(v))
	case float64:
		return !math.IsInf(v, 0) && v == math.Trunc(v)
	case decimal.Decimal:
		return v.IsInteger()
	case *decimal.Decimal:
		return v != nil && v.IsInteger()
	default:
		return false
	}
}

// Float converts numeric values to float64. Strings are not accepted.
func Float(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	case *decimal.Decimal:
		if v == nil {
			return 0, fmt.Errorf("decimal pointer is nil")
		}
		return v.InexactFloat64(), nil
	default:
		return 0, fmt.Errorf("expected number-compatible value, got %T", value)
	}
}

// Decimal converts numeric values and numeric strings to decimal.Decimal.
func Decimal(value interface{}) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, fmt.Errorf("decimal pointer is nil")
		}
		return *v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int8:
		return decimal.NewFromInt(int64(v)), nil
	case int16:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case uint:
		return decimal.RequireFromString(strconv.FormatUint(uint64(v), 10)), nil
	case uint8:
		return decimal.NewFromInt(int64(v)), nil
	case uint16:
		return decimal.NewFromInt(int64(v)), nil
	case uint32:
		return decimal.NewFromInt(int64(v)), nil
	case uint64:
		return decimal.RequireFromString(strconv.FormatUint(v, 10)), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, fmt.Errorf("invalid float value %v", v)
		}
		return decimal.RequireFromString(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return decimal.Zero, fmt.Errorf("invalid float value %v", v)
		}
		return decimal.RequireFromString(strconv.FormatFloat(float64(v), 'f', -1, 32)), nil
	case string:
		dec, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse decimal from string: %w", err)
		}
		return dec, nil
	default:
		return decimal.Zero, fmt.Errorf("expected decimal-compatible value, got %T", value)
	}
}

// Key normalises numbers so that 50, int64(50) and 50.0 compare equal when
// used as map keys. Other values are returned unchanged.
func Key(value interface{}) interface{} {
	if !IsNumber(value) {
		return value
	}
	f, err := Float(value)
	if err != nil {
		return value
	}
	return f
}

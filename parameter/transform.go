package parameter

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/timzifer/qlab/internal/numeric"
)

// Parser converts a value in one step of a Transform.
type Parser func(value interface{}) (interface{}, error)

// Transform maps cooked values to raw values and back.
//
// Setting applies the mapping, the set parser, the scale and finally the
// offset. Getting undoes the steps in reverse order. Numbers are computed as
// float64 unless the value is a decimal.Decimal, which stays exact. A nil
// value passes through untouched in both directions.
type Transform struct {
	Scale     *float64
	Offset    *float64
	Mapping   *ValueMapping
	GetParser Parser
	SetParser Parser
}

// IsIdentity reports whether the transform leaves values untouched.
func (t Transform) IsIdentity() bool {
	return t.Scale == nil && t.Offset == nil && t.Mapping == nil && t.GetParser == nil && t.SetParser == nil
}

func (t Transform) validate() error {
	if t.Scale != nil && *t.Scale == 0 {
		return fmt.Errorf("scale must not be zero")
	}
	return nil
}

// ToRaw converts a cooked value to the raw instrument value.
func (t Transform) ToRaw(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	raw := value
	var err error
	if t.Mapping != nil {
		if raw, err = t.Mapping.ToRaw(raw); err != nil {
			return nil, err
		}
	}
	if t.SetParser != nil {
		if raw, err = t.SetParser(raw); err != nil {
			return nil, fmt.Errorf("set parser: %w", err)
		}
	}
	if t.Scale != nil {
		if raw, err = multiply(raw, *t.Scale); err != nil {
			return nil, fmt.Errorf("apply scale: %w", err)
		}
	}
	if t.Offset != nil {
		if raw, err = add(raw, *t.Offset); err != nil {
			return nil, fmt.Errorf("apply offset: %w", err)
		}
	}
	return raw, nil
}

// FromRaw converts a raw instrument value to its cooked form.
func (t Transform) FromRaw(raw interface{}) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}
	value := raw
	var err error
	if t.Offset != nil {
		if value, err = add(value, -*t.Offset); err != nil {
			return nil, fmt.Errorf("remove offset: %w", err)
		}
	}
	if t.Scale != nil {
		if value, err = divide(value, *t.Scale); err != nil {
			return nil, fmt.Errorf("remove scale: %w", err)
		}
	}
	if t.GetParser != nil {
		if value, err = t.GetParser(value); err != nil {
			return nil, fmt.Errorf("get parser: %w", err)
		}
	}
	if t.Mapping != nil {
		if value, err = t.Mapping.FromRaw(value); err != nil {
			return nil, err
		}
	}
	return value, nil
}

func multiply(value interface{}, factor float64) (interface{}, error) {
	if dec, ok := asDecimal(value); ok {
		return dec.Mul(decimal.NewFromFloat(factor)), nil
	}
	f, err := numeric.Float(value)
	if err != nil {
		return nil, err
	}
	return f * factor, nil
}

func divide(value interface{}, factor float64) (interface{}, error) {
	if dec, ok := asDecimal(value); ok {
		return dec.Div(decimal.NewFromFloat(factor)), nil
	}
	f, err := numeric.Float(value)
	if err != nil {
		return nil, err
	}
	return f / factor, nil
}

func add(value interface{}, delta float64) (interface{}, error) {
	if dec, ok := asDecimal(value); ok {
		return dec.Add(decimal.NewFromFloat(delta)), nil
	}
	f, err := numeric.Float(value)
	if err != nil {
		return nil, err
	}
	return f + delta, nil
}

func asDecimal(value interface{}) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false
		}
		return *v, true
	default:
		return decimal.Zero, false
	}
}

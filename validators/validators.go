// Package validators provides value constraints for parameters.
//
// Every validator implements parameter.Validator. Errors describe both the
// offending value and the constraint so they read well when wrapped by
// parameter.ValidationError.
package validators

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/timzifer/qlab/internal/numeric"
)

// Ints accepts integral numbers within [Min, Max]. Nil bounds are open.
type Ints struct {
	Min *int64
	Max *int64
}

// IntRange returns an Ints validator with both bounds set.
func IntRange(min, max int64) Ints {
	return Ints{Min: &min, Max: &max}
}

// Validate implements parameter.Validator.
func (v Ints) Validate(value interface{}) error {
	if _, ok := value.(bool); ok || !numeric.IsInteger(value) {
		return fmt.Errorf("%v (%T) is not an integer", value, value)
	}
	dec, err := numeric.Decimal(value)
	if err != nil {
		return err
	}
	if v.Min != nil && dec.LessThan(decimal.NewFromInt(*v.Min)) {
		return fmt.Errorf("%v is below the minimum %d", value, *v.Min)
	}
	if v.Max != nil && dec.GreaterThan(decimal.NewFromInt(*v.Max)) {
		return fmt.Errorf("%v is above the maximum %d", value, *v.Max)
	}
	return nil
}

// IntMin returns an Ints validator with only a lower bound.
func IntMin(min int64) Ints {
	return Ints{Min: &min}
}

func (v Ints) String() string {
	return fmt.Sprintf("<Ints %s>", describeRange(v.Min, v.Max))
}

// Numbers accepts finite ints, floats and decimals within [Min, Max].
type Numbers struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

// NumberRange returns a Numbers validator with both bounds set.
func NumberRange(min, max float64) Numbers {
	lo := decimal.NewFromFloat(min)
	hi := decimal.NewFromFloat(max)
	return Numbers{Min: &lo, Max: &hi}
}

// Validate implements parameter.Validator.
func (v Numbers) Validate(value interface{}) error {
	if _, ok := value.(bool); ok || !numeric.IsNumber(value) {
		return fmt.Errorf("%v (%T) is not a number", value, value)
	}
	if f, err := numeric.Float(value); err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return fmt.Errorf("%v is not a finite number", value)
	}
	dec, err := numeric.Decimal(value)
	if err != nil {
		return err
	}
	if v.Min != nil && dec.LessThan(*v.Min) {
		return fmt.Errorf("%v is below the minimum %s", value, v.Min.String())
	}
	if v.Max != nil && dec.GreaterThan(*v.Max) {
		return fmt.Errorf("%v is above the maximum %s", value, v.Max.String())
	}
	return nil
}

func (v Numbers) String() string {
	var lo, hi string
	if v.Min != nil {
		lo = v.Min.String()
	}
	if v.Max != nil {
		hi = v.Max.String()
	}
	return fmt.Sprintf("<Numbers %s..%s>", lo, hi)
}

// EnumValidator accepts one of a fixed set of values.
type EnumValidator struct {
	values []interface{}
	keys   map[interface{}]struct{}
}

// Enum returns a validator that accepts exactly the given values. Numbers
// compare by value.
func Enum(values ...interface{}) EnumValidator {
	keys := make(map[interface{}]struct{}, len(values))
	for _, value := range values {
		keys[numeric.Key(value)] = struct{}{}
	}
	return EnumValidator{values: values, keys: keys}
}

// Validate implements parameter.Validator.
func (v EnumValidator) Validate(value interface{}) error {
	if value != nil && !reflect.TypeOf(value).Comparable() {
		return fmt.Errorf("%v (%T) is not one of %s", value, value, v.describe())
	}
	if _, ok := v.keys[numeric.Key(value)]; !ok {
		return fmt.Errorf("%v is not one of %s", value, v.describe())
	}
	return nil
}

// Values returns the accepted values in declaration order.
func (v EnumValidator) Values() []interface{} {
	return append([]interface{}(nil), v.values...)
}

func (v EnumValidator) describe() string {
	parts := make([]string, len(v.values))
	for i, value := range v.values {
		parts[i] = fmt.Sprintf("%v", value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Strings accepts strings whose length in runes lies within the bounds.
// A zero MaxLength means unbounded.
type Strings struct {
	MinLength int
	MaxLength int
}

// Validate implements parameter.Validator.
func (v Strings) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%v (%T) is not a string", value, value)
	}
	n := utf8.RuneCountInString(s)
	if n < v.MinLength {
		return fmt.Errorf("%q is shorter than %d characters", s, v.MinLength)
	}
	if v.MaxLength > 0 && n > v.MaxLength {
		return fmt.Errorf("%q is longer than %d characters", s, v.MaxLength)
	}
	return nil
}

// Bool accepts only boolean values.
type Bool struct{}

// Validate implements parameter.Validator.
func (Bool) Validate(value interface{}) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%v (%T) is not a boolean", value, value)
	}
	return nil
}

// Multiples accepts integers that are a multiple of Divisor and not below Min.
type Multiples struct {
	Divisor int64
	Min     int64
}

// Validate implements parameter.Validator.
func (v Multiples) Validate(value interface{}) error {
	if v.Divisor <= 0 {
		return fmt.Errorf("divisor must be positive, got %d", v.Divisor)
	}
	if err := IntMin(v.Min).Validate(value); err != nil {
		return err
	}
	dec, err := numeric.Decimal(value)
	if err != nil {
		return err
	}
	if !dec.Mod(decimal.NewFromInt(v.Divisor)).IsZero() {
		return fmt.Errorf("%v is not a multiple of %d", value, v.Divisor)
	}
	return nil
}

func (v Multiples) String() string {
	return fmt.Sprintf("<Multiples of %d, >=%d>", v.Divisor, v.Min)
}

// Validator mirrors parameter.Validator so this package does not depend on
// the parameter package.
type Validator interface {
	Validate(value interface{}) error
}

// MultiTypeValidator accepts a value if any of its validators accepts it.
type MultiTypeValidator struct {
	validators []Validator
}

// MultiType combines validators with OR semantics.
func MultiType(validators ...Validator) MultiTypeValidator {
	return MultiTypeValidator{validators: validators}
}

// Validate implements parameter.Validator.
func (v MultiTypeValidator) Validate(value interface{}) error {
	if len(v.validators) == 0 {
		return fmt.Errorf("no validators configured")
	}
	reasons := make([]string, 0, len(v.validators))
	for _, inner := range v.validators {
		err := inner.Validate(value)
		if err == nil {
			return nil
		}
		reasons = append(reasons, err.Error())
	}
	return fmt.Errorf("%v matches none of the allowed types: %s", value, strings.Join(reasons, "; "))
}

func describeRange(min, max *int64) string {
	var lo, hi string
	if min != nil {
		lo = fmt.Sprintf("%d", *min)
	}
	if max != nil {
		hi = fmt.Sprintf("%d", *max)
	}
	return lo + ".." + hi
}

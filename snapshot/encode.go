// Package snapshot turns station, instrument and parameter snapshots into
// JSON and compares snapshot trees.
//
// Values read from instruments are not always JSON friendly: complex numbers
// are written as {"__dtype__": "complex", "re": .., "im": ..}, NaN and the
// infinities as the strings "NaN", "Infinity" and "-Infinity", decimals as
// plain JSON numbers and timestamps in RFC 3339 with nanoseconds.
package snapshot

import (
	"encoding"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ComplexType is the __dtype__ tag of encoded complex numbers.
const ComplexType = "complex"

// Complex is the encoded form of a complex number.
type Complex struct {
	DType string      `json:"__dtype__"`
	Re    interface{} `json:"re"`
	Im    interface{} `json:"im"`
}

var (
	timeType      = reflect.TypeOf(time.Time{})
	numberType    = reflect.TypeOf(json.Number(""))
	decimalType   = reflect.TypeOf(decimal.Decimal{})
	marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textType      = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Marshal encodes v as compact JSON.
func Marshal(v interface{}) ([]byte, error) {
	normalized, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

// MarshalIndent encodes v as indented JSON.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	normalized, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(normalized, prefix, indent)
}

// Encode writes v as indented JSON followed by a newline.
func Encode(w io.Writer, v interface{}) error {
	data, err := MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Normalize converts v into a tree of maps, slices and JSON-safe scalars.
// Structs are flattened according to their json tags.
func Normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	return normalizeValue(reflect.ValueOf(v))
}

func normalizeValue(rv reflect.Value) (interface{}, error) {
	if !rv.IsValid() {
		return nil, nil
	}
	switch rv.Type() {
	case timeType:
		return rv.Interface().(time.Time).Format(time.RFC3339Nano), nil
	case decimalType:
		return json.Number(rv.Interface().(decimal.Decimal).String()), nil
	case numberType:
		return json.Number(rv.String()), nil
	}

	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Kind() == reflect.Pointer && rv.Type().Implements(marshalerType) && !rv.Elem().Type().Implements(marshalerType) {
			return rv.Interface(), nil
		}
		return normalizeValue(rv.Elem())
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if d, ok := rv.Interface().(time.Duration); ok {
			return d.Seconds(), nil
		}
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return normalizeFloat(rv.Float()), nil
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		return Complex{DType: ComplexType, Re: normalizeFloat(real(c)), Im: normalizeFloat(imag(c))}, nil
	}

	if rv.Type().Implements(marshalerType) {
		return rv.Interface(), nil
	}
	if rv.Type().Implements(textType) {
		text, err := rv.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, err
		}
		return string(text), nil
	}

	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		fallthrough
	case reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := range out {
			item, err := normalizeValue(rv.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			item, err := normalizeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(iter.Key().Interface())] = item
		}
		return out, nil
	case reflect.Struct:
		return normalizeStruct(rv)
	}

	if s, ok := rv.Interface().(fmt.Stringer); ok {
		return s.String(), nil
	}
	return nil, fmt.Errorf("cannot encode value of type %s", rv.Type())
}

func normalizeFloat(f float64) interface{} {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

func normalizeStruct(rv reflect.Value) (interface{}, error) {
	out := make(map[string]interface{}, rv.NumField())
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonField(field)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		item, err := normalizeValue(fv)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		out[name] = item
	}
	return out, nil
}

func jsonField(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = field.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

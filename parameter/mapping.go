package parameter

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/timzifer/qlab/internal/numeric"
)

// MappingEntry pairs a cooked label with the raw code sent to the instrument.
type MappingEntry struct {
	Value interface{}
	Raw   interface{}
}

// ValueMapping is a bijective table between cooked labels and raw codes.
// Numeric keys are compared by value, so 50 and 50.0 address the same entry.
type ValueMapping struct {
	entries []MappingEntry
	forward map[interface{}]interface{}
	inverse map[interface{}]interface{}
}

// NewValueMapping builds a mapping from the supplied entries. Duplicate labels
// or two labels sharing one raw code are rejected.
func NewValueMapping(entries ...MappingEntry) (*ValueMapping, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("value mapping must not be empty")
	}
	m := &ValueMapping{
		entries: make([]MappingEntry, 0, len(entries)),
		forward: make(map[interface{}]interface{}, len(entries)),
		inverse: make(map[interface{}]interface{}, len(entries)),
	}
	for _, entry := range entries {
		valueKey, err := mappingKey(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("mapping value %v: %w", entry.Value, err)
		}
		rawKey, err := mappingKey(entry.Raw)
		if err != nil {
			return nil, fmt.Errorf("mapping raw code %v: %w", entry.Raw, err)
		}
		if _, exists := m.forward[valueKey]; exists {
			return nil, fmt.Errorf("duplicate mapping value %v", entry.Value)
		}
		if previous, exists := m.inverse[rawKey]; exists {
			return nil, fmt.Errorf("raw code %v mapped by both %v and %v", entry.Raw, previous, entry.Value)
		}
		m.forward[valueKey] = entry.Raw
		m.inverse[rawKey] = entry.Value
		m.entries = append(m.entries, entry)
	}
	return m, nil
}

// MustValueMapping is like NewValueMapping but panics on error. It is meant
// for static driver tables.
func MustValueMapping(entries ...MappingEntry) *ValueMapping {
	m, err := NewValueMapping(entries...)
	if err != nil {
		panic(err)
	}
	return m
}

// CreateOnOffValMapping maps true to onVal and false to offVal. The inverse
// direction only ever yields booleans.
func CreateOnOffValMapping(onVal, offVal interface{}) (*ValueMapping, error) {
	return NewValueMapping(
		MappingEntry{Value: true, Raw: onVal},
		MappingEntry{Value: false, Raw: offVal},
	)
}

// ToRaw returns the raw code for a cooked label.
func (m *ValueMapping) ToRaw(value interface{}) (interface{}, error) {
	key, err := mappingKey(value)
	if err != nil {
		return nil, err
	}
	raw, ok := m.forward[key]
	if !ok {
		return nil, fmt.Errorf("%v is not one of %s", value, m.describe())
	}
	return raw, nil
}

// FromRaw returns the cooked label for a raw code.
func (m *ValueMapping) FromRaw(raw interface{}) (interface{}, error) {
	key, err := mappingKey(raw)
	if err != nil {
		return nil, err
	}
	value, ok := m.inverse[key]
	if !ok {
		return nil, fmt.Errorf("unexpected raw value %v", raw)
	}
	return value, nil
}

// Values lists the cooked labels in declaration order.
func (m *ValueMapping) Values() []interface{} {
	out := make([]interface{}, len(m.entries))
	for i, entry := range m.entries {
		out[i] = entry.Value
	}
	return out
}

// Entries returns a copy of the mapping table in declaration order.
func (m *ValueMapping) Entries() []MappingEntry {
	return append([]MappingEntry(nil), m.entries...)
}

// Len returns the number of entries.
func (m *ValueMapping) Len() int {
	return len(m.entries)
}

func (m *ValueMapping) describe() string {
	labels := make([]string, len(m.entries))
	for i, entry := range m.entries {
		labels[i] = fmt.Sprintf("%v", entry.Value)
	}
	return "{" + strings.Join(labels, ", ") + "}"
}

func mappingKey(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	if !reflect.TypeOf(value).Comparable() {
		return nil, fmt.Errorf("value of type %T cannot be used in a mapping", value)
	}
	return numeric.Key(value), nil
}

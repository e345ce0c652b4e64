package snapshot

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/timzifer/qlab/internal/numeric"
)

// DifferenceKind classifies an entry reported by Compare.
type DifferenceKind int

const (
	// MissingRight marks a key present in the left tree only.
	MissingRight DifferenceKind = iota
	// MissingLeft marks a key present in the right tree only.
	MissingLeft
	// ValueMismatch marks a key whose values differ.
	ValueMismatch
)

// Difference is one mismatch between two snapshot trees.
type Difference struct {
	Kind  DifferenceKind
	Path  []string
	Left  interface{}
	Right interface{}

	leftName  string
	rightName string
}

func (d Difference) String() string {
	path := formatPath(d.Path)
	switch d.Kind {
	case MissingRight:
		return fmt.Sprintf("Key %s%s not in %s", d.leftName, path, d.rightName)
	case MissingLeft:
		return fmt.Sprintf("Key %s%s not in %s", d.rightName, path, d.leftName)
	default:
		return fmt.Sprintf("Value of %q (%v, %T) not same as %q (%v, %T)",
			d.leftName+path, d.Left, d.Left, d.rightName+path, d.Right, d.Right)
	}
}

// Compare walks two trees produced by Normalize and reports every key
// missing on either side and every differing value. Nested maps are
// compared key by key; other values, including slices, compare as a whole.
// Numbers compare by value, so 1 and 1.0 are the same.
// Names label the two sides in Difference.String and default to d1 and d2.
func Compare(left, right map[string]interface{}, names ...string) (bool, []Difference) {
	leftName, rightName := "d1", "d2"
	if len(names) > 0 && names[0] != "" {
		leftName = names[0]
	}
	if len(names) > 1 && names[1] != "" {
		rightName = names[1]
	}
	var diffs []Difference
	compareMaps(left, right, nil, leftName, rightName, &diffs)
	return len(diffs) == 0, diffs
}

// Report joins the differences into one line per entry.
func Report(diffs []Difference) string {
	lines := make([]string, len(diffs))
	for i, d := range diffs {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

func compareMaps(left, right map[string]interface{}, path []string, leftName, rightName string, diffs *[]Difference) {
	for _, key := range sortedKeys(left) {
		keyPath := appendPath(path, key)
		rv, ok := right[key]
		if !ok {
			*diffs = append(*diffs, Difference{Kind: MissingRight, Path: keyPath, Left: left[key], leftName: leftName, rightName: rightName})
			continue
		}
		lm, lok := left[key].(map[string]interface{})
		rm, rok := rv.(map[string]interface{})
		if lok && rok {
			compareMaps(lm, rm, keyPath, leftName, rightName, diffs)
			continue
		}
		if !sameValue(left[key], rv) {
			*diffs = append(*diffs, Difference{Kind: ValueMismatch, Path: keyPath, Left: left[key], Right: rv, leftName: leftName, rightName: rightName})
		}
	}
	for _, key := range sortedKeys(right) {
		if _, ok := left[key]; !ok {
			*diffs = append(*diffs, Difference{Kind: MissingLeft, Path: appendPath(path, key), Right: right[key], leftName: leftName, rightName: rightName})
		}
	}
}

func sameValue(left, right interface{}) bool {
	switch l := left.(type) {
	case []interface{}:
		r, ok := right.([]interface{})
		if !ok || len(l) != len(r) {
			return false
		}
		for i := range l {
			if !sameValue(l[i], r[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		r, ok := right.(map[string]interface{})
		if !ok || len(l) != len(r) {
			return false
		}
		for key, lv := range l {
			rv, ok := r[key]
			if !ok || !sameValue(lv, rv) {
				return false
			}
		}
		return true
	}
	if ld, ok := asDecimal(left); ok {
		if rd, ok := asDecimal(right); ok {
			return ld.Equal(rd)
		}
	}
	return reflect.DeepEqual(left, right)
}

// asDecimal accepts Go numbers and the json.Number form Normalize gives decimals.
func asDecimal(value interface{}) (decimal.Decimal, bool) {
	if n, ok := value.(json.Number); ok {
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	}
	if !numeric.IsNumber(value) {
		return decimal.Decimal{}, false
	}
	d, err := numeric.Decimal(value)
	return d, err == nil
}

func appendPath(path []string, key string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, key)
}

func formatPath(path []string) string {
	var b strings.Builder
	for _, key := range path {
		b.WriteString("[")
		b.WriteString(key)
		b.WriteString("]")
	}
	return b.String()
}

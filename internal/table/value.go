package table

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is one row of data as received from the backend.
// The engine treats it as read-only.
type Record map[string]any

// DisplayRecord pairs a record with the display-only fields derived from it.
type DisplayRecord struct {
	Original Record
	Derived  map[string]string
}

// Value returns the derived field for key if there is one, otherwise the
// original field.
func (d DisplayRecord) Value(key string) any {
	if v, ok := d.Derived[key]; ok {
		return v
	}
	return d.Original[key]
}

// Decorator computes display-only fields for a record, such as badge markup.
type Decorator func(Record) map[string]string

type valueKind int

const (
	kindNumber valueKind = iota
	kindString
	kindBool
	kindOther
	kindNil
)

func kindOf(v any) valueKind {
	switch v.(type) {
	case nil:
		return kindNil
	case string:
		return kindString
	case bool:
		return kindBool
	}
	if _, ok := asNumber(v); ok {
		return kindNumber
	}
	return kindOther
}

// asNumber converts Go numeric types to float64. Strings are not numbers
// here; see parseNumber.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// parseNumber accepts numbers and numeric strings.
func parseNumber(v any) (float64, bool) {
	if f, ok := asNumber(v); ok {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// isBlank reports whether v renders as an empty cell regardless of type.
func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return s == ""
	}
	return false
}

// stringify returns the plain string form of a value.
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case json.Number:
		return s.String()
	case time.Time:
		return s.Format(time.RFC3339)
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

// valueKey identifies a value for distinctness and membership tests.
// Numbers of different Go types compare equal when their values do;
// the string "1" and the number 1 stay distinct.
func valueKey(v any) string {
	switch kindOf(v) {
	case kindNil:
		return "z:"
	case kindNumber:
		f, _ := asNumber(v)
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	case kindString:
		return "s:" + v.(string)
	case kindBool:
		return "b:" + strconv.FormatBool(v.(bool))
	default:
		return "o:" + stringify(v)
	}
}

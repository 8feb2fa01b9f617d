package dadata

import (
	"strconv"
	"strings"
)

// Address is the loosely typed "data" object of a Dadata address.
// Most values are strings or null; coordinates may arrive as strings.
type Address map[string]any

// String returns the field rendered as text, or "" when absent or null.
func (a Address) String(field string) string {
	switch v := a[field].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Float parses the field as a number. It reports false for absent, null,
// empty or non-numeric values.
func (a Address) Float(field string) (float64, bool) {
	switch v := a[field].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Package convert provides type coercion helpers for property-bag values.
//
// Graph properties are heterogeneously typed (YAML loads integers as int,
// JSON as float64, callers pass whatever they have), so every consumer of
// a numeric or boolean property goes through these helpers instead of a
// local type switch. All functions return a success boolean; failures are
// expected and degrade to a no-op at the call site, never an error.
//
// Example:
//
//	if area, ok := convert.ToFloat64(node.Properties["area"]); ok {
//		// use area
//	}
package convert

import "strconv"

// ToFloat64 converts numeric types and numeric strings to float64.
// Returns (value, true) on success, (0, false) on failure.
//
// Supported: float64, float32, int, int32, int64, uint, uint32, uint64,
// string (decimal or scientific notation via strconv.ParseFloat).
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// ToBool converts bools and bool-ish strings ("true", "1", "false", "0")
// to bool.
func ToBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			return b, true
		}
	case int:
		return val != 0, true
	case int64:
		return val != 0, true
	case float64:
		return val != 0, true
	}
	return false, false
}

// ToString converts strings and stringer-free scalars to string.
func ToString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	}
	return "", false
}

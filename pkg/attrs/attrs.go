// Package attrs reads values out of slog-style key/value lists.
package attrs

import "fmt"

// Lookup returns the value paired with the first occurrence of key. A
// trailing key without a value is ignored.
func Lookup(list []any, key string) (any, bool) {
	for i := 0; i+1 < len(list); i += 2 {
		if k, ok := list[i].(string); ok && k == key {
			return list[i+1], true
		}
	}
	return nil, false
}

// String returns the value of key as a string. Stringers are rendered;
// any other non-string value, or a missing key, yields "".
func String(list []any, key string) string {
	v, ok := Lookup(list, key)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}

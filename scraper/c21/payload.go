package c21

import (
	"encoding/json"
	"strconv"
	"strings"
)

// truthy reports whether a decoded JSON value carries information: nil,
// false, zero, empty strings and empty containers do not.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

// first returns the first truthy value among obj's keys, or nil.
func first(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v := obj[k]; truthy(v) {
			return v
		}
	}
	return nil
}

// text renders a scalar as trimmed text. Containers and nil give "".
func text(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	return ""
}

// object returns v as a JSON object, or nil.
func object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// joinNonEmpty joins the non-empty parts with ", ".
func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func intPtr(n int) *int { return &n }

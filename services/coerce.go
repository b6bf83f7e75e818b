package services

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Area conversion constants, exact.
const (
	SqftToSqm = 0.09290304
	AcreToSqm = 4046.8564224
)

// numberTokenRe matches '1,234.56', '5,000', '1200', '700' and signed variants.
var numberTokenRe = regexp.MustCompile(`-?\d+(?:,\d{3})*(?:\.\d+)?`)

// rangeKeys are consulted in order when a number arrives as a range mapping.
var rangeKeys = []string{"max", "maxValue", "value", "min", "minValue"}

// SqftToSquareMeters converts square feet to square meters.
func SqftToSquareMeters(sqft float64) float64 {
	return sqft * SqftToSqm
}

// AcresToSquareMeters converts acres to square meters.
func AcresToSquareMeters(acres float64) float64 {
	return acres * AcreToSqm
}

// ToFloat coerces a decoded JSON value (or any scalar) into a float.
//
// Numbers pass through. Range mappings prefer max-like keys over min-like
// ones. Lists are coerced element-wise and the largest value wins. Text is
// scanned for integer/decimal tokens (thousands separators allowed) and the
// largest token wins, so "0 - 700" and "900-1200 sqft" resolve to their
// upper bound. The second return value is false when nothing usable was
// found.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case bool:
		return 0, false
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case map[string]any:
		for _, k := range rangeKeys {
			val, ok := x[k]
			if !ok || val == nil {
				continue
			}
			if f, ok := scalarFloat(val); ok {
				return f, true
			}
		}
		return 0, false
	case []any:
		best, found := 0.0, false
		for _, el := range x {
			f, ok := ToFloat(el)
			if !ok {
				continue
			}
			if !found || f > best {
				best, found = f, true
			}
		}
		return best, found
	case string:
		return floatFromText(x)
	default:
		return floatFromText(fmt.Sprint(x))
	}
}

// FloatPtr is ToFloat returning nil when the value is absent.
func FloatPtr(v any) *float64 {
	f, ok := ToFloat(v)
	if !ok {
		return nil
	}
	return &f
}

// ToInt truncates numbers and parses plain integer strings. Anything else
// is absent.
func ToInt(v any) (int, bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int(x), true
	case int:
		return x, true
	case int64:
		return int(x), true
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n), true
		}
		if f, err := x.Float64(); err == nil {
			return int(f), true
		}
		return 0, false
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// scalarFloat accepts a number or a string that is itself a plain number.
func scalarFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	case map[string]any, []any:
		return 0, false
	}
	return ToFloat(v)
}

func floatFromText(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	if s == "" {
		return 0, false
	}

	best, found := 0.0, false
	for _, loc := range numberTokenRe.FindAllStringIndex(s, -1) {
		tok := s[loc[0]:loc[1]]
		// A hyphen glued between two numbers is a range separator.
		if strings.HasPrefix(tok, "-") && precededByDigit(s, loc[0]) {
			tok = tok[1:]
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", ""), 64)
		if err != nil {
			continue
		}
		if !found || f > best {
			best, found = f, true
		}
	}
	return best, found
}

func precededByDigit(s string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch c := s[j]; {
		case c == ' ':
			continue
		case c >= '0' && c <= '9':
			return true
		default:
			return false
		}
	}
	return false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

package services

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePrice keeps only the digit characters of v and reads them as a
// whole-unit magnitude. Currency symbols, separators and decimal marks are
// all dropped, so "$1,100" and "$1.100" both give 1100. It returns nil when
// no digit is left.
func ParsePrice(v any) *float64 {
	if v == nil {
		return nil
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(v)
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}

	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return nil
	}
	return &f
}

package utils

import "errors"

// ErrNotFound is returned by ExtractJSONObject when no balanced object
// starts at or after the given offset.
var ErrNotFound = errors.New("balanced json object not found")

// ExtractJSONObject returns the first balanced {...} object that begins at
// or after start, braces included. Braces inside double-quoted strings are
// ignored and backslash escapes inside strings are honoured. A partial
// object is never returned.
func ExtractJSONObject(s string, start int) (string, error) {
	if start < 0 {
		start = 0
	}
	open := -1
	for i := start; i < len(s); i++ {
		if s[i] == '{' {
			open = i
			break
		}
	}
	if open == -1 {
		return "", ErrNotFound
	}

	depth := 0
	inString := false
	escaped := false

	for j := open; j < len(s); j++ {
		ch := s[j]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[open : j+1], nil
			}
		}
	}
	return "", ErrNotFound
}

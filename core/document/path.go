package document

import (
	"strconv"
	"strings"
)

// SplitPath splits a property path into its segments. Segments are separated by
// dots or written as bracketed indices: "a.b", "a[0].b" and "a.0.b" are all valid.
// A backslash escapes the next character, so "a\.b" addresses the key "a.b".
func SplitPath(path string) []string {
	var (
		segments []string
		current  strings.Builder
		escaped  bool
	)
	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
		}
		current.Reset()
	}
	for _, c := range path {
		if escaped {
			current.WriteRune(c)
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '.', '[', ']':
			flush()
		default:
			current.WriteRune(c)
		}
	}
	if escaped {
		current.WriteRune('\\')
	}
	flush()
	return segments
}

// Lookup returns the value at the given property path in v, and false if the path does not exist.
func Lookup(v interface{}, path string) (interface{}, bool) {
	if record, ok := v.(map[string]interface{}); ok {
		if value, ok := record[path]; ok {
			return value, true
		}
	}
	current := v
	for _, segment := range SplitPath(path) {
		switch t := current.(type) {
		case map[string]interface{}:
			value, ok := t[segment]
			if !ok {
				return nil, false
			}
			current = value
		case []interface{}:
			i, err := strconv.Atoi(segment)
			if err != nil || i < 0 || i >= len(t) {
				return nil, false
			}
			current = t[i]
		default:
			return nil, false
		}
	}
	return current, true
}

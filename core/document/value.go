package document

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Number returns v as float64 if v is a JSON number
func Number(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

// formatNumber returns the shortest decimal representation of f, "3" for 3.0
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// IDString returns the canonical string form of an identifier. Identifiers
// are compared as strings only; numbers are converted with their shortest
// decimal representation. nil and non-scalar values are not identifiers.
func IDString(v interface{}) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	if f, ok := Number(v); ok {
		return formatNumber(f), true
	}
	return "", false
}

// LooseEqual compares a document value with a raw query parameter.
//
// The rule: nil never equals; numbers are compared numerically if the parameter
// parses as a number; booleans compare with "true" and "false"; strings compare
// exactly; lists and objects never equal a parameter.
func LooseEqual(v interface{}, param string) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t == param
	case bool:
		return strconv.FormatBool(t) == param
	}
	if f, ok := Number(v); ok {
		p, err := strconv.ParseFloat(strings.TrimSpace(param), 64)
		if err != nil {
			return false
		}
		return f == p
	}
	return false
}

// ParseLeadingInt parses the leading integer of s, ignoring leading white space
// and anything after the digits. "12abc" is 12, "1.9" is 1, "abc" fails.
func ParseLeadingInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	i, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		// out of range, saturate like a float would
		if s[0] == '-' {
			return math.MinInt64, true
		}
		return math.MaxInt64, true
	}
	return i, true
}

// rank orders the value kinds for sorting: numbers, strings, booleans, others, nil
func rank(v interface{}) int {
	if _, ok := Number(v); ok {
		return 0
	}
	switch v.(type) {
	case string:
		return 1
	case bool:
		return 2
	case nil:
		return 4
	}
	return 3
}

// Compare orders two document values. Numbers sort before strings, strings before
// booleans, lists and objects after that and nil last. Numbers compare
// numerically, strings lexically, false before true. Lists and objects are
// considered equal to each other.
func Compare(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0:
		fa, _ := Number(a)
		fb, _ := Number(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
	case 1:
		return strings.Compare(a.(string), b.(string))
	case 2:
		ba, bb := a.(bool), b.(bool)
		switch {
		case !ba && bb:
			return -1
		case ba && !bb:
			return 1
		}
	}
	return 0
}

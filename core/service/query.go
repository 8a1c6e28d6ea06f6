package service

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/relabs-tech/jsonserver/core/document"
)

// Operator is a comparison operator of a filter condition
type Operator string

// all supported comparison operators
const (
	OperatorEqual        Operator = ""
	OperatorNotEqual     Operator = "ne"
	OperatorLess         Operator = "lt"
	OperatorLessEqual    Operator = "lte"
	OperatorGreater      Operator = "gt"
	OperatorGreaterEqual Operator = "gte"
)

// Condition is one filter condition parsed from the query string, e.g. views_gte=100
type Condition struct {
	// Field is the property path, e.g. "author.name" or "tags[0]"
	Field    string
	Operator Operator
	// Value is the raw query parameter
	Value string
}

// Query holds the parsed query parameters of a find request
type Query struct {
	// Embed lists the related resources to attach to every returned record
	Embed []string
	// Sort lists the sort keys, a leading "-" sorts descending
	Sort []string

	Start   *int
	End     *int
	Limit   *int
	Page    *int
	PerPage *int

	Conditions []Condition
}

const defaultPerPage = 10

var operatorSuffix = regexp.MustCompile(`_(lt|lte|gt|gte|ne)$`)

// NewQuery parses url query parameters.
//
// _embed may be given several times or as a comma separated list. Integer
// parameters take the leading integer of the value and are dropped if there
// is none. Any other key becomes a condition, unless it is given more than
// once or is empty.
func NewQuery(values url.Values) Query {
	var q Query
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		array := values[key]
		if len(array) == 0 {
			continue
		}
		switch key {
		case "_embed":
			for _, value := range array {
				q.Embed = append(q.Embed, splitList(value)...)
			}
		case "_sort":
			for _, value := range array {
				q.Sort = append(q.Sort, splitList(value)...)
			}
		case "_start":
			q.Start = parseInt(array[0])
		case "_end":
			q.End = parseInt(array[0])
		case "_limit":
			q.Limit = parseInt(array[0])
		case "_page":
			q.Page = parseInt(array[0])
		case "_per_page":
			q.PerPage = parseInt(array[0])
		default:
			if len(array) > 1 || array[0] == "" {
				continue
			}
			q.Conditions = append(q.Conditions, newCondition(key, array[0]))
		}
	}
	return q
}

// Dependents returns the resources named by the _dependent parameters of a delete
// request. Like _embed, it may be given several times or as a comma separated list.
func Dependents(values url.Values) []string {
	var dependents []string
	for _, value := range values["_dependent"] {
		dependents = append(dependents, splitList(value)...)
	}
	return dependents
}

func newCondition(key, value string) Condition {
	if match := operatorSuffix.FindStringSubmatch(key); match != nil {
		return Condition{
			Field:    strings.TrimSuffix(key, match[0]),
			Operator: Operator(match[1]),
			Value:    value,
		}
	}
	return Condition{Field: key, Operator: OperatorEqual, Value: value}
}

func splitList(value string) []string {
	var list []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	return list
}

func parseInt(value string) *int {
	i, ok := document.ParseLeadingInt(value)
	if !ok {
		return nil
	}
	n := int(i)
	return &n
}

// Matches returns true if the record passes the condition
func (c Condition) Matches(record document.Record) bool {
	value, _ := document.Lookup(record, c.Field)
	switch c.Operator {
	case OperatorNotEqual:
		return !document.LooseEqual(value, c.Value)
	case OperatorLess, OperatorLessEqual, OperatorGreater, OperatorGreaterEqual:
		f, ok := document.Number(value)
		if !ok {
			return false
		}
		p, ok := document.ParseLeadingInt(c.Value)
		if !ok {
			return false
		}
		param := float64(p)
		switch c.Operator {
		case OperatorLess:
			return f < param
		case OperatorLessEqual:
			return f <= param
		case OperatorGreater:
			return f > param
		default:
			return f >= param
		}
	default:
		return document.LooseEqual(value, c.Value)
	}
}

// matchesAll returns true if the record passes every condition
func matchesAll(record document.Record, conditions []Condition) bool {
	for _, c := range conditions {
		if !c.Matches(record) {
			return false
		}
	}
	return true
}

// sortRecords sorts records stably by the given keys. A key prefixed with
// "-" sorts descending. Values are ordered by document.Compare.
func sortRecords(records []interface{}, keys []string) {
	if len(keys) == 0 {
		return
	}
	type sortKey struct {
		path       string
		descending bool
	}
	sortKeys := make([]sortKey, 0, len(keys))
	for _, key := range keys {
		if path, ok := strings.CutPrefix(key, "-"); ok {
			sortKeys = append(sortKeys, sortKey{path: path, descending: true})
		} else {
			sortKeys = append(sortKeys, sortKey{path: key})
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, key := range sortKeys {
			a, _ := document.Lookup(records[i], key.path)
			b, _ := document.Lookup(records[j], key.path)
			c := document.Compare(a, b)
			if c == 0 {
				continue
			}
			if key.descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// slice returns list[start:end] with negative indices counting from the end and
// out of range indices clamped, so it never panics
func slice(list []interface{}, start, end int) []interface{} {
	n := len(list)
	clamp := func(i int) int {
		if i < 0 {
			i += n
			if i < 0 {
				return 0
			}
		}
		if i > n {
			return n
		}
		return i
	}
	start, end = clamp(start), clamp(end)
	if start >= end {
		return []interface{}{}
	}
	return list[start:end]
}

package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jinzhu/inflection"
)

// Operation represents a modifying document operation, one of Create, Read, Update, Delete, List
type Operation string

// all supported document operations
const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationList   Operation = "list"
)

// UnmarshalJSON is a custom JSON unmarshaller
func (o *Operation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Operation(s)
	switch *o {
	case OperationCreate, OperationRead, OperationUpdate, OperationDelete, OperationList:
		return nil
	default:
		return fmt.Errorf("%s is not valid Operation", s)
	}
}

// Notifier is an interface to receive document change notifications. Notify is called
// after the change was persisted. The payload is the JSON of the affected record or object.
type Notifier interface {
	Notify(ctx context.Context, resource string, operation Operation, payload []byte)
}

// Plural returns the plural form of the passed resource name.
//
// This is the algorithm used to resolve the resource a foreign key points to
func Plural(singular string) string {
	return inflection.Plural(singular)
}

// Singular returns the singular form of the passed resource name.
func Singular(plural string) string {
	return inflection.Singular(plural)
}

// IsSingular returns true if name is its own singular form, e.g. "post" but not "posts".
func IsSingular(name string) bool {
	return inflection.Singular(name) == name
}

// ForeignKey returns the conventional foreign key property which points into
// the named resource. Example: "posts" becomes "postId".
func ForeignKey(resource string) string {
	return Singular(resource) + "Id"
}

// ResourceOfForeignKey returns the resource a foreign key property points into,
// and false if property is not a foreign key. Example: "postId" becomes "posts".
func ResourceOfForeignKey(property string) (string, bool) {
	prefix, ok := strings.CutSuffix(property, "Id")
	if !ok || prefix == "" {
		return "", false
	}
	return Plural(prefix), true
}

// JoinTableNames returns the two candidate names of an intermediate
// many-to-many table between a and b, in lookup order.
func JoinTableNames(a, b string) [2]string {
	return [2]string{a + "_" + b, b + "_" + a}
}

// IsJoinTableOf returns true if table is named like an intermediate table of resource,
// i.e. "<resource>_<other>" or "<other>_<resource>".
func IsJoinTableOf(table, resource string) bool {
	if table == resource {
		return false
	}
	return strings.HasPrefix(table, resource+"_") || strings.HasSuffix(table, "_"+resource)
}

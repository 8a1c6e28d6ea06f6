/*
Package document holds the in-memory JSON document served by jsonserver.

A Document maps resource names to either a list of records or a single record.
Values are the generic JSON variants produced by decoding into interface{}:
nil, bool, float64, string, []interface{} and map[string]interface{}. The
helpers in this package are the only places which switch on these variants.
*/
package document

import "sort"

// Record is one JSON object
type Record = map[string]interface{}

// Document is the complete data set, a map from resource name to
// a list of records or a single record
type Document map[string]interface{}

// Has returns true if the document contains the named resource
func (d Document) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// List returns the named resource if it is a list
func (d Document) List(name string) ([]interface{}, bool) {
	list, ok := d[name].([]interface{})
	return list, ok
}

// Object returns the named resource if it is a single object
func (d Document) Object(name string) (Record, bool) {
	object, ok := d[name].(map[string]interface{})
	return object, ok
}

// Names returns all resource names in alphabetical order
func (d Document) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the document
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	clone := make(Document, len(d))
	for name, value := range d {
		clone[name] = DeepCopy(value)
	}
	return clone
}

// AsRecord returns v as a record if it is a JSON object
func AsRecord(v interface{}) (Record, bool) {
	record, ok := v.(map[string]interface{})
	return record, ok
}

// FindByID returns the index and the record with the given id in list, or -1
func FindByID(list []interface{}, id string) (int, Record) {
	for i, item := range list {
		record, ok := AsRecord(item)
		if !ok {
			continue
		}
		if recordID, ok := IDString(record["id"]); ok && recordID == id {
			return i, record
		}
	}
	return -1, nil
}

// DeepCopy returns a deep copy of a JSON value
func DeepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		c := make(map[string]interface{}, len(t))
		for k, e := range t {
			c[k] = DeepCopy(e)
		}
		return c
	case []interface{}:
		c := make([]interface{}, len(t))
		for i, e := range t {
			c[i] = DeepCopy(e)
		}
		return c
	default:
		return v
	}
}

// ShallowCopy returns a copy of record which shares all values with the original
func ShallowCopy(record Record) Record {
	c := make(Record, len(record)+1)
	for k, v := range record {
		c[k] = v
	}
	return c
}

package service

import (
	"github.com/relabs-tech/jsonserver/core"
	"github.com/relabs-tech/jsonserver/core/document"
)

// InvalidRels checks the relations of record against doc and returns every invalid
// field with its offending value. An empty result means the record is valid.
//
// A foreign key <singular>Id which is not null must point to an existing record of
// the resource <plural>. A list valued field must be named like an existing resource
// and every listed id must exist in it; the missing ids are reported.
func InvalidRels(doc document.Document, record document.Record) map[string]interface{} {
	invalid := map[string]interface{}{}
	for field, value := range record {
		if value == nil {
			continue
		}
		if resource, ok := core.ResourceOfForeignKey(field); ok {
			list, exists := doc.List(resource)
			if !exists || findRecord(list, value) == nil {
				invalid[field] = value
			}
			continue
		}
		ids, ok := value.([]interface{})
		if !ok {
			continue
		}
		list, exists := doc.List(field)
		if !exists {
			invalid[field] = value
			continue
		}
		missing := []interface{}{}
		for _, id := range ids {
			if findRecord(list, id) == nil {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			invalid[field] = missing
		}
	}
	return invalid
}

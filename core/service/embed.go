package service

import (
	"github.com/relabs-tech/jsonserver/core"
	"github.com/relabs-tech/jsonserver/core/document"
)

// resolution tells embed what to do with the result of a strategy
type resolution int

const (
	// skip means the strategy does not apply, the next one is tried
	skip resolution = iota
	// attach means the value is attached to the record
	attach
	// leave means the strategy applies but the data it needs is missing,
	// the record is returned unchanged
	leave
)

// strategy resolves the value of related for a record of resource name
type strategy struct {
	name    string
	resolve func(doc document.Document, name string, record document.Record, related string) (interface{}, resolution)
}

// strategies are tried in this order, the first one which does not skip wins
var strategies = []strategy{
	{"singular reverse foreign key", singularReverseForeignKey},
	{"inline list", inlineList},
	{"inverse inline list", inverseInlineList},
	{"join table", joinTable},
	{"reverse foreign key", reverseForeignKey},
}

// embed returns a copy of record with the related value attached under the key related.
// The record itself is never modified.
func embed(doc document.Document, name string, record document.Record, related string) document.Record {
	for _, s := range strategies {
		value, r := s.resolve(doc, name, record, related)
		if r == skip {
			continue
		}
		if r == leave {
			return record
		}
		result := document.ShallowCopy(record)
		result[related] = value
		return result
	}
	return record
}

// embedAll applies embed once for every related resource
func embedAll(doc document.Document, name string, record document.Record, related []string) document.Record {
	for _, r := range related {
		record = embed(doc, name, record, r)
	}
	return record
}

// idEqual compares two identifiers by their canonical string form
func idEqual(a, b interface{}) bool {
	sa, ok := document.IDString(a)
	if !ok {
		return false
	}
	sb, ok := document.IDString(b)
	return ok && sa == sb
}

// records calls fn for every record of list
func records(list []interface{}, fn func(record document.Record)) {
	for _, item := range list {
		if record, ok := document.AsRecord(item); ok {
			fn(record)
		}
	}
}

// findRecord returns the record of list with the given id, or nil
func findRecord(list []interface{}, id interface{}) document.Record {
	for _, item := range list {
		if record, ok := document.AsRecord(item); ok && idEqual(record["id"], id) {
			return record
		}
	}
	return nil
}

// singularReverseForeignKey attaches the single record a foreign key points to,
// e.g. comment.postId for "post"
func singularReverseForeignKey(doc document.Document, name string, record document.Record, related string) (interface{}, resolution) {
	if !core.IsSingular(related) {
		return nil, skip
	}
	list, ok := doc.List(core.Plural(related))
	if !ok {
		return nil, leave
	}
	if found := findRecord(list, record[related+"Id"]); found != nil {
		return found, attach
	}
	return nil, attach
}

// inlineList attaches the records whose ids are listed in the record, e.g.
// contact.groups = ["1", "2"]. The order is the order of the related resource.
func inlineList(doc document.Document, name string, record document.Record, related string) (interface{}, resolution) {
	ids, ok := record[related].([]interface{})
	if !ok {
		return nil, skip
	}
	list, ok := doc.List(related)
	if !ok {
		return nil, leave
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if s, ok := document.IDString(id); ok {
			set[s] = true
		}
	}
	result := []interface{}{}
	records(list, func(r document.Record) {
		if id, ok := document.IDString(r["id"]); ok && set[id] {
			result = append(result, r)
		}
	})
	return result, attach
}

// inverseInlineList attaches the related records which list the record's id in a
// field named like the record's resource, e.g. member.clubs for clubs?_embed=members.
// The inverse list field is stripped from the attached copies. It only applies if
// there is at least one match.
func inverseInlineList(doc document.Document, name string, record document.Record, related string) (interface{}, resolution) {
	list, ok := doc.List(related)
	if !ok {
		return nil, skip
	}
	result := []interface{}{}
	records(list, func(r document.Record) {
		ids, ok := r[name].([]interface{})
		if !ok {
			return
		}
		for _, id := range ids {
			if idEqual(id, record["id"]) {
				match := document.DeepCopy(r).(map[string]interface{})
				delete(match, name)
				result = append(result, match)
				return
			}
		}
	})
	if len(result) == 0 {
		return nil, skip
	}
	return result, attach
}

// joinTable attaches the related records connected through an intermediate table named
// <name>_<related> or <related>_<name>, in the order of the join rows. Dangling
// join rows yield null entries.
func joinTable(doc document.Document, name string, record document.Record, related string) (interface{}, resolution) {
	var rows []interface{}
	found := false
	for _, table := range core.JoinTableNames(name, related) {
		if rows, found = doc.List(table); found {
			break
		}
	}
	if !found {
		return nil, skip
	}
	list, ok := doc.List(related)
	if !ok {
		return nil, leave
	}
	ownKey, relatedKey := core.ForeignKey(name), core.ForeignKey(related)
	result := []interface{}{}
	records(rows, func(row document.Record) {
		if !idEqual(row[ownKey], record["id"]) {
			return
		}
		if r := findRecord(list, row[relatedKey]); r != nil {
			result = append(result, r)
		} else {
			result = append(result, nil)
		}
	})
	return result, attach
}

// reverseForeignKey attaches the related records which point to the record, e.g.
// comment.postId for posts?_embed=comments
func reverseForeignKey(doc document.Document, name string, record document.Record, related string) (interface{}, resolution) {
	list, ok := doc.List(related)
	if !ok {
		return nil, leave
	}
	key := core.ForeignKey(name)
	result := []interface{}{}
	records(list, func(r document.Record) {
		if idEqual(r[key], record["id"]) {
			result = append(result, r)
		}
	})
	return result, attach
}

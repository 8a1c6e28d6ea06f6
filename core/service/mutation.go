package service

import (
	"context"

	"github.com/relabs-tech/jsonserver/core"
	"github.com/relabs-tech/jsonserver/core/document"
)

// next returns a shallow copy of the current document. Resources which are
// changed get new values, the current document is never modified.
func (s *Service) next() document.Document {
	next := make(document.Document, len(s.doc))
	for name, value := range s.doc {
		next[name] = value
	}
	return next
}

// Create appends a new record to the list resource name. A caller supplied id is kept
// if no other record uses it, otherwise a new id is generated.
func (s *Service) Create(ctx context.Context, name string, body document.Record) (Outcome, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	value, ok := s.doc[name]
	if !ok {
		return notFound(), nil
	}
	list, ok := value.([]interface{})
	if !ok {
		return badRequest(messageNotForObject), nil
	}

	record := document.DeepCopy(body).(map[string]interface{})
	if id, has := record["id"]; has && id != nil {
		canonical, ok := document.IDString(id)
		if !ok || canonical == "" {
			return badRequest(messageInvalidID), nil
		}
		if i, _ := document.FindByID(list, canonical); i >= 0 {
			return badRequest(messageIDExists), nil
		}
		record["id"] = canonical
	} else {
		record["id"] = document.NewUniqueID(list)
	}

	if invalid := InvalidRels(s.doc, record); len(invalid) > 0 {
		return invalidRelations(invalid), nil
	}

	nextList := make([]interface{}, len(list), len(list)+1)
	copy(nextList, list)
	next := s.next()
	next[name] = append(nextList, record)

	if err := s.commit(ctx, next, name, core.OperationCreate, record); err != nil {
		return Outcome{}, err
	}
	return created(record), nil
}

// Update replaces the object resource name with body
func (s *Service) Update(ctx context.Context, name string, body document.Record) (Outcome, error) {
	return s.updateOrPatch(ctx, name, body, false)
}

// Patch merges body into the object resource name
func (s *Service) Patch(ctx context.Context, name string, body document.Record) (Outcome, error) {
	return s.updateOrPatch(ctx, name, body, true)
}

func (s *Service) updateOrPatch(ctx context.Context, name string, body document.Record, isPatch bool) (Outcome, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	object, ok := s.doc.Object(name)
	if !ok {
		return notFound(), nil
	}
	if isPatch && len(body) == 0 {
		return badRequest(messageEmptyBody), nil
	}

	var nextObject document.Record
	if isPatch {
		nextObject = merge(object, body)
	} else {
		nextObject = document.DeepCopy(body).(map[string]interface{})
	}
	next := s.next()
	next[name] = nextObject

	if err := s.commit(ctx, next, name, core.OperationUpdate, nextObject); err != nil {
		return Outcome{}, err
	}
	return success(messageUpdated, nextObject), nil
}

// UpdateByID replaces the record with the given id. The id is kept.
func (s *Service) UpdateByID(ctx context.Context, name, id string, body document.Record) (Outcome, error) {
	return s.updateOrPatchByID(ctx, name, id, body, false)
}

// PatchByID merges body into the record with the given id. The id is kept.
func (s *Service) PatchByID(ctx context.Context, name, id string, body document.Record) (Outcome, error) {
	return s.updateOrPatchByID(ctx, name, id, body, true)
}

func (s *Service) updateOrPatchByID(ctx context.Context, name, id string, body document.Record, isPatch bool) (Outcome, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	value, ok := s.doc[name]
	if !ok {
		return notFound(), nil
	}
	list, ok := value.([]interface{})
	if !ok {
		return badRequest(messageNotForObject), nil
	}
	index, record := document.FindByID(list, id)
	if index < 0 {
		return notFound(), nil
	}
	if isPatch && len(body) == 0 {
		return badRequest(messageEmptyBody), nil
	}
	if invalid := InvalidRels(s.doc, body); len(invalid) > 0 {
		return invalidRelations(invalid), nil
	}

	var nextRecord document.Record
	if isPatch {
		nextRecord = merge(record, body)
	} else {
		nextRecord = document.DeepCopy(body).(map[string]interface{})
	}
	nextRecord["id"] = record["id"]

	nextList := make([]interface{}, len(list))
	copy(nextList, list)
	nextList[index] = nextRecord
	next := s.next()
	next[name] = nextList

	if err := s.commit(ctx, next, name, core.OperationUpdate, nextRecord); err != nil {
		return Outcome{}, err
	}
	return success(messageUpdated, nextRecord), nil
}

// merge returns a new record with the properties of patch shallowly merged over record
func merge(record, patch document.Record) document.Record {
	merged := document.ShallowCopy(record)
	for key, value := range patch {
		merged[key] = document.DeepCopy(value)
	}
	return merged
}

// DestroyByID removes the record with the given id from the list resource name and
// cleans up the references to it, strictly in this order:
//
//  1. every foreign key <singular name>Id pointing to the record is set to null,
//  2. records of the dependents resources whose foreign key is null are removed,
//  3. rows with a null foreign key are removed from the join tables of name, and
//     the id is removed from every list field called name.
func (s *Service) DestroyByID(ctx context.Context, name, id string, dependents []string) (Outcome, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	value, ok := s.doc[name]
	if !ok {
		return notFound(), nil
	}
	list, ok := value.([]interface{})
	if !ok {
		return badRequest(messageNotForObject), nil
	}
	index, record := document.FindByID(list, id)
	if index < 0 {
		return notFound(), nil
	}

	next := s.next()
	nextList := make([]interface{}, 0, len(list)-1)
	nextList = append(nextList, list[:index]...)
	next[name] = append(nextList, list[index+1:]...)

	// ids compare in canonical form, the stored id may still be numeric
	removedID := record["id"]
	nullifyForeignKeys(next, name, removedID)
	deleteDependents(next, name, dependents)
	purgeManyToMany(next, name, removedID)

	if err := s.commit(ctx, next, name, core.OperationDelete, record); err != nil {
		return Outcome{}, err
	}
	return success(messageDeleted, record), nil
}

// DestroyObject removes the object resource name from the document
func (s *Service) DestroyObject(ctx context.Context, name string) (Outcome, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	object, ok := s.doc.Object(name)
	if !ok {
		return notFound(), nil
	}
	removed := document.DeepCopy(object)
	next := s.next()
	delete(next, name)

	if err := s.commit(ctx, next, name, core.OperationDelete, removed); err != nil {
		return Outcome{}, err
	}
	return success(messageDeleted, removed), nil
}

// mapRecords replaces the list resource name in doc with the result of fn applied
// to each record. fn returns a changed copy of the record or nil to keep it as it
// is, and false to drop it. The list is only replaced if something changed.
func mapRecords(doc document.Document, name string, fn func(record document.Record) (document.Record, bool)) {
	list, ok := doc.List(name)
	if !ok {
		return
	}
	changed := false
	result := make([]interface{}, 0, len(list))
	for _, item := range list {
		record, ok := document.AsRecord(item)
		if !ok {
			result = append(result, item)
			continue
		}
		replacement, keep := fn(record)
		switch {
		case !keep:
			changed = true
		case replacement != nil:
			changed = true
			result = append(result, replacement)
		default:
			result = append(result, item)
		}
	}
	if changed {
		doc[name] = result
	}
}

// nullifyForeignKeys sets every foreign key pointing to id to null, in all
// list resources except name itself
func nullifyForeignKeys(doc document.Document, name string, id interface{}) {
	key := core.ForeignKey(name)
	for _, resource := range doc.Names() {
		if resource == name {
			continue
		}
		mapRecords(doc, resource, func(record document.Record) (document.Record, bool) {
			if !idEqual(record[key], id) {
				return nil, true
			}
			nulled := document.ShallowCopy(record)
			nulled[key] = nil
			return nulled, true
		})
	}
}

// deleteDependents removes the records of the dependents resources whose foreign
// key to name is null
func deleteDependents(doc document.Document, name string, dependents []string) {
	key := core.ForeignKey(name)
	for _, resource := range dependents {
		if resource == name {
			continue
		}
		mapRecords(doc, resource, func(record document.Record) (document.Record, bool) {
			return nil, !hasNull(record, key)
		})
	}
}

// purgeManyToMany removes join table rows of name with a null foreign key, and
// removes id from all list fields called name in all other resources
func purgeManyToMany(doc document.Document, name string, id interface{}) {
	key := core.ForeignKey(name)
	for _, resource := range doc.Names() {
		if core.IsJoinTableOf(resource, name) {
			mapRecords(doc, resource, func(record document.Record) (document.Record, bool) {
				return nil, !hasNull(record, key)
			})
			continue
		}
		mapRecords(doc, resource, func(record document.Record) (document.Record, bool) {
			ids, ok := record[name].([]interface{})
			if !ok {
				return nil, true
			}
			kept := make([]interface{}, 0, len(ids))
			for _, listed := range ids {
				if !idEqual(listed, id) {
					kept = append(kept, listed)
				}
			}
			if len(kept) == len(ids) {
				return nil, true
			}
			stripped := document.ShallowCopy(record)
			stripped[name] = kept
			return stripped, true
		})
	}
}

// hasNull returns true if record has the property key and it is null
func hasNull(record document.Record, key string) bool {
	value, has := record[key]
	return has && value == nil
}

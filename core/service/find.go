package service

import (
	"net/http"

	"github.com/relabs-tech/jsonserver/core/document"
)

// FindByID returns the record with the given id of the list resource name, with the
// requested related resources embedded.
func (s *Service) FindByID(name, id string, query Query) Outcome {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	list, ok := s.doc.List(name)
	if !ok {
		return notFound()
	}
	record := findRecord(list, id)
	if record == nil {
		return notFound()
	}
	return success(messageFound, embedAll(s.doc, name, record, query.Embed))
}

// Find returns the resource name. For list resources the query embeds related
// resources, filters, sorts and finally slices or paginates the records.
//
// Slicing takes the first of these that applies: _start and _end, _start with
// _limit (an absent limit yields an empty slice), _limit alone, _page. A page
// request always yields a paginated outcome.
func (s *Service) Find(name string, query Query) Outcome {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, ok := s.doc[name]
	if !ok {
		return notFound()
	}
	list, ok := value.([]interface{})
	if !ok || len(list) == 0 {
		return success(messageSuccess, value)
	}

	result := make([]interface{}, 0, len(list))
	for _, item := range list {
		record, ok := document.AsRecord(item)
		if !ok {
			continue
		}
		if len(query.Embed) > 0 {
			record = embedAll(s.doc, name, record, query.Embed)
		}
		if !matchesAll(record, query.Conditions) {
			continue
		}
		result = append(result, record)
	}

	sortRecords(result, query.Sort)

	switch {
	case query.Start != nil && query.End != nil:
		return success(messageSuccess, slice(result, *query.Start, *query.End))
	case query.Start != nil:
		limit := 0
		if query.Limit != nil {
			limit = *query.Limit
		}
		return success(messageSuccess, slice(result, *query.Start, *query.Start+limit))
	case query.Limit != nil:
		return success(messageSuccess, slice(result, 0, *query.Limit))
	case query.Page != nil:
		return paginate(result, *query.Page, query.PerPage)
	}
	return success(messageSuccess, result)
}

// paginate returns one page of records. The page is clamped into the valid range.
func paginate(records []interface{}, page int, perPage *int) Outcome {
	size := defaultPerPage
	if perPage != nil && *perPage > 0 {
		size = *perPage
	}
	items := len(records)
	pages := (items + size - 1) / size

	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}

	p := &Pagination{First: 1, Last: pages, Pages: pages, Items: items}
	if page > 1 {
		prev := page - 1
		p.Prev = &prev
	}
	if page < pages {
		next := page + 1
		p.Next = &next
	}
	start := (page - 1) * size
	return Outcome{
		Code:       http.StatusOK,
		Message:    messageSuccess,
		Pagination: p,
		Data:       slice(records, start, start+size),
	}
}

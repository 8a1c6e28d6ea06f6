/*
Package service implements the query and mutation engine on top of a JSON document.

Every resource of the document is either a list of records or a single object.
Relationships between resources are inferred from naming conventions only:
foreign keys named <singular>Id, join tables named <a>_<b>, and fields named like
a resource which hold a list of ids.

The Service owns the document. Reads share a read lock. Mutations and reloads take
the write lock for their whole read-modify-persist span. A mutation never modifies
the current document in place: it builds the next document from new slices and
records, saves it, and swaps it in only after the save succeeded. Values handed out
by read operations therefore stay valid and unchanged after the lock is released.
*/
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/jsonserver/core"
	"github.com/relabs-tech/jsonserver/core/document"
	"github.com/relabs-tech/jsonserver/core/logger"
	"github.com/relabs-tech/jsonserver/core/storage"
)

// UsersResource is the resource holding the users for authentication
const UsersResource = "users"

// Service is the query and mutation engine for one document
type Service struct {
	mutex    sync.RWMutex
	doc      document.Document
	driver   storage.Driver
	notifier core.Notifier
}

// Builder is a builder helper for the Service
type Builder struct {
	// Driver loads and saves the document. This is mandatory.
	Driver storage.Driver
	// Notifier receives a notification after every persisted mutation. This is optional.
	Notifier core.Notifier
}

// New loads the document from the driver and returns a new service for it.
// Records without an id get one, numeric ids become strings. If that changed the
// document, it is saved right away so that generated ids are stable.
func New(ctx context.Context, bb *Builder) (*Service, error) {
	if bb.Driver == nil {
		return nil, errors.New("driver is missing")
	}
	s := &Service{
		driver:   bb.Driver,
		notifier: bb.Notifier,
	}
	doc, err := bb.Driver.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot load document: %w", err)
	}
	if err := s.normalize(ctx, doc); err != nil {
		return nil, err
	}
	s.doc = doc
	return s, nil
}

func (s *Service) normalize(ctx context.Context, doc document.Document) error {
	changed := document.Normalize(doc)
	if changed == 0 {
		return nil
	}
	logger.FromContext(ctx).Infof("normalized the id of %d records", changed)
	if err := s.driver.Save(ctx, doc); err != nil {
		return fmt.Errorf("cannot save normalized document: %w", err)
	}
	return nil
}

// Reload replaces the document with the stored one. It returns false if the stored document
// did not change. On error the current document stays in place.
func (s *Service) Reload(ctx context.Context) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	doc, err := s.driver.Load(ctx)
	if errors.Is(err, storage.ErrUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cannot reload document: %w", err)
	}
	if err := s.normalize(ctx, doc); err != nil {
		return false, err
	}
	s.doc = doc
	return true, nil
}

// Resources returns the names of all resources in alphabetical order
func (s *Service) Resources() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.doc.Names()
}

// Snapshot returns the current document. The result must not be modified.
func (s *Service) Snapshot() document.Document {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.doc
}

// ResourceStatistics describes one resource of the document
type ResourceStatistics struct {
	Resource string `json:"resource"`
	// Kind is "list" or "object"
	Kind string `json:"kind"`
	// Count is the number of records of a list, or 1 for an object
	Count int `json:"count"`
}

// Statistics returns statistics for every resource in alphabetical order
func (s *Service) Statistics() []ResourceStatistics {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	stats := []ResourceStatistics{}
	for _, name := range s.doc.Names() {
		if list, ok := s.doc.List(name); ok {
			stats = append(stats, ResourceStatistics{Resource: name, Kind: "list", Count: len(list)})
		} else {
			stats = append(stats, ResourceStatistics{Resource: name, Kind: "object", Count: 1})
		}
	}
	return stats
}

// Login returns the first user whose username and password match
func (s *Service) Login(username, password string) (document.Record, bool) {
	return s.findUser(func(user document.Record) bool {
		return document.LooseEqual(user["username"], username) && document.LooseEqual(user["password"], password)
	})
}

// UserByToken returns the first user whose stored token equals token
func (s *Service) UserByToken(token string) (document.Record, bool) {
	if token == "" {
		return nil, false
	}
	return s.findUser(func(user document.Record) bool {
		t, ok := user["token"].(string)
		return ok && t == token
	})
}

// UserByID returns the user with the given id
func (s *Service) UserByID(id string) (document.Record, bool) {
	return s.findUser(func(user document.Record) bool {
		return idEqual(user["id"], id)
	})
}

func (s *Service) findUser(match func(user document.Record) bool) (document.Record, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	users, ok := s.doc.List(UsersResource)
	if !ok {
		return nil, false
	}
	for _, item := range users {
		if user, ok := document.AsRecord(item); ok && match(user) {
			return user, true
		}
	}
	return nil, false
}

// commit saves next and makes it the current document, then notifies about the change.
// Must be called with the write lock held.
func (s *Service) commit(ctx context.Context, next document.Document, resource string, operation core.Operation, payload interface{}) error {
	if err := s.driver.Save(ctx, next); err != nil {
		return fmt.Errorf("cannot save document: %w", err)
	}
	s.doc = next
	if s.notifier != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Errorf("Error 4730: cannot marshal notification for %s", resource)
			return nil
		}
		s.notifier.Notify(ctx, resource, operation, data)
	}
	return nil
}

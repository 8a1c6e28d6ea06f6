package storage

import (
	"context"
	"sync"

	"github.com/relabs-tech/jsonserver/core/document"
)

// Memory keeps the document in memory. Every Load returns a deep copy of the
// last saved document. Useful for tests and for serving a document read-only.
type Memory struct {
	mutex sync.Mutex
	doc   document.Document
	saves int
	fail  error
}

// NewMemory returns a new Memory driver holding a copy of doc
func NewMemory(doc document.Document) *Memory {
	if doc == nil {
		doc = document.Document{}
	}
	return &Memory{doc: doc.Clone()}
}

// Load implements Driver
func (m *Memory) Load(ctx context.Context) (document.Document, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.doc.Clone(), nil
}

// Save implements Driver
func (m *Memory) Save(ctx context.Context, doc document.Document) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.doc = doc.Clone()
	m.saves++
	return nil
}

// Saves returns how many times the document was saved
func (m *Memory) Saves() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.saves
}

// FailWith makes every following Save fail with err. A nil err restores normal operation.
func (m *Memory) FailWith(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fail = err
}

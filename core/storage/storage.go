// Package storage reads and writes the complete document.
//
// A Driver never persists partial state: Save always writes the whole document
// and Load always returns a complete, validated document.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/jsonserver/core/document"
	"github.com/relabs-tech/jsonserver/core/schema"
)

// Driver defines the interface for the document storage
type Driver interface {
	// Load reads the whole document. It returns ErrUnchanged if the stored document
	// is identical to the one most recently loaded or saved by this driver.
	Load(ctx context.Context) (document.Document, error)
	// Save durably writes the whole document
	Save(ctx context.Context, doc document.Document) error
}

var (
	// ErrUnchanged is returned by Load if the stored document did not change since
	// the last Load or Save of the same driver
	ErrUnchanged = errors.New("document unchanged")
	// ErrMalformed is returned by Load if the stored document cannot be parsed or has
	// the wrong shape
	ErrMalformed = errors.New("malformed document")
	// ErrNotFound is returned by Load if there is no stored document
	ErrNotFound = errors.New("document not found")
)

// DriverType represents the different types of storage drivers
type DriverType string

// DriverTypeLocal stores the document in a file on the local filesystem
const DriverTypeLocal DriverType = "local"

// DriverTypeAWSS3 stores the document as an object in AWS S3
const DriverTypeAWSS3 DriverType = "s3"

// DriverTypePostgres stores the document as a single row in a postgres table
const DriverTypePostgres DriverType = "postgres"

// DriverTypeMemory keeps the document in memory only
const DriverTypeMemory DriverType = "memory"

// Decode parses and validates a stored document. An empty input is an empty document.
func Decode(data []byte) (document.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return document.Document{}, nil
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := schema.ValidateDocument(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	doc, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: top level value is not an object", ErrMalformed)
	}
	return document.Document(doc), nil
}

// Encode serializes a document in its stored, indented form
func Encode(doc document.Document) ([]byte, error) {
	if doc == nil {
		doc = document.Document{}
	}
	data, err := json.MarshalIndentWithOption(doc, "", "  ", json.DisableHTMLEscape())
	if err != nil {
		return nil, fmt.Errorf("cannot encode document: %w", err)
	}
	return append(data, '\n'), nil
}

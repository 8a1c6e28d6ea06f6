package schema

import (
	"embed"
	"io/fs"
	"sync"
)

// DocumentSchemaID is the schema every served document must satisfy: an object mapping
// resource names to either a list of records or a single object.
const DocumentSchemaID = "https://jsonserver.dev/schemas/document.json"

//go:embed schemas
var schemasFS embed.FS

var (
	documentValidator     *Validator
	documentValidatorErr  error
	documentValidatorOnce sync.Once
)

// DocumentValidator returns the validator for the built-in document schemas
func DocumentValidator() (*Validator, error) {
	documentValidatorOnce.Do(func() {
		sub, err := fs.Sub(schemasFS, "schemas")
		if err != nil {
			documentValidatorErr = err
			return
		}
		documentValidator, documentValidatorErr = NewValidatorFromFS(sub)
	})
	return documentValidator, documentValidatorErr
}

// ValidateDocument validates the shape of a decoded document
func ValidateDocument(doc interface{}) error {
	v, err := DocumentValidator()
	if err != nil {
		return err
	}
	return v.ValidateValue(doc, DocumentSchemaID)
}

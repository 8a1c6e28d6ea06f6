package document

import (
	"crypto/rand"
	"encoding/hex"
)

// idBytes is the number of random bytes of a generated identifier
const idBytes = 4

// NewID returns a new random identifier, hex encoded
func NewID() string {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// NewUniqueID returns a new random identifier which is not yet used by any record in list
func NewUniqueID(list []interface{}) string {
	for {
		id := NewID()
		if i, _ := FindByID(list, id); i < 0 {
			return id
		}
	}
}

// Normalize ensures that every record of every list resource has a string id.
// Numeric ids are converted to their decimal string form, missing or null ids
// are generated. It returns the number of records which were changed. Normalize
// is idempotent.
func Normalize(doc Document) int {
	changed := 0
	for _, value := range doc {
		list, ok := value.([]interface{})
		if !ok {
			continue
		}
		for _, item := range list {
			record, ok := AsRecord(item)
			if !ok {
				continue
			}
			switch id := record["id"].(type) {
			case string:
				if id != "" {
					continue
				}
				record["id"] = NewUniqueID(list)
			case nil:
				record["id"] = NewUniqueID(list)
			default:
				if s, ok := IDString(id); ok {
					record["id"] = s
				} else {
					record["id"] = NewUniqueID(list)
				}
			}
			changed++
		}
	}
	return changed
}

package mapping

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// RecordIDLength is the width of identities issued by the persistence store.
const RecordIDLength = 18

// ProductKey returns the correlation key of a product across the catalog and
// persisted mappings. Names are compared exactly, case included.
func ProductKey(name string) string {
	return name
}

// IsRecordID reports whether id looks like a persisted record identity:
// exactly RecordIDLength characters.
func IsRecordID(id string) bool {
	return utf8.RuneCountInString(id) == RecordIDLength
}

// ValidOrNull returns id when it is a persisted record identity and nil
// otherwise. A nil identity asks the store to create a new record.
func ValidOrNull(id string) *string {
	if !IsRecordID(id) {
		return nil
	}
	value := id
	return &value
}

// NewRecordID issues an identity of RecordIDLength characters made of a three
// character object prefix and random hex.
func NewRecordID(prefix string) string {
	prefix = (prefix + "000")[:3]
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + raw[:RecordIDLength-3]
}

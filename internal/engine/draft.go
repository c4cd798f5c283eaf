package engine

import (
	"github.com/google/uuid"
)

// DraftIDGenerator produces placeholder identifiers for draft rows.
// Implemented by UUIDv7Generator (production) and
// testutil.SequenceGenerator (tests).
type DraftIDGenerator interface {
	Generate() string
}

// DraftIDPrefix marks placeholder identifiers so they can never collide
// with store-assigned ones.
const DraftIDPrefix = "new-"

// UUIDv7Generator generates time-sortable draft identifiers of the form
// "new-<uuidv7>".
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new placeholder identifier.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return DraftIDPrefix + uuid.Must(uuid.NewV7()).String()
}

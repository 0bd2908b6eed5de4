package id

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as DynamoDB partition keys and Mongo _ids.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewOpaque returns a random UUIDv4 used for identifiers that must not reveal
// creation order or the identity they point to.
func NewOpaque() string {
	return uuid.NewString()
}

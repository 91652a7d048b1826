package inputs

import (
	"context"
	"errors"

	uuid "github.com/satori/go.uuid"
)

var (
	// ErrIDDecodeNotUUID - an error that tells caller the id is not a uuid
	ErrIDDecodeNotUUID = errors.New("failed to decode id: id is not a uuid")
	// ErrIDDecodeEmpty - an error that tells caller the id is empty
	ErrIDDecodeEmpty = errors.New("failed to decode id: id cannot be empty")
)

// ID - a generic ID type that can be used for common id based things
type ID struct {
	uuid *uuid.UUID
	raw  string
}

// UUID - return the UUID representation of the ID
func (id *ID) UUID() *uuid.UUID {
	return id.uuid
}

// String - return the string representation of the ID
func (id *ID) String() string {
	return id.raw
}

// Validate - take raw []byte input and validate
func (id *ID) Validate(ctx context.Context) error {
	// no op
	return nil
}

// Decode - take raw []byte input and decode into the ID
func (id *ID) Decode(ctx context.Context, input []byte) error {
	if len(input) == 0 {
		return ErrIDDecodeEmpty
	}
	id.raw = string(input)

	u, err := uuid.FromString(id.raw)
	if err != nil {
		return ErrIDDecodeNotUUID
	}
	id.uuid = &u
	return nil
}

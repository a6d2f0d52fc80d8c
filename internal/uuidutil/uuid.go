package uuidutil

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when an identifier is not a UUID.
var ErrInvalidID = errors.New("invalid id")

// New generates a new random UUID v4
func New() uuid.UUID {
	return uuid.New()
}

// Parse parses s, wrapping failures in ErrInvalidID.
func Parse(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// Short returns the first eight hex digits of id, enough to tell runs
// apart in tables and log lines.
func Short(id uuid.UUID) string {
	return id.String()[:8]
}

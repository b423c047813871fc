package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// ControlID is the stable identifier (UUID) of a catalog control
type ControlID string

// NewControlID generates a new random ControlID
func NewControlID() ControlID {
	return ControlID(uuid.New().String())
}

// Validate checks if the ControlID is a well-formed UUID
func (id ControlID) Validate() error {
	if id == "" {
		return goerr.New("control ID cannot be empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return goerr.Wrap(err, "control ID must be a UUID", goerr.V("id", id))
	}
	return nil
}

// Canonical returns the lowercase hyphenated form of a UUID control ID.
// Values that do not parse as a UUID are returned unchanged.
func (id ControlID) Canonical() ControlID {
	parsed, err := uuid.Parse(string(id))
	if err != nil {
		return id
	}
	return ControlID(parsed.String())
}

// String returns the string representation of ControlID
func (id ControlID) String() string {
	return string(id)
}

package types

import "github.com/m-mizutani/goerr/v2"

// ImplementationStatus represents how far a framework control has been implemented
type ImplementationStatus string

const (
	ImplementationStatusNotImplemented       ImplementationStatus = "not_implemented"
	ImplementationStatusPartiallyImplemented ImplementationStatus = "partially_implemented"
	ImplementationStatusImplemented          ImplementationStatus = "implemented"
	ImplementationStatusNotApplicable        ImplementationStatus = "not_applicable"
)

// AllImplementationStatuses returns all valid implementation statuses
func AllImplementationStatuses() []ImplementationStatus {
	return []ImplementationStatus{
		ImplementationStatusNotImplemented,
		ImplementationStatusPartiallyImplemented,
		ImplementationStatusImplemented,
		ImplementationStatusNotApplicable,
	}
}

// IsValid checks if the implementation status is valid
func (s ImplementationStatus) IsValid() bool {
	switch s {
	case ImplementationStatusNotImplemented,
		ImplementationStatusPartiallyImplemented,
		ImplementationStatusImplemented,
		ImplementationStatusNotApplicable:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as not implemented
func (s ImplementationStatus) Normalize() ImplementationStatus {
	if s == "" {
		return ImplementationStatusNotImplemented
	}
	return s
}

// String returns the string representation of the implementation status
func (s ImplementationStatus) String() string {
	return string(s)
}

// ParseImplementationStatus parses a string into an ImplementationStatus
func ParseImplementationStatus(s string) (ImplementationStatus, error) {
	status := ImplementationStatus(s)
	if !status.IsValid() {
		return "", goerr.New("invalid implementation status", goerr.V("status", s))
	}
	return status, nil
}

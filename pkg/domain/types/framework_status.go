package types

import "github.com/m-mizutani/goerr/v2"

// FrameworkStatus represents the lifecycle status of a framework
type FrameworkStatus string

const (
	FrameworkStatusDraft      FrameworkStatus = "draft"
	FrameworkStatusActive     FrameworkStatus = "active"
	FrameworkStatusInProgress FrameworkStatus = "in_progress"
	FrameworkStatusCompleted  FrameworkStatus = "completed"
	FrameworkStatusArchived   FrameworkStatus = "archived"
)

// AllFrameworkStatuses returns all valid framework statuses
func AllFrameworkStatuses() []FrameworkStatus {
	return []FrameworkStatus{
		FrameworkStatusDraft,
		FrameworkStatusActive,
		FrameworkStatusInProgress,
		FrameworkStatusCompleted,
		FrameworkStatusArchived,
	}
}

// IsValid checks if the framework status is valid
func (s FrameworkStatus) IsValid() bool {
	switch s {
	case FrameworkStatusDraft,
		FrameworkStatusActive,
		FrameworkStatusInProgress,
		FrameworkStatusCompleted,
		FrameworkStatusArchived:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as FrameworkStatusDraft
func (s FrameworkStatus) Normalize() FrameworkStatus {
	if s == "" {
		return FrameworkStatusDraft
	}
	return s
}

// String returns the string representation of the framework status
func (s FrameworkStatus) String() string {
	return string(s)
}

// ParseFrameworkStatus parses a string into a FrameworkStatus
func ParseFrameworkStatus(s string) (FrameworkStatus, error) {
	status := FrameworkStatus(s)
	if !status.IsValid() {
		return "", goerr.New("invalid framework status", goerr.V("status", s))
	}
	return status, nil
}

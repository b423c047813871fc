package types

import "github.com/m-mizutani/goerr/v2"

// FrameworkType represents the kind of a compliance framework
type FrameworkType string

const (
	FrameworkTypeSecurity   FrameworkType = "security"
	FrameworkTypePrivacy    FrameworkType = "privacy"
	FrameworkTypeCompliance FrameworkType = "compliance"
	FrameworkTypeRisk       FrameworkType = "risk"
	FrameworkTypeCustom     FrameworkType = "custom"
)

// AllFrameworkTypes returns all valid framework types
func AllFrameworkTypes() []FrameworkType {
	return []FrameworkType{
		FrameworkTypeSecurity,
		FrameworkTypePrivacy,
		FrameworkTypeCompliance,
		FrameworkTypeRisk,
		FrameworkTypeCustom,
	}
}

// IsValid checks if the framework type is valid
func (t FrameworkType) IsValid() bool {
	switch t {
	case FrameworkTypeSecurity,
		FrameworkTypePrivacy,
		FrameworkTypeCompliance,
		FrameworkTypeRisk,
		FrameworkTypeCustom:
		return true
	default:
		return false
	}
}

// String returns the string representation of the framework type
func (t FrameworkType) String() string {
	return string(t)
}

// ParseFrameworkType parses a string into a FrameworkType
func ParseFrameworkType(s string) (FrameworkType, error) {
	t := FrameworkType(s)
	if !t.IsValid() {
		return "", goerr.New("invalid framework type", goerr.V("type", s))
	}
	return t, nil
}

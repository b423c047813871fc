package types

import "github.com/m-mizutani/goerr/v2"

// RiskLevel is the five-step scale used for both likelihood and impact
type RiskLevel string

const (
	RiskLevelVeryLow  RiskLevel = "very_low"
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// AllRiskLevels returns all valid risk levels, lowest first
func AllRiskLevels() []RiskLevel {
	return []RiskLevel{
		RiskLevelVeryLow,
		RiskLevelLow,
		RiskLevelMedium,
		RiskLevelHigh,
		RiskLevelCritical,
	}
}

// IsValid checks if the risk level is valid
func (l RiskLevel) IsValid() bool {
	return l.Score() > 0
}

// Score maps the level onto 1..5. Invalid levels score 0.
func (l RiskLevel) Score() int {
	switch l {
	case RiskLevelVeryLow:
		return 1
	case RiskLevelLow:
		return 2
	case RiskLevelMedium:
		return 3
	case RiskLevelHigh:
		return 4
	case RiskLevelCritical:
		return 5
	default:
		return 0
	}
}

// Normalize returns the level, treating empty as RiskLevelMedium
func (l RiskLevel) Normalize() RiskLevel {
	if l == "" {
		return RiskLevelMedium
	}
	return l
}

// String returns the string representation of the risk level
func (l RiskLevel) String() string {
	return string(l)
}

// ParseRiskLevel parses a string into a RiskLevel
func ParseRiskLevel(s string) (RiskLevel, error) {
	l := RiskLevel(s)
	if !l.IsValid() {
		return "", goerr.New("invalid risk level", goerr.V("level", s))
	}
	return l, nil
}

package types

import "github.com/m-mizutani/goerr/v2"

// Treatment represents how an organization chose to handle a risk
type Treatment string

const (
	TreatmentAccept   Treatment = "Accept"
	TreatmentMitigate Treatment = "Mitigate"
	TreatmentTransfer Treatment = "Transfer"
	TreatmentAvoid    Treatment = "Avoid"
)

// AllTreatments returns all valid treatments
func AllTreatments() []Treatment {
	return []Treatment{
		TreatmentAccept,
		TreatmentMitigate,
		TreatmentTransfer,
		TreatmentAvoid,
	}
}

// IsValid checks if the treatment is valid
func (t Treatment) IsValid() bool {
	switch t {
	case TreatmentAccept,
		TreatmentMitigate,
		TreatmentTransfer,
		TreatmentAvoid:
		return true
	default:
		return false
	}
}

// Normalize returns the treatment, treating empty as TreatmentMitigate
func (t Treatment) Normalize() Treatment {
	if t == "" {
		return TreatmentMitigate
	}
	return t
}

// String returns the string representation of the treatment
func (t Treatment) String() string {
	return string(t)
}

// ParseTreatment parses a string into a Treatment
func ParseTreatment(s string) (Treatment, error) {
	t := Treatment(s)
	if !t.IsValid() {
		return "", goerr.New("invalid treatment", goerr.V("treatment", s))
	}
	return t, nil
}

package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// ErrValidation is matched by errors.Is for any ValidationErrors value
var ErrValidation = goerr.New("validation failed")

// FieldError describes a single invalid input field
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors collects field-level problems found in one input
type ValidationErrors []FieldError

// Add appends a field error
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// ErrOrNil returns nil when no field errors were collected
func (v ValidationErrors) ErrOrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Is reports ErrValidation as a match
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

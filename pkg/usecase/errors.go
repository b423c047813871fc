package usecase

import (
	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
	"github.com/secmon-lab/grcops/pkg/domain/model"
)

// Sentinel errors for use case layer. Callers match them with errors.Is.
var (
	ErrNotFound     = interfaces.ErrNotFound
	ErrDuplicateKey = interfaces.ErrDuplicateKey
	ErrForbidden    = interfaces.ErrForbidden
	ErrValidation   = model.ErrValidation
)

// Context keys for error values
const (
	FrameworkIDKey        = "framework_id"
	FrameworkControlIDKey = "framework_control_id"
	ControlIDKey          = "control_id"
	RiskIDKey             = "risk_id"
)

package model

import (
	"time"

	"github.com/secmon-lab/grcops/pkg/domain/types"
)

// RiskControl represents the many-to-many relationship between Risk and catalog Control
type RiskControl struct {
	RiskID    int64
	ControlID types.ControlID
	CreatedAt time.Time
	CreatedBy string
	Notes     string
}

package interfaces

import "context"

// Repository defines the interface for data persistence
type Repository interface {
	Framework() FrameworkRepository
	FrameworkControl() FrameworkControlRepository
	Control() ControlRepository
	Risk() RiskRepository
	RiskControl() RiskControlRepository

	// Ping checks connectivity to the backing store
	Ping(ctx context.Context) error
	Close() error
}

package memory

import "github.com/secmon-lab/grcops/pkg/domain/interfaces"

var (
	ErrNotFound     = interfaces.ErrNotFound
	ErrDuplicateKey = interfaces.ErrDuplicateKey
)

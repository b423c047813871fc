package interfaces

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors shared by repositories, authorizers and use cases
var (
	ErrNotFound     = goerr.New("not found")
	ErrDuplicateKey = goerr.New("duplicate key")
	ErrForbidden    = goerr.New("forbidden")
)

package usecase

import (
	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
)

type UseCases struct {
	repo       interfaces.Repository
	authorizer interfaces.Authorizer

	Catalog          *CatalogUseCase
	Framework        *FrameworkUseCase
	FrameworkControl *FrameworkControlUseCase
	Risk             *RiskUseCase
}

type Option func(*UseCases)

// WithAuthorizer replaces the allow-all policy
func WithAuthorizer(authorizer interfaces.Authorizer) Option {
	return func(uc *UseCases) {
		uc.authorizer = authorizer
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:       repo,
		authorizer: &AllowAllAuthorizer{},
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Catalog = NewCatalogUseCase(repo)
	uc.Framework = NewFrameworkUseCase(repo)
	uc.FrameworkControl = NewFrameworkControlUseCase(repo)
	uc.Risk = NewRiskUseCase(repo)

	return uc
}

// Authorizer returns the configured authorization policy
func (uc *UseCases) Authorizer() interfaces.Authorizer {
	return uc.authorizer
}

// Repository exposes the backing repository for health checks
func (uc *UseCases) Repository() interfaces.Repository {
	return uc.repo
}

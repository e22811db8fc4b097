package source

import (
	"context"

	"mcmm/internal/domain"
)

// Platform resolves source IDs on one content platform
type Platform interface {
	// ID returns the platform this client serves
	ID() domain.Platform

	// Resolve returns the best artifact for id that matches every filter set.
	// Pinned IDs ignore filters. Failures wrap one of the domain resolution
	// errors (ErrNoCompatibleVersion, ErrNotFound, ErrDistributionDenied,
	// ErrRateLimited) or are treated as network errors.
	Resolve(ctx context.Context, id domain.SourceID, filters []*domain.Filters) (*domain.DownloadData, error)
}

// Resolver is implemented by anything that can resolve a source ID on any platform
type Resolver interface {
	Resolve(ctx context.Context, id domain.SourceID, filters []*domain.Filters) (*domain.DownloadData, error)
}

package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mcmm/internal/domain"
)

// Registry holds one Platform per platform kind and dispatches resolution to it
type Registry struct {
	mu        sync.RWMutex
	platforms map[domain.Platform]Platform
}

// NewRegistry creates a new platform registry
func NewRegistry(platforms ...Platform) *Registry {
	r := &Registry{
		platforms: make(map[domain.Platform]Platform),
	}
	for _, p := range platforms {
		r.Register(p)
	}
	return r
}

// Register adds a platform, replacing any previous client for the same kind
func (r *Registry) Register(p Platform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.platforms[p.ID()] = p
}

// Get retrieves the client for a platform
func (r *Registry) Get(id domain.Platform) (Platform, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.platforms[id]
	if !ok {
		return nil, fmt.Errorf("platform not registered: %s", id)
	}
	return p, nil
}

// List returns all registered platforms ordered by kind
func (r *Registry) List() []Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]Platform, 0, len(r.platforms))
	for _, p := range r.platforms {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i].ID() < platforms[j].ID() })
	return platforms
}

// Resolve dispatches to the platform named by id
func (r *Registry) Resolve(ctx context.Context, id domain.SourceID, filters []*domain.Filters) (*domain.DownloadData, error) {
	p, err := r.Get(id.Platform)
	if err != nil {
		return nil, err
	}
	return p.Resolve(ctx, id, filters)
}

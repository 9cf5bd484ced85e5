// Package resolver turns provider identifiers such as Zenodo DOIs into
// records listing downloadable files and their checksums.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/model"
)

//go:generate mockgen -destination=../pipeline/mocks/resolver.go -package=mocks . Resolver

// Resolver resolves a provider identifier into a record.
type Resolver interface {
	// Provider returns the provider name, e.g. "zenodo". It prefixes the
	// record metadata key.
	Provider() string
	// Resolve looks up the record for id.
	Resolve(ctx context.Context, id string) (*model.Record, error)
}

// Registry holds resolvers by provider name.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewRegistry creates a registry with the given resolvers.
func NewRegistry(resolvers ...Resolver) *Registry {
	r := &Registry{resolvers: make(map[string]Resolver)}
	for _, res := range resolvers {
		r.Register(res)
	}
	return r
}

// Register adds or replaces the resolver for its provider.
func (r *Registry) Register(res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[res.Provider()] = res
}

// Get returns the resolver for provider.
func (r *Registry) Get(provider string) (Resolver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resolvers[provider]
	if !ok {
		return nil, fmt.Errorf("%s: %w", provider, onboarderrors.ErrUnknownProvider)
	}
	return res, nil
}

// Providers lists the registered provider names.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resolvers))
	for name := range r.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

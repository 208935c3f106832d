package provider

import (
	"context"
	"github.com/langowen/ratesync/internal/entities"
	"sort"
	"time"
)

// DefaultTimeout bounds a single FetchRates request.
const DefaultTimeout = 10 * time.Second

// Provider fetches rates from exactly one external source.
type Provider interface {
	// Name is used in logs and in SyncResult.ProvidersUsed.
	Name() string
	// IsEnabled depends on configuration only and never performs I/O.
	IsEnabled() bool
	// FetchRates returns normalized rates or an *entities.FetchError.
	// A disabled provider returns an empty slice without network access.
	FetchRates(ctx context.Context) ([]entities.RateData, error)
}

type Registration struct {
	Priority int
	Provider Provider
}

// Registry is the priority-ordered provider list, fixed at construction.
type Registry struct {
	providers []Provider
}

// NewRegistry orders registrations by descending priority, keeping
// registration order for equal priorities.
func NewRegistry(registrations ...Registration) *Registry {
	sorted := make([]Registration, 0, len(registrations))
	for _, r := range registrations {
		if r.Provider != nil {
			sorted = append(sorted, r)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	providers := make([]Provider, len(sorted))
	for i, r := range sorted {
		providers[i] = r.Provider
	}

	return &Registry{providers: providers}
}

func (r *Registry) Providers() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

func (r *Registry) Len() int {
	return len(r.providers)
}

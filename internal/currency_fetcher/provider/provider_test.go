package provider_test

import (
	"context"
	"testing"

	"github.com/langowen/ratesync/internal/currency_fetcher/provider"
	"github.com/langowen/ratesync/internal/entities"
	"github.com/stretchr/testify/require"
)

type namedProvider string

func (n namedProvider) Name() string    { return string(n) }
func (n namedProvider) IsEnabled() bool { return true }
func (n namedProvider) FetchRates(context.Context) ([]entities.RateData, error) {
	return nil, nil
}

func names(ps []provider.Provider) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name()
	}
	return out
}

func TestNewRegistry_OrdersByDescendingPriority(t *testing.T) {
	t.Parallel()

	// Arrange: register out of priority order.
	reg := provider.NewRegistry(
		provider.Registration{Priority: 1, Provider: namedProvider("low")},
		provider.Registration{Priority: 10, Provider: namedProvider("high")},
		provider.Registration{Priority: 5, Provider: namedProvider("mid")},
	)

	// Assert
	require.Equal(t, []string{"high", "mid", "low"}, names(reg.Providers()))
	require.Equal(t, 3, reg.Len())
}

func TestNewRegistry_EqualPrioritiesKeepRegistrationOrder(t *testing.T) {
	t.Parallel()

	reg := provider.NewRegistry(
		provider.Registration{Priority: 0, Provider: namedProvider("a")},
		provider.Registration{Priority: 7, Provider: namedProvider("b")},
		provider.Registration{Priority: 0, Provider: namedProvider("c")},
		provider.Registration{Priority: 0, Provider: namedProvider("d")},
	)

	require.Equal(t, []string{"b", "a", "c", "d"}, names(reg.Providers()))
}

func TestRegistry_ProvidersReturnsCopy(t *testing.T) {
	t.Parallel()

	reg := provider.NewRegistry(
		provider.Registration{Priority: 1, Provider: namedProvider("a")},
		provider.Registration{Priority: 0, Provider: nil},
	)

	ps := reg.Providers()
	ps[0] = namedProvider("mutated")

	require.Equal(t, []string{"a"}, names(reg.Providers()))
}

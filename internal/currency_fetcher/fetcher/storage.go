package fetcher

import (
	"context"
	"github.com/langowen/ratesync/internal/entities"
)

// CurrencyLookup reports the currencies known to the system.
// FindByCode returns entities.ErrNotFound for unknown codes.
type CurrencyLookup interface {
	FindByCode(ctx context.Context, code string) (*entities.Currency, error)
}

// RateStore persists one rate per ordered currency pair. Writes become
// durable on Flush.
type RateStore interface {
	// FindByPair returns entities.ErrNotFound when the pair has no rate yet.
	FindByPair(ctx context.Context, source, target string) (*entities.ExchangeRate, error)
	Create(ctx context.Context, source, target entities.Currency, ratio float64) (*entities.ExchangeRate, error)
	Update(ctx context.Context, rate *entities.ExchangeRate, ratio float64) error
	Flush(ctx context.Context) error
}

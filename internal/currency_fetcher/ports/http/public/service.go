package public

import (
	"context"
	"github.com/langowen/ratesync/internal/entities"
)

type Service interface {
	Synchronize(ctx context.Context) entities.SyncResult
	AvailableProviders() []entities.ProviderStatus
}

// ResultReader returns entities.ErrNotFound before the first run.
type ResultReader interface {
	LastResult(ctx context.Context) (*entities.SyncResult, error)
}

// RateReader serves stored rates; GetRate returns entities.ErrNotFound for an
// unknown pair.
type RateReader interface {
	ListRates(ctx context.Context) ([]entities.ExchangeRate, error)
	GetRate(ctx context.Context, source, target string) (*entities.ExchangeRate, error)
}

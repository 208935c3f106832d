package fetcher

import (
	"context"
	"github.com/langowen/ratesync/internal/entities"
	"github.com/pkg/errors"
	"log/slog"
)

// reconcile updates the rate of the pair or creates it. Pairs with a currency
// unknown to the system are skipped without error.
func (s *Synchronizer) reconcile(ctx context.Context, rd entities.RateData) (entities.ReconcileOutcome, error) {
	const op = "fetcher.reconcile"

	fail := func(err error) (entities.ReconcileOutcome, error) {
		return entities.Skipped, &entities.ReconcileError{
			Source: rd.SourceCurrency,
			Target: rd.TargetCurrency,
			Err:    errors.Wrap(err, op),
		}
	}

	source, err := s.lookup(ctx, rd.SourceCurrency)
	if err != nil {
		return fail(err)
	}
	if source == nil {
		slog.Debug("Source currency not found in system, skipping", "currency", rd.SourceCurrency)
		return entities.Skipped, nil
	}

	target, err := s.lookup(ctx, rd.TargetCurrency)
	if err != nil {
		return fail(err)
	}
	if target == nil {
		slog.Debug("Target currency not found in system, skipping", "currency", rd.TargetCurrency)
		return entities.Skipped, nil
	}

	// TODO: decide whether non-positive ratios should be rejected; they are stored as-is for now.
	if rd.Ratio <= 0 {
		slog.Warn("Storing non-positive ratio", "source", rd.SourceCurrency, "target", rd.TargetCurrency, "ratio", rd.Ratio)
	}

	rate, err := s.rates.FindByPair(ctx, rd.SourceCurrency, rd.TargetCurrency)
	switch {
	case err == nil:
		if err := s.rates.Update(ctx, rate, rd.Ratio); err != nil {
			return fail(err)
		}
		slog.Debug("Updated rate", "source", rd.SourceCurrency, "target", rd.TargetCurrency, "ratio", rd.Ratio)
		return entities.Updated, nil

	case errors.Is(err, entities.ErrNotFound):
		if _, err := s.rates.Create(ctx, *source, *target, rd.Ratio); err != nil {
			return fail(err)
		}
		slog.Debug("Created rate", "source", rd.SourceCurrency, "target", rd.TargetCurrency, "ratio", rd.Ratio)
		return entities.Created, nil

	default:
		return fail(err)
	}
}

func (s *Synchronizer) lookup(ctx context.Context, code string) (*entities.Currency, error) {
	currency, err := s.currencies.FindByCode(ctx, code)
	if errors.Is(err, entities.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return currency, nil
}

package fetcher

import (
	"context"
	"github.com/langowen/ratesync/internal/entities"
	"github.com/pkg/errors"
	"log/slog"
	"time"
)

const triggerRetryDelay = time.Second

// StartFetcher synchronizes on every tick until ctx is done.
func (s *Synchronizer) StartFetcher(ctx context.Context, interval time.Duration, runOnStart bool) error {
	const op = "fetcher.StartFetcher"

	if interval <= 0 {
		return errors.Errorf("%s: non-positive interval %s", op, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if runOnStart {
		s.Synchronize(ctx)
	}

	for {
		select {
		case <-ticker.C:
			s.Synchronize(ctx)

		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), op)
		}
	}
}

// ListenTriggers runs a synchronization for every request received from
// source until ctx is done.
func (s *Synchronizer) ListenTriggers(ctx context.Context, source TriggerSource) {
	const op = "fetcher.ListenTriggers"

	for {
		payload, err := source.ListenSyncRequest(ctx)
		if ctx.Err() != nil {
			slog.Info("Synchronization trigger listener stopped", "op", op)
			return
		}
		if err != nil {
			if !errors.Is(err, entities.ErrRedisTimeout) {
				slog.Error(op, "error", err)
			}

			select {
			case <-time.After(triggerRetryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		slog.Info("Synchronization requested", "payload", payload)
		s.Synchronize(ctx)
	}
}

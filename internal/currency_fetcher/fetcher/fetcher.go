package fetcher

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/langowen/ratesync/internal/currency_fetcher/provider"
	"github.com/langowen/ratesync/internal/entities"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"sync"
	"time"
)

// Synchronizer pulls rates from the providers in priority order and
// reconciles them into the rate store.
type Synchronizer struct {
	providers  []provider.Provider
	currencies CurrencyLookup
	rates      RateStore
	notifiers  []Notifier
	metrics    Recorder
	parallel   bool
	now        func() time.Time

	// mu serializes runs; the store assumes a single writer.
	mu sync.Mutex
}

type Option func(*Synchronizer)

func WithNotifiers(notifiers ...Notifier) Option {
	return func(s *Synchronizer) {
		for _, n := range notifiers {
			if n != nil {
				s.notifiers = append(s.notifiers, n)
			}
		}
	}
}

func WithMetrics(metrics Recorder) Option {
	return func(s *Synchronizer) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithParallelFetch fetches all enabled providers concurrently before
// reconciling them one by one in priority order.
func WithParallelFetch(parallel bool) Option {
	return func(s *Synchronizer) {
		s.parallel = parallel
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		s.now = now
	}
}

// NewSynchronizer expects providers already ordered by priority.
func NewSynchronizer(providers []provider.Provider, currencies CurrencyLookup, rates RateStore, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		providers:  providers,
		currencies: currencies,
		rates:      rates,
		metrics:    noopRecorder{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

type fetched struct {
	rates []entities.RateData
	err   error
}

// Synchronize runs every enabled provider and never fails: provider and
// per-rate failures end up in the result's Errors.
func (s *Synchronizer) Synchronize(ctx context.Context) entities.SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := entities.SyncResult{
		RunID:         uuid.NewString(),
		Errors:        []string{},
		ProvidersUsed: []string{},
		StartedAt:     s.now(),
	}

	log := slog.With("run_id", result.RunID)
	log.Info("Starting synchronization", "providers", len(s.providers), "parallel", s.parallel)

	enabled := make([]provider.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if !p.IsEnabled() {
			log.Debug("Skipping disabled provider", "provider", p.Name())
			continue
		}
		enabled = append(enabled, p)
	}

	var prefetched []fetched
	if s.parallel {
		prefetched = s.fetchAll(ctx, enabled)
	}

	for i, p := range enabled {
		name := p.Name()
		log.Info("Using provider", "provider", name)
		result.ProvidersUsed = append(result.ProvidersUsed, name)

		var f fetched
		if prefetched != nil {
			f = prefetched[i]
		} else {
			f = s.fetch(ctx, p)
		}

		if f.err != nil {
			msg := fmt.Sprintf("Provider %s failed: %s", name, f.err)
			log.Error(msg)
			result.Errors = append(result.Errors, msg)
			continue
		}

		for _, rd := range f.rates {
			outcome, err := s.reconcile(ctx, rd)
			s.metrics.ObserveReconcile(name, outcome, err)
			if err != nil {
				msg := fmt.Sprintf("Failed to update rate %s/%s: %s", rd.SourceCurrency, rd.TargetCurrency, err)
				log.Warn(msg)
				result.Errors = append(result.Errors, msg)
				continue
			}

			switch outcome {
			case entities.Created:
				result.RatesCreated++
			case entities.Updated:
				result.RatesUpdated++
			}
		}

		if err := s.rates.Flush(ctx); err != nil {
			msg := fmt.Sprintf("Provider %s failed: %s", name, errors.Wrap(err, "flush"))
			log.Error(msg)
			result.Errors = append(result.Errors, msg)
		}
	}

	result.Finish(s.now())

	log.Info("Synchronization complete",
		"created", result.RatesCreated,
		"updated", result.RatesUpdated,
		"errors", len(result.Errors),
		"outcome", result.Outcome,
	)

	s.metrics.ObserveRun(result)
	s.notify(ctx, result)

	return result
}

func (s *Synchronizer) fetch(ctx context.Context, p provider.Provider) fetched {
	start := time.Now()
	rates, err := p.FetchRates(ctx)
	s.metrics.ObserveFetch(p.Name(), time.Since(start).Seconds(), err)

	return fetched{rates: rates, err: err}
}

func (s *Synchronizer) fetchAll(ctx context.Context, providers []provider.Provider) []fetched {
	out := make([]fetched, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			out[i] = s.fetch(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (s *Synchronizer) notify(ctx context.Context, result entities.SyncResult) {
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, result); err != nil {
			slog.Error("Failed to publish synchronization result", "run_id", result.RunID, "error", err)
		}
	}
}

// AvailableProviders lists the registry without fetching anything.
func (s *Synchronizer) AvailableProviders() []entities.ProviderStatus {
	out := make([]entities.ProviderStatus, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, entities.ProviderStatus{
			Name:    p.Name(),
			Enabled: p.IsEnabled(),
		})
	}

	return out
}

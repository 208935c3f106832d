package app

import (
	"context"
	"github.com/langowen/ratesync/deploy/config"
	"github.com/langowen/ratesync/internal/currency_fetcher/adapter/api_client/ecb"
	"github.com/langowen/ratesync/internal/currency_fetcher/adapter/api_client/fixer"
	"github.com/langowen/ratesync/internal/currency_fetcher/adapter/api_client/httpx"
	"github.com/langowen/ratesync/internal/currency_fetcher/adapter/events/kafka"
	"github.com/langowen/ratesync/internal/currency_fetcher/adapter/storage/postgres"
	"github.com/langowen/ratesync/internal/currency_fetcher/adapter/storage/redis"
	"github.com/langowen/ratesync/internal/currency_fetcher/fetcher"
	"github.com/langowen/ratesync/internal/currency_fetcher/metrics"
	"github.com/langowen/ratesync/internal/currency_fetcher/ports/http/public"
	"github.com/langowen/ratesync/internal/currency_fetcher/provider"
	"github.com/pkg/errors"
	"io"
	"log/slog"
	"os"

	redisPack "github.com/redis/go-redis/v9"
)

type App struct {
	cfg *config.Config
}

func NewApp(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Start runs the synchronization daemon until ctx is done.
func (a *App) Start(ctx context.Context) error {
	const op = "app.Start"

	InitLogger(os.Stdout, a.cfg.LogLevel)
	slog.Info("Logger initialized")

	slog.Info("Starting application", "config", a.cfg)

	pgStorage, err := InitDatabase(ctx, a.cfg.Storage)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer pgStorage.Close(context.Background())
	slog.Info("Storage initialized")

	rdStorage, err := a.initRedis(ctx)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer rdStorage.Close()
	slog.Info("Redis client initialized")

	notifiers := []fetcher.Notifier{rdStorage}
	if brokers := a.cfg.KafkaBrokers(); len(brokers) > 0 {
		publisher := kafka.NewPublisher(brokers, a.cfg.Kafka.Topic)
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
		slog.Info("Kafka publisher initialized", "brokers", brokers, "topic", a.cfg.Kafka.Topic)
	}

	registry := NewRegistry(a.cfg.Providers, a.cfg.Fetcher)

	synchronizer := fetcher.NewSynchronizer(registry.Providers(), pgStorage, pgStorage,
		fetcher.WithNotifiers(notifiers...),
		fetcher.WithMetrics(metrics.NewSyncMetrics(nil)),
		fetcher.WithParallelFetch(a.cfg.Fetcher.Parallel),
	)

	for _, p := range synchronizer.AvailableProviders() {
		slog.Info("Provider registered", "provider", p.Name, "enabled", p.Enabled)
	}

	serverDone := public.StartServer(ctx, synchronizer, rdStorage, pgStorage, a.cfg.HTTPServer)

	triggersDone := make(chan struct{})
	go func() {
		defer close(triggersDone)
		synchronizer.ListenTriggers(ctx, rdStorage)
	}()

	err = synchronizer.StartFetcher(ctx, a.cfg.Fetcher.TimeTickers, a.cfg.Fetcher.RunOnStart)
	<-serverDone
	<-triggersDone

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Fetcher stopped", "error", err)
		return errors.Wrap(err, op)
	}

	slog.Info("Application stopped")

	return nil
}

// InitLogger installs the default logger; unknown levels fall back to debug.
func InitLogger(w io.Writer, level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	}))
	slog.SetDefault(logger)
}

// InitDatabase migrates the schema when enabled and opens the pool.
func InitDatabase(ctx context.Context, cfg config.Storage) (*postgres.Storage, error) {
	const op = "app.InitDatabase"

	dsn := cfg.DSN()

	if cfg.Migrate {
		if err := postgres.RunMigrations(dsn, cfg.Schema); err != nil {
			return nil, errors.Wrap(err, op)
		}
	}

	pgStorage, err := postgres.InitStorage(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	return pgStorage, nil
}

func (a *App) initRedis(ctx context.Context) (*redis.Storage, error) {
	options := &redisPack.Options{
		Addr:     a.cfg.Redis.Host,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	}

	return redis.InitStorage(ctx, options)
}

// NewRegistry builds the providers from configuration. Both share one HTTP
// client.
func NewRegistry(cfg config.Providers, fetch config.Fetcher) *provider.Registry {
	client := httpx.New(fetch.Timeout)

	return provider.NewRegistry(
		provider.Registration{
			Priority: cfg.ECBPriority,
			Provider: ecb.New(
				ecb.WithURL(cfg.ECBURL),
				ecb.WithHTTPClient(client),
				ecb.WithTimeout(fetch.Timeout),
			),
		},
		provider.Registration{
			Priority: cfg.FixerPriority,
			Provider: fixer.New(cfg.FixerAPIKey,
				fixer.WithBaseURL(cfg.FixerURL),
				fixer.WithBaseCurrency(cfg.FixerBaseCurrency),
				fixer.WithHTTPClient(client),
				fixer.WithTimeout(fetch.Timeout),
			),
		},
	)
}

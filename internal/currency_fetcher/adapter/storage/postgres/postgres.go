package postgres

import (
	"context"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/langowen/ratesync/internal/entities"
	"github.com/pkg/errors"
	"log/slog"
	"sync"
	"time"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the part of *pgxpool.Pool the store needs.
type DB interface {
	querier
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Storage is the currency lookup and the rate store. Writes go into one
// transaction opened on the first write and committed by Flush; every
// statement on that transaction runs in its own savepoint so a failed one
// leaves the rest intact.
type Storage struct {
	db DB

	mu sync.Mutex
	tx pgx.Tx
}

func NewStorage(pool DB) *Storage {
	return &Storage{
		db: pool,
	}
}

func InitStorage(ctx context.Context, dsn string) (*Storage, error) {
	const op = "storage.postgres.InitStorage"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 10 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, op)
	}

	return NewStorage(pool), nil
}

// FindByCode reads on the pool. Currencies are never written during a run.
func (s *Storage) FindByCode(ctx context.Context, code string) (*entities.Currency, error) {
	const op = "storage.postgres.FindByCode"

	var c entities.Currency
	err := s.db.QueryRow(ctx, `SELECT id, code FROM currencies WHERE code = $1`, code).Scan(&c.ID, &c.Code)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	return &c, nil
}

const selectRates = `
	SELECT r.id, r.ratio, r.updated_at, sc.id, sc.code, tc.id, tc.code
	FROM exchange_rates r
	JOIN currencies sc ON sc.id = r.source_currency_id
	JOIN currencies tc ON tc.id = r.target_currency_id
`

func scanRate(row pgx.Row) (*entities.ExchangeRate, error) {
	var r entities.ExchangeRate
	err := row.Scan(&r.ID, &r.Ratio, &r.UpdatedAt, &r.Source.ID, &r.Source.Code, &r.Target.ID, &r.Target.Code)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// FindByPair sees the pending writes of the run once one has started.
func (s *Storage) FindByPair(ctx context.Context, source, target string) (*entities.ExchangeRate, error) {
	const op = "storage.postgres.FindByPair"

	var rate *entities.ExchangeRate
	err := s.read(ctx, func(q querier) error {
		var err error
		rate, err = findPair(ctx, q, source, target)
		return err
	})
	if errors.Is(err, entities.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	return rate, nil
}

func findPair(ctx context.Context, q querier, source, target string) (*entities.ExchangeRate, error) {
	rate, err := scanRate(q.QueryRow(ctx, selectRates+` WHERE sc.code = $1 AND tc.code = $2`, source, target))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.ErrNotFound
	}

	return rate, err
}

// GetRate reads committed data only and never joins a pending run.
func (s *Storage) GetRate(ctx context.Context, source, target string) (*entities.ExchangeRate, error) {
	const op = "storage.postgres.GetRate"

	rate, err := findPair(ctx, s.db, source, target)
	if err != nil && !errors.Is(err, entities.ErrNotFound) {
		return nil, errors.Wrap(err, op)
	}

	return rate, err
}

func (s *Storage) ListRates(ctx context.Context) ([]entities.ExchangeRate, error) {
	const op = "storage.postgres.ListRates"

	rows, err := s.db.Query(ctx, selectRates+` ORDER BY sc.code, tc.code`)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	defer rows.Close()

	rates := make([]entities.ExchangeRate, 0)
	for rows.Next() {
		rate, err := scanRate(rows)
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		rates = append(rates, *rate)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, op)
	}

	return rates, nil
}

func (s *Storage) Create(ctx context.Context, source, target entities.Currency, ratio float64) (*entities.ExchangeRate, error) {
	const op = "storage.postgres.Create"

	rate := &entities.ExchangeRate{Source: source, Target: target, Ratio: ratio}

	err := s.write(ctx, func(q querier) error {
		return q.QueryRow(ctx, `
			INSERT INTO exchange_rates (source_currency_id, target_currency_id, ratio, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
			RETURNING id, updated_at
		`, source.ID, target.ID, ratio).Scan(&rate.ID, &rate.UpdatedAt)
	})
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	return rate, nil
}

func (s *Storage) Update(ctx context.Context, rate *entities.ExchangeRate, ratio float64) error {
	const op = "storage.postgres.Update"

	err := s.write(ctx, func(q querier) error {
		return q.QueryRow(ctx, `
			UPDATE exchange_rates SET ratio = $1, updated_at = now()
			WHERE id = $2
			RETURNING updated_at
		`, ratio, rate.ID).Scan(&rate.UpdatedAt)
	})
	if err != nil {
		return errors.Wrap(err, op)
	}
	rate.Ratio = ratio

	return nil
}

func (s *Storage) write(ctx context.Context, fn func(q querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return err
		}
		s.tx = tx
	}

	return s.savepoint(ctx, fn)
}

// read runs fn on the pool until a run has opened its transaction.
func (s *Storage) read(ctx context.Context, fn func(q querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return fn(s.db)
	}

	return s.savepoint(ctx, fn)
}

func (s *Storage) savepoint(ctx context.Context, fn func(q querier) error) error {
	sp, err := s.tx.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(sp); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}

	return sp.Commit(ctx)
}

// Flush commits the pending writes. A failed commit discards them.
func (s *Storage) Flush(ctx context.Context) error {
	const op = "storage.postgres.Flush"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}

	tx := s.tx
	s.tx = nil

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return errors.Wrap(err, op)
	}

	return nil
}

func (s *Storage) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		if err := s.tx.Rollback(ctx); err != nil {
			slog.Warn("Failed to roll back pending writes", "error", err)
		}
		s.tx = nil
	}

	s.db.Close()
}

package redis

import (
	"context"
	"encoding/json"
	"github.com/langowen/ratesync/internal/entities"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"net"
	"sync"
)

const (
	SyncRequestedChannel = "sync_requested"
	SynchronizedChannel  = "rates_synchronized"
	LastSyncKey          = "exchange_rates:last_sync"
)

// Storage is the on-demand trigger source and publishes finished runs.
type Storage struct {
	rdb redis.UniversalClient

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewStorage(client redis.UniversalClient) *Storage {
	return &Storage{
		rdb: client,
	}
}

func InitStorage(ctx context.Context, options *redis.Options) (*Storage, error) {
	const op = "storage.redis.InitStorage"

	redisClient := redis.NewClient(options)

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		_ = redisClient.Close()
		return nil, errors.Wrap(err, op)
	}

	return NewStorage(redisClient), nil
}

func (s *Storage) subscription(ctx context.Context) *redis.PubSub {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pubsub == nil {
		s.pubsub = s.rdb.Subscribe(ctx, SyncRequestedChannel)
	}

	return s.pubsub
}

func (s *Storage) unsubscribe(pubsub *redis.PubSub) {
	s.mu.Lock()
	if s.pubsub == pubsub {
		s.pubsub = nil
	}
	s.mu.Unlock()

	_ = pubsub.Close()
}

// ListenSyncRequest blocks until a message arrives on the request channel and
// returns its payload. Cancelling ctx drops the subscription; the next call
// subscribes again.
func (s *Storage) ListenSyncRequest(ctx context.Context) (string, error) {
	const op = "storage.redis.ListenSyncRequest"

	pubsub := s.subscription(ctx)
	stop := context.AfterFunc(ctx, func() { s.unsubscribe(pubsub) })
	defer stop()

	msg, err := pubsub.ReceiveMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(ctx.Err(), op)
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			if netErr.Timeout() {
				return "", entities.ErrRedisTimeout
			}
			return "", entities.ErrRedisCanceled
		}
		return "", errors.Wrap(err, op)
	}

	slog.Debug("Received message", "channel", msg.Channel, "payload", msg.Payload)

	return msg.Payload, nil
}

// RequestSync asks every listening synchronizer for a run.
func (s *Storage) RequestSync(ctx context.Context, payload string) error {
	const op = "storage.redis.RequestSync"

	if err := s.rdb.Publish(ctx, SyncRequestedChannel, payload).Err(); err != nil {
		return errors.Wrap(err, op)
	}

	return nil
}

// Notify publishes the result and keeps it as the last-run snapshot.
func (s *Storage) Notify(ctx context.Context, result entities.SyncResult) error {
	const op = "storage.redis.Notify"

	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, op)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, LastSyncKey, payload, 0)
		pipe.Publish(ctx, SynchronizedChannel, payload)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, op)
	}

	return nil
}

// LastResult returns entities.ErrNotFound before the first run.
func (s *Storage) LastResult(ctx context.Context) (*entities.SyncResult, error) {
	const op = "storage.redis.LastResult"

	payload, err := s.rdb.Get(ctx, LastSyncKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, entities.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	var result entities.SyncResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, errors.Wrap(err, op)
	}

	return &result, nil
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pubsub != nil {
		_ = s.pubsub.Close()
		s.pubsub = nil
	}

	return s.rdb.Close()
}

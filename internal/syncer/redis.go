package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"revtrack/internal/config"
	"revtrack/internal/logging"
	"revtrack/internal/reviewstore"
)

type hashWriter interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	Close() error
}

// RedisTarget keeps one hash per place, field review id, value the JSON
// record. Soft-deleted reviews are removed from the hash.
type RedisTarget struct {
	client hashWriter
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisTarget connects lazily to the configured server.
func NewRedisTarget(cfg config.Redis, logger *slog.Logger) *RedisTarget {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisTargetWithClient(client, cfg.KeyPrefix, logger)
}

// NewRedisTargetWithClient wraps an existing client.
func NewRedisTargetWithClient(client hashWriter, prefix string, logger *slog.Logger) *RedisTarget {
	return &RedisTarget{
		client: client,
		prefix: prefix,
		logger: logging.NewComponentLogger(logger, "sync-redis"),
		now:    time.Now,
	}
}

func (t *RedisTarget) Name() string { return config.TargetRedis }

func (t *RedisTarget) Close() error { return t.client.Close() }

// HashKey returns the hash holding placeID's reviews.
func (t *RedisTarget) HashKey(placeID string) string {
	return t.prefix + "place:" + placeID
}

// Push applies upserts with one HSET and deletions with one HDEL. When a
// review appears more than once the later entry wins.
func (t *RedisTarget) Push(ctx context.Context, delta reviewstore.Delta) error {
	key := t.HashKey(delta.PlaceID)
	now := t.now()

	latest := make(map[string]Record, len(delta.Reviews))
	order := make([]string, 0, len(delta.Reviews))
	for _, rv := range delta.Reviews {
		if _, ok := latest[rv.ReviewID]; !ok {
			order = append(order, rv.ReviewID)
		}
		latest[rv.ReviewID] = RecordFor(rv, now)
	}

	var values []any
	var deletes []string
	for _, id := range order {
		rec := latest[id]
		if rec.Op == OpDelete {
			deletes = append(deletes, id)
			continue
		}
		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode review %s: %w", rec.Key(), err)
		}
		values = append(values, id, string(encoded))
	}

	if len(values) > 0 {
		if err := t.client.HSet(ctx, key, values...).Err(); err != nil {
			return fmt.Errorf("hset %s: %w", key, err)
		}
	}
	if len(deletes) > 0 {
		if err := t.client.HDel(ctx, key, deletes...).Err(); err != nil {
			return fmt.Errorf("hdel %s: %w", key, err)
		}
	}
	t.logger.Debug("hash updated",
		logging.String(logging.FieldPlaceID, delta.PlaceID),
		logging.String("key", key),
		logging.Int("set", len(values)/2),
		logging.Int("deleted", len(deletes)),
	)
	return nil
}

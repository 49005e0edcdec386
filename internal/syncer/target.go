package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"revtrack/internal/config"
	"revtrack/internal/review"
	"revtrack/internal/reviewstore"
)

// Target receives deltas for one downstream system.
type Target interface {
	Name() string
	// Push delivers every review in delta. It must be idempotent.
	Push(ctx context.Context, delta reviewstore.Delta) error
	Close() error
}

// Operation says how a target should apply a record.
type Operation string

const (
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// Record is the wire form of one delta entry.
type Record struct {
	Op        Operation      `json:"op"`
	PlaceID   string         `json:"place_id"`
	ReviewID  string         `json:"review_id"`
	SessionID int64          `json:"session_id"`
	Version   int64          `json:"version"`
	SyncedAt  time.Time      `json:"synced_at"`
	Review    *review.Review `json:"review,omitempty"`
}

// RecordFor converts a stored review into its delta record.
func RecordFor(r review.Review, now time.Time) Record {
	rec := Record{
		Op:        OpUpsert,
		PlaceID:   r.PlaceID,
		ReviewID:  r.ReviewID,
		SessionID: r.LastSessionID,
		Version:   r.Version,
		SyncedAt:  now.UTC(),
	}
	if r.Deleted() {
		rec.Op = OpDelete
		return rec
	}
	copied := r
	rec.Review = &copied
	return rec
}

// Key is the idempotency key shared by every target.
func (r Record) Key() string {
	return r.PlaceID + "/" + r.ReviewID
}

// NewTargets builds the targets enabled in cfg.Sync.Targets, in order.
func NewTargets(cfg *config.Config, logger *slog.Logger) ([]Target, error) {
	targets := make([]Target, 0, len(cfg.Sync.Targets))
	for _, name := range cfg.Sync.Targets {
		switch name {
		case config.TargetJSON:
			targets = append(targets, NewJSONTarget(cfg.Paths.SnapshotDir, logger))
		case config.TargetKafka:
			target, err := NewKafkaTarget(cfg.Sync.Kafka, logger)
			if err != nil {
				closeAll(targets)
				return nil, err
			}
			targets = append(targets, target)
		case config.TargetRedis:
			targets = append(targets, NewRedisTarget(cfg.Sync.Redis, logger))
		default:
			closeAll(targets)
			return nil, fmt.Errorf("unknown sync target %q", name)
		}
	}
	return targets, nil
}

func closeAll(targets []Target) {
	for _, t := range targets {
		_ = t.Close()
	}
}

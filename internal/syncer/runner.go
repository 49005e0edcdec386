package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"revtrack/internal/logging"
	"revtrack/internal/reviewstore"
)

// Store is the checkpoint surface the runner needs.
type Store interface {
	Pending(ctx context.Context, placeID, target string) (reviewstore.Delta, error)
	Advance(ctx context.Context, placeID, target string, sessionID int64) error
	RecordSyncFailure(ctx context.Context, placeID, target, message string) error
}

// Result reports one target's sync of one place.
type Result struct {
	PlaceID     string
	Target      string
	FromSession int64
	ToSession   int64
	Upserts     int
	Deletes     int
	Duration    time.Duration
	Err         error
}

// Runner drives pending -> push -> advance for a set of targets.
type Runner struct {
	store   Store
	targets []Target
	logger  *slog.Logger
}

// NewRunner returns a runner over targets.
func NewRunner(store Store, targets []Target, logger *slog.Logger) *Runner {
	return &Runner{
		store:   store,
		targets: targets,
		logger:  logging.NewComponentLogger(logger, "syncer"),
	}
}

// Targets returns the configured target names.
func (r *Runner) Targets() []string {
	names := make([]string, 0, len(r.targets))
	for _, t := range r.targets {
		names = append(names, t.Name())
	}
	return names
}

// SyncPlace syncs placeID to every target. A failing target is recorded
// and does not stop the others; the joined error covers every failure.
func (r *Runner) SyncPlace(ctx context.Context, placeID string) ([]Result, error) {
	results := make([]Result, 0, len(r.targets))
	var errs []error
	for _, target := range r.targets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := r.syncTarget(ctx, placeID, target)
		results = append(results, res)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target.Name(), res.Err))
		}
	}
	return results, errors.Join(errs...)
}

// SyncPlaces syncs each place in turn.
func (r *Runner) SyncPlaces(ctx context.Context, placeIDs []string) ([]Result, error) {
	var all []Result
	var errs []error
	for _, placeID := range placeIDs {
		results, err := r.SyncPlace(ctx, placeID)
		all = append(all, results...)
		if err != nil {
			if ctx.Err() != nil {
				return all, err
			}
			errs = append(errs, fmt.Errorf("place %s: %w", placeID, err))
		}
	}
	return all, errors.Join(errs...)
}

func (r *Runner) syncTarget(ctx context.Context, placeID string, target Target) Result {
	start := time.Now()
	name := target.Name()
	logger := r.logger.With(
		logging.String(logging.FieldPlaceID, placeID),
		logging.String(logging.FieldTarget, name),
	)
	res := Result{PlaceID: placeID, Target: name}

	delta, err := r.store.Pending(ctx, placeID, name)
	if err != nil {
		res.Err = err
		return res
	}
	res.FromSession = delta.FromSession
	res.ToSession = delta.FromSession
	if delta.Empty() {
		logger.Debug("nothing to sync", logging.Int64("checkpoint", delta.FromSession))
		return res
	}
	for _, rv := range delta.Reviews {
		if rv.Deleted() {
			res.Deletes++
		} else {
			res.Upserts++
		}
	}

	if err := target.Push(ctx, delta); err != nil {
		pushFailures.WithLabelValues(name).Inc()
		res.Err = err
		res.Duration = time.Since(start)
		if recErr := r.store.RecordSyncFailure(context.WithoutCancel(ctx), placeID, name, err.Error()); recErr != nil {
			logger.Warn("sync failure not recorded", logging.Error(recErr))
		}
		logging.WarnWithContext(logger, "sync push failed", "sync_failed",
			logging.Error(err),
			logging.Int("records", len(delta.Reviews)),
			logging.String(logging.FieldErrorHint, "check target connectivity, then rerun sync"),
			logging.String(logging.FieldImpact, "checkpoint not advanced; delta will be re-sent"),
		)
		return res
	}
	recordsPushed.WithLabelValues(name, string(OpUpsert)).Add(float64(res.Upserts))
	recordsPushed.WithLabelValues(name, string(OpDelete)).Add(float64(res.Deletes))

	if err := r.store.Advance(ctx, placeID, name, delta.ToSession); err != nil {
		res.Err = fmt.Errorf("advance checkpoint: %w", err)
		res.Duration = time.Since(start)
		return res
	}
	res.ToSession = delta.ToSession
	res.Duration = time.Since(start)
	logger.Info("sync delivered",
		logging.Int("upserts", res.Upserts),
		logging.Int("deletes", res.Deletes),
		logging.Int64("from_session", res.FromSession),
		logging.Int64("to_session", res.ToSession),
		logging.Duration("duration", res.Duration),
		logging.String(logging.FieldEventType, "sync_delivered"),
	)
	return res
}

// Close closes every target.
func (r *Runner) Close() error {
	var errs []error
	for _, t := range r.targets {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		}
	}
	return errors.Join(errs...)
}

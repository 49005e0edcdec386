package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"revtrack/internal/config"
	"revtrack/internal/identity"
	"revtrack/internal/logging"
	"revtrack/internal/review"
	"revtrack/internal/reviewstore"
)

// SortNewest is the only sort criterion under which early stop is allowed.
const SortNewest = "newest"

// DefaultMinBatchSize is the smallest batch that counts toward early stop
// when a request leaves MinBatchSize unset.
const DefaultMinBatchSize = 3

// Store is the slice of the review store a session needs.
type Store interface {
	OpenSession(ctx context.Context, spec reviewstore.SessionSpec) (*review.ScrapeSession, error)
	MarkSessionRunning(ctx context.Context, id int64) error
	RecordSessionProgress(ctx context.Context, id int64, counts review.Counts) error
	FinishSession(ctx context.Context, id int64, end reviewstore.SessionEnd) (*review.ScrapeSession, error)
	Upsert(ctx context.Context, placeID string, c review.Candidate, mode review.Mode, sessionID int64) (reviewstore.UpsertResult, error)
	MarkMissing(ctx context.Context, placeID string, sessionID int64, seen map[string]struct{}) (int, error)
}

// PlaceResolver maps a source URL to a place id.
type PlaceResolver interface {
	Resolve(ctx context.Context, rawURL string) (identity.Resolution, error)
}

// Request is a session open request.
type Request struct {
	SourceURL     string
	Mode          review.Mode
	StopThreshold int
	MinBatchSize  int
	SortVerified  bool
	SortCriterion string
	// MaxReviews caps the candidates processed; 0 means no cap.
	MaxReviews int
	// MarkMissing soft-deletes unseen reviews when a full-mode session
	// reaches natural exhaustion.
	MarkMissing bool
}

// RequestFromConfig returns a request for sourceURL carrying the
// configured collection defaults.
func RequestFromConfig(cfg *config.Config, sourceURL string) (Request, error) {
	mode, err := cfg.Mode()
	if err != nil {
		return Request{}, err
	}
	return Request{
		SourceURL:     sourceURL,
		Mode:          mode,
		StopThreshold: cfg.Collection.StopThreshold,
		MinBatchSize:  cfg.Collection.MinBatchSize,
		SortCriterion: cfg.Collection.SortBy,
		MaxReviews:    cfg.Collection.MaxReviews,
		MarkMissing:   cfg.Collection.MarkMissingOnFull,
	}, nil
}

func (r Request) withDefaults() Request {
	if r.Mode == "" {
		r.Mode = review.ModeUpdate
	}
	if r.StopThreshold < 0 {
		r.StopThreshold = 0
	}
	if r.MinBatchSize <= 0 {
		r.MinBatchSize = DefaultMinBatchSize
	}
	r.SortCriterion = strings.ToLower(strings.TrimSpace(r.SortCriterion))
	return r
}

// Batch is one page or scroll of candidate records.
type Batch struct {
	Index      int
	Candidates []review.Candidate
}

// Collector is the external process producing batches. NextBatch returns
// io.EOF once the source is exhausted; Stop asks it to end early.
type Collector interface {
	NextBatch(ctx context.Context) (Batch, error)
	Stop()
}

// Controller opens and drives sessions.
type Controller struct {
	store         Store
	resolver      PlaceResolver
	logger        *slog.Logger
	batchAttempts int
	retryDelay    time.Duration
}

// NewController wires a controller to the store and resolver.
func NewController(store Store, resolver PlaceResolver, logger *slog.Logger) *Controller {
	return &Controller{
		store:         store,
		resolver:      resolver,
		logger:        logging.NewComponentLogger(logger, "session"),
		batchAttempts: 3,
		retryDelay:    250 * time.Millisecond,
	}
}

// Open resolves the source URL and opens a session for its place.
func (c *Controller) Open(ctx context.Context, req Request) (*Session, error) {
	res, err := c.resolver.Resolve(ctx, req.SourceURL)
	if err != nil {
		return nil, err
	}
	return c.OpenForPlace(ctx, res.PlaceID, req)
}

// OpenForPlace opens a session for an already resolved place.
func (c *Controller) OpenForPlace(ctx context.Context, placeID string, req Request) (*Session, error) {
	req = req.withDefaults()
	row, err := c.store.OpenSession(ctx, reviewstore.SessionSpec{
		PlaceID:       placeID,
		Kind:          review.KindCollect,
		Mode:          req.Mode,
		SourceURL:     req.SourceURL,
		SortCriterion: req.SortCriterion,
		SortVerified:  req.SortVerified,
	})
	if err != nil {
		return nil, err
	}
	s := &Session{
		store:   c.store,
		req:     req,
		id:      row.ID,
		placeID: placeID,
		state:   review.SessionOpen,
		seen:    make(map[string]struct{}),
		started: time.Now(),
		logger: c.logger.With(
			logging.String(logging.FieldPlaceID, placeID),
			logging.Int64(logging.FieldSessionID, row.ID),
		),
	}
	s.logger.Info("session opened",
		logging.String("mode", string(req.Mode)),
		logging.Int("stop_threshold", req.StopThreshold),
		logging.Int("min_batch_size", req.MinBatchSize),
		logging.String("sort", req.SortCriterion),
		logging.Bool("sort_verified", req.SortVerified),
		logging.Bool("early_stop_guarded", s.guarded()),
		logging.String(logging.FieldEventType, "session_opened"),
	)
	return s, nil
}

// Run opens a session and feeds it every batch the collector delivers
// until the collector is exhausted, the session stops it, or ctx ends.
func (c *Controller) Run(ctx context.Context, req Request, collector Collector) (*review.ScrapeSession, error) {
	s, err := c.Open(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Drive(ctx, s, collector)
}

// Drive feeds batches from collector into an open session and finishes it.
func (c *Controller) Drive(ctx context.Context, s *Session, collector Collector) (*review.ScrapeSession, error) {
	for {
		batch, err := collector.NextBatch(ctx)
		if errors.Is(err, io.EOF) {
			return s.Close(ctx)
		}
		if err != nil {
			if ctx.Err() != nil {
				return s.Cancel(ctx)
			}
			summary, failErr := s.Fail(ctx, "", fmt.Errorf("collector: %w", err))
			return summary, errors.Join(err, failErr)
		}

		result, err := c.processWithRetry(ctx, s, batch)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				collector.Stop()
				return s.Cancel(ctx)
			case s.Finished():
				collector.Stop()
				summary, _ := s.Summary(ctx)
				return summary, err
			default:
				collector.Stop()
				summary, failErr := s.Fail(ctx, review.StopStoreFailure, err)
				return summary, errors.Join(err, failErr)
			}
		}
		if result.Stop {
			collector.Stop()
			return s.Close(ctx)
		}
	}
}

// processWithRetry redelivers a batch while the store reports contention.
func (c *Controller) processWithRetry(ctx context.Context, s *Session, batch Batch) (BatchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= c.batchAttempts; attempt++ {
		result, err := s.ProcessBatch(ctx, batch)
		if err == nil || !errors.Is(err, review.ErrStoreBusy) {
			return result, err
		}
		lastErr = err
		logging.WarnWithContext(s.logger, "store busy, retrying batch", "batch_retry",
			logging.Int("batch_index", batch.Index),
			logging.Int("attempt", attempt),
			logging.String(logging.FieldErrorKind, review.Kind(err)),
			logging.String(logging.FieldErrorHint, "another writer holds this place"),
			logging.String(logging.FieldImpact, "batch will be redelivered"),
		)
		select {
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return BatchResult{}, ctx.Err()
		}
	}
	return BatchResult{}, lastErr
}

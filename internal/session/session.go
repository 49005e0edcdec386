package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"revtrack/internal/logging"
	"revtrack/internal/review"
	"revtrack/internal/reviewstore"
)

// CandidateResult is the per-record outcome handed back to the caller.
type CandidateResult struct {
	ReviewID       string
	Classification review.Classification
	Written        bool
	Review         *review.Review
	// Err is set for skipped records (malformed or write conflict).
	Err error
}

// BatchResult is the verdict for one processed batch.
type BatchResult struct {
	Index   int
	Counts  review.Counts
	Records []CandidateResult
	// FullyMatched is true when every well-formed member was Unchanged and
	// the batch met the minimum size.
	FullyMatched       bool
	ConsecutiveMatched int
	// Stop tells the caller to stop the collector.
	Stop       bool
	StopReason review.StopReason
}

// Session is one running collection against one place. Batches must be
// delivered from a single goroutine in source order.
type Session struct {
	store   Store
	req     Request
	id      int64
	placeID string
	logger  *slog.Logger
	started time.Time

	mu           sync.Mutex
	state        review.SessionState
	counts       review.Counts
	consecutive  int
	processed    int
	guardTripped bool
	stopReason   review.StopReason
	seen         map[string]struct{}
	pending      *batchProgress
	summary      *review.ScrapeSession
}

// batchProgress is a batch interrupted after some of its candidates were
// committed.
type batchProgress struct {
	index     int
	size      int
	next      int
	processed int
	seen      []string
	result    BatchResult
}

// resumeLocked returns the interrupted progress of batch, or fresh progress.
// Progress left by a different batch is folded into the session first.
func (s *Session) resumeLocked(batch Batch) *batchProgress {
	if p := s.pending; p != nil {
		if p.index == batch.Index && p.size == len(batch.Candidates) {
			s.pending = nil
			return p
		}
		s.foldLocked(p)
	}
	return &batchProgress{
		index:     batch.Index,
		size:      len(batch.Candidates),
		processed: s.processed,
		result:    BatchResult{Index: batch.Index, Records: make([]CandidateResult, 0, len(batch.Candidates))},
	}
}

// foldLocked adds the committed part of an unfinished batch to the session
// tallies. The batch never counts as fully matched.
func (s *Session) foldLocked(p *batchProgress) {
	if s.pending == p {
		s.pending = nil
	}
	s.processed = p.processed
	for _, id := range p.seen {
		s.seen[id] = struct{}{}
	}
	s.counts.Merge(p.result.Counts)
	s.consecutive = 0
}

// ID returns the session id.
func (s *Session) ID() int64 { return s.id }

// PlaceID returns the place the session collects for.
func (s *Session) PlaceID() string { return s.placeID }

// Counts returns the running tallies.
func (s *Session) Counts() review.Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// Finished reports whether the session reached a terminal state.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Finished()
}

// guarded reports whether the early-stop policy is forced off because the
// source order is not known to be newest-first.
func (s *Session) guarded() bool {
	return !s.req.SortVerified || s.req.SortCriterion != SortNewest
}

// ProcessBatch classifies and writes every candidate of the batch and
// returns the batch verdict. Each candidate commits on its own, so when
// review.ErrStoreBusy or cancellation interrupts a batch the records
// already written are kept and the next ProcessBatch call for the same
// batch resumes at the first unprocessed candidate. Storage failures fail
// the session.
func (s *Session) ProcessBatch(ctx context.Context, batch Batch) (BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Finished() {
		return BatchResult{}, review.Wrap(review.ErrSessionClosed, "session", "process batch", "", nil)
	}
	if s.state == review.SessionOpen {
		if err := s.store.MarkSessionRunning(ctx, s.id); err != nil {
			return BatchResult{}, err
		}
		s.state = review.SessionRunning
	}

	progress := s.resumeLocked(batch)
	result := &progress.result

	for ; progress.next < len(batch.Candidates); progress.next++ {
		c := batch.Candidates[progress.next]
		if s.req.MaxReviews > 0 && progress.processed >= s.req.MaxReviews {
			result.Stop = true
			result.StopReason = review.StopMaxReviews
			break
		}
		if err := ctx.Err(); err != nil {
			s.pending = progress
			return BatchResult{}, err
		}

		res, err := s.store.Upsert(ctx, s.placeID, c, s.req.Mode, s.id)
		record := CandidateResult{ReviewID: c.ReviewID, Classification: res.Classification, Written: res.Written, Review: res.Review}
		switch {
		case err == nil:
			result.Counts.Add(res.Classification)
			if res.Review != nil {
				record.ReviewID = res.Review.ReviewID
			}
			progress.seen = append(progress.seen, record.ReviewID)
			progress.processed++
			candidatesTotal.WithLabelValues(string(res.Classification)).Inc()
		case errors.Is(err, review.ErrMalformedCandidate):
			result.Counts.Malformed++
			record.Err = err
			candidatesTotal.WithLabelValues("malformed").Inc()
			s.logger.Warn("candidate skipped",
				logging.Int("batch_index", batch.Index),
				logging.String(logging.FieldReviewID, c.ReviewID),
				logging.Error(err),
				logging.String(logging.FieldErrorKind, review.Kind(err)),
			)
		case errors.Is(err, review.ErrWriteConflict):
			result.Counts.Conflicts++
			record.Err = err
			progress.seen = append(progress.seen, c.ReviewID)
			progress.processed++
			candidatesTotal.WithLabelValues("conflict").Inc()
			s.logger.Warn("candidate conflicted",
				logging.Int("batch_index", batch.Index),
				logging.String(logging.FieldReviewID, c.ReviewID),
				logging.String(logging.FieldErrorKind, review.Kind(err)),
			)
		case errors.Is(err, review.ErrStoreBusy), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			s.pending = progress
			return BatchResult{}, err
		default:
			s.foldLocked(progress)
			if _, failErr := s.failLocked(ctx, review.StopStoreFailure, err); failErr != nil {
				return BatchResult{}, errors.Join(err, failErr)
			}
			return BatchResult{}, err
		}
		result.Records = append(result.Records, record)
	}

	s.processed = progress.processed
	for _, id := range progress.seen {
		s.seen[id] = struct{}{}
	}
	s.counts.Merge(result.Counts)

	wellFormed := result.Counts.Seen()
	result.FullyMatched = wellFormed > 0 &&
		wellFormed >= s.req.MinBatchSize &&
		result.Counts.Unchanged == wellFormed
	if result.FullyMatched {
		s.consecutive++
		batchesTotal.WithLabelValues("matched").Inc()
	} else {
		s.consecutive = 0
		batchesTotal.WithLabelValues("unmatched").Inc()
	}
	result.ConsecutiveMatched = s.consecutive

	if !result.Stop && s.req.StopThreshold > 0 && s.consecutive >= s.req.StopThreshold {
		if s.guarded() {
			if !s.guardTripped {
				logging.WarnWithContext(s.logger, "early stop suppressed", "early_stop_guard",
					logging.Int("consecutive_matched", s.consecutive),
					logging.String("sort", s.req.SortCriterion),
					logging.Bool("sort_verified", s.req.SortVerified),
					logging.String(logging.FieldErrorHint, "verify newest-first sorting to enable early stop"),
					logging.String(logging.FieldImpact, "collection continues to the end of the source"),
				)
			}
			s.guardTripped = true
		} else {
			result.Stop = true
			result.StopReason = review.StopThresholdReached
		}
	}
	if result.Stop {
		s.stopReason = result.StopReason
	}

	if err := s.store.RecordSessionProgress(ctx, s.id, s.counts); err != nil {
		s.logger.Warn("session progress not recorded", logging.Error(err))
	}
	s.logger.Debug("batch processed",
		logging.Int("batch_index", batch.Index),
		logging.Int("new", result.Counts.New),
		logging.Int("updated", result.Counts.Updated),
		logging.Int("restored", result.Counts.Restored),
		logging.Int("unchanged", result.Counts.Unchanged),
		logging.Int("malformed", result.Counts.Malformed),
		logging.Bool("fully_matched", result.FullyMatched),
		logging.Int("consecutive_matched", s.consecutive),
	)
	return *result, nil
}

// Close finishes the session as closed. The stop reason is the one a batch
// triggered, otherwise exhausted (or sort_unverified_guard when the guard
// suppressed a stop). A full-mode session that ran to exhaustion
// soft-deletes the reviews it never saw.
func (s *Session) Close(ctx context.Context) (*review.ScrapeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary != nil {
		return s.summary, review.Wrap(review.ErrSessionClosed, "session", "close", "", nil)
	}

	if s.pending != nil {
		s.foldLocked(s.pending)
	}
	reason := s.stopReason
	if reason == "" {
		reason = review.StopExhausted
		if s.req.Mode == review.ModeFull && s.req.MarkMissing {
			hidden, err := s.store.MarkMissing(ctx, s.placeID, s.id, s.seen)
			if err != nil {
				if review.Fatal(err) {
					return s.failLocked(ctx, review.StopStoreFailure, err)
				}
				logging.WarnWithContext(s.logger, "missing reviews not marked", "mark_missing_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorKind, review.Kind(err)),
					logging.String(logging.FieldImpact, "reviews gone from the source stay active"),
				)
			}
			s.counts.SoftDeleted += hidden
		}
		if s.guardTripped {
			reason = review.StopSortUnverifiedGuard
		}
	}
	return s.finishLocked(ctx, reviewstore.SessionEnd{State: review.SessionClosed, StopReason: reason})
}

// Cancel finishes the session as closed with stop reason cancelled. It
// works even when ctx is already done.
func (s *Session) Cancel(ctx context.Context) (*review.ScrapeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary != nil {
		return s.summary, nil
	}
	return s.finishLocked(context.WithoutCancel(ctx), reviewstore.SessionEnd{State: review.SessionClosed, StopReason: review.StopCancelled})
}

// Fail finishes the session as failed, recording cause.
func (s *Session) Fail(ctx context.Context, reason review.StopReason, cause error) (*review.ScrapeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary != nil {
		return s.summary, nil
	}
	return s.failLocked(ctx, reason, cause)
}

// Summary returns the final session row once the session has finished.
func (s *Session) Summary(context.Context) (*review.ScrapeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return nil, errors.New("session still running")
	}
	return s.summary, nil
}

func (s *Session) failLocked(ctx context.Context, reason review.StopReason, cause error) (*review.ScrapeSession, error) {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	logging.ErrorWithContext(s.logger, "session failed", "session_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorKind, review.Kind(cause)),
		logging.String(logging.FieldErrorHint, "committed batches are kept; rerun the collection to resume"),
	)
	return s.finishLocked(context.WithoutCancel(ctx), reviewstore.SessionEnd{
		State:        review.SessionFailed,
		StopReason:   reason,
		ErrorMessage: message,
	})
}

func (s *Session) finishLocked(ctx context.Context, end reviewstore.SessionEnd) (*review.ScrapeSession, error) {
	if s.pending != nil {
		s.foldLocked(s.pending)
	}
	end.Counts = s.counts
	summary, err := s.store.FinishSession(ctx, s.id, end)
	if err != nil {
		return nil, err
	}
	s.state = end.State
	s.summary = summary
	sessionsFinished.WithLabelValues(string(end.State), string(end.StopReason)).Inc()
	s.logger.Info("session finished",
		logging.String("state", string(end.State)),
		logging.String("stop_reason", string(end.StopReason)),
		logging.Int("new", s.counts.New),
		logging.Int("updated", s.counts.Updated),
		logging.Int("restored", s.counts.Restored),
		logging.Int("unchanged", s.counts.Unchanged),
		logging.Int("soft_deleted", s.counts.SoftDeleted),
		logging.Int("malformed", s.counts.Malformed),
		logging.Int("conflicts", s.counts.Conflicts),
		logging.Duration("duration", time.Since(s.started)),
		logging.String(logging.FieldEventType, "session_finished"),
	)
	return summary, nil
}

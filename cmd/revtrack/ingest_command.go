package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"revtrack/internal/logging"
	"revtrack/internal/preflight"
	"revtrack/internal/review"
	"revtrack/internal/reviewstore"
	"revtrack/internal/session"
)

// lineCollector turns a JSON-lines candidate stream into batches, starting
// a new batch whenever batch_index changes.
type lineCollector struct {
	dec     *json.Decoder
	pending *review.Candidate
	records int
	batches int
	stopped bool
}

func newLineCollector(r io.Reader) *lineCollector {
	return &lineCollector{dec: json.NewDecoder(bufio.NewReader(r))}
}

func (l *lineCollector) read() (*review.Candidate, error) {
	if l.pending != nil {
		c := l.pending
		l.pending = nil
		return c, nil
	}
	var c review.Candidate
	if err := l.dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		// A type mismatch leaves the stream readable; the record is handed
		// on as malformed so the session counts and skips it.
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("record %d: %w", l.records+1, err)
		}
		c.DecodeError = fmt.Sprintf("record %d: %v", l.records+1, err)
	}
	l.records++
	return &c, nil
}

func (l *lineCollector) NextBatch(ctx context.Context) (session.Batch, error) {
	if l.stopped {
		return session.Batch{}, io.EOF
	}
	var batch session.Batch
	for {
		if err := ctx.Err(); err != nil {
			return session.Batch{}, err
		}
		c, err := l.read()
		if errors.Is(err, io.EOF) {
			if len(batch.Candidates) == 0 {
				return session.Batch{}, io.EOF
			}
			l.batches++
			return batch, nil
		}
		if err != nil {
			return session.Batch{}, err
		}
		if len(batch.Candidates) == 0 {
			batch.Index = c.BatchIndex
		} else if c.BatchIndex != batch.Index {
			l.pending = c
			l.batches++
			return batch, nil
		}
		batch.Candidates = append(batch.Candidates, *c)
	}
}

func (l *lineCollector) Stop() { l.stopped = true }

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var (
		sourceURL     string
		mode          string
		stopThreshold int
		minBatchSize  int
		sortBy        string
		sortVerified  bool
		maxReviews    int
		metricsFile   string
		runSync       bool
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <candidates.jsonl>",
		Short: "Feed a JSON-lines candidate file through a collection session",
		Long: "Reads candidate records (one JSON object per line, '-' for stdin), groups\n" +
			"them by batch_index and processes them as one collection session for the\n" +
			"place behind --url.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if sourceURL == "" {
				return errors.New("--url is required")
			}
			req, err := session.RequestFromConfig(cfg, sourceURL)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("mode") {
				if req.Mode, err = review.ParseMode(mode); err != nil {
					return err
				}
			}
			if flags.Changed("stop-threshold") {
				req.StopThreshold = stopThreshold
			}
			if flags.Changed("min-batch-size") {
				req.MinBatchSize = minBatchSize
			}
			if flags.Changed("sort") {
				req.SortCriterion = sortBy
			}
			if flags.Changed("max-reviews") {
				req.MaxReviews = maxReviews
			}
			req.SortVerified = sortVerified

			runCtx := ctx.commandCtx(cmd)
			logger := ctx.ensureLogger()
			if runSync {
				for _, r := range preflight.Failed(preflight.RunAll(runCtx, cfg)) {
					logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
						logging.String("check", r.Name),
						logging.String("detail", r.Detail),
						logging.String(logging.FieldImpact, "sync after ingest may fail"),
					)
				}
			}

			input := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open candidates: %w", err)
				}
				defer f.Close()
				input = f
			}
			collector := newLineCollector(input)

			return ctx.withStore(func(store *reviewstore.Store) error {
				controller := session.NewController(store, ctx.resolver(store), logger)
				summary, runErr := controller.Run(runCtx, req, collector)

				if metricsFile != "" {
					if err := prometheus.WriteToTextfile(metricsFile, prometheus.DefaultGatherer); err != nil {
						logging.WarnWithContext(logger, "metrics file not written", "metrics_write_failed",
							logging.String("path", metricsFile),
							logging.Error(err),
						)
					}
				}
				if summary == nil {
					return runErr
				}

				if asJSON {
					if err := writeJSON(cmd, summary); err != nil {
						return err
					}
				} else {
					renderSessionSummary(cmd.OutOrStdout(), summary, collector.batches)
				}
				if runErr != nil {
					return runErr
				}

				if runSync {
					runner, err := ctx.syncRunner(store)
					if err != nil {
						return err
					}
					defer runner.Close()
					results, err := runner.SyncPlace(runCtx, summary.PlaceID)
					if !asJSON {
						renderSyncResults(cmd.OutOrStdout(), results)
					}
					return err
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sourceURL, "url", "", "Source URL of the place being collected")
	cmd.Flags().StringVar(&mode, "mode", "", "Write mode: new_only, update or full")
	cmd.Flags().IntVar(&stopThreshold, "stop-threshold", 0, "Consecutive fully matched batches before stopping (0 disables)")
	cmd.Flags().IntVar(&minBatchSize, "min-batch-size", 0, "Minimum batch size counted toward early stop")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort criterion the collector used")
	cmd.Flags().BoolVar(&sortVerified, "sort-verified", false, "The collector confirmed the sort criterion took effect")
	cmd.Flags().IntVar(&maxReviews, "max-reviews", 0, "Stop after this many candidates (0 means no cap)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	cmd.Flags().BoolVar(&runSync, "sync", false, "Sync the place to the configured targets after the run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func renderSessionSummary(w io.Writer, s *review.ScrapeSession, batches int) {
	fmt.Fprintf(w, "Session %d for %s: %s (%s)\n", s.ID, s.PlaceID, s.State, s.StopReason)
	if s.ErrorMessage != "" {
		fmt.Fprintf(w, "Error: %s\n", s.ErrorMessage)
	}
	c := s.Counts
	renderTable(w, "", []column{
		numCol("Batches"), numCol("New"), numCol("Updated"), numCol("Restored"),
		numCol("Unchanged"), numCol("Soft-deleted"), numCol("Malformed"), numCol("Conflicts"), col("Duration"),
	}, [][]string{{
		strconv.Itoa(batches), strconv.Itoa(c.New), strconv.Itoa(c.Updated), strconv.Itoa(c.Restored),
		strconv.Itoa(c.Unchanged), strconv.Itoa(c.SoftDeleted), strconv.Itoa(c.Malformed), strconv.Itoa(c.Conflicts),
		s.Duration().Round(time.Millisecond).String(),
	}})
}

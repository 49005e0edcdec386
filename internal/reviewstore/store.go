package reviewstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"revtrack/internal/config"
	"revtrack/internal/logging"
	"revtrack/internal/review"
)

const component = "reviewstore"

// Options configures a Store independently of the config file.
type Options struct {
	// Path is the SQLite database file.
	Path string
	// LockDir holds per-place lock files. Empty disables cross-process locking.
	LockDir string

	BusyTimeout       time.Duration
	BusyRetryAttempts int
	WriteAttempts     int
	LockRetryAttempts int
	LockBackoff       time.Duration
	LockMaxBackoff    time.Duration

	Logger *slog.Logger
	// Now overrides the clock used for timestamps. Tests only.
	Now func() time.Time
}

// Store persists reviews and their bookkeeping in SQLite.
type Store struct {
	db       *sqlx.DB
	path     string
	opts     Options
	sections *writeSections
	logger   *slog.Logger
	now      func() time.Time
}

// OptionsFromConfig derives store options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Path:              cfg.DBPath(),
		LockDir:           cfg.LockDir(),
		BusyTimeout:       time.Duration(cfg.Store.BusyTimeoutMS) * time.Millisecond,
		BusyRetryAttempts: cfg.Store.BusyRetryAttempts,
		WriteAttempts:     cfg.Store.WriteAttempts,
		LockRetryAttempts: cfg.Store.LockRetryAttempts,
		LockBackoff:       time.Duration(cfg.Store.LockBackoffMS) * time.Millisecond,
		LockMaxBackoff:    time.Duration(cfg.Store.LockMaxBackoffMS) * time.Millisecond,
		Logger:            logger,
	}
}

// Open initializes or connects to the review database described by cfg.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenWithOptions(OptionsFromConfig(cfg, logger))
}

// OpenWithOptions opens the database at opts.Path, applies pending
// migrations and refuses to continue on a schema it does not understand.
func OpenWithOptions(opts Options) (*Store, error) {
	opts = opts.withDefaults()
	if opts.Path == "" {
		return nil, review.Wrap(review.ErrStoreUnavailable, component, "open", "database path is empty", nil)
	}

	raw, err := sql.Open("sqlite", buildDSN(opts.Path, opts.BusyTimeout))
	if err != nil {
		return nil, review.Wrap(review.ErrStoreUnavailable, component, "open", opts.Path, err)
	}
	db := sqlx.NewDb(raw, "sqlite")

	ctx, cancel := context.WithTimeout(context.Background(), opts.BusyTimeout+5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classifyError("open", err)
	}

	store := &Store{
		db:       db,
		path:     opts.Path,
		opts:     opts,
		sections: newWriteSections(opts.LockDir, opts.LockRetryAttempts, opts.LockBackoff, opts.LockMaxBackoff),
		logger:   logging.NewComponentLogger(opts.Logger, component),
		now:      opts.Now,
	}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (o Options) withDefaults() Options {
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = 5 * time.Second
	}
	if o.BusyRetryAttempts <= 0 {
		o.BusyRetryAttempts = 5
	}
	if o.WriteAttempts <= 0 {
		o.WriteAttempts = 3
	}
	if o.LockRetryAttempts <= 0 {
		o.LockRetryAttempts = 8
	}
	if o.LockBackoff <= 0 {
		o.LockBackoff = 10 * time.Millisecond
	}
	if o.LockMaxBackoff < o.LockBackoff {
		o.LockMaxBackoff = 50 * o.LockBackoff
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// buildDSN applies pragmas through the connection string so that every
// pooled connection gets them, not just the first one.
func buildDSN(path string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// inTx runs fn inside a single transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// withPlaceWrite runs fn as one transaction inside the place's write section.
func (s *Store) withPlaceWrite(ctx context.Context, placeID, op string, fn func(tx *sqlx.Tx) error) error {
	release, err := s.sections.acquire(ctx, placeID)
	if err != nil {
		if errors.Is(err, review.ErrStoreBusy) {
			busyTotal.WithLabelValues("write_section").Inc()
			logging.WarnWithContext(s.logger, "write section busy", "write_section_busy",
				logging.String(logging.FieldPlaceID, placeID),
				logging.String("operation", op),
				logging.String(logging.FieldErrorKind, review.Kind(err)),
				logging.String(logging.FieldErrorHint, "retry the batch once the other writer finishes"),
				logging.String(logging.FieldImpact, "batch not written"),
			)
		}
		return err
	}
	defer release()
	return s.withWrite(ctx, op, fn)
}

// withWrite runs fn as one transaction, retrying on SQLITE_BUSY.
func (s *Store) withWrite(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	err := retryOnBusy(ctx, s.opts.BusyRetryAttempts, func() error {
		return s.inTx(ctx, fn)
	})
	if isSQLiteBusy(err) {
		busyTotal.WithLabelValues("sqlite").Inc()
	}
	return classifyError(op, err)
}

package reviewstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sys/unix"

	"revtrack/internal/logging"
	"revtrack/internal/review"
)

var requiredTables = []string{
	"places",
	"place_aliases",
	"scrape_sessions",
	"reviews",
	"review_history",
	"sync_checkpoints",
	migrationsTable,
}

// TableCounts holds row counts per relation.
type TableCounts struct {
	Places         int64 `db:"places" json:"places"`
	Aliases        int64 `db:"aliases" json:"aliases"`
	Reviews        int64 `db:"reviews" json:"reviews"`
	DeletedReviews int64 `db:"deleted_reviews" json:"deleted_reviews"`
	Sessions       int64 `db:"sessions" json:"sessions"`
	History        int64 `db:"history" json:"history"`
	Checkpoints    int64 `db:"checkpoints" json:"checkpoints"`
}

// PlaceStats summarizes one place.
type PlaceStats struct {
	PlaceID        string    `json:"place_id"`
	Name           string    `json:"name"`
	ActiveReviews  int64     `json:"active_reviews"`
	DeletedReviews int64     `json:"deleted_reviews"`
	Sessions       int64     `json:"sessions"`
	LastSessionAt  time.Time `json:"last_session_at"`
}

// Stats is the administrative overview of the store.
type Stats struct {
	Counts         TableCounts            `json:"counts"`
	Places         []PlaceStats           `json:"places"`
	RecentSessions []review.ScrapeSession `json:"recent_sessions"`
	DBBytes        int64                  `json:"db_bytes"`
	WALBytes       int64                  `json:"wal_bytes"`
	FreeBytes      uint64                 `json:"free_bytes"`
	Schema         SchemaVersion          `json:"schema"`
}

// HealthReport is the result of CheckHealth.
type HealthReport struct {
	DBPath         string        `json:"db_path"`
	DatabaseExists bool          `json:"database_exists"`
	Readable       bool          `json:"readable"`
	IntegrityOK    bool          `json:"integrity_ok"`
	IntegrityError string        `json:"integrity_error,omitempty"`
	MissingTables  []string      `json:"missing_tables,omitempty"`
	Schema         SchemaVersion `json:"schema"`
	Error          string        `json:"error,omitempty"`
}

// Healthy reports whether every check passed.
func (h HealthReport) Healthy() bool {
	return h.DatabaseExists && h.Readable && h.IntegrityOK && len(h.MissingTables) == 0 && h.Schema.Current()
}

// PurgeReport lists what PurgePlace removed, or would remove on a dry run.
type PurgeReport struct {
	PlaceID     string `db:"-" json:"place_id"`
	DryRun      bool   `db:"-" json:"dry_run"`
	Aliases     int64  `db:"aliases" json:"aliases"`
	Reviews     int64  `db:"reviews" json:"reviews"`
	History     int64  `db:"history" json:"history"`
	Sessions    int64  `db:"sessions" json:"sessions"`
	Checkpoints int64  `db:"checkpoints" json:"checkpoints"`
}

// SchemaVersion reads the applied migration level.
func (s *Store) SchemaVersion(ctx context.Context) (SchemaVersion, error) {
	latest, err := LatestSchemaVersion()
	if err != nil {
		return SchemaVersion{}, err
	}
	out := SchemaVersion{Latest: latest}
	var row struct {
		Version int64 `db:"version"`
		Dirty   bool  `db:"dirty"`
	}
	err = s.db.GetContext(ctx, &row, `SELECT version, dirty FROM `+migrationsTable+` LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return out, classifyError("schema version", err)
	}
	out.Version = uint(row.Version)
	out.Dirty = row.Dirty
	return out, nil
}

func (s *Store) tableCounts(ctx context.Context) (TableCounts, error) {
	var counts TableCounts
	err := s.db.GetContext(ctx, &counts, `SELECT
  (SELECT COUNT(1) FROM places) AS places,
  (SELECT COUNT(1) FROM place_aliases) AS aliases,
  (SELECT COUNT(1) FROM reviews) AS reviews,
  (SELECT COUNT(1) FROM reviews WHERE status = 'soft_deleted') AS deleted_reviews,
  (SELECT COUNT(1) FROM scrape_sessions) AS sessions,
  (SELECT COUNT(1) FROM review_history) AS history,
  (SELECT COUNT(1) FROM sync_checkpoints) AS checkpoints`)
	return counts, err
}

// Stats gathers table counts, per-place counts, file sizes and the most
// recent sessions.
func (s *Store) Stats(ctx context.Context, recent int) (Stats, error) {
	var stats Stats
	counts, err := s.tableCounts(ctx)
	if err != nil {
		return stats, classifyError("stats", err)
	}
	stats.Counts = counts

	var rows []struct {
		PlaceID       string         `db:"place_id"`
		Name          sql.NullString `db:"name"`
		Active        int64          `db:"active_reviews"`
		Deleted       int64          `db:"deleted_reviews"`
		Sessions      int64          `db:"sessions"`
		LastSessionAt sql.NullString `db:"last_session_at"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT p.place_id, p.name, p.last_session_at,
  (SELECT COUNT(1) FROM reviews r WHERE r.place_id = p.place_id AND r.status = 'active') AS active_reviews,
  (SELECT COUNT(1) FROM reviews r WHERE r.place_id = p.place_id AND r.status = 'soft_deleted') AS deleted_reviews,
  (SELECT COUNT(1) FROM scrape_sessions ss WHERE ss.place_id = p.place_id) AS sessions
FROM places p ORDER BY p.place_id`); err != nil {
		return stats, classifyError("stats", err)
	}
	for _, row := range rows {
		stats.Places = append(stats.Places, PlaceStats{
			PlaceID:        row.PlaceID,
			Name:           row.Name.String,
			ActiveReviews:  row.Active,
			DeletedReviews: row.Deleted,
			Sessions:       row.Sessions,
			LastSessionAt:  parseTimeString(row.LastSessionAt),
		})
	}

	if recent > 0 {
		sessions, err := s.ListSessions(ctx, SessionFilter{Limit: recent})
		if err != nil {
			return stats, err
		}
		stats.RecentSessions = sessions
	}

	stats.DBBytes = fileSize(s.path)
	stats.WALBytes = fileSize(s.path + "-wal")
	var fsStat unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(s.path), &fsStat); err == nil {
		stats.FreeBytes = fsStat.Bavail * uint64(fsStat.Bsize)
	}

	schema, err := s.SchemaVersion(ctx)
	if err != nil {
		return stats, err
	}
	stats.Schema = schema
	return stats, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// CheckHealth returns diagnostic information about the review database.
func (s *Store) CheckHealth(ctx context.Context) (HealthReport, error) {
	health := HealthReport{DBPath: s.path}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat review database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("review database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, classifyError("ping", err)
	}
	health.Readable = true

	var tables []string
	if err := s.db.SelectContext(connCtx, &tables, `SELECT name FROM sqlite_master WHERE type = 'table'`); err != nil {
		health.Error = err.Error()
		return health, classifyError("list tables", err)
	}
	for _, name := range requiredTables {
		if !slices.Contains(tables, name) {
			health.MissingTables = append(health.MissingTables, name)
		}
	}

	var results []string
	if err := s.db.SelectContext(connCtx, &results, `PRAGMA quick_check`); err != nil {
		health.Error = err.Error()
		return health, classifyError("integrity check", err)
	}
	health.IntegrityOK = len(results) == 1 && strings.EqualFold(results[0], "ok")
	if !health.IntegrityOK {
		health.IntegrityError = strings.Join(results, "; ")
	}

	schema, err := s.SchemaVersion(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.Schema = schema
	return health, nil
}

// Vacuum rebuilds the database file and checkpoints the WAL.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return classifyError("vacuum", err)
	}
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return classifyError("wal checkpoint", err)
	}
	return nil
}

// PurgePlace removes a place with its aliases, reviews, history, sessions
// and checkpoints. With dryRun it only reports what would go.
func (s *Store) PurgePlace(ctx context.Context, placeID string, dryRun bool) (PurgeReport, error) {
	report := PurgeReport{PlaceID: placeID, DryRun: dryRun}
	count := func(q sqlx.QueryerContext) error {
		if err := placeExists(ctx, q, placeID); err != nil {
			return err
		}
		return sqlx.GetContext(ctx, q, &report, `SELECT
  (SELECT COUNT(1) FROM place_aliases WHERE place_id = ?1) AS aliases,
  (SELECT COUNT(1) FROM reviews WHERE place_id = ?1) AS reviews,
  (SELECT COUNT(1) FROM review_history WHERE place_id = ?1) AS history,
  (SELECT COUNT(1) FROM scrape_sessions WHERE place_id = ?1) AS sessions,
  (SELECT COUNT(1) FROM sync_checkpoints WHERE place_id = ?1) AS checkpoints`, placeID)
	}

	if dryRun {
		if err := count(s.db); err != nil {
			return report, classifyError("purge place", err)
		}
		return report, nil
	}

	err := s.withPlaceWrite(ctx, placeID, "purge place", func(tx *sqlx.Tx) error {
		if err := count(tx); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM places WHERE place_id = ?`, placeID)
		return err
	})
	if err != nil {
		return report, err
	}
	s.logger.Info("place purged",
		logging.String(logging.FieldPlaceID, placeID),
		logging.Int64("reviews", report.Reviews),
		logging.Int64("history", report.History),
		logging.String(logging.FieldEventType, "place_purged"),
	)
	return report, nil
}

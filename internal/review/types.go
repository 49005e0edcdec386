package review

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle flag of a stored review.
type Status string

const (
	StatusActive      Status = "active"
	StatusSoftDeleted Status = "soft_deleted"
)

// Classification is the outcome of comparing a candidate with stored state.
type Classification string

const (
	ClassNew       Classification = "new"
	ClassUnchanged Classification = "unchanged"
	ClassUpdated   Classification = "updated"
	ClassRestored  Classification = "restored"
)

// ChangeType labels an audit trail row.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeUpdated  ChangeType = "updated"
	ChangeRestored ChangeType = "restored"
	ChangeDeleted  ChangeType = "deleted"
)

// Mode is the write policy of a collection session.
type Mode string

const (
	ModeNewOnly Mode = "new_only"
	ModeUpdate  Mode = "update"
	ModeFull    Mode = "full"
)

// ParseMode resolves a configured mode string to the closed Mode enum.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeNewOnly:
		return ModeNewOnly, nil
	case ModeUpdate, "":
		return ModeUpdate, nil
	case ModeFull:
		return ModeFull, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want new_only, update or full)", value)
	}
}

// Writes reports whether a candidate with the given classification is
// persisted under this mode.
func (m Mode) Writes(class Classification) bool {
	switch m {
	case ModeNewOnly:
		return class == ClassNew
	case ModeFull:
		return true
	default:
		return class != ClassUnchanged
	}
}

// StopReason records why a session ended.
type StopReason string

const (
	StopExhausted           StopReason = "exhausted"
	StopThresholdReached    StopReason = "threshold_reached"
	StopSortUnverifiedGuard StopReason = "sort_unverified_guard"
	StopMaxReviews          StopReason = "max_reviews"
	StopCancelled           StopReason = "cancelled"
	StopStoreFailure        StopReason = "store_failure"
)

// SessionState tracks a collection run's lifecycle.
type SessionState string

const (
	SessionOpen    SessionState = "open"
	SessionRunning SessionState = "running"
	SessionClosed  SessionState = "closed"
	SessionFailed  SessionState = "failed"
)

// Finished reports whether the session reached a terminal state.
func (s SessionState) Finished() bool {
	return s == SessionClosed || s == SessionFailed
}

// SessionKind distinguishes collection runs from administrative edits.
type SessionKind string

const (
	KindCollect SessionKind = "collect"
	KindAdmin   SessionKind = "admin"
)

// Place is a real-world entity whose reviews are tracked.
type Place struct {
	PlaceID       string
	CanonicalURL  string
	Name          string
	Latitude      *float64
	Longitude     *float64
	CreatedAt     time.Time
	LastSessionAt time.Time
	ReviewCount   int
}

// PlaceAlias maps one observed URL variant to a place.
type PlaceAlias struct {
	AliasKey     string
	PlaceID      string
	SourceURL    string
	CanonicalURL string
	CreatedAt    time.Time
}

// Review is one stored review.
type Review struct {
	PlaceID                 string            `json:"place_id"`
	ReviewID                string            `json:"review_id"`
	Author                  string            `json:"author"`
	AuthorURL               string            `json:"author_url,omitempty"`
	Rating                  float64           `json:"rating"`
	TextByLanguage          map[string]string `json:"text_by_language"`
	OwnerResponseByLanguage map[string]string `json:"owner_response_by_language"`
	Likes                   int               `json:"likes"`
	ImageURLs               []string          `json:"image_urls"`
	ProfileImageURL         string            `json:"profile_image_url,omitempty"`
	RawDate                 string            `json:"raw_date_string"`
	ParsedDate              string            `json:"parsed_date,omitempty"`
	ContentHash             string            `json:"content_hash"`
	Version                 int64             `json:"version"`
	Status                  Status            `json:"status"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
	LastSessionID           int64             `json:"last_session_id"`
}

// Deleted reports whether the review is soft-deleted.
func (r Review) Deleted() bool {
	return r.Status == StatusSoftDeleted
}

// HistoryEntry is one field-level audit row.
type HistoryEntry struct {
	ID         int64      `json:"id"`
	PlaceID    string     `json:"place_id"`
	ReviewID   string     `json:"review_id"`
	SessionID  int64      `json:"session_id"`
	FieldName  string     `json:"field_name"`
	OldValue   string     `json:"old_value"`
	NewValue   string     `json:"new_value"`
	ChangeType ChangeType `json:"change_type"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// Counts tallies classifications for a session or batch.
type Counts struct {
	New         int `json:"new"`
	Updated     int `json:"updated"`
	Restored    int `json:"restored"`
	Unchanged   int `json:"unchanged"`
	SoftDeleted int `json:"soft_deleted"`
	Malformed   int `json:"malformed"`
	Conflicts   int `json:"conflicts"`
}

// Add records one classification.
func (c *Counts) Add(class Classification) {
	switch class {
	case ClassNew:
		c.New++
	case ClassUpdated:
		c.Updated++
	case ClassRestored:
		c.Restored++
	case ClassUnchanged:
		c.Unchanged++
	}
}

// Merge adds other into c.
func (c *Counts) Merge(other Counts) {
	c.New += other.New
	c.Updated += other.Updated
	c.Restored += other.Restored
	c.Unchanged += other.Unchanged
	c.SoftDeleted += other.SoftDeleted
	c.Malformed += other.Malformed
	c.Conflicts += other.Conflicts
}

// Seen returns how many well-formed candidates were classified.
func (c Counts) Seen() int {
	return c.New + c.Updated + c.Restored + c.Unchanged + c.Conflicts
}

// ScrapeSession is one collection run (or administrative edit) against a place.
type ScrapeSession struct {
	ID            int64
	PlaceID       string
	Kind          SessionKind
	Mode          Mode
	State         SessionState
	SourceURL     string
	SortCriterion string
	SortVerified  bool
	Counts        Counts
	StopReason    StopReason
	ErrorMessage  string
	StartedAt     time.Time
	EndedAt       time.Time
}

// Duration returns the wall-clock length of a finished session.
func (s ScrapeSession) Duration() time.Duration {
	if s.EndedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// SyncStatus is the outcome of the most recent push to a target.
type SyncStatus string

const (
	SyncOK    SyncStatus = "ok"
	SyncError SyncStatus = "error"
)

// SyncCheckpoint marks how far a downstream target has consumed a place.
type SyncCheckpoint struct {
	PlaceID       string
	Target        string
	LastSessionID int64
	SyncedAt      time.Time
	Status        SyncStatus
	AttemptCount  int
	LastError     string
}

// Package reviewstore persists places, reviews, collection sessions, the
// field-level audit trail and sync checkpoints in SQLite.
//
// The Store is the single process-wide handle on the database file. It is
// opened once at startup, shared by every component, and closed once at
// shutdown. Reads run concurrently under WAL; every write transaction for a
// place runs inside that place's write section (an in-process mutex plus a
// lock file, acquired with bounded exponential backoff) so that at most one
// write per place is in flight.
//
// Review writes use optimistic concurrency: the row version read before the
// merge must still match at commit time. Upsert reloads and retries a bounded
// number of times before reporting review.ErrWriteConflict. History rows are
// written in the same transaction as the review they describe.
//
// The schema is managed by golang-migrate from the embedded migrations
// directory; a dirty or newer-than-known schema refuses to open with
// review.ErrSchemaMismatch.
package reviewstore

// Package syncer pushes review deltas to downstream targets.
//
// A Runner asks the store for the reviews changed since a target's
// checkpoint, hands the delta to the target, and advances the checkpoint
// only after the target confirms delivery. A crash in between re-sends the
// same delta on the next run, so every target applies records keyed by
// place and review id and tolerates duplicates. Soft-deleted reviews are
// delivered as deletions: removed from JSON snapshots, tombstoned on Kafka
// and dropped from the Redis hash.
package syncer

// Package review defines the review domain model and the pure parts of the
// change-tracking engine: candidate validation, content hashing, change
// classification, field merging, and field-level diffs for the audit trail.
//
// Nothing in this package performs I/O. The store (internal/reviewstore) owns
// lookups and transactions and calls into Classify, Merge and Diff while it
// holds a place's write section.
package review

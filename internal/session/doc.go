// Package session drives one collection run against one place.
//
// A Controller opens a Session for a source URL, feeds it batches of
// candidate records in delivery order, and closes it when the collector is
// exhausted, asked to stop, or the store fails. Each batch is classified
// candidate by candidate through the review store; the per-batch verdict
// feeds the early-stop policy:
//
//   - a batch is fully matched when every well-formed member is Unchanged
//     and it has at least MinBatchSize members;
//   - StopThreshold consecutive fully matched batches stop the collector;
//   - the policy is disabled when the source order is not verified as
//     newest-first, and the session records sort_unverified_guard instead.
//
// Store contention (review.ErrStoreBusy) leaves the session running so the
// batch can be delivered again. Storage failures end the session as failed;
// progress already committed stays in place.
package session

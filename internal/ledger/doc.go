// package ledger provides the persisted download ledger backing reconciliation.
//
// The ledger is the sole source of truth for "already handled": an item with a
// succeeded entry is never resubmitted for download. Entries are upserted by
// item identifier and never deleted during normal operation.
package ledger

// Package history models the append-only ledger of per-order stage transitions.
//
// Every stage entry appends a Record holding a snapshot of the workflow context.
// Records that suspend carry the continuation token the order awaits; they are
// closed (completedAt stamped) when the order leaves the stage. Record
// identifiers are fixed-width UTC timestamps, strictly increasing per order.
package history

// Package store persists scan history, the identification cache, the daily
// budget ledger, and reference-card fingerprints in SQLite. Writers are
// serialized by sqlite itself; concurrent scans share one store.
package store

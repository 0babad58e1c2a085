// Package journal persists executed tool-call batches to SQLite.
//
// Invariants:
// - One row per batch, one row per call, written in a single transaction.
// - Error text is redacted and truncated before it is stored.
// - Recording is best-effort from the dispatcher's point of view; the
//   journal never fails a batch.
//
// Usage:
//
//	j, _ := journal.Open(journal.Config{Path: "/tmp/lanes/journal.db"})
//	defer j.Close()
//	d, _ := dispatch.NewDispatcher(reg, dispatch.Options{Recorder: j})
package journal

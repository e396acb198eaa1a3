// Package audit maintains the append-only trail of security and content
// actions: who did what, to which resource, from where, and when.
//
// Entries are immutable once written. The package exposes [Recorder.Record]
// for security-critical events (login, logout, failed login, access denial),
// which does not return until the entry is durably queued behind the single
// writer, and [Recorder.RecordAsync] for content-mutation events, which is
// bounded and drop-counted under backpressure. Both paths funnel through one
// consumer goroutine so entries from the same actor land in submission order.
//
// Storage is a capped Redis list: newest entries first, oldest trimmed once
// the retention limit is reached. [Store.Query] and [Store.Statistics] read
// the list; there is no update or delete surface.
//
// # Architecture boundaries
//
// This package owns entry persistence, querying, and the buffered write
// pipeline. It does NOT decide which actions are auditable or authorize
// access to the trail — callers do.
//
// # What this package must NOT do
//
//   - Import authcore, session, or middleware (no upward imports).
//   - Mutate or delete stored entries on behalf of feature code.
//   - Block request handlers on [Recorder.RecordAsync].
package audit

// Package session provides Redis-backed session persistence and a compact
// binary session encoding.
//
// Sessions expire through Redis key TTL; [Store.Get] additionally checks the
// encoded expiry so a session past its lifetime is treated as absent even if
// the key lingers. A per-account index set supports bulk destruction and the
// janitor's stale-member sweep.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model.
// It does NOT interpret bearer credentials, resolve accounts, or enforce
// authorization policy — those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authcore, jwt, or middleware (no upward imports).
//   - Store plaintext secrets in [Session] fields.
package session

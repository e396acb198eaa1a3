// Package authcore is the identity and access-control core of the Model
// Portfolio CMS: passwordless email-code login, Redis-backed sessions with a
// signed bearer credential, a canonical role hierarchy, and an append-only
// audit trail.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the [IdentityStore] and [Notifier] integration points, and value types
// (Account, Identity, MetricsSnapshot). Login-code storage, the request
// throttle, and ID generation live behind unexported types or under internal/
// and are never exported.
//
// Subpackages own single concerns: session (Redis session persistence), jwt
// (bearer credential signing), role (the role hierarchy), audit (the audit
// trail recorder), middleware (the HTTP authorization gate), identity (shipped
// IdentityStore implementations), notify (shipped Notifier implementations),
// and httpapi (the JSON endpoints).
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or record encodings in its API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Security contract
//
// One-time codes are stored only as bcrypt hashes and compared with the same
// primitive. Every check-then-act sequence (outstanding-code check, attempt
// increment) is a single conditional Redis operation, so two concurrent
// requests can never both issue a code or both slip past the attempt cap.
package authcore

// Package jwt signs and parses the bearer credential: an HS256 token carrying
// {account id, email, session id, role} plus registered claims.
//
// A parsed credential alone is never sufficient: the Engine additionally
// requires the embedded session id to resolve to a live session, which is what
// makes an otherwise stateless token revocable.
//
// # Architecture boundaries
//
// This package owns signing, parsing, and claim-shape validation. It does NOT
// check session liveness, load accounts, or make authorization decisions.
//
// # What this package must NOT do
//
//   - Import authcore, session, or middleware (no upward imports).
//   - Accept any signing algorithm other than the configured one.
//   - Embed secrets or permission data in claims.
package jwt

// Package middleware provides the authorization gate: an HTTP middleware
// that intercepts every request, resolves the caller's bearer credential,
// and permits or denies by role hierarchy against an ordered route table.
//
// The gate checks the public-path list first, then extracts the credential
// (cookie before Authorization header), resolves it through the Engine, and
// compares the caller's role to the most specific matching rule. API paths
// get structured JSON rejections; page paths get redirects.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls and route-table
// lookups. Credential verification is delegated to
// [authcore.Engine.ResolveCredential] entirely.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the Engine).
//   - Access Redis (the Engine handles I/O).
//   - Distinguish bad-signature from missing-session failures outward.
package middleware

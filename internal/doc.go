// Package internal contains helper utilities that are intentionally private
// to authcore: secure random ID and one-time-code generation.
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal

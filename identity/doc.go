// Package identity ships the two [authcore.IdentityStore] implementations:
// an in-memory store for development and tests, and a Postgres store backed
// by a pgx connection pool for production deployments.
//
// Both stores key accounts by case-insensitive email and assign the zero
// timestamps on create. Neither hard-deletes accounts.
package identity

package authcore

import (
	"context"
	"time"

	"github.com/modelfolio/authcore/role"
	"github.com/modelfolio/authcore/session"
)

// CodePurpose distinguishes what a one-time code proves. The single-
// outstanding-code invariant is scoped per (email, purpose).
type CodePurpose string

const (
	// PurposeLogin is an exported constant covering the passwordless
	// login flow; it is the only purpose the Engine issues today.
	PurposeLogin CodePurpose = "login"
)

// Account is the durable identity record keyed by email. Emails compare
// case-insensitively; stores persist them lowercased.
//
// Accounts are created implicitly on the first code request for an unknown
// email and are never hard-deleted by this module.
type Account struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"name,omitempty"`
	Role             role.Role `json:"role"`
	EmailVerified    bool      `json:"isEmailVerified"`
	TwoFactorEnabled bool      `json:"is2FAEnabled"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	LastLoginAt      time.Time `json:"lastLoginAt,omitempty"`
}

// IdentityStore is the integration point callers implement to persist
// accounts. The shipped implementations live in the identity package
// (in-memory and pgx-backed Postgres).
//
// GetAccountByEmail and GetAccountByID return [ErrAccountNotFound] for
// unknown keys. RecordVerifiedLogin sets the email-verified flag and the
// last-login timestamp in one update and returns the resulting record.
type IdentityStore interface {
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByID(ctx context.Context, id string) (Account, error)
	CreateAccount(ctx context.Context, acct Account) (Account, error)
	RecordVerifiedLogin(ctx context.Context, id string, at time.Time) (Account, error)
}

// Notifier delivers the plaintext one-time code out-of-band. The Engine only
// consumes the success/failure signal; a delivery failure surfaces as
// [ErrNotificationFailed] and leaves the stored code valid for retry.
type Notifier interface {
	SendCode(ctx context.Context, email, displayName, code string) error
}

// Identity is the resolved caller identity attached to a request after the
// bearer credential and its referenced session have both been verified.
// It is read-only and request-scoped; never cache it across requests.
type Identity struct {
	Account Account
	Session *session.Session
}

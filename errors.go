package authcore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEmail is returned when the submitted email fails shape validation.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrAccountNotFound is returned when no account exists for the given email or id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountDisabled is returned when the account exists but may not authenticate.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrCodeOutstanding is returned when an unused, unexpired code already
	// exists for the (email, purpose) pair. The caller must wait for expiry.
	ErrCodeOutstanding = errors.New("verification code already outstanding")
	// ErrNoActiveCode is returned when no outstanding code exists, including
	// replay of an already-consumed code.
	ErrNoActiveCode = errors.New("no active verification code")
	// ErrCodeInvalid is returned on a code mismatch. Use [RemainingAttempts]
	// to recover the attempt budget left on the outstanding code.
	ErrCodeInvalid = errors.New("invalid verification code")
	// ErrAttemptsExceeded is returned once the attempt cap is reached; the
	// code is dead until its TTL elapses and a new one is requested.
	ErrAttemptsExceeded = errors.New("verification attempts exceeded")
	// ErrNotificationFailed is returned when the Notifier could not deliver
	// the code. The stored code stays valid for its TTL.
	ErrNotificationFailed = errors.New("code notification failed")
	// ErrCodeUnavailable is returned when the code store backend is unreachable.
	ErrCodeUnavailable = errors.New("code store unavailable")
	// ErrRequestThrottled is returned by the optional per-IP request throttle.
	ErrRequestThrottled = errors.New("code requests throttled")
	// ErrCredentialInvalid is the single externally visible resolution
	// failure: bad signature, expired token, or missing/expired session.
	// Callers must not distinguish which check failed.
	ErrCredentialInvalid = errors.New("invalid credential")
	// ErrSessionNotFound is returned by session destruction paths when the
	// session id does not resolve. Resolve never surfaces it.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionUnavailable is returned when the session backend is unreachable.
	ErrSessionUnavailable = errors.New("session store unavailable")
	// ErrEngineNotReady is returned when the Engine is missing a dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// invalidCodeError carries the remaining attempt budget alongside
// ErrCodeInvalid so HTTP responses can surface remainingAttempts.
type invalidCodeError struct {
	remaining int
}

func (e *invalidCodeError) Error() string {
	return fmt.Sprintf("invalid verification code (%d attempts remaining)", e.remaining)
}

func (e *invalidCodeError) Is(target error) bool {
	return target == ErrCodeInvalid
}

// RemainingAttempts extracts the attempt budget from an [ErrCodeInvalid]
// returned by [Engine.VerifyCode]. ok is false for any other error.
func RemainingAttempts(err error) (int, bool) {
	var ice *invalidCodeError
	if errors.As(err, &ice) {
		return ice.remaining, true
	}
	return 0, false
}

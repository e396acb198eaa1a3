package authcore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelfolio/authcore/audit"
	"github.com/modelfolio/authcore/internal"
	"github.com/modelfolio/authcore/role"
	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > 254 || !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// RequestCode issues a one-time login code for email and hands the plaintext
// to the Notifier. Unknown emails are provisioned as fresh viewer accounts.
//
// At most one code may be outstanding per (email, purpose): a second request
// while one is live fails with [ErrCodeOutstanding] and does not replace it.
// Notifier failure surfaces as [ErrNotificationFailed] but leaves the stored
// code valid until its TTL, so delivery can be retried out of band.
func (e *Engine) RequestCode(ctx context.Context, email string) (Account, error) {
	if e == nil || e.codeStore == nil || e.identity == nil || e.notifier == nil {
		return Account{}, ErrEngineNotReady
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return Account{}, err
	}

	if err := e.codeLimiter.CheckRequest(ctx, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, errCodeRateLimited) {
			e.metricInc(MetricCodeThrottled)
			return Account{}, ErrRequestThrottled
		}
		return Account{}, errors.Join(ErrCodeUnavailable, err)
	}

	acct, err := e.identity.GetAccountByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		acct, err = e.identity.CreateAccount(ctx, Account{
			ID:               uuid.NewString(),
			Email:            email,
			Role:             role.Viewer,
			EmailVerified:    false,
			TwoFactorEnabled: true,
		})
		if err != nil {
			return Account{}, errors.Join(ErrCodeUnavailable, err)
		}
		e.metricInc(MetricAccountProvisioned)
	case err != nil:
		return Account{}, errors.Join(ErrCodeUnavailable, err)
	}

	code, err := internal.NewOTP(e.config.Codes.Digits)
	if err != nil {
		return Account{}, errors.Join(ErrCodeUnavailable, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), e.config.Codes.BcryptCost)
	if err != nil {
		return Account{}, errors.Join(ErrCodeUnavailable, err)
	}

	record := &oneTimeCodeRecord{
		AccountID: acct.ID,
		Hash:      hash,
		Attempts:  0,
		ExpiresAt: time.Now().Add(e.config.Codes.TTL).Unix(),
	}

	if err := e.codeStore.Issue(ctx, email, PurposeLogin, record, e.config.Codes.TTL); err != nil {
		if errors.Is(err, errCodeAlreadyExists) {
			e.metricInc(MetricCodeOutstandingRejected)
			return Account{}, ErrCodeOutstanding
		}
		return Account{}, errors.Join(ErrCodeUnavailable, err)
	}

	if err := e.notifier.SendCode(ctx, acct.Email, acct.DisplayName, code); err != nil {
		e.metricInc(MetricNotificationFailure)
		return acct, errors.Join(ErrNotificationFailed, err)
	}

	e.metricInc(MetricCodeRequested)
	return acct, nil
}

// VerifyCode checks submitted against the outstanding code for email.
//
// On match the code is consumed (replay fails [ErrNoActiveCode]), the
// account's email-verified flag and last-login timestamp are updated, and
// the verified account is returned. On mismatch the attempt counter moves up
// and the error carries the remaining budget via [RemainingAttempts]. Once
// the budget is spent every further submission fails [ErrAttemptsExceeded]
// until the code's TTL elapses.
func (e *Engine) VerifyCode(ctx context.Context, email, submitted string) (Account, error) {
	if e == nil || e.codeStore == nil || e.identity == nil {
		return Account{}, ErrEngineNotReady
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return Account{}, err
	}
	if _, err := e.identity.GetAccountByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, errors.Join(ErrCodeUnavailable, err)
	}

	record, err := e.codeStore.Consume(ctx, email, PurposeLogin, submitted, e.config.Codes.MaxAttempts)
	switch {
	case errors.Is(err, errCodeNotFound):
		return Account{}, ErrNoActiveCode
	case errors.Is(err, errCodeAttemptsExhausted):
		e.metricInc(MetricVerifyAttemptsExceeded)
		e.recordSecurity(ctx, audit.FailedLoginEntry(email, clientIPFromContext(ctx), userAgentFromContext(ctx)))
		return Account{}, ErrAttemptsExceeded
	case errors.Is(err, errCodeSecretMismatch):
		return Account{}, e.failVerification(ctx, email, record)
	case err != nil:
		return Account{}, errors.Join(ErrCodeUnavailable, err)
	}

	acct, err := e.identity.RecordVerifiedLogin(ctx, record.AccountID, time.Now())
	if err != nil {
		return Account{}, errors.Join(ErrCodeUnavailable, err)
	}

	e.metricInc(MetricVerifySuccess)
	return acct, nil
}

// failVerification records the failed attempt and builds the mismatch error
// carrying the budget left on the outstanding record.
func (e *Engine) failVerification(ctx context.Context, email string, record *oneTimeCodeRecord) error {
	e.metricInc(MetricVerifyFailure)
	e.recordSecurity(ctx, audit.FailedLoginEntry(email, clientIPFromContext(ctx), userAgentFromContext(ctx)))

	remaining := 0
	if record != nil {
		remaining = e.config.Codes.MaxAttempts - int(record.Attempts)
		if remaining < 0 {
			remaining = 0
		}
	}
	return &invalidCodeError{remaining: remaining}
}

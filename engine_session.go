package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/modelfolio/authcore/audit"
	"github.com/modelfolio/authcore/internal"
	"github.com/modelfolio/authcore/session"
)

// CreateSession persists a fresh authenticated session for acct. Existing
// sessions are left alone: concurrent sessions per account are allowed.
// Caller IP and user agent are taken from the context when attached via
// [WithClientIP] and [WithUserAgent].
//
// The successful login is recorded on the audit trail before returning.
func (e *Engine) CreateSession(ctx context.Context, acct Account) (*session.Session, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, errors.Join(ErrSessionUnavailable, err)
	}

	now := time.Now()
	sess := &session.Session{
		SessionID:         sid.String(),
		AccountID:         acct.ID,
		Email:             acct.Email,
		Role:              acct.Role.String(),
		Authenticated:     true,
		TwoFactorVerified: true,
		IP:                clientIPFromContext(ctx),
		UserAgent:         userAgentFromContext(ctx),
		CreatedAt:         now.Unix(),
		ExpiresAt:         now.Add(e.config.Session.TTL).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess); err != nil {
		return nil, errors.Join(ErrSessionUnavailable, err)
	}

	e.metricInc(MetricSessionCreated)
	e.recordSecurity(ctx, audit.LoginEntry(acct.ID, acct.Email, acct.Role.String(), sess.IP, sess.UserAgent))

	return sess, nil
}

// IssueCredential signs a bearer credential referencing sess. The credential
// expires together with the session; it is honored only while the session
// still resolves, which is what makes it revocable.
func (e *Engine) IssueCredential(sess *session.Session, acct Account) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}
	return e.jwtManager.Create(acct.ID, acct.Email, sess.SessionID, acct.Role.String())
}

// ResolveCredential verifies a bearer credential end to end: signature and
// registered claims first, then the referenced session, then the account.
// Every failure collapses into [ErrCredentialInvalid]; callers cannot tell
// a forged token from an expired session, and must not try.
func (e *Engine) ResolveCredential(ctx context.Context, credential string) (*Identity, error) {
	if e == nil || e.jwtManager == nil || e.sessionStore == nil || e.identity == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(credential)
	if err != nil {
		e.metricInc(MetricResolveFailure)
		return nil, ErrCredentialInvalid
	}

	sess, err := e.sessionStore.Get(ctx, claims.SID)
	if err != nil {
		e.metricInc(MetricResolveFailure)
		return nil, ErrCredentialInvalid
	}
	if sess.AccountID != claims.UID {
		e.metricInc(MetricResolveFailure)
		return nil, ErrCredentialInvalid
	}

	acct, err := e.identity.GetAccountByID(ctx, claims.UID)
	if err != nil {
		e.metricInc(MetricResolveFailure)
		return nil, ErrCredentialInvalid
	}

	e.metricInc(MetricResolveSuccess)
	return &Identity{Account: acct, Session: sess}, nil
}

// DestroySession deletes the session with the given id. Destroying an
// absent session returns [ErrSessionNotFound] so callers can log the
// oddity, but logout flows treat that as success.
func (e *Engine) DestroySession(ctx context.Context, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	sess, err := e.sessionStore.Get(ctx, sessionID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		// Still clear any lingering record under the id.
		if delErr := e.sessionStore.Delete(ctx, sessionID, ""); delErr != nil {
			return errors.Join(ErrSessionUnavailable, delErr)
		}
		return ErrSessionNotFound
	case err != nil:
		return errors.Join(ErrSessionUnavailable, err)
	}

	if err := e.sessionStore.Delete(ctx, sessionID, sess.AccountID); err != nil {
		return errors.Join(ErrSessionUnavailable, err)
	}

	e.metricInc(MetricSessionDestroyed)
	e.recordSecurity(ctx, audit.LogoutEntry(sess.AccountID, sess.Email, sess.Role, clientIPFromContext(ctx), userAgentFromContext(ctx)))
	return nil
}

// DestroyAllForAccount revokes every live session belonging to the account
// and returns how many were removed.
func (e *Engine) DestroyAllForAccount(ctx context.Context, accountID string) (int, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}

	removed, err := e.sessionStore.DeleteAllForAccount(ctx, accountID)
	if err != nil {
		return 0, errors.Join(ErrSessionUnavailable, err)
	}

	if removed > 0 {
		e.metricInc(MetricSessionDestroyedBulk)
	}
	return removed, nil
}

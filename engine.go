package authcore

import (
	"context"

	"github.com/modelfolio/authcore/audit"
	"github.com/modelfolio/authcore/jwt"
	"github.com/modelfolio/authcore/session"
	"go.uber.org/zap"
)

// Engine is the identity and access-control core: it issues and verifies
// one-time login codes, converts verified codes into sessions with signed
// bearer credentials, resolves credentials on every request, and records
// the audit trail.
//
// Engine instances are built once via [Builder] and treated as immutable.
type Engine struct {
	config       Config
	identity     IdentityStore
	notifier     Notifier
	codeStore    *oneTimeCodeStore
	codeLimiter  *codeRequestLimiter
	sessionStore *session.Store
	jwtManager   *jwt.Manager
	auditStore   *audit.Store
	recorder     *audit.Recorder
	metrics      *Metrics
	janitor      *janitor
	logger       *zap.Logger
}

// Close stops the janitor and drains the audit recorder. The Engine must not
// be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.janitor != nil {
		e.janitor.Stop()
	}
	if e.recorder != nil {
		e.recorder.Close()
	}
}

// Config returns a copy of the Engine's effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Metrics exposes the Engine's counters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// Auditor exposes the trail's write side for feature modules recording their
// own content actions.
func (e *Engine) Auditor() *audit.Recorder {
	if e == nil {
		return nil
	}
	return e.recorder
}

// AuditLogs exposes the trail's read side (query and statistics).
func (e *Engine) AuditLogs() *audit.Store {
	if e == nil {
		return nil
	}
	return e.auditStore
}

// Identity exposes the configured account store.
func (e *Engine) Identity() IdentityStore {
	if e == nil {
		return nil
	}
	return e.identity
}

func (e *Engine) metricInc(id MetricID) {
	if e.metrics != nil {
		e.metrics.Inc(id)
	}
}

// recordSecurity writes a security-critical entry synchronously. Failures
// are logged, never surfaced: an unreachable trail must not turn a
// completed authentication action into a user-facing error.
func (e *Engine) recordSecurity(ctx context.Context, entry audit.Entry) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, entry); err != nil {
		e.logger.Warn("security audit record failed",
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

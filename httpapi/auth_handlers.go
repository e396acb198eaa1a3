package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/modelfolio/authcore"
	"github.com/modelfolio/authcore/middleware"
	"go.uber.org/zap"
)

type sendCodeRequest struct {
	Email string `json:"email"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	acct, err := s.engine.RequestCode(s.requestContext(r), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"userId":  acct.ID,
	})
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	ctx := s.requestContext(r)

	acct, err := s.engine.VerifyCode(ctx, req.Email, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.engine.CreateSession(ctx, acct)
	if err != nil {
		writeError(w, err)
		return
	}

	credential, err := s.engine.IssueCredential(sess, acct)
	if err != nil {
		writeError(w, err)
		return
	}

	s.setCredentialCookie(w, credential)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"user":      acct,
		"expiresAt": time.Unix(sess.ExpiresAt, 0).UTC().Format(time.RFC3339),
	})
}

// handleLogout sits outside the gate on purpose: the cookie is cleared
// unconditionally, whatever the server-side session state is.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Set-Cookie must go out before the body is written.
	s.clearCredentialCookie(w)

	credential, ok := middleware.ExtractCredential(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	ctx := s.requestContext(r)
	identity, err := s.engine.ResolveCredential(ctx, credential)
	if err == nil {
		if err := s.engine.DestroySession(ctx, identity.Session.SessionID); err != nil {
			s.logger.Warn("logout session destroy failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleMe reports the caller's resolved identity and never errors: any
// resolution failure is just isAuthenticated=false.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	credential, ok := middleware.ExtractCredential(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"isAuthenticated": false})
		return
	}

	identity, err := s.engine.ResolveCredential(s.requestContext(r), credential)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"isAuthenticated": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"isAuthenticated": true,
		"user":            identity.Account,
		"session": map[string]any{
			"sessionId": identity.Session.SessionID,
			"createdAt": time.Unix(identity.Session.CreatedAt, 0).UTC().Format(time.RFC3339),
			"expiresAt": time.Unix(identity.Session.ExpiresAt, 0).UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) requestContext(r *http.Request) context.Context {
	ctx := authcore.WithClientIP(r.Context(), clientIP(r))
	return authcore.WithUserAgent(ctx, r.UserAgent())
}

func (s *Server) setCredentialCookie(w http.ResponseWriter, credential string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    credential,
		Path:     "/",
		MaxAge:   int(s.engine.Config().Session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.engine.Config().Security.ProductionMode,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearCredentialCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.engine.Config().Security.ProductionMode,
		SameSite: http.SameSiteStrictMode,
	})
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware has already rewritten RemoteAddr when the
	// usual forwarding headers are present.
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

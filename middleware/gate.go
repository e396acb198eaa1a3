package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/modelfolio/authcore"
	"github.com/modelfolio/authcore/audit"
	"github.com/modelfolio/authcore/role"
)

// CookieName is the credential cookie the gate reads and clears.
const CookieName = "auth-token"

// Rule maps a route pattern to the minimum role required to pass. A pattern
// ending in '*' matches any path with the preceding prefix; anything else
// must match exactly.
type Rule struct {
	Pattern string
	MinRole role.Role
}

// Config wires a [Gate]. Zero-valued fields fall back to the defaults noted
// on each field.
type Config struct {
	Engine *authcore.Engine

	// Rules is the protected-route table. The most specific (longest)
	// matching pattern wins regardless of order. Defaults to
	// [DefaultRules].
	Rules []Rule

	// PublicPaths are matched before any credential work. Defaults to
	// [DefaultPublicPaths].
	PublicPaths []string

	// LoginPath is where unauthenticated page requests are redirected.
	// Defaults to "/login".
	LoginPath string

	// RoleHomes is the page a role is sent to after a forbidden page
	// request. Roles absent from the map go to LoginPath.
	RoleHomes map[role.Role]string
}

// DefaultRules is the protected-route table for the portfolio CMS.
var DefaultRules = []Rule{
	{Pattern: "/admin", MinRole: role.Admin},
	{Pattern: "/admin/tools", MinRole: role.Admin},
	{Pattern: "/admin/settings", MinRole: role.Admin},
	{Pattern: "/admin/security", MinRole: role.Admin},
	{Pattern: "/admin/suggestions", MinRole: role.Moderator},
	{Pattern: "/admin/analytics", MinRole: role.Moderator},
	{Pattern: "/admin/content", MinRole: role.Editor},
	{Pattern: "/api/admin/*", MinRole: role.Admin},
	{Pattern: "/api/settings/*", MinRole: role.Admin},
	{Pattern: "/api/users/*", MinRole: role.Admin},
	{Pattern: "/api/suggestions/*", MinRole: role.Moderator},
	{Pattern: "/api/content/*", MinRole: role.Editor},
	{Pattern: "/api/auth/logout", MinRole: role.Viewer},
	{Pattern: "/api/auth/me", MinRole: role.Viewer},
}

// DefaultPublicPaths skip the gate entirely: the login surface, public
// pages, static assets, and health checks.
var DefaultPublicPaths = []string{
	"/",
	"/login",
	"/portfolio",
	"/about",
	"/contact",
	"/healthz",
	"/api/auth/send-code",
	"/api/auth/verify-code",
	"/favicon.ico",
	"/photos/*",
	"/public/*",
	"/static/*",
}

// DefaultRoleHomes routes a forbidden page request to the highest admin
// page the caller's role can reach.
var DefaultRoleHomes = map[role.Role]string{
	role.Admin:     "/admin",
	role.Moderator: "/admin/suggestions",
	role.Editor:    "/admin/content",
}

type identityContextKey struct{}

// IdentityFromContext returns the resolved caller identity attached by the
// gate. It is only present on requests that passed authorization.
func IdentityFromContext(ctx context.Context) (*authcore.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*authcore.Identity)
	return id, ok
}

// Gate builds the authorization middleware. It fails closed: any credential
// resolution problem is an authentication rejection, never a pass-through.
func Gate(cfg Config) func(http.Handler) http.Handler {
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules
	}
	if cfg.PublicPaths == nil {
		cfg.PublicPaths = DefaultPublicPaths
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.RoleHomes == nil {
		cfg.RoleHomes = DefaultRoleHomes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if isPublic(cfg.PublicPaths, path) {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.Engine == nil {
				rejectUnauthenticated(w, r, cfg, false)
				return
			}

			credential, ok := ExtractCredential(r)
			if !ok {
				rejectUnauthenticated(w, r, cfg, false)
				return
			}

			ctx := r.Context()
			ctx = authcore.WithClientIP(ctx, clientIP(r))
			ctx = authcore.WithUserAgent(ctx, r.UserAgent())

			identity, err := cfg.Engine.ResolveCredential(ctx, credential)
			if err != nil {
				// Stale cookie on a page request gets cleared so the
				// browser stops replaying it.
				rejectUnauthenticated(w, r, cfg, true)
				return
			}

			required := requiredRole(cfg.Rules, path)
			if !identity.Account.Role.AtLeast(required) {
				denyForbidden(w, r, cfg, identity, required)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, identityContextKey{}, identity)))
		})
	}
}

func matchesPattern(path, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(path, strings.TrimSuffix(pattern, "*"))
	}
	return path == pattern
}

func isPublic(publicPaths []string, path string) bool {
	for _, p := range publicPaths {
		if matchesPattern(path, p) {
			return true
		}
	}
	return false
}

// requiredRole picks the minimum role for path: the longest matching
// pattern wins. Unmatched admin-prefixed paths require admin; unmatched API
// paths require any authenticated caller.
func requiredRole(rules []Rule, path string) role.Role {
	best := role.Role("")
	bestLen := -1
	for _, rule := range rules {
		if matchesPattern(path, rule.Pattern) && len(rule.Pattern) > bestLen {
			best = rule.MinRole
			bestLen = len(rule.Pattern)
		}
	}
	if bestLen >= 0 {
		return best
	}

	if strings.HasPrefix(path, "/admin") {
		return role.Admin
	}
	if strings.HasPrefix(path, "/api/") {
		return role.Viewer
	}
	return role.Viewer
}

// ExtractCredential reads the bearer credential from the request: the
// credential cookie first, then the Authorization header. Handlers that sit
// outside the gate (logout, me) use it for best-effort resolution.
func ExtractCredential(r *http.Request) (string, bool) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}

	const bearer = "Bearer "
	value := r.Header.Get("Authorization")
	if strings.HasPrefix(value, bearer) && len(value) > len(bearer) {
		return value[len(bearer):], true
	}
	return "", false
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func clearCredentialCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func rejectUnauthenticated(w http.ResponseWriter, r *http.Request, cfg Config, staleCredential bool) {
	if isAPIPath(r.URL.Path) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": "unauthorized",
		})
		return
	}

	if staleCredential {
		clearCredentialCookie(w)
	}
	http.Redirect(w, r, cfg.LoginPath, http.StatusFound)
}

func denyForbidden(w http.ResponseWriter, r *http.Request, cfg Config, identity *authcore.Identity, required role.Role) {
	current := identity.Account.Role

	if auditor := cfg.Engine.Auditor(); auditor != nil {
		entry := audit.AccessDeniedEntry(
			identity.Account.ID,
			identity.Account.Email,
			current.String(),
			r.URL.Path,
			required.String(),
			clientIP(r),
			r.UserAgent(),
		)
		// The denial stands regardless of trail availability.
		_ = auditor.Record(r.Context(), entry)
	}

	if isAPIPath(r.URL.Path) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":    "forbidden",
			"required": required.String(),
			"current":  current.String(),
		})
		return
	}

	home, ok := cfg.RoleHomes[current]
	if !ok {
		home = cfg.LoginPath
	}
	http.Redirect(w, r, home, http.StatusFound)
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

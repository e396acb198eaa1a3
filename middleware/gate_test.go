package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/modelfolio/authcore"
	"github.com/modelfolio/authcore/identity"
	"github.com/modelfolio/authcore/role"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func TestMatchesPattern(t *testing.T) {
	cases := []struct {
		path, pattern string
		want          bool
	}{
		{"/admin", "/admin", true},
		{"/admin/tools", "/admin", false},
		{"/api/content/5", "/api/content/*", true},
		{"/api/content", "/api/content/*", false},
		{"/photos/a/b.jpg", "/photos/*", true},
		{"/", "/", true},
		{"/login", "/", false},
	}
	for _, c := range cases {
		if got := matchesPattern(c.path, c.pattern); got != c.want {
			t.Errorf("matchesPattern(%q, %q) = %v, want %v", c.path, c.pattern, got, c.want)
		}
	}
}

func TestRequiredRoleMostSpecificWins(t *testing.T) {
	rules := []Rule{
		{Pattern: "/api/*", MinRole: role.Viewer},
		{Pattern: "/api/content/*", MinRole: role.Editor},
		{Pattern: "/api/content/publish", MinRole: role.Moderator},
	}

	cases := []struct {
		path string
		want role.Role
	}{
		{"/api/profile", role.Viewer},
		{"/api/content/5", role.Editor},
		{"/api/content/publish", role.Moderator},
	}
	for _, c := range cases {
		if got := requiredRole(rules, c.path); got != c.want {
			t.Errorf("requiredRole(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestRequiredRoleDefaults(t *testing.T) {
	var rules []Rule

	if got := requiredRole(rules, "/admin/whatever"); got != role.Admin {
		t.Errorf("unmatched admin path = %q, want admin", got)
	}
	if got := requiredRole(rules, "/api/whatever"); got != role.Viewer {
		t.Errorf("unmatched api path = %q, want viewer", got)
	}
}

func TestExtractCredentialCookieBeatsHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	r.Header.Set("Authorization", "Bearer from-header")

	got, ok := ExtractCredential(r)
	if !ok || got != "from-cookie" {
		t.Fatalf("ExtractCredential = %q (%v), want from-cookie", got, ok)
	}

	r2 := httptest.NewRequest(http.MethodGet, "/x", nil)
	r2.Header.Set("Authorization", "Bearer from-header")
	got, ok = ExtractCredential(r2)
	if !ok || got != "from-header" {
		t.Fatalf("ExtractCredential = %q (%v), want from-header", got, ok)
	}

	r3 := httptest.NewRequest(http.MethodGet, "/x", nil)
	if _, ok := ExtractCredential(r3); ok {
		t.Fatal("expected no credential")
	}
}

func newGateEngine(t *testing.T) (*authcore.Engine, *identity.Memory) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := authcore.DefaultConfig()
	cfg.JWT.SigningSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Codes.BcryptCost = bcrypt.MinCost
	cfg.Janitor.Enabled = false

	store := identity.NewMemory()
	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(store).
		WithNotifier(nopNotifier{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, store
}

type nopNotifier struct{}

func (nopNotifier) SendCode(context.Context, string, string, string) error { return nil }

func credentialFor(t *testing.T, engine *authcore.Engine, store *identity.Memory, email string, r role.Role) string {
	t.Helper()

	acct, err := store.CreateAccount(context.Background(), authcore.Account{Email: email, Role: r})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	sess, err := engine.CreateSession(context.Background(), acct)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	credential, err := engine.IssueCredential(sess, acct)
	if err != nil {
		t.Fatalf("IssueCredential: %v", err)
	}
	return credential
}

func gateHandler(engine *authcore.Engine) http.Handler {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			http.Error(w, "identity missing", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return Gate(Config{Engine: engine})(okHandler)
}

func TestGateNoCredential(t *testing.T) {
	engine, _ := newGateEngine(t)
	h := gateHandler(engine)

	// API path: 401 JSON, not 403.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/anything", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("api status = %d, want 401", rec.Code)
	}

	// Page path: redirect to login.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("page status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("redirect = %q, want /login", loc)
	}
}

func TestGateInsufficientRole(t *testing.T) {
	engine, store := newGateEngine(t)
	h := gateHandler(engine)
	credential := credentialFor(t, engine, store, "editor@example.com", role.Editor)

	r := httptest.NewRequest(http.MethodGet, "/api/admin/settings", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: credential})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["required"] != "admin" || body["current"] != "editor" {
		t.Fatalf("body = %v, want required=admin current=editor", body)
	}
}

func TestGateForbiddenPageRedirectsToRoleHome(t *testing.T) {
	engine, store := newGateEngine(t)
	h := gateHandler(engine)
	credential := credentialFor(t, engine, store, "mod@example.com", role.Moderator)

	r := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: credential})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/admin/suggestions" {
		t.Fatalf("redirect = %q, want /admin/suggestions", loc)
	}
}

func TestGateSufficientRolePasses(t *testing.T) {
	engine, store := newGateEngine(t)
	h := gateHandler(engine)
	credential := credentialFor(t, engine, store, "root@example.com", role.Admin)

	r := httptest.NewRequest(http.MethodGet, "/api/admin/settings", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: credential})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestGateStaleCookieClearedOnPage(t *testing.T) {
	engine, _ := newGateEngine(t)
	h := gateHandler(engine)

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "expired-or-forged"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("stale credential cookie was not cleared")
	}
}

func TestGatePublicPathSkipsAuth(t *testing.T) {
	engine, _ := newGateEngine(t)
	public := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Gate(Config{Engine: engine})(public)

	for _, path := range []string{"/", "/login", "/healthz", "/photos/x.jpg", "/api/auth/send-code"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("public path %q status = %d, want 200", path, rec.Code)
		}
	}
}

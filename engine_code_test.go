package authcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/modelfolio/authcore/role"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// stubIdentityStore is a minimal in-memory IdentityStore for engine tests.
// The production implementations live in the identity package, which cannot
// be imported from here.
type stubIdentityStore struct {
	mu      sync.Mutex
	byEmail map[string]Account
	byID    map[string]Account
}

func newStubIdentityStore() *stubIdentityStore {
	return &stubIdentityStore{
		byEmail: make(map[string]Account),
		byID:    make(map[string]Account),
	}
}

func (s *stubIdentityStore) GetAccountByEmail(_ context.Context, email string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acct, nil
}

func (s *stubIdentityStore) GetAccountByID(_ context.Context, id string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acct, nil
}

func (s *stubIdentityStore) CreateAccount(_ context.Context, acct Account) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	acct.Email = strings.ToLower(acct.Email)
	if _, exists := s.byEmail[acct.Email]; exists {
		return Account{}, errors.New("email already registered")
	}
	s.byEmail[acct.Email] = acct
	s.byID[acct.ID] = acct
	return acct, nil
}

func (s *stubIdentityStore) RecordVerifiedLogin(_ context.Context, id string, at time.Time) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	acct.EmailVerified = true
	acct.LastLoginAt = at
	s.byID[id] = acct
	s.byEmail[acct.Email] = acct
	return acct, nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

// captureNotifier stores the last delivered plaintext code. fail makes
// delivery report an error while still capturing the code.
type captureNotifier struct {
	mu   sync.Mutex
	last string
	fail bool
}

func (n *captureNotifier) SendCode(_ context.Context, _, _, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = code
	if n.fail {
		return errors.New("smtp down")
	}
	return nil
}

func (n *captureNotifier) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Leeway = 0
	cfg.Codes.BcryptCost = bcrypt.MinCost
	cfg.Janitor.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*Config)) (*Engine, *captureNotifier, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	notifier := &captureNotifier{}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(newStubIdentityStore()).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, notifier, mr
}

func TestRequestCodeProvisionsViewerAccount(t *testing.T) {
	engine, notifier, _ := newTestEngine(t, nil)
	ctx := context.Background()

	acct, err := engine.RequestCode(ctx, "New@User.com")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if acct.ID == "" {
		t.Fatal("account id not assigned")
	}
	if acct.Email != "new@user.com" {
		t.Fatalf("email = %q, want lowercased", acct.Email)
	}
	if acct.Role != role.Viewer {
		t.Fatalf("role = %q, want viewer", acct.Role)
	}
	if acct.EmailVerified {
		t.Fatal("fresh account must not be email-verified")
	}
	if !acct.TwoFactorEnabled {
		t.Fatal("fresh account must have 2FA enabled")
	}
	if len(notifier.Last()) != engine.Config().Codes.Digits {
		t.Fatalf("delivered code length = %d, want %d", len(notifier.Last()), engine.Config().Codes.Digits)
	}
}

func TestRequestCodeRejectsInvalidEmail(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	for _, email := range []string{"", "plainstring", "a@b", "two words@x.com", "@missing.local"} {
		if _, err := engine.RequestCode(context.Background(), email); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("RequestCode(%q): expected ErrInvalidEmail, got %v", email, err)
		}
	}
}

func TestRequestCodeSingleOutstanding(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.RequestCode(ctx, "solo@example.com"); err != nil {
		t.Fatalf("first RequestCode: %v", err)
	}
	if _, err := engine.RequestCode(ctx, "solo@example.com"); !errors.Is(err, ErrCodeOutstanding) {
		t.Fatalf("second RequestCode: expected ErrCodeOutstanding, got %v", err)
	}
}

func TestRequestCodeConcurrentSingleWinner(t *testing.T) {
	engine, _, mr := newTestEngine(t, nil)
	ctx := context.Background()

	// Pre-provision the account, then drop its seed code so every
	// goroutine races purely on issuance.
	if _, err := engine.RequestCode(ctx, "race@example.com"); err != nil {
		t.Fatalf("seed RequestCode: %v", err)
	}
	mr.FlushAll()

	const workers = 8
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.RequestCode(ctx, "race@example.com"); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Fatalf("concurrent RequestCode successes = %d, want exactly 1", count)
	}
}

func TestVerifyCodeSuccessAndReplay(t *testing.T) {
	engine, notifier, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.RequestCode(ctx, "kai@example.com"); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	code := notifier.Last()

	acct, err := engine.VerifyCode(ctx, "kai@example.com", code)
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if !acct.EmailVerified {
		t.Fatal("verified flag not set after successful verification")
	}
	if acct.LastLoginAt.IsZero() {
		t.Fatal("last-login not recorded")
	}

	// Single use: replaying the correct code must fail.
	if _, err := engine.VerifyCode(ctx, "kai@example.com", code); !errors.Is(err, ErrNoActiveCode) {
		t.Fatalf("replay: expected ErrNoActiveCode, got %v", err)
	}

	// And a fresh code can now be requested again.
	if _, err := engine.RequestCode(ctx, "kai@example.com"); err != nil {
		t.Fatalf("RequestCode after consume: %v", err)
	}
}

func TestVerifyCodeUnknownAccount(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	if _, err := engine.VerifyCode(context.Background(), "ghost@example.com", "123456"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestVerifyCodeNoActiveCode(t *testing.T) {
	engine, notifier, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.RequestCode(ctx, "idle@example.com"); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if _, err := engine.VerifyCode(ctx, "idle@example.com", notifier.Last()); err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}

	if _, err := engine.VerifyCode(ctx, "idle@example.com", notifier.Last()); !errors.Is(err, ErrNoActiveCode) {
		t.Fatalf("expected ErrNoActiveCode, got %v", err)
	}
}

func TestVerifyCodeAttemptBudget(t *testing.T) {
	engine, notifier, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.RequestCode(ctx, "guess@example.com"); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	code := notifier.Last()

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i, wantRemaining := range []int{2, 1, 0} {
		_, err := engine.VerifyCode(ctx, "guess@example.com", wrong)
		if !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("attempt %d: expected ErrCodeInvalid, got %v", i+1, err)
		}
		remaining, ok := RemainingAttempts(err)
		if !ok || remaining != wantRemaining {
			t.Fatalf("attempt %d: remaining = %d (ok=%v), want %d", i+1, remaining, ok, wantRemaining)
		}
	}

	// Budget spent: even the correct code is rejected now.
	if _, err := engine.VerifyCode(ctx, "guess@example.com", code); !errors.Is(err, ErrAttemptsExceeded) {
		t.Fatalf("post-budget: expected ErrAttemptsExceeded, got %v", err)
	}

	// And the dead code still blocks re-issuance until its TTL elapses.
	if _, err := engine.RequestCode(ctx, "guess@example.com"); !errors.Is(err, ErrCodeOutstanding) {
		t.Fatalf("expected ErrCodeOutstanding while dead code lingers, got %v", err)
	}
}

func TestNotificationFailureKeepsCodeValid(t *testing.T) {
	engine, notifier, _ := newTestEngine(t, nil)
	notifier.fail = true
	ctx := context.Background()

	_, err := engine.RequestCode(ctx, "flaky@example.com")
	if !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("expected ErrNotificationFailed, got %v", err)
	}

	// The stored code remains live: no re-request, but verification works.
	if _, err := engine.RequestCode(ctx, "flaky@example.com"); !errors.Is(err, ErrCodeOutstanding) {
		t.Fatalf("expected ErrCodeOutstanding, got %v", err)
	}
	if _, err := engine.VerifyCode(ctx, "flaky@example.com", notifier.Last()); err != nil {
		t.Fatalf("VerifyCode after delivery failure: %v", err)
	}
}

func TestStoredCodeIsHashed(t *testing.T) {
	engine, notifier, mr := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.RequestCode(ctx, "hashed@example.com"); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	code := notifier.Last()

	for _, key := range mr.Keys() {
		value, err := mr.Get(key)
		if err != nil {
			continue
		}
		if strings.Contains(value, code) {
			t.Fatalf("plaintext code found in stored key %q", key)
		}
	}
}

func TestRequestCodeIPThrottle(t *testing.T) {
	engine, _, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Codes.EnableIPThrottle = true
		cfg.Codes.IPThrottleMax = 2
	})
	ctx := WithClientIP(context.Background(), "198.51.100.7")

	for i := 0; i < 2; i++ {
		email := []string{"t1@example.com", "t2@example.com"}[i]
		if _, err := engine.RequestCode(ctx, email); err != nil {
			t.Fatalf("RequestCode %d: %v", i+1, err)
		}
	}

	if _, err := engine.RequestCode(ctx, "t3@example.com"); !errors.Is(err, ErrRequestThrottled) {
		t.Fatalf("expected ErrRequestThrottled, got %v", err)
	}

	// Other IPs are unaffected.
	other := WithClientIP(context.Background(), "198.51.100.8")
	if _, err := engine.RequestCode(other, "t4@example.com"); err != nil {
		t.Fatalf("RequestCode from other IP: %v", err)
	}
}

func TestCodeExpiryAllowsReissue(t *testing.T) {
	engine, notifier, mr := newTestEngine(t, func(cfg *Config) {
		cfg.Codes.TTL = time.Second
	})
	ctx := context.Background()

	if _, err := engine.RequestCode(ctx, "short@example.com"); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	first := notifier.Last()

	mr.FastForward(2 * time.Second)

	// Redis evicted the old code; a new request succeeds.
	if _, err := engine.RequestCode(ctx, "short@example.com"); err != nil {
		t.Fatalf("RequestCode after expiry: %v", err)
	}
	if notifier.Last() == first {
		t.Fatal("expected a fresh code after expiry")
	}
}

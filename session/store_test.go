package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "sess", ttl), mr
}

func sampleSession(id string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		SessionID:     id,
		AccountID:     "acct-1",
		Email:         "kai@example.com",
		Role:          "editor",
		Authenticated: true,
		IP:            "203.0.113.9",
		UserAgent:     "test-agent/1.0",
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(ttl).Unix(),
	}
}

func TestStoreSaveGetRoundTrip(t *testing.T) {
	st, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	want := sampleSession("sid-1", time.Hour)
	want.TwoFactorVerified = true
	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := st.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got != *want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestStoreGetMissing(t *testing.T) {
	st, _ := newTestStore(t, time.Hour)

	if _, err := st.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreGetExpiredRecordTreatedAsMissing(t *testing.T) {
	st, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	s := sampleSession("sid-exp", time.Hour)
	s.ExpiresAt = time.Now().Add(-time.Second).Unix()
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Key still present in Redis, logical expiry already passed.
	if _, err := st.Get(ctx, "sid-exp"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired record, got %v", err)
	}
}

func TestStoreGetAfterRedisTTL(t *testing.T) {
	st, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	if err := st.Save(ctx, sampleSession("sid-ttl", time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	mr.FastForward(time.Hour + time.Second)

	if _, err := st.Get(ctx, "sid-ttl"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL, got %v", err)
	}
}

func TestStoreDeleteIdempotent(t *testing.T) {
	st, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	if err := st.Save(ctx, sampleSession("sid-del", time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := st.Delete(ctx, "sid-del", "acct-1"); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	if err := st.Delete(ctx, "sid-del", "acct-1"); err != nil {
		t.Fatalf("second Delete must be a no-op, got %v", err)
	}
	if err := st.Delete(ctx, "never-existed", "acct-1"); err != nil {
		t.Fatalf("Delete of unknown id must be a no-op, got %v", err)
	}

	if _, err := st.Get(ctx, "sid-del"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStoreDeleteAllForAccount(t *testing.T) {
	st, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := st.Save(ctx, sampleSession(id, time.Hour)); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	removed, err := st.DeleteAllForAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("DeleteAllForAccount: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	for _, id := range []string{"a", "b", "c"} {
		if _, err := st.Get(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("session %s should be gone, got %v", id, err)
		}
	}

	ids, err := st.ActiveSessionIDs(ctx, "acct-1")
	if err != nil {
		t.Fatalf("ActiveSessionIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("index should be empty, got %v", ids)
	}
}

func TestStorePruneIndexRemovesStaleMembers(t *testing.T) {
	st, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	if err := st.Save(ctx, sampleSession("live", time.Hour)); err != nil {
		t.Fatalf("Save live: %v", err)
	}
	if err := st.Save(ctx, sampleSession("stale", time.Hour)); err != nil {
		t.Fatalf("Save stale: %v", err)
	}

	// Drop only the record key so the index keeps a dangling member.
	mr.Del("sess:s:stale")

	pruned, err := st.PruneIndex(ctx, "acct-1")
	if err != nil {
		t.Fatalf("PruneIndex: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}

	ids, err := st.ActiveSessionIDs(ctx, "acct-1")
	if err != nil {
		t.Fatalf("ActiveSessionIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != "live" {
		t.Fatalf("index = %v, want [live]", ids)
	}
}

func TestEncodeRejectsOversizedField(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	s := sampleSession("sid", time.Hour)
	s.Role = string(long)

	if _, err := Encode(s); err == nil {
		t.Fatal("expected error for oversized role field")
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	data, err := Encode(sampleSession("sid", time.Hour))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data[0] = 99

	if _, err := Decode(data); err == nil {
		t.Fatal("expected error for unknown schema version")
	}
}

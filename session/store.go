package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when no live session exists for the id.
	// Expired-but-lingering records are reported as not found.
	ErrNotFound = errors.New("session: not found")

	// ErrUnavailable wraps Redis transport failures.
	ErrUnavailable = errors.New("session: store unavailable")
)

// Store persists sessions in Redis.
//
// Layout:
//
//	<prefix>:s:<sessionID>   -> encoded session record, key TTL = session TTL
//	<prefix>:acct:<accountID> -> set of session ids (bulk destroy, janitor)
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewStore(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (st *Store) sessionKey(sessionID string) string {
	return st.prefix + ":s:" + sessionID
}

func (st *Store) accountKey(accountID string) string {
	return st.prefix + ":acct:" + accountID
}

// Save writes the session record and registers it in the account index. The
// index set's TTL is refreshed to outlive the newest session it references.
func (st *Store) Save(ctx context.Context, s *Session) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	pipe := st.rdb.TxPipeline()
	pipe.Set(ctx, st.sessionKey(s.SessionID), data, st.ttl)
	pipe.SAdd(ctx, st.accountKey(s.AccountID), s.SessionID)
	pipe.Expire(ctx, st.accountKey(s.AccountID), st.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

// Get loads a session by id. A record whose encoded expiry has passed is
// treated exactly like a missing record.
func (st *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := st.rdb.Get(ctx, st.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}

	s, err := Decode(data)
	if err != nil {
		return nil, err
	}
	s.SessionID = sessionID

	if s.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes a session. Deleting a session that does not exist is not an
// error: logout must succeed regardless of prior state.
func (st *Store) Delete(ctx context.Context, sessionID, accountID string) error {
	pipe := st.rdb.TxPipeline()
	pipe.Del(ctx, st.sessionKey(sessionID))
	if accountID != "" {
		pipe.SRem(ctx, st.accountKey(accountID), sessionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

// DeleteAllForAccount destroys every live session belonging to the account.
// It returns the number of session records removed.
func (st *Store) DeleteAllForAccount(ctx context.Context, accountID string) (int, error) {
	ids, err := st.rdb.SMembers(ctx, st.accountKey(accountID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, errors.Join(ErrUnavailable, err)
	}

	pipe := st.rdb.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, st.sessionKey(id))
	}
	pipe.Del(ctx, st.accountKey(accountID))
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return 0, errors.Join(ErrUnavailable, err)
	}

	removed := 0
	for _, cmd := range cmds[:len(ids)] {
		if del, ok := cmd.(*redis.IntCmd); ok {
			removed += int(del.Val())
		}
	}
	return removed, nil
}

// ActiveSessionIDs lists the session ids currently indexed for the account.
// Members whose record already expired may still appear until the janitor
// prunes them.
func (st *Store) ActiveSessionIDs(ctx context.Context, accountID string) ([]string, error) {
	ids, err := st.rdb.SMembers(ctx, st.accountKey(accountID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Join(ErrUnavailable, err)
	}
	return ids, nil
}

// PruneAllIndexes scans for account index sets and prunes stale members in
// each. Intended for the periodic background sweep, not the request path.
func (st *Store) PruneAllIndexes(ctx context.Context) (int, error) {
	pruned := 0
	iter := st.rdb.Scan(ctx, 0, st.prefix+":acct:*", 100).Iterator()
	for iter.Next(ctx) {
		accountID := strings.TrimPrefix(iter.Val(), st.prefix+":acct:")
		n, err := st.PruneIndex(ctx, accountID)
		pruned += n
		if err != nil {
			return pruned, err
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, errors.Join(ErrUnavailable, err)
	}
	return pruned, nil
}

// PruneIndex removes index members whose session record no longer exists.
// Redis expires the record keys on its own; the index set only learns about
// it here. Returns the number of stale members removed.
func (st *Store) PruneIndex(ctx context.Context, accountID string) (int, error) {
	ids, err := st.rdb.SMembers(ctx, st.accountKey(accountID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, errors.Join(ErrUnavailable, err)
	}

	pruned := 0
	for _, id := range ids {
		exists, err := st.rdb.Exists(ctx, st.sessionKey(id)).Result()
		if err != nil {
			return pruned, errors.Join(ErrUnavailable, err)
		}
		if exists == 0 {
			if err := st.rdb.SRem(ctx, st.accountKey(accountID), id).Err(); err != nil {
				return pruned, errors.Join(ErrUnavailable, err)
			}
			pruned++
		}
	}
	return pruned, nil
}

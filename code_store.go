package authcore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const codeRecordVersionV1 = 1

var (
	errCodeNotFound          = errors.New("code record not found")
	errCodeAlreadyExists     = errors.New("code record already exists")
	errCodeSecretMismatch    = errors.New("code secret mismatch")
	errCodeAttemptsExhausted = errors.New("code attempts exhausted")
	errCodeRedisUnavailable  = errors.New("code redis unavailable")
)

// oneTimeCodeRecord is the stored side of an issued code. Only the bcrypt
// hash of the plaintext is ever persisted.
type oneTimeCodeRecord struct {
	AccountID string
	Hash      []byte
	Attempts  uint16
	ExpiresAt int64
}

// oneTimeCodeStore keeps one record per (email, purpose) under a TTL'd key.
// SetNX on issue enforces the single-outstanding-code invariant; a WATCH
// transaction on consume makes the attempt accounting atomic under
// concurrent submissions.
type oneTimeCodeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newOneTimeCodeStore(redisClient redis.UniversalClient, prefix string) *oneTimeCodeStore {
	return &oneTimeCodeStore{redis: redisClient, prefix: prefix}
}

func (s *oneTimeCodeStore) key(email string, purpose CodePurpose) string {
	return s.prefix + ":" + string(purpose) + ":" + email
}

// Issue stores a fresh record unless one is already outstanding. The TTL on
// the key is the only expiry mechanism for rejected-then-abandoned codes.
func (s *oneTimeCodeStore) Issue(
	ctx context.Context,
	email string,
	purpose CodePurpose,
	record *oneTimeCodeRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeOneTimeCodeRecord(record)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.key(email, purpose), encoded, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errCodeRedisUnavailable, err)
	}
	if !ok {
		return errCodeAlreadyExists
	}
	return nil
}

// Consume checks submitted against the outstanding record.
//
// On match the record is deleted (single use) and returned. On mismatch the
// attempt counter is incremented under the remaining TTL and the updated
// record is returned with [errCodeSecretMismatch] so the caller can surface
// the remaining budget. Once the counter reaches maxAttempts the record is
// kept until its TTL elapses: it keeps blocking re-issuance, and every
// further submission fails with [errCodeAttemptsExhausted] without touching
// the counter.
func (s *oneTimeCodeStore) Consume(
	ctx context.Context,
	email string,
	purpose CodePurpose,
	submitted string,
	maxAttempts int,
) (*oneTimeCodeRecord, error) {
	const maxRetries = 4
	key := s.key(email, purpose)

	for i := 0; i < maxRetries; i++ {
		var out *oneTimeCodeRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeOneTimeCodeRecord(data)
			if err != nil {
				return err
			}

			now := time.Now()
			if now.Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errCodeNotFound
			}

			if int(record.Attempts) >= maxAttempts {
				return errCodeAttemptsExhausted
			}

			if bcrypt.CompareHashAndPassword(record.Hash, []byte(submitted)) != nil {
				record.Attempts++

				ttl := time.Until(time.Unix(record.ExpiresAt, 0))
				if ttl <= 0 {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return errCodeNotFound
				}

				updated, err := encodeOneTimeCodeRecord(record)
				if err != nil {
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}

				out = record
				return errCodeSecretMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			out = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil), errors.Is(err, errCodeNotFound):
				return nil, errCodeNotFound
			case errors.Is(err, errCodeSecretMismatch):
				return out, errCodeSecretMismatch
			case errors.Is(err, errCodeAttemptsExhausted):
				return nil, errCodeAttemptsExhausted
			default:
				return nil, fmt.Errorf("%w: %v", errCodeRedisUnavailable, err)
			}
		}

		return out, nil
	}

	// The record is live but contended; this is a transient infrastructure
	// condition, not a missing code.
	return nil, fmt.Errorf("%w: consume retries exhausted", errCodeRedisUnavailable)
}

func encodeOneTimeCodeRecord(record *oneTimeCodeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(codeRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.AccountID) > 65535 {
		return nil, errors.New("code record account id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.AccountID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.AccountID)

	if len(record.Hash) > 255 {
		return nil, errors.New("code record hash too long")
	}
	buf.WriteByte(byte(len(record.Hash)))
	buf.Write(record.Hash)

	return buf.Bytes(), nil
}

func decodeOneTimeCodeRecord(data []byte) (*oneTimeCodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != codeRecordVersionV1 {
		return nil, errors.New("invalid code record version")
	}

	record := &oneTimeCodeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var accountIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &accountIDLen); err != nil {
		return nil, err
	}
	accountID := make([]byte, accountIDLen)
	if _, err := io.ReadFull(reader, accountID); err != nil {
		return nil, err
	}
	record.AccountID = string(accountID)

	hashLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	record.Hash = make([]byte, hashLen)
	if _, err := io.ReadFull(reader, record.Hash); err != nil {
		return nil, err
	}

	return record, nil
}

package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/modelfolio/authcore"
	"github.com/google/uuid"
)

// Memory is a mutex-guarded in-memory account store. Suitable for tests and
// single-process development; state is lost on restart.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]authcore.Account
	byEmail map[string]string // lowercased email -> id
}

func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[string]authcore.Account),
		byEmail: make(map[string]string),
	}
}

func (m *Memory) GetAccountByEmail(_ context.Context, email string) (authcore.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return authcore.Account{}, authcore.ErrAccountNotFound
	}
	return m.byID[id], nil
}

func (m *Memory) GetAccountByID(_ context.Context, id string) (authcore.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acct, ok := m.byID[id]
	if !ok {
		return authcore.Account{}, authcore.ErrAccountNotFound
	}
	return acct, nil
}

func (m *Memory) CreateAccount(_ context.Context, acct authcore.Account) (authcore.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(acct.Email)
	if key == "" {
		return authcore.Account{}, errors.New("identity: account email required")
	}
	if _, exists := m.byEmail[key]; exists {
		return authcore.Account{}, errors.New("identity: email already registered")
	}

	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	acct.Email = key
	now := time.Now()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	m.byID[acct.ID] = acct
	m.byEmail[key] = acct.ID
	return acct, nil
}

func (m *Memory) RecordVerifiedLogin(_ context.Context, id string, at time.Time) (authcore.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.byID[id]
	if !ok {
		return authcore.Account{}, authcore.ErrAccountNotFound
	}

	acct.EmailVerified = true
	acct.LastLoginAt = at
	acct.UpdatedAt = at
	m.byID[id] = acct
	return acct, nil
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelfolio/authcore"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/modelfolio/authcore/role"
)

// Postgres persists accounts in a Postgres table via a pgx pool. Expected
// schema:
//
//	CREATE TABLE accounts (
//	    id                UUID PRIMARY KEY,
//	    email             TEXT NOT NULL,
//	    display_name      TEXT NOT NULL DEFAULT '',
//	    role              TEXT NOT NULL,
//	    is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
//	    is_2fa_enabled    BOOLEAN NOT NULL DEFAULT TRUE,
//	    created_at        TIMESTAMPTZ NOT NULL,
//	    updated_at        TIMESTAMPTZ NOT NULL,
//	    last_login_at     TIMESTAMPTZ
//	);
//	CREATE UNIQUE INDEX accounts_email_key ON accounts (LOWER(email));
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

const accountColumns = `
	id,
	email,
	display_name,
	role,
	is_email_verified,
	is_2fa_enabled,
	created_at,
	updated_at,
	COALESCE(last_login_at, 'epoch'::timestamptz)
`

func scanAccount(row pgx.Row) (authcore.Account, error) {
	var acct authcore.Account
	var roleName string
	err := row.Scan(
		&acct.ID,
		&acct.Email,
		&acct.DisplayName,
		&roleName,
		&acct.EmailVerified,
		&acct.TwoFactorEnabled,
		&acct.CreatedAt,
		&acct.UpdatedAt,
		&acct.LastLoginAt,
	)
	if err != nil {
		return authcore.Account{}, err
	}

	// Corrupted role values parse to guest and fail every gate check
	// rather than erroring the whole lookup.
	acct.Role, _ = role.Parse(roleName)
	return acct, nil
}

func (p *Postgres) GetAccountByEmail(ctx context.Context, email string) (authcore.Account, error) {
	const q = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
		LIMIT 1
	`

	acct, err := scanAccount(p.db.QueryRow(ctx, q, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.Account{}, authcore.ErrAccountNotFound
	}
	if err != nil {
		return authcore.Account{}, fmt.Errorf("identity: get account by email: %w", err)
	}
	return acct, nil
}

func (p *Postgres) GetAccountByID(ctx context.Context, id string) (authcore.Account, error) {
	const q = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
		LIMIT 1
	`

	acct, err := scanAccount(p.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.Account{}, authcore.ErrAccountNotFound
	}
	if err != nil {
		return authcore.Account{}, fmt.Errorf("identity: get account by id: %w", err)
	}
	return acct, nil
}

func (p *Postgres) CreateAccount(ctx context.Context, acct authcore.Account) (authcore.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	acct.Email = strings.ToLower(acct.Email)
	now := time.Now()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	const q = `
		INSERT INTO accounts
			(id, email, display_name, role, is_email_verified, is_2fa_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := p.db.Exec(ctx, q,
		acct.ID,
		acct.Email,
		acct.DisplayName,
		acct.Role.String(),
		acct.EmailVerified,
		acct.TwoFactorEnabled,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if err != nil {
		return authcore.Account{}, fmt.Errorf("identity: create account: %w", err)
	}
	return acct, nil
}

func (p *Postgres) RecordVerifiedLogin(ctx context.Context, id string, at time.Time) (authcore.Account, error) {
	const q = `
		UPDATE accounts
		SET is_email_verified = TRUE,
		    last_login_at = $1,
		    updated_at = $1
		WHERE id = $2
		RETURNING ` + accountColumns + `
	`

	acct, err := scanAccount(p.db.QueryRow(ctx, q, at, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return authcore.Account{}, authcore.ErrAccountNotFound
	}
	if err != nil {
		return authcore.Account{}, fmt.Errorf("identity: record verified login: %w", err)
	}
	return acct, nil
}

// Package postgres persists the registry in PostgreSQL. The schema mirrors
// the in-memory store's invariants: identities keyed by account, credential
// sequences keyed by (holder, idx) so indices stay stable, and an issuer
// set keyed by account.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"attestry/internal/registry/models"
	id "attestry/pkg/domain"
	"attestry/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	account      TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	email        TEXT NOT NULL,
	profile_hash TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
	holder          TEXT NOT NULL,
	idx             INTEGER NOT NULL,
	credential_type TEXT NOT NULL,
	data_hash       TEXT NOT NULL,
	issuer          TEXT NOT NULL,
	issued_at       TIMESTAMPTZ NOT NULL,
	valid           BOOLEAN NOT NULL,
	PRIMARY KEY (holder, idx)
);

CREATE TABLE IF NOT EXISTS issuers (
	account    TEXT PRIMARY KEY,
	authorized BOOLEAN NOT NULL
);
`

// Store implements the registry store interfaces on top of PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the registry tables when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// IdentityStore
// -----------------------------------------------------------------------------

func (s *Store) Create(ctx context.Context, identity *models.Identity) error {
	const query = `
		INSERT INTO identities (account, name, email, profile_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		identity.Account.String(), identity.Name, identity.Email,
		identity.ProfileHash, identity.CreatedAt, identity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Store) Find(ctx context.Context, account id.AccountID) (*models.Identity, error) {
	const query = `
		SELECT account, name, email, profile_hash, created_at, updated_at
		FROM identities WHERE account = $1
	`
	var identity models.Identity
	var acct string
	err := s.db.QueryRowContext(ctx, query, account.String()).Scan(
		&acct, &identity.Name, &identity.Email, &identity.ProfileHash,
		&identity.CreatedAt, &identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	identity.Account = id.AccountID(acct)
	return &identity, nil
}

// FindForUpdate is Find: this store is the primary, and read-modify-write
// flows serialize in the service's transaction boundary.
func (s *Store) FindForUpdate(ctx context.Context, account id.AccountID) (*models.Identity, error) {
	return s.Find(ctx, account)
}

func (s *Store) Update(ctx context.Context, identity *models.Identity) error {
	const query = `
		UPDATE identities
		SET name = $2, email = $3, profile_hash = $4, updated_at = $5
		WHERE account = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		identity.Account.String(), identity.Name, identity.Email,
		identity.ProfileHash, identity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, account id.AccountID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM identities WHERE account = $1)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, account.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("identity exists: %w", err)
	}
	return exists, nil
}

// -----------------------------------------------------------------------------
// CredentialStore
// -----------------------------------------------------------------------------

func (s *Store) Append(ctx context.Context, holder id.AccountID, credential *models.Credential) error {
	// The per-holder advisory lock serializes concurrent appends from other
	// processes; the (holder, idx) primary key backstops it.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append credential: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, holder.String()); err != nil {
		return fmt.Errorf("append credential: %w", err)
	}

	const query = `
		INSERT INTO credentials (holder, idx, credential_type, data_hash, issuer, issued_at, valid)
		SELECT $1, COALESCE(MAX(idx) + 1, 0), $2, $3, $4, $5, $6
		FROM credentials WHERE holder = $1
		RETURNING idx
	`
	var idx int
	err = tx.QueryRowContext(ctx, query,
		holder.String(), credential.CredentialType, credential.DataHash,
		credential.Issuer.String(), credential.IssuedAt, credential.Valid,
	).Scan(&idx)
	if err != nil {
		return fmt.Errorf("append credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append credential: %w", err)
	}
	credential.Index = idx
	return nil
}

func (s *Store) List(ctx context.Context, holder id.AccountID) ([]models.Credential, error) {
	const query = `
		SELECT idx, credential_type, data_hash, issuer, issued_at, valid
		FROM credentials WHERE holder = $1
		ORDER BY idx
	`
	rows, err := s.db.QueryContext(ctx, query, holder.String())
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	creds := []models.Credential{}
	for rows.Next() {
		var cred models.Credential
		var issuer string
		if err := rows.Scan(&cred.Index, &cred.CredentialType, &cred.DataHash,
			&issuer, &cred.IssuedAt, &cred.Valid); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		cred.Issuer = id.AccountID(issuer)
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return creds, nil
}

func (s *Store) Count(ctx context.Context, holder id.AccountID) (int, error) {
	const query = `SELECT COUNT(*) FROM credentials WHERE holder = $1`
	var count int
	if err := s.db.QueryRowContext(ctx, query, holder.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return count, nil
}

// Execute locks the credential row, validates, mutates, and persists the
// validity flag. A validation failure rolls back with the row untouched.
func (s *Store) Execute(ctx context.Context, holder id.AccountID, index int,
	validate func(*models.Credential) error,
	mutate func(*models.Credential)) (*models.Credential, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("execute credential: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const query = `
		SELECT idx, credential_type, data_hash, issuer, issued_at, valid
		FROM credentials WHERE holder = $1 AND idx = $2
		FOR UPDATE
	`
	var cred models.Credential
	var issuer string
	err = tx.QueryRowContext(ctx, query, holder.String(), index).Scan(
		&cred.Index, &cred.CredentialType, &cred.DataHash,
		&issuer, &cred.IssuedAt, &cred.Valid,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrOutOfRange
		}
		return nil, fmt.Errorf("execute credential: %w", err)
	}
	cred.Issuer = id.AccountID(issuer)

	if err := validate(&cred); err != nil {
		return nil, err
	}
	mutate(&cred)

	const update = `UPDATE credentials SET valid = $3 WHERE holder = $1 AND idx = $2`
	if _, err := tx.ExecContext(ctx, update, holder.String(), index, cred.Valid); err != nil {
		return nil, fmt.Errorf("execute credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("execute credential: %w", err)
	}
	return &cred, nil
}

// -----------------------------------------------------------------------------
// IssuerStore
// -----------------------------------------------------------------------------

func (s *Store) SetAuthorized(ctx context.Context, account id.AccountID, authorized bool) error {
	const query = `
		INSERT INTO issuers (account, authorized)
		VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET authorized = EXCLUDED.authorized
	`
	if _, err := s.db.ExecContext(ctx, query, account.String(), authorized); err != nil {
		return fmt.Errorf("set issuer authorization: %w", err)
	}
	return nil
}

func (s *Store) IsAuthorized(ctx context.Context, account id.AccountID) (bool, error) {
	const query = `SELECT authorized FROM issuers WHERE account = $1`
	var authorized bool
	err := s.db.QueryRowContext(ctx, query, account.String()).Scan(&authorized)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("issuer authorization lookup: %w", err)
	}
	return authorized, nil
}

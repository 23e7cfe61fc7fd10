package service

import (
	"context"

	"attestry/internal/registry/models"
	id "attestry/pkg/domain"
)

// Stores are interface-driven so the registry core stays testable and the
// in-memory, Postgres, and cached implementations swap without rewiring
// business code. Stores return pkg/platform/sentinel errors; the service
// translates them into coded domain errors.

// IdentityStore persists identity records keyed by account.
type IdentityStore interface {
	// Create stores a new identity. Returns sentinel.ErrConflict when an
	// identity already exists for the account.
	Create(ctx context.Context, identity *models.Identity) error
	// Find returns the identity for the account, or sentinel.ErrNotFound.
	// Implementations may serve Find from a cache.
	Find(ctx context.Context, account id.AccountID) (*models.Identity, error)
	// FindForUpdate returns the identity from the primary store, never a
	// cache. Read-modify-write flows must use it: a cached snapshot fed
	// into Update would write stale fields back over a newer record.
	FindForUpdate(ctx context.Context, account id.AccountID) (*models.Identity, error)
	// Update replaces an existing identity. Returns sentinel.ErrNotFound
	// when no identity exists for the account.
	Update(ctx context.Context, identity *models.Identity) error
	// Exists reports whether an identity exists for the account.
	Exists(ctx context.Context, account id.AccountID) (bool, error)
}

// CredentialStore persists the per-holder append-only credential sequences.
// Indices are stable once assigned; implementations never reorder or delete.
type CredentialStore interface {
	// Append adds a credential to the end of the holder's sequence and sets
	// credential.Index to the assigned position (prior length).
	Append(ctx context.Context, holder id.AccountID, credential *models.Credential) error
	// List returns the holder's full sequence, revoked entries included, in
	// insertion order.
	List(ctx context.Context, holder id.AccountID) ([]models.Credential, error)
	// Count returns the holder's sequence length. Unknown holders count 0.
	Count(ctx context.Context, holder id.AccountID) (int, error)
	// Execute atomically validates and mutates the credential at index.
	// The lock is held across both callbacks so no concurrent mutation can
	// interleave between validation and mutation. Returns
	// sentinel.ErrOutOfRange when index is past the end, the validate error
	// unchanged when validation fails, and a snapshot of the credential
	// after mutation otherwise.
	Execute(ctx context.Context, holder id.AccountID, index int,
		validate func(*models.Credential) error,
		mutate func(*models.Credential)) (*models.Credential, error)
}

// IssuerStore persists the issuer-authorization set.
type IssuerStore interface {
	// SetAuthorized flips an account's authorization flag. Idempotent.
	SetAuthorized(ctx context.Context, account id.AccountID, authorized bool) error
	// IsAuthorized reports whether the account may issue credentials.
	IsAuthorized(ctx context.Context, account id.AccountID) (bool, error)
}

// Package memory provides the in-memory registry stores. They keep the
// default deployment dependency-free and are the reference for the
// invariants the Postgres stores must match: create-if-absent identities,
// append-only credential sequences with stable indices, and an idempotent
// issuer set.
package memory

import (
	"context"
	"sync"

	"attestry/internal/registry/models"
	id "attestry/pkg/domain"
	"attestry/pkg/platform/sentinel"
)

// IdentityStore keeps identity records in a map keyed by account. All
// returned records are copies so callers can mutate freely before Update.
type IdentityStore struct {
	mu         sync.RWMutex
	identities map[id.AccountID]models.Identity
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{identities: make(map[id.AccountID]models.Identity)}
}

func (s *IdentityStore) Create(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[identity.Account]; ok {
		return sentinel.ErrConflict
	}
	s.identities[identity.Account] = *identity
	return nil
}

func (s *IdentityStore) Find(_ context.Context, account id.AccountID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[account]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &identity, nil
}

// FindForUpdate is Find: the in-memory store has no cache to bypass.
func (s *IdentityStore) FindForUpdate(ctx context.Context, account id.AccountID) (*models.Identity, error) {
	return s.Find(ctx, account)
}

func (s *IdentityStore) Update(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[identity.Account]; !ok {
		return sentinel.ErrNotFound
	}
	s.identities[identity.Account] = *identity
	return nil
}

func (s *IdentityStore) Exists(_ context.Context, account id.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.identities[account]
	return ok, nil
}

// CredentialStore keeps per-holder append-only sequences. Entries are never
// reordered or deleted; only the validity flag ever changes after append.
type CredentialStore struct {
	mu        sync.RWMutex
	sequences map[id.AccountID][]models.Credential
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{sequences: make(map[id.AccountID][]models.Credential)}
}

func (s *CredentialStore) Append(_ context.Context, holder id.AccountID, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential.Index = len(s.sequences[holder])
	s.sequences[holder] = append(s.sequences[holder], *credential)
	return nil
}

func (s *CredentialStore) List(_ context.Context, holder id.AccountID) ([]models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Credential{}, s.sequences[holder]...), nil
}

func (s *CredentialStore) Count(_ context.Context, holder id.AccountID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sequences[holder]), nil
}

// Execute validates and mutates the credential at index under one lock
// acquisition, so no concurrent mutation can interleave between the checks
// and the write. A validation failure leaves the record untouched.
func (s *CredentialStore) Execute(_ context.Context, holder id.AccountID, index int,
	validate func(*models.Credential) error,
	mutate func(*models.Credential)) (*models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.sequences[holder]
	if index < 0 || index >= len(seq) {
		return nil, sentinel.ErrOutOfRange
	}
	if err := validate(&seq[index]); err != nil {
		return nil, err
	}
	mutate(&seq[index])
	snapshot := seq[index]
	return &snapshot, nil
}

// IssuerStore keeps the issuer-authorization set. Both flips are
// idempotent.
type IssuerStore struct {
	mu         sync.RWMutex
	authorized map[id.AccountID]bool
}

func NewIssuerStore() *IssuerStore {
	return &IssuerStore{authorized: make(map[id.AccountID]bool)}
}

func (s *IssuerStore) SetAuthorized(_ context.Context, account id.AccountID, authorized bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if authorized {
		s.authorized[account] = true
		return nil
	}
	delete(s.authorized, account)
	return nil
}

func (s *IssuerStore) IsAuthorized(_ context.Context, account id.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorized[account], nil
}

package models

import (
	"time"

	id "attestry/pkg/domain"
	dErrors "attestry/pkg/domain-errors"
)

// Identity is the self-asserted profile record for a single account.
//
// Invariants:
//   - Exactly one Identity exists per account; creation of a second fails
//   - Name and Email are non-empty at creation
//   - CreatedAt is immutable after construction
//   - UpdatedAt is refreshed on every successful mutation
//   - An identity is never deleted; existence is a one-way transition
type Identity struct {
	Account     id.AccountID `json:"account"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	ProfileHash string       `json:"profile_hash"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IdentityField names a mutable identity field for update notifications.
type IdentityField string

const (
	FieldName        IdentityField = "name"
	FieldEmail       IdentityField = "email"
	FieldProfileHash IdentityField = "profileHash"
)

func NewIdentity(account id.AccountID, name, email, profileHash string, now time.Time) (*Identity, error) {
	if account.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "account is required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "name cannot be empty")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email cannot be empty")
	}
	return &Identity{
		Account:     account,
		Name:        name,
		Email:       email,
		ProfileHash: profileHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ApplyUpdate sets each supplied (non-empty) field and returns the fields
// that were supplied, in declaration order. UpdatedAt is refreshed
// unconditionally: the reference behavior touches it on every successful
// update call, field changes or not.
func (i *Identity) ApplyUpdate(name, email, profileHash string, now time.Time) []IdentityField {
	var changed []IdentityField
	if name != "" {
		i.Name = name
		changed = append(changed, FieldName)
	}
	if email != "" {
		i.Email = email
		changed = append(changed, FieldEmail)
	}
	if profileHash != "" {
		i.ProfileHash = profileHash
		changed = append(changed, FieldProfileHash)
	}
	i.UpdatedAt = now
	return changed
}

// Credential is one issuer-attested claim in a holder's append-only
// sequence.
//
// Invariants:
//   - Index is stable once assigned; the sequence never reorders or deletes
//   - Issuer and IssuedAt are immutable after construction
//   - Valid starts true and may transition to false exactly once
type Credential struct {
	Index          int          `json:"index"`
	CredentialType string       `json:"credential_type"`
	DataHash       string       `json:"data_hash"`
	Issuer         id.AccountID `json:"issuer"`
	IssuedAt       time.Time    `json:"issued_at"`
	Valid          bool         `json:"valid"`
}

func NewCredential(issuer id.AccountID, credentialType, dataHash string, now time.Time) (*Credential, error) {
	if issuer.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issuer is required")
	}
	if credentialType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential type cannot be empty")
	}
	if dataHash == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "data hash cannot be empty")
	}
	return &Credential{
		CredentialType: credentialType,
		DataHash:       dataHash,
		Issuer:         issuer,
		IssuedAt:       now,
		Valid:          true,
	}, nil
}

// CanRevoke checks whether the caller may revoke this credential. Only the
// original issuer may revoke, and only while the credential is valid.
// Use with ApplyRevocation in Execute callbacks.
func (c *Credential) CanRevoke(caller id.AccountID) error {
	if caller != c.Issuer {
		return dErrors.New(dErrors.CodeUnauthorized, "only the issuing account may revoke")
	}
	if !c.Valid {
		return dErrors.New(dErrors.CodeAlreadyRevoked, "credential is already revoked")
	}
	return nil
}

// ApplyRevocation clears the validity flag. Revocation is permanent; no
// transition back to valid exists. Call CanRevoke first.
func (c *Credential) ApplyRevocation() {
	c.Valid = false
}

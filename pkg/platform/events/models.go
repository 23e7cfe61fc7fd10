// Package events carries the registry's observable notifications.
//
// Every successful mutation of the registry emits exactly one event per
// state change, synchronously and in emission order. The event model is
// transport-agnostic so stores and stream sinks can fan out.
package events

import (
	"context"
	"time"

	id "attestry/pkg/domain"
)

// Kind names a registry notification.
type Kind string

const (
	// KindIdentityCreated is emitted once when an identity is established.
	KindIdentityCreated Kind = "identity_created"
	// KindIdentityUpdated is emitted once per field changed by an identity
	// update, naming the field.
	KindIdentityUpdated Kind = "identity_updated"
	// KindCredentialAdded is emitted when an issuer attaches a credential.
	KindCredentialAdded Kind = "credential_added"
	// KindCredentialRevoked is emitted when the issuing account revokes a
	// credential.
	KindCredentialRevoked Kind = "credential_revoked"
)

// Event is a single registry notification.
//
// Account is the identity owner (identity events) or credential holder
// (credential events). Issuer and CredentialType are set on credential
// events only; Name on identity_created, Field on identity_updated.
type Event struct {
	ID             string
	Kind           Kind
	Timestamp      time.Time
	Account        id.AccountID
	Issuer         id.AccountID
	Name           string
	Field          string
	CredentialType string
	RequestID      string
}

// Store persists emitted events in order. Implementations must preserve
// append order per account.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, account id.AccountID) ([]Event, error)
}

// Sink receives events for out-of-process delivery (message brokers, logs).
// Delivery through sinks is best-effort; the Store is the record.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

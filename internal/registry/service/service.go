package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"

	registrymetrics "attestry/internal/registry/metrics"
	"attestry/internal/registry/models"
	id "attestry/pkg/domain"
	dErrors "attestry/pkg/domain-errors"
	"attestry/pkg/platform/events"
	"attestry/pkg/platform/sentinel"
	"attestry/pkg/requestcontext"
)

var tracer = otel.Tracer("attestry/internal/registry/service")

// Service is the registry core. It owns the identity and credential
// lifecycles plus issuer authorization, and enforces every access-control
// and consistency rule.
//
// Every mutating operation runs its full precondition chain before any
// write, inside one StoreTx boundary, so a failed call leaves state
// untouched and calls serialize into a total order. Notifications are
// emitted synchronously through the events publisher as part of the same
// boundary, one per state change, in order.
type Service struct {
	owner       id.AccountID
	identities  IdentityStore
	credentials CredentialStore
	issuers     IssuerStore
	publisher   *events.Publisher
	logger      *slog.Logger
	metrics     *registrymetrics.Metrics
	tx          StoreTx
}

type serviceConfig struct {
	logger  *slog.Logger
	metrics *registrymetrics.Metrics
	tx      StoreTx
}

// Option configures the Service.
type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) { cfg.logger = logger }
}

func WithMetrics(m *registrymetrics.Metrics) Option {
	return func(cfg *serviceConfig) { cfg.metrics = m }
}

// WithTx overrides the serialization boundary, e.g. with a database
// transaction wrapper for the Postgres stores.
func WithTx(tx StoreTx) Option {
	return func(cfg *serviceConfig) { cfg.tx = tx }
}

// NewService wires the registry core. The owner account is fixed for the
// lifetime of the service; no transfer-of-ownership operation exists.
// Call Bootstrap before serving so the owner is seeded into the issuer set.
func NewService(owner id.AccountID, identities IdentityStore, credentials CredentialStore,
	issuers IssuerStore, publisher *events.Publisher, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	tx := cfg.tx
	if tx == nil {
		tx = newInMemoryTx()
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		owner:       owner,
		identities:  identities,
		credentials: credentials,
		issuers:     issuers,
		publisher:   publisher,
		logger:      logger,
		metrics:     cfg.metrics,
		tx:          tx,
	}
}

// Bootstrap seeds the owner into the issuer-authorization set. The owner is
// authorized to issue from initialization onward.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.owner.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "registry owner is required")
	}
	if err := s.issuers.SetAuthorized(ctx, s.owner, true); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed owner as issuer")
	}
	return nil
}

// Owner returns the fixed owner account.
func (s *Service) Owner() id.AccountID {
	return s.owner
}

// CreateIdentity establishes the caller's identity record. The caller
// becomes the identity key.
//
// Errors: CodeConflict when the caller already has an identity,
// CodeInvalidInput when name or email is empty.
func (s *Service) CreateIdentity(ctx context.Context, caller id.AccountID, name, email, profileHash string) (*models.Identity, error) {
	ctx, span := tracer.Start(ctx, "registry.createIdentity")
	defer span.End()

	var identity *models.Identity
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		exists, err := s.identities.Exists(txCtx, caller)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "identity lookup failed")
		}
		if exists {
			return dErrors.New(dErrors.CodeConflict, "identity already exists for account")
		}

		ident, err := models.NewIdentity(caller, name, email, profileHash, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.identities.Create(txCtx, ident); err != nil {
			return wrapIdentityErr(err)
		}
		if err := s.publisher.Emit(txCtx, events.Event{
			Kind:    events.KindIdentityCreated,
			Account: caller,
			Name:    ident.Name,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record identity_created event")
		}
		identity = ident
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncIdentityCreated()
	return identity, nil
}

// UpdateIdentity updates the caller's own identity. Each supplied non-empty
// field is set independently; empty means "leave unchanged". UpdatedAt is
// refreshed on every successful call even when no field was supplied.
//
// Errors: CodeNotFound when the caller has no identity.
func (s *Service) UpdateIdentity(ctx context.Context, caller id.AccountID, name, email, profileHash string) (*models.Identity, error) {
	ctx, span := tracer.Start(ctx, "registry.updateIdentity")
	defer span.End()

	var identity *models.Identity
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// Read the primary, never a cache: the record read here is written
		// back below, so a stale snapshot would undo newer fields.
		ident, err := s.identities.FindForUpdate(txCtx, caller)
		if err != nil {
			return wrapIdentityErr(err)
		}

		changed := ident.ApplyUpdate(name, email, profileHash, requestcontext.Now(txCtx))
		if err := s.identities.Update(txCtx, ident); err != nil {
			return wrapIdentityErr(err)
		}
		for _, field := range changed {
			if err := s.publisher.Emit(txCtx, events.Event{
				Kind:    events.KindIdentityUpdated,
				Account: caller,
				Field:   string(field),
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record identity_updated event")
			}
		}
		identity = ident
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncIdentityUpdated()
	return identity, nil
}

// AddCredential appends a credential to the holder's sequence with the
// caller as issuer. Index is the prior sequence length and never changes.
//
// Errors: CodeUnauthorized when the caller is not an authorized issuer,
// CodeNotFound when the holder has no identity, CodeInvalidInput when
// credentialType or dataHash is empty.
func (s *Service) AddCredential(ctx context.Context, caller, holder id.AccountID, credentialType, dataHash string) (*models.Credential, error) {
	ctx, span := tracer.Start(ctx, "registry.addCredential")
	defer span.End()

	var credential *models.Credential
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requireIssuer(txCtx, caller); err != nil {
			return err
		}
		if err := s.requireIdentity(txCtx, holder); err != nil {
			return err
		}

		cred, err := models.NewCredential(caller, credentialType, dataHash, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.credentials.Append(txCtx, holder, cred); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append credential")
		}
		if err := s.publisher.Emit(txCtx, events.Event{
			Kind:           events.KindCredentialAdded,
			Account:        holder,
			Issuer:         caller,
			CredentialType: cred.CredentialType,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record credential_added event")
		}
		credential = cred
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCredentialIssued(credentialType)
	return credential, nil
}

// RevokeCredential permanently clears the validity flag of the holder's
// credential at index. Only the original issuer may revoke; nothing besides
// the flag changes.
//
// Errors: CodeNotFound when the holder has no identity, CodeOutOfRange when
// index is past the sequence end, CodeUnauthorized when the caller is not
// the original issuer, CodeAlreadyRevoked when the flag is already cleared.
func (s *Service) RevokeCredential(ctx context.Context, caller, holder id.AccountID, index int) (*models.Credential, error) {
	ctx, span := tracer.Start(ctx, "registry.revokeCredential")
	defer span.End()

	var credential *models.Credential
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requireIdentity(txCtx, holder); err != nil {
			return err
		}

		cred, err := s.credentials.Execute(txCtx, holder, index,
			func(c *models.Credential) error {
				return c.CanRevoke(caller)
			},
			func(c *models.Credential) {
				c.ApplyRevocation()
			},
		)
		if err != nil {
			if errors.Is(err, sentinel.ErrOutOfRange) {
				return dErrors.Wrap(err, dErrors.CodeOutOfRange, "credential index out of range")
			}
			return err
		}
		if err := s.publisher.Emit(txCtx, events.Event{
			Kind:           events.KindCredentialRevoked,
			Account:        holder,
			Issuer:         cred.Issuer,
			CredentialType: cred.CredentialType,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record credential_revoked event")
		}
		credential = cred
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCredentialRevoked(credential.CredentialType)
	return credential, nil
}

// GetIdentity returns a snapshot of the account's identity.
//
// Errors: CodeNotFound when no identity exists.
func (s *Service) GetIdentity(ctx context.Context, account id.AccountID) (*models.Identity, error) {
	ctx, span := tracer.Start(ctx, "registry.getIdentity")
	defer span.End()

	identity, err := s.identities.Find(ctx, account)
	if err != nil {
		return nil, wrapIdentityErr(err)
	}
	return identity, nil
}

// GetUserCredentials returns the account's full credential sequence,
// revoked entries included, in insertion order with original indices.
//
// Errors: CodeNotFound when no identity exists.
func (s *Service) GetUserCredentials(ctx context.Context, account id.AccountID) ([]models.Credential, error) {
	ctx, span := tracer.Start(ctx, "registry.getUserCredentials")
	defer span.End()

	if err := s.requireIdentity(ctx, account); err != nil {
		return nil, err
	}
	creds, err := s.credentials.List(ctx, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential lookup failed")
	}
	return creds, nil
}

// AddAuthorizedIssuer grants an account the right to issue credentials.
// Owner-only.
//
// Errors: CodeUnauthorized when the caller is not the owner,
// CodeInvalidInput on the zero account.
func (s *Service) AddAuthorizedIssuer(ctx context.Context, caller, issuer id.AccountID) error {
	ctx, span := tracer.Start(ctx, "registry.addAuthorizedIssuer")
	defer span.End()

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requireOwner(caller); err != nil {
			return err
		}
		if issuer.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "issuer account is required")
		}
		if err := s.issuers.SetAuthorized(txCtx, issuer, true); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to authorize issuer")
		}
		return nil
	})
}

// RemoveAuthorizedIssuer withdraws an account's right to issue credentials.
// Owner-only and idempotent: removing a non-authorized issuer is a no-op
// success. Credentials already issued by the account stay untouched; only
// the original issuer may still revoke them.
func (s *Service) RemoveAuthorizedIssuer(ctx context.Context, caller, issuer id.AccountID) error {
	ctx, span := tracer.Start(ctx, "registry.removeAuthorizedIssuer")
	defer span.End()

	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.requireOwner(caller); err != nil {
			return err
		}
		if err := s.issuers.SetAuthorized(txCtx, issuer, false); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deauthorize issuer")
		}
		return nil
	})
}

// CheckIdentityExists reports whether an identity exists for the account.
// Never fails; unknown accounts report false.
func (s *Service) CheckIdentityExists(ctx context.Context, account id.AccountID) bool {
	exists, err := s.identities.Exists(ctx, account)
	if err != nil {
		s.logger.ErrorContext(ctx, "identity existence check failed",
			"account", account.String(), "error", err.Error())
		return false
	}
	return exists
}

// GetCredentialCount returns the length of the account's credential
// sequence. Never fails; unknown accounts count 0.
func (s *Service) GetCredentialCount(ctx context.Context, account id.AccountID) int {
	count, err := s.credentials.Count(ctx, account)
	if err != nil {
		s.logger.ErrorContext(ctx, "credential count failed",
			"account", account.String(), "error", err.Error())
		return 0
	}
	return count
}

// IsAuthorizedIssuer reports whether the account is in the issuer set.
// Never fails; unknown accounts report false.
func (s *Service) IsAuthorizedIssuer(ctx context.Context, account id.AccountID) bool {
	authorized, err := s.issuers.IsAuthorized(ctx, account)
	if err != nil {
		s.logger.ErrorContext(ctx, "issuer authorization check failed",
			"account", account.String(), "error", err.Error())
		return false
	}
	return authorized
}

// ListEvents returns the notifications recorded for an account in emission
// order.
func (s *Service) ListEvents(ctx context.Context, account id.AccountID) ([]events.Event, error) {
	return s.publisher.List(ctx, account)
}

// requireOwner gates owner-only operations.
func (s *Service) requireOwner(caller id.AccountID) error {
	if caller != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "only the registry owner may manage issuers")
	}
	return nil
}

// requireIssuer gates credential issuance on issuer-set membership.
func (s *Service) requireIssuer(ctx context.Context, caller id.AccountID) error {
	authorized, err := s.issuers.IsAuthorized(ctx, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "issuer authorization check failed")
	}
	if !authorized {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not an authorized issuer")
	}
	return nil
}

// requireIdentity gates operations on the target having an identity.
func (s *Service) requireIdentity(ctx context.Context, account id.AccountID) error {
	exists, err := s.identities.Exists(ctx, account)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "identity lookup failed")
	}
	if !exists {
		return dErrors.New(dErrors.CodeNotFound, "no identity exists for account")
	}
	return nil
}

// wrapIdentityErr translates identity store sentinels into domain errors.
func wrapIdentityErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "no identity exists for account")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "identity already exists for account")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "identity store failure")
	}
}

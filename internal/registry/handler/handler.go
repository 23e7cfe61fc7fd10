package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	registrymetrics "attestry/internal/registry/metrics"
	"attestry/internal/registry/models"
	"attestry/internal/transport/http/shared"
	id "attestry/pkg/domain"
	dErrors "attestry/pkg/domain-errors"
	"attestry/pkg/platform/events"
	"attestry/pkg/requestcontext"
)

// Service defines the registry operations the HTTP layer needs. The handler
// stays thin: decode, delegate, translate.
type Service interface {
	CreateIdentity(ctx context.Context, caller id.AccountID, name, email, profileHash string) (*models.Identity, error)
	UpdateIdentity(ctx context.Context, caller id.AccountID, name, email, profileHash string) (*models.Identity, error)
	AddCredential(ctx context.Context, caller, holder id.AccountID, credentialType, dataHash string) (*models.Credential, error)
	RevokeCredential(ctx context.Context, caller, holder id.AccountID, index int) (*models.Credential, error)
	GetIdentity(ctx context.Context, account id.AccountID) (*models.Identity, error)
	GetUserCredentials(ctx context.Context, account id.AccountID) ([]models.Credential, error)
	AddAuthorizedIssuer(ctx context.Context, caller, issuer id.AccountID) error
	RemoveAuthorizedIssuer(ctx context.Context, caller, issuer id.AccountID) error
	CheckIdentityExists(ctx context.Context, account id.AccountID) bool
	GetCredentialCount(ctx context.Context, account id.AccountID) int
	IsAuthorizedIssuer(ctx context.Context, account id.AccountID) bool
	ListEvents(ctx context.Context, account id.AccountID) ([]events.Event, error)
}

// Handler exposes the registry over HTTP. Reads are public; mutations run
// behind the auth middleware, which puts the caller account in the context.
type Handler struct {
	registry Service
	logger   *slog.Logger
	metrics  *registrymetrics.Metrics
	auth     func(http.Handler) http.Handler
}

func New(registry Service, logger *slog.Logger, metrics *registrymetrics.Metrics,
	auth func(http.Handler) http.Handler) *Handler {
	return &Handler{registry: registry, logger: logger, metrics: metrics, auth: auth}
}

// Register mounts the registry routes.
//
// Operation identifiers from the registry contract map to routes:
//
//	createIdentity         POST   /registry/identity
//	updateIdentity         PUT    /registry/identity
//	getIdentity            GET    /registry/identity/{account}
//	checkIdentityExists    GET    /registry/identity/{account}/exists
//	getUserCredentials     GET    /registry/identity/{account}/credentials
//	getCredentialCount     GET    /registry/identity/{account}/credentials/count
//	addCredential          POST   /registry/identity/{account}/credentials
//	revokeCredential       POST   /registry/identity/{account}/credentials/{index}/revoke
//	addAuthorizedIssuer    POST   /registry/issuers
//	removeAuthorizedIssuer DELETE /registry/issuers/{account}
//	isAuthorizedIssuer     GET    /registry/issuers/{account}
//	(event journal)        GET    /registry/events/{account}
func (h *Handler) Register(r chi.Router) {
	r.Route("/registry", func(r chi.Router) {
		r.Use(h.latency)

		// Public reads.
		r.Get("/identity/{account}", h.handleGetIdentity)
		r.Get("/identity/{account}/exists", h.handleCheckIdentityExists)
		r.Get("/identity/{account}/credentials", h.handleGetUserCredentials)
		r.Get("/identity/{account}/credentials/count", h.handleGetCredentialCount)
		r.Get("/issuers/{account}", h.handleIsAuthorizedIssuer)
		r.Get("/events/{account}", h.handleListEvents)

		// Mutations require an authenticated caller.
		r.Group(func(r chi.Router) {
			r.Use(h.auth)
			r.Post("/identity", h.handleCreateIdentity)
			r.Put("/identity", h.handleUpdateIdentity)
			r.Post("/identity/{account}/credentials", h.handleAddCredential)
			r.Post("/identity/{account}/credentials/{index}/revoke", h.handleRevokeCredential)
			r.Post("/issuers", h.handleAddIssuer)
			r.Delete("/issuers/{account}", h.handleRemoveIssuer)
		})
	})
}

func (h *Handler) handleCreateIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	identity, err := h.registry.CreateIdentity(ctx, caller, req.Name, req.Email, req.ProfileHash)
	if err != nil {
		h.logFailure(ctx, "createIdentity", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toIdentityResponse(identity))
}

func (h *Handler) handleUpdateIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req updateIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	identity, err := h.registry.UpdateIdentity(ctx, caller, req.Name, req.Email, req.ProfileHash)
	if err != nil {
		h.logFailure(ctx, "updateIdentity", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toIdentityResponse(identity))
}

func (h *Handler) handleAddCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	holder, err := h.accountParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req addCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	credential, err := h.registry.AddCredential(ctx, caller, holder, req.CredentialType, req.DataHash)
	if err != nil {
		h.logFailure(ctx, "addCredential", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toCredentialResponse(credential))
}

func (h *Handler) handleRevokeCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	holder, err := h.accountParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "credential index must be a non-negative integer"))
		return
	}

	credential, err := h.registry.RevokeCredential(ctx, caller, holder, index)
	if err != nil {
		h.logFailure(ctx, "revokeCredential", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toCredentialResponse(credential))
}

func (h *Handler) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	identity, err := h.registry.GetIdentity(r.Context(), account)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toIdentityResponse(identity))
}

func (h *Handler) handleCheckIdentityExists(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, existsResponse{
		Exists: h.registry.CheckIdentityExists(r.Context(), account),
	})
}

func (h *Handler) handleGetUserCredentials(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	creds, err := h.registry.GetUserCredentials(r.Context(), account)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toCredentialsResponse(creds))
}

func (h *Handler) handleGetCredentialCount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, countResponse{
		Count: h.registry.GetCredentialCount(r.Context(), account),
	})
}

func (h *Handler) handleAddIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req addIssuerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	// The zero account must reach the service so the operation reports
	// CodeInvalidInput per the registry contract.
	issuer, err := id.ParseAccountID(req.Issuer)
	if err != nil {
		issuer = id.ZeroAccount
	}

	if err := h.registry.AddAuthorizedIssuer(ctx, caller, issuer); err != nil {
		h.logFailure(ctx, "addAuthorizedIssuer", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	issuer, err := h.accountParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.registry.RemoveAuthorizedIssuer(ctx, caller, issuer); err != nil {
		h.logFailure(ctx, "removeAuthorizedIssuer", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleIsAuthorizedIssuer(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, issuerStatusResponse{
		Account:    account.String(),
		Authorized: h.registry.IsAuthorizedIssuer(r.Context(), account),
	})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountParam(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	evts, err := h.registry.ListEvents(r.Context(), account)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toEventResponses(evts))
}

// caller returns the authenticated account. Missing means the auth
// middleware was bypassed, which is a wiring bug, not a caller mistake.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (id.AccountID, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsZero() {
		h.logger.ErrorContext(r.Context(), "caller missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.ZeroAccount, false
	}
	return caller, true
}

func (h *Handler) accountParam(r *http.Request) (id.AccountID, error) {
	return id.ParseAccountID(chi.URLParam(r, "account"))
}

func (h *Handler) logFailure(ctx context.Context, operation string, err error) {
	if dErrors.Is(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, "registry operation failed",
			"request_id", requestcontext.RequestID(ctx),
			"operation", operation,
			"error", err.Error(),
		)
		return
	}
	h.logger.WarnContext(ctx, "registry operation rejected",
		"request_id", requestcontext.RequestID(ctx),
		"operation", operation,
		"error", err.Error(),
	)
}

// latency records per-route request latency.
func (h *Handler) latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.metrics.ObserveRequest(route, strconv.Itoa(sw.status), time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

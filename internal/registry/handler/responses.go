package handler

import (
	"time"

	"attestry/internal/registry/models"
	"attestry/pkg/platform/events"
)

// identityResponse is the getIdentity snapshot.
type identityResponse struct {
	Account     string    `json:"account"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	ProfileHash string    `json:"profileHash"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toIdentityResponse(identity *models.Identity) identityResponse {
	return identityResponse{
		Account:     identity.Account.String(),
		Name:        identity.Name,
		Email:       identity.Email,
		ProfileHash: identity.ProfileHash,
		CreatedAt:   identity.CreatedAt,
		UpdatedAt:   identity.UpdatedAt,
	}
}

// credentialsResponse keeps the parallel-array wire shape of the
// getUserCredentials operation: all arrays are the same length and
// index-aligned with original credential indices.
type credentialsResponse struct {
	Types      []string    `json:"types"`
	DataHashes []string    `json:"dataHashes"`
	Issuers    []string    `json:"issuers"`
	IssuedAts  []time.Time `json:"issuedAts"`
	Validities []bool      `json:"validities"`
}

func toCredentialsResponse(creds []models.Credential) credentialsResponse {
	resp := credentialsResponse{
		Types:      make([]string, len(creds)),
		DataHashes: make([]string, len(creds)),
		Issuers:    make([]string, len(creds)),
		IssuedAts:  make([]time.Time, len(creds)),
		Validities: make([]bool, len(creds)),
	}
	for i, cred := range creds {
		resp.Types[i] = cred.CredentialType
		resp.DataHashes[i] = cred.DataHash
		resp.Issuers[i] = cred.Issuer.String()
		resp.IssuedAts[i] = cred.IssuedAt
		resp.Validities[i] = cred.Valid
	}
	return resp
}

// credentialResponse is a single credential snapshot (add/revoke results).
type credentialResponse struct {
	Index          int       `json:"index"`
	CredentialType string    `json:"credentialType"`
	DataHash       string    `json:"dataHash"`
	Issuer         string    `json:"issuer"`
	IssuedAt       time.Time `json:"issuedAt"`
	Valid          bool      `json:"valid"`
}

func toCredentialResponse(cred *models.Credential) credentialResponse {
	return credentialResponse{
		Index:          cred.Index,
		CredentialType: cred.CredentialType,
		DataHash:       cred.DataHash,
		Issuer:         cred.Issuer.String(),
		IssuedAt:       cred.IssuedAt,
		Valid:          cred.Valid,
	}
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type countResponse struct {
	Count int `json:"count"`
}

type issuerStatusResponse struct {
	Account    string `json:"account"`
	Authorized bool   `json:"authorized"`
}

// eventResponse is one recorded notification.
type eventResponse struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Timestamp      time.Time `json:"timestamp"`
	Account        string    `json:"account"`
	Issuer         string    `json:"issuer,omitempty"`
	Name           string    `json:"name,omitempty"`
	Field          string    `json:"field,omitempty"`
	CredentialType string    `json:"credentialType,omitempty"`
}

func toEventResponses(evts []events.Event) []eventResponse {
	out := make([]eventResponse, len(evts))
	for i, evt := range evts {
		out[i] = eventResponse{
			ID:             evt.ID,
			Kind:           string(evt.Kind),
			Timestamp:      evt.Timestamp,
			Account:        evt.Account.String(),
			Issuer:         evt.Issuer.String(),
			Name:           evt.Name,
			Field:          evt.Field,
			CredentialType: evt.CredentialType,
		}
	}
	return out
}

package handler

// createIdentityRequest carries the createIdentity operation body.
type createIdentityRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	ProfileHash string `json:"profileHash"`
}

// updateIdentityRequest carries the updateIdentity operation body. Empty
// fields mean "leave unchanged".
type updateIdentityRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	ProfileHash string `json:"profileHash"`
}

// addCredentialRequest carries the addCredential operation body; the holder
// comes from the URL and the issuer is the authenticated caller.
type addCredentialRequest struct {
	CredentialType string `json:"credentialType"`
	DataHash       string `json:"dataHash"`
}

// addIssuerRequest carries the addAuthorizedIssuer operation body.
type addIssuerRequest struct {
	Issuer string `json:"issuer"`
}

package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "attestry/pkg/domain"
	"attestry/pkg/requestcontext"
)

// RequireAuth validates the bearer token and injects the caller account into
// the request context. The token subject is the caller's account identifier;
// the registry treats it as opaque beyond ParseAccountID validation.
func RequireAuth(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := callerFromRequest(r, signingKey)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected unauthenticated request",
					"request_id", requestcontext.RequestID(r.Context()),
					"path", r.URL.Path,
					"error", err.Error(),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="attestry"`)
				http.Error(w, "invalid or missing bearer token", http.StatusUnauthorized)
				return
			}
			ctx := requestcontext.WithCaller(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func callerFromRequest(r *http.Request, signingKey string) (id.AccountID, error) {
	header := r.Header.Get("Authorization")
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		return id.ZeroAccount, jwt.ErrTokenMalformed
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return []byte(signingKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return id.ZeroAccount, err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return id.ZeroAccount, err
	}
	return id.ParseAccountID(subject)
}

// MintToken issues a signed bearer token for an account. Used by tests and
// local tooling; production callers bring tokens from their own issuer
// sharing the signing key.
func MintToken(signingKey string, account id.AccountID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   account.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(signingKey))
}

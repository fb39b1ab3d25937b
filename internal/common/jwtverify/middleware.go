package jwtverify

import (
	"context"
	"net/http"
	"strings"

	commonhttp "github.com/AlibekovAA/crypt-ledger/internal/common/http"
	"github.com/AlibekovAA/crypt-ledger/internal/common/logger"
)

type contextKey string

const claimsKey contextKey = "identity_claims"

// Middleware authenticates the gateway caller from a Bearer header or a token query parameter.
func Middleware(secret string, log *logger.Logger) func(next http.Handler) http.Handler {
	secretBytes := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := ExtractToken(r)
			if !ok {
				log.WithFields(r.Context(), logger.Fields{
					"path":   r.URL.Path,
					"action": "identity_token_missing",
				}).Warn("identity auth failed: missing token")
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingToken, "missing or invalid authorization", nil, "")
				return
			}

			claims, err := ParseIdentityToken(tokenString, secretBytes)
			if err != nil {
				log.WithFields(r.Context(), logger.Fields{
					"path":   r.URL.Path,
					"error":  err.Error(),
					"action": "identity_token_invalid",
				}).Warn("identity auth failed")
				commonhttp.HandleError(w, r, err, log)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ExtractToken(r *http.Request) (string, bool) {
	raw := r.Header.Get("Authorization")
	if strings.HasPrefix(raw, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
		return token, token != ""
	}
	token := r.URL.Query().Get("token")
	return token, token != ""
}

func FromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(Claims)
	return claims, ok
}

func WithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}


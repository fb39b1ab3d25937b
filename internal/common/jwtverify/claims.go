package jwtverify

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
)

// Claims identify a chat user as asserted by the identity provider.
type Claims struct {
	ExternalID  string
	DisplayName string
	Tag         string
	Bot         bool
	DMEnabled   bool
}

type identityClaims struct {
	Username  string `json:"usr"`
	Tag       string `json:"tag,omitempty"`
	Bot       bool   `json:"bot,omitempty"`
	DMEnabled bool   `json:"dm"`
	jwt.RegisteredClaims
}

func ParseIdentityToken(tokenString string, secret []byte) (Claims, error) {
	var parsed identityClaims
	token, err := jwt.ParseWithClaims(tokenString, &parsed, keyFunc(secret))
	if err != nil {
		return Claims{}, mapParseError(err)
	}
	if !token.Valid {
		return Claims{}, commonerrors.ErrInvalidToken
	}
	if parsed.Subject == "" || parsed.Username == "" {
		return Claims{}, commonerrors.ErrMissingTokenClaims
	}

	return Claims{
		ExternalID:  parsed.Subject,
		DisplayName: parsed.Username,
		Tag:         parsed.Tag,
		Bot:         parsed.Bot,
		DMEnabled:   parsed.DMEnabled,
	}, nil
}

// IssueIdentityToken is used by local tooling and tests to mint gateway tokens.
func IssueIdentityToken(claims Claims, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	c := identityClaims{
		Username:  claims.DisplayName,
		Tag:       claims.Tag,
		Bot:       claims.Bot,
		DMEnabled: claims.DMEnabled,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.ExternalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

func keyFunc(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, commonerrors.ErrInvalidTokenSigningMethod
		}
		return secret, nil
	}
}

func mapParseError(err error) error {
	if de, ok := commonerrors.AsDomainError(err); ok {
		return de
	}
	return commonerrors.ErrInvalidToken.WithCause(err)
}

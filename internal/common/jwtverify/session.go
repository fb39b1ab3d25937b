package jwtverify

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
)

const sessionIssuer = "crypt-web"

// SignSession wraps a server-side session id into a cookie value.
func SignSession(sessionID string, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	c := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

func ParseSession(tokenString string, secret []byte, now time.Time) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &c, keyFunc(secret),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return "", mapParseError(err)
	}
	if !token.Valid || c.ID == "" {
		return "", commonerrors.ErrInvalidToken
	}
	return c.ID, nil
}

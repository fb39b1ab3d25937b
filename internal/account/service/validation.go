package service

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AlibekovAA/crypt-ledger/internal/common/constants"
	commonerrors "github.com/AlibekovAA/crypt-ledger/internal/common/errors"
)

// NormalizeUsername trims surrounding whitespace and checks the length bounds.
func NormalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(username)
	if n < constants.UsernameMinLength || n > constants.UsernameMaxLength {
		return "", commonerrors.ErrInvalidUsername
	}
	return username, nil
}

func NormalizeSecret(raw string) (string, error) {
	secret := strings.TrimSpace(raw)
	if utf8.RuneCountInString(secret) < constants.SecretMinLength || len(secret) > constants.SecretMaxLength {
		return "", commonerrors.ErrInvalidSecret
	}
	if countDigits(secret) < constants.SecretMinDigits {
		return "", commonerrors.ErrInvalidSecret
	}
	return secret, nil
}

func countDigits(value string) int {
	n := 0
	for _, r := range value {
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

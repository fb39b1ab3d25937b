package commonerrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCategory string

const (
	CategoryValidation   ErrorCategory = "VALIDATION"
	CategoryAuth         ErrorCategory = "AUTH"
	CategoryNotFound     ErrorCategory = "NOT_FOUND"
	CategoryConflict     ErrorCategory = "CONFLICT"
	CategoryUnauthorized ErrorCategory = "UNAUTHORIZED"
	CategoryInternal     ErrorCategory = "INTERNAL"
	CategoryExternal     ErrorCategory = "EXTERNAL"
)

type DomainError interface {
	error
	Code() string
	Category() ErrorCategory
	HTTPStatus() int
	Message() string
	Unwrap() error
	WithCause(cause error) DomainError
	WithMessage(message string) DomainError
}

type domainError struct {
	code     string
	category ErrorCategory
	status   int
	message  string
	cause    error
	base     *domainError
}

func (e *domainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *domainError) Code() string {
	return e.code
}

func (e *domainError) Category() ErrorCategory {
	return e.category
}

func (e *domainError) HTTPStatus() int {
	return e.status
}

func (e *domainError) Message() string {
	return e.message
}

func (e *domainError) Unwrap() error {
	return e.cause
}

// Is matches derived errors (WithCause, WithMessage) against the sentinel they came from.
func (e *domainError) Is(target error) bool {
	t, ok := target.(*domainError)
	if !ok {
		return false
	}
	return e.root() == t.root()
}

func (e *domainError) root() *domainError {
	if e.base != nil {
		return e.base
	}
	return e
}

func (e *domainError) WithCause(cause error) DomainError {
	return &domainError{
		code:     e.code,
		category: e.category,
		status:   e.status,
		message:  e.message,
		cause:    cause,
		base:     e.root(),
	}
}

func (e *domainError) WithMessage(message string) DomainError {
	return &domainError{
		code:     e.code,
		category: e.category,
		status:   e.status,
		message:  message,
		cause:    e.cause,
		base:     e.root(),
	}
}

func NewDomainError(code string, category ErrorCategory, status int, message string) DomainError {
	return &domainError{
		code:     code,
		category: category,
		status:   status,
		message:  message,
	}
}

func IsDomainError(err error) bool {
	var de DomainError
	return errors.As(err, &de)
}

func AsDomainError(err error) (DomainError, bool) {
	var de DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

var (
	ErrMissingRequiredEnv = NewDomainError(
		"MISSING_REQUIRED_ENV",
		CategoryValidation,
		http.StatusBadRequest,
		"missing required environment variable",
	)

	ErrInvalidSecretKey = NewDomainError(
		"INVALID_SECRET_KEY",
		CategoryValidation,
		http.StatusInternalServerError,
		"signing secret must be at least 32 bytes",
	)

	ErrDuplicateUsername = NewDomainError(
		"DUPLICATE_USERNAME",
		CategoryConflict,
		http.StatusConflict,
		"Invalid username or already taken. Please try again.",
	)

	ErrInvalidUsername = NewDomainError(
		"INVALID_USERNAME",
		CategoryValidation,
		http.StatusBadRequest,
		"Invalid username or already taken. Please try again.",
	)

	ErrInvalidSecret = NewDomainError(
		"INVALID_SECRET",
		CategoryValidation,
		http.StatusBadRequest,
		"Password must be at least 8 characters and contain at least 2 numbers. Try again.",
	)

	ErrNotAuthenticated = NewDomainError(
		"NOT_AUTHENTICATED",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"You don't have an account yet. Use /create to create one.",
	)

	ErrInvalidCredentials = NewDomainError(
		"INVALID_CREDENTIALS",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"Invalid username or password",
	)

	ErrAccountAlreadyExists = NewDomainError(
		"ACCOUNT_ALREADY_EXISTS",
		CategoryConflict,
		http.StatusConflict,
		"You already have an account!",
	)

	ErrAccountNotFound = NewDomainError(
		"ACCOUNT_NOT_FOUND",
		CategoryNotFound,
		http.StatusNotFound,
		"account not found",
	)

	ErrSessionExpired = NewDomainError(
		"SESSION_EXPIRED",
		CategoryValidation,
		http.StatusGone,
		"Account creation timed out. Please try again.",
	)

	ErrChallengeFailed = NewDomainError(
		"CHALLENGE_FAILED",
		CategoryValidation,
		http.StatusBadRequest,
		"Invalid captcha. Please try again.",
	)

	ErrClaimOnCooldown = NewDomainError(
		"CLAIM_ON_COOLDOWN",
		CategoryConflict,
		http.StatusTooManyRequests,
		"You can only claim your daily reward once every 24 hours.",
	)

	ErrInvalidAmount = NewDomainError(
		"INVALID_AMOUNT",
		CategoryValidation,
		http.StatusBadRequest,
		"Invalid crypt amount.",
	)

	ErrRecipientRequired = NewDomainError(
		"RECIPIENT_REQUIRED",
		CategoryValidation,
		http.StatusBadRequest,
		"Please choose a user to transfer crypt to.",
	)

	ErrInsufficientFunds = NewDomainError(
		"INSUFFICIENT_FUNDS",
		CategoryConflict,
		http.StatusConflict,
		"You do not have enough crypt to complete this transaction.",
	)

	ErrRecipientNotFound = NewDomainError(
		"RECIPIENT_NOT_FOUND",
		CategoryNotFound,
		http.StatusNotFound,
		"That user does not have an account.",
	)

	ErrSelfOrBotTransfer = NewDomainError(
		"SELF_OR_BOT_TRANSFER",
		CategoryValidation,
		http.StatusBadRequest,
		"You cannot transfer crypt to bots or yourself.",
	)

	ErrBotCaller = NewDomainError(
		"BOT_CALLER",
		CategoryUnauthorized,
		http.StatusForbidden,
		"Bots cannot use commands.",
	)

	ErrChannelUnavailable = NewDomainError(
		"CHANNEL_UNAVAILABLE",
		CategoryExternal,
		http.StatusServiceUnavailable,
		"I cannot DM you. Please make sure your DMs are enabled.",
	)

	ErrUserNotConnected = NewDomainError(
		"USER_NOT_CONNECTED",
		CategoryNotFound,
		http.StatusNotFound,
		"user not connected",
	)

	ErrInvalidToken = NewDomainError(
		"INVALID_TOKEN",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"token is not valid",
	)

	ErrInvalidTokenSigningMethod = NewDomainError(
		"INVALID_TOKEN_SIGNING_METHOD",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid token signing method",
	)

	ErrMissingTokenClaims = NewDomainError(
		"MISSING_TOKEN_CLAIMS",
		CategoryUnauthorized,
		http.StatusUnauthorized,
		"missing required token claims",
	)

	ErrInvalidPayload = NewDomainError(
		"INVALID_PAYLOAD",
		CategoryValidation,
		http.StatusBadRequest,
		"invalid payload",
	)

	ErrUnknownCommand = NewDomainError(
		"UNKNOWN_COMMAND",
		CategoryValidation,
		http.StatusBadRequest,
		"unknown command",
	)

	ErrMarshalError = NewDomainError(
		"MARSHAL_ERROR",
		CategoryInternal,
		http.StatusInternalServerError,
		"failed to marshal data",
	)

	ErrSendTimeout = NewDomainError(
		"SEND_TIMEOUT",
		CategoryExternal,
		http.StatusRequestTimeout,
		"send operation timed out",
	)

	ErrStoreUnavailable = NewDomainError(
		"STORE_UNAVAILABLE",
		CategoryExternal,
		http.StatusServiceUnavailable,
		"Service temporarily unavailable. Please try again later.",
	)

	ErrDatabaseError = NewDomainError(
		"DATABASE_ERROR",
		CategoryInternal,
		http.StatusInternalServerError,
		"database operation failed",
	)

	ErrInternalError = NewDomainError(
		"INTERNAL_ERROR",
		CategoryInternal,
		http.StatusInternalServerError,
		"Something went wrong. Please try again later.",
	)
)

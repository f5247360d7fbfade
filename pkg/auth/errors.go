package auth

import "errors"

// Code identifies a rejection reason in the structured response body so
// clients can branch without parsing messages.
type Code string

const (
	CodeMissingToken           Code = "MISSING_TOKEN"
	CodeInvalidToken           Code = "INVALID_TOKEN"
	CodeSessionNotFound        Code = "SESSION_NOT_FOUND"
	CodeSessionInactive        Code = "SESSION_INACTIVE"
	CodeSessionExpired         Code = "SESSION_EXPIRED"
	CodeSessionUserMismatch    Code = "SESSION_USER_MISMATCH"
	CodeUserNotFound           Code = "USER_NOT_FOUND"
	CodeUserDeactivated        Code = "USER_DEACTIVATED"
	CodeInsufficientRole       Code = "INSUFFICIENT_ROLE"
	CodeInsufficientPermission Code = "INSUFFICIENT_PERMISSION"
	CodeNotVerified            Code = "NOT_VERIFIED"
	CodeDriverRoleRequired     Code = "DRIVER_ROLE_REQUIRED"
	CodeRateLimitExceeded      Code = "RATE_LIMIT_EXCEEDED"
	CodeInternalFault          Code = "INTERNAL_CONSISTENCY_FAULT"
)

var (
	// ErrTokenInvalid covers signature, structure, and embedded-expiry failures
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrSecretRequired is returned when the token-signing secret is absent or too weak
	ErrSecretRequired = errors.New("token signing secret is required")
)

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum accepted length of the HS256 signing secret
const MinSecretLength = 32

// Claims is the payload encoded in an issued bearer token. Only the
// identity claim (UserID) is trusted downstream; Role and Permissions are
// carried for diagnostics and client display, and are always re-resolved
// against live state during admission.
type Claims struct {
	UserID      string   `json:"uid"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies bearer tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenManager creates a token manager. The secret is mandatory: there
// is no fallback default, so a misconfigured deployment fails at startup
// instead of signing tokens with a known key.
func NewTokenManager(secret string, ttl time.Duration, issuer string) (*TokenManager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrSecretRequired, MinSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid token ttl %v", ttl)
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
	}, nil
}

// TTL returns the lifetime stamped on issued tokens
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a new bearer token for the user. The permission snapshot is
// embedded as a claim but carries no authority.
func (tm *TokenManager) Issue(user *User, perms []Permission) (string, error) {
	now := time.Now()
	permStrings := make([]string, 0, len(perms))
	for _, p := range perms {
		permStrings = append(permStrings, string(p))
	}

	claims := Claims{
		UserID:      user.ID,
		Role:        string(user.Role),
		Permissions: permStrings,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token. Any structural, signature,
// or embedded-expiry failure collapses to ErrTokenInvalid so the response
// does not leak which check failed.
func (tm *TokenManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

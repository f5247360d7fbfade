package auth

import (
	"context"
	"fmt"
	"time"
)

// Issuer creates the token+session pair handed out at login. It exists so
// the signing secret, session lifetime, and permission snapshot stay
// consistent between the token and its server-side record.
type Issuer struct {
	tokens   *TokenManager
	sessions SessionWriter
	perms    RolePermissionStore
}

// NewIssuer creates an issuer bound to the given stores
func NewIssuer(tokens *TokenManager, sessions SessionWriter, perms RolePermissionStore) *Issuer {
	return &Issuer{
		tokens:   tokens,
		sessions: sessions,
		perms:    perms,
	}
}

// Issue signs a bearer token for the user and persists the matching
// session. The session expiry mirrors the token TTL; either one lapsing
// independently is enough to end access.
func (i *Issuer) Issue(ctx context.Context, user *User) (string, *Session, error) {
	perms, err := i.perms.PermissionsFor(ctx, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("resolve permissions: %w", err)
	}

	token, err := i.tokens.Issue(user, perms)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	session := &Session{
		Token:     token,
		UserID:    user.ID,
		IsActive:  true,
		ExpiresAt: now.Add(i.tokens.TTL()),
		CreatedAt: now,
	}
	if err := i.sessions.Create(ctx, session); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	return token, session, nil
}

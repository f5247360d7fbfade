package auth

import "context"

// SessionStore is the collaborator holding session records keyed by token.
// FindByToken returns (nil, nil) when no session exists for the token.
// Deactivate must be idempotent: deactivating an already-inactive or
// missing session is a no-op.
type SessionStore interface {
	FindByToken(ctx context.Context, token string) (*Session, error)
	Deactivate(ctx context.Context, token string) error
}

// SessionWriter is implemented by stores that also create sessions at
// login. Kept separate so the admission path depends only on SessionStore.
type SessionWriter interface {
	Create(ctx context.Context, session *Session) error
}

// UserStore is the collaborator resolving user accounts.
// FindByID returns (nil, nil) when the user does not exist.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
}

// RolePermissionStore resolves the live permission set for a role. The
// mapping is mutable independently of any issued token, which is why the
// authenticator consults it on every request.
type RolePermissionStore interface {
	PermissionsFor(ctx context.Context, role Role) ([]Permission, error)
}

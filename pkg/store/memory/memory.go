// Package memory provides in-process store implementations used for
// single-instance deployments, local development, and tests. Data does
// not survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/citymarket/gateward/pkg/auth"
)

// SessionStore holds sessions in a locked map keyed by token
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*auth.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*auth.Session)}
}

// Create stores a session keyed by its token
func (s *SessionStore) Create(ctx context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.Token] = &copied
	return nil
}

// FindByToken returns (nil, nil) when no session exists for the token
func (s *SessionStore) FindByToken(ctx context.Context, token string) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

// Deactivate flips the session inactive. Missing or already inactive
// sessions are a no-op.
func (s *SessionStore) Deactivate(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[token]; ok {
		session.IsActive = false
	}
	return nil
}

// UserStore holds user accounts in a locked map keyed by id
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*auth.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*auth.User)}
}

// Put inserts or replaces a user
func (s *UserStore) Put(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

// FindByID returns (nil, nil) when the user does not exist
func (s *UserStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

// RolePermissionStore holds the role→permission mapping in a locked map
type RolePermissionStore struct {
	mu    sync.RWMutex
	perms map[auth.Role][]auth.Permission
}

// NewRolePermissionStore starts from the built-in defaults
func NewRolePermissionStore() *RolePermissionStore {
	return &RolePermissionStore{perms: auth.DefaultRolePermissions()}
}

// PermissionsFor returns the live permission set for a role. Unknown
// roles resolve to an empty set rather than an error.
func (s *RolePermissionStore) PermissionsFor(ctx context.Context, role auth.Role) ([]auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perms := s.perms[role]
	out := make([]auth.Permission, len(perms))
	copy(out, perms)
	return out, nil
}

// Grant adds a permission to a role if not already present
func (s *RolePermissionStore) Grant(ctx context.Context, role auth.Role, p auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, held := range s.perms[role] {
		if held == p {
			return nil
		}
	}
	s.perms[role] = append(s.perms[role], p)
	return nil
}

// Revoke removes a permission from a role
func (s *RolePermissionStore) Revoke(ctx context.Context, role auth.Role, p auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.perms[role]
	for i, existing := range held {
		if existing == p {
			s.perms[role] = append(held[:i], held[i+1:]...)
			return nil
		}
	}
	return nil
}

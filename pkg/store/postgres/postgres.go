// Package postgres provides the durable store implementations backing
// sessions, users, and role permissions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/citymarket/gateward/pkg/auth"
)

// Open connects to PostgreSQL and verifies the connection
func Open(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// SessionStore persists sessions in the sessions table
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a session row
func (s *SessionStore) Create(ctx context.Context, session *auth.Session) error {
	query := `
		INSERT INTO sessions (token, user_id, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, query,
		session.Token, session.UserID, session.IsActive, session.ExpiresAt, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// FindByToken returns (nil, nil) when no session exists for the token
func (s *SessionStore) FindByToken(ctx context.Context, token string) (*auth.Session, error) {
	query := `
		SELECT token, user_id, is_active, expires_at, created_at
		FROM sessions
		WHERE token = $1`

	var session auth.Session
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&session.Token, &session.UserID, &session.IsActive, &session.ExpiresAt, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &session, nil
}

// Deactivate flips the session inactive. Updating a missing or already
// inactive row affects nothing, which keeps the operation idempotent.
func (s *SessionStore) Deactivate(ctx context.Context, token string) error {
	query := `UPDATE sessions SET is_active = false WHERE token = $1`
	if _, err := s.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("deactivating session: %w", err)
	}
	return nil
}

// UserStore reads user accounts from the users table
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// FindByID returns (nil, nil) when the user does not exist
func (s *UserStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	query := `
		SELECT id, email, COALESCE(phone, ''), role, is_verified, is_active
		FROM users
		WHERE id = $1`

	var user auth.User
	var role string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Phone, &role, &user.IsVerified, &user.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	parsed, err := auth.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	user.Role = parsed
	return &user, nil
}

// RolePermissionStore reads the role→permission mapping from the
// role_permissions table. Rows carrying unknown permission strings are
// skipped so a partially migrated table cannot grant garbage.
type RolePermissionStore struct {
	db *sql.DB
}

func NewRolePermissionStore(db *sql.DB) *RolePermissionStore {
	return &RolePermissionStore{db: db}
}

// PermissionsFor returns the live permission set for a role
func (s *RolePermissionStore) PermissionsFor(ctx context.Context, role auth.Role) ([]auth.Permission, error) {
	query := `SELECT permission FROM role_permissions WHERE role = $1 ORDER BY permission`

	rows, err := s.db.QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("querying role permissions: %w", err)
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		p, err := auth.ParsePermission(raw)
		if err != nil {
			continue
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating role permissions: %w", err)
	}
	return perms, nil
}

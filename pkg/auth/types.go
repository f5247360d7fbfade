package auth

import (
	"fmt"
	"time"
)

// Role represents a marketplace account role
type Role string

const (
	RoleUser               Role = "USER"
	RoleDriver             Role = "DRIVER"
	RoleStoreOwner         Role = "STORE_OWNER"
	RoleEmergencyResponder Role = "EMERGENCY_RESPONDER"
	RoleCityAdmin          Role = "CITY_ADMIN"
	RoleSuperAdmin         Role = "SUPER_ADMIN"
)

// Roles returns every valid role
func Roles() []Role {
	return []Role{
		RoleUser,
		RoleDriver,
		RoleStoreOwner,
		RoleEmergencyResponder,
		RoleCityAdmin,
		RoleSuperAdmin,
	}
}

// ParseRole validates a raw role string against the closed enumeration
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether the role is a member of the closed enumeration
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDriver, RoleStoreOwner, RoleEmergencyResponder, RoleCityAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// AdminTier reports whether the role bypasses ownership checks
func (r Role) AdminTier() bool {
	return r == RoleSuperAdmin || r == RoleCityAdmin
}

// Permission represents a specific capability (resource:action)
type Permission string

const (
	PermBookingCreate     Permission = "booking:create"
	PermBookingRead       Permission = "booking:read"
	PermBookingCancel     Permission = "booking:cancel"
	PermBookingAccept     Permission = "booking:accept"
	PermStoreManage       Permission = "store:manage"
	PermStoreOrder        Permission = "store:order"
	PermEmergencyRequest  Permission = "emergency:request"
	PermEmergencyDispatch Permission = "emergency:dispatch"
	PermUploadCreate      Permission = "upload:create"
	PermReviewWrite       Permission = "review:write"
	PermUserManage        Permission = "user:manage"
	PermRoleManage        Permission = "role:manage"
)

// Permissions returns every valid permission
func Permissions() []Permission {
	return []Permission{
		PermBookingCreate,
		PermBookingRead,
		PermBookingCancel,
		PermBookingAccept,
		PermStoreManage,
		PermStoreOrder,
		PermEmergencyRequest,
		PermEmergencyDispatch,
		PermUploadCreate,
		PermReviewWrite,
		PermUserManage,
		PermRoleManage,
	}
}

// ParsePermission validates a raw permission string against the closed enumeration
func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown permission %q", s)
	}
	return p, nil
}

// Valid reports whether the permission is a member of the closed enumeration
func (p Permission) Valid() bool {
	for _, known := range Permissions() {
		if p == known {
			return true
		}
	}
	return false
}

// User represents a marketplace account. Read-only from the admission
// layer's perspective.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Role       Role   `json:"role"`
	IsVerified bool   `json:"is_verified"`
	IsActive   bool   `json:"is_active"`
}

// Session is the server-side revocable record binding a token to a user.
// One session per issued token. The admission layer only ever flips
// IsActive to false; deletion belongs to the session owner.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	IsActive  bool      `json:"is_active"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session's own expiry has passed
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// Context is the request-scoped authorization context built fresh per
// request from the session, user, and role-permission lookups. Never
// persisted.
type Context struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone,omitempty"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
	IsVerified  bool         `json:"is_verified"`
	IsActive    bool         `json:"is_active"`
}

// HasPermission checks if the context holds a specific permission
func (c *Context) HasPermission(p Permission) bool {
	for _, held := range c.Permissions {
		if held == p {
			return true
		}
	}
	return false
}

// HasAnyPermission checks if the context holds at least one of the permissions
func (c *Context) HasAnyPermission(ps ...Permission) bool {
	for _, p := range ps {
		if c.HasPermission(p) {
			return true
		}
	}
	return false
}

// HasAllPermissions checks if the context holds every one of the permissions
func (c *Context) HasAllPermissions(ps ...Permission) bool {
	for _, p := range ps {
		if !c.HasPermission(p) {
			return false
		}
	}
	return true
}

// DefaultRolePermissions returns the built-in role→permission mapping used
// to seed stores that have no external source of truth.
func DefaultRolePermissions() map[Role][]Permission {
	return map[Role][]Permission{
		RoleUser: {
			PermBookingCreate,
			PermBookingRead,
			PermBookingCancel,
			PermStoreOrder,
			PermEmergencyRequest,
			PermUploadCreate,
			PermReviewWrite,
		},
		RoleDriver: {
			PermBookingRead,
			PermBookingAccept,
			PermUploadCreate,
		},
		RoleStoreOwner: {
			PermBookingRead,
			PermStoreManage,
			PermStoreOrder,
			PermUploadCreate,
			PermReviewWrite,
		},
		RoleEmergencyResponder: {
			PermBookingRead,
			PermEmergencyDispatch,
			PermUploadCreate,
		},
		RoleCityAdmin: {
			PermBookingCreate,
			PermBookingRead,
			PermBookingCancel,
			PermBookingAccept,
			PermStoreManage,
			PermStoreOrder,
			PermEmergencyRequest,
			PermEmergencyDispatch,
			PermUploadCreate,
			PermReviewWrite,
			PermUserManage,
		},
		RoleSuperAdmin: {
			PermBookingCreate,
			PermBookingRead,
			PermBookingCancel,
			PermBookingAccept,
			PermStoreManage,
			PermStoreOrder,
			PermEmergencyRequest,
			PermEmergencyDispatch,
			PermUploadCreate,
			PermReviewWrite,
			PermUserManage,
			PermRoleManage,
		},
	}
}

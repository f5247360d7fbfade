package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	for _, r := range Roles() {
		parsed, err := ParseRole(string(r))
		assert.NoError(t, err)
		assert.Equal(t, r, parsed)
	}

	_, err := ParseRole("WIZARD")
	assert.Error(t, err)

	// Case matters: the enumeration is closed, not normalized
	_, err = ParseRole("user")
	assert.Error(t, err)
}

func TestRole_AdminTier(t *testing.T) {
	assert.True(t, RoleSuperAdmin.AdminTier())
	assert.True(t, RoleCityAdmin.AdminTier())
	assert.False(t, RoleUser.AdminTier())
	assert.False(t, RoleDriver.AdminTier())
	assert.False(t, RoleStoreOwner.AdminTier())
	assert.False(t, RoleEmergencyResponder.AdminTier())
}

func TestParsePermission(t *testing.T) {
	for _, p := range Permissions() {
		parsed, err := ParsePermission(string(p))
		assert.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	_, err := ParsePermission("booking:teleport")
	assert.Error(t, err)
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, s.Expired(now))

	s.ExpiresAt = now.Add(-time.Second)
	assert.True(t, s.Expired(now))
}

func TestContext_PermissionPredicates(t *testing.T) {
	ctx := &Context{
		Role:        RoleUser,
		Permissions: []Permission{PermBookingCreate, PermBookingRead},
	}

	assert.True(t, ctx.HasPermission(PermBookingCreate))
	assert.False(t, ctx.HasPermission(PermStoreManage))

	assert.True(t, ctx.HasAnyPermission(PermStoreManage, PermBookingRead))
	assert.False(t, ctx.HasAnyPermission(PermStoreManage, PermRoleManage))

	assert.True(t, ctx.HasAllPermissions(PermBookingCreate, PermBookingRead))
	assert.False(t, ctx.HasAllPermissions(PermBookingCreate, PermStoreManage))

	// Vacuous cases
	assert.False(t, ctx.HasAnyPermission())
	assert.True(t, ctx.HasAllPermissions())
}

func TestDefaultRolePermissions_CoversEveryRole(t *testing.T) {
	defaults := DefaultRolePermissions()
	for _, r := range Roles() {
		perms, ok := defaults[r]
		assert.True(t, ok, "role %s has no default permissions", r)
		assert.NotEmpty(t, perms, "role %s has empty default permissions", r)
		for _, p := range perms {
			assert.True(t, p.Valid(), "role %s grants unknown permission %s", r, p)
		}
	}
}

package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedRolePermissions wraps a RolePermissionStore with a short-TTL LRU.
// Role mappings are read-mostly and consulted on every authenticated
// request, so a small cache absorbs nearly all of that traffic. The TTL
// bounds how stale a permission grant can be after the underlying mapping
// changes.
type CachedRolePermissions struct {
	store RolePermissionStore
	cache *expirable.LRU[Role, []Permission]
}

// NewCachedRolePermissions creates the caching decorator. A zero ttl
// disables expiry, which is only appropriate for tests.
func NewCachedRolePermissions(store RolePermissionStore, size int, ttl time.Duration) *CachedRolePermissions {
	if size <= 0 {
		size = 64
	}
	return &CachedRolePermissions{
		store: store,
		cache: expirable.NewLRU[Role, []Permission](size, nil, ttl),
	}
}

// PermissionsFor resolves the role's permissions, serving from cache when
// fresh. Lookup errors are never cached.
func (c *CachedRolePermissions) PermissionsFor(ctx context.Context, role Role) ([]Permission, error) {
	if perms, ok := c.cache.Get(role); ok {
		return perms, nil
	}

	perms, err := c.store.PermissionsFor(ctx, role)
	if err != nil {
		return nil, err
	}
	c.cache.Add(role, perms)
	return perms, nil
}

// Invalidate drops a role's cached entry, forcing the next lookup through
// to the store. Called by whoever applies role-permission updates.
func (c *CachedRolePermissions) Invalidate(role Role) {
	c.cache.Remove(role)
}

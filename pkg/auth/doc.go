// Package auth provides the identity and authorization model for the gateway.
//
// # Overview
//
// This package implements the data model and collaborator interfaces behind
// the request-admission middleware: signed bearer tokens, server-side
// revocable sessions, and role-based permission resolution. The security
// posture is deliberate: a token's identity claim is trusted only after it
// is cross-checked against a live session, and the permissions attached to a
// request are always re-resolved from the role-permission store, never taken
// from the token's embedded claims.
//
// # Key Components
//
// Roles and Permissions: closed enumerations validated at parse boundaries
//
//	RoleUser, RoleDriver, RoleStoreOwner, RoleEmergencyResponder,
//	RoleCityAdmin, RoleSuperAdmin
//
// TokenManager: HS256-signed JWTs carrying the user's identity
//
//	tm, err := auth.NewTokenManager(secret, 24*time.Hour, "gateward")
//	token, err := tm.Issue(user, perms)
//	claims, err := tm.Verify(token)
//
// Sessions: one server-side record per issued token
//
//	session := &auth.Session{Token: token, UserID: user.ID, IsActive: true, ...}
//
// Collaborator stores: SessionStore, UserStore, RolePermissionStore.
// Implementations live under pkg/store; CachedRolePermissions wraps any
// RolePermissionStore with a short-TTL LRU since role mappings are
// read-mostly.
//
// # Security Invariants
//
//   - Session.UserID must equal the token's identity claim.
//   - A session must be active and unexpired for any authenticated action.
//   - A deactivated user is rejected even with a valid session.
//   - Context permissions mirror the live store at request time.
package auth

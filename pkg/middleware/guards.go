package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/citymarket/gateward/pkg/auth"
	"github.com/citymarket/gateward/pkg/httputil"
)

// Guards evaluate the attached authorization context. Every guard gates
// on the context's presence first (401 without one) and only then checks
// its own predicate (403 on failure). Guards must sit after the
// authenticator in the chain.

// RequireRole allows only the listed roles
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, "Authentication required", "")
				return
			}
			for _, role := range roles {
				if authCtx.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.WriteForbidden(w, "Insufficient role for this resource", string(auth.CodeInsufficientRole))
		})
	}
}

// RequirePermission allows only contexts holding the permission
func RequirePermission(p auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, "Authentication required", "")
				return
			}
			if !authCtx.HasPermission(p) {
				httputil.WriteForbidden(w, "Insufficient permissions", string(auth.CodeInsufficientPermission))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission allows contexts holding at least one of the permissions
func RequireAnyPermission(ps ...auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, "Authentication required", "")
				return
			}
			if !authCtx.HasAnyPermission(ps...) {
				httputil.WriteForbidden(w, "Insufficient permissions", string(auth.CodeInsufficientPermission))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAllPermissions allows contexts holding every one of the permissions
func RequireAllPermissions(ps ...auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, "Authentication required", "")
				return
			}
			if !authCtx.HasAllPermissions(ps...) {
				httputil.WriteForbidden(w, "Insufficient permissions", string(auth.CodeInsufficientPermission))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireVerification allows only verified accounts
func RequireVerification(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil {
			httputil.WriteUnauthorized(w, "Authentication required", "")
			return
		}
		if !authCtx.IsVerified {
			httputil.WriteForbidden(w, "Account verification required", string(auth.CodeNotVerified))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireDriverRole is the role guard for driver-only routes. It returns
// a distinguishing code so driver apps can branch on it.
func RequireDriverRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil {
			httputil.WriteUnauthorized(w, "Authentication required", "")
			return
		}
		if authCtx.Role != auth.RoleDriver {
			httputil.WriteForbidden(w, "Driver role required", string(auth.CodeDriverRoleRequired))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwnership allows the request when the route's resource id
// matches the authenticated user, or unconditionally for admin-tier
// roles. The id is read from the mux route variable named by param,
// falling back to the query string.
func RequireOwnership(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, "Authentication required", "")
				return
			}
			if authCtx.Role.AdminTier() {
				next.ServeHTTP(w, r)
				return
			}
			resourceID := mux.Vars(r)[param]
			if resourceID == "" {
				resourceID = r.URL.Query().Get(param)
			}
			if resourceID != authCtx.ID {
				httputil.WriteForbidden(w, "You can only access your own resources", string(auth.CodeInsufficientPermission))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

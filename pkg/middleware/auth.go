package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/citymarket/gateward/pkg/auth"
	"github.com/citymarket/gateward/pkg/contextkeys"
	"github.com/citymarket/gateward/pkg/httputil"
	"github.com/citymarket/gateward/pkg/observability"
)

// Authenticator verifies bearer tokens against live sessions and builds
// the request's authorization context. The token's identity claim is
// trusted only after the session cross-check; role and permissions are
// always re-resolved from the stores, never taken from the token.
type Authenticator struct {
	tokens   *auth.TokenManager
	sessions auth.SessionStore
	users    auth.UserStore
	perms    auth.RolePermissionStore
	log      *logrus.Logger
	metrics  *observability.Metrics
}

// NewAuthenticator creates an authenticator over the given collaborators
func NewAuthenticator(tokens *auth.TokenManager, sessions auth.SessionStore, users auth.UserStore, perms auth.RolePermissionStore, log *logrus.Logger, metrics *observability.Metrics) *Authenticator {
	return &Authenticator{
		tokens:   tokens,
		sessions: sessions,
		users:    users,
		perms:    perms,
		log:      log,
		metrics:  metrics,
	}
}

// authFailure carries one rejection through the authentication chain
type authFailure struct {
	status  int
	code    auth.Code
	message string
}

// Require rejects any request that does not complete the full
// authentication chain. Store errors reject too: auth fails closed.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, failure := a.authenticate(r)
		if failure != nil {
			a.metrics.AuthDecisions.WithLabelValues(string(failure.code)).Inc()
			httputil.WriteRejection(w, failure.status, failure.message, "", string(failure.code))
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		r = r.WithContext(ctx)

		// The context must be readable before any guard runs. If it is
		// not, something corrupted the request context and continuing
		// would let guards see an anonymous request.
		if GetAuthContext(r) == nil {
			a.log.WithField("user_id", authCtx.ID).Error("authorization context failed to attach")
			a.metrics.AuthDecisions.WithLabelValues(string(auth.CodeInternalFault)).Inc()
			httputil.WriteInternalFault(w, string(auth.CodeInternalFault))
			return
		}

		a.metrics.AuthDecisions.WithLabelValues("ok").Inc()
		next.ServeHTTP(w, r)
	})
}

// Optional runs the same chain but never rejects: a request that fails
// any step continues anonymously, and only a fully successful chain
// attaches a context. Used by routes that personalize for known users
// while staying open to everyone.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, failure := a.authenticate(r)
		if failure != nil {
			if failure.code == auth.CodeInternalFault {
				a.metrics.AuthDecisions.WithLabelValues(string(failure.code)).Inc()
				httputil.WriteInternalFault(w, string(failure.code))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		a.metrics.AuthDecisions.WithLabelValues("ok").Inc()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate runs the full chain: token, session, user, permissions.
// The session lookup, user lookup, and permission resolution must run in
// that order; each depends on the previous result.
func (a *Authenticator) authenticate(r *http.Request) (*auth.Context, *authFailure) {
	token := extractBearer(r)
	if token == "" {
		return nil, &authFailure{http.StatusUnauthorized, auth.CodeMissingToken, "Access token required"}
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, &authFailure{http.StatusUnauthorized, auth.CodeInvalidToken, "Invalid or expired token"}
	}

	ctx := r.Context()

	session, err := a.sessions.FindByToken(ctx, token)
	if err != nil {
		a.log.WithError(err).Warn("session lookup failed")
		return nil, &authFailure{http.StatusUnauthorized, auth.CodeInvalidToken, "Invalid or expired token"}
	}
	if session == nil {
		return nil, &authFailure{http.StatusUnauthorized, auth.CodeSessionNotFound, "Session not found"}
	}
	if !session.IsActive {
		return nil, &authFailure{http.StatusUnauthorized, auth.CodeSessionInactive, "Session is no longer active"}
	}
	if session.Expired(time.Now()) {
		// Lazy eviction: flip the session inactive before rejecting so
		// the next request against this token short-circuits at the
		// inactive check instead of re-evaluating expiry. Deactivation
		// is idempotent, so a concurrent duplicate write is harmless.
		if err := a.sessions.Deactivate(ctx, token); err != nil {
			a.log.WithError(err).WithField("user_id", session.UserID).Warn("failed to deactivate expired session")
		}
		return nil, &authFailure{http.StatusUnauthorized, auth.CodeSessionExpired, "Session has expired"}
	}
	if session.UserID != claims.UserID {
		// Token/session substitution. Keep the message conservative.
		return nil, &authFailure{http.StatusUnauthorized, auth.CodeSessionUserMismatch, "Invalid or expired token"}
	}

	user, err := a.users.FindByID(ctx, session.UserID)
	if err != nil {
		a.log.WithError(err).Warn("user lookup failed")
		return nil, &authFailure{http.StatusUnauthorized, auth.CodeInvalidToken, "Invalid or expired token"}
	}
	if user == nil {
		return nil, &authFailure{http.StatusNotFound, auth.CodeUserNotFound, "User not found"}
	}
	if !user.IsActive {
		return nil, &authFailure{http.StatusForbidden, auth.CodeUserDeactivated, "User account is deactivated"}
	}

	perms, err := a.perms.PermissionsFor(ctx, user.Role)
	if err != nil {
		a.log.WithError(err).WithField("role", user.Role).Warn("permission resolution failed")
		return nil, &authFailure{http.StatusUnauthorized, auth.CodeInvalidToken, "Invalid or expired token"}
	}

	return &auth.Context{
		ID:          user.ID,
		Email:       user.Email,
		Phone:       user.Phone,
		Role:        user.Role,
		Permissions: perms,
		IsVerified:  user.IsVerified,
		IsActive:    user.IsActive,
	}, nil
}

// extractBearer pulls the token out of the Authorization header.
// Format: "Bearer <token>".
func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// GetAuthContext extracts the authorization context from a request.
// Returns nil for anonymous requests.
func GetAuthContext(r *http.Request) *auth.Context {
	v := r.Context().Value(contextkeys.AuthKey)
	if v == nil {
		return nil
	}
	authCtx, ok := v.(*auth.Context)
	if !ok {
		return nil
	}
	return authCtx
}

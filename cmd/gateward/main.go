package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/citymarket/gateward/pkg/auth"
	"github.com/citymarket/gateward/pkg/config"
	"github.com/citymarket/gateward/pkg/httputil"
	"github.com/citymarket/gateward/pkg/middleware"
	"github.com/citymarket/gateward/pkg/observability"
	"github.com/citymarket/gateward/pkg/ratelimit"
	"github.com/citymarket/gateward/pkg/store/memory"
	"github.com/citymarket/gateward/pkg/store/postgres"
	"github.com/citymarket/gateward/pkg/store/redisstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("configuration error: %v", err)
	}

	log := observability.NewLogger(cfg.Log.Level, os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	health := observability.NewHealthHandler()

	tokens, err := auth.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL, cfg.Auth.TokenIssuer)
	if err != nil {
		log.Fatalf("token manager: %v", err)
	}

	// Store wiring: postgres when configured, in-memory otherwise.
	var (
		sessions auth.SessionStore
		writer   auth.SessionWriter
		users    auth.UserStore
		perms    auth.RolePermissionStore
	)
	if cfg.Store.PostgresURL != "" {
		db, err := postgres.Open(cfg.Store.PostgresURL)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer db.Close()
		pgSessions := postgres.NewSessionStore(db)
		sessions, writer = pgSessions, pgSessions
		users = postgres.NewUserStore(db)
		perms = postgres.NewRolePermissionStore(db)
		health.Register("postgres", db.PingContext)
		log.Info("using postgres stores")
	} else {
		memSessions := memory.NewSessionStore()
		sessions, writer = memSessions, memSessions
		memUsers := memory.NewUserStore()
		seedDemoUsers(log, memUsers)
		users = memUsers
		perms = memory.NewRolePermissionStore()
		log.Warn("no GATEWARD_POSTGRES_URL set, using in-memory stores")
	}

	// Counter cache: shared redis when configured, per-process otherwise.
	var cache ratelimit.CounterCache
	if cfg.Store.RedisURL != "" {
		client, err := redisstore.NewClient(cfg.Store.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		redisCache := ratelimit.NewRedisCounterCache(client, "gateward")
		cache = redisCache
		health.Register("redis", redisCache.Ping)
		// Sessions move to redis too so revocation is shared.
		if cfg.Store.PostgresURL == "" {
			redisSessions := redisstore.NewSessionStore(client, "gateward:session")
			sessions, writer = redisSessions, redisSessions
		}
		log.Info("using redis counter cache")
	} else {
		memCache := ratelimit.NewMemoryCounterCache()
		rootCtx, rootCancel := context.WithCancel(context.Background())
		defer rootCancel()
		memCache.StartCleanup(rootCtx, time.Minute)
		cache = memCache
		log.Warn("no GATEWARD_REDIS_URL set, rate limits are per-instance")
	}

	if cfg.Auth.PermCache.Enabled {
		perms = auth.NewCachedRolePermissions(perms, cfg.Auth.PermCache.Size, cfg.Auth.PermCache.TTL)
	}

	policies := middleware.DefaultPolicies()
	if cfg.Store.PolicyOverridesPath != "" {
		overrides, err := middleware.LoadOverrides(cfg.Store.PolicyOverridesPath)
		if err != nil {
			log.Fatalf("policy overrides: %v", err)
		}
		if policies, err = middleware.ApplyOverrides(policies, overrides); err != nil {
			log.Fatalf("policy overrides: %v", err)
		}
		log.WithField("path", cfg.Store.PolicyOverridesPath).Info("applied rate limit policy overrides")
	}
	registry := middleware.NewRegistry(policies)

	authn := middleware.NewAuthenticator(tokens, sessions, users, perms, log, metrics)
	limiter := middleware.NewLimiter(cache, log, metrics)
	issuer := auth.NewIssuer(tokens, writer, perms)

	router := buildRouter(log, registry, authn, limiter, issuer, users)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	healthMux.Handle("/healthz", health)
	healthMux.Handle("/metrics", metrics.Handler())
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = healthServer.Shutdown(shutdownCtx)
		return apiServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Info("shutdown complete")
}

// buildRouter mounts the demo route surface behind the full admission
// chain. Domain handlers are placeholders; real marketplace services sit
// behind this gateway.
func buildRouter(log *logrus.Logger, registry *middleware.Registry, authn *middleware.Authenticator, limiter *middleware.Limiter, issuer *auth.Issuer, users auth.UserStore) *mux.Router {
	router := mux.NewRouter()
	router.Use(httputil.RequestID)
	router.Use(httputil.Logging(log))
	router.Use(httputil.Recovery(log))
	router.Use(limiter.Middleware(registry.MustGet("global")))

	// Login sits outside the authenticator and under the strict auth
	// policy. The demo binary authenticates by user id alone; a real
	// deployment fronts a credential service here.
	login := router.PathPrefix("/auth").Subrouter()
	login.Use(limiter.Middleware(registry.MustGet("auth")))
	login.Handle("/login", loginHandler(log, issuer, users)).Methods(http.MethodPost)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(limiter.Middleware(registry.MustGet("api")))
	api.Use(authn.Require)
	api.Use(limiter.Middleware(registry.MustGet("user")))

	bookings := api.PathPrefix("/bookings").Subrouter()
	bookings.Use(limiter.Middleware(registry.MustGet("booking")))
	bookings.Handle("", guard(middleware.RequirePermission(auth.PermBookingCreate), placeholder("booking created"))).Methods(http.MethodPost)
	bookings.Handle("", guard(middleware.RequirePermission(auth.PermBookingRead), placeholder("bookings listed"))).Methods(http.MethodGet)
	bookings.Handle("/accept", guard(middleware.RequireDriverRole, placeholder("booking accepted"))).Methods(http.MethodPost)

	emergency := api.PathPrefix("/emergency").Subrouter()
	emergency.Use(limiter.Middleware(registry.MustGet("emergency")))
	emergency.Handle("", guard(middleware.RequirePermission(auth.PermEmergencyRequest), placeholder("emergency requested"))).Methods(http.MethodPost)
	emergency.Handle("/dispatch", guard(middleware.RequirePermission(auth.PermEmergencyDispatch), placeholder("responder dispatched"))).Methods(http.MethodPost)

	uploads := api.PathPrefix("/uploads").Subrouter()
	uploads.Use(limiter.Middleware(registry.MustGet("upload")))
	uploads.Handle("", guard(middleware.RequireVerification,
		guard(middleware.RequirePermission(auth.PermUploadCreate), placeholder("upload accepted")))).Methods(http.MethodPost)

	api.Handle("/users/{userId}/profile",
		guard(middleware.RequireOwnership("userId"), placeholder("profile"))).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(limiter.Middleware(registry.MustGet("admin")))
	admin.Use(middleware.RequireRole(auth.RoleCityAdmin, auth.RoleSuperAdmin))
	admin.Handle("/users", guard(middleware.RequirePermission(auth.PermUserManage), placeholder("users listed"))).Methods(http.MethodGet)
	admin.Handle("/roles", guard(middleware.RequirePermission(auth.PermRoleManage), placeholder("roles listed"))).Methods(http.MethodGet)

	return router
}

func guard(g func(http.Handler) http.Handler, next http.Handler) http.Handler {
	return g(next)
}

func placeholder(message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": message,
		})
	})
}

type loginRequest struct {
	UserID string `json:"userId"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func loginHandler(log *logrus.Logger, issuer *auth.Issuer, users auth.UserStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			httputil.WriteRejection(w, http.StatusBadRequest, "userId is required", "", "")
			return
		}

		user, err := users.FindByID(r.Context(), req.UserID)
		if err != nil {
			log.WithError(err).Warn("login lookup failed")
			httputil.WriteUnauthorized(w, "Invalid credentials", "")
			return
		}
		if user == nil || !user.IsActive {
			httputil.WriteUnauthorized(w, "Invalid credentials", "")
			return
		}

		token, session, err := issuer.Issue(r.Context(), user)
		if err != nil {
			log.WithError(err).WithField("user_id", req.UserID).Warn("login failed")
			httputil.WriteUnauthorized(w, "Invalid credentials", "")
			return
		}

		_ = httputil.WriteJSON(w, http.StatusOK, loginResponse{
			Success:   true,
			Token:     token,
			ExpiresAt: session.ExpiresAt,
		})
	})
}

// seedDemoUsers loads a small fixture set so the binary is usable
// without a database.
func seedDemoUsers(log *logrus.Logger, users *memory.UserStore) {
	demo := []*auth.User{
		{ID: "demo-user", Email: "user@example.com", Role: auth.RoleUser, IsVerified: true, IsActive: true},
		{ID: "demo-driver", Email: "driver@example.com", Role: auth.RoleDriver, IsVerified: true, IsActive: true},
		{ID: "demo-admin", Email: "admin@example.com", Role: auth.RoleSuperAdmin, IsVerified: true, IsActive: true},
	}
	for _, u := range demo {
		if err := users.Put(context.Background(), u); err != nil {
			log.WithError(err).Warn("seeding demo user")
		}
	}
	log.WithField("count", len(demo)).Info("seeded demo users")
}

package server

import (
	"log/slog"
	"net/http"

	"realm-server/internal/auth"
	"realm-server/internal/gateway"
	"realm-server/internal/middleware"
	serverHandlers "realm-server/internal/server/handlers"
	"realm-server/internal/shared/cookies"
	"realm-server/internal/shared/database"
	"realm-server/internal/shared/redis"
)

type Routes struct {
	db       *database.DB
	redis    *redis.Client
	zones    serverHandlers.ZoneLister
	players  serverHandlers.PlayerCounter
	gateway  *gateway.Handler
	tokens   *auth.Tokens
	limiter  *middleware.RateLimiter
	cookie   cookies.Options
	devLogin bool
}

type Options struct {
	DB      *database.DB
	Redis   *redis.Client
	Zones   serverHandlers.ZoneLister
	Players serverHandlers.PlayerCounter
	Gateway *gateway.Handler
	Tokens  *auth.Tokens
	Limiter *middleware.RateLimiter
	Cookie  cookies.Options
	// DevLogin routes the development token endpoint.
	DevLogin bool
}

func NewRoutes(opts Options) *Routes {
	return &Routes{
		db:       opts.DB,
		redis:    opts.Redis,
		zones:    opts.Zones,
		players:  opts.Players,
		gateway:  opts.Gateway,
		tokens:   opts.Tokens,
		limiter:  opts.Limiter,
		cookie:   opts.Cookie,
		devLogin: opts.DevLogin,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()
	requireAuth := middleware.JWTMiddleware(r.tokens)
	limited := func(h http.Handler) http.Handler {
		if r.limiter == nil {
			return h
		}
		return r.limiter.Middleware(h)
	}

	// Public endpoints
	mux.Handle("/api/server/health", serverHandlers.NewHealthHandler(r.db, r.redis))
	mux.Handle("/api/zones", serverHandlers.NewZonesHandler(r.zones, r.players))
	mux.Handle("/auth/logout", serverHandlers.NewLogoutHandler(r.cookie))

	// Protected endpoints (authenticated users)
	mux.Handle("/api/players/me", requireAuth(serverHandlers.NewMeHandler()))
	mux.Handle("/ws", limited(requireAuth(r.gateway)))

	authEndpoints := []string{"/auth/logout"}
	if r.devLogin {
		mux.Handle("/auth/dev-token", limited(serverHandlers.NewDevTokenHandler(r.tokens, r.cookie)))
		authEndpoints = append(authEndpoints, "/auth/dev-token")
	}

	logger.Info("Routes configured successfully",
		"public_endpoints", []string{"/api/server/health", "/api/zones"},
		"protected_endpoints", []string{"/api/players/me", "/ws"},
		"auth_endpoints", authEndpoints,
	)

	return mux
}

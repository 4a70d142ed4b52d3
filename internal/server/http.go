package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizlive/quizlive/internal/config"
	"github.com/quizlive/quizlive/internal/identity"
)

// WSUpgrader handles WebSocket upgrades (configure CORS/security as needed).
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: implement proper origin checking for production
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handlers groups the route handlers the server mounts.
type Handlers struct {
	Identity       *identity.HTTPHandlers
	IdentitySvc    *identity.Service
	Sessions       http.HandlerFunc // REST session management
	Quizzes        http.HandlerFunc // REST quiz management
	GameWS         http.HandlerFunc // WebSocket upgrade for live games
}

// NewHTTPServer wires routes for the API service.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, rdb *redis.Client, h Handlers) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, rdb); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if h.Identity != nil {
		mux.HandleFunc("/v1/auth/register", h.Identity.Register)
		mux.HandleFunc("/v1/auth/login", h.Identity.Login)
	}

	var withAuth func(http.Handler) http.Handler
	if h.IdentitySvc != nil {
		withAuth = identity.Middleware(h.IdentitySvc, logger)
	} else {
		withAuth = func(next http.Handler) http.Handler { return next }
	}

	if h.Identity != nil {
		mux.Handle("/v1/hosts/me", withAuth(identity.RequireAuth(http.HandlerFunc(h.Identity.GetMe))))
	}
	if h.Quizzes != nil {
		mux.Handle("/v1/quizzes", withAuth(identity.RequireAuth(h.Quizzes)))
		mux.Handle("/v1/quizzes/", withAuth(identity.RequireAuth(h.Quizzes)))
	}
	if h.Sessions != nil {
		mux.Handle("/v1/sessions", withAuth(h.Sessions))
		mux.Handle("/v1/sessions/", withAuth(h.Sessions))
	}

	if h.GameWS != nil {
		mux.HandleFunc("/ws/game", h.GameWS)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, rdb *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}

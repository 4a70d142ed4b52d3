package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quizlive/quizlive/internal/config"
	"github.com/quizlive/quizlive/internal/db/repository"
	"github.com/quizlive/quizlive/internal/identity"
	"github.com/quizlive/quizlive/internal/logging"
	"github.com/quizlive/quizlive/internal/notify"
	"github.com/quizlive/quizlive/internal/quiz"
	"github.com/quizlive/quizlive/internal/server"
	"github.com/quizlive/quizlive/internal/session"
	ws "github.com/quizlive/quizlive/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server
}

// New bootstraps config, logger, Postgres, Redis and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password,
		cfg.Postgres.Database, cfg.Postgres.SSLMode, cfg.Postgres.PoolSize)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	sessionRepo := repository.NewSessionRepository(pool)
	participantRepo := repository.NewParticipantRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	hostRepo := repository.NewHostRepository(pool)

	tokenMgr := identity.NewTokenManager([]byte(cfg.Security.JWTSecret), 0, cfg.Name)
	identitySvc := identity.NewService(hostRepo, tokenMgr, logger)
	identityHandlers := identity.NewHTTPHandlers(identitySvc, logger)

	publisher := notify.NewPublisher(redisClient, logger)
	subscriber := notify.NewSubscriber(redisClient, logger)

	stateMachine := session.NewStateMachine(sessionRepo, participantRepo, quizRepo, publisher, nil, logger)
	ledger := session.NewLedger(sessionRepo, participantRepo, answerRepo, quizRepo, publisher, nil,
		cfg.Game.MaxNicknameLength, logger)
	pins := session.NewPINGenerator(sessionRepo, cfg.Game.MaxPINAttempts)
	sessionSvc := session.NewService(stateMachine, ledger, pins, sessionRepo, quizRepo, publisher, nil, logger)

	wsHub := ws.NewHub(logger)
	orchestrator := session.NewOrchestrator(sessionSvc, wsHub, cfg.Game.TickInterval, cfg.Game.AutoAdvance, logger)
	bridge := session.NewBridge(sessionSvc, subscriber, wsHub, logger)
	gameHandler := session.NewHandler(sessionSvc, orchestrator, bridge, wsHub, cfg.Game.PresenceTimeout, logger)

	sessionHTTP := session.NewHTTPHandlers(sessionSvc, logger)
	quizHTTP := quiz.NewHTTPHandlers(quizRepo, logger)

	gameWS := func(w http.ResponseWriter, r *http.Request) {
		// Resolve the optional host token before hijacking the connection.
		hostID := hostIDFromRequest(identitySvc, r, logger)
		conn, err := server.WSUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		gameHandler.HandleConnection(conn, hostID)
	}

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, server.Handlers{
		Identity:    identityHandlers,
		IdentitySvc: identitySvc,
		Sessions:    sessionHTTP.ServeHTTP,
		Quizzes:     quizHTTP.ServeHTTP,
		GameWS:      gameWS,
	})

	return &Application{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		http:   apiServer,
	}, nil
}

// hostIDFromRequest resolves a bearer token (header or ?token= for browser
// WebSocket clients) to a host id. Anonymous connections get nil.
func hostIDFromRequest(svc *identity.Service, r *http.Request, logger zerolog.Logger) *uuid.UUID {
	token := identity.BearerToken(r)
	if token == "" {
		return nil
	}
	claims, err := svc.Authenticate(token)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket token rejected")
		return nil
	}
	id := claims.UserID
	return &id
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

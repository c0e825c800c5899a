package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"authgate/internal/config"
	"authgate/internal/handlers"
	"authgate/internal/logger"
	"authgate/internal/repository"
	"authgate/internal/repository/db"
	"authgate/internal/server"
	"authgate/internal/service"
	"authgate/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// @title        authgate API
// @version      1.0
// @description  Username/password registration, login and logout backed by bcrypt and a session cookie.
// @BasePath     /
func main() {
	cfg, err := config.Load("configs")
	if err != nil {
		// logger is not configured yet
		logger.Get(logger.InfoLevel, logger.FormatConsole).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	gin.SetMode(cfg.GinMode)

	// context for startup work and background clients
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// open DB
	conn, err := openDB(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to init database", "driver", cfg.DB.Driver, "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close database", "err", cerr)
		}
	}()

	hasher, err := service.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		log.Fatalw("invalid password hashing settings", "err", err)
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to init login limiter", "backend", cfg.Limiter.Backend, "err", err)
	}
	defer closeLimiter()

	sessions, err := session.New(cfg.Session.Backend, session.Options{
		Name:   cfg.Session.Name,
		Secret: []byte(cfg.Session.Secret),
		MaxAge: cfg.Session.MaxAge,
		Secure: cfg.Session.Secure,
	})
	if err != nil {
		log.Fatalw("failed to init sessions", "err", err)
	}

	// wire dependencies
	repos := repository.NewRepository(conn, cfg.DB.Driver)
	services := service.NewService(repos, hasher, limiter)
	apiHandler := handlers.NewHandler(services, sessions, log, handlers.Options{
		AuthPrefix:     cfg.HTTP.AuthPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})

	// start HTTP server
	srv := server.New(server.Options{
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	})
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	log.Infow("server started", "port", cfg.Port, "db_driver", cfg.DB.Driver,
		"session_backend", cfg.Session.Backend, "limiter_backend", cfg.Limiter.Backend,
		"bcrypt_cost", hasher.Cost())

	// graceful shutdown
	waitForShutdown(cancel, srv, cfg, log)
}

// openDB connects to the configured database and applies migrations.
func openDB(ctx context.Context, cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	return db.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, log)
}

// newLimiter builds the login attempt limiter and a func releasing its resources.
func newLimiter(ctx context.Context, cfg *config.Config) (service.AttemptLimiter, func(), error) {
	policy := service.LimiterPolicy{
		MaxAttempts:  cfg.Auth.MaxLoginAttempts,
		Window:       cfg.Auth.LoginWindow,
		LockDuration: cfg.Auth.LockDuration,
	}
	if cfg.Limiter.Backend != config.LimiterRedis {
		return service.NewMemoryAttemptLimiter(policy), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return service.NewRedisAttemptLimiter(rdb, policy), func() { _ = rdb.Close() }, nil
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, cfg *config.Config, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}

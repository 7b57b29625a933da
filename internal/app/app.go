package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"library-lending/internal/cache"
	"library-lending/internal/config"
	"library-lending/internal/handler"
	"library-lending/internal/middleware"
	"library-lending/internal/router"
	"library-lending/internal/service"
)

type App struct {
	server       *http.Server
	handler      http.Handler
	cleanupFuncs []func()
}

// Services is the wired business layer, shared by the HTTP server and the CLI.
type Services struct {
	Tokens  *service.TokenService
	Auth    *service.AuthService
	Users   *service.UserService
	Books   *service.BookService
	Lending *service.LendingService
}

// NewServices fails when the signing secret is unusable; that is the one fatal configuration
// error of the service.
func NewServices(cfg *config.Config, stores *Stores) (*Services, *service.PrincipalResolver, error) {
	tokens, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	resolver := service.NewPrincipalResolver(stores.Users, cfg.PrincipalLookupTimeout)
	return &Services{
		Tokens:  tokens,
		Auth:    service.NewAuthService(tokens, stores.Users, resolver),
		Users:   service.NewUserService(stores.Users),
		Books:   service.NewBookService(stores.Books),
		Lending: service.NewLendingService(stores.Lending, stores.Transactions),
	}, resolver, nil
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, resolver, err := NewServices(cfg, stores)
	if err != nil {
		stores.Close()
		return nil, err
	}

	if cfg.SeedDemoData {
		if err := SeedDemoUsers(ctx, svc.Users); err != nil {
			stores.Close()
			return nil, err
		}
	}

	cleanup := []func(){stores.Close}
	healthChecks := []func(context.Context) error{stores.Health}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connected; idempotent borrow enabled", "addr", cfg.RedisAddr)
		cleanup = append(cleanup, func() { _ = redisClient.Close() })
		healthChecks = append(healthChecks, func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	appRouter := router.New(cfg,
		middleware.NewAuthMiddleware(svc.Tokens, resolver),
		middleware.NewIdempotency(redisClient, cfg.IdempotencyTTL),
		router.Handlers{
			Auth:         handler.NewAuthHandler(svc.Auth, svc.Users),
			Book:         handler.NewBookHandler(svc.Books),
			User:         handler.NewUserHandler(svc.Users),
			Transaction:  handler.NewTransactionHandler(svc.Lending),
			Docs:         handler.NewDocsHandler(),
			HealthChecks: healthChecks,
		},
	)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		handler:      appRouter,
		cleanupFuncs: cleanup,
	}, nil
}

// Handler exposes the fully wired router, for tests.
func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) Close() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		a.Close()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-stop:
		slog.Info("shutdown requested", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.server.Shutdown(ctx)
	// Stores close after in-flight requests have drained.
	a.Close()
	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go-accounts/internal/avatar"
	"go-accounts/internal/cache"
	"go-accounts/internal/config"
	"go-accounts/internal/database"
	"go-accounts/internal/event"
	"go-accounts/internal/handler"
	"go-accounts/internal/metrics"
	"go-accounts/internal/middleware"
	"go-accounts/internal/repository"
	"go-accounts/internal/router"
	"go-accounts/internal/security"
	"go-accounts/internal/service"
	"go-accounts/internal/storage"
	"go-accounts/internal/telemetry"
	"go-accounts/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

// Services groups the application services sharing one store, cache and bus.
type Services struct {
	Tokens  *service.TokenService
	Auth    *service.AuthService
	Users   *service.UserService
	Friends *service.FriendService
	Audit   *service.AuditService
}

func NewServices(cfg *config.Config, store repository.Store, versions cache.VersionCache, bus event.Bus, m *metrics.Metrics, avatars service.AvatarStore) (*Services, error) {
	tokens, err := service.NewTokenService(cfg.JWT(), store, versions, bus, m)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	audit := service.NewAuditService(store)
	auth, err := service.NewAuthService(store, tokens, security.NewBcryptHasher(cfg.BcryptCost), audit, m)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	return &Services{
		Tokens:  tokens,
		Auth:    auth,
		Users:   service.NewUserService(store, tokens, avatars, audit, bus),
		Friends: service.NewFriendService(store, bus),
		Audit:   audit,
	}, nil
}

// NewHandler builds the HTTP handler tree over svc.
func NewHandler(cfg *config.Config, svc *Services, hub *websocket.Hub, health interface{ Health(context.Context) error }, m *metrics.Metrics) http.Handler {
	authMiddleware := middleware.NewAuthMiddleware(svc.Tokens)

	return router.New(cfg, authMiddleware, m, router.Handlers{
		Auth:      handler.NewAuthHandler(svc.Auth),
		Users:     handler.NewUserHandler(svc.Users, cfg.AvatarMaxBytes),
		Friends:   handler.NewFriendHandler(svc.Friends),
		Audit:     handler.NewAuditHandler(svc.Audit),
		Websocket: handler.NewWebsocketHandler(hub, svc.Tokens, cfg.CORSOrigins),
		Health:    handler.NewHealthHandler(health),
	})
}

// NewAvatarStore opens the avatar directory under cfg.AvatarRoot.
func NewAvatarStore(cfg *config.Config) (*avatar.Service, error) {
	files, err := storage.New(cfg.AvatarRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize avatar storage: %w", err)
	}
	return avatar.NewService(files, cfg.AvatarMaxBytes, cfg.AvatarSize), nil
}

type App struct {
	server       *http.Server
	hub          *websocket.Hub
	bus          *event.InMemoryBus
	forwarder    *event.NATSForwarder
	tracing      *telemetry.Tracing
	cleanupFuncs []func()
}

// New connects every backing service and assembles the HTTP server. The
// version cache and NATS are optional; Postgres is not.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{}
	ok := false
	defer func() {
		if !ok {
			app.cleanup()
		}
	}()

	tracing, err := telemetry.Init(ctx, cfg.OTelServiceName, cfg.OTelEndpoint)
	if err != nil {
		return nil, err
	}
	app.tracing = tracing

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Options{
		URL:                cfg.DatabaseURL,
		MaxConns:           cfg.DBMaxConns,
		MinConns:           cfg.DBMinConns,
		SlowQueryThreshold: cfg.DBSlowQueryThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.cleanupFuncs = append(app.cleanupFuncs, db.Close)

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, "up"); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	slog.Info("database ready")

	versions, closeCache := cache.Connect(ctx, cfg.RedisURL, cfg.TokenVersionCacheTTL)
	app.cleanupFuncs = append(app.cleanupFuncs, func() { _ = closeCache() })

	app.bus = event.NewBus()
	if cfg.NATSURL != "" {
		conn, natsErr := event.ConnectNATS(cfg.NATSURL, cfg.OTelServiceName)
		if natsErr != nil {
			slog.Warn("nats unavailable; events stay in-process", "error", natsErr)
		} else {
			app.forwarder = event.NewNATSForwarder(conn, cfg.NATSSubjectPrefix)
			app.cleanupFuncs = append(app.cleanupFuncs, conn.Close)
		}
	}

	avatars, err := NewAvatarStore(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	m.WatchEventDrops(app.bus.Dropped)
	svc, err := NewServices(cfg, repository.NewPostgresStore(db.Pool), versions, app.bus, m, avatars)
	if err != nil {
		return nil, err
	}

	app.hub = websocket.NewHub(app.bus)
	app.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           tracing.Wrap(NewHandler(cfg, svc, app.hub, db, m)),
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	ok = true
	return app, nil
}

// Run serves until ctx is cancelled, then drains connections.
func (a *App) Run(ctx context.Context) error {
	workers, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	go a.hub.Run(workers)
	if a.forwarder != nil {
		go a.forwarder.Run(workers, a.bus)
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		a.cleanup()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stopWorkers()
	err := a.server.Shutdown(shutdownCtx)
	if traceErr := a.tracing.Shutdown(shutdownCtx); traceErr != nil {
		slog.Warn("tracer shutdown failed", "error", traceErr)
	}
	a.cleanup()

	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

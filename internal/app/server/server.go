package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrcopilot/internal/domain/assistant"
	"hrcopilot/internal/domain/audit"
	"hrcopilot/internal/domain/core"
	"hrcopilot/internal/domain/leave"
	"hrcopilot/internal/domain/reports"
	"hrcopilot/internal/platform/config"
	"hrcopilot/internal/platform/db"
	"hrcopilot/internal/platform/jobs"
	"hrcopilot/internal/platform/memstore"
	"hrcopilot/internal/platform/metrics"
	redisclient "hrcopilot/internal/platform/redis"
	"hrcopilot/internal/transport/http/api"
	assistanthandler "hrcopilot/internal/transport/http/handlers/assistant"
	audithandler "hrcopilot/internal/transport/http/handlers/audit"
	corehandler "hrcopilot/internal/transport/http/handlers/core"
	leavehandler "hrcopilot/internal/transport/http/handlers/leave"
	reportshandler "hrcopilot/internal/transport/http/handlers/reports"
	"hrcopilot/internal/transport/http/middleware"
)

const (
	healthMessage       = "HR Copilot backend is running"
	idempotencyMemTTL   = 24 * time.Hour
	rateLimitWindow     = time.Minute
	shutdownGracePeriod = 10 * time.Second
)

type App struct {
	Config    config.Config
	DB        *pgxpool.Pool
	Redis     *redisclient.Client
	Router    http.Handler
	Directory core.Directory
	Leave     *leave.Service
	Jobs      *jobs.Service
	Metrics   *metrics.Collector

	ping   func(context.Context) error
	cancel context.CancelFunc
}

// New wires stores, services and the router for cfg. Background jobs start immediately and
// stop on Close.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg, Metrics: metrics.New()}

	var (
		leaveStore  leave.StoreAPI
		auditSvc    *audit.Service
		idempotency middleware.IdempotencyStore
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := memstore.New()
		app.Directory, leaveStore = store, store
		app.ping = store.Ping
		app.Jobs = jobs.New(nil)
		auditSvc = audit.New(nil)
		idempotency = middleware.NewMemoryIdempotencyStore(idempotencyMemTTL)
		slog.Warn("using in-memory store, data is lost on restart")
	default:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		app.DB = pool
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		app.Directory, leaveStore = core.NewStore(pool), leave.NewStore(pool)
		app.ping = pool.Ping
		app.Jobs = jobs.New(pool)
		auditSvc = audit.New(pool)
		idempotency = middleware.NewPostgresIdempotencyStore(pool)
	}

	holidays, err := leave.LoadHolidays(cfg.HolidaysFile)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("load holidays: %w", err)
	}

	app.Leave = leave.NewService(leaveStore, app.Directory, leave.Options{
		Policy:            leave.Policy{BusinessDays: cfg.BusinessDays, Holidays: holidays},
		OverlapCheck:      cfg.OverlapCheck,
		SwapInvertedRange: cfg.SwapInvertedRange,
	})
	app.Leave.Observer = app.Metrics
	app.Jobs.Observer = app.Metrics

	if cfg.RunSeed {
		if _, err := core.SeedDemoEmployees(ctx, app.Directory); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	if cfg.ClearLeavesOnStart {
		removed, err := app.Leave.ClearRecords(ctx)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("clear leaves: %w", err)
		}
		slog.Info("leave records cleared on start", "removed", removed)
	}

	var sessions assistant.SessionStore = assistant.NewMemorySessionStore(cfg.SessionTTL)
	if cfg.RedisURL != "" {
		client, err := redisclient.New(ctx, cfg.RedisURL)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Redis = client
		sessions = assistant.NewRedisSessionStore(client.Client, cfg.SessionTTL)
	}
	chat := assistant.NewService(app.Leave, app.Directory, sessions, holidays)

	bgCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.Jobs.Start(bgCtx)
	if cfg.NormalizeSweepInterval > 0 {
		app.Jobs.Schedule(bgCtx, jobs.JobBalanceNormalize, cfg.NormalizeSweepInterval, func(ctx context.Context) (any, error) {
			return app.Leave.NormalizeAll(ctx)
		})
	}

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyHeader, "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Total-Count", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestID)
	var recorder middleware.RequestRecorder
	if cfg.MetricsEnabled {
		recorder = app.Metrics
	}
	router.Use(middleware.Logger(recorder))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	health := func(w http.ResponseWriter, r *http.Request) {
		api.Raw(w, http.StatusOK, map[string]string{"status": "ok", "message": healthMessage})
	}
	router.Get("/", health)
	router.Get("/healthz", health)
	router.Get("/readyz", app.handleReady)
	if cfg.MetricsEnabled {
		router.Handle("/metrics", app.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, rateLimitWindow))
		r.Use(middleware.LeaveMutationRateLimit(cfg.RateLimitPerMinute, rateLimitWindow))

		corehandler.NewHandler(app.Directory, auditSvc, app.Jobs, cfg.JWTSecret).RegisterRoutes(r)
		leavehandler.NewHandler(app.Leave, holidays, auditSvc, idempotency, cfg.JWTSecret).RegisterRoutes(r)
		reportshandler.NewHandler(reports.NewService(app.Leave)).RegisterRoutes(r)
		assistanthandler.NewHandler(chat).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc, cfg.JWTSecret).RegisterRoutes(r)
	})
	app.Router = router

	return app, nil
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ping(ctx); err != nil {
		api.Fail(w, http.StatusServiceUnavailable, "not_ready", "store not ready", middleware.GetRequestID(r.Context()))
		return
	}
	if a.Redis != nil {
		if err := a.Redis.Health(ctx); err != nil {
			api.Fail(w, http.StatusServiceUnavailable, "not_ready", "redis not ready", middleware.GetRequestID(r.Context()))
			return
		}
	}
	api.Raw(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadTimeout:       a.Config.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      a.Config.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", a.Config.Addr, "store", a.Config.StoreDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	slog.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Jobs != nil {
		a.Jobs.Wait()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/cache"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/httpx"
	"github.com/clinic/clinic/internal/platform/middleware"
)

const (
	shutdownTimeout = 10 * time.Second
	dbPingTimeout   = 2 * time.Second
	cacheKeyPrefix  = "clinic:"
)

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		l := newLogger(os.Getenv("ENV"))
		l.Error().Err(err).Msg("failed to load config")
		return err
	}
	logger := newLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Int32("max_conns", cfg.DBMaxConns).Msg("connected to database")

	store, closeStore := newDirectoryCache(ctx, cfg, logger)
	defer closeStore()

	e := newServer(cfg, logger, pool, store)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newDirectoryCache picks Redis when REDIS_URL is set and reachable, and
// falls back to an in-process store otherwise.
func newDirectoryCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Store, func()) {
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(cfg.RedisURL, cacheKeyPrefix)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
			err = rs.Ping(pingCtx)
			cancel()
			if err == nil {
				logger.Info().Msg("doctor directory cache: redis")
				return rs, func() { _ = rs.Close() }
			}
			_ = rs.Close()
		}
		logger.Warn().Err(err).Msg("redis unavailable, using in-process directory cache")
	}
	ms := cache.NewMemoryStore()
	ms.StartCleanup(ctx, time.Minute)
	return ms, func() {}
}

// newServer builds the echo instance with every route and middleware. The
// pool is only touched once a request reaches an /api route.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, store cache.Store) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpx.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.Audit(logger))

	// Health
	e.GET("/health", db.LivenessHandler(time.Now()))
	e.GET("/health/db", db.HealthHandler(pool, dbPingTimeout))

	// Session checks run before a connection is checked out so rejected
	// requests never hold one.
	issuer := auth.NewSessionIssuer(auth.SessionConfig{
		SigningKey: []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		TTL:        cfg.SessionTTL,
	})
	api := e.Group("/api")
	api.Use(auth.SessionMiddleware(issuer, auth.AuthSkipper))
	api.Use(db.ConnMiddleware(pool))

	loginLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.LoginRateLimitRPS,
		BurstSize:         cfg.LoginRateLimitBurst,
		Scope:             "login",
	})

	identitySvc := identity.NewService(
		identity.NewPatientRepo(pool),
		identity.NewDoctorRepo(pool),
		auth.NewHasher(cfg.BcryptCost),
		issuer,
		identity.WithDirectoryCache(store, cfg.DoctorCacheTTL),
		identity.WithLogger(logger.With().Str("component", "identity").Logger()),
	)
	identity.NewHandler(identitySvc).RegisterRoutes(api, loginLimit)

	schedulingSvc := scheduling.NewService(
		scheduling.NewAppointmentRepo(pool),
		identitySvc,
		scheduling.Defaults{
			DurationMinutes: cfg.DefaultAppointmentMinutes,
			InsurancePlanID: cfg.DefaultInsurancePlanID,
		},
		logger.With().Str("component", "scheduling").Logger(),
	)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)

	return e
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "landscape-job-service/docs"
	"landscape-job-service/internal/auth"
	"landscape-job-service/internal/cache"
	"landscape-job-service/internal/config"
	"landscape-job-service/internal/logger"
	"landscape-job-service/internal/realtime"
	"landscape-job-service/internal/repository/postgresql"
	"landscape-job-service/internal/service"
	"landscape-job-service/internal/telemetry"
	httptransport "landscape-job-service/internal/transport/http"
)

type ServeCmd struct {
	Listen      string   `help:"HTTP listen address" default:":8080" env:"API_LISTEN"`
	CORSOrigins []string `help:"allowed CORS origins (default any)" env:"CORS_ORIGINS"`

	JWTSecret   string        `help:"HS256 secret for access tokens" required:"" env:"JWT_SECRET"`
	JWTIssuer   string        `help:"required token issuer" env:"JWT_ISSUER"`
	JWTAudience string        `help:"required token audience" env:"JWT_AUDIENCE"`
	JWTLeeway   time.Duration `help:"clock skew allowed on exp/nbf" default:"30s"`

	RoleCacheTTL time.Duration `help:"how long a resolved role is trusted" default:"5m" env:"ROLE_CACHE_TTL"`
	Metrics      bool          `help:"export OTLP metrics" default:"false" env:"METRICS_ENABLED"`

	Postgres config.PostgresFlags `embed:"" prefix:"postgres-"`
	Redis    config.RedisFlags    `embed:"" prefix:"redis-"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *config.Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	if err := c.Postgres.Validate(); err != nil {
		return err
	}

	log.Info().
		Str("version", globals.Version).
		Str("listen", c.Listen).
		Str("postgres", c.Postgres.Redacted()).
		Bool("redis", c.Redis.Enabled()).
		Msg("starting api")

	if c.Metrics {
		shutdown, err := telemetry.InitMetrics(ctx, "landscape-job-api", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize metrics, continuing without")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("failed to shutdown metrics")
				}
			}()
		}
	}

	// Postgres
	pool, err := postgresql.NewPool(ctx, c.Postgres.PoolConfig("job-api"))
	if err != nil {
		return fmt.Errorf("pg: %w", err)
	}
	defer pool.Close()

	if c.Postgres.AutoMigrate {
		if err := postgresql.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	jobs := postgresql.NewJobRepository(pool)
	users := postgresql.NewUserRepository(pool)

	// Roles: Redis-backed and invalidated from the change feed when Redis is
	// configured, otherwise an in-process cache bounded by the TTL alone.
	var (
		roleCache service.RoleCache = cache.NewMemoryRoleCache(0)
		rdb       redis.UniversalClient
	)
	if c.Redis.Enabled() {
		rdb, err = c.Redis.Connect(ctx)
		if err != nil {
			return err
		}
		defer rdb.Close()
		roleCache = cache.NewRedisRoleCache(rdb)
	}
	resolver := service.NewRoleResolver(users, roleCache, c.RoleCacheTTL)
	if rdb != nil {
		go func() {
			if err := resolver.WatchInvalidations(ctx, realtime.NewRedisFeed(rdb)); err != nil {
				log.Warn().Err(err).Msg("role invalidation stopped, falling back to TTL expiry")
			}
		}()
	}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:   c.JWTSecret,
		Issuer:   c.JWTIssuer,
		Audience: c.JWTAudience,
		Leeway:   c.JWTLeeway,
	})
	if err != nil {
		return err
	}

	lifecycle := service.NewLifecycleService(jobs, users, resolver)
	queries := service.NewJobQueryService(jobs, users, resolver)
	h := httptransport.NewHandler(lifecycle, queries)
	srv := configureHTTPServer(c.Listen, httptransport.Routes(h, verifier, httptransport.RouteConfig{
		AllowedOrigins: c.CORSOrigins,
	}))

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

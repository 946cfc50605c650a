// cmd/relay/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"landscape-job-service/internal/config"
	"landscape-job-service/internal/logger"
	"landscape-job-service/internal/realtime"
	"landscape-job-service/internal/relay"
	"landscape-job-service/internal/repository/postgresql"
	"landscape-job-service/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"DEBUG"`
		Version kong.VersionFlag
		Run     RunCmd `cmd:"" default:"withargs" help:"Forward row changes from Postgres to the change feed"`
	}
)

type RunCmd struct {
	Channel string `help:"Postgres NOTIFY channel" default:"row_changes" env:"RELAY_CHANNEL"`
	Workers int    `help:"publisher workers" default:"4" env:"RELAY_WORKERS"`
	Metrics bool   `help:"export OTLP metrics" default:"false" env:"METRICS_ENABLED"`

	Postgres config.PostgresFlags `embed:"" prefix:"postgres-"`
	Redis    config.RedisFlags    `embed:"" prefix:"redis-"`
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("relay"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&config.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}

func (c *RunCmd) Run(ctx context.Context, globals *config.Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	if err := c.Postgres.Validate(); err != nil {
		return err
	}

	if c.Metrics {
		shutdown, err := telemetry.InitMetrics(ctx, "landscape-job-relay", globals.Version)
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
	pool, err := postgresql.NewPool(ctx, c.Postgres.PoolConfig("job-relay"))
	if err != nil {
		return fmt.Errorf("pg: %w", err)
	}
	defer pool.Close()

	if c.Postgres.AutoMigrate {
		if err := postgresql.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Redis
	rdb, err := c.Redis.Connect(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	log.Info().
		Str("version", globals.Version).
		Str("channel", c.Channel).
		Int("workers", c.Workers).
		Str("postgres", c.Postgres.Redacted()).
		Str("redis", c.Redis.Addr).
		Msg("relay started")

	listener := postgresql.NewChangeListener(pool, c.Channel)
	processor := relay.NewProcessor(realtime.NewRedisFeed(rdb))
	if err := relay.NewPool(listener, processor, c.Workers).Run(ctx); err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	log.Info().Msg("relay stopped")
	return nil
}

// Package config holds command-line flag groups shared by the binaries.
// Each group is embedded into a kong command with a prefix.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"landscape-job-service/internal/repository/postgresql"
)

type Globals struct {
	Debug   bool
	Version string
}

// LoadDotEnv reads .env from the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

type PostgresFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_DSN"`

	MaxConns        int32         `help:"maximum number of connections in pool" default:"10" env:"POSTGRES_MAX_CONNS"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"2" env:"POSTGRES_MIN_CONNS"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`

	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"POSTGRES_AUTO_MIGRATE"`
}

func (p *PostgresFlags) Validate() error {
	if p.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_DSN)")
	}
	return nil
}

// PoolConfig names the pool's connections after appName.
func (p *PostgresFlags) PoolConfig(appName string) *postgresql.PoolConfig {
	return &postgresql.PoolConfig{
		ConnString:      p.ConnString,
		AppName:         appName,
		MaxConns:        p.MaxConns,
		MinConns:        p.MinConns,
		MaxConnLifetime: p.MaxConnLifetime,
		MaxConnIdleTime: p.MaxConnIdleTime,
	}
}

// Redacted returns the connection string with its password masked.
func (p *PostgresFlags) Redacted() string {
	return dsnPassword.ReplaceAllString(p.ConnString, `://$1:****@`)
}

var dsnPassword = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

type RedisFlags struct {
	Addr     string `help:"Redis address (host:port); empty disables Redis" env:"REDIS_ADDR"`
	Password string `help:"Redis password" env:"REDIS_PASSWORD"`
	DB       int    `help:"Redis database number" default:"0" env:"REDIS_DB"`
}

func (r *RedisFlags) Enabled() bool { return r.Addr != "" }

// Connect opens a client and pings it.
func (r *RedisFlags) Connect(ctx context.Context) (redis.UniversalClient, error) {
	if !r.Enabled() {
		return nil, errors.New("redis address is required (--redis-addr or REDIS_ADDR)")
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{r.Addr},
		Password: r.Password,
		DB:       r.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", r.Addr, err)
	}
	return rdb, nil
}

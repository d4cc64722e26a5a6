package store

import (
	"context"
	"fmt"
	"strings"
)

// Supported values of Config.Driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config selects and configures a storage backend.
type Config struct {
	Driver        string `mapstructure:"driver"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresURL   string `mapstructure:"postgres_url"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// Open returns the backend named by cfg.Driver. An empty driver selects
// the in-memory store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemoryStore(), nil

	case DriverSQLite:
		path := cfg.SQLitePath
		if path == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, fmt.Errorf("resolve database path: %w", err)
			}
			path = p
		}
		return OpenSQLite(ctx, path)

	case DriverPostgres:
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("store driver %q requires postgres_url", DriverPostgres)
		}
		return OpenPostgres(ctx, cfg.PostgresURL)

	case DriverRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("store driver %q requires redis_addr", DriverRedis)
		}
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

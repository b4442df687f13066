package session

import (
	"context"
	"fmt"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverRedis  = "redis"
)

// StoreConfig selects and configures a Storer.
type StoreConfig struct {
	// Driver is one of memory, sqlite, bolt or redis. Empty means memory.
	Driver string

	// Path is the database file for the sqlite and bolt drivers.
	Path string

	// RedisURL is the connection URL for the redis driver.
	RedisURL string

	// KeyPrefix namespaces redis keys.
	KeyPrefix string
}

// Open creates the Storer named by config.Driver.
func Open(ctx context.Context, config StoreConfig) (Storer, error) {
	switch config.Driver {
	case "", DriverMemory:
		return NewMemoryStorer(), nil
	case DriverSQLite:
		if config.Path == "" {
			return nil, fmt.Errorf("store driver %q requires a path", config.Driver)
		}
		return NewSQLiteStorer(config.Path)
	case DriverBolt:
		if config.Path == "" {
			return nil, fmt.Errorf("store driver %q requires a path", config.Driver)
		}
		return NewBoltStorer(config.Path)
	case DriverRedis:
		if config.RedisURL == "" {
			return nil, fmt.Errorf("store driver %q requires a redis_url", config.Driver)
		}
		return NewRedisStorer(ctx, config.RedisURL, config.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown store driver %q", config.Driver)
	}
}

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ent0n29/concierge/internal/logger"
)

// Options selects and configures the catalog backend.
type Options struct {
	Source   string
	File     string
	DB       *sql.DB
	Redis    *redis.Client
	CacheTTL time.Duration
}

// NewProvider builds the configured provider, optionally fronted by the Redis cache.
func NewProvider(ctx context.Context, opts Options, log logger.Logger) (Provider, error) {
	var base Provider
	switch opts.Source {
	case "", "file":
		products, err := LoadFile(opts.File)
		if err != nil {
			return nil, err
		}
		s, err := NewStatic(products)
		if err != nil {
			return nil, err
		}
		base = s
	case "postgres":
		if opts.DB == nil {
			return nil, fmt.Errorf("postgres catalog requires a database handle")
		}
		base = NewSQLProvider(opts.DB)
	default:
		return nil, fmt.Errorf("unsupported catalog source %q", opts.Source)
	}

	if opts.Redis != nil && opts.CacheTTL > 0 {
		if err := opts.Redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		return NewRedisCache(opts.Redis, base, opts.CacheTTL, log), nil
	}
	return base, nil
}

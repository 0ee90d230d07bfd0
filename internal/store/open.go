package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/database"
)

// Open builds the Store selected by STORE_DRIVER. The returned close func releases
// any connection the backend holds.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Info().Msg("Using in-memory store")
		return NewMemory(), noop, nil

	case config.StoreDriverRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, nil, err
		}
		return NewRedis(rdb, "exstem-runner:"), rdb.Close, nil

	case config.StoreDriverFile, "":
		f, err := NewFile(cfg.StoreDir, cfg.SessionSecret)
		if err != nil {
			return nil, nil, err
		}
		log.Info().
			Str("dir", cfg.StoreDir).
			Bool("sealed", cfg.SessionSecret != "").
			Msg("Using file store")
		return f, noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

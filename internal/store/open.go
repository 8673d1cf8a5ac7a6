package store

import (
	"context"
	"fmt"
	"log/slog"

	"controlroom.busops.org/internal/appconf"
)

// Open builds the store selected by the configuration.
func Open(ctx context.Context, cfg appconf.Config, logger *slog.Logger) (Store, error) {
	switch cfg.StoreBackend {
	case appconf.StoreMemory, "":
		return NewMemoryStore(), nil
	case appconf.StoreSQLite:
		backend, err := NewSQLiteBackend(ctx, cfg.SQLitePath, cfg.Env, logger)
		if err != nil {
			return nil, err
		}
		return NewBlobStore(ctx, backend, logger)
	case appconf.StoreRedis:
		backend, err := NewRedisBackend(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		s, err := NewBlobStore(ctx, backend, logger)
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

package repository

import (
	"context"

	"github.com/sifan077/TrackPoint/config"
	"github.com/sifan077/TrackPoint/internal/infra/postgres"
	"github.com/sifan077/TrackPoint/internal/infra/sqlite"
	"go.uber.org/zap"
)

// Open selects SQLite for sqlite:// URLs and a pgx pool otherwise. The returned func releases everything.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Store, func(), error) {
	if log == nil {
		log = zap.NewNop()
	}
	gcfg := postgres.GormConfig(log)
	timeout := cfg.QueryDeadline()

	if cfg.SQLite() {
		db, err := sqlite.Open(cfg.URL, gcfg)
		if err != nil {
			return nil, nil, err
		}
		store := NewStore(db, timeout)
		return store, func() { _ = store.Close() }, nil
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	db, err := postgres.NewGorm(pool, gcfg)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info("Connected to Postgres successfully",
		zap.String("postgres_host", cfg.Host),
		zap.Int32("max_conns", pool.Config().MaxConns),
	)

	store := NewStore(db, timeout)
	return store, func() {
		_ = store.Close()
		pool.Close()
	}, nil
}

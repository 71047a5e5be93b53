package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mira/internal/config"
)

// Open connects to the backend selected by cfg.Store.Driver
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		repo, err := NewSQLiteRepository(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return repo.WithLogger(logger), nil
	case config.StoreDriverPostgres:
		repo, err := NewPostgresRepository(cfg.GetPostgreSQLDSN(), cfg.PostgreSQL.MaxConnections, cfg.PostgreSQL.MaxIdleConnections)
		if err != nil {
			return nil, err
		}
		if cfg.Store.AutoMigrate {
			if err := repo.EnsureSchema(ctx); err != nil {
				_ = repo.Close()
				return nil, err
			}
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

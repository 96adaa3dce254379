package storage

import (
	"context"
	"fmt"

	"github.com/Oleguzik/ngo-automation/internal/infrastructure/config"
)

// Open creates the Repository selected by the storage config:
// "sqlite" (default) or "postgres".
func Open(ctx context.Context, cfg config.StorageConfig) (Repository, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStorage(cfg.DatabasePath)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("storage driver postgres requires postgres_dsn")
		}
		return NewPostgresStorage(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

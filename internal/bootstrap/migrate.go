package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/migration"
	"github.com/invoicing/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// OpenMigrator opens a dedicated lib/pq connection and a migrator over the
// embedded migrations. Closing the migrator closes the connection.
func OpenMigrator(ctx context.Context, cfg *config.DatabaseConfig, log *zap.Logger) (*migration.Migrator, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	m, err := migration.New(db, migrations.FS, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// MigrateUp applies every pending migration
func MigrateUp(ctx context.Context, cfg *config.DatabaseConfig, log *zap.Logger) error {
	m, err := OpenMigrator(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return m.Up()
}

package sqlite

import (
	"context"
	"embed"
	"log/slog"

	"github.com/crisferre80/gestion-politica-sub000/internal/persistence/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded schema migrations.
func (cp *ConnectionPool) Migrate(ctx context.Context, logger *slog.Logger) error {
	migrations, err := migration.Scan(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	return migration.NewRunner(cp.db, migration.DialectSQLite, logger).Apply(ctx, migrations)
}

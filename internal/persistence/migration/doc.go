// Package migration applies versioned SQL schema changes embedded in the binary.
//
// Migration files follow the naming convention {version}_{description}.sql
// (e.g. "001_collection_points_and_claims.sql"). Applied versions are tracked
// in a schema_migrations table together with the checksum of the file that
// was executed, so an edited migration is reported instead of silently
// diverging.
//
// Example usage:
//
//	migrations, err := migration.Scan(files, "migrations")
//	if err != nil {
//		return err
//	}
//	runner := migration.NewRunner(db, migration.DialectSQLite, logger)
//	if err := runner.Apply(ctx, migrations); err != nil {
//		return err
//	}
package migration

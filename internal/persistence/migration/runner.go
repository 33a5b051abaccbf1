package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Dialect selects the placeholder style used for the version table.
type Dialect int

const (
	// DialectSQLite uses ? placeholders.
	DialectSQLite Dialect = iota
	// DialectPostgres uses $n placeholders.
	DialectPostgres
)

// Runner applies pending migrations against a database handle.
type Runner struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunner constructs a Runner. A nil logger falls back to slog.Default.
func NewRunner(db *sql.DB, dialect Dialect, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{db: db, dialect: dialect, logger: logger, now: time.Now}
}

// Apply executes every migration whose version is not recorded yet, each in
// its own transaction, and verifies checksums of the ones already applied.
func (r *Runner) Apply(ctx context.Context, migrations []Migration) error {
	if err := r.initializeVersionTable(ctx); err != nil {
		return err
	}

	applied, err := r.appliedChecksums(ctx)
	if err != nil {
		return err
	}

	pending := 0
	for _, m := range migrations {
		if sum, ok := applied[m.Version]; ok {
			if sum != "" && sum != m.Checksum {
				return &Error{Version: m.Version, Name: m.Name, Operation: "verify checksum", Err: ErrChecksumMismatch}
			}
			continue
		}

		start := r.now()
		if err := r.execute(ctx, m); err != nil {
			r.logger.ErrorContext(ctx, "migration failed", "version", m.Version, "name", m.Name, "error", err)
			return err
		}
		pending++
		r.logger.InfoContext(ctx, "migration applied",
			"version", m.Version,
			"description", m.Description,
			"duration", r.now().Sub(start),
		)
	}

	if pending == 0 {
		r.logger.DebugContext(ctx, "schema up to date", "applied_count", len(applied))
	}
	return nil
}

// AppliedVersions returns the versions recorded in schema_migrations in ascending order.
func (r *Runner) AppliedVersions(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version ASC`)
	if err != nil {
		return nil, &Error{Operation: "list applied versions", Err: err}
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, &Error{Operation: "scan applied version", Err: err}
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *Runner) initializeVersionTable(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			checksum TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			execution_time_ms INTEGER NOT NULL
		)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return &Error{Operation: "create schema_migrations table", Err: err}
	}
	return nil
}

func (r *Runner) appliedChecksums(ctx context.Context) (map[int]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, &Error{Operation: "read schema_migrations", Err: err}
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var (
			version int
			sum     string
		)
		if err := rows.Scan(&version, &sum); err != nil {
			return nil, &Error{Operation: "scan schema_migrations", Err: err}
		}
		applied[version] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Operation: "iterate schema_migrations", Err: err}
	}
	return applied, nil
}

func (r *Runner) execute(ctx context.Context, m Migration) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Version: m.Version, Name: m.Name, Operation: "begin transaction", Err: err}
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback error: %v)", err, rbErr)
			}
		}
	}()

	start := r.now()
	if _, err = tx.ExecContext(ctx, m.SQL); err != nil {
		return &Error{Version: m.Version, Name: m.Name, Operation: "execute", Err: err}
	}

	insert := `INSERT INTO schema_migrations (version, description, checksum, applied_at, execution_time_ms) VALUES (?, ?, ?, ?, ?)`
	if r.dialect == DialectPostgres {
		insert = `INSERT INTO schema_migrations (version, description, checksum, applied_at, execution_time_ms) VALUES ($1, $2, $3, $4, $5)`
	}
	appliedAt := r.now().UTC()
	if _, err = tx.ExecContext(ctx, insert, m.Version, m.Description, m.Checksum, appliedAt.Format(time.RFC3339), appliedAt.Sub(start).Milliseconds()); err != nil {
		return &Error{Version: m.Version, Name: m.Name, Operation: "record migration", Err: err}
	}

	if err = tx.Commit(); err != nil {
		return &Error{Version: m.Version, Name: m.Name, Operation: "commit", Err: err}
	}
	return nil
}

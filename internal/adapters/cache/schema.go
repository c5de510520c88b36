package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Dialect selects SQL flavour differences between SQLite and Postgres.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Initialize the matrix cache schema.
func InitSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	var intType string
	switch dialect {
	case DialectSQLite:
		intType = "INTEGER"
	case DialectPostgres:
		intType = "BIGINT"
	default:
		return fmt.Errorf("init schema: unknown dialect %q", dialect)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createMatrixCacheQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS matrix_cache (
		profile TEXT NOT NULL,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_meters %[1]s NOT NULL,
		duration_seconds %[1]s NOT NULL,
		PRIMARY KEY (profile, origin, destination)
	);
	`, intType)

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_matrix_cache_destination_origin
	ON matrix_cache(profile, destination, origin);
	`

	statements := []string{
		createMatrixCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// Stats summarizes a SQL-backed matrix cache.
type Stats struct {
	Entries  int
	Profiles int
}

func ReadStats(ctx context.Context, db *sql.DB) (Stats, error) {
	var s Stats
	row := db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT profile) FROM matrix_cache;`)
	if err := row.Scan(&s.Entries, &s.Profiles); err != nil {
		return Stats{}, fmt.Errorf("read cache stats: %w", err)
	}
	return s, nil
}

// Purge deletes cached entries, all of them when profile is empty.
func Purge(ctx context.Context, db *sql.DB, dialect Dialect, profile string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	switch {
	case profile == "":
		res, err = db.ExecContext(ctx, `DELETE FROM matrix_cache;`)
	case dialect == DialectPostgres:
		res, err = db.ExecContext(ctx, `DELETE FROM matrix_cache WHERE profile = $1;`, profile)
	default:
		res, err = db.ExecContext(ctx, `DELETE FROM matrix_cache WHERE profile = ?;`, profile)
	}
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

package cache

import (
	"collection-route-service/internal/platform/obs"
	"collection-route-service/internal/ports"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLite backed matrix store. The schema comes from InitSchema.
type SqliteStore struct {
	DB *sql.DB
}

func NewSqliteStore(db *sql.DB) *SqliteStore {
	return &SqliteStore{DB: db}
}

func (s *SqliteStore) Load(ctx context.Context) (_ map[ports.CacheKey]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "matrix.store.sqlite.Load")(&err)

	if s.DB == nil {
		return nil, errors.New("sqlite matrix store: db is nil")
	}
	return loadRows(ctx, s.DB, "sqlite")
}

// Store many cached results in one transaction.
func (s *SqliteStore) Save(ctx context.Context, entries map[ports.CacheKey]ports.DistanceResult) (err error) {
	defer obs.Time(ctx, "matrix.store.sqlite.Save")(&err)

	if s.DB == nil {
		return errors.New("sqlite matrix store: db is nil")
	}
	return saveRows(ctx, s.DB, `
	INSERT OR REPLACE INTO matrix_cache (
		profile,
		origin,
		destination,
		distance_meters,
		duration_seconds
	)
	VALUES (?, ?, ?, ?, ?)
	`, entries)
}

func loadRows(ctx context.Context, db *sql.DB, source string) (map[ports.CacheKey]ports.DistanceResult, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT profile, origin, destination, distance_meters, duration_seconds
	FROM matrix_cache;
	`)
	if err != nil {
		return nil, fmt.Errorf("load matrix cache: query matrix_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[ports.CacheKey]ports.DistanceResult)
	for rows.Next() {
		var k ports.CacheKey
		var r ports.DistanceResult
		if err := rows.Scan(&k.Profile, &k.Origin, &k.Destination, &r.DistanceMeters, &r.DurationSeconds); err != nil {
			return nil, corrupt(source, fmt.Errorf("scan rows: %w", err))
		}
		if r.DistanceMeters < 0 || r.DurationSeconds < 0 {
			return nil, corrupt(source, fmt.Errorf("negative entry for %s", k))
		}
		out[k] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load matrix cache: row iteration: %w", err)
	}

	return out, nil
}

func saveRows(ctx context.Context, db *sql.DB, query string, entries map[ports.CacheKey]ports.DistanceResult) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save matrix cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("save matrix cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for k, r := range entries {
		if k.Origin == "" || k.Destination == "" {
			return fmt.Errorf("save matrix cache: empty key %s", k)
		}

		if _, err := stmt.ExecContext(ctx, k.Profile, k.Origin, k.Destination, r.DistanceMeters, r.DurationSeconds); err != nil {
			return fmt.Errorf("save matrix cache key=%s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save matrix cache commit: %w", err)
	}

	return nil
}

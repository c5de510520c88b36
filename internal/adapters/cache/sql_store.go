package cache

import (
	"collection-route-service/internal/platform/obs"
	"collection-route-service/internal/ports"
	"context"
	"database/sql"
	"errors"
)

// SQLStore is a Postgres-backed matrix store (pgx stdlib driver).
type SQLStore struct {
	DB *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

func (s *SQLStore) Load(ctx context.Context) (_ map[ports.CacheKey]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "matrix.store.sql.Load")(&err)

	if s.DB == nil {
		return nil, errors.New("sql matrix store: db is nil")
	}
	return loadRows(ctx, s.DB, "postgres")
}

func (s *SQLStore) Save(ctx context.Context, entries map[ports.CacheKey]ports.DistanceResult) (err error) {
	defer obs.Time(ctx, "matrix.store.sql.Save")(&err)

	if s.DB == nil {
		return errors.New("sql matrix store: db is nil")
	}
	return saveRows(ctx, s.DB, `
	INSERT INTO matrix_cache (profile, origin, destination, distance_meters, duration_seconds)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (profile, origin, destination) DO UPDATE
	SET distance_meters = EXCLUDED.distance_meters,
		duration_seconds = EXCLUDED.duration_seconds;
	`, entries)
}

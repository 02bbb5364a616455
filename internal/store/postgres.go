package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fairhome/fairhome/internal/db"
	"github.com/fairhome/fairhome/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool      db.Pool
	batchSize int
	closeFn   func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// DefaultBatchSize is the number of listing rows written per insert batch.
const DefaultBatchSize = 50

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, batchSize: DefaultBatchSize, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests via pgxmock.
func NewPostgresWithPool(pool db.Pool, batchSize int) *PostgresStore {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &PostgresStore{pool: pool, batchSize: batchSize}
}

// SetBatchSize overrides the insert batch size.
func (s *PostgresStore) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	seq          BIGINT GENERATED ALWAYS AS IDENTITY,
	id           TEXT PRIMARY KEY,
	developer_id TEXT,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL,
	latitude     DOUBLE PRECISION,
	longitude    DOUBLE PRECISION,
	location     geometry(Point, 4326) GENERATED ALWAYS AS (
		CASE WHEN latitude IS NOT NULL AND longitude IS NOT NULL
		     THEN ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)
		END) STORED,
	price        BIGINT NOT NULL DEFAULT 0,
	bedrooms     INT NOT NULL DEFAULT 0,
	bathrooms    INT NOT NULL DEFAULT 0,
	square_feet  INT NOT NULL DEFAULT 0,
	photos       JSONB NOT NULL DEFAULT '[]',
	amenities    JSONB NOT NULL DEFAULT '[]',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_listings_location ON listings USING gist (location);

CREATE TABLE IF NOT EXISTS geo_data (
	name       TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	rows_synced  BIGINT NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at DESC);
`

// Migrate creates the schema. Requires the PostGIS extension to be available
// on the target database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS postgis`); err != nil {
		return eris.Wrap(err, "postgres: create postgis extension")
	}
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// listingColumns are the columns written on insert. seq, location, and the
// timestamps come from table defaults.
var listingColumns = []string{
	"id", "developer_id", "title", "description", "address",
	"latitude", "longitude", "price", "bedrooms", "bathrooms",
	"square_feet", "photos", "amenities",
}

func listingRow(l model.Listing) ([]any, error) {
	id := l.ID
	if id == "" {
		id = uuid.New().String()
	}

	var devID any
	if l.DeveloperID != "" {
		devID = l.DeveloperID
	}

	var lat, lng any
	if l.Location.Known {
		lat = l.Location.Latitude
		lng = l.Location.Longitude
	}

	photos, err := json.Marshal(emptyIfNil(l.Photos))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal photos")
	}
	amenities, err := json.Marshal(emptyIfNil(l.Amenities))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal amenities")
	}

	return []any{
		id, devID, l.Title, l.Description, l.Address,
		lat, lng, int64(l.Price), l.Bedrooms, l.Bathrooms,
		l.SquareFeet, photos, amenities,
	}, nil
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// ReplaceListings deletes all listings and inserts the given set in
// sequential batches. Batch N+1 starts only after batch N is committed, so a
// failure at batch k leaves exactly k full batches in the table. There is no
// transaction spanning the delete and the inserts.
func (s *PostgresStore) ReplaceListings(ctx context.Context, listings []model.Listing) (int, error) {
	if _, err := s.pool.Exec(ctx, `DELETE FROM listings`); err != nil {
		return 0, eris.Wrap(err, "postgres: clear listings")
	}

	rows := make([][]any, 0, len(listings))
	for _, l := range listings {
		row, err := listingRow(l)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	committed := 0
	for k, batch := range db.Chunk(rows, s.batchSize) {
		if _, err := db.CopyFrom(ctx, s.pool, "listings", listingColumns, batch); err != nil {
			return committed, &BatchError{Batch: k, Err: err}
		}
		committed += len(batch)
	}

	return committed, nil
}

// ListListings returns every listing in feed insertion order.
func (s *PostgresStore) ListListings(ctx context.Context) ([]model.Listing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, developer_id, title, description, address,
		       latitude, longitude, price, bedrooms, bathrooms,
		       square_feet, photos, amenities, created_at, updated_at
		FROM listings ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list listings")
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		var (
			l         model.Listing
			devID     *string
			lat, lng  *float64
			price     int64
			photos    []byte
			amenities []byte
		)
		if err := rows.Scan(
			&l.ID, &devID, &l.Title, &l.Description, &l.Address,
			&lat, &lng, &price, &l.Bedrooms, &l.Bathrooms,
			&l.SquareFeet, &photos, &amenities, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		if devID != nil {
			l.DeveloperID = *devID
		}
		if lat != nil && lng != nil {
			l.Location = model.KnownLocation(*lat, *lng)
		} else {
			l.Location = model.UnknownLocation()
		}
		l.Price = int(price)
		if err := json.Unmarshal(photos, &l.Photos); err != nil {
			return nil, eris.Wrapf(err, "postgres: decode photos for %s", l.ID)
		}
		if err := json.Unmarshal(amenities, &l.Amenities); err != nil {
			return nil, eris.Wrapf(err, "postgres: decode amenities for %s", l.ID)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// PutGeoData stores or replaces a named GeoJSON blob.
func (s *PostgresStore) PutGeoData(ctx context.Context, name string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO geo_data (name, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		name, data)
	if err != nil {
		return eris.Wrapf(err, "postgres: put geo data %s", name)
	}
	return nil
}

// GetGeoData fetches a named GeoJSON blob. Returns ErrNotFound if absent.
func (s *PostgresStore) GetGeoData(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM geo_data WHERE name = $1`, name).Scan(&data)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get geo data %s", name)
	}
	return data, nil
}

// StartRun records the beginning of a sync run and returns its ID.
func (s *PostgresStore) StartRun(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sync_runs (status, started_at) VALUES ($1, now()) RETURNING id`,
		RunStatusRunning,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: start sync run")
	}
	return id, nil
}

// CompleteRun marks a sync run as successfully completed.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID int64, rowsSynced int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sync_runs SET status = $1, completed_at = now(), rows_synced = $2 WHERE id = $3`,
		RunStatusComplete, rowsSynced, runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete sync run %d", runID)
	}
	return nil
}

// FailRun marks a sync run as failed with an error message.
func (s *PostgresStore) FailRun(ctx context.Context, runID int64, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sync_runs SET status = $1, completed_at = now(), error = $2 WHERE id = $3`,
		RunStatusFailed, errMsg, runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail sync run %d", runID)
	}
	return nil
}

// ListRuns returns all sync runs, most recent first.
func (s *PostgresStore) ListRuns(ctx context.Context) ([]SyncRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, status, started_at, completed_at, rows_synced, error
		FROM sync_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sync runs")
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var (
			r      SyncRun
			errStr *string
		)
		if err := rows.Scan(&r.ID, &r.Status, &r.StartedAt, &r.CompletedAt, &r.RowsSynced, &errStr); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync run")
		}
		if errStr != nil {
			r.Error = *errStr
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

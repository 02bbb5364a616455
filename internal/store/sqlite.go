package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fairhome/fairhome/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is intended for
// local development; there is no spatial column, only plain coordinate pairs.
type SQLiteStore struct {
	db        *sql.DB
	batchSize int
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, batchSize: DefaultBatchSize}, nil
}

// SetBatchSize overrides the insert batch size.
func (s *SQLiteStore) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL UNIQUE,
	developer_id TEXT,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL,
	latitude     REAL,
	longitude    REAL,
	price        INTEGER NOT NULL DEFAULT 0,
	bedrooms     INTEGER NOT NULL DEFAULT 0,
	bathrooms    INTEGER NOT NULL DEFAULT 0,
	square_feet  INTEGER NOT NULL DEFAULT 0,
	photos       TEXT NOT NULL DEFAULT '[]',
	amenities    TEXT NOT NULL DEFAULT '[]',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS geo_data (
	name       TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME,
	rows_synced  INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceListings deletes all listings and inserts the given set in
// sequential batches with the same failure boundary as the Postgres store.
func (s *SQLiteStore) ReplaceListings(ctx context.Context, listings []model.Listing) (int, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM listings`); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear listings")
	}

	committed := 0
	now := time.Now().UTC()
	for k := 0; committed < len(listings); k++ {
		end := committed + s.batchSize
		if end > len(listings) {
			end = len(listings)
		}
		batch := listings[committed:end]

		if err := s.insertBatch(ctx, batch, now); err != nil {
			return committed, &BatchError{Batch: k, Err: err}
		}
		committed = end
	}

	return committed, nil
}

func (s *SQLiteStore) insertBatch(ctx context.Context, batch []model.Listing, now time.Time) error {
	if len(batch) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`INSERT INTO listings
		(id, developer_id, title, description, address, latitude, longitude,
		 price, bedrooms, bathrooms, square_feet, photos, amenities, created_at, updated_at)
		VALUES `)

	for i, l := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")

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
			return eris.Wrap(err, "sqlite: marshal photos")
		}
		amenities, err := json.Marshal(emptyIfNil(l.Amenities))
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal amenities")
		}

		args = append(args,
			id, devID, l.Title, l.Description, l.Address, lat, lng,
			l.Price, l.Bedrooms, l.Bathrooms, l.SquareFeet,
			string(photos), string(amenities), now, now,
		)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return eris.Wrap(err, "sqlite: insert listings")
	}
	return nil
}

// ListListings returns every listing in feed insertion order.
func (s *SQLiteStore) ListListings(ctx context.Context) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, developer_id, title, description, address,
		       latitude, longitude, price, bedrooms, bathrooms,
		       square_feet, photos, amenities, created_at, updated_at
		FROM listings ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list listings")
	}
	defer rows.Close() //nolint:errcheck

	var listings []model.Listing
	for rows.Next() {
		var (
			l         model.Listing
			devID     sql.NullString
			lat, lng  sql.NullFloat64
			photos    string
			amenities string
		)
		if err := rows.Scan(
			&l.ID, &devID, &l.Title, &l.Description, &l.Address,
			&lat, &lng, &l.Price, &l.Bedrooms, &l.Bathrooms,
			&l.SquareFeet, &photos, &amenities, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		l.DeveloperID = devID.String
		if lat.Valid && lng.Valid {
			l.Location = model.KnownLocation(lat.Float64, lng.Float64)
		} else {
			l.Location = model.UnknownLocation()
		}
		if err := json.Unmarshal([]byte(photos), &l.Photos); err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode photos for %s", l.ID)
		}
		if err := json.Unmarshal([]byte(amenities), &l.Amenities); err != nil {
			return nil, eris.Wrapf(err, "sqlite: decode amenities for %s", l.ID)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// PutGeoData stores or replaces a named GeoJSON blob.
func (s *SQLiteStore) PutGeoData(ctx context.Context, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geo_data (name, data, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT (name) DO UPDATE SET data = excluded.data, updated_at = datetime('now')`,
		name, string(data))
	if err != nil {
		return eris.Wrapf(err, "sqlite: put geo data %s", name)
	}
	return nil
}

// GetGeoData fetches a named GeoJSON blob. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetGeoData(ctx context.Context, name string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM geo_data WHERE name = ?`, name).Scan(&data)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get geo data %s", name)
	}
	return []byte(data), nil
}

// StartRun records the beginning of a sync run and returns its ID.
func (s *SQLiteStore) StartRun(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (status, started_at) VALUES (?, ?)`,
		RunStatusRunning, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: start sync run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: sync run id")
	}
	return id, nil
}

// CompleteRun marks a sync run as successfully completed.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID int64, rowsSynced int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, completed_at = ?, rows_synced = ? WHERE id = ?`,
		RunStatusComplete, time.Now().UTC(), rowsSynced, runID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete sync run %d", runID)
	}
	return nil
}

// FailRun marks a sync run as failed with an error message.
func (s *SQLiteStore) FailRun(ctx context.Context, runID int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		RunStatusFailed, time.Now().UTC(), errMsg, runID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail sync run %d", runID)
	}
	return nil
}

// ListRuns returns all sync runs, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]SyncRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, started_at, completed_at, rows_synced, error
		FROM sync_runs ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sync runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []SyncRun
	for rows.Next() {
		var (
			r           SyncRun
			completedAt sql.NullTime
			errStr      sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Status, &r.StartedAt, &completedAt, &r.RowsSynced, &errStr); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync run")
		}
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		r.Error = errStr.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fairhome/fairhome/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// BatchError reports a failed insert batch during a listing replacement.
// Batches are written sequentially, so every batch before Batch is committed
// and everything at or after it is not.
type BatchError struct {
	Batch int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("store: insert batch %d: %v", e.Batch, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// SyncRun is one recorded execution of the listing sync routine.
type SyncRun struct {
	ID          int64      `json:"id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RowsSynced  int64      `json:"rows_synced"`
	Error       string     `json:"error,omitempty"`
}

// Sync run statuses.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// Store defines the persistence interface for listings, geo reference data,
// and the sync run log.
type Store interface {
	// Listings. ReplaceListings deletes every existing row, then inserts the
	// given set in sequential fixed-size batches. It returns the number of
	// committed rows; on a batch failure the error is a *BatchError and the
	// table is left partially populated.
	ReplaceListings(ctx context.Context, listings []model.Listing) (int, error)
	ListListings(ctx context.Context) ([]model.Listing, error)

	// Geo reference data, stored as named GeoJSON blobs.
	PutGeoData(ctx context.Context, name string, data []byte) error
	GetGeoData(ctx context.Context, name string) ([]byte, error)

	// Sync run log.
	StartRun(ctx context.Context) (int64, error)
	CompleteRun(ctx context.Context, runID int64, rows int64) error
	FailRun(ctx context.Context, runID int64, errMsg string) error
	ListRuns(ctx context.Context) ([]SyncRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

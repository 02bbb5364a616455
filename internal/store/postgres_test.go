package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fairhome/fairhome/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockStore(t *testing.T, batchSize int) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock, batchSize), mock
}

func makeListings(n int) []model.Listing {
	listings := make([]model.Listing, n)
	for i := range listings {
		listings[i] = model.Listing{
			ID:       fmt.Sprintf("listing-%03d", i),
			Title:    fmt.Sprintf("Listing %d", i),
			Address:  fmt.Sprintf("%d Main St", i+1),
			Location: model.KnownLocation(41.8+float64(i)*0.001, -87.6),
			Price:    900 + i,
			Bedrooms: 2,
		}
	}
	return listings
}

func TestReplaceListings_AllBatchesCommit(t *testing.T) {
	st, mock := newMockStore(t, 50)
	listings := makeListings(120)

	mock.ExpectExec("DELETE FROM listings").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"listings"}, listingColumns).WillReturnResult(50)
	mock.ExpectCopyFrom(pgx.Identifier{"listings"}, listingColumns).WillReturnResult(50)
	mock.ExpectCopyFrom(pgx.Identifier{"listings"}, listingColumns).WillReturnResult(20)

	committed, err := st.ReplaceListings(context.Background(), listings)
	require.NoError(t, err)
	assert.Equal(t, 120, committed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceListings_BatchFailureBoundary(t *testing.T) {
	// 120 records at batch size 50: batch 1 (0-indexed) fails, so exactly
	// 1*50 rows are committed and the error names batch 1.
	st, mock := newMockStore(t, 50)
	listings := makeListings(120)

	mock.ExpectExec("DELETE FROM listings").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"listings"}, listingColumns).WillReturnResult(50)
	mock.ExpectCopyFrom(pgx.Identifier{"listings"}, listingColumns).
		WillReturnError(eris.New("connection reset"))

	committed, err := st.ReplaceListings(context.Background(), listings)
	require.Error(t, err)
	assert.Equal(t, 50, committed)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 1, batchErr.Batch)
	assert.Contains(t, err.Error(), "batch 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceListings_FirstBatchFailureLeavesTableEmpty(t *testing.T) {
	st, mock := newMockStore(t, 50)
	listings := makeListings(10)

	mock.ExpectExec("DELETE FROM listings").
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	mock.ExpectCopyFrom(pgx.Identifier{"listings"}, listingColumns).
		WillReturnError(eris.New("out of disk"))

	committed, err := st.ReplaceListings(context.Background(), listings)
	require.Error(t, err)
	assert.Zero(t, committed)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Zero(t, batchErr.Batch)
}

func TestReplaceListings_DeleteFailure(t *testing.T) {
	st, mock := newMockStore(t, 50)

	mock.ExpectExec("DELETE FROM listings").
		WillReturnError(eris.New("permission denied"))

	committed, err := st.ReplaceListings(context.Background(), makeListings(3))
	require.Error(t, err)
	assert.Zero(t, committed)

	var batchErr *BatchError
	assert.False(t, eris.As(err, &batchErr))
}

func TestReplaceListings_Empty(t *testing.T) {
	st, mock := newMockStore(t, 50)

	mock.ExpectExec("DELETE FROM listings").
		WillReturnResult(pgxmock.NewResult("DELETE", 42))

	committed, err := st.ReplaceListings(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, committed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListListings_ScansRows(t *testing.T) {
	st, mock := newMockStore(t, 50)
	now := time.Now()

	cols := []string{
		"id", "developer_id", "title", "description", "address",
		"latitude", "longitude", "price", "bedrooms", "bathrooms",
		"square_feet", "photos", "amenities", "created_at", "updated_at",
	}
	rows := pgxmock.NewRows(cols).
		AddRow("a", nil, "First", "d", "1 Main St",
			41.9, -87.7, int64(950), 2, 1,
			800, []byte(`["p.jpg"]`), []byte(`[]`), now, now).
		AddRow("b", "dev-1", "Second", "d", "2 Main St",
			nil, nil, int64(0), 0, 0,
			0, []byte(`[]`), []byte(`["laundry"]`), now, now)

	mock.ExpectQuery("SELECT (.+) FROM listings ORDER BY seq").WillReturnRows(rows)

	listings, err := st.ListListings(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "a", listings[0].ID)
	assert.True(t, listings[0].Location.Known)
	assert.Equal(t, 950, listings[0].Price)
	assert.Equal(t, []string{"p.jpg"}, listings[0].Photos)

	assert.Equal(t, "dev-1", listings[1].DeveloperID)
	assert.False(t, listings[1].Location.Known)
	lat, lng := listings[1].Location.Place()
	assert.InDelta(t, model.ChicagoLatitude, lat, 1e-9)
	assert.InDelta(t, model.ChicagoLongitude, lng, 1e-9)
}

func TestGetGeoData_NotFound(t *testing.T) {
	st, mock := newMockStore(t, 50)

	mock.ExpectQuery("SELECT data FROM geo_data").
		WithArgs("wards").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetGeoData(context.Background(), "wards")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetGeoData_Found(t *testing.T) {
	st, mock := newMockStore(t, 50)

	mock.ExpectQuery("SELECT data FROM geo_data").
		WithArgs("neighborhoods").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"type":"FeatureCollection"}`)))

	data, err := st.GetGeoData(context.Background(), "neighborhoods")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection"}`, string(data))
}

func TestRunLog_Lifecycle(t *testing.T) {
	st, mock := newMockStore(t, 50)
	ctx := context.Background()

	mock.ExpectQuery("INSERT INTO sync_runs").
		WithArgs(RunStatusRunning).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	runID, err := st.StartRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), runID)

	mock.ExpectExec("UPDATE sync_runs").
		WithArgs(RunStatusComplete, int64(42), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.CompleteRun(ctx, runID, 42))

	mock.ExpectExec("UPDATE sync_runs").
		WithArgs(RunStatusFailed, "copy failed", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.FailRun(ctx, runID, "copy failed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	st, mock := newMockStore(t, 50)
	started := time.Now().Add(-time.Hour)
	completed := started.Add(time.Minute)

	rows := pgxmock.NewRows([]string{"id", "status", "started_at", "completed_at", "rows_synced", "error"}).
		AddRow(int64(2), RunStatusFailed, started, &completed, int64(0), strPtr("boom")).
		AddRow(int64(1), RunStatusComplete, started, &completed, int64(300), nil)

	mock.ExpectQuery("SELECT (.+) FROM sync_runs").WillReturnRows(rows)

	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "boom", runs[0].Error)
	assert.Equal(t, int64(300), runs[1].RowsSynced)
	assert.Empty(t, runs[1].Error)
}

func strPtr(s string) *string { return &s }

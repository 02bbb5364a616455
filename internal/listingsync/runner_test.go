package listingsync

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fairhome/fairhome/internal/model"
	"github.com/fairhome/fairhome/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeStore records sync run log calls and captures replaced listings.
type fakeStore struct {
	mu         sync.Mutex
	replaced   []model.Listing
	replaceErr error
	committed  int

	startCalls    int
	completeCalls int
	completedRows int64
	failCalls     int
	failMsg       string
}

func (f *fakeStore) ReplaceListings(ctx context.Context, listings []model.Listing) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.committed, f.replaceErr
	}
	f.replaced = listings
	return len(listings), nil
}

func (f *fakeStore) ListListings(ctx context.Context) ([]model.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replaced, nil
}

func (f *fakeStore) PutGeoData(ctx context.Context, name string, data []byte) error { return nil }
func (f *fakeStore) GetGeoData(ctx context.Context, name string) ([]byte, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) StartRun(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	return int64(f.startCalls), nil
}

func (f *fakeStore) CompleteRun(ctx context.Context, runID int64, rows int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.completedRows = rows
	return nil
}

func (f *fakeStore) FailRun(ctx context.Context, runID int64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCalls++
	f.failMsg = errMsg
	return nil
}

func (f *fakeStore) ListRuns(ctx context.Context) ([]store.SyncRun, error) { return nil, nil }
func (f *fakeStore) Migrate(ctx context.Context) error                     { return nil }
func (f *fakeStore) Close() error                                          { return nil }

// fakeFetcher serves a fixed body, optionally blocking until released.
type fakeFetcher struct {
	body    string
	err     error
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (f *fakeFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func (f *fakeFetcher) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	return 0, eris.New("not implemented")
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

const feedThreeRecordsOneBad = `[
	{"property_name": "A", "property_type": "Multifamily", "management_company": "M", "address": "1 Main St", "latitude": "41.9", "longitude": "-87.7"},
	{"property_name": "B", "property_type": "Multifamily", "management_company": "M", "address": "2 Main St", "longitude": "-87.7"},
	{"property_name": "C", "property_type": "Multifamily", "management_company": "M", "address": "3 Main St", "latitude": "41.8", "longitude": "-87.6"}
]`

func TestRunner_Run_Success(t *testing.T) {
	st := &fakeStore{}
	r := NewRunner(st, &fakeFetcher{body: feedThreeRecordsOneBad}, "http://feed.test/data.json")

	res := r.Run(context.Background())

	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Count)
	require.Len(t, st.replaced, 2)
	assert.Equal(t, "A", st.replaced[0].Title)
	assert.Equal(t, "C", st.replaced[1].Title)

	assert.Equal(t, 1, st.startCalls)
	assert.Equal(t, 1, st.completeCalls)
	assert.Equal(t, int64(2), st.completedRows)
	assert.Zero(t, st.failCalls)
}

func TestRunner_Run_FetchFailure(t *testing.T) {
	st := &fakeStore{}
	r := NewRunner(st, &fakeFetcher{err: eris.New("connection refused")}, "")

	res := r.Run(context.Background())

	require.Error(t, res.Err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, st.failCalls)
	assert.Contains(t, st.failMsg, "fetch feed")
	assert.Zero(t, st.completeCalls)
}

func TestRunner_Run_DecodeFailure(t *testing.T) {
	st := &fakeStore{}
	r := NewRunner(st, &fakeFetcher{body: `{"not": "an array"}`}, "")

	res := r.Run(context.Background())

	require.Error(t, res.Err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, st.failCalls)
}

func TestRunner_Run_StoreFailure(t *testing.T) {
	st := &fakeStore{
		replaceErr: &store.BatchError{Batch: 1, Err: eris.New("copy failed")},
		committed:  50,
	}
	r := NewRunner(st, &fakeFetcher{body: feedThreeRecordsOneBad}, "")

	res := r.Run(context.Background())

	require.Error(t, res.Err)
	assert.False(t, res.Success)
	assert.Equal(t, 50, res.Count)
	assert.Contains(t, res.Err.Error(), "50 committed")

	var batchErr *store.BatchError
	require.ErrorAs(t, res.Err, &batchErr)
	assert.Equal(t, 1, batchErr.Batch)
	assert.Equal(t, 1, st.failCalls)
}

func TestRunner_Run_CoalescesConcurrentTriggers(t *testing.T) {
	f := &fakeFetcher{
		body:    feedThreeRecordsOneBad,
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	st := &fakeStore{}
	r := NewRunner(st, f, "")

	results := make(chan Result, 2)
	go func() { results <- r.Run(context.Background()) }()

	// Wait for the first run to be inside the fetch, then race a second
	// trigger against it.
	<-f.started
	go func() { results <- r.Run(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	close(f.release)

	first := <-results
	second := <-results

	require.NoError(t, first.Err)
	require.NoError(t, second.Err)
	assert.Equal(t, first, second)

	// Exactly one run executed: one fetch, one run log entry.
	assert.Equal(t, 1, f.callCount())
	assert.Equal(t, 1, st.startCalls)
	assert.Equal(t, 1, st.completeCalls)
}

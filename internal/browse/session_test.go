package browse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairhome/fairhome/internal/geo"
	"github.com/fairhome/fairhome/internal/model"
	"github.com/fairhome/fairhome/internal/store"
)

// blobSource serves fixed GeoJSON blobs by name.
type blobSource map[string][]byte

func (s blobSource) GetGeoData(ctx context.Context, name string) ([]byte, error) {
	data, ok := s[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

const neighborhoodsBlob = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"properties": {"community": "HYDE PARK"},
		"geometry": {
			"type": "Polygon",
			"coordinates": [[[-87.7, 41.8], [-87.5, 41.8], [-87.5, 41.9], [-87.7, 41.9], [-87.7, 41.8]]]
		}
	}]
}`

const wardsBlob = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"properties": {"ward": "5", "alderperson": "Desmon Yancy"},
		"geometry": {
			"type": "Polygon",
			"coordinates": [[[-87.62, 41.76], [-87.56, 41.76], [-87.56, 41.82], [-87.62, 41.82], [-87.62, 41.76]]]
		}
	}]
}`

func testRegions() *geo.Cache {
	return geo.NewCache(blobSource{
		geo.NeighborhoodsName: []byte(neighborhoodsBlob),
		geo.WardsName:         []byte(wardsBlob),
	})
}

func testListings() []model.Listing {
	return []model.Listing{
		{ID: "downtown", Price: 800, Bedrooms: 2, Location: model.KnownLocation(41.88, -87.63)},
		{ID: "south", Price: 600, Bedrooms: 1, Location: model.KnownLocation(41.75, -87.60)},
		{ID: "pricey", Price: 2500, Bedrooms: 3, Location: model.KnownLocation(41.89, -87.62)},
	}
}

func TestSession_NoViewportShowsEverything(t *testing.T) {
	s := NewSession(nil)
	defer s.Close()

	s.SetListings(testListings())
	assert.Len(t, s.Visible(), 3)
}

func TestSession_FiltersApplyImmediately(t *testing.T) {
	s := NewSession(nil)
	defer s.Close()
	s.SetListings(testListings())

	s.SetFilters(Filters{PriceMax: 1000, SqftMax: 10000, MinBedrooms: intPtr(2)})

	visible := s.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "downtown", visible[0].ID)
}

func TestSession_ViewportDebounce_OnlyFinalBoundsApply(t *testing.T) {
	var (
		mu         sync.Mutex
		recomputes int
	)
	s := NewSession(nil,
		WithDebounce(30*time.Millisecond),
		WithOnChange(func([]model.Listing) {
			mu.Lock()
			recomputes++
			mu.Unlock()
		}),
	)
	defer s.Close()
	s.SetListings(testListings())

	mu.Lock()
	recomputes = 0
	mu.Unlock()

	// Simulated drag: a burst of viewport updates ending on a box that only
	// contains the "south" listing.
	for i := 0; i < 8; i++ {
		s.SetViewport(Bounds{SWLng: -88, SWLat: 41, NELng: -87, NELat: 42.5}, 13)
	}
	s.SetViewport(Bounds{SWLng: -87.65, SWLat: 41.70, NELng: -87.55, NELat: 41.80}, 15)

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, recomputes)
	mu.Unlock()

	visible := s.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "south", visible[0].ID)
	assert.InDelta(t, 15, s.Zoom(), 1e-9)
	assert.Equal(t, 40, s.ClusterRadius())
}

func TestSession_FlushViewport(t *testing.T) {
	s := NewSession(nil, WithDebounce(time.Hour))
	defer s.Close()
	s.SetListings(testListings())

	s.SetViewport(Bounds{SWLng: -87.65, SWLat: 41.70, NELng: -87.55, NELat: 41.80}, 16)
	assert.Len(t, s.Visible(), 3)

	s.FlushViewport()
	require.Len(t, s.Visible(), 1)
	assert.Equal(t, 30, s.ClusterRadius())
}

func TestSession_SelectNeighborhood_BBoxMidpoint(t *testing.T) {
	s := NewSession(testRegions())
	defer s.Close()

	center, err := s.SelectNeighborhood(context.Background(), "Hyde Park")
	require.NoError(t, err)
	assert.InDelta(t, -87.6, center.Longitude, 1e-9)
	assert.InDelta(t, 41.85, center.Latitude, 1e-9)
}

func TestSession_SelectWard(t *testing.T) {
	s := NewSession(testRegions())
	defer s.Close()

	center, err := s.SelectWard(context.Background(), "5")
	require.NoError(t, err)
	assert.InDelta(t, -87.59, center.Longitude, 1e-9)
	assert.InDelta(t, 41.79, center.Latitude, 1e-9)
}

func TestSession_SelectUnknownRegion(t *testing.T) {
	s := NewSession(testRegions())
	defer s.Close()

	_, err := s.SelectNeighborhood(context.Background(), "Atlantis")
	assert.Error(t, err)
}

func TestSession_SelectWithoutRegionData(t *testing.T) {
	s := NewSession(nil)
	defer s.Close()

	_, err := s.SelectNeighborhood(context.Background(), "Hyde Park")
	assert.Error(t, err)
}

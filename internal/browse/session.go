package browse

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fairhome/fairhome/internal/geo"
	"github.com/fairhome/fairhome/internal/model"
)

// Center is a map recenter target in decimal degrees.
type Center struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Session holds one browsing session's state: the full listing set, the
// active filters, and the current viewport. Viewport updates are coalesced
// through a trailing-edge debounce so a map drag triggers one recompute, not
// one per pixel. Filter and listing updates recompute immediately.
type Session struct {
	mu       sync.Mutex
	listings []model.Listing
	filters  Filters
	bounds   *Bounds
	zoom     float64
	visible  []model.Listing

	regions  *geo.Cache
	debounce *Debouncer
	onChange func([]model.Listing)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDebounce overrides the viewport coalescing delay.
func WithDebounce(delay time.Duration) SessionOption {
	return func(s *Session) { s.debounce = NewDebouncer(delay) }
}

// WithOnChange registers a callback invoked with the visible subset after
// every recompute.
func WithOnChange(fn func([]model.Listing)) SessionOption {
	return func(s *Session) { s.onChange = fn }
}

// NewSession creates a Session with no viewport (everything visible) and
// wide-open filters. regions may be nil if region selection is unused.
func NewSession(regions *geo.Cache, opts ...SessionOption) *Session {
	s := &Session{
		filters:  Filters{PriceMax: int(^uint(0) >> 1), SqftMax: int(^uint(0) >> 1)},
		zoom:     11,
		regions:  regions,
		debounce: NewDebouncer(DefaultDebounce),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recompute()
	return s
}

// SetListings replaces the listing set and recomputes immediately.
func (s *Session) SetListings(listings []model.Listing) {
	s.mu.Lock()
	s.listings = listings
	s.mu.Unlock()
	s.recompute()
}

// SetFilters replaces the filter predicates and recomputes immediately.
func (s *Session) SetFilters(f Filters) {
	s.mu.Lock()
	s.filters = f
	s.mu.Unlock()
	s.recompute()
}

// SetViewport records a viewport update. The update is debounced: within a
// burst only the final bounds and zoom take effect, and exactly one
// recompute runs.
func (s *Session) SetViewport(b Bounds, zoom float64) {
	s.debounce.Trigger(func() {
		s.mu.Lock()
		bounds := b
		s.bounds = &bounds
		s.zoom = zoom
		s.mu.Unlock()
		s.recompute()
	})
}

// FlushViewport applies a pending viewport update immediately.
func (s *Session) FlushViewport() {
	s.debounce.Flush()
}

// Close discards any pending viewport update.
func (s *Session) Close() {
	s.debounce.Stop()
}

func (s *Session) recompute() {
	s.mu.Lock()
	visible := s.filters.Apply(s.listings, s.bounds)
	s.visible = visible
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(visible)
	}
}

// Visible returns the listings passing the current filters and viewport, in
// listing-set order.
func (s *Session) Visible() []model.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Zoom returns the current zoom level.
func (s *Session) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// ClusterRadius returns the cluster radius for the current zoom.
func (s *Session) ClusterRadius() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ClusterRadius(s.zoom)
}

// SelectNeighborhood resolves a neighborhood name to its recenter point: the
// midpoint of the region's outer-ring bounding box.
func (s *Session) SelectNeighborhood(ctx context.Context, name string) (Center, error) {
	return s.regionCenter(ctx, geo.NeighborhoodsName, geo.PropCommunity, name)
}

// SelectWard resolves a ward number to its recenter point.
func (s *Session) SelectWard(ctx context.Context, ward string) (Center, error) {
	return s.regionCenter(ctx, geo.WardsName, geo.PropWard, ward)
}

func (s *Session) regionCenter(ctx context.Context, blob, property, value string) (Center, error) {
	if s.regions == nil {
		return Center{}, eris.New("browse: no region data configured")
	}
	fc, err := s.regions.Collection(ctx, blob)
	if err != nil {
		return Center{}, err
	}
	f := geo.FindFeature(fc, property, value)
	if f == nil {
		return Center{}, eris.Errorf("browse: %s %q not found", property, value)
	}
	lng, lat, err := geo.FeatureCenter(f)
	if err != nil {
		return Center{}, err
	}
	return Center{Latitude: lat, Longitude: lng}, nil
}

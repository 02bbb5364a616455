package geo

import (
	"context"
	"sync"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// Source provides named GeoJSON blobs. The store satisfies it.
type Source interface {
	GetGeoData(ctx context.Context, name string) ([]byte, error)
}

// Cache is an injected in-process cache for geo reference data. Blobs are
// loaded from the source on first access and held for the cache's lifetime;
// callers own construction and reset rather than sharing ambient state.
type Cache struct {
	mu     sync.Mutex
	source Source
	raw    map[string][]byte
	parsed map[string]*geojson.FeatureCollection
}

// NewCache creates an empty cache backed by the given source.
func NewCache(source Source) *Cache {
	return &Cache{
		source: source,
		raw:    make(map[string][]byte),
		parsed: make(map[string]*geojson.FeatureCollection),
	}
}

// Raw returns the named blob, loading it on first access.
func (c *Cache) Raw(ctx context.Context, name string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx, name)
}

// Collection returns the named blob parsed as a FeatureCollection, loading
// and parsing on first access.
func (c *Cache) Collection(ctx context.Context, name string) (*geojson.FeatureCollection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fc, ok := c.parsed[name]; ok {
		return fc, nil
	}

	data, err := c.loadLocked(ctx, name)
	if err != nil {
		return nil, err
	}
	fc, err := ParseCollection(data)
	if err != nil {
		return nil, err
	}
	c.parsed[name] = fc
	return fc, nil
}

func (c *Cache) loadLocked(ctx context.Context, name string) ([]byte, error) {
	if data, ok := c.raw[name]; ok {
		return data, nil
	}
	data, err := c.source.GetGeoData(ctx, name)
	if err != nil {
		return nil, err
	}
	c.raw[name] = data
	return data, nil
}

// Reset drops all cached entries. The next access reloads from the source.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raw = make(map[string][]byte)
	c.parsed = make(map[string]*geojson.FeatureCollection)
}

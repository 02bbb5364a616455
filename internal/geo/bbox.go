// Package geo manages neighborhood and ward reference data: GeoJSON blobs in
// the store, bounding-box geometry helpers, and shapefile import.
//
// Region centers and point containment deliberately use bounding-box
// approximations rather than true centroid/point-in-polygon math; map clients
// depend on the approximate values, so upgrading the geometry here would be a
// behavior change, not a fix.
package geo

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Well-known geo_data blob names.
const (
	NeighborhoodsName = "neighborhoods"
	WardsName         = "wards"
)

// Feature property keys used by the Chicago boundary datasets.
const (
	PropCommunity   = "community"
	PropWard        = "ward"
	PropAlderperson = "alderperson"
)

// BBox is the smallest axis-aligned rectangle containing a ring's vertices.
type BBox struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Center returns the arithmetic midpoint of the box. This is NOT the polygon
// centroid; skewed regions recenter to their box midpoint on purpose.
func (b BBox) Center() (lng, lat float64) {
	return (b.MinLng + b.MaxLng) / 2, (b.MinLat + b.MaxLat) / 2
}

// Contains reports whether the point lies within the box, borders inclusive.
func (b BBox) Contains(lng, lat float64) bool {
	return lng >= b.MinLng && lng <= b.MaxLng && lat >= b.MinLat && lat <= b.MaxLat
}

// OuterRing returns the exterior ring of a Polygon, or of the first polygon
// of a MultiPolygon. Boundary datasets store regions as one of the two.
func OuterRing(g geom.T) ([]geom.Coord, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil, eris.New("geo: polygon has no rings")
		}
		return t.LinearRing(0).Coords(), nil
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil, eris.New("geo: multipolygon is empty")
		}
		p := t.Polygon(0)
		if p.NumLinearRings() == 0 {
			return nil, eris.New("geo: multipolygon first polygon has no rings")
		}
		return p.LinearRing(0).Coords(), nil
	default:
		return nil, eris.Errorf("geo: unsupported geometry type %T", g)
	}
}

// RingBBox computes the bounding box of a coordinate ring.
func RingBBox(ring []geom.Coord) (BBox, error) {
	if len(ring) == 0 {
		return BBox{}, eris.New("geo: empty ring")
	}
	b := BBox{
		MinLng: ring[0].X(), MaxLng: ring[0].X(),
		MinLat: ring[0].Y(), MaxLat: ring[0].Y(),
	}
	for _, c := range ring[1:] {
		if c.X() < b.MinLng {
			b.MinLng = c.X()
		}
		if c.X() > b.MaxLng {
			b.MaxLng = c.X()
		}
		if c.Y() < b.MinLat {
			b.MinLat = c.Y()
		}
		if c.Y() > b.MaxLat {
			b.MaxLat = c.Y()
		}
	}
	return b, nil
}

// FeatureBBox returns the bounding box of a feature's outer ring.
func FeatureBBox(f *geojson.Feature) (BBox, error) {
	if f == nil || f.Geometry == nil {
		return BBox{}, eris.New("geo: feature has no geometry")
	}
	ring, err := OuterRing(f.Geometry)
	if err != nil {
		return BBox{}, err
	}
	return RingBBox(ring)
}

// FeatureCenter returns the bounding-box midpoint of a feature's outer ring.
func FeatureCenter(f *geojson.Feature) (lng, lat float64, err error) {
	b, err := FeatureBBox(f)
	if err != nil {
		return 0, 0, err
	}
	lng, lat = b.Center()
	return lng, lat, nil
}

// FindFeature returns the first feature whose string property matches the
// given value, case-insensitively. Returns nil if none match.
func FindFeature(fc *geojson.FeatureCollection, property, value string) *geojson.Feature {
	if fc == nil {
		return nil
	}
	for _, f := range fc.Features {
		s, ok := f.Properties[property].(string)
		if ok && strings.EqualFold(s, value) {
			return f
		}
	}
	return nil
}

// FindContaining returns the first feature whose outer-ring bounding box
// contains the point. Near concave boundaries this can misassign points; the
// approximation is intentional.
func FindContaining(fc *geojson.FeatureCollection, lng, lat float64) *geojson.Feature {
	if fc == nil {
		return nil
	}
	for _, f := range fc.Features {
		b, err := FeatureBBox(f)
		if err != nil {
			continue
		}
		if b.Contains(lng, lat) {
			return f
		}
	}
	return nil
}

// ParseCollection decodes a GeoJSON FeatureCollection.
func ParseCollection(data []byte) (*geojson.FeatureCollection, error) {
	var fc geojson.FeatureCollection
	if err := fc.UnmarshalJSON(data); err != nil {
		return nil, eris.Wrap(err, "geo: parse feature collection")
	}
	return &fc, nil
}

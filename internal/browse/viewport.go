// Package browse derives the visible listing subset for a map browsing
// session from the full listing set, the active filters, and a debounced
// viewport, and drives cluster level-of-detail from zoom.
package browse

import "github.com/fairhome/fairhome/internal/model"

// Bounds is the rectangular geographic viewport, expressed as its south-west
// and north-east corners in decimal degrees.
type Bounds struct {
	SWLng float64 `json:"sw_lng"`
	SWLat float64 `json:"sw_lat"`
	NELng float64 `json:"ne_lng"`
	NELat float64 `json:"ne_lat"`
}

// Contains reports whether the listing's placed coordinates fall within the
// bounds, borders inclusive. A nil bounds means no viewport is set yet and
// everything is visible.
func (b *Bounds) Contains(l model.Listing) bool {
	if b == nil {
		return true
	}
	lat, lng := l.Location.Place()
	return lng >= b.SWLng && lng <= b.NELng && lat >= b.SWLat && lat <= b.NELat
}

package browse

import "github.com/fairhome/fairhome/internal/model"

// Filters holds the user-chosen listing predicates. Ranges are inclusive on
// both ends; the minimum-count predicates only apply when set.
type Filters struct {
	PriceMin int `json:"price_min"`
	PriceMax int `json:"price_max"`
	SqftMin  int `json:"sqft_min"`
	SqftMax  int `json:"sqft_max"`

	MinBedrooms  *int `json:"min_bedrooms,omitempty"`
	MinBathrooms *int `json:"min_bathrooms,omitempty"`
}

// Matches reports whether the listing passes every predicate: price range,
// square-footage range, minimum bedrooms, minimum bathrooms, and the
// viewport bounds.
func (f Filters) Matches(l model.Listing, b *Bounds) bool {
	if l.Price < f.PriceMin || l.Price > f.PriceMax {
		return false
	}
	if l.SquareFeet < f.SqftMin || l.SquareFeet > f.SqftMax {
		return false
	}
	if f.MinBedrooms != nil && l.Bedrooms < *f.MinBedrooms {
		return false
	}
	if f.MinBathrooms != nil && l.Bathrooms < *f.MinBathrooms {
		return false
	}
	return b.Contains(l)
}

// Apply returns the listings that pass the filters, preserving input order.
func (f Filters) Apply(listings []model.Listing, b *Bounds) []model.Listing {
	visible := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		if f.Matches(l, b) {
			visible = append(visible, l)
		}
	}
	return visible
}

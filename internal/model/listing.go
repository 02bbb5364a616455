// Package model defines the core domain types shared across the service.
package model

import (
	"encoding/json"
	"time"
)

// Chicago city-center fallback used to place listings without usable coordinates.
const (
	ChicagoLatitude  = 41.8781
	ChicagoLongitude = -87.6298
)

// Location is a tagged coordinate state: either a known point in decimal
// degrees or an explicitly unknown location. Unknown locations still render
// on the map at the Chicago city-center fallback via Place, but consumers
// can always tell real coordinates from the placeholder.
type Location struct {
	Latitude  float64
	Longitude float64
	Known     bool
}

// KnownLocation returns a Location with real coordinates.
func KnownLocation(lat, lng float64) Location {
	return Location{Latitude: lat, Longitude: lng, Known: true}
}

// UnknownLocation returns the explicit unknown-location sentinel.
func UnknownLocation() Location {
	return Location{}
}

// Place returns the coordinates at which the location should be rendered.
// Unknown locations fall back to the Chicago city center.
func (l Location) Place() (lat, lng float64) {
	if !l.Known {
		return ChicagoLatitude, ChicagoLongitude
	}
	return l.Latitude, l.Longitude
}

// locationJSON is the wire shape for Location.
type locationJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Known     bool    `json:"known"`
}

// MarshalJSON serializes the placed coordinates plus the known flag, so map
// clients can render every listing while still flagging placeholders.
func (l Location) MarshalJSON() ([]byte, error) {
	lat, lng := l.Place()
	return json.Marshal(locationJSON{Latitude: lat, Longitude: lng, Known: l.Known})
}

// UnmarshalJSON restores a Location from its wire shape.
func (l *Location) UnmarshalJSON(data []byte) error {
	var lj locationJSON
	if err := json.Unmarshal(data, &lj); err != nil {
		return err
	}
	*l = Location{Latitude: lj.Latitude, Longitude: lj.Longitude, Known: lj.Known}
	return nil
}

// Listing is an affordable-housing listing as stored and served.
type Listing struct {
	ID          string    `json:"id"`
	DeveloperID string    `json:"developerId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Location    Location  `json:"location"`
	Price       int       `json:"price"`
	Bedrooms    int       `json:"bedrooms"`
	Bathrooms   int       `json:"bathrooms"`
	SquareFeet  int       `json:"squareFeet"`
	Photos      []string  `json:"photos"`
	Amenities   []string  `json:"amenities"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Package listingsync keeps the listings table consistent with the Chicago
// open-data affordable rental housing feed.
package listingsync

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fairhome/fairhome/internal/model"
)

// Transform maps upstream feed records to internal listings. Records missing
// usable coordinates, an address, or a property name are dropped so corrupt
// rows never enter the store. The output is deterministic for a given input
// and preserves feed order.
func Transform(records []model.ChicagoHousingRecord) []model.Listing {
	listings := make([]model.Listing, 0, len(records))
	for _, rec := range records {
		l, ok := transformRecord(rec)
		if !ok {
			continue
		}
		listings = append(listings, l)
	}
	return listings
}

func transformRecord(rec model.ChicagoHousingRecord) (model.Listing, bool) {
	name := strings.TrimSpace(rec.PropertyName)
	address := strings.TrimSpace(rec.Address)
	if name == "" || address == "" {
		return model.Listing{}, false
	}

	lat, ok := parseCoordinate(rec.Latitude)
	if !ok {
		return model.Listing{}, false
	}
	lng, ok := parseCoordinate(rec.Longitude)
	if !ok {
		return model.Listing{}, false
	}

	return model.Listing{
		Title:       name,
		Description: fmt.Sprintf("%s managed by %s", rec.PropertyType, rec.ManagementCompany),
		Address:     address,
		Location:    model.KnownLocation(lat, lng),
		Photos:      []string{},
		Amenities:   []string{},
	}, true
}

// parseCoordinate parses a decimal-degree string, rejecting absent,
// non-numeric, and non-finite values.
func parseCoordinate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

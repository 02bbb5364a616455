package geo

import (
	"go.uber.org/zap"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// AnnotateWards copies the ward number and alderperson contact onto each
// neighborhood feature, matching by which ward's bounding box contains the
// neighborhood's bounding-box center. Returns the number of neighborhoods
// annotated. Neighborhoods whose center falls in no ward box are left as-is.
func AnnotateWards(neighborhoods, wards *geojson.FeatureCollection) int {
	log := zap.L().With(zap.String("component", "geo.wards"))

	var annotated int
	for _, n := range neighborhoods.Features {
		lng, lat, err := FeatureCenter(n)
		if err != nil {
			log.Warn("skipping neighborhood without usable geometry", zap.Error(err))
			continue
		}

		ward := FindContaining(wards, lng, lat)
		if ward == nil {
			continue
		}

		if n.Properties == nil {
			n.Properties = map[string]any{}
		}
		n.Properties[PropWard] = ward.Properties[PropWard]
		if alder, ok := ward.Properties[PropAlderperson]; ok {
			n.Properties[PropAlderperson] = alder
		}
		annotated++
	}

	log.Info("ward annotation complete",
		zap.Int("neighborhoods", len(neighborhoods.Features)),
		zap.Int("annotated", annotated),
	)
	return annotated
}

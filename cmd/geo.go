package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairhome/fairhome/internal/geo"
)

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Manage neighborhood and ward reference data",
	Long: `Commands for loading GeoJSON boundary datasets into the store,
importing Census TIGER shapefiles, and annotating neighborhoods with
ward metadata.`,
}

// -- geo load --

var geoLoadCmd = &cobra.Command{
	Use:   "load <name> <file.geojson>",
	Short: "Load a GeoJSON file into the store",
	Long: `Loads a GeoJSON FeatureCollection into the store under the given name.
The well-known names "neighborhoods" and "wards" are served by the API.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, path := args[0], args[1]

		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "geo load: read %s", path)
		}

		// Reject files that do not parse before they reach the store.
		fc, err := geo.ParseCollection(data)
		if err != nil {
			return eris.Wrapf(err, "geo load: parse %s", path)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.PutGeoData(ctx, name, data); err != nil {
			return eris.Wrapf(err, "geo load: store %s", name)
		}

		fmt.Printf("Loaded %q: %d features\n", name, len(fc.Features))
		return nil
	},
}

// -- geo import-shapefile --

var geoImportShapefileCmd = &cobra.Command{
	Use:   "import-shapefile <name> <file.shp>",
	Short: "Import an ESRI shapefile as GeoJSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, path := args[0], args[1]

		fc, err := geo.ImportShapefile(path)
		if err != nil {
			return err
		}

		data, err := json.Marshal(fc)
		if err != nil {
			return eris.Wrap(err, "geo import: encode collection")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.PutGeoData(ctx, name, data); err != nil {
			return eris.Wrapf(err, "geo import: store %s", name)
		}

		fmt.Printf("Imported %q: %d features\n", name, len(fc.Features))
		return nil
	},
}

// -- geo annotate-wards --

var geoAnnotateWardsCmd = &cobra.Command{
	Use:   "annotate-wards",
	Short: "Copy ward metadata onto neighborhood features",
	Long: `Annotates each neighborhood feature with the ward and alderperson of
the ward whose bounding box contains the neighborhood's center, then
stores the updated neighborhoods dataset.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		cache := geo.NewCache(st)
		neighborhoods, err := cache.Collection(ctx, geo.NeighborhoodsName)
		if err != nil {
			return eris.Wrap(err, "annotate wards: load neighborhoods")
		}
		wards, err := cache.Collection(ctx, geo.WardsName)
		if err != nil {
			return eris.Wrap(err, "annotate wards: load wards")
		}

		annotated := geo.AnnotateWards(neighborhoods, wards)
		zap.L().Info("annotated neighborhoods",
			zap.Int("annotated", annotated),
			zap.Int("total", len(neighborhoods.Features)),
		)

		data, err := json.Marshal(neighborhoods)
		if err != nil {
			return eris.Wrap(err, "annotate wards: encode neighborhoods")
		}
		if err := st.PutGeoData(ctx, geo.NeighborhoodsName, data); err != nil {
			return eris.Wrap(err, "annotate wards: store neighborhoods")
		}

		fmt.Printf("Annotated %d of %d neighborhoods\n", annotated, len(neighborhoods.Features))
		return nil
	},
}

func init() {
	geoCmd.AddCommand(geoLoadCmd)
	geoCmd.AddCommand(geoImportShapefileCmd)
	geoCmd.AddCommand(geoAnnotateWardsCmd)
	rootCmd.AddCommand(geoCmd)
}

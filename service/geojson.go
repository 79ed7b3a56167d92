package service

import (
	"fmt"
	"os"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
)

// Feature is a polygonal feature with its attributes.
type Feature struct {
	Geometry   geom.Geometry
	Properties map[string]interface{}
}

// UnmarshalGeometry, merging featureCollections and geometryCollections into a multipolygon
func UnmarshalGeometry(data []byte) (_ geom.Geometry, err error) {
	var g geojson.Geometry
	if err := g.UnmarshalJSON(data); err != nil {
		return g.Geometry, err
	}
	switch geo := g.Geometry.(type) {
	case geojson.FeatureCollection:
		var mp geom.MultiPolygon
		for _, f := range geo.Features {
			if err := mergeMultiPolygons(f.Geometry.Geometry, &mp); err != nil {
				return nil, err
			}
		}
		return mp, nil
	case geojson.Feature:
		return geo.Geometry.Geometry, nil
	default:
		return g.Geometry, nil
	}
}

// UnmarshalFeatures returns the features of a featureCollection with their
// attributes, so that a per-feature field can be read (e.g. the output prefix).
// A bare geometry or a single feature yields one Feature.
func UnmarshalFeatures(data []byte) ([]Feature, error) {
	var g geojson.Geometry
	if err := g.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	switch geo := g.Geometry.(type) {
	case geojson.FeatureCollection:
		features := make([]Feature, len(geo.Features))
		for i, f := range geo.Features {
			features[i] = Feature{Geometry: f.Geometry.Geometry, Properties: f.Properties}
		}
		return features, nil
	case geojson.Feature:
		return []Feature{{Geometry: geo.Geometry.Geometry, Properties: geo.Properties}}, nil
	default:
		return []Feature{{Geometry: g.Geometry}}, nil
	}
}

// ReadFeatureFile reads a geojson file into features
func ReadFeatureFile(path string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ReadFeatureFile: %w", err)
	}
	features, err := UnmarshalFeatures(data)
	if err != nil {
		return nil, fmt.Errorf("ReadFeatureFile[%s]: %w", path, err)
	}
	return features, nil
}

func mergeMultiPolygons(g geom.Geometry, mp *geom.MultiPolygon) error {
	switch g := g.(type) {
	case geom.MultiPolygon:
		*mp = append(*mp, g.Polygons()...)
	case geom.Polygon:
		*mp = append(*mp, g.LinearRings())
	case geom.Collection:
		for _, g := range g.Geometries() {
			if err := mergeMultiPolygons(g, mp); err != nil {
				return err
			}
		}
	}
	return nil
}

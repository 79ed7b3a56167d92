package geometry

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"
)

// metersPerDegree is the length of one degree of latitude (and of longitude at
// the equator) on the WGS84 ellipsoid, to a sufficient approximation for
// search-extent buffering.
const metersPerDegree = 111320.0

// Generates a geom.Geometry from a geos.Geometry
func GeosToGeom(g *geos.Geometry) (geom.Geometry, error) {
	wkt, err := g.ToWKT()
	if err != nil {
		return nil, fmt.Errorf("GeosToGeom.ToWKT: %w", err)
	}
	geometry, err := geomwkt.DecodeString(wkt)
	if err != nil {
		return nil, fmt.Errorf("GeosToGeom.DecodeString: %w", err)
	}

	return geometry, nil
}

// Generates a geos.Geometry from a geom.Geometry
func GeomToGeos(g geom.Geometry) (*geos.Geometry, error) {
	geometry, err := geos.FromWKT(geomwkt.MustEncode(g))
	if err != nil {
		return nil, fmt.Errorf("GeomToGeos.FromWKT: %w", err)
	}
	return geometry, nil
}

// Validate returns an error if the geometry cannot be used as an area of
// interest: invalid (e.g. self-intersecting ring) or of zero area.
func Validate(g *geos.Geometry) error {
	valid, err := g.IsValid()
	if err != nil {
		return fmt.Errorf("Validate.IsValid: %w", err)
	}
	if !valid {
		return fmt.Errorf("geometry is not valid (self-intersection?)")
	}
	area, err := g.Area()
	if err != nil {
		return fmt.Errorf("Validate.Area: %w", err)
	}
	if area <= 0 {
		return fmt.Errorf("geometry has no area")
	}
	return nil
}

// BufferMeters buffers a WGS84 geometry by the given distance in meters.
// The geometry is scaled to a local equirectangular plane centered on its
// latitude, buffered there, and scaled back, so the buffer is metric without
// an external projection database.
func BufferMeters(g geom.Geometry, meters float64) (*geos.Geometry, error) {
	ext, err := geom.NewExtentFromGeometry(g)
	if err != nil {
		return nil, fmt.Errorf("BufferMeters.Extent: %w", err)
	}
	latMid := (ext.MinY() + ext.MaxY()) / 2
	fx := math.Cos(latMid*math.Pi/180) * metersPerDegree
	fy := metersPerDegree
	if fx < 1 { // degenerate at the poles
		fx = 1
	}

	scaled, err := Scale(g, fx, fy)
	if err != nil {
		return nil, fmt.Errorf("BufferMeters.%w", err)
	}
	gg, err := GeomToGeos(scaled)
	if err != nil {
		return nil, fmt.Errorf("BufferMeters.%w", err)
	}
	buffered, err := gg.Buffer(meters)
	if err != nil {
		return nil, fmt.Errorf("BufferMeters.Buffer: %w", err)
	}
	back, err := GeosToGeom(buffered)
	if err != nil {
		return nil, fmt.Errorf("BufferMeters.%w", err)
	}
	if back, err = Scale(back, 1/fx, 1/fy); err != nil {
		return nil, fmt.Errorf("BufferMeters.%w", err)
	}
	result, err := GeomToGeos(back)
	if err != nil {
		return nil, fmt.Errorf("BufferMeters.%w", err)
	}
	return result, nil
}

// Scale multiplies every coordinate of the geometry by (fx, fy).
func Scale(g geom.Geometry, fx, fy float64) (geom.Geometry, error) {
	switch g := g.(type) {
	case geom.Point:
		return geom.Point{g[0] * fx, g[1] * fy}, nil
	case geom.LineString:
		return geom.LineString(scaleRing(g, fx, fy)), nil
	case geom.Polygon:
		return geom.Polygon(scaleRings(g.LinearRings(), fx, fy)), nil
	case geom.MultiPolygon:
		polygons := g.Polygons()
		mp := make(geom.MultiPolygon, len(polygons))
		for i, p := range polygons {
			mp[i] = scaleRings(p, fx, fy)
		}
		return mp, nil
	}
	return nil, fmt.Errorf("Scale: unsupported geometry: %T", g)
}

func scaleRings(rings [][][2]float64, fx, fy float64) [][][2]float64 {
	scaled := make([][][2]float64, len(rings))
	for i, ring := range rings {
		scaled[i] = scaleRing(ring, fx, fy)
	}
	return scaled
}

func scaleRing(ring [][2]float64, fx, fy float64) [][2]float64 {
	scaled := make([][2]float64, len(ring))
	for i, pt := range ring {
		scaled[i] = [2]float64{pt[0] * fx, pt[1] * fy}
	}
	return scaled
}

// Bbox returns the extent of the geometry as [xmin, ymin, xmax, ymax].
func Bbox(g *geos.Geometry) ([4]float64, error) {
	gg, err := GeosToGeom(g)
	if err != nil {
		return [4]float64{}, fmt.Errorf("Bbox.%w", err)
	}
	ext, err := geom.NewExtentFromGeometry(gg)
	if err != nil {
		return [4]float64{}, fmt.Errorf("Bbox.Extent: %w", err)
	}
	return [4]float64{ext.MinX(), ext.MinY(), ext.MaxX(), ext.MaxY()}, nil
}

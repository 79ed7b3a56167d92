package catalog

import (
	"fmt"
	"os"
	"runtime"

	"github.com/geofetch/s2fetch/common"
	"github.com/geofetch/s2fetch/service"
	"github.com/geofetch/s2fetch/service/geometry"
	"github.com/go-spatial/geom"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
)

// ErrInvalidPrefix is returned when an output prefix cannot be used to compose
// artifact names.
type ErrInvalidPrefix struct {
	Prefix string
}

func (e ErrInvalidPrefix) Error() string {
	return fmt.Sprintf("invalid prefix %q (must be letters and digits only)", e.Prefix)
}

// ErrInvalidGeometry is returned when an input geometry cannot be used as an
// area of interest.
type ErrInvalidGeometry struct {
	Prefix string
	Err    error
}

func (e ErrInvalidGeometry) Error() string {
	return fmt.Sprintf("invalid geometry for %q: %v", e.Prefix, e.Err)
}

func (e ErrInvalidGeometry) Unwrap() error { return e.Err }

// NewArea validates the prefix and the geometry (WGS84) and derives the
// buffered search geometry. The buffered geometry is computed once here and
// never modified afterwards.
func NewArea(prefix string, g geom.Geometry, bufferM float64) (common.AreaOfInterest, error) {
	if !common.ValidPrefix(prefix) {
		return common.AreaOfInterest{}, ErrInvalidPrefix{prefix}
	}
	if g == nil {
		// A feature without a geometry member decodes to a nil geometry.
		return common.AreaOfInterest{}, ErrInvalidGeometry{prefix, fmt.Errorf("missing geometry")}
	}

	gg, err := geometry.GeomToGeos(g)
	if err != nil {
		return common.AreaOfInterest{}, ErrInvalidGeometry{prefix, err}
	}
	if err := geometry.Validate(gg); err != nil {
		return common.AreaOfInterest{}, ErrInvalidGeometry{prefix, err}
	}

	buffered, err := geometry.BufferMeters(g, bufferM)
	if err != nil {
		return common.AreaOfInterest{}, ErrInvalidGeometry{prefix, fmt.Errorf("buffer: %w", err)}
	}
	bufferedWKT, err := buffered.ToWKT()
	if err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("NewArea.ToWKT: %w", err)
	}
	bbox, err := geometry.Bbox(buffered)
	if err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("NewArea.%w", err)
	}
	runtime.KeepAlive(gg)

	return common.AreaOfInterest{
		Prefix:       prefix,
		BufferM:      bufferM,
		GeometryWKT:  geomwkt.MustEncode(g),
		BufferedWKT:  bufferedWKT,
		BufferedBbox: bbox,
	}, nil
}

// AreaFromExtent creates the area of interest of a rectangular lon/lat extent
// [minx, miny, maxx, maxy].
func AreaFromExtent(prefix string, extent [4]float64, bufferM float64) (common.AreaOfInterest, error) {
	if extent[2] <= extent[0] || extent[3] <= extent[1] {
		return common.AreaOfInterest{}, ErrInvalidGeometry{prefix, fmt.Errorf("empty extent %v", extent)}
	}
	ring := [][2]float64{
		{extent[0], extent[1]},
		{extent[2], extent[1]},
		{extent[2], extent[3]},
		{extent[0], extent[3]},
		{extent[0], extent[1]},
	}
	area, err := NewArea(prefix, geom.Polygon{ring}, bufferM)
	if err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("AreaFromExtent.%w", err)
	}
	return area, nil
}

// AreaFromGeometryFile creates a single area of interest from a GeoJSON file,
// merging all the polygons of a featureCollection or geometryCollection into
// one multipolygon.
func AreaFromGeometryFile(path, prefix string, bufferM float64) (common.AreaOfInterest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("AreaFromGeometryFile: %w", err)
	}
	g, err := service.UnmarshalGeometry(data)
	if err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("AreaFromGeometryFile[%s]: %w", path, err)
	}
	area, err := NewArea(prefix, g, bufferM)
	if err != nil {
		return common.AreaOfInterest{}, fmt.Errorf("AreaFromGeometryFile.%w", err)
	}
	return area, nil
}

// AreasFromFeatureFile creates one area of interest per feature of a GeoJSON
// featureCollection. The output prefix of each area is read from the
// prefixField attribute, or defaults to defaultPrefix with the feature index
// appended when the collection has several features.
func AreasFromFeatureFile(path, prefixField, defaultPrefix string, bufferM float64) ([]common.AreaOfInterest, error) {
	features, err := service.ReadFeatureFile(path)
	if err != nil {
		return nil, fmt.Errorf("AreasFromFeatureFile.%w", err)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("AreasFromFeatureFile: no feature in %s", path)
	}

	areas := make([]common.AreaOfInterest, 0, len(features))
	for i, f := range features {
		prefix := defaultPrefix
		if prefixField != "" {
			v, ok := f.Properties[prefixField]
			if !ok {
				return nil, fmt.Errorf("AreasFromFeatureFile: feature %d has no attribute %q", i, prefixField)
			}
			prefix = fmt.Sprintf("%v", v)
		} else if len(features) > 1 {
			prefix = fmt.Sprintf("%s%d", defaultPrefix, i)
		}
		area, err := NewArea(prefix, f.Geometry, bufferM)
		if err != nil {
			return nil, fmt.Errorf("AreasFromFeatureFile: feature %d: %w", i, err)
		}
		areas = append(areas, area)
	}
	return areas, nil
}

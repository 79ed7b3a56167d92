package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	"github.com/geofetch/s2fetch/common"
	"github.com/geofetch/s2fetch/service/log"
	"github.com/go-spatial/geom/encoding/geojson"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
)

// ErrClipOutOfBounds is returned when the area of interest does not overlap
// the raster at all.
type ErrClipOutOfBounds struct {
	SceneID string
}

func (e ErrClipOutOfBounds) Error() string {
	return fmt.Sprintf("scene %s: the area of interest is outside the raster", e.SceneID)
}

// ClipMode selects what happens to the pixels between the area of interest
// polygon and its envelope.
type ClipMode string

const (
	// ClipExtent clips to the envelope of the area of interest (default).
	ClipExtent ClipMode = "extent"
	// ClipMask additionally masks the pixels outside the polygon to nodata.
	ClipMask ClipMode = "mask"
)

func ParseClipMode(s string) (ClipMode, error) {
	switch ClipMode(s) {
	case ClipExtent, ClipMask:
		return ClipMode(s), nil
	}
	return "", fmt.Errorf("unknown clip mode %q (extent, mask)", s)
}

var registerOnce sync.Once

// Register initializes the gdal drivers. Must be called once before any clip.
func Register() {
	registerOnce.Do(godal.RegisterAll)
}

// EnableStreaming registers an http block-cache as a gdal virtual filesystem,
// so that rasters can be clipped straight from a remote cog without a full
// download.
func EnableStreaming(ctx context.Context) error {
	Register()
	handle, err := osio.HTTPHandle(ctx)
	if err != nil {
		return fmt.Errorf("EnableStreaming.HTTPHandle: %w", err)
	}
	adapter, err := osio.NewAdapter(handle, osio.BlockSize("512Kb"), osio.NumCachedBlocks(256))
	if err != nil {
		return fmt.Errorf("EnableStreaming.NewAdapter: %w", err)
	}
	for _, prefix := range []string{"http://", "https://"} {
		if err := godal.RegisterVSIHandler(prefix, adapter); err != nil {
			return fmt.Errorf("EnableStreaming.RegisterVSIHandler: %w", err)
		}
	}
	return nil
}

// Processor clips a downloaded raster to an area of interest, preserving the
// resolution, the data type and the georeferencing of the source.
type Processor struct {
	Mode ClipMode
}

// ClipScene clips the raster of the asset to the buffered geometry of the
// area and writes the result to dstPath.
func (p *Processor) ClipScene(ctx context.Context, asset *common.DownloadedAsset, area common.AreaOfInterest, dstPath string) error {
	Register()

	src, err := godal.Open(asset.RasterPath)
	if err != nil {
		return fmt.Errorf("ClipScene.Open[%s]: %w", asset.RasterPath, err)
	}
	defer src.Close()

	clipExtent, err := p.clipExtent(src, asset.Scene, area)
	if err != nil {
		return fmt.Errorf("ClipScene.%w", err)
	}

	switches := []string{
		"-of", "GTiff",
		"-te", fmt.Sprint(clipExtent[0]), fmt.Sprint(clipExtent[1]), fmt.Sprint(clipExtent[2]), fmt.Sprint(clipExtent[3]),
		"-co", "COMPRESS=DEFLATE",
		"-co", "TILED=YES",
	}
	if p.Mode == ClipMask {
		cutline, err := writeCutline(filepath.Dir(dstPath), area)
		if err != nil {
			return fmt.Errorf("ClipScene.%w", err)
		}
		defer os.Remove(cutline)
		switches = append(switches, "-cutline", cutline, "-dstnodata", "0")
	}

	log.Logger(ctx).Sugar().Debugf("clipping %s to %v", asset.Scene.SceneID, clipExtent)
	dst, err := godal.Warp(dstPath, []*godal.Dataset{src}, switches)
	if err != nil {
		return fmt.Errorf("ClipScene.Warp: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("ClipScene.Close: %w", err)
	}
	return nil
}

// clipExtent computes the intersection of the raster bounds with the buffered
// bbox of the area, in the raster crs.
func (p *Processor) clipExtent(src *godal.Dataset, scene common.SequencedScene, area common.AreaOfInterest) ([4]float64, error) {
	rasterBounds, err := src.Bounds()
	if err != nil {
		return [4]float64{}, fmt.Errorf("clipExtent.Bounds: %w", err)
	}

	aoiBounds, err := reprojectBbox(area.BufferedBbox, src.SpatialRef())
	if err != nil {
		return [4]float64{}, fmt.Errorf("clipExtent.%w", err)
	}

	clip, ok := intersectExtent(rasterBounds, aoiBounds)
	if !ok {
		return [4]float64{}, ErrClipOutOfBounds{scene.SceneID}
	}
	return clip, nil
}

// reprojectBbox transforms a lon/lat bbox into dst and returns the envelope of
// the transformed edges.
func reprojectBbox(bbox [4]float64, dst *godal.SpatialRef) ([4]float64, error) {
	wgs84, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return bbox, fmt.Errorf("reprojectBbox.NewSpatialRefFromEPSG: %w", err)
	}
	defer wgs84.Close()

	trn, err := godal.NewTransform(wgs84, dst)
	if err != nil {
		return bbox, fmt.Errorf("reprojectBbox.NewTransform: %w", err)
	}
	defer trn.Close()

	// corners and edge midpoints, to bound the curvature of the edges
	xs := []float64{bbox[0], bbox[2], bbox[2], bbox[0], (bbox[0] + bbox[2]) / 2, bbox[2], (bbox[0] + bbox[2]) / 2, bbox[0]}
	ys := []float64{bbox[1], bbox[1], bbox[3], bbox[3], bbox[1], (bbox[1] + bbox[3]) / 2, bbox[3], (bbox[1] + bbox[3]) / 2}
	if err := trn.TransformEx(xs, ys, nil, nil); err != nil {
		return bbox, fmt.Errorf("reprojectBbox.TransformEx: %w", err)
	}

	out := [4]float64{xs[0], ys[0], xs[0], ys[0]}
	for i := 1; i < len(xs); i++ {
		out[0] = min(out[0], xs[i])
		out[1] = min(out[1], ys[i])
		out[2] = max(out[2], xs[i])
		out[3] = max(out[3], ys[i])
	}
	return out, nil
}

// intersectExtent returns the intersection of two extents [minx, miny, maxx,
// maxy] and whether it is not empty.
func intersectExtent(a, b [4]float64) ([4]float64, bool) {
	out := [4]float64{max(a[0], b[0]), max(a[1], b[1]), min(a[2], b[2]), min(a[3], b[3])}
	if out[0] >= out[2] || out[1] >= out[3] {
		return [4]float64{}, false
	}
	return out, true
}

// writeCutline writes the buffered geometry of the area as a geojson file
// usable as a warp cutline.
func writeCutline(dir string, area common.AreaOfInterest) (string, error) {
	g, err := geomwkt.DecodeString(area.BufferedWKT)
	if err != nil {
		return "", fmt.Errorf("writeCutline.DecodeString: %w", err)
	}
	data, err := json.Marshal(geojson.Geometry{Geometry: g})
	if err != nil {
		return "", fmt.Errorf("writeCutline.Marshal: %w", err)
	}
	path := filepath.Join(dir, "cutline.geojson")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writeCutline.WriteFile: %w", err)
	}
	return path, nil
}

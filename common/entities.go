package common

import (
	"fmt"
	"time"
)

// AssetURLs references the downloadable documents of a scene.
type AssetURLs struct {
	TCI       string `json:"tci"`
	Metadata  string `json:"metadata"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// SceneRecord is one catalog match. Immutable once fetched.
type SceneRecord struct {
	SceneID      string    `json:"scene_id"`    // STAC item id, e.g. S2B_32UQD_20230607_0_L2A
	Satellite    string    `json:"satellite"`   // S2A or S2B
	Tile         string    `json:"tile"`        // MGRS granule, e.g. 32UQD
	ProductURI   string    `json:"product_uri"` // e.g. S2B_MSIL2A_20230607T102559_N0509_R108_T32UQD_20230607T131415.SAFE
	Date         time.Time `json:"date"`        // acquisition datetime, UTC
	CloudCover   float64   `json:"cloud_cover"`
	EPSG         int       `json:"epsg"` // native CRS of the raster assets
	FootprintWKT string    `json:"wkt"`
	Assets       AssetURLs `json:"assets"`
}

// ProductName returns the product uri without the processing discriminator, to
// identify reprocessings of the same acquisition.
func (s SceneRecord) ProductName() string {
	if len(s.ProductURI) >= 44 {
		return s.ProductURI[0:44]
	}
	return s.ProductURI
}

// Day returns the acquisition calendar date in UTC.
func (s SceneRecord) Day() time.Time {
	y, m, d := s.Date.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SequencedScene is a SceneRecord with its position among the scenes acquired
// the same calendar day for the same area.
type SequencedScene struct {
	SceneRecord
	SeqIndex int `json:"seq_index"`
}

// AreaOfInterest is one unit of work: a buffered search/clip polygon and the
// prefix identifying its outputs. The buffered geometry is derived once by the
// catalog package and not modified afterwards.
type AreaOfInterest struct {
	Prefix       string  `json:"prefix"`
	BufferM      float64 `json:"buffer_m"`
	GeometryWKT  string  `json:"wkt"`          // input geometry, WGS84
	BufferedWKT  string  `json:"buffered_wkt"` // buffered geometry, WGS84
	BufferedBbox [4]float64
}

// SearchWindow is the UTC acquisition date range of a run.
type SearchWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w SearchWindow) Validate() error {
	if w.End.Before(w.Start) {
		return fmt.Errorf("search window: start %s is after end %s", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
	}
	return nil
}

// Datetime formats the window as a STAC datetime interval.
func (w SearchWindow) Datetime() string {
	return w.Start.UTC().Format("2006-01-02") + "T00:00:00Z/" + w.End.UTC().Format("2006-01-02") + "T23:59:59Z"
}

// DownloadedAsset is the transient result of the downloader, consumed by the
// clipper and removed with its scratch directory afterwards.
type DownloadedAsset struct {
	Scene       SequencedScene
	Workdir     string
	RasterPath  string // local path, or the remote url when streaming
	Metadata    []byte
	ContentType string
}

// OutputArtifact is the terminal entity of the pipeline.
type OutputArtifact struct {
	AOIPrefix    string `json:"aoi_prefix"`
	SceneID      string `json:"scene_id"`
	RasterName   string `json:"raster"`
	MetadataName string `json:"metadata"`
}

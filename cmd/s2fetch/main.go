package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/geofetch/s2fetch/catalog"
	"github.com/geofetch/s2fetch/common"
	"github.com/geofetch/s2fetch/downloader"
	"github.com/geofetch/s2fetch/interface/catalog/earthsearch"
	"github.com/geofetch/s2fetch/processor"
	"github.com/geofetch/s2fetch/service"
	"github.com/geofetch/s2fetch/service/log"
	"github.com/geofetch/s2fetch/workflow"
	"go.uber.org/zap"
)

type config struct {
	Prefix      string
	PrefixField string
	AOIFile     string
	Merge       bool
	Extent      string
	BufferM     float64
	Start       string
	End         string

	OutputURI  string
	WorkingDir string

	CatalogURL string
	Collection string
	PageLimit  int
	MaxCloud   float64

	ClipMode string
	Stream   bool
	DryRun   bool

	AOIWorkers int
	DlWorkers  int
	NbRetries  int
}

func newAppConfig() (*config, error) {
	config := config{}

	// Area of interest
	flag.StringVar(&config.Prefix, "prefix", "", "output prefix of the area of interest (letters and digits)")
	flag.StringVar(&config.PrefixField, "prefix-field", "", "attribute of the aoi-file features holding the output prefix")
	flag.StringVar(&config.AOIFile, "aoi-file", "", "geojson featureCollection: one area of interest per feature")
	flag.BoolVar(&config.Merge, "merge", false, "merge all the features of aoi-file into a single area of interest")
	flag.StringVar(&config.Extent, "extent", "", "area of interest as a lon/lat extent: minx,miny,maxx,maxy")
	flag.Float64Var(&config.BufferM, "buffer", 0, "buffer distance around the area of interest (meters)")
	flag.StringVar(&config.Start, "start", "", "start of the acquisition date range")
	flag.StringVar(&config.End, "end", "", "end of the acquisition date range")

	// Output
	flag.StringVar(&config.OutputURI, "output", "", "output uri (currently supported: local directory, gs). The directory must exist.")
	flag.StringVar(&config.WorkingDir, "workdir", os.TempDir(), "working directory to store intermediate results")

	// Catalog
	flag.StringVar(&config.CatalogURL, "catalog-url", earthsearch.EarthSearchURL, "stac search endpoint")
	flag.StringVar(&config.Collection, "collection", earthsearch.CollectionSentinel2L2A, "stac collection")
	flag.IntVar(&config.PageLimit, "page-limit", earthsearch.EarthSearchPageLimit, "stac page size")
	flag.Float64Var(&config.MaxCloud, "max-cloud", -1, "maximum scene cloud cover in percent (negative: no filter)")

	// Processing
	flag.StringVar(&config.ClipMode, "clip-mode", string(processor.ClipExtent), "clip to the 'extent' of the area or 'mask' the pixels outside of it")
	flag.BoolVar(&config.Stream, "stream", false, "clip straight from the remote raster instead of downloading it first")
	flag.BoolVar(&config.DryRun, "dry-run", false, "search and list the artifacts without fetching anything")

	// Concurrency
	flag.IntVar(&config.AOIWorkers, "aoi-workers", 1, "number of areas of interest processed in parallel")
	flag.IntVar(&config.DlWorkers, "dl-workers", 2, "number of scenes fetched in parallel per area")
	flag.IntVar(&config.NbRetries, "retries", 4, "number of retries of a temporary download failure")
	flag.Parse()

	if config.AOIFile == "" && config.Extent == "" {
		return nil, fmt.Errorf("missing aoi-file or extent config flag")
	}
	if config.AOIFile != "" && config.Extent != "" {
		return nil, fmt.Errorf("aoi-file and extent config flags are exclusive")
	}
	if config.Extent != "" && config.Prefix == "" {
		return nil, fmt.Errorf("missing prefix config flag")
	}
	if config.AOIFile != "" && config.Prefix == "" && config.PrefixField == "" {
		return nil, fmt.Errorf("missing prefix or prefix-field config flag")
	}
	if config.Merge && config.AOIFile == "" {
		return nil, fmt.Errorf("merge config flag requires aoi-file")
	}
	if config.Merge && config.PrefixField != "" {
		return nil, fmt.Errorf("merge and prefix-field config flags are exclusive")
	}
	if config.Merge && config.Prefix == "" {
		return nil, fmt.Errorf("missing prefix config flag")
	}
	if config.Start == "" || config.End == "" {
		return nil, fmt.Errorf("missing start/end config flags")
	}
	if config.OutputURI == "" {
		return nil, fmt.Errorf("missing output config flag")
	}
	return &config, nil
}

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig()
	if err != nil {
		return err
	}

	window, err := parseWindow(config.Start, config.End)
	if err != nil {
		return err
	}

	// Areas of interest
	var areas []common.AreaOfInterest
	if config.AOIFile != "" && config.Merge {
		area, err := catalog.AreaFromGeometryFile(config.AOIFile, config.Prefix, config.BufferM)
		if err != nil {
			return err
		}
		areas = []common.AreaOfInterest{area}
	} else if config.AOIFile != "" {
		if areas, err = catalog.AreasFromFeatureFile(config.AOIFile, config.PrefixField, config.Prefix, config.BufferM); err != nil {
			return err
		}
	} else {
		extent, err := parseExtent(config.Extent)
		if err != nil {
			return err
		}
		area, err := catalog.AreaFromExtent(config.Prefix, extent, config.BufferM)
		if err != nil {
			return err
		}
		areas = []common.AreaOfInterest{area}
	}

	// Catalog
	provider := earthsearch.NewProvider()
	provider.URL = config.CatalogURL
	provider.Collection = config.Collection
	provider.Limit = config.PageLimit
	provider.MaxCloudCover = config.MaxCloud
	provider.NbRetries = config.NbRetries

	// Output storage
	store, err := service.NewArtifactStore(ctx, config.OutputURI)
	if err != nil {
		return err
	}

	// Clipper
	clipMode, err := processor.ParseClipMode(config.ClipMode)
	if err != nil {
		return err
	}
	if !config.DryRun {
		processor.Register()
		if config.Stream {
			if err := processor.EnableStreaming(ctx); err != nil {
				return err
			}
		}
	}

	wf := workflow.Workflow{
		Catalog:    &catalog.Catalog{Provider: provider},
		Downloader: &downloader.Downloader{WorkDir: config.WorkingDir, NbRetries: config.NbRetries, StreamRaster: config.Stream},
		Processor:  &processor.Processor{Mode: clipMode},
		Store:      store,
		Config:     workflow.Config{AOIWorkers: config.AOIWorkers, DlWorkers: config.DlWorkers, DryRun: config.DryRun},
	}

	report, err := wf.Run(ctx, window, areas)
	if err != nil {
		return err
	}
	if data, err := json.MarshalIndent(report, "", "  "); err == nil {
		fmt.Println(string(data))
	}
	if report.Failed() {
		return fmt.Errorf("run failed (see report)")
	}
	return nil
}

func parseWindow(start, end string) (common.SearchWindow, error) {
	s, err := dateparse.ParseAny(start)
	if err != nil {
		return common.SearchWindow{}, fmt.Errorf("parseWindow[%s]: %w", start, err)
	}
	e, err := dateparse.ParseAny(end)
	if err != nil {
		return common.SearchWindow{}, fmt.Errorf("parseWindow[%s]: %w", end, err)
	}
	window := common.SearchWindow{Start: s.UTC(), End: e.UTC()}
	return window, window.Validate()
}

func parseExtent(s string) ([4]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return [4]float64{}, fmt.Errorf("parseExtent[%s]: expected minx,miny,maxx,maxy", s)
	}
	var extent [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return [4]float64{}, fmt.Errorf("parseExtent[%s]: %w", s, err)
		}
		extent[i] = v
	}
	return extent, nil
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/geofetch/s2fetch/catalog"
	"github.com/geofetch/s2fetch/common"
	"github.com/geofetch/s2fetch/downloader"
	"github.com/geofetch/s2fetch/service"
	"github.com/geofetch/s2fetch/service/log"
	"golang.org/x/sync/errgroup"
)

// SceneFetcher retrieves the assets of a scene into a scratch directory.
type SceneFetcher interface {
	FetchScene(ctx context.Context, scene common.SequencedScene) (*common.DownloadedAsset, func(), error)
}

// SceneClipper clips the raster of an asset to an area of interest.
type SceneClipper interface {
	ClipScene(ctx context.Context, asset *common.DownloadedAsset, area common.AreaOfInterest, dstPath string) error
}

// Config bounds the concurrency and selects the run mode.
type Config struct {
	// AOIWorkers is the number of areas processed in parallel.
	AOIWorkers int
	// DlWorkers is the number of scenes fetched in parallel within one area.
	DlWorkers int
	// DryRun lists the artifacts that would be written without fetching them.
	DryRun bool
}

// Workflow fetches the scenes of each area of interest and writes the clipped
// artifacts to the store.
type Workflow struct {
	Catalog    *catalog.Catalog
	Downloader SceneFetcher
	Processor  SceneClipper
	Store      service.ArtifactStore
	Config     Config
}

// Run processes all the areas for the search window. Each area is processed
// independently; a failed scene or area is recorded in the report and does not
// stop the others. Run only returns an error when nothing can be written at
// all (e.g. the output directory does not exist).
func (w *Workflow) Run(ctx context.Context, window common.SearchWindow, areas []common.AreaOfInterest) (common.Report, error) {
	if err := w.Store.Validate(ctx); err != nil {
		return common.Report{}, fmt.Errorf("Run.%w", err)
	}

	report := common.Report{AOIs: make([]common.AOIResult, len(areas))}

	wg, wgCtx := errgroup.WithContext(ctx)
	jobChan := make(chan int, len(areas))
	workers := w.Config.AOIWorkers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers && i < len(areas); i++ {
		wg.Go(func() error {
			for job := range jobChan {
				report.AOIs[job] = w.processArea(log.With(wgCtx, "aoi", areas[job].Prefix), window, areas[job])
				if wgCtx.Err() != nil {
					return wgCtx.Err()
				}
			}
			return nil
		})
	}
	for job := range areas {
		jobChan <- job
	}
	close(jobChan)
	if err := wg.Wait(); err != nil {
		return report, fmt.Errorf("Run.%w", err)
	}

	for _, aoi := range report.AOIs {
		log.Logger(ctx).Sugar().Infof("%s: %s %s", aoi.Prefix, aoi.Status, aoi.Message)
	}
	return report, nil
}

// processArea searches, sequences and fetches the scenes of one area.
func (w *Workflow) processArea(ctx context.Context, window common.SearchWindow, area common.AreaOfInterest) common.AOIResult {
	result := common.AOIResult{Prefix: area.Prefix, Status: common.StatusNEW}

	scenes, err := w.Catalog.DoScenesInventory(ctx, area, window)
	if err != nil {
		result.Status = common.StatusFAILED
		result.Message = err.Error()
		return result
	}
	if len(scenes) == 0 {
		log.Logger(ctx).Sugar().Infof("no scene found for %s", area.Prefix)
		result.Status = common.StatusEMPTY
		return result
	}

	result.Scenes = make([]common.SceneResult, len(scenes))

	wg, wgCtx := errgroup.WithContext(ctx)
	jobChan := make(chan int, len(scenes))
	workers := w.Config.DlWorkers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers && i < len(scenes); i++ {
		wg.Go(func() error {
			for job := range jobChan {
				var err error
				result.Scenes[job], err = w.processScene(wgCtx, area, scenes[job])
				// a scene failure is contained, a fatal error aborts the run
				if err != nil && service.Fatal(err) {
					return fmt.Errorf("%s: %w", scenes[job].SceneID, err)
				}
				if wgCtx.Err() != nil {
					return wgCtx.Err()
				}
			}
			return nil
		})
	}
	for job := range scenes {
		jobChan <- job
	}
	close(jobChan)
	if err := wg.Wait(); err != nil {
		result.Status = common.StatusFAILED
		result.Message = err.Error()
		return result
	}

	nFailed := 0
	for _, s := range result.Scenes {
		if s.Status == common.StatusFAILED {
			nFailed++
		}
	}
	if nFailed > 0 {
		result.Status = common.StatusFAILED
		result.Message = fmt.Sprintf("%d/%d scenes failed", nFailed, len(scenes))
	} else {
		result.Status = common.StatusDONE
	}
	return result
}

// processScene fetches, clips and stores one scene. The returned error is
// only used to detect fatal failures; the result records everything else.
func (w *Workflow) processScene(ctx context.Context, area common.AreaOfInterest, scene common.SequencedScene) (common.SceneResult, error) {
	result := common.SceneResult{
		SceneID:  scene.SceneID,
		Raster:   common.RasterName(area.Prefix, scene),
		Metadata: common.MetadataName(area.Prefix, scene),
	}

	if w.Config.DryRun {
		log.Logger(ctx).Sugar().Infof("would write %s and %s", result.Raster, result.Metadata)
		result.Status = common.StatusSKIPPED
		result.Message = "dry-run"
		return result, nil
	}

	asset, cleanup, err := w.Downloader.FetchScene(ctx, scene)
	if err != nil {
		var missing downloader.ErrMissingAsset
		if errors.As(err, &missing) {
			log.Logger(ctx).Sugar().Warnf("skipping %s: %v", scene.SceneID, err)
			result.Status = common.StatusSKIPPED
			result.Message = err.Error()
			return result, nil
		}
		result.Status = common.StatusFAILED
		result.Message = err.Error()
		return result, err
	}
	defer cleanup()

	clippedPath := filepath.Join(asset.Workdir, result.Raster)
	if err := w.Processor.ClipScene(ctx, asset, area, clippedPath); err != nil {
		result.Status = common.StatusFAILED
		result.Message = err.Error()
		return result, err
	}

	if err := w.Store.SaveFile(ctx, result.Raster, clippedPath); err != nil {
		result.Status = common.StatusFAILED
		result.Message = err.Error()
		return result, err
	}
	if err := w.Store.Save(ctx, result.Metadata, asset.Metadata); err != nil {
		result.Status = common.StatusFAILED
		result.Message = err.Error()
		return result, err
	}

	log.Logger(ctx).Sugar().Infof("wrote %s", w.Store.URI(result.Raster))
	result.Status = common.StatusDONE
	return result, nil
}

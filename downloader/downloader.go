package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cavaliercoder/grab"
	"github.com/geofetch/s2fetch/common"
	"github.com/geofetch/s2fetch/service"
	"github.com/geofetch/s2fetch/service/log"
	"github.com/google/uuid"
)

// ErrMissingAsset is returned when the catalog record has no url for a
// required asset. The scene cannot be fetched but the run continues.
type ErrMissingAsset struct {
	SceneID string
	Asset   string
}

func (e ErrMissingAsset) Error() string {
	return fmt.Sprintf("scene %s has no %s asset", e.SceneID, e.Asset)
}

// ErrAssetDownload is returned when an asset could not be retrieved or is not
// usable after the bounded retries.
type ErrAssetDownload struct {
	SceneID string
	Asset   string
	Err     error
}

func (e ErrAssetDownload) Error() string {
	return fmt.Sprintf("download %s of %s: %v", e.Asset, e.SceneID, e.Err)
}

func (e ErrAssetDownload) Unwrap() error { return e.Err }

// Downloader retrieves the raster and metadata assets of a scene into a
// per-scene scratch directory.
type Downloader struct {
	// WorkDir is the parent of the scratch directories.
	WorkDir string
	// NbRetries bounds the retries of a temporary download failure.
	NbRetries int
	// StreamRaster leaves the raster remote (to be read through the gdal
	// virtual filesystem) and only fetches the metadata.
	StreamRaster bool
}

// FetchScene downloads the TCI raster and the granule metadata of the scene
// into a fresh scratch directory. The returned cleanup function removes the
// scratch directory and must be called once the asset is consumed.
func (d *Downloader) FetchScene(ctx context.Context, scene common.SequencedScene) (*common.DownloadedAsset, func(), error) {
	if scene.Assets.TCI == "" {
		return nil, nil, ErrMissingAsset{scene.SceneID, "visual"}
	}
	if scene.Assets.Metadata == "" {
		return nil, nil, ErrMissingAsset{scene.SceneID, "granule_metadata"}
	}

	// Working dir
	workdir := filepath.Join(d.WorkDir, uuid.New().String())
	if err := os.MkdirAll(workdir, 0766); err != nil {
		return nil, nil, service.MakeTemporary(fmt.Errorf("make directory %s: %w", workdir, err))
	}
	cleanup := func() { os.RemoveAll(workdir) }

	rasterPath, contentType := scene.Assets.TCI, ""
	var err error
	if !d.StreamRaster {
		log.Logger(ctx).Sugar().Infof("downloading %s", scene.SceneID)
		rasterPath = filepath.Join(workdir, "TCI.tif")
		if contentType, err = d.downloadRaster(ctx, scene.Assets.TCI, rasterPath, scene.SceneID); err != nil {
			cleanup()
			return nil, nil, ErrAssetDownload{scene.SceneID, "visual", err}
		}
	}

	metadata, err := service.GetBodyRetry(scene.Assets.Metadata, d.NbRetries)
	if err != nil {
		cleanup()
		return nil, nil, ErrAssetDownload{scene.SceneID, "granule_metadata", err}
	}
	if err := checkMetadata(metadata); err != nil {
		cleanup()
		return nil, nil, ErrAssetDownload{scene.SceneID, "granule_metadata", err}
	}

	return &common.DownloadedAsset{
		Scene:       scene,
		Workdir:     workdir,
		RasterPath:  rasterPath,
		Metadata:    metadata,
		ContentType: contentType,
	}, cleanup, nil
}

// downloadRaster fetches a raster url to dst, retrying temporary failures
// with the same backoff as service.GetBodyRetry. It returns the content type
// of the response.
func (d *Downloader) downloadRaster(ctx context.Context, url, dst, displayPrefix string) (string, error) {
	var err error
	for i := 0; i <= d.NbRetries; i++ {
		time.Sleep(((1 << i) - 1) * time.Second)

		var contentType string
		if contentType, err = download(ctx, url, dst, displayPrefix); err == nil {
			return contentType, nil
		}
		if !service.Temporary(err) {
			return "", err
		}
	}
	return "", err
}

// download a file with display every 5%
func download(ctx context.Context, url, dst, displayPrefix string) (string, error) {
	req, err := grab.NewRequest(dst, url)
	if err != nil {
		return "", fmt.Errorf("download.NewRequest: %w", err)
	}
	req = req.WithContext(ctx)

	client := grab.NewClient()
	resp := client.Do(req)

	displayProgress(ctx, displayPrefix, resp, 0.05)

	if err := resp.Err(); err != nil {
		err = fmt.Errorf("download[%s]: %w", url, err)
		if resp.HTTPResponse == nil {
			return "", service.MakeTemporary(err)
		}
		switch resp.HTTPResponse.StatusCode {
		case 408, 429, 500, 501, 502, 503, 504:
			return "", service.MakeTemporary(err)
		default:
			return "", err
		}
	}

	contentType := resp.HTTPResponse.Header.Get("Content-Type")
	if err := checkRaster(dst, contentType); err != nil {
		return "", err
	}
	return contentType, nil
}

func displayProgress(ctx context.Context, prefix string, resp *grab.Response, progressPeriod float64) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	progress, lastBytes, seconds := 0.0, int64(0), int64(0)
	for {
		select {
		case <-t.C:
			seconds++
			if resp.Progress() > progress {
				log.Logger(ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", prefix, 100*resp.Progress(), fmtBytes(resp.BytesComplete()), fmtBytes(resp.Size), fmtBytes((resp.BytesComplete()-lastBytes)/seconds))
				seconds = 0
				progress += progressPeriod
				lastBytes = resp.BytesComplete()
			}

		case <-resp.Done:
			return
		}
	}
}

func fmtBytes(bytes int64) string {
	v := float64(bytes)
	switch {
	case v > 1<<30:
		return fmt.Sprintf("%.2fGo", v/(1<<30))
	case v > 1<<20:
		return fmt.Sprintf("%.2fMo", v/(1<<20))
	case v > 1<<10:
		return fmt.Sprintf("%.2fko", v/(1<<10))
	default:
		return fmt.Sprintf("%.2fo", v)
	}
}

// checkRaster rejects empty payloads and contents that are clearly not a tiff.
func checkRaster(path, contentType string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("checkRaster: %w", err))
	}
	if fi.Size() == 0 {
		return service.MakeTemporary(fmt.Errorf("checkRaster: empty raster"))
	}
	if contentType != "" && !strings.Contains(contentType, "tiff") && !strings.Contains(contentType, "octet-stream") {
		return fmt.Errorf("checkRaster: unexpected content type %s", contentType)
	}
	return nil
}

func checkMetadata(metadata []byte) error {
	body := strings.TrimSpace(string(metadata))
	if body == "" {
		return service.MakeTemporary(fmt.Errorf("checkMetadata: empty metadata"))
	}
	if !strings.HasPrefix(body, "<") {
		return fmt.Errorf("checkMetadata: not an xml document")
	}
	return nil
}

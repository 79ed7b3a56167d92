package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/geofetch/s2fetch/common"
	. "github.com/onsi/ginkgo"
	"github.com/paulsmith/gogeos/geos"
)

// MokeProvider implements catalog.ScenesProvider
type MokeProvider struct {
	scenes []common.SceneRecord
	err    error
}

func (p *MokeProvider) SearchScenes(ctx context.Context, aoi *geos.Geometry, window common.SearchWindow) ([]common.SceneRecord, error) {
	return p.scenes, p.err
}

// MokeFetcher implements workflow.SceneFetcher
type MokeFetcher struct {
	workdir  string
	metadata []byte
	errs     map[string]error
	cleaned  int
	mu       sync.Mutex
}

func (f *MokeFetcher) FetchScene(ctx context.Context, scene common.SequencedScene) (*common.DownloadedAsset, func(), error) {
	if err := f.errs[scene.SceneID]; err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		f.mu.Lock()
		f.cleaned++
		f.mu.Unlock()
	}
	return &common.DownloadedAsset{
		Scene:      scene,
		Workdir:    f.workdir,
		RasterPath: f.workdir + "/TCI.tif",
		Metadata:   f.metadata,
	}, cleanup, nil
}

// MokeClipper implements workflow.SceneClipper
type MokeClipper struct {
	errs map[string]error
}

func (c *MokeClipper) ClipScene(ctx context.Context, asset *common.DownloadedAsset, area common.AreaOfInterest, dstPath string) error {
	return c.errs[asset.Scene.SceneID]
}

// MokeStore implements service.ArtifactStore
type MokeStore struct {
	validateErr error
	objects     map[string]int
	mu          sync.Mutex
}

func (s *MokeStore) Validate(ctx context.Context) error { return s.validateErr }

func (s *MokeStore) SaveFile(ctx context.Context, name, srcPath string) error {
	return s.Save(ctx, name, nil)
}

func (s *MokeStore) Save(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string]int{}
	}
	s.objects[name]++
	return nil
}

func (s *MokeStore) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[name]
	return ok, nil
}

func (s *MokeStore) URI(name string) string { return fmt.Sprintf("moke://%s", name) }

func TestWorkflow(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Workflow Suite")
}

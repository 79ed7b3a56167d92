package catalog

import (
	"context"

	"github.com/geofetch/s2fetch/common"
	"github.com/paulsmith/gogeos/geos"
)

// ScenesProvider is the interface of a spatio-temporal scene catalog
type ScenesProvider interface {
	// SearchScenes returns every scene of the configured collection whose
	// footprint intersects the aoi within the search window, in the order
	// returned by the catalog. An empty result is not an error.
	SearchScenes(ctx context.Context, aoi *geos.Geometry, window common.SearchWindow) ([]common.SceneRecord, error)
}

package catalog

import (
	"context"
	"fmt"

	"github.com/geofetch/s2fetch/common"
	"github.com/geofetch/s2fetch/interface/catalog"
	"github.com/geofetch/s2fetch/service/log"
)

// Catalog resolves areas of interest into an ordered list of scenes to fetch.
type Catalog struct {
	Provider catalog.ScenesProvider
}

// DoScenesInventory lists the scenes covering the area for the given interval
// of time, ready to be fetched: deduplicated, restricted to footprints that
// intersect the buffered area, and sequenced by acquisition day.
func (c *Catalog) DoScenesInventory(ctx context.Context, area common.AreaOfInterest, window common.SearchWindow) ([]common.SequencedScene, error) {
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("DoScenesInventory: %w", err)
	}

	log.Logger(ctx).Sugar().Debugf("Search scenes for %s from %s to %s",
		area.Prefix, window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))
	scenes, err := c.ScenesInventory(ctx, area, window)
	if err != nil {
		return nil, fmt.Errorf("DoScenesInventory.%w", err)
	}

	return SequenceScenes(scenes), nil
}

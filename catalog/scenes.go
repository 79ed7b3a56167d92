package catalog

import (
	"context"
	"fmt"
	"runtime"

	"github.com/geofetch/s2fetch/common"
	"github.com/geofetch/s2fetch/service/log"
	"github.com/paulsmith/gogeos/geos"
)

// ScenesInventory makes an inventory of all the scenes covering the area
// between window.Start and window.End, refined so that each remaining scene
// actually overlaps the buffered area of interest and reprocessed duplicates
// are reduced to their latest product.
func (c *Catalog) ScenesInventory(ctx context.Context, area common.AreaOfInterest, window common.SearchWindow) ([]common.SceneRecord, error) {
	aoi, err := geos.FromWKT(area.BufferedWKT)
	if err != nil {
		return nil, fmt.Errorf("ScenesInventory.FromWKT: %w", err)
	}

	scenes, err := c.Provider.SearchScenes(ctx, aoi, window)
	if err != nil {
		return nil, fmt.Errorf("ScenesInventory.%w", err)
	}

	scenes = removeDoubleEntries(scenes)
	if scenes, err = removeOutsideAOI(scenes, aoi); err != nil {
		return nil, fmt.Errorf("ScenesInventory.%w", err)
	}
	runtime.KeepAlive(aoi)

	log.Logger(ctx).Sugar().Debugf("%d scenes found for %s", len(scenes), area.Prefix)

	return scenes, nil
}

// removeDoubleEntries removes acquisitions that appear twice in the inventory.
// The processing discriminator of a re-processed scene changes while the rest
// of the product name does not. When searching for data, both scenes will be
// found, even though they are the same. This routine checks for such
// appearance and selects the latest product.
// Credit: OpenSarToolkit
func removeDoubleEntries(scenes []common.SceneRecord) []common.SceneRecord {
	identifiers := map[string]int{}

	j := 0
	for _, scene := range scenes {
		name := scene.ProductName()
		if name == "" {
			// No product uri to discriminate on, keep the scene as is.
			scenes[j] = scene
			j++
		} else if k, ok := identifiers[name]; !ok {
			scenes[j] = scene
			identifiers[name] = j
			j++
		} else if scenes[k].ProductURI < scene.ProductURI {
			scenes[k] = scene
		}
	}

	return scenes[0:j]
}

// removeOutsideAOI removes scenes that are located outside the AOI.
// The search routine works over a simplified representation of the AOI.
// This may then include acquisitions that do not overlap with the AOI.
// In this step we sort out the scenes that are completely outside the actual AOI.
// Credit: OpenSarToolkit
func removeOutsideAOI(scenes []common.SceneRecord, aoi *geos.Geometry) ([]common.SceneRecord, error) {
	// Prepare geometry for intersection
	paoi := aoi.Prepare()

	j := 0
	for i, scene := range scenes {
		footprint, err := geos.FromWKT(scene.FootprintWKT)
		if err != nil {
			return nil, fmt.Errorf("removeOutsideAOI.FromWKT: %w", err)
		}
		intersect, err := paoi.Intersects(footprint)
		if err != nil {
			return nil, fmt.Errorf("removeOutsideAOI.Intersects: %w", err)
		}
		if intersect {
			scenes[j] = scenes[i]
			j++
		}
	}
	runtime.KeepAlive(aoi)

	return scenes[0:j], nil
}

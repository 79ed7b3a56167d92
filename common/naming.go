package common

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// ProcessingLevel of the products this tool retrieves.
	ProcessingLevel = "L2A"

	rasterSuffix   = "TCI.tif"
	metadataSuffix = "metadata.xml"
)

var prefixRe = regexp.MustCompile("^[A-Za-z0-9]+$")

// ValidPrefix reports whether the prefix can be used in output file names.
func ValidPrefix(prefix string) bool {
	return prefixRe.MatchString(prefix)
}

// RasterName composes the canonical raster file name:
// PREFIX_SATID_SCENEID_YYYYMMDD_SEQ_L2A_TCI.tif
func RasterName(prefix string, s SequencedScene) string {
	return artifactName(prefix, s, rasterSuffix)
}

// MetadataName composes the metadata sibling of RasterName:
// PREFIX_SATID_SCENEID_YYYYMMDD_SEQ_L2A_metadata.xml
func MetadataName(prefix string, s SequencedScene) string {
	return artifactName(prefix, s, metadataSuffix)
}

func artifactName(prefix string, s SequencedScene, suffix string) string {
	return fmt.Sprintf("%s_%s_%s_%s_%d_%s_%s",
		prefix, s.Satellite, s.Tile, s.Date.UTC().Format("20060102"), s.SeqIndex, ProcessingLevel, suffix)
}

// ParseArtifactName decomposes a file name produced by RasterName or
// MetadataName into its fields: PREFIX, MISSION_ID, TILE, DATE (YEAR/MONTH/DAY),
// SEQ, LEVEL and KIND.
func ParseArtifactName(name string) (map[string]string, error) {
	parts := strings.SplitN(name, "_", 7)
	if len(parts) != 7 {
		return nil, fmt.Errorf("invalid artifact name: %s", name)
	}
	if !ValidPrefix(parts[0]) {
		return nil, fmt.Errorf("invalid artifact prefix: %s", parts[0])
	}
	if _, err := time.Parse("20060102", parts[3]); err != nil {
		return nil, fmt.Errorf("invalid artifact date %s: %w", parts[3], err)
	}
	if _, err := strconv.Atoi(parts[4]); err != nil {
		return nil, fmt.Errorf("invalid artifact sequence %s: %w", parts[4], err)
	}
	return map[string]string{
		"PREFIX":     parts[0],
		"MISSION_ID": parts[1],
		"TILE":       parts[2],
		"DATE":       parts[3],
		"YEAR":       parts[3][0:4],
		"MONTH":      parts[3][4:6],
		"DAY":        parts[3][6:8],
		"SEQ":        parts[4],
		"LEVEL":      parts[5],
		"KIND":       parts[6],
	}, nil
}

// SceneInfo decomposes a STAC item id of the sentinel-2-l2a collection
// (MMM_TTTTT_YYYYMMDD_S_LLL, e.g. S2B_32UQD_20230607_0_L2A).
func SceneInfo(sceneID string) (map[string]string, error) {
	parts := strings.Split(sceneID, "_")
	if len(parts) != 5 {
		return nil, fmt.Errorf("invalid Sentinel2 scene id: " + sceneID)
	}
	if !strings.HasPrefix(parts[0], "S2") {
		return nil, fmt.Errorf("not a Sentinel2 scene id: " + sceneID)
	}
	if len(parts[2]) != len("YYYYMMDD") {
		return nil, fmt.Errorf("invalid date in scene id: " + sceneID)
	}
	return map[string]string{
		"SCENE":      sceneID,
		"MISSION_ID": parts[0],
		"TILE":       parts[1],
		"DATE":       parts[2],
		"YEAR":       parts[2][0:4],
		"MONTH":      parts[2][4:6],
		"DAY":        parts[2][6:8],
		"SEQ":        parts[3],
		"LEVEL":      parts[4],
	}, nil
}

// SatelliteFromID returns the mission id (S2A/S2B) of a scene id or product uri.
func SatelliteFromID(id string) (string, error) {
	if len(id) >= 3 && strings.HasPrefix(id, "S2") {
		return id[0:3], nil
	}
	return "", fmt.Errorf("cannot identify satellite from: %s", id)
}

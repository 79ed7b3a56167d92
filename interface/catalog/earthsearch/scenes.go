package earthsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"

	"github.com/geofetch/s2fetch/common"
	"github.com/geofetch/s2fetch/service"
	"github.com/geofetch/s2fetch/service/geometry"
	"github.com/geofetch/s2fetch/service/log"
)

const (
	EarthSearchURL         = "https://earth-search.aws.element84.com/v1/search"
	CollectionSentinel2L2A = "sentinel-2-l2a"
	EarthSearchPageLimit   = 50

	// maxPages bounds the next-link walk in case the catalog misbehaves
	maxPages = 1000
)

// ErrCatalogUnavailable is returned when the catalog cannot be reached after
// the bounded retries are exhausted. Fatal for the area, recovered at run level.
type ErrCatalogUnavailable struct {
	Err error
}

func (e ErrCatalogUnavailable) Error() string {
	return fmt.Sprintf("catalog unavailable: %v", e.Err)
}

func (e ErrCatalogUnavailable) Unwrap() error { return e.Err }

type Provider struct {
	URL        string
	Collection string
	Limit      int
	// MaxCloudCover filters scenes above this eo:cloud_cover percentage.
	// Negative means no filter.
	MaxCloudCover float64
	// NbRetries bounds the retries of a failed search request (0: single attempt).
	NbRetries int
}

// NewProvider returns a Provider for the public Earth Search v1 catalog.
func NewProvider() *Provider {
	return &Provider{URL: EarthSearchURL, Collection: CollectionSentinel2L2A, Limit: EarthSearchPageLimit, MaxCloudCover: -1, NbRetries: 4}
}

type stacSearch struct {
	Intersects  *geojson.Geometry      `json:"intersects,omitempty"`
	Datetime    string                 `json:"datetime,omitempty"`
	Collections []string               `json:"collections"`
	Query       map[string]interface{} `json:"query,omitempty"`
	Limit       int                    `json:"limit,omitempty"`
	SortBy      []stacSortBy           `json:"sortby,omitempty"`
}

type stacSortBy struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

type SearchData struct {
	Features []Feature `json:"features"`
	Links    []Link    `json:"links"`
	Context  struct {
		Matched  int `json:"matched"`
		Returned int `json:"returned"`
	} `json:"context"`
}

type Link struct {
	Body   map[string]interface{} `json:"body"`
	Href   string                 `json:"href"`
	Method string                 `json:"method"`
	Rel    string                 `json:"rel"`
}

type Feature struct {
	Id          string                 `json:"id"`
	BoundingBox []float64              `json:"bbox"`
	Properties  map[string]interface{} `json:"properties"`
	Geometry    *geojson.Geometry      `json:"geometry"`
	Assets      map[string]Asset       `json:"assets"`
}

type Asset struct {
	Title string `json:"title"`
	Type  string `json:"type"`
	Href  string `json:"href"`
}

// SearchScenes implements catalog.ScenesProvider against Earth Search.
// The provider is shared between workers and is never modified here.
func (s *Provider) SearchScenes(ctx context.Context, aoi *geos.Geometry, window common.SearchWindow) ([]common.SceneRecord, error) {
	searchURL, collection, limit := s.URL, s.Collection, s.Limit
	if searchURL == "" {
		searchURL = EarthSearchURL
	}
	if collection == "" {
		collection = CollectionSentinel2L2A
	}
	if limit == 0 {
		limit = EarthSearchPageLimit
	}

	geomAOI, err := geometry.GeosToGeom(aoi)
	if err != nil {
		return nil, fmt.Errorf("SearchScenes(EarthSearch).%w", err)
	}

	req := stacSearch{
		Intersects:  &geojson.Geometry{Geometry: geomAOI},
		Datetime:    window.Datetime(),
		Collections: []string{collection},
		Limit:       limit,
		SortBy:      []stacSortBy{{Field: "properties.datetime", Direction: "asc"}},
	}
	if s.MaxCloudCover >= 0 {
		req.Query = map[string]interface{}{
			"eo:cloud_cover": map[string]float64{"lte": s.MaxCloudCover},
		}
	}

	features, err := s.query(ctx, searchURL, req)
	if err != nil {
		return nil, fmt.Errorf("SearchScenes(EarthSearch).%w", err)
	}

	scenes := make([]common.SceneRecord, 0, len(features))
	for _, feature := range features {
		scene, err := parseFeature(feature)
		if err != nil {
			return nil, fmt.Errorf("SearchScenes(EarthSearch).%w", err)
		}
		scenes = append(scenes, scene)
	}
	return scenes, nil
}

func parseFeature(feature Feature) (common.SceneRecord, error) {
	properties := feature.Properties

	datetime, ok := properties["datetime"].(string)
	if !ok {
		return common.SceneRecord{}, fmt.Errorf("parseFeature[%s]: missing datetime property", feature.Id)
	}
	date, err := time.Parse(time.RFC3339Nano, datetime)
	if err != nil {
		return common.SceneRecord{}, fmt.Errorf("parseFeature[%s].TimeParse: %w", feature.Id, err)
	}

	satellite, err := common.SatelliteFromID(feature.Id)
	if err != nil {
		return common.SceneRecord{}, fmt.Errorf("parseFeature.%w", err)
	}

	var tile string
	if info, err := common.SceneInfo(feature.Id); err == nil {
		tile = info["TILE"]
	} else if code, ok := properties["grid:code"].(string); ok {
		tile = strings.TrimPrefix(code, "MGRS-")
	} else {
		return common.SceneRecord{}, fmt.Errorf("parseFeature[%s]: cannot identify granule: %w", feature.Id, err)
	}

	scene := common.SceneRecord{
		SceneID:   feature.Id,
		Satellite: satellite,
		Tile:      tile,
		Date:      date.UTC(),
		Assets: common.AssetURLs{
			TCI:       feature.Assets["visual"].Href,
			Metadata:  feature.Assets["granule_metadata"].Href,
			Thumbnail: feature.Assets["thumbnail"].Href,
		},
	}
	if uri, ok := properties["s2:product_uri"].(string); ok {
		scene.ProductURI = uri
	}
	if cc, ok := properties["eo:cloud_cover"].(float64); ok {
		scene.CloudCover = cc
	}
	if epsg, ok := properties["proj:epsg"].(float64); ok {
		scene.EPSG = int(epsg)
	}
	if feature.Geometry != nil && feature.Geometry.Geometry != nil {
		scene.FootprintWKT = wkt.MustEncode(feature.Geometry.Geometry)
	}
	return scene, nil
}

func (s *Provider) query(ctx context.Context, url string, searchReq stacSearch) ([]Feature, error) {
	reqBody := &bytes.Buffer{}
	if err := json.NewEncoder(reqBody).Encode(searchReq); err != nil {
		return nil, fmt.Errorf("query.Encode: %w", err)
	}
	httpMethod := "POST"

	var features []Feature
	for page := 0; page < maxPages; page++ {
		log.Logger(ctx).Sugar().Debugf("[EarthSearch] search page %d", page+1)

		req, err := http.NewRequestWithContext(ctx, httpMethod, url, reqBody)
		if err != nil {
			return nil, fmt.Errorf("query.NewRequest: %w", err)
		}
		req.Header.Add("Content-Type", "application/json")

		respBody, err := service.GetBodyRetryReq(req, s.NbRetries)
		if err != nil {
			return nil, ErrCatalogUnavailable{fmt.Errorf("query: %w", err)}
		}

		search := &SearchData{}
		if err := json.Unmarshal(respBody, search); err != nil {
			return nil, fmt.Errorf("query.Unmarshal: %w (response: %s)", err, respBody)
		}

		features = append(features, search.Features...)

		nextFound := false
		for _, link := range search.Links {
			if link.Rel != "next" {
				continue
			}
			url = link.Href
			if link.Method != "" {
				httpMethod = link.Method
			}
			reqBody = &bytes.Buffer{}
			if link.Body != nil {
				if err := json.NewEncoder(reqBody).Encode(link.Body); err != nil {
					return nil, fmt.Errorf("query.EncodeNext: %w", err)
				}
			}
			nextFound = true
		}
		if !nextFound || len(search.Features) == 0 {
			break
		}
	}

	return features, nil
}

package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	geojson "github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/reliefscope/needscan/internal/apperr"
)

// Resolver obtains boundary feature collections: from a local file, or from
// the remote boundary service through the injected cache. The cache is owned
// by the caller; Resolver never constructs one.
type Resolver struct {
	cache   *Cache
	client  *Client
	baseURL string
}

// NewResolver creates a Resolver with its cache and client dependencies.
func NewResolver(cache *Cache, client *Client, baseURL string) *Resolver {
	return &Resolver{
		cache:   cache,
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Resolved is a boundary feature collection plus where it came from.
type Resolved struct {
	Collection *geojson.FeatureCollection
	FromCache  bool
	Stale      bool // true when a fetch failed and the cached copy was used
}

// ResolveLocal parses a user-supplied boundary file. GeoJSON and ESRI
// shapefiles are supported, chosen by extension.
func (r *Resolver) ResolveLocal(path string) (*Resolved, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "boundary file not found: %s", path)
	}

	var (
		fc  *geojson.FeatureCollection
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		fc, err = LoadShapefile(path)
	default:
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindNotFound, err, "read boundary file: %s", path)
		}
		fc, err = ParseGeoJSON(data, path)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("boundary: loaded local file",
		zap.String("path", path),
		zap.Int("features", len(fc.Features)),
	)
	return &Resolved{Collection: fc}, nil
}

// ResolveRemote returns the feature collection for (iso3, adminLevel). A
// cache hit short-circuits without network activity, which is what makes
// fully offline runs possible after the first fetch. forceRefresh bypasses
// the cache read but still degrades to the cached copy, with a warning, if
// the fetch fails.
func (r *Resolver) ResolveRemote(ctx context.Context, iso3, adminLevel string, forceRefresh bool) (*Resolved, error) {
	if !forceRefresh {
		entry, err := r.cache.Get(ctx, iso3, adminLevel)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			fc, err := ParseGeoJSON(entry.Payload, cacheKey(iso3, adminLevel))
			if err != nil {
				// Corrupt entry: refetch rather than fail.
				zap.L().Warn("boundary: corrupt cache entry, refetching",
					zap.String("iso3", iso3), zap.String("admin_level", adminLevel))
			} else {
				zap.L().Info("boundary: cache hit",
					zap.String("iso3", iso3), zap.String("admin_level", adminLevel))
				return &Resolved{Collection: fc, FromCache: true}, nil
			}
		}
	}

	fc, payload, sourceURL, fetchErr := r.fetch(ctx, iso3, adminLevel)
	if fetchErr != nil {
		// Degrade to a stale entry when one exists.
		entry, cacheErr := r.cache.Get(ctx, iso3, adminLevel)
		if cacheErr == nil && entry != nil {
			if cached, parseErr := ParseGeoJSON(entry.Payload, cacheKey(iso3, adminLevel)); parseErr == nil {
				zap.L().Warn("boundary: fetch failed, using stale cache entry",
					zap.String("iso3", iso3),
					zap.String("admin_level", adminLevel),
					zap.Time("fetched_at", entry.FetchedAt),
					zap.Error(fetchErr),
				)
				return &Resolved{Collection: cached, FromCache: true, Stale: true}, nil
			}
		}
		return nil, apperr.Wrap(apperr.KindNetwork, fetchErr,
			"boundary fetch failed for %s with no usable cache fallback", cacheKey(iso3, adminLevel))
	}

	if err := r.cache.Put(ctx, &CacheEntry{
		ISO3:       iso3,
		AdminLevel: adminLevel,
		SourceURL:  sourceURL,
		Payload:    payload,
		FetchedAt:  time.Now().UTC(),
	}); err != nil {
		// A write failure degrades the next run to a refetch, nothing more.
		zap.L().Warn("boundary: could not cache entry",
			zap.String("iso3", iso3), zap.String("admin_level", adminLevel), zap.Error(err))
	}

	zap.L().Info("boundary: fetched and cached",
		zap.String("iso3", iso3),
		zap.String("admin_level", adminLevel),
		zap.Int("features", len(fc.Features)),
	)
	return &Resolved{Collection: fc}, nil
}

// boundaryMeta is the metadata document the boundary service returns before
// the GeoJSON download itself.
type boundaryMeta struct {
	GJDownloadURL       string `json:"gjDownloadURL"`
	GJDownloadURLZipped string `json:"gjDownloadURLzipped"`
}

// fetch performs the two-step remote retrieval: metadata, then GeoJSON.
func (r *Resolver) fetch(ctx context.Context, iso3, adminLevel string) (*geojson.FeatureCollection, []byte, string, error) {
	metaURL := fmt.Sprintf("%s/api/current/gbOpen/%s/%s", r.baseURL, iso3, adminLevel)
	zap.L().Info("boundary: fetching metadata", zap.String("url", metaURL))

	metaBody, err := r.client.Get(ctx, metaURL)
	if err != nil {
		return nil, nil, "", err
	}

	meta, err := parseMeta(metaBody)
	if err != nil {
		return nil, nil, "", err
	}

	downloadURL := meta.GJDownloadURL
	if downloadURL == "" {
		downloadURL = meta.GJDownloadURLZipped
	}
	if downloadURL == "" {
		return nil, nil, "", fmt.Errorf("boundary service returned no GeoJSON URL for %s", cacheKey(iso3, adminLevel))
	}

	zap.L().Info("boundary: downloading GeoJSON", zap.String("url", downloadURL))
	payload, err := r.client.Get(ctx, downloadURL)
	if err != nil {
		return nil, nil, "", err
	}

	fc, err := ParseGeoJSON(payload, downloadURL)
	if err != nil {
		return nil, nil, "", err
	}
	return fc, payload, downloadURL, nil
}

// parseMeta tolerates both the object and single-element-array shapes the
// service has returned over time.
func parseMeta(body []byte) (*boundaryMeta, error) {
	var meta boundaryMeta
	if err := json.Unmarshal(body, &meta); err == nil && (meta.GJDownloadURL != "" || meta.GJDownloadURLZipped != "") {
		return &meta, nil
	}
	var list []boundaryMeta
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		return &list[0], nil
	}
	return nil, fmt.Errorf("unrecognized boundary metadata response")
}

func cacheKey(iso3, adminLevel string) string {
	return iso3 + "/" + adminLevel
}

// Package boundary resolves administrative boundary feature collections from
// a remote boundary service, a persistent on-disk cache, or a user-supplied
// local file.
package boundary

import (
	"encoding/json"
	"fmt"

	geojson "github.com/twpayne/go-geom/encoding/geojson"

	"github.com/reliefscope/needscan/internal/apperr"
)

// nameCandidates are the boundary property keys tried, in priority order,
// when extracting a feature's comparison name. Different boundary providers
// disagree on the key; the first non-empty value wins.
var nameCandidates = []string{
	"name",
	"shapeName",
	"NAME_1",
	"adm1_name",
	"Name",
	"admin",
	"NAME_2",
}

// ParseGeoJSON decodes a GeoJSON feature collection.
func ParseGeoJSON(data []byte, source string) (*geojson.FeatureCollection, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, err, "invalid boundary feature collection: %s", source)
	}
	if len(fc.Features) == 0 {
		return nil, apperr.New(apperr.KindFormat, "boundary feature collection has no features: %s", source)
	}
	return &fc, nil
}

// FeatureName returns the feature's display name: the first non-empty value
// among the known name property keys, or "" when none is present.
func FeatureName(f *geojson.Feature) string {
	if f == nil || f.Properties == nil {
		return ""
	}
	for _, key := range nameCandidates {
		if v, ok := f.Properties[key]; ok {
			if s := propertyString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// FeatureNames returns the comparison name of every feature in original
// collection order, preserving order so downstream tie-breaks stay stable.
func FeatureNames(fc *geojson.FeatureCollection) []string {
	names := make([]string, len(fc.Features))
	for i, f := range fc.Features {
		names[i] = FeatureName(f)
	}
	return names
}

func propertyString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case float64:
		return fmt.Sprintf("%g", s)
	default:
		return ""
	}
}

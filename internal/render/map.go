package render

import (
	"encoding/json"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	geojson "github.com/twpayne/go-geom/encoding/geojson"

	"github.com/reliefscope/needscan/internal/classify"
	"github.com/reliefscope/needscan/internal/pipeline"
)

// mapPage is the template context for the HTML map.
type mapPage struct {
	Title    string
	RunID    string
	Stale    bool
	GeoJSON  template.JS
	Legend   []legendEntry
	Matched  int
	Total    int
	Unlinked int
}

type legendEntry struct {
	Level string
	Color string
}

// WriteMap writes a self-contained choropleth page: boundary polygons filled
// by need level, with score tooltips. Boundary features that matched no
// dataset unit are drawn in neutral gray so coverage gaps stay visible.
func WriteMap(w io.Writer, result *pipeline.Result, title string) error {
	if result.Boundaries == nil {
		return eris.New("render: result has no boundary collection")
	}

	payload, matched, unlinked, err := exportCollection(result)
	if err != nil {
		return err
	}

	page := mapPage{
		Title:   title,
		RunID:   result.RunID,
		Stale:   result.Stale,
		GeoJSON: template.JS(payload), //nolint:gosec // payload is json.Marshal output
		Legend: []legendEntry{
			{classify.LevelHigh, classify.LevelColor(classify.LevelHigh)},
			{classify.LevelMedium, classify.LevelColor(classify.LevelMedium)},
			{classify.LevelLow, classify.LevelColor(classify.LevelLow)},
			{classify.LevelLowest, classify.LevelColor(classify.LevelLowest)},
			{"no data", classify.LevelColor("")},
		},
		Matched:  matched,
		Total:    len(result.Records),
		Unlinked: unlinked,
	}
	return eris.Wrap(mapTemplate.Execute(w, page), "render: execute map template")
}

// WriteMapFile writes the map page to path, creating parent directories.
func WriteMapFile(path string, result *pipeline.Result, title string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "render: create output dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if err := WriteMap(f, result, title); err != nil {
		return err
	}
	return eris.Wrapf(f.Close(), "render: close %s", path)
}

// exportCollection rebuilds the boundary collection with display properties
// attached: unit name, score, level, and fill color.
func exportCollection(result *pipeline.Result) ([]byte, int, int, error) {
	recordByFeature := make(map[int]int)
	if result.Harmonized != nil {
		for _, m := range result.Harmonized.Matches {
			if m.FeatureIndex < 0 {
				continue
			}
			for i, r := range result.Records {
				if r.Name == m.RecordName {
					recordByFeature[m.FeatureIndex] = i
					break
				}
			}
		}
	}

	features := make([]*geojson.Feature, 0, len(result.Boundaries.Features))
	unlinked := 0
	for i, f := range result.Boundaries.Features {
		props := map[string]any{}
		for k, v := range f.Properties {
			props[k] = v
		}

		if idx, ok := recordByFeature[i]; ok {
			r := result.Records[idx]
			props["unit_name"] = r.Name
			props["need_score_norm"] = r.ScoreNorm
			props["need_rank"] = r.NeedRank
			props["need_level"] = r.Level
			props["fill_color"] = classify.LevelColor(r.Level)
		} else {
			props["need_level"] = ""
			props["fill_color"] = classify.LevelColor("")
			unlinked++
		}

		features = append(features, &geojson.Feature{
			ID:         f.ID,
			Geometry:   f.Geometry,
			Properties: props,
		})
	}

	payload, err := json.Marshal(&geojson.FeatureCollection{Features: features})
	if err != nil {
		return nil, 0, 0, eris.Wrap(err, "render: marshal export collection")
	}
	return payload, len(recordByFeature), unlinked, nil
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
  html, body { height: 100%; margin: 0; font-family: system-ui, sans-serif; }
  #map { height: 100%; }
  .legend {
    background: white; padding: 8px 12px; border-radius: 4px;
    box-shadow: 0 1px 4px rgba(0,0,0,0.3); line-height: 1.6;
  }
  .legend .swatch {
    display: inline-block; width: 14px; height: 14px;
    margin-right: 6px; vertical-align: middle; border: 1px solid #999;
  }
  .meta {
    background: white; padding: 6px 10px; border-radius: 4px;
    box-shadow: 0 1px 4px rgba(0,0,0,0.3); font-size: 12px; color: #444;
  }
</style>
</head>
<body>
<div id="map"></div>
<script>
var collection = {{.GeoJSON}};

var map = L.map('map');
L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);

var layer = L.geoJSON(collection, {
  style: function (feature) {
    return {
      fillColor: feature.properties.fill_color,
      fillOpacity: 0.65,
      color: '#555',
      weight: 1
    };
  },
  onEachFeature: function (feature, lyr) {
    var p = feature.properties;
    if (p.need_level) {
      lyr.bindTooltip(
        '<strong>' + p.unit_name + '</strong><br>' +
        'level: ' + p.need_level + '<br>' +
        'score: ' + p.need_score_norm.toFixed(3) + '<br>' +
        'rank: ' + (p.need_rank + 1)
      );
    } else {
      lyr.bindTooltip('no dataset match');
    }
  }
}).addTo(map);

if (layer.getBounds().isValid()) {
  map.fitBounds(layer.getBounds(), { padding: [20, 20] });
} else {
  map.setView([0, 0], 2);
}

var legend = L.control({ position: 'bottomright' });
legend.onAdd = function () {
  var div = L.DomUtil.create('div', 'legend');
  div.innerHTML = '{{range .Legend}}<div><span class="swatch" style="background:{{.Color}}"></span>{{.Level}}</div>{{end}}';
  return div;
};
legend.addTo(map);

var meta = L.control({ position: 'topright' });
meta.onAdd = function () {
  var div = L.DomUtil.create('div', 'meta');
  div.innerHTML = 'run {{.RunID}} &middot; {{.Matched}}/{{.Total}} units matched{{if .Stale}} &middot; stale boundaries{{end}}';
  return div;
};
meta.addTo(map);
</script>
</body>
</html>
`))

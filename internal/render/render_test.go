package render

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	geojson "github.com/twpayne/go-geom/encoding/geojson"

	"github.com/reliefscope/needscan/internal/classify"
	"github.com/reliefscope/needscan/internal/harmonize"
	"github.com/reliefscope/needscan/internal/pipeline"
	"github.com/reliefscope/needscan/internal/scorer"
)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		RunID: "test-run",
		Records: []scorer.ScoredRecord{
			{Name: "Kabul", Score: 1.2, ScoreNorm: 1.0, Cluster: 0, ClusterRank: 0, NeedRank: 0, Level: classify.LevelHigh},
			{Name: "Herat", Score: -0.3, ScoreNorm: 0.4, Cluster: 1, ClusterRank: 1, NeedRank: 1, Level: classify.LevelMedium},
			{Name: "Balkh", Score: -0.9, ScoreNorm: 0.0, Cluster: 1, ClusterRank: 1, NeedRank: 2, Level: classify.LevelLowest},
		},
		Harmonized: &harmonize.Result{
			Matches: []harmonize.MatchResult{
				{RecordName: "Kabul", BoundaryName: "Kabul", FeatureIndex: 0, Confidence: 1, Strategy: harmonize.StrategyExact},
				{RecordName: "Herat", BoundaryName: "Herat", FeatureIndex: 1, Confidence: 1, Strategy: harmonize.StrategyExact},
				{RecordName: "Balkh", FeatureIndex: -1, Strategy: harmonize.StrategyUnmatched},
			},
			MatchRate: 2.0 / 3.0,
		},
		Boundaries: &geojson.FeatureCollection{
			Features: []*geojson.Feature{
				{
					Geometry:   geom.NewPointFlat(geom.XY, []float64{69.2, 34.5}),
					Properties: map[string]any{"shapeName": "Kabul"},
				},
				{
					Geometry:   geom.NewPointFlat(geom.XY, []float64{62.2, 34.3}),
					Properties: map[string]any{"shapeName": "Herat"},
				},
				{
					Geometry:   geom.NewPointFlat(geom.XY, []float64{66.9, 36.7}),
					Properties: map[string]any{"shapeName": "Kandahar"},
				},
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus one row per unit")

	assert.Equal(t, []string{
		"geo_unit", "need_score", "need_score_norm", "need_rank",
		"cluster", "cluster_rank", "need_level", "matched_boundary", "match_strategy",
	}, rows[0])

	// Need-rank order: highest need first.
	assert.Equal(t, "Kabul", rows[1][0])
	assert.Equal(t, "Herat", rows[2][0])
	assert.Equal(t, "Balkh", rows[3][0])

	assert.Equal(t, "high", rows[1][6])
	assert.Equal(t, "exact", rows[1][8])
	assert.Equal(t, "", rows[3][7], "unmatched unit has no boundary name")
	assert.Equal(t, "unmatched", rows[3][8])
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ranking.csv")
	require.NoError(t, WriteCSVFile(path, sampleResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "geo_unit")
	assert.Contains(t, string(data), "Kabul")
}

func TestWriteMap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMap(&buf, sampleResult(), "Afghanistan needs"))
	page := buf.String()

	assert.Contains(t, page, "<title>Afghanistan needs</title>")
	assert.Contains(t, page, "leaflet")
	assert.Contains(t, page, "test-run")

	// Matched features carry their level color, unmatched ones the gray.
	assert.Contains(t, page, classify.LevelColor(classify.LevelHigh))
	assert.Contains(t, page, classify.LevelColor(""))

	// Kandahar matched nothing in the dataset and renders as a gap.
	assert.Contains(t, page, "2/3 units matched")
}

func TestWriteMapWithoutBoundaries(t *testing.T) {
	result := sampleResult()
	result.Boundaries = nil

	var buf bytes.Buffer
	err := WriteMap(&buf, result, "title")
	require.Error(t, err)
}

func TestWriteMapEscapesTitle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMap(&buf, sampleResult(), `<script>alert("x")</script>`))
	assert.NotContains(t, buf.String(), `<script>alert("x")</script>`)
}

func TestWriteMapFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "map.html")
	require.NoError(t, WriteMapFile(path, sampleResult(), "title"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<!DOCTYPE html>"))
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefscope/needscan/internal/apperr"
	"github.com/reliefscope/needscan/internal/boundary"
	"github.com/reliefscope/needscan/internal/classify"
	"github.com/reliefscope/needscan/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Boundary:  config.BoundaryConfig{TimeoutSecs: 5, MaxRetries: 1, RateLimit: 100},
		Harmonize: config.HarmonizeConfig{SimilarityThreshold: 0.84, MatchRateWarn: 0.70},
		Scorer:    config.ScorerConfig{Seed: 42, SmallBreakpoint: 15, MediumBreakpoint: 40, MaxIterations: 100},
	}
}

func newTestPipeline(t *testing.T, baseURL string) *Pipeline {
	t.Helper()
	cfg := testConfig()
	cache, err := boundary.OpenCache(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cache.Migrate(context.Background()))
	t.Cleanup(func() { cache.Close() })

	resolver := boundary.NewResolver(cache, boundary.NewClient(cfg.Boundary), baseURL)
	return New(cfg, resolver)
}

func writeDataset(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indicators.csv")
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o644))
	return path
}

func writeBoundaries(t *testing.T, names ...string) string {
	t.Helper()
	features := make([]map[string]any, len(names))
	for i, name := range names {
		features[i] = map[string]any{
			"type":       "Feature",
			"properties": map[string]any{"shapeName": name},
			"geometry": map[string]any{
				"type":        "Point",
				"coordinates": []float64{float64(i), 0.0},
			},
		}
	}
	payload, err := json.Marshal(map[string]any{
		"type":     "FeatureCollection",
		"features": features,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "boundaries.geojson")
	require.NoError(t, os.WriteFile(path, payload, 0o644))
	return path
}

const sampleCSV = `province,poverty_rate,stunting,access_gap
Kabul_1,0.9,0.8,0.7
Kabul_2,0.5,0.6,0.5
Herat,0.3,0.4,0.2
Kandahar,0.8,0.9,0.9
Balkh,0.2,0.1,0.3
Bamyan,0.6,0.5,0.6
`

func TestRunWithLocalBoundary(t *testing.T) {
	p := newTestPipeline(t, "http://127.0.0.1:1")

	result, err := p.Run(context.Background(), Options{
		DatasetPath:  writeDataset(t, sampleCSV),
		BoundaryPath: writeBoundaries(t, "Kabul", "Herat", "Kandahar", "Balkh", "Bamyan"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Records, 5, "duplicate suffixed rows aggregate to one unit")

	// Kabul_1 and Kabul_2 collapse into a single Kabul record.
	names := make(map[string]bool)
	for _, r := range result.Records {
		names[r.Name] = true
	}
	assert.True(t, names["Kabul"])
	assert.False(t, names["Kabul_1"])

	for _, r := range result.Records {
		assert.GreaterOrEqual(t, r.ScoreNorm, 0.0)
		assert.LessOrEqual(t, r.ScoreNorm, 1.0)
		assert.Contains(t, []string{
			classify.LevelHigh, classify.LevelMedium, classify.LevelLow, classify.LevelLowest,
		}, r.Level)
	}

	require.NotNil(t, result.Harmonized)
	assert.Equal(t, 1.0, result.Harmonized.MatchRate)
	assert.Empty(t, result.ISO3, "local boundary runs carry no country")
}

func TestRunSmallSampleScenario(t *testing.T) {
	p := newTestPipeline(t, "http://127.0.0.1:1")

	result, err := p.Run(context.Background(), Options{
		DatasetPath: writeDataset(t, `province,h
Kabul_1,0.8
Kabul_2,0.6
Kandahar,0.3
`),
		BoundaryPath: writeBoundaries(t, "Kabul", "Kandahar"),
	})
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	byName := make(map[string]int, 2)
	for i, r := range result.Records {
		byName[r.Name] = i
	}
	kabul := result.Records[byName["Kabul"]]
	kandahar := result.Records[byName["Kandahar"]]

	assert.InDelta(t, 0.7, kabul.Values[0], 1e-9, "Kabul_1 and Kabul_2 average to 0.7")
	assert.Greater(t, kabul.Score, kandahar.Score)
	assert.Equal(t, 0, kabul.NeedRank)

	// Two units degrade to a single cluster with a small-sample diagnostic.
	assert.Equal(t, kabul.Cluster, kandahar.Cluster)
	assert.NotEmpty(t, result.Warnings)
	assert.Equal(t, 1.0, result.Harmonized.MatchRate)
}

func TestRunIsDeterministic(t *testing.T) {
	p := newTestPipeline(t, "http://127.0.0.1:1")
	datasetPath := writeDataset(t, sampleCSV)
	boundaryPath := writeBoundaries(t, "Kabul", "Herat", "Kandahar", "Balkh", "Bamyan")

	opts := Options{DatasetPath: datasetPath, BoundaryPath: boundaryPath}
	first, err := p.Run(context.Background(), opts)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Harmonized, second.Harmonized)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunWithRemoteBoundary(t *testing.T) {
	payload, err := os.ReadFile(writeBoundaries(t, "Kabul", "Herat", "Kandahar", "Balkh", "Bamyan"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/api/current/gbOpen/AFG/ADM1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"gjDownloadURL":"%s/download/afg.geojson"}`, srv.URL)
	})
	mux.HandleFunc("/download/afg.geojson", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(payload)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := newTestPipeline(t, srv.URL)
	result, err := p.Run(context.Background(), Options{
		DatasetPath: writeDataset(t, sampleCSV),
		CountryName: "Afghanistan",
	})
	require.NoError(t, err)

	assert.Equal(t, "AFG", result.ISO3)
	assert.Equal(t, "ADM1", result.AdminLevel)
	assert.False(t, result.FromCache)

	// Second run hits the cache.
	again, err := p.Run(context.Background(), Options{
		DatasetPath: writeDataset(t, sampleCSV),
		CountryName: "Afghanistan",
	})
	require.NoError(t, err)
	assert.True(t, again.FromCache)
}

func TestRunFixedThresholds(t *testing.T) {
	p := newTestPipeline(t, "http://127.0.0.1:1")

	fixed := &classify.Thresholds{T1: 2, T2: 2, T3: 2}
	result, err := p.Run(context.Background(), Options{
		DatasetPath:     writeDataset(t, sampleCSV),
		BoundaryPath:    writeBoundaries(t, "Kabul", "Herat", "Kandahar", "Balkh", "Bamyan"),
		FixedThresholds: fixed,
	})
	require.NoError(t, err)

	// All normalized scores sit below 2, so every unit is lowest.
	for _, r := range result.Records {
		assert.Equal(t, classify.LevelLowest, r.Level)
	}
	assert.Equal(t, *fixed, result.Thresholds)
}

func TestRunValidation(t *testing.T) {
	p := newTestPipeline(t, "http://127.0.0.1:1")
	ctx := context.Background()
	datasetPath := writeDataset(t, sampleCSV)

	tests := []struct {
		name string
		opts Options
	}{
		{"missing dataset path", Options{CountryName: "Afghanistan"}},
		{"no boundary source", Options{DatasetPath: datasetPath}},
		{"both boundary sources", Options{DatasetPath: datasetPath, CountryName: "Afghanistan", BoundaryPath: "x.geojson"}},
		{"admin level with local file", Options{DatasetPath: datasetPath, BoundaryPath: "x.geojson", AdminLevel: "ADM2"}},
		{"unordered thresholds", Options{
			DatasetPath:     datasetPath,
			CountryName:     "Afghanistan",
			FixedThresholds: &classify.Thresholds{T1: 3, T2: 2, T3: 1},
		}},
		{"unknown country", Options{DatasetPath: datasetPath, CountryName: "Atlantis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Run(ctx, tt.opts)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindConfiguration), "want configuration error, got: %v", err)
		})
	}
}

func TestRunMissingDatasetFile(t *testing.T) {
	p := newTestPipeline(t, "http://127.0.0.1:1")

	_, err := p.Run(context.Background(), Options{
		DatasetPath: filepath.Join(t.TempDir(), "nope.csv"),
		CountryName: "Afghanistan",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefscope/needscan/internal/apperr"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, "province,hunger\nKabul,0.8\nKandahar,0.3\n")

	table, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"province", "hunger"}, table.Header)
	assert.Len(t, table.Rows, 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), LoadOptions{})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestLoadEmptyDataset(t *testing.T) {
	path := writeCSV(t, "province,hunger\n")
	_, err := Load(path, LoadOptions{})
	assert.True(t, apperr.IsKind(err, apperr.KindData))
}

func TestInferSchema(t *testing.T) {
	tests := []struct {
		name       string
		header     []string
		rows       [][]string
		adminCol   string
		wantAdmin  string
		wantInd    []string
		wantErrKind apperr.Kind
	}{
		{
			name:      "detects province token",
			header:    []string{"Province", "hunger", "water"},
			rows:      [][]string{{"Kabul", "0.8", "0.5"}},
			wantAdmin: "Province",
			wantInd:   []string{"hunger", "water"},
		},
		{
			name:      "explicit admin column wins",
			header:    []string{"zone", "hunger"},
			rows:      [][]string{{"Kabul", "0.8"}},
			adminCol:  "zone",
			wantAdmin: "zone",
			wantInd:   []string{"hunger"},
		},
		{
			name:        "explicit admin column absent",
			header:      []string{"province", "hunger"},
			rows:        [][]string{{"Kabul", "0.8"}},
			adminCol:    "zone",
			wantErrKind: apperr.KindConfiguration,
		},
		{
			name:        "no admin candidate",
			header:      []string{"zone", "hunger"},
			rows:        [][]string{{"Kabul", "0.8"}},
			wantErrKind: apperr.KindConfiguration,
		},
		{
			name:        "no numeric indicators",
			header:      []string{"province", "notes"},
			rows:        [][]string{{"Kabul", "bad"}},
			wantErrKind: apperr.KindData,
		},
		{
			name:      "non-numeric column excluded",
			header:    []string{"province", "notes", "hunger"},
			rows:      [][]string{{"Kabul", "dry", "0.8"}},
			wantAdmin: "province",
			wantInd:   []string{"hunger"},
		},
		{
			name:      "entirely-missing column dropped",
			header:    []string{"province", "empty", "hunger"},
			rows:      [][]string{{"Kabul", "", "0.8"}, {"Herat", "n/a", "0.2"}},
			wantAdmin: "province",
			wantInd:   []string{"hunger"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := &Table{Header: tt.header, Rows: tt.rows}
			schema, err := InferSchema(table, tt.adminCol)
			if tt.wantErrKind != 0 {
				assert.True(t, apperr.IsKind(err, tt.wantErrKind), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdmin, schema.AdminColumn)
			assert.Equal(t, tt.wantInd, schema.Indicators)
		})
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Kabul_1", "Kabul"},
		{"Kabul-2", "Kabul"},
		{"Kabul", "Kabul"},
		{"  Nangarhar   East ", "Nangarhar East"},
		{"Camp_12", "Camp"},
		{"Zone3", "Zone3"}, // no separator, not a unit suffix
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BaseName(tt.in), tt.in)
	}
}

func TestAggregateAveragesSuffixedUnits(t *testing.T) {
	table := &Table{
		Header: []string{"province", "h"},
		Rows: [][]string{
			{"Kabul_1", "0.8"},
			{"Kabul_2", "0.6"},
			{"Kandahar", "0.3"},
		},
	}
	schema, err := InferSchema(table, "")
	require.NoError(t, err)

	records := Aggregate(table, schema)
	require.Len(t, records, 2)
	assert.Equal(t, "Kabul", records[0].Name)
	assert.InDelta(t, 0.7, records[0].Values[0], 1e-12)
	assert.Equal(t, "Kandahar", records[1].Name)
	assert.InDelta(t, 0.3, records[1].Values[0], 1e-12)
}

func TestAggregateIdempotent(t *testing.T) {
	table := &Table{
		Header: []string{"province", "h", "w"},
		Rows: [][]string{
			{"Kabul_1", "0.8", "1"},
			{"Kabul_2", "0.6", "3"},
			{"Herat", "0.4", "2"},
		},
	}
	schema, err := InferSchema(table, "")
	require.NoError(t, err)
	once := Aggregate(table, schema)

	// Rebuild a table from the aggregated output and aggregate again.
	again := &Table{Header: table.Header}
	for _, r := range once {
		again.Rows = append(again.Rows, []string{
			r.Name,
			formatFloat(r.Values[0]),
			formatFloat(r.Values[1]),
		})
	}
	twice := Aggregate(again, schema)

	require.Equal(t, len(once), len(twice))
	for i := range once {
		assert.Equal(t, once[i].Name, twice[i].Name)
		for j := range once[i].Values {
			assert.InDelta(t, once[i].Values[j], twice[i].Values[j], 1e-9)
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func TestAggregateIgnoresMissingInAverage(t *testing.T) {
	table := &Table{
		Header: []string{"province", "h"},
		Rows: [][]string{
			{"Kabul_1", "0.8"},
			{"Kabul_2", ""},
		},
	}
	schema, err := InferSchema(table, "")
	require.NoError(t, err)
	records := Aggregate(table, schema)
	require.Len(t, records, 1)
	assert.InDelta(t, 0.8, records[0].Values[0], 1e-12)
}

func TestImputeMedians(t *testing.T) {
	records := []AggregatedRecord{
		{Name: "A", Values: []float64{1}},
		{Name: "B", Values: []float64{math.NaN()}},
		{Name: "C", Values: []float64{3}},
		{Name: "D", Values: []float64{5}},
	}
	n := ImputeMedians(records)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 3.0, records[1].Values[0], 1e-12) // median of 1,3,5
}

func TestStandardize(t *testing.T) {
	schema := &Schema{Indicators: []string{"h", "flat"}}
	records := []AggregatedRecord{
		{Name: "A", Values: []float64{1, 7}},
		{Name: "B", Values: []float64{2, 7}},
		{Name: "C", Values: []float64{3, 7}},
	}
	features, warnings := Standardize(records, schema)

	// Column means are zero.
	var sum float64
	for i := range features {
		sum += features[i][0]
	}
	assert.InDelta(t, 0, sum, 1e-12)

	// Zero-deviation column contributes constant zero, with a warning.
	for i := range features {
		assert.Zero(t, features[i][1])
	}
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "flat")
}

func TestPreprocessSmallSampleWarning(t *testing.T) {
	table := &Table{
		Header: []string{"province", "h"},
		Rows: [][]string{
			{"Kabul", "0.8"},
			{"Kandahar", "0.3"},
		},
	}
	pre, err := Preprocess(table, "", nil)
	require.NoError(t, err)
	require.NotEmpty(t, pre.Warnings)
	assert.Contains(t, pre.Warnings[len(pre.Warnings)-1], "fewer than 3")
}

func TestPreprocessOrientationFlip(t *testing.T) {
	table := &Table{
		Header: []string{"province", "access"},
		Rows: [][]string{
			{"A", "1"},
			{"B", "2"},
			{"C", "3"},
		},
	}
	plain, err := Preprocess(table, "", nil)
	require.NoError(t, err)
	flipped, err := Preprocess(table, "", map[string]float64{"access": -1})
	require.NoError(t, err)

	for i := range plain.Features {
		assert.InDelta(t, -plain.Features[i][0], flipped.Features[i][0], 1e-12)
	}
}

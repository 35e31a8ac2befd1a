package dataset

import (
	"math"

	"go.uber.org/zap"

	"github.com/reliefscope/needscan/internal/apperr"
)

// nearZeroVariance flags indicators whose spread is too small to
// discriminate between units.
const nearZeroVariance = 1e-9

// Preprocessed is the Preprocessor's full output: the schema descriptor,
// the aggregated records, and the standardized feature matrix aligned
// row-for-row with Records and column-for-column with Schema.Indicators.
type Preprocessed struct {
	Schema   *Schema
	Records  []AggregatedRecord
	Features [][]float64
	Warnings []string
}

// Preprocess runs the full preprocessing chain on a loaded table: schema
// inference, aggregation, imputation, standardization. Orientation maps
// indicator name to +1 or -1; -1 flips the standardized column for
// indicators where a lower raw value means more need.
func Preprocess(table *Table, adminColumn string, orientation map[string]float64) (*Preprocessed, error) {
	schema, err := InferSchema(table, adminColumn)
	if err != nil {
		return nil, err
	}

	records := Aggregate(table, schema)
	if len(records) == 0 {
		return nil, apperr.New(apperr.KindData, "no rows remain after aggregation")
	}
	ImputeMedians(records)

	features, warnings := Standardize(records, schema)

	if len(records) < 3 {
		w := "fewer than 3 geographic units; clustering will degrade to a minimum-cluster policy"
		warnings = append(warnings, w)
		zap.L().Warn("dataset: small sample", zap.Int("units", len(records)))
	}

	return &Preprocessed{
		Schema:   schema,
		Records:  records,
		Features: orient(features, schema, orientation),
		Warnings: warnings,
	}, nil
}

// Standardize converts each indicator column to zero mean and unit variance
// computed dataset-wide. A zero-deviation column contributes a constant zero
// rather than dividing by zero.
func Standardize(records []AggregatedRecord, schema *Schema) ([][]float64, []string) {
	n := len(records)
	if n == 0 {
		return nil, nil
	}
	nCols := len(records[0].Values)

	means := make([]float64, nCols)
	for j := 0; j < nCols; j++ {
		for i := range records {
			means[j] += records[i].Values[j]
		}
		means[j] /= float64(n)
	}

	stds := make([]float64, nCols)
	for j := 0; j < nCols; j++ {
		var ss float64
		for i := range records {
			d := records[i].Values[j] - means[j]
			ss += d * d
		}
		stds[j] = math.Sqrt(ss / float64(n))
	}

	var warnings []string
	features := make([][]float64, n)
	for i := range records {
		features[i] = make([]float64, nCols)
	}
	for j := 0; j < nCols; j++ {
		if stds[j] < nearZeroVariance {
			w := "indicator " + schema.Indicators[j] + " has near-zero variance and contributes nothing to the score"
			warnings = append(warnings, w)
			zap.L().Warn("dataset: near-zero variance indicator", zap.String("indicator", schema.Indicators[j]))
			continue // column stays all zeros
		}
		for i := range records {
			features[i][j] = (records[i].Values[j] - means[j]) / stds[j]
		}
	}

	return features, warnings
}

// orient flips standardized columns whose orientation is negative. The
// default assumption, inherited from the data contract, is that a higher
// indicator value means more need; orientation metadata is the caller's
// escape hatch, never inferred.
func orient(features [][]float64, schema *Schema, orientation map[string]float64) [][]float64 {
	if len(orientation) == 0 {
		return features
	}
	for j, name := range schema.Indicators {
		sign, ok := orientation[name]
		if !ok || sign >= 0 {
			continue
		}
		for i := range features {
			features[i][j] = -features[i][j]
		}
		zap.L().Info("dataset: flipped indicator orientation", zap.String("indicator", name))
	}
	return features
}

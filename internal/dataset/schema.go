package dataset

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/reliefscope/needscan/internal/apperr"
)

// Schema is the inferred column descriptor consumed by all downstream
// stages. It is computed once; types are never re-inferred.
type Schema struct {
	AdminColumn string
	AdminIndex  int
	Indicators  []string
	indices     []int
}

// adminTokens are conventional geographic-unit column names, matched against
// normalized headers when no explicit admin column is supplied.
var adminTokens = []string{
	"province",
	"admin1",
	"admin_1",
	"region",
	"state",
	"district",
	"adm1_name",
	"name",
}

// missingMarkers are cell values treated as absent, beyond the empty string.
var missingMarkers = map[string]bool{
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"-":    true,
}

// isMissing reports whether a cell value represents a missing observation.
func isMissing(s string) bool {
	if s == "" {
		return true
	}
	return missingMarkers[strings.ToLower(s)]
}

// parseCell converts a cell to a float64, returning NaN for missing values
// and an ok=false for values that are present but non-numeric.
func parseCell(s string) (float64, bool) {
	if isMissing(s) {
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if math.IsInf(v, 0) {
		return math.NaN(), true
	}
	return v, true
}

// InferSchema detects the admin column and the numeric indicator columns.
// adminColumn, when non-empty, overrides detection but must exist in the
// header.
func InferSchema(table *Table, adminColumn string) (*Schema, error) {
	adminIdx := -1
	if adminColumn != "" {
		for i, h := range table.Header {
			if strings.EqualFold(h, adminColumn) {
				adminIdx = i
				break
			}
		}
		if adminIdx < 0 {
			return nil, apperr.New(apperr.KindConfiguration, "admin column %q not present in dataset header", adminColumn)
		}
	} else {
		adminIdx = detectAdminColumn(table.Header)
		if adminIdx < 0 {
			return nil, apperr.New(apperr.KindConfiguration,
				"could not detect a geographic-unit column; add one named like %q or pass it explicitly",
				strings.Join(adminTokens[:4], ", "))
		}
	}

	schema := &Schema{
		AdminColumn: table.Header[adminIdx],
		AdminIndex:  adminIdx,
	}

	for i, h := range table.Header {
		if i == adminIdx {
			continue
		}
		switch classifyColumn(table.Rows, i) {
		case colNumeric:
			schema.Indicators = append(schema.Indicators, h)
			schema.indices = append(schema.indices, i)
		case colAllMissing:
			zap.L().Warn("dataset: dropping entirely-missing column", zap.String("column", h))
		}
	}

	if len(schema.Indicators) == 0 {
		return nil, apperr.New(apperr.KindData, "no numeric indicator columns found in the dataset")
	}

	zap.L().Info("dataset: schema inferred",
		zap.String("admin_column", schema.AdminColumn),
		zap.Strings("indicators", schema.Indicators),
	)

	return schema, nil
}

func detectAdminColumn(header []string) int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}
	for _, token := range adminTokens {
		for i, h := range normalized {
			if h == token {
				return i
			}
		}
	}
	return -1
}

type columnClass int

const (
	colNonNumeric columnClass = iota
	colNumeric
	colAllMissing
)

// classifyColumn inspects every row of a column: numeric if all present
// values parse and at least one is present, allMissing if none are present.
func classifyColumn(rows [][]string, idx int) columnClass {
	present := false
	for _, row := range rows {
		v := cell(row, idx)
		if isMissing(v) {
			continue
		}
		if _, ok := parseCell(v); !ok {
			return colNonNumeric
		}
		present = true
	}
	if !present {
		return colAllMissing
	}
	return colNumeric
}

package dataset

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// AggregatedRecord is one geographic unit after deduplication: the
// suffix-stripped base name plus one value per schema indicator, NaN where
// missing until imputation runs.
type AggregatedRecord struct {
	Name   string
	Values []float64
}

var trailingUnit = regexp.MustCompile(`[_-]\d+$`)
var innerSpace = regexp.MustCompile(`\s+`)

// BaseName collapses entries like "Kabul_1" or "Kabul-2" to "Kabul".
func BaseName(name string) string {
	name = trailingUnit.ReplaceAllString(strings.TrimSpace(name), "")
	return innerSpace.ReplaceAllString(name, " ")
}

// Aggregate groups rows by base name and averages each indicator column,
// ignoring missing values in the average. Output order follows first
// appearance in the input, so aggregation is deterministic and idempotent:
// re-aggregating already-deduplicated records is a no-op.
func Aggregate(table *Table, schema *Schema) []AggregatedRecord {
	type accum struct {
		sums   []float64
		counts []int
	}

	order := make([]string, 0, len(table.Rows))
	groups := make(map[string]*accum)

	for _, row := range table.Rows {
		base := BaseName(cell(row, schema.AdminIndex))
		if base == "" {
			continue
		}
		acc, ok := groups[base]
		if !ok {
			acc = &accum{
				sums:   make([]float64, len(schema.indices)),
				counts: make([]int, len(schema.indices)),
			}
			groups[base] = acc
			order = append(order, base)
		}
		for j, idx := range schema.indices {
			v, ok := parseCell(cell(row, idx))
			if !ok || math.IsNaN(v) {
				continue
			}
			acc.sums[j] += v
			acc.counts[j]++
		}
	}

	records := make([]AggregatedRecord, 0, len(order))
	for _, base := range order {
		acc := groups[base]
		values := make([]float64, len(schema.indices))
		for j := range values {
			if acc.counts[j] == 0 {
				values[j] = math.NaN()
			} else {
				values[j] = acc.sums[j] / float64(acc.counts[j])
			}
		}
		records = append(records, AggregatedRecord{Name: base, Values: values})
	}

	if len(records) < len(table.Rows) {
		zap.L().Info("dataset: aggregated multiple rows per unit",
			zap.Int("rows", len(table.Rows)),
			zap.Int("units", len(records)),
		)
	}

	return records
}

// ImputeMedians fills any value still missing after aggregation with that
// column's median computed over the aggregated rows.
func ImputeMedians(records []AggregatedRecord) int {
	if len(records) == 0 {
		return 0
	}
	nCols := len(records[0].Values)
	imputed := 0

	for j := 0; j < nCols; j++ {
		var present []float64
		for i := range records {
			if !math.IsNaN(records[i].Values[j]) {
				present = append(present, records[i].Values[j])
			}
		}
		if len(present) == 0 {
			continue // schema inference drops all-missing columns
		}
		med := median(present)
		for i := range records {
			if math.IsNaN(records[i].Values[j]) {
				records[i].Values[j] = med
				imputed++
			}
		}
	}

	if imputed > 0 {
		zap.L().Info("dataset: imputed missing values with column medians", zap.Int("count", imputed))
	}
	return imputed
}

// median returns the middle value of the sample; mutates its argument's order.
func median(xs []float64) float64 {
	sort.Float64s(xs)
	n := len(xs)
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}

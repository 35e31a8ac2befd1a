// Package render writes analysis results to their output sinks: a flat CSV
// ranking table and a self-contained HTML choropleth map.
package render

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/reliefscope/needscan/internal/harmonize"
	"github.com/reliefscope/needscan/internal/pipeline"
)

// WriteCSV writes the ranked unit table. Rows come out in need-rank order,
// highest need first, so the file reads top-down as a priority list.
func WriteCSV(w io.Writer, result *pipeline.Result) error {
	matchByRecord := make(map[string]harmonize.MatchResult)
	if result.Harmonized != nil {
		for _, m := range result.Harmonized.Matches {
			matchByRecord[m.RecordName] = m
		}
	}

	cw := csv.NewWriter(w)
	header := []string{
		"geo_unit", "need_score", "need_score_norm", "need_rank",
		"cluster", "cluster_rank", "need_level", "matched_boundary", "match_strategy",
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "render: write csv header")
	}

	ordered := make([]int, len(result.Records))
	for i, r := range result.Records {
		ordered[r.NeedRank] = i
	}

	for _, idx := range ordered {
		r := result.Records[idx]
		match := matchByRecord[r.Name]
		row := []string{
			r.Name,
			strconv.FormatFloat(r.Score, 'f', 6, 64),
			strconv.FormatFloat(r.ScoreNorm, 'f', 6, 64),
			strconv.Itoa(r.NeedRank),
			strconv.Itoa(r.Cluster),
			strconv.Itoa(r.ClusterRank),
			r.Level,
			match.BoundaryName,
			match.Strategy,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "render: write csv row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "render: flush csv")
}

// WriteCSVFile writes the ranking table to path, creating parent directories.
func WriteCSVFile(path string, result *pipeline.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "render: create output dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if err := WriteCSV(f, result); err != nil {
		return err
	}
	return eris.Wrapf(f.Close(), "render: close %s", path)
}

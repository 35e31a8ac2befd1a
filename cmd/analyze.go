package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reliefscope/needscan/internal/pipeline"
	"github.com/reliefscope/needscan/internal/render"
)

var analyzeFlags struct {
	dataset      string
	country      string
	boundaryFile string
	adminLevel   string
	adminColumn  string
	sheet        string
	delimiter    string
	profile      string
	outDir       string
	title        string
	forceRefresh bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a needs assessment on one indicator dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		opts, err := analyzeOptions()
		if err != nil {
			return err
		}

		result, err := env.Pipeline.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}

		outDir := analyzeFlags.outDir
		if outDir == "" {
			outDir = cfg.Output.Dir
		}
		return writeOutputs(outDir, result, analyzeTitle(result))
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.dataset, "dataset", "", "indicator dataset (CSV or XLSX)")
	f.StringVar(&analyzeFlags.country, "country", "", "country name or ISO3 code for remote boundaries")
	f.StringVar(&analyzeFlags.boundaryFile, "boundary-file", "", "local boundary file (GeoJSON or shapefile)")
	f.StringVar(&analyzeFlags.adminLevel, "admin-level", "", "administrative level for remote boundaries (default ADM1)")
	f.StringVar(&analyzeFlags.adminColumn, "admin-column", "", "name of the geographic unit column (default: auto-detect)")
	f.StringVar(&analyzeFlags.sheet, "sheet", "", "xlsx sheet name (default: first sheet)")
	f.StringVar(&analyzeFlags.delimiter, "delimiter", "", "csv field delimiter (default ',')")
	f.StringVar(&analyzeFlags.profile, "profile", "", "analysis profile YAML (orientations, thresholds)")
	f.StringVar(&analyzeFlags.outDir, "out-dir", "", "output directory (default from config)")
	f.StringVar(&analyzeFlags.title, "title", "", "map page title (default: derived from inputs)")
	f.BoolVar(&analyzeFlags.forceRefresh, "force-refresh", false, "refetch boundaries even when cached")
	_ = analyzeCmd.MarkFlagRequired("dataset")

	rootCmd.AddCommand(analyzeCmd)
}

func analyzeOptions() (pipeline.Options, error) {
	profile, err := loadProfile(analyzeFlags.profile)
	if err != nil {
		return pipeline.Options{}, err
	}

	var delimiter rune
	if analyzeFlags.delimiter != "" {
		runes := []rune(analyzeFlags.delimiter)
		if len(runes) != 1 {
			return pipeline.Options{}, eris.Errorf("delimiter must be a single character, got %q", analyzeFlags.delimiter)
		}
		delimiter = runes[0]
	}

	return pipeline.Options{
		DatasetPath:     analyzeFlags.dataset,
		Delimiter:       delimiter,
		SheetName:       analyzeFlags.sheet,
		AdminColumn:     analyzeFlags.adminColumn,
		CountryName:     analyzeFlags.country,
		BoundaryPath:    analyzeFlags.boundaryFile,
		AdminLevel:      analyzeFlags.adminLevel,
		ForceRefresh:    analyzeFlags.forceRefresh,
		Orientation:     profile.Orientation,
		FixedThresholds: profile.Thresholds,
	}, nil
}

func analyzeTitle(result *pipeline.Result) string {
	if analyzeFlags.title != "" {
		return analyzeFlags.title
	}
	if result.ISO3 != "" {
		return "Needs assessment: " + result.ISO3 + " " + result.AdminLevel
	}
	return "Needs assessment"
}

// writeOutputs writes the three sinks for one run: ranked CSV, HTML map, and
// the raw result JSON.
func writeOutputs(dir string, result *pipeline.Result, title string) error {
	csvPath := filepath.Join(dir, "ranking.csv")
	if err := render.WriteCSVFile(csvPath, result); err != nil {
		return err
	}

	mapPath := filepath.Join(dir, "map.html")
	if err := render.WriteMapFile(mapPath, result, title); err != nil {
		return err
	}

	jsonPath := filepath.Join(dir, "result.json")
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal result")
	}
	if err := os.WriteFile(jsonPath, payload, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", jsonPath)
	}

	zap.L().Info("analysis written",
		zap.String("run_id", result.RunID),
		zap.String("csv", csvPath),
		zap.String("map", mapPath),
		zap.String("json", jsonPath),
		zap.Float64("match_rate", result.Harmonized.MatchRate),
	)
	return nil
}

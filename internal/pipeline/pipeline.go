// Package pipeline orchestrates a full needs-assessment run: dataset
// preprocessing, scoring, level classification, boundary resolution, and
// name harmonization, joined into a single result.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	geojson "github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/reliefscope/needscan/internal/apperr"
	"github.com/reliefscope/needscan/internal/boundary"
	"github.com/reliefscope/needscan/internal/classify"
	"github.com/reliefscope/needscan/internal/config"
	"github.com/reliefscope/needscan/internal/dataset"
	"github.com/reliefscope/needscan/internal/harmonize"
	"github.com/reliefscope/needscan/internal/scorer"
)

// DefaultAdminLevel is assumed when the caller does not name one.
const DefaultAdminLevel = "ADM1"

// Options describes one analysis run.
type Options struct {
	DatasetPath string
	Delimiter   rune
	SheetName   string
	AdminColumn string

	// Exactly one boundary source: a country for remote resolution, or a
	// local boundary file.
	CountryName  string
	BoundaryPath string

	// AdminLevel is only meaningful with remote resolution; leaving it empty
	// selects DefaultAdminLevel.
	AdminLevel   string
	ForceRefresh bool

	// Orientation maps indicator name to +1 or -1; -1 marks indicators where
	// lower raw values mean more need.
	Orientation map[string]float64

	// FixedThresholds overrides quartile-derived level cutoffs, making levels
	// comparable across runs.
	FixedThresholds *classify.Thresholds
}

// Result is everything a run produced, ready for rendering.
type Result struct {
	RunID       string                     `json:"run_id"`
	GeneratedAt time.Time                  `json:"generated_at"`
	ISO3        string                     `json:"iso3,omitempty"`
	AdminLevel  string                     `json:"admin_level,omitempty"`
	Records     []scorer.ScoredRecord      `json:"records"`
	Thresholds  classify.Thresholds        `json:"thresholds"`
	Harmonized  *harmonize.Result          `json:"harmonized"`
	Boundaries  *geojson.FeatureCollection `json:"-"`
	FromCache   bool                       `json:"from_cache"`
	Stale       bool                       `json:"stale"`
	Warnings    []string                   `json:"warnings,omitempty"`
}

// Pipeline wires the stages together. Construct once, run many times.
type Pipeline struct {
	cfg      *config.Config
	resolver *boundary.Resolver
	scorer   *scorer.Scorer
	matcher  *harmonize.Matcher
}

// New creates a Pipeline from configuration and a boundary resolver.
func New(cfg *config.Config, resolver *boundary.Resolver) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		resolver: resolver,
		scorer:   scorer.New(cfg.Scorer),
		matcher:  harmonize.NewMatcher(cfg.Harmonize),
	}
}

// Run executes one full analysis.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}

	table, err := dataset.Load(opts.DatasetPath, dataset.LoadOptions{
		Delimiter: opts.Delimiter,
		SheetName: opts.SheetName,
	})
	if err != nil {
		return nil, err
	}

	pre, err := dataset.Preprocess(table, opts.AdminColumn, opts.Orientation)
	if err != nil {
		return nil, err
	}

	records, err := p.scorer.Score(pre)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(records))
	for i, r := range records {
		scores[i] = r.ScoreNorm
	}
	var thresholds classify.Thresholds
	if opts.FixedThresholds != nil {
		thresholds = *opts.FixedThresholds
	} else {
		thresholds = classify.Quartiles(scores)
	}
	for i, level := range classify.Levels(scores, &thresholds) {
		records[i].Level = level
	}

	result := &Result{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Records:     records,
		Thresholds:  thresholds,
		Warnings:    pre.Warnings,
	}

	resolved, err := p.resolve(ctx, opts, result)
	if err != nil {
		return nil, err
	}
	result.Boundaries = resolved.Collection
	result.FromCache = resolved.FromCache
	result.Stale = resolved.Stale

	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	harmonized, err := p.matcher.Match(names, boundary.FeatureNames(resolved.Collection))
	if err != nil {
		return nil, err
	}
	result.Harmonized = harmonized

	zap.L().Info("pipeline: run complete",
		zap.String("run_id", result.RunID),
		zap.Int("units", len(records)),
		zap.Float64("match_rate", harmonized.MatchRate),
		zap.Bool("from_cache", result.FromCache),
	)
	return result, nil
}

func (p *Pipeline) resolve(ctx context.Context, opts Options, result *Result) (*boundary.Resolved, error) {
	if opts.BoundaryPath != "" {
		return p.resolver.ResolveLocal(opts.BoundaryPath)
	}

	iso3, err := boundary.ResolveCountry(opts.CountryName)
	if err != nil {
		return nil, err
	}
	level := opts.AdminLevel
	if level == "" {
		level = DefaultAdminLevel
	}
	result.ISO3 = iso3
	result.AdminLevel = level
	return p.resolver.ResolveRemote(ctx, iso3, level, opts.ForceRefresh)
}

func validate(opts Options) error {
	if opts.DatasetPath == "" {
		return apperr.New(apperr.KindConfiguration, "dataset path is required")
	}
	if opts.CountryName == "" && opts.BoundaryPath == "" {
		return apperr.New(apperr.KindConfiguration, "either a country or a boundary file is required")
	}
	if opts.CountryName != "" && opts.BoundaryPath != "" {
		return apperr.New(apperr.KindConfiguration, "country and boundary file are mutually exclusive")
	}
	if opts.BoundaryPath != "" && opts.AdminLevel != "" {
		return apperr.New(apperr.KindConfiguration, "admin level does not apply to a local boundary file")
	}
	if opts.FixedThresholds != nil {
		if err := opts.FixedThresholds.Validate(); err != nil {
			return apperr.Wrap(apperr.KindConfiguration, err, "invalid level thresholds")
		}
	}
	return nil
}

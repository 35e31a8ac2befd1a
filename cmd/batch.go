package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/reliefscope/needscan/internal/pipeline"
)

var batchFlags struct {
	manifest string
	outDir   string
}

// batchManifest is the YAML file naming the runs of one batch.
type batchManifest struct {
	Jobs []batchJob `yaml:"jobs"`
}

// batchJob describes one analysis in a batch manifest. Output lands under
// the batch output directory in a subdirectory named after the job.
type batchJob struct {
	Name         string `yaml:"name"`
	Dataset      string `yaml:"dataset"`
	Country      string `yaml:"country"`
	BoundaryFile string `yaml:"boundary_file"`
	AdminLevel   string `yaml:"admin_level"`
	AdminColumn  string `yaml:"admin_column"`
	Sheet        string `yaml:"sheet"`
	Profile      string `yaml:"profile"`
	Title        string `yaml:"title"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run several assessments from a manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, err := loadManifest(batchFlags.manifest)
		if err != nil {
			return err
		}

		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		outDir := batchFlags.outDir
		if outDir == "" {
			outDir = cfg.Output.Dir
		}
		return processBatch(cmd.Context(), env, manifest.Jobs, outDir, cfg.Batch.MaxConcurrent)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFlags.manifest, "manifest", "", "batch manifest YAML")
	batchCmd.Flags().StringVar(&batchFlags.outDir, "out-dir", "", "batch output directory (default from config)")
	_ = batchCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(batchCmd)
}

func loadManifest(path string) (*batchManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read manifest %s", path)
	}

	var manifest batchManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, eris.Wrapf(err, "parse manifest %s", path)
	}
	if len(manifest.Jobs) == 0 {
		return nil, eris.Errorf("manifest %s has no jobs", path)
	}

	seen := make(map[string]bool, len(manifest.Jobs))
	for i := range manifest.Jobs {
		job := &manifest.Jobs[i]
		if job.Name == "" {
			return nil, eris.Errorf("manifest %s: job %d has no name", path, i)
		}
		if seen[job.Name] {
			return nil, eris.Errorf("manifest %s: duplicate job name %q", path, job.Name)
		}
		seen[job.Name] = true
	}
	return &manifest, nil
}

// processBatch runs jobs concurrently. One failing job logs and counts as
// failed without aborting the rest; the batch errors only when nothing
// succeeded.
func processBatch(ctx context.Context, env *pipelineEnv, jobs []batchJob, outDir string, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("jobs", len(jobs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			log := zap.L().With(zap.String("job", job.Name))

			if err := runJob(gctx, env, job, filepath.Join(outDir, job.Name)); err != nil {
				failed.Add(1)
				log.Error("job failed", zap.Error(err))
				return nil // don't abort the batch on individual failure
			}
			succeeded.Add(1)
			log.Info("job complete")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	if succeeded.Load() == 0 {
		return eris.New("every batch job failed")
	}
	return nil
}

func runJob(ctx context.Context, env *pipelineEnv, job batchJob, outDir string) error {
	profile, err := loadProfile(job.Profile)
	if err != nil {
		return err
	}

	result, err := env.Pipeline.Run(ctx, pipeline.Options{
		DatasetPath:     job.Dataset,
		SheetName:       job.Sheet,
		AdminColumn:     job.AdminColumn,
		CountryName:     job.Country,
		BoundaryPath:    job.BoundaryFile,
		AdminLevel:      job.AdminLevel,
		Orientation:     profile.Orientation,
		FixedThresholds: profile.Thresholds,
	})
	if err != nil {
		return err
	}

	title := job.Title
	if title == "" {
		title = "Needs assessment: " + job.Name
	}
	return writeOutputs(outDir, result, title)
}

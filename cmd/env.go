package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/reliefscope/needscan/internal/boundary"
	"github.com/reliefscope/needscan/internal/pipeline"
)

// pipelineEnv bundles the long-lived dependencies a command needs.
type pipelineEnv struct {
	Cache    *boundary.Cache
	Resolver *boundary.Resolver
	Pipeline *pipeline.Pipeline
}

// initPipeline opens the boundary cache and wires up the pipeline.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	cache, err := boundary.OpenCache(cfg.Cache.Dir)
	if err != nil {
		return nil, eris.Wrap(err, "open boundary cache")
	}
	if err := cache.Migrate(ctx); err != nil {
		cache.Close()
		return nil, eris.Wrap(err, "migrate boundary cache")
	}

	resolver := boundary.NewResolver(cache, boundary.NewClient(cfg.Boundary), cfg.Boundary.BaseURL)

	return &pipelineEnv{
		Cache:    cache,
		Resolver: resolver,
		Pipeline: pipeline.New(cfg, resolver),
	}, nil
}

func (e *pipelineEnv) Close() {
	_ = e.Cache.Close()
}

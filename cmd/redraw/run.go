package main

import (
	"context"

	"github.com/couchcryptid/election-map-etl/internal/adapter/census"
	"github.com/couchcryptid/election-map-etl/internal/adapter/kafka"
	"github.com/couchcryptid/election-map-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/election-map-etl/internal/adapter/topojson"
	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/pipeline"
)

// execute wires the shared stages around source and runs the pipeline.
func execute[V domain.Votes[V]](ctx context.Context, a *app, source pipeline.VoteSource[V], out string) error {
	cache, err := sqlite.Open(a.cfg.CacheDir, nil)
	if err != nil {
		return &pipeline.StageError{Stage: pipeline.StageConfig, Err: err}
	}
	defer func() {
		if err := cache.Close(); err != nil {
			a.logger.Warn("close cache", "error", err)
		}
	}()

	censusClient := a.client("census")
	stages := pipeline.Stages{
		Geography: census.NewBoundaryLoader(censusClient, a.runner, a.cfg.CacheDir, a.logger,
			census.WithForce(a.flags.force),
			census.WithOgr2ogr(a.cfg.Ogr2ogrPath)),
		Population: census.NewPopulationLoader(censusClient, a.cfg.CensusAPIKey, a.logger,
			census.WithCrosswalk(a.crosswalk)),
		Emitter: topojson.NewEmitter(a.runner, a.cfg.NPXPath, a.logger),
	}
	if a.cfg.PublishEnabled() && !a.flags.checkOnly {
		w := kafka.NewWriter(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.logger)
		defer func() {
			if err := w.Close(); err != nil {
				a.logger.Error("kafka writer close error", "error", err)
			}
		}()
		stages.Publisher = w
	}

	cached := pipeline.NewCachedSource(source, cache, a.flags.force, a.logger, a.metrics)
	p := pipeline.New[V](cached, stages, a.logger, a.metrics)
	report, runErr := p.Run(ctx, pipeline.Options{Output: out, CheckOnly: a.flags.checkOnly})

	if a.flags.checkOnly {
		report.Write(a.stdout)
	}
	if runErr == nil {
		writeSummary(a.stdout, report.States())
	}
	if a.cfg.MetricsFile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.logger.Warn("write metrics file", "path", a.cfg.MetricsFile, "error", err)
		}
	}
	return runErr
}

// Package pipeline runs one election map build: load geography, fetch and
// normalize votes, load population, check coverage, merge, then emit the
// topology and optionally publish the rows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/observability"
)

// VoteSource produces normalized county results for one election.
type VoteSource[V domain.Votes[V]] interface {
	Name() string
	Year() int
	Fetch(ctx context.Context, names *domain.CountyNames) ([]domain.CountyResult[V], error)
}

// GeographyLoader returns flattened county boundaries for an election year.
type GeographyLoader interface {
	Load(ctx context.Context, year int) ([]domain.GeographyRecord, error)
}

// PopulationLoader returns flattened county populations for an election year.
type PopulationLoader interface {
	Load(ctx context.Context, year int) ([]domain.PopulationRecord, error)
}

// Emitter writes merged rows to an output file.
type Emitter interface {
	Emit(ctx context.Context, rows []domain.MergedRow, out string) error
}

// Publisher sends merged rows downstream.
type Publisher interface {
	Publish(ctx context.Context, run domain.Run, rows []domain.MergedRow) error
}

// Stages are the source-independent steps of a run. Publisher may be nil.
type Stages struct {
	Geography  GeographyLoader
	Population PopulationLoader
	Emitter    Emitter
	Publisher  Publisher
}

// Options control a single run.
type Options struct {
	// Output is the topology file to write. Required unless CheckOnly.
	Output string
	// CheckOnly stops after the merge, skipping emit and publish.
	CheckOnly bool
	// RunID tags published rows; a random UUID is used when empty.
	RunID string
}

// Pipeline builds one election map from a vote source.
type Pipeline[V domain.Votes[V]] struct {
	source  VoteSource[V]
	stages  Stages
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Pipeline for source.
func New[V domain.Votes[V]](source VoteSource[V], stages Stages, logger *slog.Logger, metrics *observability.Metrics) *Pipeline[V] {
	return &Pipeline[V]{source: source, stages: stages, logger: logger, metrics: metrics}
}

// Run executes every stage in order and stops at the first failure, which is
// returned as a *StageError. The report is returned either way and records the
// phases reached.
func (p *Pipeline[V]) Run(ctx context.Context, opts Options) (*Report, error) {
	run := domain.Run{Source: p.source.Name(), Year: p.source.Year(), ID: opts.RunID}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	report := &Report{Run: run}
	if !opts.CheckOnly && opts.Output == "" {
		return report, &StageError{Stage: StageConfig, Err: fmt.Errorf("%w: output path is required", domain.ErrConfig)}
	}

	start := time.Now()
	p.logger.Info("run started", "source", run.Source, "year", run.Year, "run_id", run.ID)

	geoPhase := report.phase("geography")
	geo, err := p.stages.Geography.Load(ctx, run.Year)
	if err != nil {
		geoPhase.errorf("%v", err)
		return report, stageError(StageGeography, err)
	}
	geoPhase.Detail = fmt.Sprintf("%d counties", len(geo))
	names := domain.NewCountyNames(geo)

	votePhase := report.phase("votes")
	results, err := p.source.Fetch(ctx, names)
	if err != nil {
		votePhase.errorf("%v", err)
		return report, stageError(StageFetch, err)
	}
	votePhase.Detail = fmt.Sprintf("%d counties", len(results))
	p.metrics.CountiesParsed.WithLabelValues(run.Source).Set(float64(len(results)))
	p.logger.Info("votes fetched", "source", run.Source, "counties", len(results))

	popPhase := report.phase("population")
	pop, err := p.stages.Population.Load(ctx, run.Year)
	if err != nil {
		popPhase.errorf("%v", err)
		return report, stageError(StagePopulation, err)
	}
	popPhase.Detail = fmt.Sprintf("%d counties", len(pop))

	coverage := report.phase("coverage")
	geoIDs := make([]string, len(geo))
	for i, g := range geo {
		geoIDs[i] = g.ID
	}
	if err := domain.CheckCoverage(domain.FIPSCodes(results), geoIDs); err != nil {
		recordCoverage(coverage, err)
		var cov *domain.CoverageError
		if errors.As(err, &cov) {
			p.metrics.CoverageMismatches.Set(float64(len(cov.VoteOnly) + len(cov.GeographyOnly)))
		}
		return report, stageError(StageCoverage, err)
	}
	p.metrics.CoverageMismatches.Set(0)

	merge := report.phase("merge")
	rows, err := domain.Merge(run.Source, results, geo, pop)
	if err != nil {
		var perr *domain.PopulationError
		if errors.As(err, &perr) {
			for _, id := range perr.Missing {
				merge.errorf("no population for %s", id)
			}
		} else {
			merge.errorf("%v", err)
		}
		return report, stageError(StageParse, err)
	}
	merge.Detail = fmt.Sprintf("%d rows", len(rows))
	report.Rows = rows

	if opts.CheckOnly {
		p.logger.Info("check complete", "source", run.Source, "rows", len(rows), "duration", time.Since(start))
		return report, nil
	}

	emit := report.phase("emit")
	if err := p.stages.Emitter.Emit(ctx, rows, opts.Output); err != nil {
		emit.errorf("%v", err)
		return report, stageError(StageEmit, err)
	}
	emit.Detail = opts.Output

	if p.stages.Publisher != nil {
		publish := report.phase("publish")
		if err := p.stages.Publisher.Publish(ctx, run, rows); err != nil {
			publish.errorf("%v", err)
			return report, stageError(StagePublish, err)
		}
		p.metrics.RowsPublished.Add(float64(len(rows)))
		publish.Detail = fmt.Sprintf("%d rows", len(rows))
	}

	p.logger.Info("run complete", "source", run.Source, "year", run.Year, "rows", len(rows), "duration", time.Since(start))
	return report, nil
}

func recordCoverage(phase *Phase, err error) {
	var cov *domain.CoverageError
	if !errors.As(err, &cov) {
		phase.errorf("%v", err)
		return
	}
	for _, id := range cov.VoteOnly {
		phase.errorf("%s has votes but no boundary", id)
	}
	for _, id := range cov.GeographyOnly {
		phase.errorf("%s has a boundary but no votes", id)
	}
}

package pipeline

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/election-map-etl/internal/domain"
)

// Stage names the step of a run that failed.
type Stage string

const (
	StageConfig     Stage = "config"
	StageFetch      Stage = "fetch"
	StageParse      Stage = "parse"
	StageGeography  Stage = "geography"
	StagePopulation Stage = "population"
	StageCoverage   Stage = "coverage"
	StageEmit       Stage = "emit"
	StagePublish    Stage = "publish"
)

// StageError is a run failure tagged with its stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// stageError tags err with the stage it belongs to. Configuration and parse
// errors keep their own stage wherever they surface.
func stageError(def Stage, err error) *StageError {
	var (
		perr   *domain.ParseError
		cov    *domain.CoverageError
		popErr *domain.PopulationError
	)
	switch {
	case errors.Is(err, domain.ErrConfig):
		return &StageError{Stage: StageConfig, Err: err}
	case errors.As(err, &cov):
		return &StageError{Stage: StageCoverage, Err: err}
	case errors.As(err, &popErr):
		return &StageError{Stage: StagePopulation, Err: err}
	case errors.As(err, &perr):
		return &StageError{Stage: StageParse, Err: err}
	default:
		return &StageError{Stage: def, Err: err}
	}
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration errors. These are raised before any network activity.
var (
	ErrConfig           = errors.New("invalid configuration")
	ErrUnsupportedYear  = fmt.Errorf("%w: unsupported year", ErrConfig)
	ErrMissingAPIKey    = fmt.Errorf("%w: CENSUS_API_KEY is required", ErrConfig)
	ErrMissingCrosswalk = fmt.Errorf("%w: CT_CROSSWALK_PATH is required for 2022 and later", ErrConfig)
)

// FetchError reports a unit (usually a state) whose retry budget ran out.
type FetchError struct {
	Unit     string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: gave up after %d attempts: %v", e.Unit, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports raw input with a shape the parser does not recognize.
// Row is 1-based and zero when the error is not tied to a row.
type ParseError struct {
	Source string
	Unit   string
	Row    int
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse ")
	b.WriteString(e.Source)
	if e.Unit != "" {
		b.WriteString(" ")
		b.WriteString(e.Unit)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// CoverageError is the symmetric difference between the FIPS codes in the vote
// data and those in the geography.
type CoverageError struct {
	VoteOnly      []string
	GeographyOnly []string
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("vote data and geography disagree: %d only in votes %v, %d only in geography %v",
		len(e.VoteOnly), e.VoteOnly, len(e.GeographyOnly), e.GeographyOnly)
}

// PopulationError lists merged counties with no population count.
type PopulationError struct {
	Missing []string
}

func (e *PopulationError) Error() string {
	return fmt.Sprintf("no population for %d counties: %v", len(e.Missing), e.Missing)
}

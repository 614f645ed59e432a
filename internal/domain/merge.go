package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/twpayne/go-geom"
)

// MergedRow is one output feature: a county boundary with its votes and population.
type MergedRow struct {
	ID         string
	Name       string
	State      string
	County     string
	Votes      PartyVotes
	Population int
	Geometry   geom.T
}

var errDuplicateFIPS = errors.New("duplicate FIPS")

// Merge joins vote results with geography and population on FIPS. The vote and
// geography key sets must be equal (see [CheckCoverage]) and every county must have
// a population. Population entries with no county are ignored. Rows are sorted by FIPS.
func Merge[V Votes[V]](source string, results []CountyResult[V], geo []GeographyRecord, pop []PopulationRecord) ([]MergedRow, error) {
	votes := make(map[string]CountyResult[V], len(results))
	for i, r := range results {
		if _, dup := votes[r.FIPS]; dup {
			return nil, &ParseError{Source: source, Unit: r.State, Row: i + 1, Err: fmt.Errorf("%w %s", errDuplicateFIPS, r.FIPS)}
		}
		votes[r.FIPS] = r
	}

	geoIDs := make([]string, len(geo))
	for i, g := range geo {
		geoIDs[i] = g.ID
	}
	if err := CheckCoverage(FIPSCodes(results), geoIDs); err != nil {
		return nil, err
	}

	population := make(map[string]int, len(pop))
	for _, p := range pop {
		population[p.ID] = p.Population
	}

	rows := make([]MergedRow, 0, len(geo))
	var missing []string
	for _, g := range geo {
		r := votes[g.ID]
		n, ok := population[g.ID]
		if !ok {
			missing = append(missing, g.ID)
		}
		state := g.State
		if state == "" {
			state = r.State
		}
		rows = append(rows, MergedRow{
			ID:         g.ID,
			Name:       g.Name,
			State:      state,
			County:     r.County,
			Votes:      r.Votes.Canonical(),
			Population: n,
			Geometry:   g.Geometry,
		})
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, &PopulationError{Missing: missing}
	}

	slices.SortFunc(rows, func(a, b MergedRow) int { return strings.Compare(a.ID, b.ID) })
	return rows, nil
}

// RowAttributes is a merged row without its geometry, as published downstream.
type RowAttributes struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	State  string `json:"state"`
	County string `json:"county"`
	PartyVotes
	Population int `json:"population"`
}

// Attributes drops the geometry.
func (r MergedRow) Attributes() RowAttributes {
	return RowAttributes{
		ID:         r.ID,
		Name:       r.Name,
		State:      r.State,
		County:     r.County,
		PartyVotes: r.Votes,
		Population: r.Population,
	}
}

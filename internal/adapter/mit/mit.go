// Package mit reads the MIT Election Data and Science Lab county presidential
// returns (doi:10.7910/DVN/VOQCHQ), a long-format CSV with one row per candidate,
// county and, in newer releases, voting mode.
package mit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/election-map-etl/internal/domain"
)

// Party is a party label as the dataset spells it.
type Party string

const (
	Democrat    Party = "democrat"
	Republican  Party = "republican"
	Libertarian Party = "libertarian"
	Green       Party = "green"
	Other       Party = "other"
)

// ModeTotal is the mode value for a county's all-modes row.
const ModeTotal = "TOTAL"

// Votes is the MIT vote vector. Parties outside the named four count as Other.
type Votes struct {
	Democrat    int `json:"democrat"`
	Republican  int `json:"republican"`
	Libertarian int `json:"libertarian"`
	Green       int `json:"green"`
	Other       int `json:"other"`
}

// Add returns the element-wise sum.
func (v Votes) Add(o Votes) Votes {
	return Votes{
		Democrat:    v.Democrat + o.Democrat,
		Republican:  v.Republican + o.Republican,
		Libertarian: v.Libertarian + o.Libertarian,
		Green:       v.Green + o.Green,
		Other:       v.Other + o.Other,
	}
}

// Canonical maps MIT parties onto the output slots.
func (v Votes) Canonical() domain.PartyVotes {
	return domain.PartyVotes{
		Dem:   v.Democrat,
		GOP:   v.Republican,
		Lib:   v.Libertarian,
		Green: v.Green,
		Other: v.Other,
	}
}

func (v *Votes) add(p Party, n int) {
	switch p {
	case Democrat:
		v.Democrat += n
	case Republican:
		v.Republican += n
	case Libertarian:
		v.Libertarian += n
	case Green:
		v.Green += n
	default:
		v.Other += n
	}
}

// PartyOf folds a raw party label. Empty and "NA" labels, which the dataset uses
// for minor candidates, and unknown labels are Other.
func PartyOf(label string) Party {
	switch p := Party(strings.ToLower(strings.TrimSpace(label))); p {
	case Democrat, Republican, Libertarian, Green:
		return p
	default:
		return Other
	}
}

// Source reads a local MIT CSV for one election year.
type Source struct {
	path       string
	year       int
	normalizer *domain.Normalizer
	logger     *slog.Logger
}

// NewSource returns a Source for the CSV at path.
func NewSource(path string, year int, n *domain.Normalizer, logger *slog.Logger) *Source {
	return &Source{path: path, year: year, normalizer: n, logger: logger}
}

// Name returns the source name.
func (s *Source) Name() string { return domain.SourceMIT }

// Year returns the election year.
func (s *Source) Year() int { return s.year }

// Fetch reads and parses the CSV. The county name index is not needed: every row
// carries a FIPS code.
func (s *Source) Fetch(_ context.Context, _ *domain.CountyNames) ([]domain.CountyResult[Votes], error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open MIT data: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f, s.year, s.normalizer, s.logger)
}

type columns struct {
	year, state, county, fips, party, votes int
	mode                                    int // -1 when absent
}

func findColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	pick := func(names ...string) (int, error) {
		for _, n := range names {
			if i, ok := idx[n]; ok {
				return i, nil
			}
		}
		return 0, fmt.Errorf("missing column %q", names[0])
	}

	var c columns
	var err error
	if c.year, err = pick("year"); err != nil {
		return c, err
	}
	if c.state, err = pick("state_po"); err != nil {
		return c, err
	}
	if c.county, err = pick("county", "county_name"); err != nil {
		return c, err
	}
	if c.fips, err = pick("fips", "county_fips"); err != nil {
		return c, err
	}
	if c.party, err = pick("party"); err != nil {
		return c, err
	}
	if c.votes, err = pick("candidatevotes"); err != nil {
		return c, err
	}
	c.mode = -1
	if i, ok := idx["mode"]; ok {
		c.mode = i
	}
	return c, nil
}

// county accumulates one county's rows. Rows reported under the TOTAL mode are kept
// apart so they can replace the per-mode breakdown.
type county struct {
	state, name, fips string
	byMode            Votes
	total             Votes
	hasTotal          bool
}

// Parse reads the CSV, keeps rows for year, and returns one normalized result per
// county. Rows without a FIPS code (statewide write-ins) are dropped and logged.
func Parse(r io.Reader, year int, n *domain.Normalizer, logger *slog.Logger) ([]domain.CountyResult[Votes], error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, &domain.ParseError{Source: domain.SourceMIT, Err: fmt.Errorf("read header: %w", err)}
	}
	cols, err := findColumns(header)
	if err != nil {
		return nil, &domain.ParseError{Source: domain.SourceMIT, Row: 1, Err: err}
	}
	width := max(cols.year, cols.state, cols.county, cols.fips, cols.party, cols.votes, cols.mode) + 1

	counties := make(map[string]*county)
	var order []string
	var dropped, droppedVotes int

	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.ParseError{Source: domain.SourceMIT, Row: row, Err: err}
		}
		if len(rec) < width {
			return nil, &domain.ParseError{Source: domain.SourceMIT, Row: row,
				Err: fmt.Errorf("expected at least %d fields, got %d", width, len(rec))}
		}

		y, err := strconv.Atoi(strings.TrimSpace(rec[cols.year]))
		if err != nil {
			return nil, &domain.ParseError{Source: domain.SourceMIT, Row: row, Err: fmt.Errorf("year: %w", err)}
		}
		if y != year {
			continue
		}

		votes, err := parseVotes(rec[cols.votes])
		if err != nil {
			return nil, &domain.ParseError{Source: domain.SourceMIT, Unit: rec[cols.state], Row: row, Err: err}
		}

		fips := strings.TrimSpace(rec[cols.fips])
		if fips == "" || strings.EqualFold(fips, "NA") {
			dropped++
			droppedVotes += votes
			continue
		}

		state := strings.ToUpper(strings.TrimSpace(rec[cols.state]))
		key := state + "|" + fips
		c, ok := counties[key]
		if !ok {
			c = &county{state: state, name: strings.TrimSpace(rec[cols.county]), fips: fips}
			counties[key] = c
			order = append(order, key)
		}

		party := PartyOf(rec[cols.party])
		if cols.mode >= 0 && strings.EqualFold(strings.TrimSpace(rec[cols.mode]), ModeTotal) {
			c.total.add(party, votes)
			c.hasTotal = true
		} else {
			c.byMode.add(party, votes)
		}
	}

	if dropped > 0 {
		logger.Warn("dropped rows without a county FIPS code",
			"source", domain.SourceMIT, "year", year, "rows", dropped, "votes", droppedVotes)
	}
	if len(order) == 0 {
		return nil, &domain.ParseError{Source: domain.SourceMIT, Err: fmt.Errorf("no rows for %d", year)}
	}

	results := make([]domain.CountyResult[Votes], 0, len(order))
	for _, key := range order {
		c := counties[key]
		norm, err := n.Normalize(domain.RawCounty{
			State:  c.state,
			County: c.name,
			FIPS:   c.fips,
			Year:   year,
			Source: domain.SourceMIT,
		})
		if err != nil {
			return nil, err
		}
		v := c.byMode
		if c.hasTotal {
			v = c.total
		}
		results = append(results, domain.CountyResult[Votes]{
			State:  c.state,
			County: norm.Name,
			FIPS:   norm.FIPS,
			Votes:  v,
		})
	}
	return domain.Aggregate(results), nil
}

// parseVotes accepts integer counts, "NA" as zero and float-formatted integers.
func parseVotes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "NA") {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("candidatevotes %q is negative", s)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != float64(int(f)) {
		return 0, fmt.Errorf("candidatevotes %q is not a count", s)
	}
	return int(f), nil
}

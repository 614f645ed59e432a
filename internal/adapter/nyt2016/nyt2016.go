// Package nyt2016 reads the New York Times 2016 presidential results page, which
// embeds every county's results as a JavaScript assignment.
package nyt2016

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/fetch"
)

// DefaultURL is the results page.
const DefaultURL = "https://www.nytimes.com/elections/2016/results/president"

// Year is the only election this source covers.
const Year = 2016

const racesPrefix = "eln_races = "

// Candidate is a NYT candidate key.
type Candidate string

const (
	Clinton  Candidate = "clintonh"
	Trump    Candidate = "trumpd"
	Stein    Candidate = "steinj"
	Johnson  Candidate = "johnsong"
	McMullin Candidate = "mcmulline"
)

// Votes holds the five candidates the map shows.
type Votes struct {
	Clinton  int `json:"clinton"`
	Trump    int `json:"trump"`
	Stein    int `json:"stein"`
	Johnson  int `json:"johnson"`
	McMullin int `json:"mcmullin"`
}

// Add returns the element-wise sum.
func (v Votes) Add(o Votes) Votes {
	return Votes{
		Clinton:  v.Clinton + o.Clinton,
		Trump:    v.Trump + o.Trump,
		Stein:    v.Stein + o.Stein,
		Johnson:  v.Johnson + o.Johnson,
		McMullin: v.McMullin + o.McMullin,
	}
}

// Canonical maps candidates onto party slots. McMullin ran unaffiliated.
func (v Votes) Canonical() domain.PartyVotes {
	return domain.PartyVotes{Dem: v.Clinton, GOP: v.Trump, Lib: v.Johnson, Green: v.Stein, Una: v.McMullin}
}

// StateRace is one state's entry in the embedded array.
type StateRace struct {
	StateID  string   `json:"state_id"`
	Counties []County `json:"counties"`
}

// County is one county's results.
type County struct {
	Name    string            `json:"name"`
	FIPS    string            `json:"fips"`
	Results map[Candidate]int `json:"results"`
}

var errNoRaces = errors.New("page has no eln_races assignment")

// ExtractRaces finds the "eln_races = [...];" line in the page and decodes it.
func ExtractRaces(page []byte) ([]StateRace, error) {
	sc := bufio.NewScanner(bytes.NewReader(page))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, racesPrefix) {
			continue
		}
		payload := strings.TrimSuffix(strings.TrimPrefix(line, racesPrefix), ";")
		var races []StateRace
		if err := json.Unmarshal([]byte(payload), &races); err != nil {
			return nil, &domain.ParseError{Source: domain.SourceNYT2016, Err: fmt.Errorf("decode eln_races: %w", err)}
		}
		return races, nil
	}
	if err := sc.Err(); err != nil {
		return nil, &domain.ParseError{Source: domain.SourceNYT2016, Err: err}
	}
	return nil, &domain.ParseError{Source: domain.SourceNYT2016, Err: errNoRaces}
}

// Parse normalizes the decoded races.
func Parse(races []StateRace, n *domain.Normalizer) ([]domain.CountyResult[Votes], error) {
	var results []domain.CountyResult[Votes]
	for _, race := range races {
		if _, ok := domain.StateByAbbr(race.StateID); !ok {
			return nil, &domain.ParseError{Source: domain.SourceNYT2016, Unit: race.StateID, Err: fmt.Errorf("unknown state")}
		}
		for i, c := range race.Counties {
			norm, err := n.Normalize(domain.RawCounty{
				State:  race.StateID,
				County: c.Name,
				FIPS:   c.FIPS,
				Year:   Year,
				Source: domain.SourceNYT2016,
			})
			if err != nil {
				return nil, err
			}
			if c.Results == nil {
				return nil, &domain.ParseError{Source: domain.SourceNYT2016, Unit: race.StateID, Row: i + 1,
					Err: fmt.Errorf("county %q has no results", c.Name)}
			}
			results = append(results, domain.CountyResult[Votes]{
				State:  race.StateID,
				County: norm.Name,
				FIPS:   norm.FIPS,
				Votes: Votes{
					Clinton:  c.Results[Clinton],
					Trump:    c.Results[Trump],
					Stein:    c.Results[Stein],
					Johnson:  c.Results[Johnson],
					McMullin: c.Results[McMullin],
				},
			})
		}
	}
	if len(results) == 0 {
		return nil, &domain.ParseError{Source: domain.SourceNYT2016, Err: fmt.Errorf("no counties")}
	}
	return domain.Aggregate(results), nil
}

// Source fetches the single results page.
type Source struct {
	client     *fetch.Client
	url        string
	normalizer *domain.Normalizer
	logger     *slog.Logger
}

// NewSource returns a Source. An empty url uses DefaultURL.
func NewSource(client *fetch.Client, url string, n *domain.Normalizer, logger *slog.Logger) *Source {
	if url == "" {
		url = DefaultURL
	}
	return &Source{client: client, url: url, normalizer: n, logger: logger}
}

// Name returns the source name.
func (s *Source) Name() string { return domain.SourceNYT2016 }

// Year returns 2016.
func (s *Source) Year() int { return Year }

// Fetch downloads and parses the page.
func (s *Source) Fetch(ctx context.Context, _ *domain.CountyNames) ([]domain.CountyResult[Votes], error) {
	page, err := s.client.Get(ctx, "results-page", s.url)
	if err != nil {
		return nil, err
	}
	races, err := ExtractRaces(page)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("extracted races", "source", domain.SourceNYT2016, "states", len(races))
	return Parse(races, s.normalizer)
}

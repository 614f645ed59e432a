// Package nyt2020 reads the New York Times 2020 presidential race pages, one JSON
// document per state.
package nyt2020

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/fetch"
)

// DefaultURLTemplate takes the state slug.
const DefaultURLTemplate = "https://static01.nyt.com/elections-assets/2020/data/api/2020-11-03/race-page/%s/president.json"

// Year is the only election this source covers.
const Year = 2020

// Candidate is a NYT candidate key.
type Candidate string

const (
	Biden     Candidate = "bidenj"
	Trump     Candidate = "trumpd"
	Jorgensen Candidate = "jorgensenj"
)

// Votes holds the three candidates the map shows.
type Votes struct {
	Biden     int `json:"biden"`
	Trump     int `json:"trump"`
	Jorgensen int `json:"jorgensen"`
}

// Add returns the element-wise sum.
func (v Votes) Add(o Votes) Votes {
	return Votes{Biden: v.Biden + o.Biden, Trump: v.Trump + o.Trump, Jorgensen: v.Jorgensen + o.Jorgensen}
}

// Canonical maps candidates onto party slots.
func (v Votes) Canonical() domain.PartyVotes {
	return domain.PartyVotes{Dem: v.Biden, GOP: v.Trump, Lib: v.Jorgensen}
}

// RacePage is the subset of a race page the parser reads.
type RacePage struct {
	Data struct {
		Races []Race `json:"races"`
	} `json:"data"`
}

// Race is one contest on a race page.
type Race struct {
	Counties []County `json:"counties"`
}

// County is one county's results. FIPS may carry a prefix; only the last five
// characters are the county code.
type County struct {
	Name    string            `json:"name"`
	FIPS    string            `json:"fips"`
	Results map[Candidate]int `json:"results"`
}

// Parse converts one state's race page into normalized county results. Alaska and
// D.C. collapse into a single row each.
func Parse(state domain.State, page RacePage, n *domain.Normalizer) ([]domain.CountyResult[Votes], error) {
	if len(page.Data.Races) == 0 {
		return nil, &domain.ParseError{Source: domain.SourceNYT2020, Unit: state.Abbr, Err: fmt.Errorf("no races")}
	}
	counties := page.Data.Races[0].Counties
	if len(counties) == 0 {
		return nil, &domain.ParseError{Source: domain.SourceNYT2020, Unit: state.Abbr, Err: fmt.Errorf("no counties")}
	}

	results := make([]domain.CountyResult[Votes], 0, len(counties))
	for i, c := range counties {
		fips := c.FIPS
		if len(fips) > 5 {
			fips = fips[len(fips)-5:]
		}
		norm, err := n.Normalize(domain.RawCounty{
			State:  state.Abbr,
			County: c.Name,
			FIPS:   fips,
			Year:   Year,
			Source: domain.SourceNYT2020,
		})
		if err != nil {
			return nil, err
		}
		if c.Results == nil {
			return nil, &domain.ParseError{Source: domain.SourceNYT2020, Unit: state.Abbr, Row: i + 1,
				Err: fmt.Errorf("county %q has no results", c.Name)}
		}
		results = append(results, domain.CountyResult[Votes]{
			State:  state.Abbr,
			County: norm.Name,
			FIPS:   norm.FIPS,
			Votes: Votes{
				Biden:     c.Results[Biden],
				Trump:     c.Results[Trump],
				Jorgensen: c.Results[Jorgensen],
			},
		})
	}
	return domain.Aggregate(results), nil
}

// Source fetches all 51 race pages concurrently.
type Source struct {
	client      *fetch.Client
	urlTemplate string
	normalizer  *domain.Normalizer
	logger      *slog.Logger
}

// NewSource returns a Source. An empty urlTemplate uses DefaultURLTemplate.
func NewSource(client *fetch.Client, urlTemplate string, n *domain.Normalizer, logger *slog.Logger) *Source {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &Source{client: client, urlTemplate: urlTemplate, normalizer: n, logger: logger}
}

// Name returns the source name.
func (s *Source) Name() string { return domain.SourceNYT2020 }

// Year returns 2020.
func (s *Source) Year() int { return Year }

// Fetch downloads every state and parses the pages once all have arrived.
func (s *Source) Fetch(ctx context.Context, _ *domain.CountyNames) ([]domain.CountyResult[Votes], error) {
	abbrs := make([]string, len(domain.States))
	for i, st := range domain.States {
		abbrs[i] = st.Abbr
	}

	pages, err := fetch.Batch(ctx, abbrs, func(ctx context.Context, abbr string) (RacePage, error) {
		st, _ := domain.StateByAbbr(abbr)
		var page RacePage
		err := s.client.GetJSON(ctx, abbr, fmt.Sprintf(s.urlTemplate, st.Slug()), &page)
		return page, err
	})
	if err != nil {
		return nil, err
	}

	var all []domain.CountyResult[Votes]
	for i, page := range pages {
		results, err := Parse(domain.States[i], page, s.normalizer)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("parsed state", "source", domain.SourceNYT2020, "state", domain.States[i].Abbr, "counties", len(results))
		all = append(all, results...)
	}
	return domain.Aggregate(all), nil
}

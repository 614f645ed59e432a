// Package nyt2024 reads the New York Times 2024 presidential results, one JSON
// document per state. Reporting units are counties in most states, townships in
// New England and a single statewide unit in Alaska and D.C.
package nyt2024

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/fetch"
)

// DefaultURLTemplate takes the state slug.
const DefaultURLTemplate = "https://static01.nyt.com/elections-assets/pages/data/2024-11-05/results-%s-president.json"

// Year is the only election this source covers.
const Year = 2024

// Reporting unit levels.
const (
	LevelCounty   = "county"
	LevelTownship = "township"
)

// Candidate is a NYT candidate id.
type Candidate string

const (
	Harris  Candidate = "harris-k"
	Trump   Candidate = "trump-d"
	Kennedy Candidate = "kennedy-r"
	Stein   Candidate = "stein-j"
)

// Votes holds the four candidates the map shows.
type Votes struct {
	Harris  int `json:"harris"`
	Trump   int `json:"trump"`
	Kennedy int `json:"kennedy"`
	Stein   int `json:"stein"`
}

// Add returns the element-wise sum.
func (v Votes) Add(o Votes) Votes {
	return Votes{
		Harris:  v.Harris + o.Harris,
		Trump:   v.Trump + o.Trump,
		Kennedy: v.Kennedy + o.Kennedy,
		Stein:   v.Stein + o.Stein,
	}
}

// Canonical maps candidates onto party slots. Kennedy ran unaffiliated.
func (v Votes) Canonical() domain.PartyVotes {
	return domain.PartyVotes{Dem: v.Harris, GOP: v.Trump, Green: v.Stein, Una: v.Kennedy}
}

// Results is the subset of a results document the parser reads.
type Results struct {
	Races []Race `json:"races"`
}

// Race is one contest.
type Race struct {
	ReportingUnits []ReportingUnit `json:"reporting_units"`
}

// ReportingUnit is a county, township or state.
type ReportingUnit struct {
	Level      string          `json:"level"`
	Name       string          `json:"name"`
	FIPSState  string          `json:"fips_state"`
	FIPSCounty string          `json:"fips_county"`
	FIPSSuffix string          `json:"fips_suffix"`
	Candidates []CandidateVote `json:"candidates"`
}

// CandidateVote is one candidate's tally in a reporting unit.
type CandidateVote struct {
	NYTID Candidate `json:"nyt_id"`
	Votes struct {
		Total int `json:"total"`
	} `json:"votes"`
}

func (u ReportingUnit) votes() Votes {
	var v Votes
	for _, c := range u.Candidates {
		switch c.NYTID {
		case Harris:
			v.Harris += c.Votes.Total
		case Trump:
			v.Trump += c.Votes.Total
		case Kennedy:
			v.Kennedy += c.Votes.Total
		case Stein:
			v.Stein += c.Votes.Total
		}
	}
	return v
}

// Parser turns a state's results into normalized county results.
type Parser struct {
	normalizer *domain.Normalizer
	names      *domain.CountyNames
}

// NewParser returns a Parser. names supplies display names for New England
// counties, which the feed reports only as townships; it may be nil.
func NewParser(n *domain.Normalizer, names *domain.CountyNames) *Parser {
	return &Parser{normalizer: n, names: names}
}

// Parse converts one state's results document.
func (p *Parser) Parse(state domain.State, doc Results) ([]domain.CountyResult[Votes], error) {
	if len(doc.Races) == 0 || len(doc.Races[0].ReportingUnits) == 0 {
		return nil, &domain.ParseError{Source: domain.SourceNYT2024, Unit: state.Abbr, Err: fmt.Errorf("no reporting units")}
	}
	units := doc.Races[0].ReportingUnits

	switch {
	case state.Abbr == "AK" || state.Abbr == "DC":
		return p.statewide(state, units[0])
	case state.Abbr == "CT":
		return p.connecticut(state, units)
	case domain.IsNewEngland(state.Abbr):
		return p.townships(state, units)
	default:
		return p.counties(state, units)
	}
}

func (p *Parser) statewide(state domain.State, u ReportingUnit) ([]domain.CountyResult[Votes], error) {
	norm, err := p.normalizer.Normalize(domain.RawCounty{
		State: state.Abbr, County: u.Name, Year: Year, Source: domain.SourceNYT2024,
	})
	if err != nil {
		return nil, err
	}
	return []domain.CountyResult[Votes]{{State: state.Abbr, County: norm.Name, FIPS: norm.FIPS, Votes: u.votes()}}, nil
}

func (p *Parser) counties(state domain.State, units []ReportingUnit) ([]domain.CountyResult[Votes], error) {
	var results []domain.CountyResult[Votes]
	for _, u := range units {
		if u.Level != LevelCounty {
			continue
		}
		norm, err := p.normalizer.Normalize(domain.RawCounty{
			State:  state.Abbr,
			County: u.Name,
			FIPS:   u.FIPSState + u.FIPSCounty,
			Year:   Year,
			Source: domain.SourceNYT2024,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, domain.CountyResult[Votes]{State: state.Abbr, County: norm.Name, FIPS: norm.FIPS, Votes: u.votes()})
	}
	if len(results) == 0 {
		return nil, &domain.ParseError{Source: domain.SourceNYT2024, Unit: state.Abbr, Err: fmt.Errorf("no %s units", LevelCounty)}
	}
	return domain.Aggregate(results), nil
}

// townships rolls New England townships up to their county.
func (p *Parser) townships(state domain.State, units []ReportingUnit) ([]domain.CountyResult[Votes], error) {
	var results []domain.CountyResult[Votes]
	for _, u := range units {
		if u.Level != LevelTownship {
			continue
		}
		norm, err := p.normalizer.Normalize(domain.RawCounty{
			State:    state.Abbr,
			County:   u.Name,
			Township: u.FIPSCounty + u.FIPSSuffix,
			Year:     Year,
			Source:   domain.SourceNYT2024,
		})
		if err != nil {
			return nil, err
		}
		name, ok := p.names.Name(norm.FIPS)
		if !ok {
			name = norm.FIPS
		}
		results = append(results, domain.CountyResult[Votes]{State: state.Abbr, County: name, FIPS: norm.FIPS, Votes: u.votes()})
	}
	if len(results) == 0 {
		return nil, &domain.ParseError{Source: domain.SourceNYT2024, Unit: state.Abbr, Err: fmt.Errorf("no %s units", LevelTownship)}
	}
	return domain.Aggregate(results), nil
}

// connecticut maps townships onto the nine planning regions. Every region is
// emitted, with zero votes if no township reported into it.
func (p *Parser) connecticut(state domain.State, units []ReportingUnit) ([]domain.CountyResult[Votes], error) {
	results := make([]domain.CountyResult[Votes], 0, len(domain.Regions)+len(units))
	for _, r := range domain.Regions {
		results = append(results, domain.CountyResult[Votes]{State: state.Abbr, County: r.Name, FIPS: r.FIPS()})
	}
	for _, u := range units {
		if u.Level != LevelTownship {
			continue
		}
		norm, err := p.normalizer.Normalize(domain.RawCounty{
			State:    state.Abbr,
			County:   u.Name,
			Township: u.FIPSCounty + u.FIPSSuffix,
			Year:     Year,
			Source:   domain.SourceNYT2024,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, domain.CountyResult[Votes]{State: state.Abbr, County: norm.Name, FIPS: norm.FIPS, Votes: u.votes()})
	}
	return domain.Aggregate(results), nil
}

// Slug returns the URL slug for a state. D.C. is "washington-dc" in this feed.
func Slug(st domain.State) string {
	if st.Abbr == "DC" {
		return "washington-dc"
	}
	return st.Slug()
}

// Source fetches all 51 results documents concurrently.
type Source struct {
	client      *fetch.Client
	urlTemplate string
	normalizer  *domain.Normalizer
	logger      *slog.Logger
}

// NewSource returns a Source. The normalizer must carry the Connecticut crosswalk.
// An empty urlTemplate uses DefaultURLTemplate.
func NewSource(client *fetch.Client, urlTemplate string, n *domain.Normalizer, logger *slog.Logger) *Source {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &Source{client: client, urlTemplate: urlTemplate, normalizer: n, logger: logger}
}

// Name returns the source name.
func (s *Source) Name() string { return domain.SourceNYT2024 }

// Year returns 2024.
func (s *Source) Year() int { return Year }

// Fetch downloads every state, then parses. names labels New England counties.
func (s *Source) Fetch(ctx context.Context, names *domain.CountyNames) ([]domain.CountyResult[Votes], error) {
	abbrs := make([]string, len(domain.States))
	for i, st := range domain.States {
		abbrs[i] = st.Abbr
	}

	docs, err := fetch.Batch(ctx, abbrs, func(ctx context.Context, abbr string) (Results, error) {
		st, _ := domain.StateByAbbr(abbr)
		var doc Results
		err := s.client.GetJSON(ctx, abbr, fmt.Sprintf(s.urlTemplate, Slug(st)), &doc)
		return doc, err
	})
	if err != nil {
		return nil, err
	}

	parser := NewParser(s.normalizer, names)
	var all []domain.CountyResult[Votes]
	for i, doc := range docs {
		results, err := parser.Parse(domain.States[i], doc)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("parsed state", "source", domain.SourceNYT2024, "state", domain.States[i].Abbr, "counties", len(results))
		all = append(all, results...)
	}
	return domain.Aggregate(all), nil
}

// Package townhall scrapes the 2016 county results pages on townhall.com. The pages
// carry county names but no FIPS codes, so counties are matched against the
// boundary file by name.
package townhall

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/fetch"
)

// DefaultURLTemplate takes the state abbreviation.
const DefaultURLTemplate = "http://townhall.com/election/2016/president/%s/county"

// DefaultInterval is the pause between page requests.
const DefaultInterval = time.Second

// Year is the only election this source covers.
const Year = 2016

// Party is the party code townhall puts in the vote cell's class.
type Party string

const (
	Dem   Party = "dem"
	GOP   Party = "gop"
	Lib   Party = "lib"
	Green Party = "grn"
	Una   Party = "una"
	Other Party = "oth"
)

// Votes holds the six parties townhall reports. Una is Evan McMullin.
type Votes struct {
	Dem   int `json:"dem"`
	GOP   int `json:"gop"`
	Lib   int `json:"lib"`
	Green int `json:"grn"`
	Una   int `json:"una"`
	Other int `json:"oth"`
}

// Add returns the element-wise sum.
func (v Votes) Add(o Votes) Votes {
	return Votes{
		Dem:   v.Dem + o.Dem,
		GOP:   v.GOP + o.GOP,
		Lib:   v.Lib + o.Lib,
		Green: v.Green + o.Green,
		Una:   v.Una + o.Una,
		Other: v.Other + o.Other,
	}
}

// Canonical is a direct copy; townhall already uses the output parties.
func (v Votes) Canonical() domain.PartyVotes {
	return domain.PartyVotes{Dem: v.Dem, GOP: v.GOP, Lib: v.Lib, Green: v.Green, Una: v.Una, Other: v.Other}
}

func (v *Votes) add(p Party, n int) {
	switch p {
	case Dem:
		v.Dem += n
	case GOP:
		v.GOP += n
	case Lib:
		v.Lib += n
	case Green:
		v.Green += n
	case Una:
		v.Una += n
	default:
		v.Other += n
	}
}

// Row is one county as scraped, before FIPS resolution.
type Row struct {
	County    string
	Reporting string
	Votes     Votes
}

// ParsePage extracts county rows from a state page. Rows with four cells start a
// county (name and percent reporting, then a candidate); rows with three cells add
// another candidate to the current county.
func ParsePage(state string, page []byte) ([]Row, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, perr(state, 0, fmt.Errorf("parse html: %w", err))
	}
	live := find(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Div && attr(n, "id") == "election-live"
	})
	if live == nil {
		return nil, perr(state, 0, fmt.Errorf("no election-live section"))
	}

	var rows []Row
	var current *Row
	rowNum := 0
	for _, table := range findAll(live, func(n *html.Node) bool {
		return n.DataAtom == atom.Table && !strings.Contains(attr(n, "class"), "summary")
	}) {
		for _, tbody := range children(table, atom.Tbody) {
			for _, tr := range children(tbody, atom.Tr) {
				rowNum++
				tds := children(tr, atom.Td)
				switch len(tds) {
				case 4:
					if current != nil {
						rows = append(rows, *current)
					}
					texts := childTexts(tds[0], atom.Div)
					if len(texts) != 2 {
						return nil, perr(state, rowNum, fmt.Errorf("county cell has %d divs, want 2", len(texts)))
					}
					if !strings.Contains(texts[1], "%") {
						return nil, perr(state, rowNum, fmt.Errorf("reporting %q is not a percentage", texts[1]))
					}
					current = &Row{County: texts[0], Reporting: texts[1]}
				case 3:
					if current == nil {
						return nil, perr(state, rowNum, fmt.Errorf("candidate row before any county"))
					}
				default:
					return nil, perr(state, rowNum, fmt.Errorf("row has %d cells, want 3 or 4", len(tds)))
				}

				votes, err := parseCount(ownText(tds[len(tds)-2]))
				if err != nil {
					return nil, perr(state, rowNum, err)
				}
				current.Votes.add(partyOf(tds[len(tds)-2], tds[len(tds)-3]), votes)
			}
		}
	}
	if current == nil {
		return nil, perr(state, 0, fmt.Errorf("no county rows"))
	}
	return append(rows, *current), nil
}

// partyOf reads the party from the vote cell's first class. Minor candidates have
// no party class, so the candidate's first name decides.
func partyOf(voteCell, nameCell *html.Node) Party {
	if classes := strings.Fields(attr(voteCell, "class")); len(classes) > 0 {
		switch p := Party(strings.ToLower(classes[0])); p {
		case Dem, GOP, Lib, Green:
			return p
		}
	}
	name := strings.ToLower(firstText(nameCell))
	switch {
	case strings.Contains(name, "jill"):
		return Green
	case strings.Contains(name, "evan"):
		return Una
	case strings.Contains(name, "gary"):
		return Lib
	default:
		return Other
	}
}

func parseCount(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "-" || s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("vote count %q is not a count", s)
	}
	return n, nil
}

func perr(state string, row int, err error) error {
	return &domain.ParseError{Source: domain.SourceTownhall, Unit: state, Row: row, Err: err}
}

// Resolve attaches FIPS codes to scraped rows by county name. Alaska and D.C. go
// straight to their pseudo-counties; any other name that does not match is an error.
func Resolve(state string, rows []Row, names *domain.CountyNames, n *domain.Normalizer) ([]domain.CountyResult[Votes], error) {
	results := make([]domain.CountyResult[Votes], 0, len(rows))
	for i, r := range rows {
		var fips string
		if state != "AK" && state != "DC" {
			var ok bool
			if fips, ok = names.Lookup(state, r.County); !ok {
				return nil, perr(state, i+1, fmt.Errorf("county %q not found in boundary names", r.County))
			}
		}
		norm, err := n.Normalize(domain.RawCounty{
			State:  state,
			County: r.County,
			FIPS:   fips,
			Year:   Year,
			Source: domain.SourceTownhall,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, domain.CountyResult[Votes]{State: state, County: norm.Name, FIPS: norm.FIPS, Votes: r.Votes})
	}
	return domain.Aggregate(results), nil
}

// Source scrapes the state pages one at a time, pausing between requests.
type Source struct {
	client      *fetch.Client
	urlTemplate string
	limiter     *rate.Limiter
	normalizer  *domain.Normalizer
	logger      *slog.Logger
}

// NewSource returns a Source that requests at most one page per interval. An empty
// urlTemplate uses DefaultURLTemplate; a non-positive interval disables the pause.
func NewSource(client *fetch.Client, urlTemplate string, interval time.Duration, n *domain.Normalizer, logger *slog.Logger) *Source {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Source{
		client:      client,
		urlTemplate: urlTemplate,
		limiter:     rate.NewLimiter(limit, 1),
		normalizer:  n,
		logger:      logger,
	}
}

// Name returns the source name.
func (s *Source) Name() string { return domain.SourceTownhall }

// Year returns 2016.
func (s *Source) Year() int { return Year }

// Fetch scrapes every state. names must come from the 2016 boundary file.
func (s *Source) Fetch(ctx context.Context, names *domain.CountyNames) ([]domain.CountyResult[Votes], error) {
	if names.Len() == 0 {
		return nil, fmt.Errorf("%s: county names are required to resolve FIPS codes", domain.SourceTownhall)
	}

	var all []domain.CountyResult[Votes]
	for _, st := range domain.States {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := s.client.Get(ctx, st.Abbr, fmt.Sprintf(s.urlTemplate, st.Abbr))
		if err != nil {
			return nil, err
		}
		rows, err := ParsePage(st.Abbr, page)
		if err != nil {
			return nil, err
		}
		results, err := Resolve(st.Abbr, rows, names, s.normalizer)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("scraped state", "source", domain.SourceTownhall, "state", st.Abbr, "counties", len(results))
		all = append(all, results...)
	}
	return domain.Aggregate(all), nil
}

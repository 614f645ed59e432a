package census

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/fetch"
)

// DefaultAPIBase is the Census data API.
const DefaultAPIBase = "https://api.census.gov/data"

// Decennial returns the census year used for an election year's populations.
// The 2000, 2010 and 2020 counts are served by the API; 1990 comes from the
// CDC county summary file.
func Decennial(year int) (int, error) {
	d := ((year - 2) / 10) * 10
	switch d {
	case 1990, 2000, 2010, 2020:
		return d, nil
	default:
		return 0, fmt.Errorf("%w: no decennial population for %d (census %d)", domain.ErrUnsupportedYear, year, d)
	}
}

// dataset returns the API dataset and total-population variable for a census.
func dataset(decennial int) (string, string) {
	if decennial >= 2020 {
		return "pl", "P1_001N"
	}
	return "sf1", "P001001"
}

// PopulationLoader pulls county populations from the Census API, or from the
// CDC county summary for the 1990 census.
type PopulationLoader struct {
	client    *fetch.Client
	apiKey    string
	base      string
	url1990   string
	crosswalk *domain.Crosswalk
	logger    *slog.Logger
}

// PopulationOption configures a PopulationLoader.
type PopulationOption func(*PopulationLoader)

// WithAPIBase overrides the Census API base URL.
func WithAPIBase(base string) PopulationOption {
	return func(l *PopulationLoader) { l.base = strings.TrimRight(base, "/") }
}

// WithCounty1990URL overrides the location of the 1990 county summary zip.
func WithCounty1990URL(u string) PopulationOption {
	return func(l *PopulationLoader) { l.url1990 = u }
}

// WithCrosswalk supplies the Connecticut tract crosswalk needed from 2022.
func WithCrosswalk(cw *domain.Crosswalk) PopulationOption {
	return func(l *PopulationLoader) { l.crosswalk = cw }
}

// NewPopulationLoader returns a loader authenticated with apiKey.
func NewPopulationLoader(client *fetch.Client, apiKey string, logger *slog.Logger, opts ...PopulationOption) *PopulationLoader {
	l := &PopulationLoader{
		client: client,
		apiKey:  apiKey,
		base:    DefaultAPIBase,
		url1990: DefaultCounty1990URL,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the flattened county populations for an election year. From
// 2022 the Connecticut counties are replaced by planning regions built from
// tract counts.
func (l *PopulationLoader) Load(ctx context.Context, year int) ([]domain.PopulationRecord, error) {
	decennial, err := Decennial(year)
	if err != nil {
		return nil, err
	}
	if decennial == 1990 {
		return l.load1990(ctx, year)
	}
	if l.apiKey == "" {
		return nil, domain.ErrMissingAPIKey
	}
	regions := year >= domain.RegionYear
	if regions && l.crosswalk == nil {
		return nil, domain.ErrMissingCrosswalk
	}

	ds, variable := dataset(decennial)
	var table [][]string
	if err := l.client.GetJSON(ctx, "counties", l.query(decennial, ds, variable, "county:*", "state:*"), &table); err != nil {
		return nil, err
	}
	records, err := countyTable(table, variable)
	if err != nil {
		return nil, err
	}

	if regions {
		var tracts [][]string
		if err := l.client.GetJSON(ctx, "ct-tracts", l.query(decennial, ds, variable, "tract:*", "state:09"), &tracts); err != nil {
			return nil, err
		}
		ct, err := regionPopulations(tracts, variable, l.crosswalk)
		if err != nil {
			return nil, err
		}
		kept := records[:0]
		for _, r := range records {
			if domain.StateFIPS(r.ID) != "09" {
				kept = append(kept, r)
			}
		}
		records = append(kept, ct...)
	}

	l.logger.Info("loaded populations", "year", year, "decennial", decennial, "counties", len(records))
	return domain.FlattenPopulation(records, year), nil
}

func (l *PopulationLoader) query(decennial int, ds, variable, forClause, inClause string) string {
	q := url.Values{}
	q.Set("get", variable)
	q.Set("for", forClause)
	q.Set("in", inClause)
	q.Set("key", l.apiKey)
	return fmt.Sprintf("%s/%d/dec/%s?%s", l.base, decennial, ds, q.Encode())
}

// table indexes a Census API response: a header row of column names followed
// by string rows.
type table struct {
	cols map[string]int
	rows [][]string
}

func newTable(raw [][]string, required ...string) (*table, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("census: empty response")
	}
	t := &table{cols: make(map[string]int, len(raw[0])), rows: raw[1:]}
	for i, name := range raw[0] {
		t.cols[name] = i
	}
	for _, name := range required {
		if _, ok := t.cols[name]; !ok {
			return nil, fmt.Errorf("census: response has no %s column", name)
		}
	}
	return t, nil
}

func (t *table) get(row []string, col string) string {
	i := t.cols[col]
	if i >= len(row) {
		return ""
	}
	return row[i]
}

func (t *table) population(i int, variable string) (int, error) {
	raw := t.get(t.rows[i], variable)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("census: row %d: %s %q is not a count", i+1, variable, raw)
	}
	return n, nil
}

func countyTable(raw [][]string, variable string) ([]domain.PopulationRecord, error) {
	t, err := newTable(raw, variable, "state", "county")
	if err != nil {
		return nil, err
	}
	records := make([]domain.PopulationRecord, 0, len(t.rows))
	for i, row := range t.rows {
		pop, err := t.population(i, variable)
		if err != nil {
			return nil, err
		}
		records = append(records, domain.PopulationRecord{
			ID:         t.get(row, "state") + t.get(row, "county"),
			Population: pop,
		})
	}
	return records, nil
}

// regionPopulations sums Connecticut tract counts into planning regions.
// Tracts missing from the crosswalk must be empty.
func regionPopulations(raw [][]string, variable string, cw *domain.Crosswalk) ([]domain.PopulationRecord, error) {
	t, err := newTable(raw, variable, "state", "county", "tract")
	if err != nil {
		return nil, err
	}
	sums := make(map[string]int, len(domain.Regions))
	for i, row := range t.rows {
		pop, err := t.population(i, variable)
		if err != nil {
			return nil, err
		}
		tract := t.get(row, "state") + t.get(row, "county") + t.get(row, "tract")
		region, ok := cw.TractRegion(tract)
		if !ok {
			if pop > 0 {
				return nil, fmt.Errorf("census: tract %s (population %d) is not in the Connecticut crosswalk", tract, pop)
			}
			continue
		}
		sums[region.FIPS()] += pop
	}

	records := make([]domain.PopulationRecord, 0, len(sums))
	for _, r := range domain.Regions {
		if pop, ok := sums[r.FIPS()]; ok {
			records = append(records, domain.PopulationRecord{ID: r.FIPS(), Population: pop})
		}
	}
	return records, nil
}

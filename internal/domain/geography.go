package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// GeographyRecord is one county boundary as read from a Census cartographic file.
type GeographyRecord struct {
	ID       string
	Name     string
	State    string
	Geometry geom.T
}

// PopulationRecord is one county's decennial census count.
type PopulationRecord struct {
	ID         string
	Population int
}

// FlattenCounties applies the geography corrections for an election year:
// Alaska is dissolved into 02000, Kalawao and territories are dropped, the
// 2000-era oddities are repaired, the Shannon rename is applied and any ids that
// still repeat are dissolved into one feature. Output keeps first-seen order.
func FlattenCounties(records []GeographyRecord, year int) ([]GeographyRecord, error) {
	out := make([]GeographyRecord, 0, len(records))
	index := make(map[string]int, len(records))

	for _, r := range records {
		r.ID = PadFIPS(r.ID)
		if !ValidFIPS(r.ID) {
			return nil, fmt.Errorf("geography: county %q has id %q", r.Name, r.ID)
		}
		if dropCounty(r.ID, year) {
			continue
		}

		switch {
		case strings.HasPrefix(r.ID, "02"):
			r.ID, r.Name = AlaskaFIPS, AlaskaName
		case strings.HasPrefix(r.ID, "11"):
			r.ID, r.Name = DCFIPS, DCName
		case r.ID == ShannonFIPS && year >= ShannonRenameYear:
			r.ID, r.Name = OglalaLakotaFIPS, "Oglala Lakota"
		}
		if st, ok := StateByFIPS(StateFIPS(r.ID)); ok && r.State == "" {
			r.State = st.Abbr
		}

		better := singlePart(r.ID, year)
		if better != nil {
			r.Geometry = keepPart(r.Geometry, better)
		}

		if i, ok := index[r.ID]; ok {
			merged, err := Dissolve(out[i].Geometry, r.Geometry)
			if err != nil {
				return nil, fmt.Errorf("geography: dissolve %s: %w", r.ID, err)
			}
			if better != nil {
				merged = keepPart(merged, better)
			}
			out[i].Geometry = merged
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out, nil
}

func dropCounty(id string, year int) bool {
	if id == KalawaoFIPS {
		return true
	}
	if st, err := strconv.Atoi(StateFIPS(id)); err != nil || st > MaxStateFIPS {
		return true
	}
	// Clifton Forge reverted to a town in 2001 but the 2000 boundary file still
	// carries it.
	return id == CliftonForgeFIPS && year >= 2000 && year < 2010
}

// Dissolve combines two polygonal geometries into one MultiPolygon. Shared edges are
// kept; the topology step merges them into single arcs.
func Dissolve(a, b geom.T) (geom.T, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	mp := geom.NewMultiPolygon(a.Layout())
	for _, g := range []geom.T{a, b} {
		for _, p := range polygons(g) {
			if err := mp.Push(p); err != nil {
				return nil, err
			}
		}
	}
	if mp.NumPolygons() == 0 {
		return nil, fmt.Errorf("unsupported geometry types %T and %T", a, b)
	}
	return mp, nil
}

func polygons(g geom.T) []*geom.Polygon {
	switch g := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{g}
	case *geom.MultiPolygon:
		ps := make([]*geom.Polygon, 0, g.NumPolygons())
		for i := 0; i < g.NumPolygons(); i++ {
			ps = append(ps, g.Polygon(i))
		}
		return ps
	default:
		return nil
	}
}

// singlePart returns the part preference for counties whose 2000-era boundary
// carries stray parts, one record per part: Arapahoe keeps its largest and
// Manassas Park its smallest.
func singlePart(id string, year int) func(a, b float64) bool {
	if year >= 2010 {
		return nil
	}
	switch id {
	case "08005":
		return largerArea
	case "51685":
		return smallerArea
	default:
		return nil
	}
}

func largerArea(a, b float64) bool  { return a > b }
func smallerArea(a, b float64) bool { return a < b }

// keepPart reduces a MultiPolygon to the one part preferred by better. Other
// geometries pass through.
func keepPart(g geom.T, better func(a, b float64) bool) geom.T {
	parts := polygons(g)
	if len(parts) < 2 {
		return g
	}
	best := parts[0]
	for _, p := range parts[1:] {
		if better(p.Area(), best.Area()) {
			best = p
		}
	}
	return best
}

// FlattenPopulation applies the population corrections: Alaska is summed into
// 02000, D.C. is keyed 11001 and Shannon is renamed from 2015.
func FlattenPopulation(records []PopulationRecord, year int) []PopulationRecord {
	out := make([]PopulationRecord, 0, len(records))
	index := make(map[string]int, len(records))
	for _, r := range records {
		r.ID = PadFIPS(r.ID)
		switch {
		case strings.HasPrefix(r.ID, "02"):
			r.ID = AlaskaFIPS
		case strings.HasPrefix(r.ID, "11"):
			r.ID = DCFIPS
		case r.ID == ShannonFIPS && year >= ShannonRenameYear:
			r.ID = OglalaLakotaFIPS
		}
		if i, ok := index[r.ID]; ok {
			out[i].Population += r.Population
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

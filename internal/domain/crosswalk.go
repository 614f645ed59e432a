package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Region is a Connecticut planning region (Council of Governments), the county
// equivalent used by the Census since 2022.
type Region struct {
	Code string
	Name string
}

// FIPS returns the region's 5-digit county-equivalent code.
func (r Region) FIPS() string { return "09" + r.Code }

// Regions lists the nine planning regions with names short enough to label a map.
var Regions = []Region{
	{"110", "Capitol"},
	{"120", "Bridgeport"},
	{"130", "Lower CT"},
	{"140", "Naugatuck"},
	{"150", "NE CT"},
	{"160", "NW Hills CT"},
	{"170", "S Central CT"},
	{"180", "SE CT"},
	{"190", "Western CT"},
}

// RegionByCode looks up a planning region by its 3-digit code.
func RegionByCode(code string) (Region, bool) {
	for _, r := range Regions {
		if r.Code == code {
			return r, true
		}
	}
	return Region{}, false
}

// Crosswalk maps pre-2022 Connecticut townships and tracts onto planning regions.
type Crosswalk struct {
	towns  map[string]string
	tracts map[string]string
}

// Crosswalk CSV columns. The file stores codes as integers, so the leading zero of
// the state code is gone.
const (
	colTown2020  = "town_fips_2020"
	colTown2022  = "town_fips_2022"
	colTract2020 = "tract_fips_2020"
	colTract2022 = "tract_fips_2022"
)

// LoadCrosswalk reads the Census 2022 Connecticut tract crosswalk.
func LoadCrosswalk(r io.Reader) (*Crosswalk, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read crosswalk header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, want := range []string{colTown2020, colTown2022, colTract2020, colTract2022} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("crosswalk: missing column %q", want)
		}
	}

	cw := &Crosswalk{towns: make(map[string]string), tracts: make(map[string]string)}
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("crosswalk row %d: %w", row, err)
		}
		field := func(name string) string {
			i := cols[name]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		town20, err := padCode(field(colTown2020), 10)
		if err != nil {
			return nil, fmt.Errorf("crosswalk row %d: %s: %w", row, colTown2020, err)
		}
		town22, err := padCode(field(colTown2022), 10)
		if err != nil {
			return nil, fmt.Errorf("crosswalk row %d: %s: %w", row, colTown2022, err)
		}
		tract20, err := padCode(field(colTract2020), 11)
		if err != nil {
			return nil, fmt.Errorf("crosswalk row %d: %s: %w", row, colTract2020, err)
		}
		tract22, err := padCode(field(colTract2022), 11)
		if err != nil {
			return nil, fmt.Errorf("crosswalk row %d: %s: %w", row, colTract2022, err)
		}

		cw.towns[town20[2:]] = town22[2:5]
		cw.tracts[tract20] = tract22[2:5]
	}
	if len(cw.towns) == 0 {
		return nil, errors.New("crosswalk: no rows")
	}
	return cw, nil
}

// Region maps a township (3-digit county + 5-digit subdivision) to its region.
func (c *Crosswalk) Region(township string) (Region, bool) {
	code, ok := c.towns[township]
	if !ok {
		return Region{}, false
	}
	return RegionByCode(code)
}

// TractRegion maps a full 11-digit 2020 tract code to its region.
func (c *Crosswalk) TractRegion(tract string) (Region, bool) {
	code, ok := c.tracts[tract]
	if !ok {
		return Region{}, false
	}
	return RegionByCode(code)
}

// Townships returns the number of townships in the crosswalk.
func (c *Crosswalk) Townships() int { return len(c.towns) }

func padCode(s string, width int) (string, error) {
	s = PadFIPS(s)
	if !isDigits(s) || len(s) > width {
		return "", fmt.Errorf("%q is not a %d-digit code", s, width)
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}

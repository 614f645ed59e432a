package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CountyNames resolves county names to FIPS codes and back. It is built from the
// boundary file for the election year, so sources that report names only (townhall)
// and sources that need display names (New England townships) agree with the map.
type CountyNames struct {
	byFIPS  map[string]string
	byState map[string]map[string]string
}

// NewCountyNames indexes records by FIPS and by state + folded name.
func NewCountyNames(records []GeographyRecord) *CountyNames {
	cn := &CountyNames{
		byFIPS:  make(map[string]string, len(records)),
		byState: make(map[string]map[string]string),
	}
	for _, r := range records {
		cn.Add(r.ID, r.Name)
	}
	return cn
}

// Add registers one county.
func (c *CountyNames) Add(fips, name string) {
	c.byFIPS[fips] = name
	st, ok := StateByFIPS(StateFIPS(fips))
	if !ok {
		return
	}
	m := c.byState[st.Abbr]
	if m == nil {
		m = make(map[string]string)
		c.byState[st.Abbr] = m
	}
	// Independent cities (county code 510 and up) share names with counties:
	// Richmond city is 51760, Richmond County is 51159. The county keeps the bare
	// name and the city is also indexed as "<name> city".
	key := FoldCountyName(name)
	if len(fips) == 5 && fips[2:] >= "500" {
		m[FoldCountyName(name+" city")] = fips
		if _, taken := m[key]; taken {
			return
		}
	}
	m[key] = fips
}

// Name returns the display name for a FIPS code.
func (c *CountyNames) Name(fips string) (string, bool) {
	if c == nil {
		return "", false
	}
	n, ok := c.byFIPS[fips]
	return n, ok
}

// Lookup finds the FIPS code for a county name within a state.
func (c *CountyNames) Lookup(stateAbbr, county string) (string, bool) {
	if c == nil {
		return "", false
	}
	fips, ok := c.byState[strings.ToUpper(stateAbbr)][FoldCountyName(county)]
	return fips, ok
}

// Len returns the number of counties indexed.
func (c *CountyNames) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byFIPS)
}

var countySuffixes = []string{" county", " parish", " borough", " city and borough", " census area", " municipality"}

// FoldCountyName reduces a county name to a comparison key: accents removed,
// lowercased, "Saint" spelled "st", punctuation dropped and a trailing
// "County" or "Parish" removed. "Doña Ana County" and "Dona Ana" fold alike.
func FoldCountyName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	for _, suffix := range countySuffixes {
		if strings.HasSuffix(folded, suffix) {
			folded = strings.TrimSuffix(folded, suffix)
			break
		}
	}

	var b strings.Builder
	for _, word := range strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if word == "saint" {
			word = "st"
		}
		b.WriteString(word)
	}
	return b.String()
}

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Source names, used in logs, cache keys and error messages.
const (
	SourceMIT      = "mit"
	SourceTownhall = "townhall"
	SourceNYT2016  = "nyt2016"
	SourceNYT2020  = "nyt2020"
	SourceNYT2024  = "nyt2024"
)

// RawCounty is a county identifier as a source reports it, before corrections.
// Township is set by sources that report New England townships: the 3-digit county
// code followed by the 5-digit county subdivision code.
type RawCounty struct {
	State    string
	County   string
	FIPS     string
	Township string
	Year     int
	Source   string
}

// Normalized is the canonical join key and display name for a raw identifier.
type Normalized struct {
	FIPS string
	Name string
}

// Normalizer maps raw identifiers onto canonical 5-digit FIPS codes by applying an
// ordered rule table. It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	rules     []Rule
	crosswalk *Crosswalk
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithCrosswalk supplies the Connecticut township-to-region crosswalk.
func WithCrosswalk(cw *Crosswalk) NormalizerOption {
	return func(n *Normalizer) { n.crosswalk = cw }
}

// WithRules replaces the default rule table.
func WithRules(rules []Rule) NormalizerOption {
	return func(n *Normalizer) { n.rules = rules }
}

// NewNormalizer returns a Normalizer using [DefaultRules] unless overridden.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	if n.rules == nil {
		n.rules = DefaultRules(n.crosswalk)
	}
	return n
}

// Normalize applies every matching rule in order, then checks the result is a
// 5-digit code. Identifiers no rule touches pass through with padding only.
func (n *Normalizer) Normalize(raw RawCounty) (Normalized, error) {
	rc := raw
	rc.FIPS = PadFIPS(rc.FIPS)
	for _, rule := range n.rules {
		if !rule.Match(rc) {
			continue
		}
		next, err := rule.Apply(rc)
		if err != nil {
			return Normalized{}, &ParseError{
				Source: raw.Source,
				Unit:   raw.State,
				Err:    fmt.Errorf("rule %s: %w", rule.Name, err),
			}
		}
		rc = next
	}
	if !ValidFIPS(rc.FIPS) {
		return Normalized{}, &ParseError{
			Source: raw.Source,
			Unit:   raw.State,
			Err:    fmt.Errorf("county %q: %w: %q", raw.County, errBadFIPS, raw.FIPS),
		}
	}
	return Normalized{FIPS: rc.FIPS, Name: rc.County}, nil
}

var errBadFIPS = errors.New("not a 5-digit FIPS code")

// PadFIPS restores the leading zero numeric formats drop. It accepts "1001",
// "1001.0" and "01001" alike. Values that are not numeric are returned trimmed.
func PadFIPS(s string) string {
	s = strings.TrimSpace(s)
	if whole, frac, ok := strings.Cut(s, "."); ok && strings.Trim(frac, "0") == "" {
		s = whole
	}
	if s == "" || !isDigits(s) {
		return s
	}
	if len(s) < 5 {
		s = strings.Repeat("0", 5-len(s)) + s
	}
	return s
}

// ValidFIPS reports whether s is exactly five ASCII digits.
func ValidFIPS(s string) bool {
	return len(s) == 5 && isDigits(s)
}

// TownshipCounty builds a county FIPS from a state abbreviation and a 3-digit
// county code.
func TownshipCounty(stateAbbr, countyFIPS string) (string, error) {
	st, ok := StateByAbbr(stateAbbr)
	if !ok {
		return "", fmt.Errorf("unknown state %q", stateAbbr)
	}
	if len(countyFIPS) != 3 || !isDigits(countyFIPS) {
		return "", fmt.Errorf("county code %q is not 3 digits", countyFIPS)
	}
	return st.FIPS + countyFIPS, nil
}

// StateFIPS returns the 2-digit state prefix of a FIPS code.
func StateFIPS(fips string) string {
	if len(fips) < 2 {
		return fips
	}
	return fips[:2]
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

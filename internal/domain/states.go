package domain

import "strings"

// State is a voting jurisdiction: one of the 50 states or D.C.
type State struct {
	Abbr string
	Name string
	FIPS string
}

// States lists the 50 states plus D.C. in FIPS order.
var States = []State{
	{"AL", "Alabama", "01"},
	{"AK", "Alaska", "02"},
	{"AZ", "Arizona", "04"},
	{"AR", "Arkansas", "05"},
	{"CA", "California", "06"},
	{"CO", "Colorado", "08"},
	{"CT", "Connecticut", "09"},
	{"DE", "Delaware", "10"},
	{"DC", "District of Columbia", "11"},
	{"FL", "Florida", "12"},
	{"GA", "Georgia", "13"},
	{"HI", "Hawaii", "15"},
	{"ID", "Idaho", "16"},
	{"IL", "Illinois", "17"},
	{"IN", "Indiana", "18"},
	{"IA", "Iowa", "19"},
	{"KS", "Kansas", "20"},
	{"KY", "Kentucky", "21"},
	{"LA", "Louisiana", "22"},
	{"ME", "Maine", "23"},
	{"MD", "Maryland", "24"},
	{"MA", "Massachusetts", "25"},
	{"MI", "Michigan", "26"},
	{"MN", "Minnesota", "27"},
	{"MS", "Mississippi", "28"},
	{"MO", "Missouri", "29"},
	{"MT", "Montana", "30"},
	{"NE", "Nebraska", "31"},
	{"NV", "Nevada", "32"},
	{"NH", "New Hampshire", "33"},
	{"NJ", "New Jersey", "34"},
	{"NM", "New Mexico", "35"},
	{"NY", "New York", "36"},
	{"NC", "North Carolina", "37"},
	{"ND", "North Dakota", "38"},
	{"OH", "Ohio", "39"},
	{"OK", "Oklahoma", "40"},
	{"OR", "Oregon", "41"},
	{"PA", "Pennsylvania", "42"},
	{"RI", "Rhode Island", "44"},
	{"SC", "South Carolina", "45"},
	{"SD", "South Dakota", "46"},
	{"TN", "Tennessee", "47"},
	{"TX", "Texas", "48"},
	{"UT", "Utah", "49"},
	{"VT", "Vermont", "50"},
	{"VA", "Virginia", "51"},
	{"WA", "Washington", "53"},
	{"WV", "West Virginia", "54"},
	{"WI", "Wisconsin", "55"},
	{"WY", "Wyoming", "56"},
}

// MaxStateFIPS is the highest state FIPS code (Wyoming). Anything above it is a
// territory or an invalid row.
const MaxStateFIPS = 56

// NewEngland lists the states that report by township rather than county.
var NewEngland = []string{"CT", "MA", "ME", "NH", "RI", "VT"}

var (
	statesByAbbr = make(map[string]State, len(States))
	statesByFIPS = make(map[string]State, len(States))
)

func init() {
	for _, s := range States {
		statesByAbbr[s.Abbr] = s
		statesByFIPS[s.FIPS] = s
	}
}

// StateByAbbr looks up a state by postal abbreviation, case-insensitively.
func StateByAbbr(abbr string) (State, bool) {
	s, ok := statesByAbbr[strings.ToUpper(strings.TrimSpace(abbr))]
	return s, ok
}

// StateByFIPS looks up a state by its 2-digit FIPS code.
func StateByFIPS(fips string) (State, bool) {
	s, ok := statesByFIPS[fips]
	return s, ok
}

// IsNewEngland reports whether the state reports results by township.
func IsNewEngland(abbr string) bool {
	for _, s := range NewEngland {
		if s == abbr {
			return true
		}
	}
	return false
}

// Slug is the lowercased, hyphenated state name used in NYT URLs, for example
// "west-virginia".
func (s State) Slug() string {
	return strings.ReplaceAll(strings.ToLower(s.Name), " ", "-")
}

package domain

// Votes is a source-specific vote vector: a fixed set of named candidate counts.
// Absent candidates are zero.
type Votes[V any] interface {
	// Add returns the element-wise sum of the receiver and other.
	Add(other V) V
	// Canonical renames the source's candidates onto the six output slots.
	Canonical() PartyVotes
}

// CountyResult is one county's votes from one source, keyed by normalized FIPS.
// County is a display name only.
type CountyResult[V Votes[V]] struct {
	State  string `json:"state"`
	County string `json:"county"`
	FIPS   string `json:"fips"`
	Votes  V      `json:"votes"`
}

// PartyVotes is the output schema shared by every source. Slots a source does not
// report are zero.
type PartyVotes struct {
	Dem   int `json:"dem"`
	GOP   int `json:"gop"`
	Lib   int `json:"lib"`
	Green int `json:"grn"`
	Una   int `json:"una"`
	Other int `json:"oth"`
}

// Add returns the element-wise sum.
func (p PartyVotes) Add(o PartyVotes) PartyVotes {
	return PartyVotes{
		Dem:   p.Dem + o.Dem,
		GOP:   p.GOP + o.GOP,
		Lib:   p.Lib + o.Lib,
		Green: p.Green + o.Green,
		Una:   p.Una + o.Una,
		Other: p.Other + o.Other,
	}
}

// Canonical returns p unchanged, so PartyVotes is itself a vote vector.
func (p PartyVotes) Canonical() PartyVotes { return p }

// Total sums all six slots.
func (p PartyVotes) Total() int {
	return p.Dem + p.GOP + p.Lib + p.Green + p.Una + p.Other
}

// Aggregate sums results that share a FIPS code. The first record seen for a FIPS
// keeps its position and name. Aggregating already-aggregated results is a no-op.
func Aggregate[V Votes[V]](results []CountyResult[V]) []CountyResult[V] {
	index := make(map[string]int, len(results))
	out := make([]CountyResult[V], 0, len(results))
	for _, r := range results {
		if i, ok := index[r.FIPS]; ok {
			out[i].Votes = out[i].Votes.Add(r.Votes)
			continue
		}
		index[r.FIPS] = len(out)
		out = append(out, r)
	}
	return out
}

// FIPSCodes returns the FIPS code of each result, in order.
func FIPSCodes[V Votes[V]](results []CountyResult[V]) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.FIPS
	}
	return ids
}

// Run identifies one pipeline execution: the vote source, election year and a
// unique id carried by everything the run publishes.
type Run struct {
	Source string
	Year   int
	ID     string
}

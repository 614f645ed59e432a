package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoParty is a minimal source vote vector, like the NYT 2020 feed without minor
// candidates.
type twoParty struct {
	A int
	B int
}

func (v twoParty) Add(o twoParty) twoParty { return twoParty{A: v.A + o.A, B: v.B + o.B} }
func (v twoParty) Canonical() PartyVotes   { return PartyVotes{Dem: v.A, GOP: v.B} }

func TestCheckCoverage(t *testing.T) {
	t.Run("equal sets", func(t *testing.T) {
		assert.NoError(t, CheckCoverage([]string{"01001", "01003"}, []string{"01003", "01001"}))
	})

	t.Run("votes missing a county", func(t *testing.T) {
		err := CheckCoverage([]string{"01001", "01003"}, []string{"01001", "01003", "01005"})
		var cerr *CoverageError
		require.ErrorAs(t, err, &cerr)
		assert.Empty(t, cerr.VoteOnly)
		assert.Equal(t, []string{"01005"}, cerr.GeographyOnly)
	})

	t.Run("votes with extra county", func(t *testing.T) {
		err := CheckCoverage([]string{"01001", "99999", "01003"}, []string{"01001", "01003"})
		var cerr *CoverageError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, []string{"99999"}, cerr.VoteOnly)
		assert.Empty(t, cerr.GeographyOnly)
	})

	t.Run("both directions sorted", func(t *testing.T) {
		err := CheckCoverage([]string{"05001", "04001", "01001"}, []string{"01001", "09003", "08001"})
		var cerr *CoverageError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, []string{"04001", "05001"}, cerr.VoteOnly)
		assert.Equal(t, []string{"08001", "09003"}, cerr.GeographyOnly)
		assert.Contains(t, err.Error(), "09003")
	})
}

func mergeFixtures() ([]CountyResult[twoParty], []GeographyRecord, []PopulationRecord) {
	results := []CountyResult[twoParty]{
		{State: "AL", County: "Baldwin", FIPS: "01003", Votes: twoParty{A: 20, B: 80}},
		{State: "AL", County: "Autauga", FIPS: "01001", Votes: twoParty{A: 30, B: 70}},
	}
	geo := []GeographyRecord{
		{ID: "01001", Name: "Autauga", State: "AL", Geometry: square(0, 0, 1)},
		{ID: "01003", Name: "Baldwin", State: "AL", Geometry: square(1, 0, 1)},
	}
	pop := []PopulationRecord{
		{ID: "01001", Population: 58805},
		{ID: "01003", Population: 231767},
		{ID: "72001", Population: 18181},
	}
	return results, geo, pop
}

func TestMerge(t *testing.T) {
	results, geo, pop := mergeFixtures()

	rows, err := Merge(SourceNYT2020, results, geo, pop)
	require.NoError(t, err)

	want := []MergedRow{
		{ID: "01001", Name: "Autauga", State: "AL", County: "Autauga", Votes: PartyVotes{Dem: 30, GOP: 70}, Population: 58805},
		{ID: "01003", Name: "Baldwin", State: "AL", County: "Baldwin", Votes: PartyVotes{Dem: 20, GOP: 80}, Population: 231767},
	}
	if diff := cmp.Diff(want, rows, cmpopts.IgnoreFields(MergedRow{}, "Geometry")); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
	assert.NotNil(t, rows[0].Geometry)
}

func TestMerge_CoverageMismatch(t *testing.T) {
	results, geo, pop := mergeFixtures()
	geo = append(geo, GeographyRecord{ID: "01005", Name: "Barbour", State: "AL"})

	_, err := Merge(SourceNYT2020, results, geo, pop)
	var cerr *CoverageError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"01005"}, cerr.GeographyOnly)
	assert.Empty(t, cerr.VoteOnly)
}

func TestMerge_DuplicateFIPS(t *testing.T) {
	results, geo, pop := mergeFixtures()
	results = append(results, results[0])

	_, err := Merge(SourceNYT2020, results, geo, pop)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Row)
	assert.Contains(t, err.Error(), "01003")
}

func TestMerge_MissingPopulation(t *testing.T) {
	results, geo, pop := mergeFixtures()

	_, err := Merge(SourceNYT2020, results, geo, pop[1:])
	var perr *PopulationError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, []string{"01001"}, perr.Missing)
}

func TestPartyVotes_Schema(t *testing.T) {
	b, err := json.Marshal(twoParty{A: 1, B: 2}.Canonical())
	require.NoError(t, err)
	assert.JSONEq(t, `{"dem":1,"gop":2,"lib":0,"grn":0,"una":0,"oth":0}`, string(b))

	var keys map[string]int
	require.NoError(t, json.Unmarshal(b, &keys))
	assert.Len(t, keys, 6)
}

func TestPartyVotes_Total(t *testing.T) {
	v := PartyVotes{Dem: 1, GOP: 2, Lib: 3, Green: 4, Una: 5, Other: 6}
	assert.Equal(t, 21, v.Total())
	assert.Equal(t, 42, v.Add(v).Total())
}

func TestMergedRow_Attributes(t *testing.T) {
	row := MergedRow{
		ID: "01001", Name: "Autauga", State: "AL", County: "Autauga",
		Votes:      PartyVotes{Dem: 5936, GOP: 18172},
		Population: 54571,
		Geometry:   square(0, 0, 1),
	}
	b, err := json.Marshal(row.Attributes())
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"01001","name":"Autauga","state":"AL","county":"Autauga",
		"dem":5936,"gop":18172,"lib":0,"grn":0,"una":0,"oth":0,"population":54571}`, string(b))
}

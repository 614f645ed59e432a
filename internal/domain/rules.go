package domain

import "strings"

// Canonical identifiers produced by the correction rules.
const (
	AlaskaFIPS       = "02000"
	AlaskaName       = "Alaska"
	DCFIPS           = "11001"
	DCName           = "Washington"
	JacksonFIPS      = "29095"
	BoulderFIPS      = "08013"
	BroomfieldFIPS   = "08014"
	ShannonFIPS      = "46113"
	OglalaLakotaFIPS = "46102"
	KalawaoFIPS      = "15005"
	CliftonForgeFIPS = "51560"

	// ShannonRenameYear is the first election after Shannon County, SD became
	// Oglala Lakota County.
	ShannonRenameYear = 2015
	// RegionYear is the first year Connecticut reports by planning region.
	RegionYear = 2022
)

// Rule is one FIPS correction. Apply runs only when Match returns true.
type Rule struct {
	Name  string
	Match func(RawCounty) bool
	Apply func(RawCounty) (RawCounty, error)
}

// DefaultRules returns the correction table in the order it must run. One-off
// merges come first so their output is still subject to the Shannon rename and the
// Alaska and D.C. collapse. The crosswalk may be nil for years before 2022.
func DefaultRules(cw *Crosswalk) []Rule {
	return []Rule{
		{
			Name: "kansas-city",
			Match: func(rc RawCounty) bool {
				return rc.Source == SourceMIT && rc.State == "MO" &&
					(rc.FIPS == "36000" || rc.FIPS == "2938000")
			},
			Apply: rename(JacksonFIPS, "Jackson"),
		},
		{
			Name: "broomfield",
			Match: func(rc RawCounty) bool {
				return rc.Source == SourceMIT && (rc.Year == 2004 || rc.Year == 2008) &&
					rc.FIPS == BroomfieldFIPS
			},
			Apply: rename(BoulderFIPS, "Boulder"),
		},
		{
			Name: "oglala-lakota",
			Match: func(rc RawCounty) bool {
				return rc.Year >= ShannonRenameYear && rc.FIPS == ShannonFIPS
			},
			Apply: rename(OglalaLakotaFIPS, "Oglala Lakota"),
		},
		{
			Name: "connecticut-region",
			Match: func(rc RawCounty) bool {
				return rc.State == "CT" && rc.Township != "" && rc.Year >= RegionYear
			},
			Apply: func(rc RawCounty) (RawCounty, error) {
				if cw == nil {
					return rc, ErrMissingCrosswalk
				}
				region, ok := cw.Region(rc.Township)
				if !ok {
					return rc, &unmappedTownshipError{Township: rc.Township}
				}
				rc.FIPS = region.FIPS()
				rc.County = region.Name
				return rc, nil
			},
		},
		{
			Name: "new-england-township",
			Match: func(rc RawCounty) bool {
				return rc.Township != "" && IsNewEngland(rc.State) &&
					!(rc.State == "CT" && rc.Year >= RegionYear)
			},
			Apply: func(rc RawCounty) (RawCounty, error) {
				fips, err := TownshipCounty(rc.State, rc.Township[:min(3, len(rc.Township))])
				if err != nil {
					return rc, err
				}
				rc.FIPS = fips
				return rc, nil
			},
		},
		{
			Name: "alaska",
			Match: func(rc RawCounty) bool {
				return rc.State == "AK" || strings.HasPrefix(rc.FIPS, "02")
			},
			Apply: rename(AlaskaFIPS, AlaskaName),
		},
		{
			Name: "district-of-columbia",
			Match: func(rc RawCounty) bool {
				return rc.State == "DC" || strings.HasPrefix(rc.FIPS, "11")
			},
			Apply: rename(DCFIPS, DCName),
		},
	}
}

func rename(fips, name string) func(RawCounty) (RawCounty, error) {
	return func(rc RawCounty) (RawCounty, error) {
		rc.FIPS = fips
		rc.County = name
		return rc, nil
	}
}

type unmappedTownshipError struct {
	Township string
}

func (e *unmappedTownshipError) Error() string {
	return "township " + e.Township + " is not in the Connecticut crosswalk"
}

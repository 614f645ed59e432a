// Package domain models county-level U.S. presidential election results and the
// geographic corrections needed to join them with Census boundaries and population.
//
// # Join Key
//
// Every component agrees on one key: the 5-digit county FIPS code, a 2-digit state
// code followed by a 3-digit county code ("01001" is Autauga County, AL). Sources
// disagree about this key in year- and source-specific ways, so every raw identifier
// passes through a [Normalizer] before it is used.
//
// # Sources
//
//	MIT Election Data and Science Lab county returns (CSV, 2000 onward):
//	  long format, one row per candidate per county. FIPS is numeric and loses its
//	  leading zero ("1001" or "1001.0"). Party is empty or "NA" for minor candidates.
//	  Kansas City, MO is reported as its own unit (36000, later 2938000).
//	townhall.com 2016 county pages (HTML):
//	  county name only, no FIPS. Party is carried in a CSS class on the vote cell.
//	NYT 2016 results page (JSON embedded in HTML as "eln_races = [...];").
//	NYT 2020 race pages (JSON per state): counties keyed by FIPS, results by candidate.
//	NYT 2024 results (JSON per state): reporting units at county, township or state
//	level depending on the state.
//
// # Corrections
//
//	Alaska:      boroughs and election districts do not line up across sources.
//	             Everything in Alaska collapses into one pseudo-county, 02000.
//	D.C.:        always 11001, named "Washington".
//	Shannon, SD: renamed Oglala Lakota in 2015, 46113 becomes 46102.
//	Kansas City: merged into Jackson County (29095) in the MIT data.
//	Broomfield:  merged into Boulder (08013) for 2004 and 2008 because no boundary file
//	             covers the 2001 split until 2010.
//	Connecticut: counties were replaced by nine planning regions in 2022. Townships map
//	             to regions through a crosswalk; region FIPS is "09" + the 3-digit code.
//	New England: townships roll up to counties by state FIPS + county FIPS.
//	Geography:   Kalawao County, HI (15005) and territories (state FIPS > 56) are dropped.
//
// The corrections are an ordered rule table ([DefaultRules]); the order matters
// because one-off merges can produce identifiers that later rules rewrite again.
//
// # Coverage
//
// Before a merge the set of FIPS codes in the vote data must equal the set in the
// geography. Any difference is fatal and reported in both directions, see
// [CheckCoverage]. A county silently missing from a map is worse than a failed run.
package domain

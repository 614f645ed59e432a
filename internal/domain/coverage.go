package domain

import "slices"

// CheckCoverage requires the vote FIPS set and the geography FIPS set to be equal.
// On mismatch it returns a *CoverageError listing both differences, sorted.
func CheckCoverage(voteIDs, geoIDs []string) error {
	votes := make(map[string]struct{}, len(voteIDs))
	for _, id := range voteIDs {
		votes[id] = struct{}{}
	}
	geos := make(map[string]struct{}, len(geoIDs))
	for _, id := range geoIDs {
		geos[id] = struct{}{}
	}

	var cerr CoverageError
	for id := range votes {
		if _, ok := geos[id]; !ok {
			cerr.VoteOnly = append(cerr.VoteOnly, id)
		}
	}
	for id := range geos {
		if _, ok := votes[id]; !ok {
			cerr.GeographyOnly = append(cerr.GeographyOnly, id)
		}
	}
	if len(cerr.VoteOnly) == 0 && len(cerr.GeographyOnly) == 0 {
		return nil
	}
	slices.Sort(cerr.VoteOnly)
	slices.Sort(cerr.GeographyOnly)
	return &cerr
}

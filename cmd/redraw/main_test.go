package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/pipeline"
)

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("CENSUS_API_KEY", "")
	t.Setenv("CT_CROSSWALK_PATH", "")
	t.Setenv("LOG_LEVEL", "error")
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

func TestValidationBeforeNetwork(t *testing.T) {
	badCrosswalk := filepath.Join(t.TempDir(), "ct.csv")
	require.NoError(t, os.WriteFile(badCrosswalk, []byte("town_fips_2020\n"), 0o600))

	tests := []struct {
		name string
		args []string
		want error
		msg  string
	}{
		{"missing api key", []string{"2020", "out.json"}, domain.ErrMissingAPIKey, ""},
		{"missing output", []string{"2020", "-k", "key"}, domain.ErrConfig, "FILENAME"},
		{"bad max connections", []string{"2020", "out.json", "-k", "key", "-m", "0"}, domain.ErrConfig, "max-connections"},
		{"missing crosswalk", []string{"2024", "out.json", "-k", "key"}, domain.ErrMissingCrosswalk, ""},
		{"unreadable crosswalk", []string{"2024", "out.json", "-k", "key", "--crosswalk", "/nonexistent/ct.csv"}, domain.ErrConfig, "CT_CROSSWALK_PATH"},
		{"malformed crosswalk", []string{"2024", "out.json", "-k", "key", "--crosswalk", badCrosswalk}, domain.ErrConfig, "CT_CROSSWALK_PATH"},
		{"off-cycle year", []string{"mit", "out.json", "-k", "key", "--csv", "countypres.csv", "--year", "2010"}, domain.ErrConfig, "presidential"},
		{"unsupported year", []string{"mit", "out.json", "-k", "key", "--csv", "countypres.csv", "--year", "1996"}, domain.ErrUnsupportedYear, ""},
		{"2000 needs no key", []string{"mit", "--csv", "countypres.csv", "--year", "2000"}, domain.ErrConfig, "FILENAME"},
		{"townhall key", []string{"townhall", "out.json"}, domain.ErrMissingAPIKey, ""},
		{"2016 key", []string{"2016", "--check-only"}, domain.ErrMissingAPIKey, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runCLI(t, tt.args...)
			require.ErrorIs(t, err, tt.want)
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
			assert.True(t, strings.HasPrefix(describe(err), "config: "))
		})
	}
}

func TestDescribe(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &pipeline.StageError{Stage: pipeline.StageCoverage, Err: errors.New("2 mismatches")})
	assert.Equal(t, "coverage: 2 mismatches", describe(err))
	assert.Equal(t, "config: bad flag", describe(errors.New("bad flag")))
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	writeSummary(&buf, []pipeline.StateSummary{
		{State: "AK", Counties: 1, Votes: domain.PartyVotes{Dem: 153778, GOP: 189951, Lib: 8897}, Population: 733391},
		{State: "AL", Counties: 67, Votes: domain.PartyVotes{Dem: 849624, GOP: 1441170}, Population: 5024279},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "State"))
	assert.True(t, strings.HasPrefix(lines[1], "-----"))
	assert.Contains(t, lines[2], "153,778")
	assert.Contains(t, lines[3], "1,441,170")
	assert.True(t, strings.HasPrefix(lines[5], "Total"))
	assert.Contains(t, lines[5], "5,757,670")
	for _, l := range lines[1:] {
		assert.Equal(t, len(lines[0]), len(l), "columns align: %q", l)
	}

	buf.Reset()
	writeSummary(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestThousands(t *testing.T) {
	assert.Equal(t, "0", thousands(0))
	assert.Equal(t, "999", thousands(999))
	assert.Equal(t, "1,000", thousands(1000))
	assert.Equal(t, "-12,345", thousands(-12345))
}

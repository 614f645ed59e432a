package nyt2020

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/election-map-etl/internal/domain"
	"github.com/couchcryptid/election-map-etl/internal/fetch"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, s string) RacePage {
	t.Helper()
	var page RacePage
	require.NoError(t, json.Unmarshal([]byte(s), &page))
	return page
}

func TestParse(t *testing.T) {
	al, _ := domain.StateByAbbr("AL")
	page := decode(t, `{"data":{"races":[{"counties":[
		{"name":"Autauga","fips":"01001","results":{"bidenj":5909,"trumpd":19838,"jorgensenj":350}},
		{"name":"Baldwin","fips":"01003","results":{"bidenj":22160,"trumpd":83544}}
	]}]}}`)

	results, err := Parse(al, page, domain.NewNormalizer())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, domain.CountyResult[Votes]{
		State: "AL", County: "Autauga", FIPS: "01001",
		Votes: Votes{Biden: 5909, Trump: 19838, Jorgensen: 350},
	}, results[0])
	assert.Zero(t, results[1].Votes.Jorgensen)
	assert.Equal(t, domain.PartyVotes{Dem: 22160, GOP: 83544}, results[1].Votes.Canonical())
}

func TestParse_AlaskaAndDC(t *testing.T) {
	ak, _ := domain.StateByAbbr("AK")
	page := decode(t, `{"data":{"races":[{"counties":[
		{"name":"ED 1","fips":"0200001","results":{"bidenj":100,"trumpd":200}},
		{"name":"ED 2","fips":"0200002","results":{"bidenj":50,"trumpd":25,"jorgensenj":5}}
	]}]}}`)
	results, err := Parse(ak, page, domain.NewNormalizer())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "02000", results[0].FIPS)
	assert.Equal(t, "Alaska", results[0].County)
	assert.Equal(t, Votes{Biden: 150, Trump: 225, Jorgensen: 5}, results[0].Votes)

	dc, _ := domain.StateByAbbr("DC")
	page = decode(t, `{"data":{"races":[{"counties":[
		{"name":"District of Columbia","fips":"11001","results":{"bidenj":317323,"trumpd":18586}}
	]}]}}`)
	results, err = Parse(dc, page, domain.NewNormalizer())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Washington", results[0].County)
}

func TestParse_Errors(t *testing.T) {
	al, _ := domain.StateByAbbr("AL")
	tests := []struct {
		name string
		json string
		want string
	}{
		{"no races", `{"data":{"races":[]}}`, "no races"},
		{"no counties", `{"data":{"races":[{"counties":[]}]}}`, "no counties"},
		{"no results", `{"data":{"races":[{"counties":[{"name":"Autauga","fips":"01001"}]}]}}`, "no results"},
		{"bad fips", `{"data":{"races":[{"counties":[{"name":"Autauga","fips":"1x","results":{}}]}]}}`, "FIPS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(al, decode(t, tt.json), domain.NewNormalizer())
			var perr *domain.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// statePage builds a one-county page for a state, with two districts for Alaska.
func statePage(st domain.State) string {
	if st.Abbr == "AK" {
		return `{"data":{"races":[{"counties":[
			{"name":"ED 1","fips":"02001","results":{"bidenj":1,"trumpd":2}},
			{"name":"ED 2","fips":"02002","results":{"bidenj":3,"trumpd":4}}]}]}}`
	}
	return fmt.Sprintf(`{"data":{"races":[{"counties":[{"name":"First","fips":"%s001","results":{"bidenj":10,"trumpd":20,"jorgensenj":1}}]}]}}`, st.FIPS)
}

func TestSource_Fetch(t *testing.T) {
	pages := make(map[string]string, len(domain.States))
	for _, st := range domain.States {
		pages["/"+st.Slug()+"/president.json"] = statePage(st)
	}
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client := fetch.NewClient(domain.SourceNYT2020, srv.Client(), fetch.WithPolicy(fetch.Policy{Attempts: 1}), fetch.WithLogger(discardLogger()))
	src := NewSource(client, srv.URL+"/%s/president.json", domain.NewNormalizer(), discardLogger())
	assert.Equal(t, domain.SourceNYT2020, src.Name())
	assert.Equal(t, 2020, src.Year())

	results, err := src.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(51), requests.Load())
	assert.Len(t, results, 51)

	var alaska domain.CountyResult[Votes]
	for _, r := range results {
		if r.FIPS == "02000" {
			alaska = r
		}
		assert.True(t, domain.ValidFIPS(r.FIPS), r.FIPS)
	}
	assert.Equal(t, Votes{Biden: 4, Trump: 6}, alaska.Votes)
	assert.True(t, strings.HasPrefix(results[len(results)-1].FIPS, "56"))
}

func TestSource_FetchFailureNamesState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/wyoming/") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		st := domain.States[0]
		_, _ = w.Write([]byte(statePage(st)))
	}))
	defer srv.Close()

	client := fetch.NewClient(domain.SourceNYT2020, srv.Client(), fetch.WithPolicy(fetch.Policy{Attempts: 2}), fetch.WithLogger(discardLogger()))
	src := NewSource(client, srv.URL+"/%s/president.json", domain.NewNormalizer(), discardLogger())

	_, err := src.Fetch(context.Background(), nil)
	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "WY", ferr.Unit)
	assert.Equal(t, 2, ferr.Attempts)
}

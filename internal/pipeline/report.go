package pipeline

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/couchcryptid/election-map-etl/internal/domain"
)

// maxPhaseErrors caps the detail lines printed per failed phase.
const maxPhaseErrors = 25

// Phase tracks pass/fail for one step of a run.
type Phase struct {
	Name   string
	Detail string
	Errors []string
}

func (p *Phase) errorf(format string, args ...any) {
	p.Errors = append(p.Errors, fmt.Sprintf(format, args...))
}

// Passed reports whether the phase recorded no errors.
func (p *Phase) Passed() bool { return len(p.Errors) == 0 }

// Report describes one run: which phases passed and the merged rows produced.
type Report struct {
	Run    domain.Run
	Phases []*Phase
	Rows   []domain.MergedRow
}

func (r *Report) phase(name string) *Phase {
	p := &Phase{Name: name}
	r.Phases = append(r.Phases, p)
	return p
}

// Passed reports whether every phase passed.
func (r *Report) Passed() bool {
	for _, p := range r.Phases {
		if !p.Passed() {
			return false
		}
	}
	return true
}

// Write prints the phase table followed by the errors of failed phases.
func (r *Report) Write(w io.Writer) {
	fmt.Fprintf(w, "=== %s %d ===\n\n", r.Run.Source, r.Run.Year)
	for _, p := range r.Phases {
		status := "PASS"
		if !p.Passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.Errors))
		}
		fmt.Fprintf(w, "  %-24s %-18s %s\n", p.Name, status, p.Detail)
	}

	for _, p := range r.Phases {
		if p.Passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.Name)
		for i, e := range p.Errors {
			if i == maxPhaseErrors {
				fmt.Fprintf(w, "  ... and %d more\n", len(p.Errors)-maxPhaseErrors)
				break
			}
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if r.Passed() {
		fmt.Fprintln(w, "\nAll checks passed.")
		return
	}
	fmt.Fprintln(w, "\nCheck FAILED.")
}

// StateSummary totals the merged rows of one state.
type StateSummary struct {
	State      string
	Counties   int
	Votes      domain.PartyVotes
	Population int
}

// States totals rows by state, ordered by state abbreviation.
func (r *Report) States() []StateSummary {
	index := make(map[string]int)
	var out []StateSummary
	for _, row := range r.Rows {
		i, ok := index[row.State]
		if !ok {
			i = len(out)
			index[row.State] = i
			out = append(out, StateSummary{State: row.State})
		}
		out[i].Counties++
		out[i].Votes = out[i].Votes.Add(row.Votes)
		out[i].Population += row.Population
	}
	slices.SortFunc(out, func(a, b StateSummary) int { return strings.Compare(a.State, b.State) })
	return out
}

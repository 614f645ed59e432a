package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/couchcryptid/election-map-etl/internal/pipeline"
)

var printer = message.NewPrinter(language.English)

var summaryHeader = []string{"State", "Counties", "Dem", "GOP", "Lib", "Grn", "Una", "Oth", "Population"}

// writeSummary prints a per-state table of merged totals with a national row.
func writeSummary(w io.Writer, states []pipeline.StateSummary) {
	if len(states) == 0 {
		return
	}
	rows := [][]string{summaryHeader}
	var total pipeline.StateSummary
	total.State = "Total"
	for _, s := range states {
		rows = append(rows, summaryRow(s))
		total.Counties += s.Counties
		total.Votes = total.Votes.Add(s.Votes)
		total.Population += s.Population
	}
	rows = append(rows, summaryRow(total))

	widths := make([]int, len(summaryHeader))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	fmt.Fprintln(w)
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i == 0 {
				cells[i] = runewidth.FillRight(cell, widths[i])
			} else {
				cells[i] = runewidth.FillLeft(cell, widths[i])
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "  "))
		if r == 0 || r == len(rows)-2 {
			fmt.Fprintln(w, separator(widths))
		}
	}
}

func summaryRow(s pipeline.StateSummary) []string {
	v := s.Votes
	return []string{
		s.State,
		strconv.Itoa(s.Counties),
		thousands(v.Dem),
		thousands(v.GOP),
		thousands(v.Lib),
		thousands(v.Green),
		thousands(v.Una),
		thousands(v.Other),
		thousands(s.Population),
	}
}

func separator(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w)
	}
	return strings.Join(parts, "  ")
}

// thousands formats n with comma separators.
func thousands(n int) string { return printer.Sprintf("%d", n) }

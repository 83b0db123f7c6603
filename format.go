package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// columnGap separates table columns.
const columnGap = "  "

func statusf(w io.Writer, quiet bool, format string, args ...any) {
	if quiet {
		return
	}

	fmt.Fprintf(w, format, args...)
}

// formatTime renders t in local time, dropping the year when it matches
// now's year.
func formatTime(t, now time.Time) string {
	t = t.Local()

	if t.Year() != now.Local().Year() {
		return t.Format("2006-01-02")
	}

	return t.Format("Jan _2 15:04")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// printTable aligns rows under headers. Widths count runes so accented
// student names line up. The last column is never padded.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := columnWidths(headers, rows)

	var b strings.Builder

	for _, row := range append([][]string{headers}, rows...) {
		b.Reset()

		for i, cell := range row {
			b.WriteString(cell)

			if i == len(row)-1 {
				break
			}

			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
			b.WriteString(columnGap)
		}

		fmt.Fprintln(w, b.String())
	}
}

func columnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))

	for _, row := range append([][]string{headers}, rows...) {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	return widths
}

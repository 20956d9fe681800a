package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// statusf prints a status message to w unless quiet mode is set.
func statusf(w io.Writer, quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Stderr, cc.Flags.Quiet, format, args...)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// formatSize renders a byte count with binary units ("1.5 KiB").
func formatSize(bytes int64) string {
	if bytes < 0 {
		return "-"
	}

	return humanize.IBytes(uint64(bytes))
}

// formatTime renders an absolute timestamp for file listings. The zero time
// renders as "-".
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	if t.Year() == time.Now().Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// formatAge renders how long ago t was ("3 days ago"), for connection times.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return humanize.Time(t)
}

// formatTimestamp formats a backend timestamp string. Values that are not
// RFC 3339 are shown as received.
func formatTimestamp(raw string) string {
	if raw == "" {
		return "-"
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return raw
	}

	return formatTime(t.Local())
}

// printTable writes headers and rows as space-aligned columns. The last
// column is not padded.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))

	for _, row := range append([][]string{headers}, rows...) {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

func printRow(w io.Writer, cells []string, widths []int) {
	var b strings.Builder

	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}

		if i == len(cells)-1 {
			b.WriteString(cell)
			break
		}

		fmt.Fprintf(&b, "%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, b.String())
}

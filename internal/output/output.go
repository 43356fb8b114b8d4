// Package output renders anonymized records and aggregate reports. Records
// go out as newline-delimited JSON; reports support text, JSON, and table
// formats.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/balajialg/Datahub-Usage-Analysis/internal/analyzer"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// Writer handles writing formatted report output.
type Writer struct {
	w      io.Writer
	format Format
}

// New creates a new report Writer.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v interface{}) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteUsageStats renders an aggregate usage report in the configured format.
func (wr *Writer) WriteUsageStats(stats analyzer.UsageStats, files []string) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(stats)
	case FormatTable:
		return wr.writeStatsTable(stats)
	default:
		return wr.writeStatsText(stats, files)
	}
}

func (wr *Writer) writeStatsText(stats analyzer.UsageStats, files []string) error {
	if len(files) > 1 {
		fmt.Fprintf(wr.w, "Usage statistics across %d files\n\n", len(files))
	} else if len(files) == 1 {
		fmt.Fprintf(wr.w, "Usage statistics for %s\n\n", files[0])
	}

	fmt.Fprintf(wr.w, "Total Events: %d (%d starts, %d stops)\n", stats.TotalEvents, stats.Starts, stats.Stops)
	fmt.Fprintf(wr.w, "Distinct Users: %d\n", stats.DistinctUsers)

	if !stats.FirstEvent.IsZero() {
		fmt.Fprintf(wr.w, "Time Range: %s - %s\n",
			stats.FirstEvent.Format(time.RFC3339),
			stats.LastEvent.Format(time.RFC3339))
	}

	if stats.Spawn.Count > 0 {
		fmt.Fprintf(wr.w, "Spawn Seconds: min %.2f, mean %.2f, max %.2f (%d spawns)\n",
			stats.Spawn.Min, stats.Spawn.Mean, stats.Spawn.Max, stats.Spawn.Count)
	}

	if len(stats.Hubs) > 0 {
		fmt.Fprintln(wr.w, "\nEvents per Hub:")
		for hub, count := range stats.Hubs {
			fmt.Fprintf(wr.w, "  %s: %d\n", hub, count)
		}
	}

	if len(stats.Hours) > 0 {
		fmt.Fprintln(wr.w, "\nEvents per Hour:")
		for _, hc := range stats.Hours {
			fmt.Fprintf(wr.w, "  %s: %d\n", hc.Hour.Format("2006-01-02 15:00"), hc.Count)
		}
	}

	return nil
}

func (wr *Writer) writeStatsTable(stats analyzer.UsageStats) error {
	fmt.Fprintf(wr.w, "Total Events: %d (%d starts, %d stops)\n", stats.TotalEvents, stats.Starts, stats.Stops)
	fmt.Fprintf(wr.w, "Distinct Users: %d\n\n", stats.DistinctUsers)

	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOUR\tEVENTS")
	fmt.Fprintln(tw, "----\t------")
	for _, hc := range stats.Hours {
		fmt.Fprintf(tw, "%s\t%d\n", hc.Hour.Format("2006-01-02 15:00"), hc.Count)
	}
	return tw.Flush()
}

// IsTerminal reports whether f is attached to a terminal. Used to pick
// human-readable versus machine-readable diagnostics on stderr.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

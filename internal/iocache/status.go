package iocache

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/traelabs/trae/schema"
)

const statusTimeFormat = "2006-01-02 15:04:05"

// PrintCacheStatus prints cache status information.
func PrintCacheStatus(w io.Writer, status schema.CacheStatus) {
	var b strings.Builder
	fmt.Fprintf(&b, "Cache Backend: %s\n", status.Backend)
	fmt.Fprintf(&b, "Connected: %t\n", status.Connected)
	if status.Connected {
		fmt.Fprintf(&b, "Total Entries: %d\n", status.TotalEntries)
		if status.TotalEntries > 0 {
			fmt.Fprintf(&b, "Last Entry: %s\n", status.LastEntryTime.Format(statusTimeFormat))
			fmt.Fprintf(&b, "Oldest Entry: %s\n", status.OldestEntryTime.Format(statusTimeFormat))
		}
		fmt.Fprintf(&b, "Size: %d bytes\n", status.TableSizeBytes)
	}
	_, _ = io.WriteString(w, b.String())
}

// PrintRunStatus prints run history status information.
func PrintRunStatus(w io.Writer, status schema.RunStatus) {
	var b strings.Builder
	fmt.Fprintf(&b, "Runs Backend: %s\n", status.Backend)
	fmt.Fprintf(&b, "Connected: %t\n", status.Connected)
	if status.Connected {
		fmt.Fprintf(&b, "Total Runs: %d\n", status.TotalRuns)
		if status.TotalRuns > 0 {
			fmt.Fprintf(&b, "Last Run ID: %d\n", status.LastRunID)
			fmt.Fprintf(&b, "Last Run: %s\n", status.LastRunTime.Format(statusTimeFormat))
			fmt.Fprintf(&b, "Oldest Run: %s\n", status.OldestRunTime.Format(statusTimeFormat))
			fmt.Fprintf(&b, "Total Files Scanned: %d\n", status.TotalFilesScanned)
		}
		b.WriteString("Table Sizes:\n")
		tables := make([]string, 0, len(status.TableSizes))
		for table := range status.TableSizes {
			tables = append(tables, table)
		}
		slices.Sort(tables)
		for _, table := range tables {
			fmt.Fprintf(&b, "  %s: %d rows\n", table, status.TableSizes[table])
		}
	}
	_, _ = io.WriteString(w, b.String())
}

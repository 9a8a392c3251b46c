package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/eshaffer321/invoice-match-backend/internal/application/service"
	"github.com/eshaffer321/invoice-match-backend/internal/domain/subsetmatch"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

// PrintHeader prints the command header
func PrintHeader(w io.Writer, command string, dryRun bool) {
	mode := "PRODUCTION"
	if dryRun {
		mode = "DRY-RUN"
	}
	fmt.Fprintf(w, "invoice-match: %s (%s mode)\n", command, mode)
}

// PrintMatchResult prints the outcome of a stateless search
func PrintMatchResult(w io.Writer, result subsetmatch.Result) {
	fmt.Fprintf(w, "Outcome: %s (explored %d, %s)\n", result.Outcome, result.Explored, result.Elapsed.Round(time.Microsecond))
	if !result.Matched() {
		return
	}
	for _, line := range result.Lines {
		fmt.Fprintf(w, "  line %s: %s\n", line.Line, line.AmountToInvoice.String())
	}
	fmt.Fprintf(w, "Total: %s\n", result.Total().String())
}

// PrintLink prints one link decision
func PrintLink(w io.Writer, link *storage.LinkRecord) {
	fmt.Fprintf(w, "Extraction: %s\n", link.ExtractionID)
	fmt.Fprintf(w, "Strategy:   %s\n", link.Strategy)
	if link.Searched {
		fmt.Fprintf(w, "Outcome:    %s (%d candidates)\n", link.Outcome, link.CandidateCount)
	}
	fmt.Fprintf(w, "Orders:     %s\n", formatIDs(link.OrderIDs))
	fmt.Fprintf(w, "Lines:      %s\n", formatIDs(link.LineIDs))
	fmt.Fprintf(w, "Goal:       %s\n", link.GoalTotal.String())
	fmt.Fprintf(w, "Matched:    %s\n", link.MatchedTotal.String())
}

// PrintBatchSummary prints the batch result summary
func PrintBatchSummary(w io.Writer, result *service.BatchResult) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Summary: Run=%d Found=%d Linked=%d Unlinked=%d Errors=%d\n",
		result.RunID,
		result.Found,
		result.Linked,
		result.Unlinked,
		result.Errored)

	if len(result.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, err := range result.Errors {
			fmt.Fprintf(w, "  - %v\n", err)
		}
	}
}

// PrintStats prints repository statistics
func PrintStats(w io.Writer, stats *storage.Stats) {
	fmt.Fprintln(w, "\n=== Match Statistics ===")
	fmt.Fprintf(w, "Extractions: %d (pending %d, linked %d, unlinked %d)\n",
		stats.TotalExtractions, stats.Pending, stats.Linked, stats.Unlinked)
	fmt.Fprintf(w, "Link decisions: %d\n", stats.TotalLinks)
	printCounts(w, "Strategies", stats.StrategyCounts)
	printCounts(w, "Search outcomes", stats.OutcomeCounts)
	fmt.Fprintln(w)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-14s %d\n", k, counts[k])
	}
}

func formatIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}

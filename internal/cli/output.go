package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
)

// PrintHeader prints the application header
func PrintHeader(w io.Writer, mode string) {
	fmt.Fprintf(w, "booking-sync: %s\n", mode)
}

// PrintResult prints the outcome of a single booking sync
func PrintResult(w io.Writer, r *appsync.Result) {
	ref := r.BookingReference
	if ref == "" {
		ref = r.BookingID
	}

	switch {
	case r.Skipped:
		fmt.Fprintf(w, "SKIP  %s (%s) synced recently\n", ref, r.Provider)
	case r.Success:
		fmt.Fprintf(w, "OK    %s (%s) %d change(s) in %s\n", ref, r.Provider, len(r.Changes), r.Duration.Round(time.Millisecond))
		for _, c := range r.Changes {
			fmt.Fprintf(w, "      [%s] %s: %s -> %s\n", c.Significance, c.Field, c.OldValue, c.NewValue)
		}
	default:
		fmt.Fprintf(w, "FAIL  %s: %s\n", ref, r.Error)
	}
}

// PrintBatchSummary prints every result followed by the batch totals
func PrintBatchSummary(w io.Writer, br *appsync.BatchResult) {
	for _, r := range br.Results {
		PrintResult(w, r)
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Summary: Total=%d Synced=%d Failed=%d Duration=%s",
		br.Total, br.Synced, br.Failed, br.Duration.Round(time.Millisecond))
	if br.RunID > 0 {
		fmt.Fprintf(w, " Run=%d", br.RunID)
	}
	fmt.Fprintln(w)
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

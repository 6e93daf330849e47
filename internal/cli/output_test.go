package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsync "github.com/eshaffer321/booking-sync-backend/internal/application/sync"
)

func TestPrintResult(t *testing.T) {
	tests := []struct {
		name   string
		result *appsync.Result
		want   []string
	}{
		{
			name: "synced with changes",
			result: &appsync.Result{
				Success:          true,
				BookingID:        "b1",
				BookingReference: "BK-1001",
				Provider:         "duffel",
				Duration:         1234 * time.Microsecond,
				Changes: []appsync.Change{
					{Field: "provider_status", OldValue: "confirmed", NewValue: "cancelled", Significance: appsync.SignificanceCritical},
				},
			},
			want: []string{"OK    BK-1001 (duffel) 1 change(s)", "[critical] provider_status: confirmed -> cancelled"},
		},
		{
			name:   "skipped",
			result: &appsync.Result{Success: true, Skipped: true, BookingID: "b2", BookingReference: "BK-1002", Provider: "duffel"},
			want:   []string{"SKIP  BK-1002 (duffel) synced recently"},
		},
		{
			name:   "failed without reference",
			result: &appsync.Result{BookingID: "missing", Error: "booking not found"},
			want:   []string{"FAIL  missing: booking not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintResult(&buf, tt.result)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestPrintBatchSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintBatchSummary(&buf, &appsync.BatchResult{
		RunID:  4,
		Total:  2,
		Synced: 1,
		Failed: 1,
		Results: []*appsync.Result{
			{Success: true, BookingReference: "BK-1", Provider: "duffel"},
			{BookingReference: "BK-2", Error: "no external order id"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "OK    BK-1")
	assert.Contains(t, out, "FAIL  BK-2: no external order id")
	assert.Contains(t, out, "Summary: Total=2 Synced=1 Failed=1")
	assert.Contains(t, out, "Run=4")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, &appsync.BatchResult{Total: 1, Synced: 1, Results: []*appsync.Result{}}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 1, decoded["total"])
}

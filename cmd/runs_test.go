package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankpulse/diagnose-cli/internal/model"
)

func testRuns() []model.Run {
	finished := time.Date(2026, 8, 20, 9, 15, 30, 0, time.UTC)
	return []model.Run{
		{
			ID:             "0b2e9a4c-1111-2222-3333-444455556666",
			SiteID:         "acme.example",
			Type:           model.RunTypeFull,
			Status:         model.RunStatusCompleted,
			AsOf:           time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			StartedAt:      time.Date(2026, 8, 20, 9, 15, 0, 0, time.UTC),
			FinishedAt:     &finished,
			Classification: model.ClassPageClusterRegression,
			Confidence:     model.ConfidenceHigh,
			AnomalyCount:   4,
			TicketCount:    2,
		},
		{
			ID:        "9f8e7d6c-aaaa-bbbb-cccc-ddddeeeeffff",
			SiteID:    "a-site-with-an-extremely-long-hostname.example.com",
			Type:      model.RunTypeSmoke,
			Status:    model.RunStatusFailed,
			AsOf:      time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC),
			StartedAt: time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestFormatRunsList(t *testing.T) {
	var buf bytes.Buffer
	formatRunsList(&buf, testRuns())

	out := buf.String()
	assert.Contains(t, out, "0b2e9a4c")
	assert.NotContains(t, out, "0b2e9a4c-1111")
	assert.Contains(t, out, "acme.example")
	assert.Contains(t, out, "PAGE_CLUSTER_REGRESSION")
	assert.Contains(t, out, "2026-08-20")
	// Long site names get truncated.
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, "extremely-long-hostname.example.com")
}

func TestComputeRunStats(t *testing.T) {
	s := computeRunStats(testRuns())

	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 0, s.Running)
	assert.Equal(t, 2, s.Tickets)
	assert.Equal(t, 1, s.ByClassification[model.ClassPageClusterRegression])
	assert.InDelta(t, 30.0, s.AvgDurSecs, 0.01)
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, computeRunStats(testRuns()))

	out := buf.String()
	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "PAGE_CLUSTER_REGRESSION")
	assert.Contains(t, out, "Avg duration:")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "0b2e9a4c", truncateID("0b2e9a4c-1111-2222-3333-444455556666"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestParseRunType(t *testing.T) {
	typ, err := parseRunType("")
	require.NoError(t, err)
	assert.Equal(t, model.RunTypeFull, typ)

	typ, err = parseRunType("smoke")
	require.NoError(t, err)
	assert.Equal(t, model.RunTypeSmoke, typ)

	_, err = parseRunType("hourly")
	require.Error(t, err)
}

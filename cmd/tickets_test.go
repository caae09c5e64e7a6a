package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rankpulse/diagnose-cli/internal/model"
)

func TestFormatTicketsList(t *testing.T) {
	tickets := []model.Ticket{
		{
			ID:       "TICK-1001",
			Title:    "Fix robots.txt disallow (/services/*)",
			Owner:    model.OwnerDEV,
			Priority: model.PriorityP0,
			Status:   model.TicketOpen,
			Impact:   model.ImpactEstimate{RecoverableClicks: 63.4},
		},
		{
			ID:       "TICK-1002",
			Title:    strings.Repeat("review very long ticket title ", 5),
			Owner:    model.OwnerSEO,
			Priority: model.PriorityP2,
			Status:   model.TicketDismissed,
			Impact:   model.ImpactEstimate{RecoverableClicks: 12},
		},
	}

	var buf bytes.Buffer
	formatTicketsList(&buf, tickets)

	out := buf.String()
	assert.Contains(t, out, "TICK-1001")
	assert.Contains(t, out, "P0")
	assert.Contains(t, out, "DEV")
	assert.Contains(t, out, "63")
	assert.Contains(t, out, "...")

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(line), 160, "line too wide: %q", line)
	}
}

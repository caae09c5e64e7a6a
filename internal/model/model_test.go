package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, RunStatusRunning.Terminal())
	assert.True(t, RunStatusCompleted.Terminal())
	assert.True(t, RunStatusFailed.Terminal())
}

func TestPriorityTierOrdering(t *testing.T) {
	t.Parallel()

	assert.Less(t, PriorityP0.Tier(), PriorityP1.Tier())
	assert.Less(t, PriorityP1.Tier(), PriorityP2.Tier())
	assert.Less(t, PriorityP2.Tier(), PriorityP3.Tier())
	assert.Greater(t, Priority("P9").Tier(), PriorityP3.Tier())
}

func TestConfidenceAtLeast(t *testing.T) {
	t.Parallel()

	assert.True(t, ConfidenceHigh.AtLeast(ConfidenceMedium))
	assert.True(t, ConfidenceMedium.AtLeast(ConfidenceMedium))
	assert.False(t, ConfidenceLow.AtLeast(ConfidenceMedium))
	assert.True(t, ConfidenceLow.AtLeast(ConfidenceLow))
}

func TestAnomalyTopScope(t *testing.T) {
	t.Parallel()

	assert.True(t, Anomaly{Metric: "clicks"}.TopScope())
	assert.True(t, Anomaly{Scope: map[string]string{"source": "search"}}.TopScope())
	assert.False(t, Anomaly{Scope: map[string]string{"cluster": "/services/*"}}.TopScope())
}

package ticket

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankpulse/diagnose-cli/internal/config"
	"github.com/rankpulse/diagnose-cli/internal/model"
)

type memStore struct {
	tickets []model.Ticket
	seq     int64
}

func (m *memStore) GetTicketByRunAndKey(_ context.Context, runID string, key model.HypothesisKey) (*model.Ticket, error) {
	for i := range m.tickets {
		if m.tickets[i].RunID == runID && m.tickets[i].HypothesisKey == key {
			return &m.tickets[i], nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateTicket(_ context.Context, t *model.Ticket) error {
	m.tickets = append(m.tickets, *t)
	return nil
}

func (m *memStore) NextTicketSeq(_ context.Context) (int64, error) {
	m.seq++
	return 1000 + m.seq, nil
}

func testCfg() config.DiagnosisConfig {
	return config.DiagnosisConfig{MaxTickets: 3, MinTextLength: 300}
}

func hyp(rank int, key model.HypothesisKey, conf model.Confidence, evidence ...model.EvidenceBlock) model.Hypothesis {
	return model.Hypothesis{
		RunID:      "run-1",
		Rank:       rank,
		Key:        key,
		Confidence: conf,
		Evidence:   evidence,
	}
}

func TestSynthesizeTopRanked(t *testing.T) {
	store := &memStore{}
	s := NewSynthesizer(store, testCfg())

	hyps := []model.Hypothesis{
		hyp(1, model.HypRobotsOrNoindex, model.ConfidenceHigh, model.EvidenceBlock{
			Statement: "12 of 40 checked pages are blocked by robots.txt",
		}),
		hyp(2, model.HypRedirectOrHTTP, model.ConfidenceMedium),
		hyp(3, model.HypSeasonality, model.ConfidenceLow),
	}
	losses := []model.ClusterLoss{
		{Cluster: "/services/*", BaselineClicks: 900, CurrentClicks: 300, Loss: 600, Pages: 12, Dominant: true},
	}

	created, err := s.Synthesize(context.Background(), "run-1", hyps, losses)
	require.NoError(t, err)
	require.Len(t, created, 2, "low confidence hypotheses never become tickets")

	first := created[0]
	assert.Equal(t, "TICK-1001", first.ID)
	assert.Equal(t, model.HypRobotsOrNoindex, first.HypothesisKey)
	assert.Equal(t, model.OwnerDEV, first.Owner)
	assert.Equal(t, model.PriorityP0, first.Priority)
	assert.Equal(t, model.TicketOpen, first.Status)
	assert.Contains(t, first.Title, "/services/*")
	assert.Equal(t, 12, first.Impact.AffectedPages)
	assert.InDelta(t, 600*0.9, first.Impact.RecoverableClicks, 0.001)
	assert.Contains(t, first.EvidenceRefs[0], "robots.txt")

	// Step templates are instantiated with the dominant cluster.
	assert.Contains(t, first.Steps[1], "/services/*")
}

func TestSynthesizeIdempotent(t *testing.T) {
	store := &memStore{}
	s := NewSynthesizer(store, testCfg())

	hyps := []model.Hypothesis{hyp(1, model.HypCanonicalMismatch, model.ConfidenceHigh)}

	created, err := s.Synthesize(context.Background(), "run-1", hyps, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)

	again, err := s.Synthesize(context.Background(), "run-1", hyps, nil)
	require.NoError(t, err)
	assert.Empty(t, again, "re-running the same run creates no duplicate tickets")
	assert.Len(t, store.tickets, 1)
}

func TestSynthesizeThinContentStepUsesConfiguredFloor(t *testing.T) {
	store := &memStore{}
	cfg := testCfg()
	cfg.MinTextLength = 450
	s := NewSynthesizer(store, cfg)

	// No min_text_length in the evidence data, so the step template falls
	// back to the configured floor.
	hyps := []model.Hypothesis{hyp(1, model.HypThinContentOrSSR, model.ConfidenceHigh)}

	created, err := s.Synthesize(context.Background(), "run-1", hyps, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)

	var found bool
	for _, step := range created[0].Steps {
		if strings.Contains(step, "450") {
			found = true
		}
	}
	assert.True(t, found, "steps should carry the configured text-length floor")
}

func TestSynthesizeMaxTickets(t *testing.T) {
	store := &memStore{}
	cfg := testCfg()
	cfg.MaxTickets = 2
	s := NewSynthesizer(store, cfg)

	hyps := []model.Hypothesis{
		hyp(1, model.HypRobotsOrNoindex, model.ConfidenceHigh),
		hyp(2, model.HypCanonicalMismatch, model.ConfidenceHigh),
		hyp(3, model.HypRedirectOrHTTP, model.ConfidenceMedium),
	}

	created, err := s.Synthesize(context.Background(), "run-1", hyps, nil)
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestTrackingOwnerRouting(t *testing.T) {
	store := &memStore{}
	s := NewSynthesizer(store, testCfg())

	// Tag confirmed missing: ADS owns the fix.
	withTag := []model.Hypothesis{hyp(1, model.HypTrackingBroken, model.ConfidenceHigh, model.EvidenceBlock{
		Statement: "8 of 20 checked pages are missing the analytics tag",
		Data:      map[string]any{"missing_tag": true, "example_url": "/services/plumbing"},
	})}
	created, err := s.Synthesize(context.Background(), "run-1", withTag, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, model.OwnerADS, created[0].Owner)
	assert.Contains(t, created[0].Steps[0], "/services/plumbing")

	// Tag present everywhere: something else broke attribution, route to DEV.
	withoutTag := []model.Hypothesis{hyp(1, model.HypTrackingBroken, model.ConfidenceMedium, model.EvidenceBlock{
		Statement: "sessions dropped while search clicks held steady",
		Data:      map[string]any{"missing_tag": false},
	})}
	created, err = s.Synthesize(context.Background(), "run-2", withoutTag, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, model.OwnerDEV, created[0].Owner)
}

func TestThinContentStepUsesThreshold(t *testing.T) {
	store := &memStore{}
	s := NewSynthesizer(store, testCfg())

	hyps := []model.Hypothesis{hyp(1, model.HypThinContentOrSSR, model.ConfidenceHigh, model.EvidenceBlock{
		Statement: "9 of 30 checked pages render under the text floor",
		Data:      map[string]any{"min_text_length": 300},
	})}

	created, err := s.Synthesize(context.Background(), "run-1", hyps, nil)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Contains(t, created[0].Steps[0], "300 character")
}

func TestNoQualifyingHypotheses(t *testing.T) {
	store := &memStore{}
	s := NewSynthesizer(store, testCfg())

	hyps := []model.Hypothesis{hyp(1, model.HypSeasonality, model.ConfidenceLow)}
	created, err := s.Synthesize(context.Background(), "run-1", hyps, nil)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Empty(t, store.tickets)
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankpulse/diagnose-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func asOf(t *testing.T) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", "2026-08-20")
	require.NoError(t, err)
	return d
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "site-1", model.RunTypeFull, asOf(t))
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	run.Status = model.RunStatusCompleted
	run.Summary = "clicks down 42% in /services/*"
	run.Classification = model.ClassPageClusterRegression
	run.Confidence = model.ConfidenceHigh
	run.AnomalyCount = 3
	run.TicketCount = 1
	run.Sources = []model.SourceStatus{{Source: "search", Available: true, Rows: 17}}
	require.NoError(t, s.CompleteRun(ctx, run))
	require.NotNil(t, run.FinishedAt)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, model.ClassPageClusterRegression, got.Classification)
	assert.Equal(t, 3, got.AnomalyCount)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "search", got.Sources[0].Source)
	assert.NotNil(t, got.FinishedAt)
}

func TestTerminalRunsAreImmutable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "site-1", model.RunTypeFull, asOf(t))
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed))

	// Any further mutation is refused.
	err = s.UpdateRunStatus(ctx, run.ID, model.RunStatusCompleted)
	assert.Error(t, err)

	run.Status = model.RunStatusCompleted
	err = s.CompleteRun(ctx, run)
	assert.Error(t, err)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	assert.ErrorContains(t, err, "not found")
}

func TestListRunsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r1, err := s.CreateRun(ctx, "site-1", model.RunTypeFull, asOf(t))
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "site-2", model.RunTypeSmoke, asOf(t))
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, r1.ID, model.RunStatusCompleted))

	bySite, err := s.ListRuns(ctx, RunFilter{SiteID: "site-1"})
	require.NoError(t, err)
	require.Len(t, bySite, 1)
	assert.Equal(t, r1.ID, bySite[0].ID)

	byStatus, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusRunning})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "site-2", byStatus[0].SiteID)

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAnomalyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "site-1", model.RunTypeFull, asOf(t))
	require.NoError(t, err)

	z := -2.7
	anomalies := []model.Anomaly{
		{
			Type:      model.AnomalyTrafficDrop,
			Metric:    model.MetricClicks,
			StartDate: asOf(t).AddDate(0, 0, -2),
			EndDate:   asOf(t),
			Baseline:  120,
			Observed:  64,
			DeltaPct:  -46.7,
			ZScore:    &z,
		},
		{
			Type:     model.AnomalyPageClusterDrop,
			Metric:   model.MetricClicks,
			Baseline: 80,
			Observed: 20,
			DeltaPct: -75,
			Scope:    map[string]string{"cluster": "/services/*"},
		},
	}
	require.NoError(t, s.InsertAnomalies(ctx, run.ID, anomalies))

	got, err := s.ListAnomalies(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by delta_pct ascending: the deepest drop first.
	assert.Equal(t, model.AnomalyPageClusterDrop, got[0].Type)
	assert.Equal(t, "/services/*", got[0].Scope["cluster"])
	require.NotNil(t, got[1].ZScore)
	assert.InDelta(t, -2.7, *got[1].ZScore, 0.001)
	assert.Nil(t, got[0].ZScore)
}

func TestClusterLossRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "site-1", model.RunTypeFull, asOf(t))
	require.NoError(t, err)

	losses := []model.ClusterLoss{
		{Cluster: "/blog/*", BaselineClicks: 50, CurrentClicks: 40, Loss: 10, LossShare: 0.1, Pages: 8},
		{Cluster: "/services/*", BaselineClicks: 300, CurrentClicks: 100, Loss: 200, LossShare: 0.8, Dominant: true, Pages: 12},
	}
	require.NoError(t, s.InsertClusterLosses(ctx, run.ID, losses))

	got, err := s.ListClusterLosses(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/services/*", got[0].Cluster)
	assert.True(t, got[0].Dominant)
	assert.Equal(t, 12, got[0].Pages)
}

func TestHypothesisRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "site-1", model.RunTypeFull, asOf(t))
	require.NoError(t, err)

	hyps := []model.Hypothesis{
		{
			Rank:       1,
			Key:        model.HypRobotsOrNoindex,
			Confidence: model.ConfidenceHigh,
			Summary:    "12 pages in /services/* blocked by robots.txt",
			Evidence: []model.EvidenceBlock{{
				Type:      model.EvidenceCheck,
				Statement: "12 of 40 checked pages are blocked",
				Strength:  model.StrengthStrong,
			}},
			MissingData: []string{"no crawl data before 2026-08-01"},
		},
		{Rank: 2, Key: model.HypSeasonality, Confidence: model.ConfidenceLow},
	}
	require.NoError(t, s.InsertHypotheses(ctx, run.ID, hyps))

	got, err := s.ListHypotheses(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.HypRobotsOrNoindex, got[0].Key)
	require.Len(t, got[0].Evidence, 1)
	assert.Equal(t, model.StrengthStrong, got[0].Evidence[0].Strength)
	assert.Empty(t, got[1].Evidence)
}

func TestTicketCRUDAndSeq(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "site-1", model.RunTypeFull, asOf(t))
	require.NoError(t, err)

	seq1, err := s.NextTicketSeq(ctx)
	require.NoError(t, err)
	seq2, err := s.NextTicketSeq(ctx)
	require.NoError(t, err)
	assert.Greater(t, seq2, seq1)

	now := time.Now().UTC()
	tk := &model.Ticket{
		ID:             "TICK-1001",
		RunID:          run.ID,
		HypothesisKey:  model.HypRobotsOrNoindex,
		Title:          "Pages blocked by robots.txt or noindex (/services/*)",
		Owner:          model.OwnerDEV,
		Priority:       model.PriorityP0,
		Status:         model.TicketOpen,
		Steps:          []string{"Diff robots.txt"},
		ExpectedImpact: model.ConfidenceHigh,
		Impact:         model.ImpactEstimate{AffectedPages: 12, RecoverableClicks: 180},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.CreateTicket(ctx, tk))

	got, err := s.GetTicketByRunAndKey(ctx, run.ID, model.HypRobotsOrNoindex)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.OwnerDEV, got.Owner)
	assert.Equal(t, 12, got.Impact.AffectedPages)

	// No ticket for a key that was never synthesized.
	missing, err := s.GetTicketByRunAndKey(ctx, run.ID, model.HypSeasonality)
	require.NoError(t, err)
	assert.Nil(t, missing)

	// One ticket per (run, hypothesis): a duplicate insert fails.
	dup := *tk
	dup.ID = "TICK-1002"
	assert.Error(t, s.CreateTicket(ctx, &dup))

	require.NoError(t, s.UpdateTicketStatus(ctx, tk.ID, model.TicketDone))
	listed, err := s.ListTickets(ctx, TicketFilter{RunID: run.ID, Status: model.TicketDone})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, model.TicketDone, listed[0].Status)
}

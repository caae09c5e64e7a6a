package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankpulse/diagnose-cli/internal/model"
	"github.com/rankpulse/diagnose-cli/internal/resilience"
)

func sampleResult() *model.DiagnosisResult {
	return &model.DiagnosisResult{
		Run: model.Run{
			ID:             "run-1",
			SiteID:         "acme.example",
			Status:         model.RunStatusCompleted,
			Classification: model.ClassPageClusterRegression,
			Confidence:     model.ConfidenceHigh,
			Summary:        "clicks down 62% concentrated in /services/*",
		},
		Anomalies: []model.Anomaly{{Metric: "clicks"}, {Metric: "sessions"}},
		Tickets: []model.Ticket{
			{ID: "TICK-1001", Title: "Fix robots.txt disallow (/services/*)", Owner: model.OwnerDEV, Priority: model.PriorityP0},
		},
	}
}

func TestNotifyRunPostsPayload(t *testing.T) {
	var got RunPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL, WithRateLimit(0))
	require.NoError(t, n.NotifyRun(context.Background(), sampleResult()))

	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "acme.example", got.SiteID)
	assert.Equal(t, model.ClassPageClusterRegression, got.Classification)
	assert.Equal(t, 2, got.AnomalyCount)
	require.Len(t, got.Tickets, 1)
	assert.Equal(t, "TICK-1001", got.Tickets[0].ID)
	assert.Equal(t, model.OwnerDEV, got.Tickets[0].Owner)
}

func TestNotifyRunNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "channel archived", http.StatusGone)
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL, WithRateLimit(0))
	err := n.NotifyRun(context.Background(), sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
	assert.Contains(t, err.Error(), "channel archived")
}

func TestNotifyRunRetriesTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhook(srv.URL,
		WithRateLimit(0),
		WithRetryPolicy(resilience.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
	)
	require.NoError(t, n.NotifyRun(context.Background(), sampleResult()))
	assert.Equal(t, 3, calls)
}

func TestNotifyRunRateLimitCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Burst of 1 allows the first delivery; the second blocks on the limiter
	// until the context is cancelled.
	n := NewWebhook(srv.URL, WithRateLimit(1))
	require.NoError(t, n.NotifyRun(context.Background(), sampleResult()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.NotifyRun(ctx, sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

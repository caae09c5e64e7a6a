// Package notify posts run summaries to an external webhook, typically a chat
// channel or an incident intake endpoint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/rankpulse/diagnose-cli/internal/model"
	"github.com/rankpulse/diagnose-cli/internal/resilience"
)

// Notifier delivers run summaries to an external system.
type Notifier interface {
	NotifyRun(ctx context.Context, result *model.DiagnosisResult) error
}

// RunPayload is the JSON body posted to the webhook.
type RunPayload struct {
	RunID          string               `json:"run_id"`
	SiteID         string               `json:"site_id"`
	Status         model.RunStatus      `json:"status"`
	Classification model.Classification `json:"classification"`
	Confidence     model.Confidence     `json:"confidence"`
	Summary        string               `json:"summary"`
	AnomalyCount   int                  `json:"anomaly_count"`
	Tickets        []TicketRef          `json:"tickets,omitempty"`
}

// TicketRef is the compact ticket view included in webhook payloads.
type TicketRef struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Owner    model.Owner    `json:"owner"`
	Priority model.Priority `json:"priority"`
}

// Option configures the webhook notifier.
type Option func(*webhookNotifier)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(n *webhookNotifier) {
		n.http = hc
	}
}

// WithRateLimit overrides the default delivery rate (events per minute).
func WithRateLimit(perMinute float64) Option {
	return func(n *webhookNotifier) {
		if perMinute > 0 {
			n.limiter = rate.NewLimiter(rate.Limit(perMinute/60), 1)
		} else {
			n.limiter = nil
		}
	}
}

// WithRetryPolicy overrides the default retry policy for failed deliveries.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(n *webhookNotifier) {
		n.retry = p
	}
}

type webhookNotifier struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
}

// NewWebhook creates a notifier posting to url. Deliveries are throttled to
// 30 events per minute by default and retried on transient failures.
func NewWebhook(url string, opts ...Option) Notifier {
	n := &webhookNotifier{
		url:     url,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(0.5, 1),
		retry:   resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *webhookNotifier) NotifyRun(ctx context.Context, result *model.DiagnosisResult) error {
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "notify: rate limit")
		}
	}

	payload := RunPayload{
		RunID:          result.Run.ID,
		SiteID:         result.Run.SiteID,
		Status:         result.Run.Status,
		Classification: result.Run.Classification,
		Confidence:     result.Run.Confidence,
		Summary:        result.Run.Summary,
		AnomalyCount:   len(result.Anomalies),
	}
	for _, t := range result.Tickets {
		payload.Tickets = append(payload.Tickets, TicketRef{
			ID:       t.ID,
			Title:    t.Title,
			Owner:    t.Owner,
			Priority: t.Priority,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "notify: marshal payload")
	}

	err = n.retry.Do(ctx, "webhook", func(ctx context.Context) error {
		return n.post(ctx, body)
	})
	return eris.Wrap(err, "notify: post webhook")
}

func (n *webhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &resilience.StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}
	return nil
}

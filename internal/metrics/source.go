// Package metrics provides read access to the daily rollups the diagnosis
// engine consumes. The engine never crawls or calls third-party APIs itself;
// upstream collectors populate these tables.
package metrics

import (
	"context"
	"time"
)

// SearchDaily is one day of search-console rollup for a page/query pair.
type SearchDaily struct {
	Date        time.Time `json:"date"`
	Page        string    `json:"page"`
	Query       string    `json:"query,omitempty"`
	Clicks      float64   `json:"clicks"`
	Impressions float64   `json:"impressions"`
	CTR         float64   `json:"ctr"`
	Position    float64   `json:"position"`
}

// AnalyticsDaily is one day of analytics rollup for a landing page.
type AnalyticsDaily struct {
	Date            time.Time `json:"date"`
	LandingPage     string    `json:"landing_page"`
	Sessions        float64   `json:"sessions"`
	Users           float64   `json:"users"`
	EngagedSessions float64   `json:"engaged_sessions"`
	Conversions     float64   `json:"conversions"`
}

// PageCheck is one page-level technical check snapshot.
type PageCheck struct {
	URL               string    `json:"url"`
	Date              time.Time `json:"date"`
	HTTPStatus        int       `json:"http_status"`
	RedirectTarget    string    `json:"redirect_target,omitempty"`
	Canonical         string    `json:"canonical,omitempty"`
	MetaRobots        string    `json:"meta_robots,omitempty"`
	RobotsDisallowed  bool      `json:"robots_disallowed"`
	HasAnalyticsTag   bool      `json:"has_analytics_tag"`
	HasStructuredData bool      `json:"has_structured_data"`
	InternalLinks     int       `json:"internal_links"`
	TextLength        int       `json:"text_length"`
}

// Source is the read contract over per-day rollups. Implementations may block
// or fail; callers apply their own timeouts.
type Source interface {
	SearchDaily(ctx context.Context, siteID string, from, to time.Time) ([]SearchDaily, error)
	AnalyticsDaily(ctx context.Context, siteID string, from, to time.Time) ([]AnalyticsDaily, error)
	PageChecks(ctx context.Context, siteID string, from, to time.Time) ([]PageCheck, error)
}

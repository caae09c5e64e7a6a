package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rankpulse/diagnose-cli/internal/db"
)

// PostgresSource reads and writes rollups in a Postgres database shared with
// the run store.
type PostgresSource struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to a Postgres rollup database.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresSource, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: parse database url")
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "metrics: ping")
	}

	return &PostgresSource{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests and by callers
// that share a pool with the run store.
func NewPostgresWithPool(pool db.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS search_daily (
	site_id     TEXT NOT NULL,
	date        DATE NOT NULL,
	page        TEXT NOT NULL,
	query       TEXT NOT NULL DEFAULT '',
	clicks      DOUBLE PRECISION NOT NULL DEFAULT 0,
	impressions DOUBLE PRECISION NOT NULL DEFAULT 0,
	ctr         DOUBLE PRECISION NOT NULL DEFAULT 0,
	position    DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (site_id, date, page, query)
);

CREATE TABLE IF NOT EXISTS analytics_daily (
	site_id          TEXT NOT NULL,
	date             DATE NOT NULL,
	landing_page     TEXT NOT NULL,
	sessions         DOUBLE PRECISION NOT NULL DEFAULT 0,
	users            DOUBLE PRECISION NOT NULL DEFAULT 0,
	engaged_sessions DOUBLE PRECISION NOT NULL DEFAULT 0,
	conversions      DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (site_id, date, landing_page)
);

CREATE TABLE IF NOT EXISTS page_checks (
	site_id             TEXT NOT NULL,
	url                 TEXT NOT NULL,
	date                DATE NOT NULL,
	http_status         INTEGER NOT NULL DEFAULT 0,
	redirect_target     TEXT NOT NULL DEFAULT '',
	canonical           TEXT NOT NULL DEFAULT '',
	meta_robots         TEXT NOT NULL DEFAULT '',
	robots_disallowed   BOOLEAN NOT NULL DEFAULT FALSE,
	has_analytics_tag   BOOLEAN NOT NULL DEFAULT FALSE,
	has_structured_data BOOLEAN NOT NULL DEFAULT FALSE,
	internal_links      INTEGER NOT NULL DEFAULT 0,
	text_length         INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (site_id, url, date)
);

CREATE INDEX IF NOT EXISTS idx_search_daily_site_date ON search_daily(site_id, date);
CREATE INDEX IF NOT EXISTS idx_analytics_daily_site_date ON analytics_daily(site_id, date);
CREATE INDEX IF NOT EXISTS idx_page_checks_site_date ON page_checks(site_id, date);
`

// Migrate creates the rollup tables.
func (s *PostgresSource) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "metrics: migrate")
}

// Close releases the pool if this source owns it.
func (s *PostgresSource) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresSource) SearchDaily(ctx context.Context, siteID string, from, to time.Time) ([]SearchDaily, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, page, query, clicks, impressions, ctr, position
		 FROM search_daily
		 WHERE site_id = $1 AND date >= $2 AND date <= $3
		 ORDER BY date, page, query`,
		siteID, from, to,
	)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: query search_daily")
	}
	defer rows.Close()

	var out []SearchDaily
	for rows.Next() {
		var r SearchDaily
		if err := rows.Scan(&r.Date, &r.Page, &r.Query, &r.Clicks, &r.Impressions, &r.CTR, &r.Position); err != nil {
			return nil, eris.Wrap(err, "metrics: scan search_daily")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "metrics: iterate search_daily")
}

func (s *PostgresSource) AnalyticsDaily(ctx context.Context, siteID string, from, to time.Time) ([]AnalyticsDaily, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, landing_page, sessions, users, engaged_sessions, conversions
		 FROM analytics_daily
		 WHERE site_id = $1 AND date >= $2 AND date <= $3
		 ORDER BY date, landing_page`,
		siteID, from, to,
	)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: query analytics_daily")
	}
	defer rows.Close()

	var out []AnalyticsDaily
	for rows.Next() {
		var r AnalyticsDaily
		if err := rows.Scan(&r.Date, &r.LandingPage, &r.Sessions, &r.Users, &r.EngagedSessions, &r.Conversions); err != nil {
			return nil, eris.Wrap(err, "metrics: scan analytics_daily")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "metrics: iterate analytics_daily")
}

func (s *PostgresSource) PageChecks(ctx context.Context, siteID string, from, to time.Time) ([]PageCheck, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url, date, http_status, redirect_target, canonical, meta_robots,
		        robots_disallowed, has_analytics_tag, has_structured_data, internal_links, text_length
		 FROM page_checks
		 WHERE site_id = $1 AND date >= $2 AND date <= $3
		 ORDER BY date, url`,
		siteID, from, to,
	)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: query page_checks")
	}
	defer rows.Close()

	var out []PageCheck
	for rows.Next() {
		var r PageCheck
		if err := rows.Scan(&r.URL, &r.Date, &r.HTTPStatus, &r.RedirectTarget, &r.Canonical, &r.MetaRobots,
			&r.RobotsDisallowed, &r.HasAnalyticsTag, &r.HasStructuredData, &r.InternalLinks, &r.TextLength); err != nil {
			return nil, eris.Wrap(err, "metrics: scan page_checks")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "metrics: iterate page_checks")
}

// InsertSearchDaily bulk-upserts search rollup rows through a temp-table COPY.
func (s *PostgresSource) InsertSearchDaily(ctx context.Context, siteID string, rows []SearchDaily) error {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, []any{siteID, r.Date, r.Page, r.Query, r.Clicks, r.Impressions, r.CTR, r.Position})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "search_daily",
		Columns:      []string{"site_id", "date", "page", "query", "clicks", "impressions", "ctr", "position"},
		ConflictKeys: []string{"site_id", "date", "page", "query"},
		UpdateCols:   []string{"clicks", "impressions", "ctr", "position"},
	}, data)
	return eris.Wrap(err, "metrics: upsert search_daily")
}

// InsertAnalyticsDaily bulk-upserts analytics rollup rows.
func (s *PostgresSource) InsertAnalyticsDaily(ctx context.Context, siteID string, rows []AnalyticsDaily) error {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, []any{siteID, r.Date, r.LandingPage, r.Sessions, r.Users, r.EngagedSessions, r.Conversions})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "analytics_daily",
		Columns:      []string{"site_id", "date", "landing_page", "sessions", "users", "engaged_sessions", "conversions"},
		ConflictKeys: []string{"site_id", "date", "landing_page"},
		UpdateCols:   []string{"sessions", "users", "engaged_sessions", "conversions"},
	}, data)
	return eris.Wrap(err, "metrics: upsert analytics_daily")
}

// InsertPageChecks bulk-upserts page technical check rows.
func (s *PostgresSource) InsertPageChecks(ctx context.Context, siteID string, rows []PageCheck) error {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, []any{siteID, r.URL, r.Date, r.HTTPStatus, r.RedirectTarget, r.Canonical,
			r.MetaRobots, r.RobotsDisallowed, r.HasAnalyticsTag, r.HasStructuredData, r.InternalLinks, r.TextLength})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:   "page_checks",
		Columns: []string{"site_id", "url", "date", "http_status", "redirect_target", "canonical", "meta_robots", "robots_disallowed", "has_analytics_tag", "has_structured_data", "internal_links", "text_length"},
		ConflictKeys: []string{"site_id", "url", "date"},
		UpdateCols: []string{"http_status", "redirect_target", "canonical", "meta_robots", "robots_disallowed",
			"has_analytics_tag", "has_structured_data", "internal_links", "text_length"},
	}, data)
	return eris.Wrap(err, "metrics: upsert page_checks")
}

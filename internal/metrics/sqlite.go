package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteSource reads rollups from a SQLite database, typically the same file
// the run store uses.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLite opens a SQLite rollup database.
func NewSQLite(dsn string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "metrics: exec %s", pragma)
		}
	}
	return &SQLiteSource{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS search_daily (
	site_id     TEXT NOT NULL,
	date        DATE NOT NULL,
	page        TEXT NOT NULL,
	query       TEXT NOT NULL DEFAULT '',
	clicks      REAL NOT NULL DEFAULT 0,
	impressions REAL NOT NULL DEFAULT 0,
	ctr         REAL NOT NULL DEFAULT 0,
	position    REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (site_id, date, page, query)
);

CREATE TABLE IF NOT EXISTS analytics_daily (
	site_id          TEXT NOT NULL,
	date             DATE NOT NULL,
	landing_page     TEXT NOT NULL,
	sessions         REAL NOT NULL DEFAULT 0,
	users            REAL NOT NULL DEFAULT 0,
	engaged_sessions REAL NOT NULL DEFAULT 0,
	conversions      REAL NOT NULL DEFAULT 0,
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
	robots_disallowed   INTEGER NOT NULL DEFAULT 0,
	has_analytics_tag   INTEGER NOT NULL DEFAULT 0,
	has_structured_data INTEGER NOT NULL DEFAULT 0,
	internal_links      INTEGER NOT NULL DEFAULT 0,
	text_length         INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (site_id, url, date)
);

CREATE INDEX IF NOT EXISTS idx_search_daily_site_date ON search_daily(site_id, date);
CREATE INDEX IF NOT EXISTS idx_analytics_daily_site_date ON analytics_daily(site_id, date);
CREATE INDEX IF NOT EXISTS idx_page_checks_site_date ON page_checks(site_id, date);
`

// Migrate creates the rollup tables.
func (s *SQLiteSource) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "metrics: migrate")
}

// Close closes the underlying database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

const dateLayout = "2006-01-02"

// asDate normalizes driver-scanned timestamps to a UTC midnight date. The
// sqlite driver hands back time.Time for DATE-declared columns.
func asDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *SQLiteSource) SearchDaily(ctx context.Context, siteID string, from, to time.Time) ([]SearchDaily, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, page, query, clicks, impressions, ctr, position
		 FROM search_daily
		 WHERE site_id = ? AND date >= ? AND date <= ?
		 ORDER BY date, page, query`,
		siteID, from.Format(dateLayout), to.Format(dateLayout),
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
		r.Date = asDate(r.Date)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "metrics: iterate search_daily")
}

func (s *SQLiteSource) AnalyticsDaily(ctx context.Context, siteID string, from, to time.Time) ([]AnalyticsDaily, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, landing_page, sessions, users, engaged_sessions, conversions
		 FROM analytics_daily
		 WHERE site_id = ? AND date >= ? AND date <= ?
		 ORDER BY date, landing_page`,
		siteID, from.Format(dateLayout), to.Format(dateLayout),
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
		r.Date = asDate(r.Date)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "metrics: iterate analytics_daily")
}

func (s *SQLiteSource) PageChecks(ctx context.Context, siteID string, from, to time.Time) ([]PageCheck, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, date, http_status, redirect_target, canonical, meta_robots,
		        robots_disallowed, has_analytics_tag, has_structured_data, internal_links, text_length
		 FROM page_checks
		 WHERE site_id = ? AND date >= ? AND date <= ?
		 ORDER BY date, url`,
		siteID, from.Format(dateLayout), to.Format(dateLayout),
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
		r.Date = asDate(r.Date)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "metrics: iterate page_checks")
}

// InsertSearchDaily upserts search rollup rows; used by the import command.
func (s *SQLiteSource) InsertSearchDaily(ctx context.Context, siteID string, rows []SearchDaily) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "metrics: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO search_daily (site_id, date, page, query, clicks, impressions, ctr, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(site_id, date, page, query) DO UPDATE SET
		   clicks=excluded.clicks, impressions=excluded.impressions,
		   ctr=excluded.ctr, position=excluded.position`,
	)
	if err != nil {
		return eris.Wrap(err, "metrics: prepare insert")
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, siteID, r.Date.Format(dateLayout), r.Page, r.Query,
			r.Clicks, r.Impressions, r.CTR, r.Position); err != nil {
			return eris.Wrap(err, "metrics: insert search_daily")
		}
	}
	return eris.Wrap(tx.Commit(), "metrics: commit")
}

// InsertAnalyticsDaily upserts analytics rollup rows.
func (s *SQLiteSource) InsertAnalyticsDaily(ctx context.Context, siteID string, rows []AnalyticsDaily) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "metrics: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO analytics_daily (site_id, date, landing_page, sessions, users, engaged_sessions, conversions)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(site_id, date, landing_page) DO UPDATE SET
		   sessions=excluded.sessions, users=excluded.users,
		   engaged_sessions=excluded.engaged_sessions, conversions=excluded.conversions`,
	)
	if err != nil {
		return eris.Wrap(err, "metrics: prepare insert")
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, siteID, r.Date.Format(dateLayout), r.LandingPage,
			r.Sessions, r.Users, r.EngagedSessions, r.Conversions); err != nil {
			return eris.Wrap(err, "metrics: insert analytics_daily")
		}
	}
	return eris.Wrap(tx.Commit(), "metrics: commit")
}

// InsertPageChecks upserts page technical check rows.
func (s *SQLiteSource) InsertPageChecks(ctx context.Context, siteID string, rows []PageCheck) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "metrics: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO page_checks (site_id, url, date, http_status, redirect_target, canonical, meta_robots,
		   robots_disallowed, has_analytics_tag, has_structured_data, internal_links, text_length)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(site_id, url, date) DO UPDATE SET
		   http_status=excluded.http_status, redirect_target=excluded.redirect_target,
		   canonical=excluded.canonical, meta_robots=excluded.meta_robots,
		   robots_disallowed=excluded.robots_disallowed, has_analytics_tag=excluded.has_analytics_tag,
		   has_structured_data=excluded.has_structured_data, internal_links=excluded.internal_links,
		   text_length=excluded.text_length`,
	)
	if err != nil {
		return eris.Wrap(err, "metrics: prepare insert")
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, siteID, r.URL, r.Date.Format(dateLayout), r.HTTPStatus,
			r.RedirectTarget, r.Canonical, r.MetaRobots, r.RobotsDisallowed, r.HasAnalyticsTag,
			r.HasStructuredData, r.InternalLinks, r.TextLength); err != nil {
			return eris.Wrap(err, "metrics: insert page_checks")
		}
	}
	return eris.Wrap(tx.Commit(), "metrics: commit")
}

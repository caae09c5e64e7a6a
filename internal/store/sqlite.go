package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rankpulse/diagnose-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	site_id        TEXT NOT NULL,
	type           TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	as_of          DATETIME NOT NULL,
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME,
	summary        TEXT NOT NULL DEFAULT '',
	classification TEXT NOT NULL DEFAULT '',
	confidence     TEXT NOT NULL DEFAULT '',
	anomaly_count  INTEGER NOT NULL DEFAULT 0,
	ticket_count   INTEGER NOT NULL DEFAULT 0,
	sources        TEXT,
	deltas         TEXT,
	errors         TEXT
);

CREATE TABLE IF NOT EXISTS anomalies (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	type       TEXT NOT NULL,
	metric     TEXT NOT NULL,
	start_date DATETIME NOT NULL,
	end_date   DATETIME NOT NULL,
	baseline   REAL NOT NULL,
	observed   REAL NOT NULL,
	delta_pct  REAL NOT NULL,
	z_score    REAL,
	scope      TEXT
);

CREATE TABLE IF NOT EXISTS cluster_losses (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	cluster         TEXT NOT NULL,
	baseline_clicks REAL NOT NULL,
	current_clicks  REAL NOT NULL,
	loss            REAL NOT NULL,
	loss_share      REAL NOT NULL,
	dominant        INTEGER NOT NULL DEFAULT 0,
	pages           INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, cluster)
);

CREATE TABLE IF NOT EXISTS hypotheses (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	rank          INTEGER NOT NULL,
	key           TEXT NOT NULL,
	confidence    TEXT NOT NULL,
	summary       TEXT NOT NULL DEFAULT '',
	evidence      TEXT,
	disconfirming TEXT,
	missing_data  TEXT,
	PRIMARY KEY (run_id, key)
);

CREATE TABLE IF NOT EXISTS tickets (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL REFERENCES runs(id),
	hypothesis_key  TEXT NOT NULL,
	title           TEXT NOT NULL,
	owner           TEXT NOT NULL,
	priority        TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'open',
	steps           TEXT,
	expected_impact TEXT NOT NULL DEFAULT '',
	impact          TEXT,
	evidence_refs   TEXT,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	UNIQUE (run_id, hypothesis_key)
);

CREATE TABLE IF NOT EXISTS ticket_seq (
	id INTEGER PRIMARY KEY AUTOINCREMENT
);

CREATE INDEX IF NOT EXISTS idx_runs_site_id ON runs(site_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_anomalies_run_id ON anomalies(run_id);
CREATE INDEX IF NOT EXISTS idx_tickets_run_id ON tickets(run_id);
CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, siteID string, typ model.RunType, asOf time.Time) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, site_id, type, status, as_of, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, siteID, string(typ), string(model.RunStatusRunning), asOf.UTC(), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		SiteID:    siteID,
		Type:      typ,
		Status:    model.RunStatusRunning,
		AsOf:      asOf.UTC(),
		StartedAt: now,
	}, nil
}

// UpdateRunStatus moves a run to a new status. Terminal runs are immutable:
// the guard clause refuses the update and reports not found.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	args := []any{string(status), runID, string(model.RunStatusRunning)}
	query := `UPDATE runs SET status = ? WHERE id = ? AND status = ?`
	if status.Terminal() {
		query = `UPDATE runs SET status = ?, finished_at = ? WHERE id = ? AND status = ?`
		args = []any{string(status), time.Now().UTC(), runID, string(model.RunStatusRunning)}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "mutable run", runID)
}

// CompleteRun writes the run's final fields and moves it to its terminal
// status in one statement. Refuses runs already terminal.
func (s *SQLiteStore) CompleteRun(ctx context.Context, run *model.Run) error {
	sourcesJSON, err := marshalNullable(run.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}
	deltasJSON, err := marshalNullable(run.Deltas)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal deltas")
	}
	errorsJSON, err := marshalNullable(run.Errors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal errors")
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, summary = ?, classification = ?,
		        confidence = ?, anomaly_count = ?, ticket_count = ?, sources = ?, deltas = ?, errors = ?
		 WHERE id = ? AND status = ?`,
		string(run.Status), now, run.Summary, string(run.Classification),
		string(run.Confidence), run.AnomalyCount, run.TicketCount, sourcesJSON, deltasJSON, errorsJSON,
		run.ID, string(model.RunStatusRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", run.ID)
	}
	if err := checkRowsAffected(res, "mutable run", run.ID); err != nil {
		return err
	}
	run.FinishedAt = &now
	return nil
}

const runColumns = `id, site_id, type, status, as_of, started_at, finished_at,
	summary, classification, confidence, anomaly_count, ticket_count, sources, deltas, errors`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.SiteID != "" {
		query += ` AND site_id = ?`
		args = append(args, filter.SiteID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) InsertAnomalies(ctx context.Context, runID string, anomalies []model.Anomaly) error {
	for i := range anomalies {
		a := &anomalies[i]
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.RunID = runID

		scopeJSON, err := marshalNullable(a.Scope)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal scope")
		}
		var z sql.NullFloat64
		if a.ZScore != nil {
			z = sql.NullFloat64{Float64: *a.ZScore, Valid: true}
		}

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO anomalies (id, run_id, type, metric, start_date, end_date, baseline, observed, delta_pct, z_score, scope)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, runID, string(a.Type), a.Metric, a.StartDate.UTC(), a.EndDate.UTC(),
			a.Baseline, a.Observed, a.DeltaPct, z, scopeJSON,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert anomaly for run %s", runID)
		}
	}
	return nil
}

func (s *SQLiteStore) ListAnomalies(ctx context.Context, runID string) ([]model.Anomaly, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, type, metric, start_date, end_date, baseline, observed, delta_pct, z_score, scope
		 FROM anomalies WHERE run_id = ? ORDER BY delta_pct ASC`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list anomalies")
	}
	defer rows.Close()

	var out []model.Anomaly
	for rows.Next() {
		var a model.Anomaly
		var typ string
		var z sql.NullFloat64
		var scopeJSON sql.NullString
		if err := rows.Scan(&a.ID, &a.RunID, &typ, &a.Metric, &a.StartDate, &a.EndDate,
			&a.Baseline, &a.Observed, &a.DeltaPct, &z, &scopeJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan anomaly")
		}
		a.Type = model.AnomalyType(typ)
		if z.Valid {
			v := z.Float64
			a.ZScore = &v
		}
		if err := unmarshalNullable(scopeJSON, &a.Scope); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal scope")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list anomalies iterate")
}

func (s *SQLiteStore) InsertClusterLosses(ctx context.Context, runID string, losses []model.ClusterLoss) error {
	for i := range losses {
		l := &losses[i]
		l.RunID = runID
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO cluster_losses (run_id, cluster, baseline_clicks, current_clicks, loss, loss_share, dominant, pages)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, l.Cluster, l.BaselineClicks, l.CurrentClicks, l.Loss, l.LossShare, l.Dominant, l.Pages,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert cluster loss for run %s", runID)
		}
	}
	return nil
}

func (s *SQLiteStore) ListClusterLosses(ctx context.Context, runID string) ([]model.ClusterLoss, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, cluster, baseline_clicks, current_clicks, loss, loss_share, dominant, pages
		 FROM cluster_losses WHERE run_id = ? ORDER BY loss DESC, cluster ASC`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cluster losses")
	}
	defer rows.Close()

	var out []model.ClusterLoss
	for rows.Next() {
		var l model.ClusterLoss
		if err := rows.Scan(&l.RunID, &l.Cluster, &l.BaselineClicks, &l.CurrentClicks,
			&l.Loss, &l.LossShare, &l.Dominant, &l.Pages); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cluster loss")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list cluster losses iterate")
}

func (s *SQLiteStore) InsertHypotheses(ctx context.Context, runID string, hypotheses []model.Hypothesis) error {
	for i := range hypotheses {
		h := &hypotheses[i]
		h.RunID = runID

		evidenceJSON, err := marshalNullable(h.Evidence)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal evidence")
		}
		disconfirmingJSON, err := marshalNullable(h.Disconfirming)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal disconfirming")
		}
		missingJSON, err := marshalNullable(h.MissingData)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal missing data")
		}

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO hypotheses (run_id, rank, key, confidence, summary, evidence, disconfirming, missing_data)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, h.Rank, string(h.Key), string(h.Confidence), h.Summary,
			evidenceJSON, disconfirmingJSON, missingJSON,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert hypothesis %s for run %s", h.Key, runID)
		}
	}
	return nil
}

func (s *SQLiteStore) ListHypotheses(ctx context.Context, runID string) ([]model.Hypothesis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, rank, key, confidence, summary, evidence, disconfirming, missing_data
		 FROM hypotheses WHERE run_id = ? ORDER BY rank ASC`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list hypotheses")
	}
	defer rows.Close()

	var out []model.Hypothesis
	for rows.Next() {
		var h model.Hypothesis
		var key, confidence string
		var evidenceJSON, disconfirmingJSON, missingJSON sql.NullString
		if err := rows.Scan(&h.RunID, &h.Rank, &key, &confidence, &h.Summary,
			&evidenceJSON, &disconfirmingJSON, &missingJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hypothesis")
		}
		h.Key = model.HypothesisKey(key)
		h.Confidence = model.Confidence(confidence)
		if err := unmarshalNullable(evidenceJSON, &h.Evidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal evidence")
		}
		if err := unmarshalNullable(disconfirmingJSON, &h.Disconfirming); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal disconfirming")
		}
		if err := unmarshalNullable(missingJSON, &h.MissingData); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal missing data")
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list hypotheses iterate")
}

func (s *SQLiteStore) CreateTicket(ctx context.Context, t *model.Ticket) error {
	stepsJSON, err := marshalNullable(t.Steps)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal steps")
	}
	impactJSON, err := json.Marshal(t.Impact)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal impact")
	}
	refsJSON, err := marshalNullable(t.EvidenceRefs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence refs")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tickets (id, run_id, hypothesis_key, title, owner, priority, status,
		        steps, expected_impact, impact, evidence_refs, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RunID, string(t.HypothesisKey), t.Title, string(t.Owner), string(t.Priority),
		string(t.Status), stepsJSON, string(t.ExpectedImpact), string(impactJSON), refsJSON,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert ticket %s", t.ID)
}

const ticketColumns = `id, run_id, hypothesis_key, title, owner, priority, status,
	steps, expected_impact, impact, evidence_refs, created_at, updated_at`

func (s *SQLiteStore) GetTicketByRunAndKey(ctx context.Context, runID string, key model.HypothesisKey) (*model.Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE run_id = ? AND hypothesis_key = ?`,
		runID, string(key))
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (s *SQLiteStore) ListTickets(ctx context.Context, filter TicketFilter) ([]model.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Owner != "" {
		query += ` AND owner = ?`
		args = append(args, string(filter.Owner))
	}
	query += ` ORDER BY priority ASC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tickets")
	}
	defer rows.Close()

	var out []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list tickets iterate")
}

func (s *SQLiteStore) UpdateTicketStatus(ctx context.Context, ticketID string, status model.TicketStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), ticketID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update ticket status %s", ticketID)
	}
	return checkRowsAffected(res, "ticket", ticketID)
}

func (s *SQLiteStore) NextTicketSeq(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO ticket_seq DEFAULT VALUES`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: next ticket seq")
	}
	n, err := res.LastInsertId()
	return n, eris.Wrap(err, "sqlite: last insert id")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// marshalNullable marshals v to JSON, returning SQL NULL for nil slices and
// maps so empty findings stay empty on read.
func marshalNullable(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	if s == "null" {
		return nil, nil
	}
	return s, nil
}

func unmarshalNullable(s sql.NullString, dst any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var typ, status, classification, confidence string
	var finishedAt sql.NullTime
	var sourcesJSON, deltasJSON, errorsJSON sql.NullString

	err := row.Scan(&r.ID, &r.SiteID, &typ, &status, &r.AsOf, &r.StartedAt, &finishedAt,
		&r.Summary, &classification, &confidence, &r.AnomalyCount, &r.TicketCount,
		&sourcesJSON, &deltasJSON, &errorsJSON)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan run")
	}

	r.Type = model.RunType(typ)
	r.Status = model.RunStatus(status)
	r.Classification = model.Classification(classification)
	r.Confidence = model.Confidence(confidence)
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	if err := unmarshalNullable(sourcesJSON, &r.Sources); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal sources")
	}
	if err := unmarshalNullable(deltasJSON, &r.Deltas); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal deltas")
	}
	if err := unmarshalNullable(errorsJSON, &r.Errors); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal errors")
	}
	return &r, nil
}

func scanTicket(row scannable) (*model.Ticket, error) {
	var t model.Ticket
	var key, owner, priority, status, expected string
	var stepsJSON, impactJSON, refsJSON sql.NullString

	err := row.Scan(&t.ID, &t.RunID, &key, &t.Title, &owner, &priority, &status,
		&stepsJSON, &expected, &impactJSON, &refsJSON, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan ticket")
	}

	t.HypothesisKey = model.HypothesisKey(key)
	t.Owner = model.Owner(owner)
	t.Priority = model.Priority(priority)
	t.Status = model.TicketStatus(status)
	t.ExpectedImpact = model.Confidence(expected)
	if err := unmarshalNullable(stepsJSON, &t.Steps); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal steps")
	}
	if err := unmarshalNullable(impactJSON, &t.Impact); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal impact")
	}
	if err := unmarshalNullable(refsJSON, &t.EvidenceRefs); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal evidence refs")
	}
	return &t, nil
}

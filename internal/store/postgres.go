package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rankpulse/diagnose-cli/internal/db"
	"github.com/rankpulse/diagnose-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests and by callers
// that share a pool with the metric loaders.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for use by subsystems that need
// direct query access (e.g., bulk metric imports).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	site_id        TEXT NOT NULL,
	type           TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	as_of          TIMESTAMPTZ NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at    TIMESTAMPTZ,
	summary        TEXT NOT NULL DEFAULT '',
	classification TEXT NOT NULL DEFAULT '',
	confidence     TEXT NOT NULL DEFAULT '',
	anomaly_count  INTEGER NOT NULL DEFAULT 0,
	ticket_count   INTEGER NOT NULL DEFAULT 0,
	sources        JSONB,
	deltas         JSONB,
	errors         JSONB
);

CREATE TABLE IF NOT EXISTS anomalies (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	type       TEXT NOT NULL,
	metric     TEXT NOT NULL,
	start_date TIMESTAMPTZ NOT NULL,
	end_date   TIMESTAMPTZ NOT NULL,
	baseline   DOUBLE PRECISION NOT NULL,
	observed   DOUBLE PRECISION NOT NULL,
	delta_pct  DOUBLE PRECISION NOT NULL,
	z_score    DOUBLE PRECISION,
	scope      JSONB
);

CREATE TABLE IF NOT EXISTS cluster_losses (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	cluster         TEXT NOT NULL,
	baseline_clicks DOUBLE PRECISION NOT NULL,
	current_clicks  DOUBLE PRECISION NOT NULL,
	loss            DOUBLE PRECISION NOT NULL,
	loss_share      DOUBLE PRECISION NOT NULL,
	dominant        BOOLEAN NOT NULL DEFAULT false,
	pages           INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, cluster)
);

CREATE TABLE IF NOT EXISTS hypotheses (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	rank          INTEGER NOT NULL,
	key           TEXT NOT NULL,
	confidence    TEXT NOT NULL,
	summary       TEXT NOT NULL DEFAULT '',
	evidence      JSONB,
	disconfirming JSONB,
	missing_data  JSONB,
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
	steps           JSONB,
	expected_impact TEXT NOT NULL DEFAULT '',
	impact          JSONB,
	evidence_refs   JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (run_id, hypothesis_key)
);

CREATE SEQUENCE IF NOT EXISTS ticket_seq START 1001;

CREATE INDEX IF NOT EXISTS idx_runs_site_id ON runs(site_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_anomalies_run_id ON anomalies(run_id);
CREATE INDEX IF NOT EXISTS idx_tickets_run_id ON tickets(run_id);
CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, siteID string, typ model.RunType, asOf time.Time) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, site_id, type, status, as_of, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, siteID, string(typ), string(model.RunStatusRunning), asOf.UTC(), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	query := `UPDATE runs SET status = $1 WHERE id = $2 AND status = $3`
	args := []any{string(status), runID, string(model.RunStatusRunning)}
	if status.Terminal() {
		query = `UPDATE runs SET status = $1, finished_at = now() WHERE id = $2 AND status = $3`
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("mutable run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, run *model.Run) error {
	sourcesJSON, err := marshalNullableBytes(run.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}
	deltasJSON, err := marshalNullableBytes(run.Deltas)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal deltas")
	}
	errorsJSON, err := marshalNullableBytes(run.Errors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal errors")
	}

	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, finished_at = $2, summary = $3, classification = $4,
		        confidence = $5, anomaly_count = $6, ticket_count = $7, sources = $8, deltas = $9, errors = $10
		 WHERE id = $11 AND status = $12`,
		string(run.Status), now, run.Summary, string(run.Classification),
		string(run.Confidence), run.AnomalyCount, run.TicketCount, sourcesJSON, deltasJSON, errorsJSON,
		run.ID, string(model.RunStatusRunning),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("mutable run not found: %s", run.ID)
	}
	run.FinishedAt = &now
	return nil
}

const pgRunColumns = `id, site_id, type, status, as_of, started_at, finished_at,
	summary, classification, confidence, anomaly_count, ticket_count, sources, deltas, errors`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgRunColumns+` FROM runs WHERE id = $1`, runID)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	return r, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + pgRunColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SiteID != "" {
		query += fmt.Sprintf(` AND site_id = $%d`, argIdx)
		args = append(args, filter.SiteID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) InsertAnomalies(ctx context.Context, runID string, anomalies []model.Anomaly) error {
	for i := range anomalies {
		a := &anomalies[i]
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.RunID = runID

		scopeJSON, err := marshalNullableBytes(a.Scope)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal scope")
		}

		_, err = s.pool.Exec(ctx,
			`INSERT INTO anomalies (id, run_id, type, metric, start_date, end_date, baseline, observed, delta_pct, z_score, scope)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			a.ID, runID, string(a.Type), a.Metric, a.StartDate.UTC(), a.EndDate.UTC(),
			a.Baseline, a.Observed, a.DeltaPct, a.ZScore, scopeJSON,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert anomaly for run %s", runID)
		}
	}
	return nil
}

func (s *PostgresStore) ListAnomalies(ctx context.Context, runID string) ([]model.Anomaly, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, type, metric, start_date, end_date, baseline, observed, delta_pct, z_score, scope
		 FROM anomalies WHERE run_id = $1 ORDER BY delta_pct ASC`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list anomalies")
	}
	defer rows.Close()

	var out []model.Anomaly
	for rows.Next() {
		var a model.Anomaly
		var typ string
		var z *float64
		var scopeJSON []byte
		if err := rows.Scan(&a.ID, &a.RunID, &typ, &a.Metric, &a.StartDate, &a.EndDate,
			&a.Baseline, &a.Observed, &a.DeltaPct, &z, &scopeJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan anomaly")
		}
		a.Type = model.AnomalyType(typ)
		a.ZScore = z
		if len(scopeJSON) > 0 {
			if err := json.Unmarshal(scopeJSON, &a.Scope); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal scope")
			}
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list anomalies iterate")
}

func (s *PostgresStore) InsertClusterLosses(ctx context.Context, runID string, losses []model.ClusterLoss) error {
	for i := range losses {
		l := &losses[i]
		l.RunID = runID
		_, err := s.pool.Exec(ctx,
			`INSERT INTO cluster_losses (run_id, cluster, baseline_clicks, current_clicks, loss, loss_share, dominant, pages)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			runID, l.Cluster, l.BaselineClicks, l.CurrentClicks, l.Loss, l.LossShare, l.Dominant, l.Pages,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert cluster loss for run %s", runID)
		}
	}
	return nil
}

func (s *PostgresStore) ListClusterLosses(ctx context.Context, runID string) ([]model.ClusterLoss, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, cluster, baseline_clicks, current_clicks, loss, loss_share, dominant, pages
		 FROM cluster_losses WHERE run_id = $1 ORDER BY loss DESC, cluster ASC`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cluster losses")
	}
	defer rows.Close()

	var out []model.ClusterLoss
	for rows.Next() {
		var l model.ClusterLoss
		if err := rows.Scan(&l.RunID, &l.Cluster, &l.BaselineClicks, &l.CurrentClicks,
			&l.Loss, &l.LossShare, &l.Dominant, &l.Pages); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cluster loss")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list cluster losses iterate")
}

func (s *PostgresStore) InsertHypotheses(ctx context.Context, runID string, hypotheses []model.Hypothesis) error {
	for i := range hypotheses {
		h := &hypotheses[i]
		h.RunID = runID

		evidenceJSON, err := marshalNullableBytes(h.Evidence)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal evidence")
		}
		disconfirmingJSON, err := marshalNullableBytes(h.Disconfirming)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal disconfirming")
		}
		missingJSON, err := marshalNullableBytes(h.MissingData)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal missing data")
		}

		_, err = s.pool.Exec(ctx,
			`INSERT INTO hypotheses (run_id, rank, key, confidence, summary, evidence, disconfirming, missing_data)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			runID, h.Rank, string(h.Key), string(h.Confidence), h.Summary,
			evidenceJSON, disconfirmingJSON, missingJSON,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert hypothesis %s for run %s", h.Key, runID)
		}
	}
	return nil
}

func (s *PostgresStore) ListHypotheses(ctx context.Context, runID string) ([]model.Hypothesis, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, rank, key, confidence, summary, evidence, disconfirming, missing_data
		 FROM hypotheses WHERE run_id = $1 ORDER BY rank ASC`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list hypotheses")
	}
	defer rows.Close()

	var out []model.Hypothesis
	for rows.Next() {
		var h model.Hypothesis
		var key, confidence string
		var evidenceJSON, disconfirmingJSON, missingJSON []byte
		if err := rows.Scan(&h.RunID, &h.Rank, &key, &confidence, &h.Summary,
			&evidenceJSON, &disconfirmingJSON, &missingJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hypothesis")
		}
		h.Key = model.HypothesisKey(key)
		h.Confidence = model.Confidence(confidence)
		for _, pair := range []struct {
			raw []byte
			dst any
		}{
			{evidenceJSON, &h.Evidence},
			{disconfirmingJSON, &h.Disconfirming},
			{missingJSON, &h.MissingData},
		} {
			if len(pair.raw) == 0 {
				continue
			}
			if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal hypothesis field")
			}
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list hypotheses iterate")
}

func (s *PostgresStore) CreateTicket(ctx context.Context, t *model.Ticket) error {
	stepsJSON, err := marshalNullableBytes(t.Steps)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal steps")
	}
	impactJSON, err := json.Marshal(t.Impact)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal impact")
	}
	refsJSON, err := marshalNullableBytes(t.EvidenceRefs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence refs")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tickets (id, run_id, hypothesis_key, title, owner, priority, status,
		        steps, expected_impact, impact, evidence_refs, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.RunID, string(t.HypothesisKey), t.Title, string(t.Owner), string(t.Priority),
		string(t.Status), stepsJSON, string(t.ExpectedImpact), impactJSON, refsJSON,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert ticket %s", t.ID)
}

const pgTicketColumns = `id, run_id, hypothesis_key, title, owner, priority, status,
	steps, expected_impact, impact, evidence_refs, created_at, updated_at`

func (s *PostgresStore) GetTicketByRunAndKey(ctx context.Context, runID string, key model.HypothesisKey) (*model.Ticket, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgTicketColumns+` FROM tickets WHERE run_id = $1 AND hypothesis_key = $2`,
		runID, string(key))
	t, err := scanPgTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (s *PostgresStore) ListTickets(ctx context.Context, filter TicketFilter) ([]model.Ticket, error) {
	query := `SELECT ` + pgTicketColumns + ` FROM tickets WHERE true`
	args := []any{}
	argIdx := 1

	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, argIdx)
		args = append(args, filter.RunID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Owner != "" {
		query += fmt.Sprintf(` AND owner = $%d`, argIdx)
		args = append(args, string(filter.Owner))
		argIdx++
	}
	query += ` ORDER BY priority ASC, created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tickets")
	}
	defer rows.Close()

	var out []model.Ticket
	for rows.Next() {
		t, err := scanPgTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list tickets iterate")
}

func (s *PostgresStore) UpdateTicketStatus(ctx context.Context, ticketID string, status model.TicketStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tickets SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), ticketID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update ticket status %s", ticketID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ticket not found: %s", ticketID)
	}
	return nil
}

func (s *PostgresStore) NextTicketSeq(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT nextval('ticket_seq')`).Scan(&n)
	return n, eris.Wrap(err, "postgres: next ticket seq")
}

// helpers

func marshalNullableBytes(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	return b, nil
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var typ, status, classification, confidence string
	var finishedAt *time.Time
	var sourcesJSON, deltasJSON, errorsJSON []byte

	err := row.Scan(&r.ID, &r.SiteID, &typ, &status, &r.AsOf, &r.StartedAt, &finishedAt,
		&r.Summary, &classification, &confidence, &r.AnomalyCount, &r.TicketCount,
		&sourcesJSON, &deltasJSON, &errorsJSON)
	if err != nil {
		return nil, err
	}

	r.Type = model.RunType(typ)
	r.Status = model.RunStatus(status)
	r.Classification = model.Classification(classification)
	r.Confidence = model.Confidence(confidence)
	r.FinishedAt = finishedAt
	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{sourcesJSON, &r.Sources},
		{deltasJSON, &r.Deltas},
		{errorsJSON, &r.Errors},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run field")
		}
	}
	return &r, nil
}

func scanPgTicket(row pgx.Row) (*model.Ticket, error) {
	var t model.Ticket
	var key, owner, priority, status, expected string
	var stepsJSON, impactJSON, refsJSON []byte

	err := row.Scan(&t.ID, &t.RunID, &key, &t.Title, &owner, &priority, &status,
		&stepsJSON, &expected, &impactJSON, &refsJSON, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.HypothesisKey = model.HypothesisKey(key)
	t.Owner = model.Owner(owner)
	t.Priority = model.Priority(priority)
	t.Status = model.TicketStatus(status)
	t.ExpectedImpact = model.Confidence(expected)
	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{stepsJSON, &t.Steps},
		{impactJSON, &t.Impact},
		{refsJSON, &t.EvidenceRefs},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal ticket field")
		}
	}
	return &t, nil
}

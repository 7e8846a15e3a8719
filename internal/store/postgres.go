package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/db"
	"github.com/sells-group/dossier-cli/internal/intake"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/resilience"
	"github.com/sells-group/dossier-cli/internal/scorer"
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
	// ConnectAttempts bounds the initial ping retries (0 = default).
	ConnectAttempts int `yaml:"connect_attempts" mapstructure:"connect_attempts"`
}

var postgresDossierUpsert = mustUpsertSQL(db.Postgres, dossierUpsert)

// NewPostgres creates a PostgresStore with a connection pool. The pool does
// not touch the schema, so it can be opened against an empty database and
// migrated afterwards.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := poolConfig(connString, poolCfg)
	if err != nil {
		return nil, err
	}
	maxConns, minConns := pgxCfg.MaxConns, pgxCfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	backoff := resilience.DefaultBackoff()
	backoff.OnRetry = resilience.LogRetry("postgres: ping")
	if poolCfg != nil && poolCfg.ConnectAttempts > 0 {
		backoff.Attempts = poolCfg.ConnectAttempts
	}
	if _, err := resilience.Do(ctx, backoff, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	}); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	zap.L().Info("postgres: connected", zap.Int32("max_conns", maxConns), zap.Int32("min_conns", minConns))
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// poolConfig parses connString and applies pool sizing from poolCfg with
// sensible defaults.
func poolConfig(connString string, poolCfg *PoolConfig) (*pgxpool.Config, error) {
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
	return pgxCfg, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS dossiers (
	id         TEXT PRIMARY KEY,
	reference  TEXT NOT NULL DEFAULT '',
	profile    TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decision_drafts (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	dossier_id TEXT NOT NULL REFERENCES dossiers(id),
	verdict    TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS smartscores (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	dossier_id  TEXT NOT NULL REFERENCES dossiers(id),
	score       INTEGER NOT NULL,
	grade       TEXT NOT NULL,
	config_hash TEXT NOT NULL DEFAULT '',
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_events (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	dossier_id TEXT NOT NULL REFERENCES dossiers(id),
	action     TEXT NOT NULL,
	message    TEXT NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dossiers_profile ON dossiers(profile);
CREATE INDEX IF NOT EXISTS idx_dossiers_updated_at ON dossiers(updated_at);
CREATE INDEX IF NOT EXISTS idx_decision_drafts_dossier ON decision_drafts(dossier_id);
CREATE INDEX IF NOT EXISTS idx_smartscores_dossier ON smartscores(dossier_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_dossier ON audit_events(dossier_id);
`

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

func (s *PostgresStore) SaveDossier(ctx context.Context, d *model.Dossier) error {
	prepareDossier(d, time.Now().UTC())
	payload, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal dossier")
	}

	_, err = s.pool.Exec(ctx, postgresDossierUpsert,
		d.ID, d.Reference, string(d.Profile), payload, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save dossier %s", d.ID)
	}
	zap.L().Debug("postgres: dossier saved", zap.String("dossier_id", d.ID))
	return nil
}

func (s *PostgresStore) GetDossier(ctx context.Context, id string) (*model.Dossier, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT payload, created_at, updated_at FROM dossiers WHERE id = $1`, id,
	)
	d, err := scanDossier(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get dossier %s", id)
	}
	return d, nil
}

func (s *PostgresStore) ListDossiers(ctx context.Context, filter DossierFilter) ([]model.Dossier, error) {
	query := `SELECT payload, created_at, updated_at FROM dossiers WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Profile != "" {
		query += fmt.Sprintf(` AND profile = $%d`, argIdx)
		args = append(args, string(filter.Profile))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY updated_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dossiers")
	}
	defer rows.Close()

	out := []model.Dossier{}
	for rows.Next() {
		d, err := scanDossier(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list dossiers")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list dossiers")
}

// ImportDossiers bulk-loads new dossiers with COPY. Existing ids abort
// the whole import.
func (s *PostgresStore) ImportDossiers(ctx context.Context, ds []model.Dossier) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(ds))
	for i := range ds {
		d := &ds[i]
		prepareDossier(d, now)
		payload, err := json.Marshal(d)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: import: marshal dossier %s", d.ID)
		}
		rows = append(rows, []any{d.ID, d.Reference, string(d.Profile), payload, d.CreatedAt, d.UpdatedAt})
	}

	n, err := db.CopyFrom(ctx, s.pool, "dossiers", dossierUpsert.Columns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import dossiers")
	}
	zap.L().Info("postgres: dossiers imported", zap.Int64("count", n))
	return int(n), nil
}

func (s *PostgresStore) SaveDecisionDraft(ctx context.Context, dossierID string, draft *intake.DecisionDraft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal decision draft")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO decision_drafts (id, dossier_id, verdict, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		newID(), dossierID, string(draft.Verdict), payload, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save decision draft for %s", dossierID)
}

func (s *PostgresStore) LatestDecisionDraft(ctx context.Context, dossierID string) (*intake.DecisionDraft, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM decision_drafts WHERE dossier_id = $1 ORDER BY seq DESC LIMIT 1`, dossierID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: decision draft for %s", dossierID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest decision draft for %s", dossierID)
	}

	var draft intake.DecisionDraft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal decision draft")
	}
	return &draft, nil
}

func (s *PostgresStore) SaveSmartScore(ctx context.Context, dossierID string, res *scorer.Result) error {
	payload, err := scorer.MarshalSnapshot(res)
	if err != nil {
		return eris.Wrap(err, "postgres: save smartscore")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO smartscores (id, dossier_id, score, grade, config_hash, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		newID(), dossierID, res.Score, res.Grade, res.ConfigHash, payload, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save smartscore for %s", dossierID)
}

func (s *PostgresStore) LatestSmartScore(ctx context.Context, dossierID string) (*scorer.Result, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM smartscores WHERE dossier_id = $1 ORDER BY seq DESC LIMIT 1`, dossierID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: smartscore for %s", dossierID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest smartscore for %s", dossierID)
	}
	return scorer.UnmarshalSnapshot(payload)
}

func (s *PostgresStore) AppendAudit(ctx context.Context, ev *AuditEvent) error {
	if err := prepareAudit(ev, time.Now().UTC()); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, dossier_id, action, message, actor, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.DossierID, ev.Action, ev.Message, ev.Actor, ev.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append audit for %s", ev.DossierID)
}

func (s *PostgresStore) ListAudit(ctx context.Context, dossierID string) ([]AuditEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, dossier_id, action, message, actor, created_at FROM audit_events WHERE dossier_id = $1 ORDER BY seq`,
		dossierID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list audit for %s", dossierID)
	}
	defer rows.Close()

	events := []AuditEvent{}
	for rows.Next() {
		var ev AuditEvent
		if err := rows.Scan(&ev.ID, &ev.DossierID, &ev.Action, &ev.Message, &ev.Actor, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit event")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list audit")
}

package store

import (
	"context"
	"database/sql"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dossier-cli/internal/db"
	"github.com/sells-group/dossier-cli/internal/intake"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/scorer"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection; a single writer also avoids SQLITE_BUSY.
	sdb.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS dossiers (
	id         TEXT PRIMARY KEY,
	reference  TEXT NOT NULL DEFAULT '',
	profile    TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_drafts (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	dossier_id TEXT NOT NULL REFERENCES dossiers(id),
	verdict    TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS smartscores (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	dossier_id  TEXT NOT NULL REFERENCES dossiers(id),
	score       INTEGER NOT NULL,
	grade       TEXT NOT NULL,
	config_hash TEXT NOT NULL DEFAULT '',
	payload     TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	dossier_id TEXT NOT NULL REFERENCES dossiers(id),
	action     TEXT NOT NULL,
	message    TEXT NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dossiers_profile ON dossiers(profile);
CREATE INDEX IF NOT EXISTS idx_dossiers_updated_at ON dossiers(updated_at);
CREATE INDEX IF NOT EXISTS idx_decision_drafts_dossier ON decision_drafts(dossier_id);
CREATE INDEX IF NOT EXISTS idx_smartscores_dossier ON smartscores(dossier_id);
CREATE INDEX IF NOT EXISTS idx_audit_events_dossier ON audit_events(dossier_id);
`

var sqliteDossierUpsert = mustUpsertSQL(db.SQLite, dossierUpsert)

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveDossier(ctx context.Context, d *model.Dossier) error {
	prepareDossier(d, time.Now().UTC())
	payload, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal dossier")
	}

	_, err = s.db.ExecContext(ctx, sqliteDossierUpsert,
		d.ID, d.Reference, string(d.Profile), string(payload), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save dossier %s", d.ID)
	}
	zap.L().Debug("sqlite: dossier saved", zap.String("dossier_id", d.ID))
	return nil
}

func (s *SQLiteStore) GetDossier(ctx context.Context, id string) (*model.Dossier, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at, updated_at FROM dossiers WHERE id = ?`, id,
	)
	d, err := scanDossier(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get dossier %s", id)
	}
	return d, nil
}

func (s *SQLiteStore) ListDossiers(ctx context.Context, filter DossierFilter) ([]model.Dossier, error) {
	query := `SELECT payload, created_at, updated_at FROM dossiers WHERE 1=1`
	var args []any

	if filter.Profile != "" {
		query += ` AND profile = ?`
		args = append(args, string(filter.Profile))
	}
	query += ` ORDER BY updated_at DESC, id LIMIT ?`
	args = append(args, filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dossiers")
	}
	defer rows.Close() //nolint:errcheck

	out := []model.Dossier{}
	for rows.Next() {
		d, err := scanDossier(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list dossiers")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list dossiers")
}

// ImportDossiers inserts every dossier in one transaction. Existing ids
// abort the import.
func (s *SQLiteStore) ImportDossiers(ctx context.Context, ds []model.Dossier) (int, error) {
	if len(ds) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for i := range ds {
		d := &ds[i]
		prepareDossier(d, now)
		payload, err := json.Marshal(d)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import: marshal dossier %s", d.ID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO dossiers (id, reference, profile, payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			d.ID, d.Reference, string(d.Profile), string(payload), d.CreatedAt, d.UpdatedAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import dossier %s", d.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import: commit tx")
	}
	return len(ds), nil
}

func (s *SQLiteStore) SaveDecisionDraft(ctx context.Context, dossierID string, draft *intake.DecisionDraft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal decision draft")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decision_drafts (id, dossier_id, verdict, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		newID(), dossierID, string(draft.Verdict), string(payload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save decision draft for %s", dossierID)
}

func (s *SQLiteStore) LatestDecisionDraft(ctx context.Context, dossierID string) (*intake.DecisionDraft, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM decision_drafts WHERE dossier_id = ? ORDER BY seq DESC LIMIT 1`, dossierID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: decision draft for %s", dossierID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest decision draft for %s", dossierID)
	}

	var draft intake.DecisionDraft
	if err := json.Unmarshal([]byte(payload), &draft); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal decision draft")
	}
	return &draft, nil
}

func (s *SQLiteStore) SaveSmartScore(ctx context.Context, dossierID string, res *scorer.Result) error {
	payload, err := scorer.MarshalSnapshot(res)
	if err != nil {
		return eris.Wrap(err, "sqlite: save smartscore")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO smartscores (id, dossier_id, score, grade, config_hash, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		newID(), dossierID, res.Score, res.Grade, res.ConfigHash, string(payload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save smartscore for %s", dossierID)
}

func (s *SQLiteStore) LatestSmartScore(ctx context.Context, dossierID string) (*scorer.Result, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM smartscores WHERE dossier_id = ? ORDER BY seq DESC LIMIT 1`, dossierID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: smartscore for %s", dossierID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest smartscore for %s", dossierID)
	}
	return scorer.UnmarshalSnapshot([]byte(payload))
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, ev *AuditEvent) error {
	if err := prepareAudit(ev, time.Now().UTC()); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, dossier_id, action, message, actor, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.DossierID, ev.Action, ev.Message, ev.Actor, ev.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: append audit for %s", ev.DossierID)
}

func (s *SQLiteStore) ListAudit(ctx context.Context, dossierID string) ([]AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dossier_id, action, message, actor, created_at FROM audit_events WHERE dossier_id = ? ORDER BY seq`,
		dossierID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list audit for %s", dossierID)
	}
	defer rows.Close() //nolint:errcheck

	events := []AuditEvent{}
	for rows.Next() {
		var ev AuditEvent
		if err := rows.Scan(&ev.ID, &ev.DossierID, &ev.Action, &ev.Message, &ev.Actor, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit event")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list audit")
}

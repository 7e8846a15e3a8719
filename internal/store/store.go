// Package store persists dossiers together with their last computed
// decision draft and SmartScore, and an append-only audit trail.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/db"
	"github.com/sells-group/dossier-cli/internal/intake"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/scorer"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// DossierFilter specifies criteria for listing dossiers.
type DossierFilter struct {
	Profile model.Profile `json:"profile,omitempty"`
	Limit   int           `json:"limit,omitempty"`
	Offset  int           `json:"offset,omitempty"`
}

const defaultListLimit = 100

func (f DossierFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// AuditEvent is one human-readable entry of a dossier's history.
type AuditEvent struct {
	ID        string    `json:"id"`
	DossierID string    `json:"dossier_id"`
	Action    string    `json:"action"`
	Message   string    `json:"message"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Audit actions recorded by the CLI and API.
const (
	ActionCreated   = "dossier.created"
	ActionUpdated   = "dossier.updated"
	ActionImported  = "dossier.imported"
	ActionEvaluated = "dossier.evaluated"
	ActionScored    = "dossier.scored"
)

// Store defines the persistence interface for dossiers and their results.
type Store interface {
	// Dossiers
	SaveDossier(ctx context.Context, d *model.Dossier) error
	GetDossier(ctx context.Context, id string) (*model.Dossier, error)
	ListDossiers(ctx context.Context, filter DossierFilter) ([]model.Dossier, error)
	ImportDossiers(ctx context.Context, ds []model.Dossier) (int, error)

	// Computed results; only the latest is read back.
	SaveDecisionDraft(ctx context.Context, dossierID string, draft *intake.DecisionDraft) error
	LatestDecisionDraft(ctx context.Context, dossierID string) (*intake.DecisionDraft, error)
	SaveSmartScore(ctx context.Context, dossierID string, res *scorer.Result) error
	LatestSmartScore(ctx context.Context, dossierID string) (*scorer.Result, error)

	// Audit trail
	AppendAudit(ctx context.Context, ev *AuditEvent) error
	ListAudit(ctx context.Context, dossierID string) ([]AuditEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	zap.L().Debug("store: opening", zap.String("driver", cfg.Driver))
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "dossier.db"
		}
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns, ConnectAttempts: cfg.ConnectAttempts})
	default:
		return nil, eris.Errorf("store: unsupported driver: %s", cfg.Driver)
	}
}

// prepareDossier assigns an id and timestamps before a write.
func prepareDossier(d *model.Dossier, now time.Time) {
	if d.ID == "" {
		d.ID = newID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
}

func prepareAudit(ev *AuditEvent, now time.Time) error {
	if ev.DossierID == "" {
		return eris.New("store: audit event without dossier id")
	}
	if ev.ID == "" {
		ev.ID = newID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	return nil
}

func newID() string {
	return uuid.New().String()
}

// dossierUpsert lists the columns of the dossier upsert shared by both
// backends. created_at is never overwritten.
var dossierUpsert = db.UpsertConfig{
	Table:        "dossiers",
	Columns:      []string{"id", "reference", "profile", "payload", "created_at", "updated_at"},
	ConflictKeys: []string{"id"},
	UpdateCols:   []string{"reference", "profile", "payload", "updated_at"},
}

func mustUpsertSQL(d db.Dialect, cfg db.UpsertConfig) string {
	q, err := db.UpsertSQL(d, cfg)
	if err != nil {
		panic(err)
	}
	return q
}

type scannable interface {
	Scan(dest ...any) error
}

// scanDossier reads (payload, created_at, updated_at). The timestamp
// columns are authoritative over the payload copy.
func scanDossier(row scannable) (*model.Dossier, error) {
	var (
		payload              []byte
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&payload, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan dossier")
	}

	var d model.Dossier
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, eris.Wrap(err, "unmarshal dossier")
	}
	d.CreatedAt = createdAt.UTC()
	d.UpdatedAt = updatedAt.UTC()
	return &d, nil
}

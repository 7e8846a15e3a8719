package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/intake"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/scorer"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS dossiers`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *PoolConfig
		wantMax int32
		wantMin int32
	}{
		{"defaults", nil, 10, 2},
		{"zero values keep defaults", &PoolConfig{}, 10, 2},
		{"overrides", &PoolConfig{MaxConns: 25, MinConns: 5}, 25, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := poolConfig("postgres://dossier@localhost:5432/dossier", tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMax, cfg.MaxConns)
			assert.Equal(t, tt.wantMin, cfg.MinConns)
			assert.Equal(t, 30*time.Minute, cfg.MaxConnLifetime)
			assert.Equal(t, 5*time.Minute, cfg.MaxConnIdleTime)
			// New connections must not depend on tables that only exist
			// after Migrate.
			assert.Nil(t, cfg.AfterConnect)
		})
	}
}

func TestPoolConfig_InvalidConnString(t *testing.T) {
	_, err := poolConfig("postgres://dossier@localhost:notaport/dossier", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: parse config")
}

func TestPostgresStore_MigrateThenSave(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.MatchExpectationsInOrder(true)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS dossiers`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`INSERT INTO "dossiers"`).
		WithArgs("d-1", "", "trader", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.SaveDossier(ctx, &model.Dossier{ID: "d-1", Profile: model.ProfileTrader}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDossier_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "dossiers" .* ON CONFLICT \("id"\) DO UPDATE`).
		WithArgs("d-1", "REF-9", "trader", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	d := &model.Dossier{ID: "d-1", Reference: "REF-9", Profile: model.ProfileTrader}
	require.NoError(t, s.SaveDossier(context.Background(), d))
	assert.False(t, d.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDossier_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "dossiers"`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(fmt.Errorf("connection reset"))

	err := s.SaveDossier(context.Background(), &model.Dossier{ID: "d-1", Profile: model.ProfileTrader})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: save dossier d-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDossier(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	updated := created.Add(2 * time.Hour)
	mock.ExpectQuery(`SELECT payload, created_at, updated_at FROM dossiers WHERE id = \$1`).
		WithArgs("d-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload", "created_at", "updated_at"}).
			AddRow([]byte(`{"id":"d-1","profile":"developer","requested_amount":900000}`), created, updated))

	d, err := s.GetDossier(context.Background(), "d-1")
	require.NoError(t, err)
	assert.Equal(t, "d-1", d.ID)
	assert.Equal(t, model.ProfileDeveloper, d.Profile)
	assert.InDelta(t, 900_000, d.RequestedAmount, 0.001)
	assert.Equal(t, created, d.CreatedAt)
	assert.Equal(t, updated, d.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDossier_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload, created_at, updated_at FROM dossiers WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetDossier(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "get dossier")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDossiers_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`AND profile = \$1 ORDER BY updated_at DESC, id LIMIT \$2 OFFSET \$3`).
		WithArgs("trader", 10, 5).
		WillReturnRows(pgxmock.NewRows([]string{"payload", "created_at", "updated_at"}).
			AddRow([]byte(`{"id":"a","profile":"trader"}`), now, now).
			AddRow([]byte(`{"id":"b","profile":"trader"}`), now, now))

	got, err := s.ListDossiers(context.Background(), DossierFilter{Profile: model.ProfileTrader, Limit: 10, Offset: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDossiers_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WHERE true ORDER BY updated_at DESC, id LIMIT \$1$`).
		WithArgs(defaultListLimit).
		WillReturnRows(pgxmock.NewRows([]string{"payload", "created_at", "updated_at"}))

	got, err := s.ListDossiers(context.Background(), DossierFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportDossiers_Copy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"dossiers"}, dossierUpsert.Columns).WillReturnResult(2)

	ds := []model.Dossier{{Profile: model.ProfileResidential}, {ID: "keep", Profile: model.ProfileCorporate}}
	n, err := s.ImportDossiers(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotEmpty(t, ds[0].ID)
	assert.Equal(t, "keep", ds[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDecisionDraft(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO decision_drafts`).
		WithArgs(pgxmock.AnyArg(), "d-1", "GO_SOUS_CONDITIONS", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveDecisionDraft(context.Background(), "d-1", &intake.DecisionDraft{Verdict: model.VerdictGoWithConditions})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestDecisionDraft_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM decision_drafts WHERE dossier_id = \$1 ORDER BY seq DESC LIMIT 1`).
		WithArgs("d-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestDecisionDraft(context.Background(), "d-1")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSmartScore(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	payload, err := scorer.MarshalSnapshot(&scorer.Result{Score: 68, Grade: "C", Verdict: scorer.VerdictFavorableWithConditions})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT payload FROM smartscores WHERE dossier_id = \$1`).
		WithArgs("d-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := s.LatestSmartScore(context.Background(), "d-1")
	require.NoError(t, err)
	assert.Equal(t, 68, got.Score)
	assert.Equal(t, scorer.VerdictFavorableWithConditions, got.Verdict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSmartScore(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO smartscores`).
		WithArgs(pgxmock.AnyArg(), "d-1", 55, "C", "hash", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveSmartScore(context.Background(), "d-1", &scorer.Result{Score: 55, Grade: "C", ConfigHash: "hash"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Audit(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO audit_events`).
		WithArgs(pgxmock.AnyArg(), "d-1", ActionEvaluated, "Décision proposée : GO.", "api", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, dossier_id, action, message, actor, created_at FROM audit_events WHERE dossier_id = \$1 ORDER BY seq`).
		WithArgs("d-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "dossier_id", "action", "message", "actor", "created_at"}).
			AddRow("ev-1", "d-1", ActionEvaluated, "Décision proposée : GO.", "api", at))

	require.NoError(t, s.AppendAudit(ctx, &AuditEvent{
		DossierID: "d-1", Action: ActionEvaluated, Message: "Décision proposée : GO.", Actor: "api",
	}))

	events, err := s.ListAudit(ctx, "d-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-1", events[0].ID)
	assert.Equal(t, at, events[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())
}

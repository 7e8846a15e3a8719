package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/catalog"
	"github.com/sells-group/dossier-cli/internal/enrich"
	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/scorer"
	"github.com/sells-group/dossier-cli/internal/store"
)

func newEngine(t *testing.T) *scorer.Engine {
	t.Helper()
	e, err := scorer.NewEngine(scorer.DefaultProfiles())
	require.NoError(t, err)
	return e
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func completeDossier() *model.Dossier {
	reqs := catalog.Default().For(model.ProfileResidential)
	docs := make([]model.Document, 0, len(reqs))
	for _, r := range reqs {
		docs = append(docs, model.Document{ID: r.ID, Label: r.Label, Status: model.DocumentSupplied})
	}
	return &model.Dossier{
		ID:              "d-1",
		ProgrammeName:   "Les Jardins",
		Profile:         model.ProfileResidential,
		RequestedAmount: 300_000,
		ProjectValue:    500_000,
		Documents:       docs,
		Guarantees:      []model.Guarantee{{ID: "g1", Type: "hypotheque", Amount: 500_000}},
	}
}

func hasAlert(alerts []scorer.Alert, code string) bool {
	for _, a := range alerts {
		if a.Code == code {
			return true
		}
	}
	return false
}

func TestAssess_DerivedSummary(t *testing.T) {
	p := New(nil, nil, newEngine(t))

	a, err := p.Assess(Input{Dossier: completeDossier()})
	require.NoError(t, err)

	assert.Equal(t, "d-1", a.DossierID)
	assert.Equal(t, 100, a.Intake.Completeness.Percentage)
	require.NotNil(t, a.Intake.LTV)
	assert.InDelta(t, 0.6, *a.Intake.LTV, 1e-9)
	require.NotNil(t, a.Summary.KPIs.LTV)
	assert.InDelta(t, 60.0, *a.Summary.KPIs.LTV, 1e-9)
	require.NotNil(t, a.Score)
	assert.Equal(t, model.ProfileResidential, a.Score.Profile)
	assert.Equal(t, "Les Jardins", a.Report.ProgrammeName)
	require.NotNil(t, a.Report.SmartScore)
	assert.Equal(t, a.Score.Score, a.Report.SmartScore.Score)
	for _, c := range a.Intake.Conditions {
		assert.Regexp(t, `^cond-\d+$`, c.ID)
	}
}

func TestAssess_ConditionIDsRestart(t *testing.T) {
	p := New(nil, nil, newEngine(t))
	d := &model.Dossier{ID: "d-2", Profile: model.ProfileTrader, RequestedAmount: 100_000}

	first, err := p.Assess(Input{Dossier: d})
	require.NoError(t, err)
	second, err := p.Assess(Input{Dossier: d})
	require.NoError(t, err)

	require.NotEmpty(t, first.Intake.Conditions)
	assert.Equal(t, "cond-1", first.Intake.Conditions[0].ID)
	assert.Equal(t, first.Intake.Conditions, second.Intake.Conditions)
}

func TestAssess_CallerSummaryAndEnrichment(t *testing.T) {
	p := New(nil, catalog.Default(), newEngine(t))

	summary := &model.OperationSummary{
		Budget:   &model.Budget{PurchasePrice: guard.Of(400_000)},
		Revenues: &model.Revenues{MonthlyRent: guard.Of(2_000)},
		KPIs:     model.KPIs{DSCR: guard.Of(0.9)},
	}
	enr := enrich.Enrichment{
		Risk:   &model.RiskProfile{FloodZone: true},
		Market: []*model.MarketData{{Source: "dvf", TransactionCount: ptrInt(8)}},
	}

	a, err := p.Assess(Input{Dossier: completeDossier(), Summary: summary, Enrichment: enr})
	require.NoError(t, err)

	assert.Equal(t, model.ProfileResidential, a.Summary.Profile)
	assert.NotNil(t, a.Summary.Completeness)
	require.NotNil(t, a.Summary.KPIs.LTV)
	assert.InDelta(t, 0.9, *a.Summary.KPIs.DSCR, 1e-9)
	require.NotNil(t, a.Summary.Risk)
	assert.True(t, a.Summary.Risk.FloodZone)
	require.NotNil(t, a.Summary.Market)
	assert.Equal(t, 8, *a.Summary.Market.TransactionCount)
	assert.True(t, hasAlert(a.Alerts, "dscr_below_one"))
	assert.Equal(t, scorer.AlertCritical, a.Alerts[0].Severity)

	require.NotNil(t, a.Report.KPIs.Rent)
	assert.InDelta(t, 24_000, *a.Report.KPIs.Rent, 1e-9)

	// The caller's summary is not mutated.
	assert.Nil(t, summary.Completeness)
	assert.Nil(t, summary.Risk)
}

func TestAssess_MissingLoanIsCritical(t *testing.T) {
	p := New(nil, nil, newEngine(t))

	a, err := p.Assess(Input{Dossier: &model.Dossier{ID: "d-3", Profile: model.ProfileDeveloper}})
	require.NoError(t, err)
	assert.True(t, hasAlert(a.Alerts, "missing_"+enrich.MissingLoanAmount))
	assert.Equal(t, model.VerdictNoGo, a.Intake.Draft.Verdict)
}

func TestAssess_Errors(t *testing.T) {
	p := New(nil, nil, newEngine(t))

	_, err := p.Assess(Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dossier is required")

	_, err = p.Assess(Input{Dossier: &model.Dossier{Profile: "bogus"}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, scorer.ErrUnknownProfile))
}

func TestRun_PersistsResultsAndAudit(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := New(st, nil, newEngine(t))

	d := completeDossier()
	d.ID = ""
	require.NoError(t, st.SaveDossier(ctx, d))

	a, err := p.Run(ctx, d.ID, nil, enrich.Enrichment{}, "analyste")
	require.NoError(t, err)

	draft, err := st.LatestDecisionDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Intake.Draft.Verdict, draft.Verdict)

	score, err := st.LatestSmartScore(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Score.Score, score.Score)
	assert.Equal(t, a.Score.ConfigHash, score.ConfigHash)

	events, err := st.ListAudit(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, store.ActionEvaluated, events[0].Action)
	assert.Contains(t, events[0].Message, string(a.Intake.Draft.Verdict))
	assert.Equal(t, store.ActionScored, events[1].Action)
	assert.Equal(t, "analyste", events[1].Actor)
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := New(nil, nil, newEngine(t)).Run(ctx, "d-1", nil, enrich.Enrichment{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no store configured")

	_, err = New(newTestStore(t), nil, newEngine(t)).Run(ctx, "missing", nil, enrich.Enrichment{}, "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, store.ErrNotFound))
}

func TestMemo(t *testing.T) {
	p := New(nil, nil, newEngine(t))
	a, err := p.Assess(Input{Dossier: completeDossier()})
	require.NoError(t, err)

	memo, err := p.Memo(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "Les Jardins", memo.ProgrammeName)
	assert.Len(t, memo.Scenarios, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Memo(ctx, a)
	assert.Error(t, err)
}

func ptrInt(v int) *int { return &v }

func TestScore_SummaryOnly(t *testing.T) {
	p := New(nil, nil, newEngine(t))

	in := &model.OperationSummary{Profile: model.ProfileTrader, KPIs: model.KPIs{LTV: guard.Of(85)}}
	out, err := p.Score(in, enrich.Enrichment{Risk: &model.RiskProfile{PermitStatus: "obtained"}})
	require.NoError(t, err)
	assert.Equal(t, model.ProfileTrader, out.Score.Profile)
	require.NotNil(t, out.Summary.Risk)
	assert.Nil(t, in.Risk)
	assert.True(t, hasAlert(out.Alerts, "ltv_excessive"))

	_, err = p.Score(nil, enrich.Enrichment{})
	assert.Error(t, err)

	_, err = p.Score(&model.OperationSummary{Profile: "bogus"}, enrich.Enrichment{})
	assert.True(t, eris.Is(err, scorer.ErrUnknownProfile))
}

func TestIntake(t *testing.T) {
	p := New(nil, nil, newEngine(t))
	res := p.Intake(completeDossier())
	assert.Equal(t, "d-1", res.DossierID)
	assert.Equal(t, 100, res.Completeness.Percentage)
}

package scorer

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/model"
)

func ptrInt(v int) *int { return &v }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultProfiles())
	require.NoError(t, err)
	return e.WithNow(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

// solidResidential is a fully documented buy-to-let operation with no
// missing data.
func solidResidential() *model.OperationSummary {
	return &model.OperationSummary{
		DossierID:    "d-1",
		Profile:      model.ProfileResidential,
		Completeness: &model.CompletenessSnapshot{Provided: 12, Total: 12, Percentage: 100},
		Budget: &model.Budget{
			PurchasePrice: guard.Of(250_000),
			WorksCost:     guard.Of(30_000),
			Fees:          guard.Of(10_000),
			Contingency:   guard.Of(5_000),
		},
		Financing: &model.Financing{
			LoanAmount: guard.Of(200_000),
			Equity:     guard.Of(95_000),
			Guarantees: []model.Guarantee{{ID: "g1", Type: "hypotheque", Amount: 320_000}},
		},
		Revenues: &model.Revenues{AnnualRent: guard.Of(24_000)},
		Market:   &model.MarketData{Score: guard.Of(80)},
		Risk:     &model.RiskProfile{},
		Property: &model.PropertyCondition{State: "good"},
		KPIs: model.KPIs{
			DSCR:     guard.Of(1.6),
			LTV:      guard.Of(55),
			YieldPct: guard.Of(8),
		},
	}
}

func pillarByKey(t *testing.T, r *Result, k PillarKey) PillarResult {
	t.Helper()
	for _, p := range r.Pillars {
		if p.Key == k {
			return p
		}
	}
	t.Fatalf("pillar %s not found", k)
	return PillarResult{}
}

func TestEngine_SolidDossierIsFavorable(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Score(solidResidential())
	require.NoError(t, err)

	assert.Equal(t, model.ProfileResidential, res.Profile)
	assert.Equal(t, "A", res.Grade)
	assert.Equal(t, VerdictFavorable, res.Verdict)
	assert.Empty(t, res.Blockers)
	assert.Empty(t, res.MissingPenalties)
	assert.Len(t, res.Pillars, 8)

	sum := 0
	for _, p := range res.Pillars {
		assert.True(t, p.HasData, p.Key)
		assert.LessOrEqual(t, p.Points, p.MaxPoints, p.Key)
		sum += p.Points
	}
	assert.Equal(t, sum, res.Score)

	assert.Equal(t, 100, pillarByKey(t, res, PillarDocuments).RawScore)
	assert.Equal(t, 100, pillarByKey(t, res, PillarGuarantees).RawScore)
	assert.Equal(t, 95, pillarByKey(t, res, PillarBudget).RawScore)
	assert.Equal(t, 90, pillarByKey(t, res, PillarRevenue).RawScore)
	assert.Equal(t, 80, pillarByKey(t, res, PillarMarket).RawScore)
	assert.Equal(t, 100, pillarByKey(t, res, PillarGeoRisk).RawScore)
	assert.Equal(t, 80, pillarByKey(t, res, PillarFeasibility).RawScore)
	assert.Equal(t, 93, pillarByKey(t, res, PillarRatios).RawScore)

	require.Len(t, res.Drivers, 3)
	for _, d := range res.Drivers {
		assert.True(t, d.Positive)
		assert.GreaterOrEqual(t, d.RawScore, 60)
	}

	assert.Len(t, res.ConfigHash, 32)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), res.ScoredAt)
}

func TestEngine_EmptySummaryIsInsufficient(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.Score(&model.OperationSummary{Profile: model.ProfileResidential})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Score)
	assert.Equal(t, "E", res.Grade)
	assert.Equal(t, VerdictInsufficientData, res.Verdict)
	// documents, guarantees, budget, revenue, market and ratios weigh >= 10.
	assert.Len(t, res.Blockers, 6)
	assert.Contains(t, res.Blockers, "Pilier « Garanties et sûretés » sans données exploitables")
	assert.Empty(t, res.Drivers)
	assert.NotEmpty(t, res.Recommendations)
	for _, p := range res.Pillars {
		assert.False(t, p.HasData)
		assert.Equal(t, 0, p.RawScore)
		assert.NotEmpty(t, p.Actions)
	}
}

func TestEngine_MissingItemsPenalizeAndBlock(t *testing.T) {
	e := newTestEngine(t)
	base, err := e.Score(solidResidential())
	require.NoError(t, err)

	s := solidResidential()
	s.Missing = []model.MissingItem{
		{Key: "tax_notice", Label: "Avis d'imposition", Severity: model.SeverityBlocker},
		{Key: "lease", Label: "Bail en cours", Severity: model.SeverityWarn},
		{Key: "photos", Label: "Photos du bien", Severity: model.SeverityInfo},
	}
	res, err := e.Score(s)
	require.NoError(t, err)

	assert.Equal(t, base.Score-13, res.Score)
	assert.Equal(t, VerdictInsufficientData, res.Verdict)
	assert.Equal(t, []string{"Avis d'imposition"}, res.Blockers)
	require.Len(t, res.MissingPenalties, 2)
	assert.Equal(t, 10, res.MissingPenalties[0].Points)
	assert.Equal(t, 3, res.MissingPenalties[1].Points)
	require.NotEmpty(t, res.Recommendations)
	assert.Equal(t, "Compléter en priorité : Avis d'imposition.", res.Recommendations[0])
}

func TestEngine_UnknownProfile(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Score(&model.OperationSummary{Profile: "hotelier"})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownProfile))
}

func TestEngine_DeterministicHash(t *testing.T) {
	a, err := NewEngine(DefaultProfiles())
	require.NoError(t, err)
	b, err := NewEngine(DefaultProfiles())
	require.NoError(t, err)
	assert.Equal(t, a.hash, b.hash)

	other := DefaultProfiles()
	cfg := other[model.ProfileTrader]
	cfg.Penalties.Warn = 5
	other[model.ProfileTrader] = cfg
	c, err := NewEngine(other)
	require.NoError(t, err)
	assert.NotEqual(t, a.hash, c.hash)
}

func TestNewEngine_RejectsInvalidTable(t *testing.T) {
	_, err := NewEngine(Profiles{})
	assert.Error(t, err)
}

// singlePillar scores only documents so that the completeness percentage
// maps one-to-one onto the final score.
func singlePillar() ProfileConfig {
	return ProfileConfig{
		Pillars:   []PillarWeight{{Key: PillarDocuments, Weight: 100}},
		Grades:    GradeThresholds{A: 80, B: 65, C: 50, D: 35},
		Penalties: Penalties{Blocker: 10, Warn: 3},
	}
}

func TestCompute_VerdictBoundaries(t *testing.T) {
	tests := []struct {
		pct     int
		grade   string
		verdict Verdict
	}{
		{100, "A", VerdictFavorable},
		{80, "A", VerdictFavorable},
		{79, "B", VerdictFavorable},
		{65, "B", VerdictFavorable},
		{64, "C", VerdictFavorableWithConditions},
		{50, "C", VerdictFavorableWithConditions},
		{35, "D", VerdictFavorableWithConditions},
		{34, "E", VerdictUnfavorable},
		{0, "E", VerdictUnfavorable},
	}
	for _, tt := range tests {
		t.Run(tt.grade+"_"+string(tt.verdict), func(t *testing.T) {
			s := &model.OperationSummary{
				Profile:      model.ProfileResidential,
				Completeness: &model.CompletenessSnapshot{Provided: tt.pct, Total: 100, Percentage: tt.pct},
			}
			res := compute(s, singlePillar())
			assert.Equal(t, tt.pct, res.Score)
			assert.Equal(t, tt.grade, res.Grade)
			assert.Equal(t, tt.verdict, res.Verdict)
		})
	}
}

func TestCompute_ScoreNeverNegative(t *testing.T) {
	s := &model.OperationSummary{
		Profile:      model.ProfileResidential,
		Completeness: &model.CompletenessSnapshot{Provided: 5, Total: 100, Percentage: 5},
		Missing: []model.MissingItem{
			{Key: "a", Label: "A", Severity: model.SeverityWarn},
			{Key: "b", Label: "B", Severity: model.SeverityWarn},
			{Key: "c", Label: "C", Severity: model.SeverityWarn},
		},
	}
	res := compute(s, singlePillar())
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, "E", res.Grade)
}

func TestDrivers(t *testing.T) {
	pillars := []PillarResult{
		{Key: PillarDocuments, RawScore: 90, HasData: true},
		{Key: PillarGuarantees, RawScore: 20, HasData: true},
		{Key: PillarBudget, RawScore: 70, HasData: true},
		{Key: PillarRevenue, RawScore: 55, HasData: true},
		{Key: PillarMarket, RawScore: 65, HasData: true},
		{Key: PillarGeoRisk, RawScore: 95, HasData: true},
		{Key: PillarFeasibility, RawScore: 40, HasData: true},
		{Key: PillarPlanning, RawScore: 0, HasData: false},
		{Key: PillarRatios, RawScore: 45, HasData: true},
	}
	got := drivers(pillars)
	require.Len(t, got, 6)

	var keys []PillarKey
	for _, d := range got {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []PillarKey{
		PillarGeoRisk, PillarDocuments, PillarBudget,
		PillarGuarantees, PillarFeasibility, PillarRatios,
	}, keys)
	assert.True(t, got[0].Positive)
	assert.False(t, got[3].Positive)
}

func TestRecommendations_CappedAndDeduplicated(t *testing.T) {
	var pillars []PillarResult
	for i := 0; i < 6; i++ {
		pillars = append(pillars, PillarResult{
			RawScore: 10 * i,
			Actions:  []string{"Action commune", "Action " + string(rune('A'+i))},
		})
	}
	pillars = append(pillars, PillarResult{RawScore: 99, Actions: []string{"X", "Y", "Z", "W"}})

	got := recommendations(pillars, []string{"Bilan", "Liasse fiscale"})
	assert.Len(t, got, maxRecommendations)
	assert.Equal(t, "Compléter en priorité : Bilan, Liasse fiscale.", got[0])
	assert.Equal(t, "Action commune", got[1])
	assert.Equal(t, "Action A", got[2])

	seen := map[string]bool{}
	for _, r := range got {
		assert.False(t, seen[r], "duplicate %q", r)
		seen[r] = true
	}
}

func TestRecommendations_NoBlockers(t *testing.T) {
	got := recommendations([]PillarResult{{RawScore: 30, Actions: []string{"Faire X"}}}, nil)
	assert.Equal(t, []string{"Faire X"}, got)
}

func TestResult_Brief(t *testing.T) {
	r := &Result{
		Score:   62,
		Grade:   "C",
		Verdict: VerdictFavorableWithConditions,
		Pillars: []PillarResult{
			{Key: PillarMarket, Label: "Marché", RawScore: 30, HasData: true},
			{Key: PillarPlanning, Label: "Planning", RawScore: 0},
		},
	}
	b := r.Brief()
	require.NotNil(t, b)
	assert.Equal(t, 62, b.Score)
	assert.Equal(t, "favorable_with_conditions", b.Verdict)
	require.Len(t, b.WeakPillars(), 1)
	assert.Equal(t, "market", b.WeakPillars()[0].Key)

	var nilResult *Result
	assert.Nil(t, nilResult.Brief())
}

func TestScoreGuarantees(t *testing.T) {
	tests := []struct {
		name string
		fin  *model.Financing
		want int
		data bool
	}{
		{"no financing", nil, 0, false},
		{"empty list", &model.Financing{LoanAmount: guard.Of(100), Guarantees: []model.Guarantee{}}, 10, true},
		{"caution 1.2x", &model.Financing{LoanAmount: guard.Of(100), Guarantees: []model.Guarantee{{Type: "caution", Amount: 120}}}, 85, true},
		{"mortgage 1.0x", &model.Financing{LoanAmount: guard.Of(100), Guarantees: []model.Guarantee{{Type: "hypotheque", Amount: 100}}}, 75, true},
		{"caution 0.5x", &model.Financing{LoanAmount: guard.Of(100), Guarantees: []model.Guarantee{{Type: "caution", Amount: 50}}}, 30, true},
		{"unknown loan", &model.Financing{Guarantees: []model.Guarantee{{Type: "caution", Amount: 50}}}, 40, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := scoreGuarantees(&model.OperationSummary{Financing: tt.fin})
			assert.Equal(t, tt.want, ps.Raw)
			assert.Equal(t, tt.data, ps.HasData)
		})
	}
}

func TestScoreRevenue_ByProfile(t *testing.T) {
	budget := &model.Budget{TotalCost: guard.Of(200_000)}

	dev := scoreRevenue(&model.OperationSummary{
		Profile:  model.ProfileDeveloper,
		Revenues: &model.Revenues{PresalesPct: guard.Of(35)},
	})
	assert.Equal(t, 70, dev.Raw)

	trader := scoreRevenue(&model.OperationSummary{
		Profile:  model.ProfileTrader,
		Budget:   budget,
		Revenues: &model.Revenues{ResalePrice: guard.Of(240_000)},
	})
	assert.Equal(t, 90, trader.Raw) // 20 % margin

	resi := scoreRevenue(&model.OperationSummary{
		Profile:  model.ProfileResidential,
		Budget:   budget,
		Revenues: &model.Revenues{MonthlyRent: guard.Of(1_000), OccupancyRate: guard.Of(0.8)},
	})
	assert.Equal(t, 60, resi.Raw) // 6 % yield, low occupancy
	assert.Contains(t, resi.Actions, "Justifier la stratégie de relocation.")
}

func TestScoreMarket_LowLiquidity(t *testing.T) {
	ps := scoreMarket(&model.OperationSummary{Market: &model.MarketData{
		PricePerSqm:       guard.Of(3_000),
		MarketPricePerSqm: guard.Of(3_000),
		TransactionCount:  ptrInt(8),
	}})
	assert.True(t, ps.HasData)
	assert.Equal(t, 60, ps.Raw)
	assert.Contains(t, ps.Actions, "Faire réaliser une expertise indépendante.")
}

func TestScorePlanning(t *testing.T) {
	ps := scorePlanning(&model.OperationSummary{Calendar: &model.Calendar{
		StartDate:      "2026-04-01",
		DurationMonths: ptrInt(18),
		DelayMonths:    ptrInt(4),
	}})
	assert.Equal(t, 55, ps.Raw)

	none := scorePlanning(&model.OperationSummary{Calendar: &model.Calendar{DurationMonths: ptrInt(0)}})
	assert.False(t, none.HasData)
}

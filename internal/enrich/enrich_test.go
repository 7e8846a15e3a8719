package enrich

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sells-group/dossier-cli/internal/catalog"
	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/model"
)

func ptrInt(v int) *int { return &v }

func TestDetectShape(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Shape
	}{
		{"canonical", `{"risks":[{"kind":"flood","level":"high"}]}`, ShapeCanonical},
		{"georisques data", `{"data":[{"libelle":"Radon","niveau":"faible"}]}`, ShapeGeorisques},
		{"georisques risques", `{"risques":[]}`, ShapeGeorisques},
		{"flat", `{"inondation":"fort","seisme":3}`, ShapeFlat},
		{"wrapped result", `{"result":{"risks":[]}}`, ShapeWrapped},
		{"wrapped georisques", `{"georisques":{"data":[]}}`, ShapeWrapped},
		{"empty object", `{}`, ShapeUnknown},
		{"mixed values", `{"inondation":"fort","details":{"x":1}}`, ShapeUnknown},
		{"array", `[1,2]`, ShapeUnknown},
		{"string", `"inondation"`, ShapeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detect(gjson.Parse(tt.payload)))
		})
	}
}

func TestParseRiskPayload_Canonical(t *testing.T) {
	rp, err := ParseRiskPayload([]byte(`{
		"risks": [
			{"kind": "flood", "label": "Inondation", "level": "high"},
			{"label": "Retrait-gonflement des argiles", "level": "medium"},
			{"kind": "radon", "level": "???"}
		],
		"flood_zone": false,
		"urbanism_compliant": true,
		"permit_status": "OBTAINED",
		"execution_risk": "low"
	}`))
	require.NoError(t, err)

	require.Len(t, rp.Hazards, 2)
	assert.Equal(t, model.Hazard{Kind: "flood", Label: "Inondation", Level: model.HazardHigh}, rp.Hazards[0])
	assert.Equal(t, "clay", rp.Hazards[1].Kind)
	assert.False(t, rp.FloodZone)
	require.NotNil(t, rp.UrbanismCompliant)
	assert.True(t, *rp.UrbanismCompliant)
	assert.Equal(t, "obtained", rp.PermitStatus)
	assert.Equal(t, model.HazardLow, rp.ExecutionRisk)
}

func TestParseRiskPayload_Georisques(t *testing.T) {
	rp, err := ParseRiskPayload([]byte(`{
		"data": [
			{"code_insee": "69123", "risques_detail": [
				{"num_risque": "11", "libelle_risque_long": "Inondation"},
				{"num_risque": "13", "libelle_risque_long": "Séisme", "zone_sismicite": "2"}
			]},
			{"libelle": "Radon", "classe_potentiel": 3}
		]
	}`))
	require.NoError(t, err)

	require.Len(t, rp.Hazards, 3)
	assert.Equal(t, "flood", rp.Hazards[0].Kind)
	assert.Equal(t, model.HazardMedium, rp.Hazards[0].Level)
	assert.Equal(t, "seismic", rp.Hazards[1].Kind)
	assert.Equal(t, model.HazardLow, rp.Hazards[1].Level)
	assert.Equal(t, "radon", rp.Hazards[2].Kind)
	assert.Equal(t, model.HazardMedium, rp.Hazards[2].Level)
	assert.True(t, rp.FloodZone)
}

func TestParseRiskPayload_Flat(t *testing.T) {
	rp, err := ParseRiskPayload([]byte(`{"inondation": "Très faible", "seisme": 4, "radon": "inconnu"}`))
	require.NoError(t, err)

	require.Len(t, rp.Hazards, 2)
	byKind := map[string]model.RiskLevelTag{}
	for _, h := range rp.Hazards {
		byKind[h.Kind] = h.Level
	}
	assert.Equal(t, model.HazardLow, byKind["flood"])
	assert.Equal(t, model.HazardHigh, byKind["seismic"])
	assert.False(t, rp.FloodZone)
}

func TestParseRiskPayload_Wrapped(t *testing.T) {
	rp, err := ParseRiskPayload([]byte(`{"result": {"georisques": {"risques": [{"libelle": "Inondation", "niveau": "fort"}]}}}`))
	require.NoError(t, err)
	require.Len(t, rp.Hazards, 1)
	assert.Equal(t, model.HazardHigh, rp.Hazards[0].Level)
	assert.True(t, rp.FloodZone)
}

func TestParseRiskPayload_Errors(t *testing.T) {
	_, err := ParseRiskPayload([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseRiskPayload([]byte(`{"foo": {"bar": 1}}`))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownShape))

	_, err = ParseRiskPayload([]byte(`{"result":{"result":{"result":{"result":{"risks":[]}}}}}`))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownShape))
}

func TestMergeMarket(t *testing.T) {
	dvf := &model.MarketData{
		Source:           "dvf",
		TransactionCount: ptrInt(14),
		PricePerSqm:      guard.Of(math.NaN()),
	}
	listings := &model.MarketData{
		Source:            "listings",
		PricePerSqm:       guard.Of(3_200),
		MarketPricePerSqm: guard.Of(3_400),
		Comparables:       []model.Comparable{{Price: 1}},
	}
	study := &model.MarketData{
		Score:            guard.Of(64),
		TransactionCount: ptrInt(99),
		Tension:          "tendu",
		Comparables:      []model.Comparable{{Price: 2}, {Price: 3}},
	}

	got := MergeMarket(nil, dvf, listings, study)
	require.NotNil(t, got)
	assert.Equal(t, "dvf", got.Source)
	assert.Equal(t, 14, *got.TransactionCount)
	assert.Equal(t, 3_200.0, *got.PricePerSqm)
	assert.Equal(t, 3_400.0, *got.MarketPricePerSqm)
	assert.Equal(t, 64.0, *got.Score)
	assert.Equal(t, "tendu", got.Tension)
	assert.Equal(t, []model.Comparable{{Price: 1}}, got.Comparables)

	// Inputs are not aliased.
	*got.PricePerSqm = 1
	assert.Equal(t, 3_200.0, *listings.PricePerSqm)
}

func TestMergeMarket_AllNil(t *testing.T) {
	assert.Nil(t, MergeMarket())
	assert.Nil(t, MergeMarket(nil, nil))
}

func TestParseDVF(t *testing.T) {
	md, err := ParseDVF([]byte(`{"resultats": [
		{"valeur_fonciere": 300000, "surface_reelle_bati": 100, "date_mutation": "2025-06-01", "adresse": " 1 rue A "},
		{"valeur_fonciere": "250 000,00", "surface_reelle_bati": "50"},
		{"valeur_fonciere": 0, "surface_reelle_bati": 80},
		{"valeur_fonciere": 200000}
	]}`))
	require.NoError(t, err)

	require.Len(t, md.Comparables, 3)
	assert.Equal(t, 3, *md.TransactionCount)
	assert.Equal(t, "1 rue A", md.Comparables[0].Address)
	assert.Equal(t, 3_000.0, md.Comparables[0].PricePerSqm)
	assert.Equal(t, 250_000.0, md.Comparables[1].Price)
	assert.Equal(t, 5_000.0, md.Comparables[1].PricePerSqm)
	require.NotNil(t, md.MarketPricePerSqm)
	assert.Equal(t, 4_000.0, *md.MarketPricePerSqm)

	_, err = ParseDVF([]byte(`{"foo": 1}`))
	assert.Error(t, err)
}

func TestBuildSummary(t *testing.T) {
	cat := catalog.Default()
	reqs := cat.For(model.ProfileTrader)
	docs := make([]model.Document, 0, len(reqs))
	for i, r := range reqs {
		status := model.DocumentSupplied
		switch {
		case i == 0:
			status = model.DocumentNotApplicable
		case i < 4:
			status = model.DocumentPending
		}
		docs = append(docs, model.Document{ID: r.ID, Label: r.Label, Status: status})
	}
	d := &model.Dossier{
		ID:              "d-7",
		Profile:         model.ProfileTrader,
		RequestedAmount: 700_000,
		ProjectValue:    1_200_000,
		Documents:       docs,
		Guarantees:      []model.Guarantee{{ID: "g1", Type: "hypotheque", Amount: 875_000}},
	}

	s := BuildSummary(d, cat)
	assert.Equal(t, "d-7", s.DossierID)
	assert.Equal(t, model.ProfileTrader, s.Profile)
	require.NotNil(t, s.Completeness)
	assert.Equal(t, len(reqs)-1, s.Completeness.Total)
	assert.Equal(t, len(reqs)-4, s.Completeness.Provided)
	assert.Equal(t, 700_000.0, *s.Financing.LoanAmount)
	assert.Len(t, s.Financing.Guarantees, 1)
	require.NotNil(t, s.KPIs.LTV)
	assert.Equal(t, 80.0, *s.KPIs.LTV)

	require.Len(t, s.Missing, 3)
	for _, m := range s.Missing {
		assert.Equal(t, model.SeverityInfo, m.Severity)
		assert.Contains(t, m.Key, "document.")
	}
}

func TestBuildSummary_EmptyDossier(t *testing.T) {
	s := BuildSummary(&model.Dossier{Profile: model.ProfileResidential}, nil)
	assert.Nil(t, s.Financing.LoanAmount)
	assert.Nil(t, s.KPIs.LTV)
	assert.Equal(t, 0, s.Completeness.Percentage)

	keys := map[string]model.Severity{}
	for _, m := range s.Missing {
		keys[m.Key] = m.Severity
	}
	assert.Equal(t, model.SeverityBlocker, keys[MissingLoanAmount])
	assert.Equal(t, model.SeverityWarn, keys[MissingProjectValue])
	assert.Equal(t, model.SeverityWarn, keys[MissingGuarantees])
	assert.Len(t, s.Missing, 3+len(catalog.Default().For(model.ProfileResidential)))
}

func TestEnrichment_Apply(t *testing.T) {
	s := &model.OperationSummary{Market: &model.MarketData{Source: "analyst", Score: guard.Of(70)}}
	Enrichment{
		Risk:   &model.RiskProfile{FloodZone: true},
		Market: []*model.MarketData{{Source: "dvf", Score: guard.Of(40), TransactionCount: ptrInt(25)}},
	}.Apply(s)

	require.NotNil(t, s.Risk)
	assert.True(t, s.Risk.FloodZone)
	assert.Equal(t, "analyst", s.Market.Source)
	assert.Equal(t, 70.0, *s.Market.Score)
	assert.Equal(t, 25, *s.Market.TransactionCount)

	existing := &model.RiskProfile{PermitStatus: "purged"}
	s2 := &model.OperationSummary{Risk: existing}
	Enrichment{Risk: &model.RiskProfile{PermitStatus: "none"}}.Apply(s2)
	assert.Equal(t, "purged", s2.Risk.PermitStatus)
	assert.Nil(t, s2.Market)
}

func TestFromPayloads(t *testing.T) {
	e, err := FromPayloads(
		[]byte(`{"risques":[{"libelle":"Inondation","niveau":"fort"}]}`),
		nil,
		[]byte(`[{"valeur_fonciere":200000,"surface_reelle_bati":50}]`),
	)
	require.NoError(t, err)
	require.NotNil(t, e.Risk)
	assert.True(t, e.Risk.FloodZone)
	require.Len(t, e.Market, 1)
	assert.Equal(t, 4_000.0, *e.Market[0].MarketPricePerSqm)

	empty, err := FromPayloads([]byte("null"), []byte(" "))
	require.NoError(t, err)
	assert.Nil(t, empty.Risk)
	assert.Empty(t, empty.Market)

	_, err = FromPayloads([]byte(`{"x":{"y":1}}`))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownShape))

	_, err = FromPayloads(nil, []byte(`{"foo":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market payload 0")
}

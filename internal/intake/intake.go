package intake

import (
	"github.com/sells-group/dossier-cli/internal/catalog"
	"github.com/sells-group/dossier-cli/internal/model"
)

// Result bundles every intake-time computation for one dossier.
type Result struct {
	DossierID    string            `json:"dossier_id,omitempty"`
	Completeness Completeness      `json:"completeness"`
	LTV          *float64          `json:"ltv,omitempty"`
	RiskLevel    RiskLevel         `json:"risk_level"`
	Conditions   []model.Condition `json:"conditions"`
	Draft        DecisionDraft     `json:"draft"`
}

// Evaluate runs completeness, LTV, risk, conditions and the decision draft
// in order against the dossier's current state.
func Evaluate(d *model.Dossier, cat *catalog.Catalog, seq *Sequence) Result {
	comp := ComputeCompleteness(d.Documents, cat.For(d.Profile))
	ltv := ComputeLTV(d)
	risk := ClassifyRisk(d, ltv)
	conds := SuggestConditions(d, comp, ltv, risk, seq)
	draft := BuildDecisionDraft(d, comp, ltv, risk, conds)

	return Result{
		DossierID:    d.ID,
		Completeness: comp,
		LTV:          ltv,
		RiskLevel:    risk,
		Conditions:   conds,
		Draft:        draft,
	}
}

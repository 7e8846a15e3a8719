package intake

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/model"
)

// fr formats the French texts of conditions and motivations.
var fr = message.NewPrinter(language.French)

// Decision thresholds, in completeness percent and LTV ratio.
const (
	minCompleteness     = 30
	conditionalFloor    = 50
	confidentComplete   = 80
	maxLTVBeforeRefusal = 1.0
)

// DecisionDraft is the engine's proposed verdict for the committee.
type DecisionDraft struct {
	Verdict    model.Verdict     `json:"verdict"`
	Confidence float64           `json:"confidence"`
	Motivation string            `json:"motivation"`
	RiskLevel  RiskLevel         `json:"risk_level"`
	LTV        *float64          `json:"ltv,omitempty"`
	Conditions []model.Condition `json:"conditions"`
	CreatedAt  time.Time         `json:"created_at"`
}

// BuildDecisionDraft combines completeness, LTV, risk level and conditions
// into a verdict. The first matching rule wins:
//
//	completeness < 30%                          -> NO_GO
//	LTV > 100%                                  -> NO_GO
//	high risk, no guarantee, completeness < 50% -> NO_GO
//	conditions present or completeness < 100%   -> GO_SOUS_CONDITIONS (from 50%)
//	otherwise                                   -> GO
func BuildDecisionDraft(d *model.Dossier, c Completeness, ltv *float64, risk RiskLevel, conds []model.Condition) DecisionDraft {
	var (
		verdict model.Verdict
		reasons []string
	)

	switch {
	case c.Percentage < minCompleteness:
		verdict = model.VerdictNoGo
		reasons = append(reasons, fr.Sprintf("Complétude insuffisante (%d %%) pour instruire le dossier.", c.Percentage))
	case ltv != nil && *ltv > maxLTVBeforeRefusal:
		verdict = model.VerdictNoGo
		reasons = append(reasons, fr.Sprintf("Le financement demandé excède la valeur des garanties (LTV %.1f %%).", *ltv*100))
	case risk == RiskHigh && !d.HasGuarantees() && c.Percentage < conditionalFloor:
		verdict = model.VerdictNoGo
		reasons = append(reasons, fr.Sprintf("Risque élevé sans garantie et complétude insuffisante (%d %%).", c.Percentage))
	case len(conds) > 0 || (c.Percentage >= conditionalFloor && c.Percentage < 100):
		verdict = model.VerdictGoWithConditions
		reasons = append(reasons, fr.Sprintf("Dossier recevable sous réserve de %d condition(s) ; complétude %d %%.", len(conds), c.Percentage))
	default:
		verdict = model.VerdictGo
		reasons = append(reasons, fr.Sprintf("Dossier complet (%d %%) sans condition bloquante.", c.Percentage))
	}

	if ltv != nil {
		reasons = append(reasons, fr.Sprintf("LTV : %.1f %%.", *ltv*100))
	} else {
		reasons = append(reasons, "LTV : indéterminé.")
	}
	reasons = append(reasons, fr.Sprintf("Niveau de risque : %s.", risk))

	return DecisionDraft{
		Verdict:    verdict,
		Confidence: draftConfidence(verdict, c.Percentage, risk),
		Motivation: strings.Join(reasons, " "),
		RiskLevel:  risk,
		LTV:        ltv,
		Conditions: conds,
		CreatedAt:  time.Now().UTC(),
	}
}

// draftConfidence starts at 0.9, loses half a point per completeness point
// below 80%, and moves with the risk level: riskier dossiers make a GO less
// certain and a NO_GO more certain.
func draftConfidence(v model.Verdict, pct int, risk RiskLevel) float64 {
	conf := 0.9
	if pct < confidentComplete {
		conf -= float64(confidentComplete-pct) * 0.005
	}
	if v == model.VerdictNoGo {
		switch risk {
		case RiskMedium:
			conf += 0.03
		case RiskHigh:
			conf += 0.05
		}
	} else {
		switch risk {
		case RiskMedium:
			conf -= 0.05
		case RiskHigh:
			conf -= 0.10
		case RiskUnknown:
			conf -= 0.15
		}
	}
	return guard.Round(guard.Clamp(conf, 0.3, 0.95), 2)
}

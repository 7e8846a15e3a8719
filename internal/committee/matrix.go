package committee

import (
	"strings"

	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/model"
)

// Quadrant is the risk/return classification.
type Quadrant string

const (
	QuadrantOptimal      Quadrant = "optimal"
	QuadrantPrudent      Quadrant = "prudent"
	QuadrantVigilance    Quadrant = "vigilance"
	QuadrantUnfavorable  Quadrant = "unfavorable"
	QuadrantIntermediate Quadrant = "intermediate"
)

// DominantRisk is the single highest-priority risk factor.
type DominantRisk string

const (
	RiskDSCR      DominantRisk = "dscr"
	RiskLTV       DominantRisk = "ltv"
	RiskLiquidity DominantRisk = "liquidity"
	RiskGuarantee DominantRisk = "guarantee"
	RiskData      DominantRisk = "data"
	RiskNone      DominantRisk = "none"
)

var dominantRiskLabels = map[DominantRisk]string{
	RiskDSCR:      "Couverture de la dette insuffisante",
	RiskLTV:       "Effet de levier excessif",
	RiskLiquidity: "Liquidité du marché limitée",
	RiskGuarantee: "Garanties insuffisantes",
	RiskData:      "Dossier incomplet",
	RiskNone:      "Aucun risque dominant",
}

const (
	riskBaseline    = 50
	returnBaseline  = 40
	maxCommentary   = 5
	stressedRentPct = 0.9
)

// Matrix is the risk/return classification of an operation.
type Matrix struct {
	RiskScore         int          `json:"risk_score"`
	ReturnScore       int          `json:"return_score"`
	Quadrant          Quadrant     `json:"quadrant"`
	DominantRisk      DominantRisk `json:"dominant_risk"`
	DominantRiskLabel string       `json:"dominant_risk_label"`
	StressedYield     *float64     `json:"stressed_yield,omitempty"`
	Commentary        []string     `json:"commentary"`
}

// ClassifyRiskReturn scores risk and return independently, places the
// operation in a quadrant and names its dominant risk.
func ClassifyRiskReturn(in model.ReportInput) Matrix {
	m := metricsOf(in)
	stressed := guard.RoundPtr(yieldOf(guard.Scale(m.rent, stressedRentPct), m.cost), 2)

	risk, ret := riskScore(m), returnScore(m, stressed)
	dom := dominantRisk(m)
	mx := Matrix{
		RiskScore:         risk,
		ReturnScore:       ret,
		Quadrant:          quadrant(risk, ret),
		DominantRisk:      dom,
		DominantRiskLabel: dominantRiskLabels[dom],
		StressedYield:     stressed,
	}
	mx.Commentary = commentary(mx, m)
	return mx
}

func riskScore(m metrics) int {
	r := riskBaseline
	if l := m.ltv; l != nil {
		switch {
		case *l <= LTVConservative:
			r -= 15
		case *l <= LTVModerate:
			r -= 5
		case *l <= LTVCeiling:
			r += 10
		default:
			r += 20
		}
	}
	if d := m.dscr; d != nil {
		switch {
		case *d >= DSCRComfort:
			r -= 10
		case *d >= DSCRFloor:
			r += 5
		default:
			r += 20
		}
	}
	if s := m.score; s != nil {
		switch {
		case *s >= 65:
			r -= 10
		case *s < 40:
			r += 10
		}
	}
	if s := m.market; s != nil {
		switch {
		case *s >= 70:
			r -= 5
		case *s < 30:
			r += 10
		case *s < 50:
			r += 5
		}
	}
	if n := len(m.missing); n > 0 {
		p := 3 * n
		if p > 15 {
			p = 15
		}
		r += p
	}
	if below(m.margin, MarginFloor) {
		r += 5
	}
	if below(m.yield, YieldFloor) {
		r += 5
	}
	return int(guard.Clamp(float64(r), 0, 100))
}

func returnScore(m metrics, stressed *float64) int {
	r := returnBaseline
	if y := m.yield; y != nil {
		switch {
		case *y >= YieldTarget:
			r += 25
		case *y >= 5:
			r += 15
		case *y >= YieldFloor:
			r += 5
		default:
			r -= 10
		}
	}
	if mg := m.margin; mg != nil {
		switch {
		case *mg >= MarginTarget:
			r += 25
		case *mg >= 10:
			r += 15
		case *mg >= MarginFloor:
			r += 5
		default:
			r -= 10
		}
	}
	if stressed != nil {
		if *stressed >= YieldFloor {
			r += 5
		} else if m.yield != nil && *m.yield >= YieldFloor {
			r -= 5
		}
	}
	if s := m.score; s != nil && *s >= 75 {
		r += 5
	}
	if s := m.market; s != nil && *s >= 70 {
		r += 5
	}
	return int(guard.Clamp(float64(r), 0, 100))
}

func quadrant(risk, ret int) Quadrant {
	switch {
	case risk <= 40 && ret >= 60:
		return QuadrantOptimal
	case risk <= 40:
		return QuadrantPrudent
	case risk > 60 && ret >= 60:
		return QuadrantVigilance
	case risk > 60:
		return QuadrantUnfavorable
	default:
		return QuadrantIntermediate
	}
}

// dominantRisk walks a fixed priority list; the first match wins.
func dominantRisk(m metrics) DominantRisk {
	switch {
	case below(m.dscr, DSCRFloor):
		return RiskDSCR
	case above(m.ltv, LTVCeiling):
		return RiskLTV
	case m.illiquid():
		return RiskLiquidity
	case m.weakGuarantee():
		return RiskGuarantee
	case len(m.missing) > 2:
		return RiskData
	default:
		return RiskNone
	}
}

var quadrantSentences = map[Quadrant]string{
	QuadrantOptimal:      "Profil optimal : risque maîtrisé et rentabilité élevée.",
	QuadrantPrudent:      "Profil prudent : risque maîtrisé pour une rentabilité modeste.",
	QuadrantVigilance:    "Profil sous vigilance : rentabilité élevée mais risque marqué.",
	QuadrantUnfavorable:  "Profil défavorable : risque marqué sans rentabilité suffisante.",
	QuadrantIntermediate: "Profil intermédiaire entre risque et rentabilité.",
}

// commentary runs independent phrase generators in order, each contributing
// at most one sentence, and stops at the cap.
func commentary(mx Matrix, m metrics) []string {
	gens := []func() string{
		func() string { return quadrantSentences[mx.Quadrant] },
		func() string {
			if mx.DominantRisk == RiskNone {
				return ""
			}
			return "Risque dominant : " + strings.ToLower(mx.DominantRiskLabel) + "."
		},
		func() string {
			if m.ltv == nil {
				return ""
			}
			return ltvSentence(*m.ltv)
		},
		func() string {
			if m.dscr == nil {
				return ""
			}
			return dscrSentence(*m.dscr)
		},
		func() string {
			if m.yield == nil || mx.StressedYield == nil {
				return ""
			}
			return "Rendement de " + fmtPct(*m.yield) + ", ramené à " + fmtPct(*mx.StressedYield) + " avec des loyers en baisse de 10 %."
		},
		func() string {
			if m.margin == nil {
				return ""
			}
			return "Marge prévisionnelle de " + fmtPct(*m.margin) + "."
		},
		func() string {
			if len(m.missing) == 0 {
				return ""
			}
			return fmtInt(len(m.missing)) + " élément(s) manquant(s) pèsent sur l'analyse."
		},
	}

	out := []string{}
	for _, g := range gens {
		if len(out) == maxCommentary {
			break
		}
		if s := g(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

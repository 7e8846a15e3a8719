package committee

import (
	"github.com/sells-group/dossier-cli/internal/model"
)

// Stance names a committee posture.
type Stance string

const (
	StanceConservative  Stance = "conservative"
	StanceBalanced      Stance = "balanced"
	StanceOpportunistic Stance = "opportunistic"
)

// Targets are the structural limits a stance asks the operation to meet.
type Targets struct {
	MaxLTV  float64 `json:"max_ltv"`
	MinDSCR float64 `json:"min_dscr"`
}

// Scenario is one committee stance with its own decision and confidence.
type Scenario struct {
	Stance     Stance        `json:"stance"`
	Label      string        `json:"label"`
	Decision   model.Verdict `json:"decision"`
	Confidence float64       `json:"confidence"`
	Summary    string        `json:"summary"`
	Pros       []string      `json:"pros"`
	Cons       []string      `json:"cons"`
	Conditions []string      `json:"conditions"`
	Targets    Targets       `json:"targets"`
}

// GenerateScenarios returns the conservative, balanced and opportunistic
// stances, in that order. Pros and cons are shared; each stance applies its
// own decision rules and confidence.
func GenerateScenarios(in model.ReportInput) []Scenario {
	m := metricsOf(in)
	pros, cons := prosAndCons(m)
	conds := sharedConditions(m)

	out := []Scenario{
		conservative(m, conds),
		balanced(m, conds),
		opportunistic(m, conds),
	}
	for i := range out {
		out[i].Pros = pros
		out[i].Cons = cons
	}
	return out
}

func prosAndCons(m metrics) (pros, cons []string) {
	pros, cons = []string{}, []string{}

	switch {
	case m.ltv == nil:
	case *m.ltv <= LTVConservative:
		pros = append(pros, "LTV conservateur ("+fmtPct(*m.ltv)+").")
	case *m.ltv > LTVCeiling:
		cons = append(cons, "LTV au-delà du plafond ("+fmtPct(*m.ltv)+").")
	case *m.ltv > LTVModerate:
		cons = append(cons, "LTV élevé ("+fmtPct(*m.ltv)+").")
	}

	switch {
	case m.dscr == nil:
	case *m.dscr >= DSCRComfort:
		pros = append(pros, "DSCR confortable ("+fmtRatio(*m.dscr)+").")
	case *m.dscr < DSCRFloor:
		cons = append(cons, "DSCR inférieur à 1 ("+fmtRatio(*m.dscr)+").")
	default:
		cons = append(cons, "DSCR tendu ("+fmtRatio(*m.dscr)+").")
	}

	switch {
	case m.yield == nil:
	case *m.yield >= YieldTarget:
		pros = append(pros, "Rendement attractif ("+fmtPct(*m.yield)+").")
	case *m.yield < YieldFloor:
		cons = append(cons, "Rendement faible ("+fmtPct(*m.yield)+").")
	}

	switch {
	case m.margin == nil:
	case *m.margin >= MarginTarget:
		pros = append(pros, "Marge solide ("+fmtPct(*m.margin)+").")
	case *m.margin < MarginFloor:
		cons = append(cons, "Marge insuffisante ("+fmtPct(*m.margin)+").")
	}

	switch {
	case m.score == nil:
	case *m.score >= 65:
		pros = append(pros, "SmartScore favorable ("+fmtScore(*m.score)+").")
	case *m.score < 40:
		cons = append(cons, "SmartScore faible ("+fmtScore(*m.score)+").")
	}

	switch {
	case m.market == nil:
	case *m.market >= 70:
		pros = append(pros, "Marché dynamique.")
	case *m.market < 50:
		cons = append(cons, "Marché fragile.")
	}
	if m.illiquid() {
		cons = append(cons, "Faible liquidité du marché local.")
	}
	if n := len(m.missing); n > 0 {
		cons = append(cons, fmtInt(n)+" élément(s) manquant(s).")
	}
	return pros, cons
}

func withExtra(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

func conservative(m metrics, conds []string) Scenario {
	s := Scenario{
		Stance:     StanceConservative,
		Label:      "Prudent",
		Targets:    Targets{MaxLTV: 60, MinDSCR: 1.3},
		Conditions: withExtra(conds, "Caution solidaire des associés à hauteur du financement."),
	}
	switch {
	case below(m.dscr, DSCRFloor) || len(m.missing) >= 3:
		s.Decision, s.Confidence = model.VerdictNoGo, 0.85
		s.Summary = "Refus en l'état : couverture de la dette ou complétude insuffisante."
	case len(m.missing) > 0 || above(m.ltv, 60):
		s.Decision, s.Confidence = model.VerdictGoStrictConditions, 0.7
		s.Summary = "Accord sous conditions strictes, levées avant toute signature."
	default:
		s.Decision, s.Confidence = model.VerdictGoWithConditions, 0.75
		s.Summary = "Accord assorti des garanties usuelles renforcées."
	}
	return s
}

func balanced(m metrics, conds []string) Scenario {
	s := Scenario{
		Stance:     StanceBalanced,
		Label:      "Équilibré",
		Targets:    Targets{MaxLTV: 70, MinDSCR: 1.2},
		Conditions: withExtra(conds),
	}
	switch {
	case below(m.ltv, LTVConservative) && len(m.missing) == 0 && (m.dscr == nil || *m.dscr >= DSCRComfort):
		s.Decision, s.Confidence = model.VerdictGo, 0.8
		s.Summary = "Accord : structure saine et dossier complet."
	case below(m.dscr, DSCRFloor) || len(m.missing) >= 3:
		s.Decision, s.Confidence = model.VerdictReserved, 0.65
		s.Summary = "Réserve : instruction à compléter avant décision."
	default:
		s.Decision, s.Confidence = model.VerdictGoWithConditions, 0.7
		s.Summary = "Accord sous conditions de levée des points de vigilance."
	}
	return s
}

func opportunistic(m metrics, conds []string) Scenario {
	s := Scenario{
		Stance:  StanceOpportunistic,
		Label:   "Opportuniste",
		Targets: Targets{MaxLTV: 80, MinDSCR: 1.0},
	}
	// Only document requests survive the opportunistic stance.
	s.Conditions = []string{}
	if len(m.missing) > 0 && len(conds) > 0 {
		s.Conditions = append(s.Conditions, conds[0])
	}
	switch {
	case below(m.ltv, LTVConservative) && (m.market == nil || *m.market > 50):
		s.Decision, s.Confidence = model.VerdictGoPatrimonial, 0.7
		s.Summary = "Accord patrimonial : la garantie couvre largement l'engagement."
	case below(m.dscr, DSCRFloor):
		s.Decision, s.Confidence = model.VerdictReserved, 0.55
		s.Summary = "Réserve : les revenus ne couvrent pas la dette."
	default:
		s.Decision, s.Confidence = model.VerdictGoWithConditions, 0.6
		s.Summary = "Accord sous conditions, en pariant sur la valorisation de l'actif."
	}
	return s
}

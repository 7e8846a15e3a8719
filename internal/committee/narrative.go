package committee

import (
	"strings"

	"github.com/sells-group/dossier-cli/internal/model"
)

// Section titles, in memo order.
const (
	SectionFinancing   = "Structure financière"
	SectionProfit      = "Rentabilité"
	SectionMarket      = "Marché"
	SectionFileQuality = "Qualité du dossier"
)

// Section is one thematic block of the memo.
type Section struct {
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
}

// Narrative is the drafted committee text.
type Narrative struct {
	ExecutiveSummary string        `json:"executive_summary"`
	Sections         []Section     `json:"sections"`
	Decision         model.Verdict `json:"decision"`
	DecisionLine     string        `json:"decision_line"`
	Conditions       []string      `json:"conditions"`
}

// BuildNarrative assembles the memo text from threshold-driven sentences.
// Sections without input degrade to a placeholder paragraph but are always
// present.
func BuildNarrative(in model.ReportInput) Narrative {
	m := metricsOf(in)
	verdict, line := decisionLine(m)
	return Narrative{
		ExecutiveSummary: executiveSummary(in.ProgrammeName, m, verdict),
		Sections: []Section{
			financingSection(m),
			profitSection(m),
			marketSection(in.Market, m),
			qualitySection(m),
		},
		Decision:     verdict,
		DecisionLine: line,
		Conditions:   sharedConditions(m),
	}
}

func decisionLine(m metrics) (model.Verdict, string) {
	switch {
	case below(m.dscr, DSCRFloor):
		return model.VerdictNoGo, "NO GO : le DSCR de " + fmtRatio(*m.dscr) + " ne couvre pas le service de la dette."
	case len(m.missing) >= 3 && above(m.ltv, LTVModerate):
		return model.VerdictReserved, "RÉSERVE : dossier incomplet et LTV supérieur à 70 %, instruction à poursuivre."
	case len(m.missing) > 0:
		return model.VerdictGoWithConditions, "GO SOUS CONDITIONS : levée des pièces manquantes avant décaissement."
	case m.score != nil && *m.score >= 65:
		return model.VerdictGo, "GO : le dossier présente un profil de risque maîtrisé."
	case m.score != nil && *m.score >= 40:
		return model.VerdictGoWithConditions, "GO SOUS CONDITIONS : points de vigilance à lever avant décaissement."
	default:
		return model.VerdictReserved, "RÉSERVE : éléments insuffisants pour se prononcer favorablement."
	}
}

var verdictWords = map[model.Verdict]string{
	model.VerdictGo:                 "avis favorable",
	model.VerdictGoWithConditions:   "avis favorable sous conditions",
	model.VerdictGoStrictConditions: "avis favorable sous conditions strictes",
	model.VerdictGoPatrimonial:      "avis favorable à titre patrimonial",
	model.VerdictReserved:           "réserve",
	model.VerdictNoGo:               "avis défavorable",
}

func executiveSummary(name string, m metrics, v model.Verdict) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "sans nom"
	}
	var facts []string
	if m.score != nil {
		f := "SmartScore " + fmtScore(*m.score)
		if m.grade != "" {
			f += " (grade " + m.grade + ")"
		}
		facts = append(facts, f)
	}
	if m.ltv != nil {
		facts = append(facts, "LTV "+fmtPct(*m.ltv))
	}
	if m.dscr != nil {
		facts = append(facts, "DSCR "+fmtRatio(*m.dscr))
	}
	if m.yield != nil {
		facts = append(facts, "rendement "+fmtPct(*m.yield))
	}

	var b strings.Builder
	b.WriteString("Programme « " + name + " »")
	if len(facts) > 0 {
		b.WriteString(" : " + strings.Join(facts, ", "))
	}
	b.WriteString(". Recommandation : " + verdictWords[v] + ".")
	if n := len(m.missing); n > 0 {
		b.WriteString(" " + fmtInt(n) + " élément(s) manquant(s).")
	}
	return b.String()
}

func section(title string, paras []string) Section {
	if len(paras) == 0 {
		paras = []string{insufficientData}
	}
	return Section{Title: title, Paragraphs: paras}
}

func ltvSentence(ltv float64) string {
	switch {
	case ltv <= LTVConservative:
		return "LTV de " + fmtPct(ltv) + ", niveau conservateur."
	case ltv <= LTVModerate:
		return "LTV de " + fmtPct(ltv) + ", niveau modéré."
	case ltv <= LTVCeiling:
		return "LTV de " + fmtPct(ltv) + ", niveau élevé à surveiller."
	default:
		return "LTV de " + fmtPct(ltv) + ", au-delà du plafond de 80 %."
	}
}

func dscrSentence(dscr float64) string {
	switch {
	case dscr < DSCRFloor:
		return "DSCR de " + fmtRatio(dscr) + " : les revenus ne couvrent pas le service de la dette."
	case dscr < DSCRComfort:
		return "DSCR de " + fmtRatio(dscr) + " : couverture tendue, sous le seuil de confort de 1,20."
	default:
		return "DSCR de " + fmtRatio(dscr) + " : couverture confortable du service de la dette."
	}
}

func financingSection(m metrics) Section {
	var paras []string
	if m.ltv != nil {
		paras = append(paras, ltvSentence(*m.ltv))
	}
	if m.dscr != nil {
		paras = append(paras, dscrSentence(*m.dscr))
	}
	if m.debtRatio != nil {
		s := "Taux d'endettement de " + fmtPct(*m.debtRatio)
		if *m.debtRatio > 35 {
			s += ", au-delà de la norme de 35 %."
		} else {
			s += "."
		}
		paras = append(paras, s)
	}
	return section(SectionFinancing, paras)
}

func profitSection(m metrics) Section {
	var paras []string
	if m.rent != nil && m.cost != nil {
		paras = append(paras, "Loyer annuel de "+fmtEuros(*m.rent)+" pour un coût total de "+fmtEuros(*m.cost)+".")
	}
	if y := m.yield; y != nil {
		switch {
		case *y < YieldFloor:
			paras = append(paras, "Rendement brut de "+fmtPct(*y)+", inférieur au plancher de 4 %.")
		case *y < YieldTarget:
			paras = append(paras, "Rendement brut de "+fmtPct(*y)+", dans la moyenne du marché.")
		default:
			paras = append(paras, "Rendement brut de "+fmtPct(*y)+", attractif.")
		}
	}
	if mg := m.margin; mg != nil {
		switch {
		case *mg < MarginFloor:
			paras = append(paras, "Marge de "+fmtPct(*mg)+", insuffisante pour absorber un aléa.")
		case *mg < MarginTarget:
			paras = append(paras, "Marge de "+fmtPct(*mg)+", correcte.")
		default:
			paras = append(paras, "Marge de "+fmtPct(*mg)+", solide.")
		}
	}
	return section(SectionProfit, paras)
}

func marketSection(study *model.MarketStudy, m metrics) Section {
	if study == nil {
		return section(SectionMarket, nil)
	}
	var paras []string
	if s := m.market; s != nil {
		switch {
		case *s >= 70:
			paras = append(paras, "Marché dynamique (score "+fmtScore(*s)+").")
		case *s >= 50:
			paras = append(paras, "Marché équilibré (score "+fmtScore(*s)+").")
		default:
			paras = append(paras, "Marché fragile (score "+fmtScore(*s)+").")
		}
	}
	if m.txCount != nil {
		if m.illiquid() {
			paras = append(paras, "Liquidité limitée : "+fmtInt(*m.txCount)+" transaction(s) DVF comparables.")
		} else {
			paras = append(paras, fmtInt(*m.txCount)+" transactions DVF comparables, marché liquide.")
		}
	}
	if p, ref := study.PricePerSqm, study.MarketPricePerSqm; p != nil && ref != nil && *ref > 0 {
		gap := (*p - *ref) / *ref * 100
		paras = append(paras, "Prix au m² de "+fmtEuros(*p)+" contre "+fmtEuros(*ref)+" pour le marché ("+fr.Sprintf("%+.1f %%", gap)+").")
	}
	if t := strings.TrimSpace(study.Tension); t != "" {
		paras = append(paras, "Tension du marché : "+t+".")
	}
	return section(SectionMarket, paras)
}

func qualitySection(m metrics) Section {
	var paras []string
	if m.score != nil {
		s := "SmartScore de " + fmtScore(*m.score)
		if m.grade != "" {
			s += ", grade " + m.grade
		}
		paras = append(paras, s+".")
		if len(m.weak) > 0 {
			labels := make([]string, 0, len(m.weak))
			for _, p := range m.weak {
				labels = append(labels, p.Label)
			}
			paras = append(paras, "Piliers faibles : "+strings.Join(labels, ", ")+".")
		}
	}
	if len(m.missing) > 0 {
		paras = append(paras, "Éléments manquants : "+strings.Join(m.missing, ", ")+".")
	} else if m.score != nil {
		paras = append(paras, "Aucun élément manquant signalé.")
	}
	return section(SectionFileQuality, paras)
}

// sharedConditions lists the conditions every stance starts from.
func sharedConditions(m metrics) []string {
	out := []string{}
	if len(m.missing) > 0 {
		out = append(out, "Fournir les éléments manquants : "+strings.Join(m.missing, ", ")+".")
	}
	if below(m.dscr, DSCRComfort) {
		out = append(out, "Justifier un DSCR d'au moins 1,20 avant décaissement.")
	}
	if above(m.ltv, LTVModerate) {
		out = append(out, "Ramener le LTV sous 70 % par un apport complémentaire.")
	}
	if below(m.yield, YieldFloor) {
		out = append(out, "Présenter un plan de revalorisation des loyers.")
	}
	if below(m.margin, MarginFloor) {
		out = append(out, "Sécuriser la marge par des devis fermes et un prix de revente étayé.")
	}
	if m.illiquid() {
		out = append(out, "Produire une expertise indépendante de la valeur vénale.")
	}
	if m.weakGuarantee() {
		out = append(out, "Renforcer les garanties (hypothèque de premier rang ou caution solidaire).")
	}
	return out
}

package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/model"
)

// PillarKey identifies one scoring dimension.
type PillarKey string

const (
	PillarDocuments   PillarKey = "documents"
	PillarGuarantees  PillarKey = "guarantees"
	PillarBudget      PillarKey = "budget"
	PillarRevenue     PillarKey = "revenue"
	PillarMarket      PillarKey = "market"
	PillarGeoRisk     PillarKey = "georisk"
	PillarFeasibility PillarKey = "feasibility"
	PillarPlanning    PillarKey = "planning"
	PillarRatios      PillarKey = "ratios"
)

// PillarScore is what a pillar scorer reports: a raw 0-100 score plus the
// reasons behind it and the actions that would improve it.
type PillarScore struct {
	Raw     int
	HasData bool
	Reasons []string
	Actions []string
}

// PillarScorer scores one pillar from an operation summary. Scorers are pure
// and independent of each other.
type PillarScorer func(s *model.OperationSummary) PillarScore

type pillarDef struct {
	label string
	score PillarScorer
}

var registry = map[PillarKey]pillarDef{
	PillarDocuments:   {"Complétude documentaire", scoreDocuments},
	PillarGuarantees:  {"Garanties et sûretés", scoreGuarantees},
	PillarBudget:      {"Budget de l'opération", scoreBudget},
	PillarRevenue:     {"Revenus et commercialisation", scoreRevenue},
	PillarMarket:      {"Marché", scoreMarket},
	PillarGeoRisk:     {"Risques géographiques", scoreGeoRisk},
	PillarFeasibility: {"Faisabilité et état du bien", scoreFeasibility},
	PillarPlanning:    {"Planning", scorePlanning},
	PillarRatios:      {"Ratios financiers", scoreRatios},
}

// Label returns the display label of a pillar.
func Label(k PillarKey) string {
	if def, ok := registry[k]; ok {
		return def.label
	}
	return string(k)
}

func noData(reason, action string) PillarScore {
	return PillarScore{Reasons: []string{reason}, Actions: []string{action}}
}

func (p *PillarScore) adjust(delta int) {
	p.Raw = int(guard.Clamp(float64(p.Raw+delta), 0, 100))
}

// bucket returns the score of the first threshold v reaches, in descending
// threshold order, or floor.
func bucket(v float64, floor int, steps ...[2]float64) int {
	for _, s := range steps {
		if v >= s[0] {
			return int(s[1])
		}
	}
	return floor
}

func scoreDocuments(s *model.OperationSummary) PillarScore {
	c := s.Completeness
	if c == nil || c.Total == 0 {
		return noData("Aucune donnée de complétude documentaire.", "Renseigner la liste des pièces du dossier.")
	}
	ps := PillarScore{Raw: int(guard.Clamp(float64(c.Percentage), 0, 100)), HasData: true}
	ps.Reasons = append(ps.Reasons, fmt.Sprintf("%d pièce(s) fournie(s) sur %d (%d %%).", c.Provided, c.Total, c.Percentage))
	if c.Percentage < 50 {
		ps.Reasons = append(ps.Reasons, "Complétude insuffisante pour une instruction complète.")
	}
	if missing := c.Total - c.Provided; missing > 0 {
		ps.Actions = append(ps.Actions, fmt.Sprintf("Compléter les %d pièce(s) manquante(s).", missing))
	}
	return ps
}

func scoreGuarantees(s *model.OperationSummary) PillarScore {
	f := s.Financing
	if f == nil || (f.Guarantees == nil && f.LoanAmount == nil) {
		return noData("Aucune information sur les garanties.", "Renseigner les garanties proposées.")
	}
	if len(f.Guarantees) == 0 {
		return PillarScore{
			Raw:     10,
			HasData: true,
			Reasons: []string{"Aucune garantie constituée."},
			Actions: []string{"Constituer une hypothèque ou une caution solidaire."},
		}
	}

	var total float64
	mortgage := false
	for _, g := range f.Guarantees {
		total += guard.Value(guard.Finite(g.Amount), 0)
		if strings.Contains(strings.ToLower(g.Type), "hypoth") {
			mortgage = true
		}
	}

	ps := PillarScore{HasData: true}
	coverage := guard.Ratio(&total, f.LoanAmount)
	if coverage == nil {
		ps.Raw = 40
		ps.Reasons = append(ps.Reasons, "Couverture non calculable : montant du financement inconnu.")
		ps.Actions = append(ps.Actions, "Renseigner le montant du financement.")
	} else {
		ps.Raw = bucket(*coverage, 30, [2]float64{1.5, 95}, [2]float64{1.2, 85}, [2]float64{1.0, 70}, [2]float64{0.8, 50})
		ps.Reasons = append(ps.Reasons, fmt.Sprintf("Couverture des garanties : %.0f %% du financement.", *coverage*100))
		if *coverage < 1 {
			ps.Actions = append(ps.Actions, "Renforcer les garanties pour couvrir au moins 100 % du financement.")
		}
	}
	if mortgage {
		ps.adjust(5)
		ps.Reasons = append(ps.Reasons, "Garantie hypothécaire constituée.")
	}
	return ps
}

// BudgetTotal returns the declared total cost, or the sum of its parts.
func BudgetTotal(b *model.Budget) *float64 {
	if t := guard.PositivePtr(b.TotalCost); t != nil {
		return t
	}
	var sum float64
	for _, part := range []*float64{b.PurchasePrice, b.WorksCost, b.Fees, b.Contingency} {
		sum += guard.Value(guard.FinitePtr(part), 0)
	}
	return guard.Positive(sum)
}

func scoreBudget(s *model.OperationSummary) PillarScore {
	b := s.Budget
	if b == nil {
		return noData("Budget de l'opération non renseigné.", "Fournir le budget détaillé de l'opération.")
	}
	total := BudgetTotal(b)
	if total == nil {
		return noData("Coût total de l'opération inconnu.", "Fournir le budget détaillé de l'opération.")
	}

	ps := PillarScore{Raw: 70, HasData: true}

	base := guard.PositivePtr(b.WorksCost)
	if base == nil {
		base = total
	}
	if r := guard.Ratio(b.Contingency, base); r != nil && *r >= 0.05 {
		ps.adjust(10)
		ps.Reasons = append(ps.Reasons, fmt.Sprintf("Enveloppe d'aléas de %.0f %%.", *r*100))
	} else {
		ps.adjust(-10)
		ps.Reasons = append(ps.Reasons, "Enveloppe d'aléas absente ou inférieure à 5 %.")
		ps.Actions = append(ps.Actions, "Prévoir une enveloppe d'aléas d'au moins 5 %.")
	}

	if r := guard.Ratio(b.Fees, total); r != nil && *r > 0.12 {
		ps.adjust(-10)
		ps.Reasons = append(ps.Reasons, fmt.Sprintf("Frais élevés (%.0f %% du coût total).", *r*100))
	}

	if s.Financing != nil {
		if r := guard.Ratio(s.Financing.Equity, total); r != nil {
			switch {
			case *r >= 0.2:
				ps.adjust(15)
				ps.Reasons = append(ps.Reasons, fmt.Sprintf("Apport solide (%.0f %%).", *r*100))
			case *r >= 0.1:
				ps.adjust(5)
				ps.Reasons = append(ps.Reasons, fmt.Sprintf("Apport de %.0f %%.", *r*100))
			default:
				ps.adjust(-15)
				ps.Reasons = append(ps.Reasons, fmt.Sprintf("Apport faible (%.0f %%).", *r*100))
				ps.Actions = append(ps.Actions, "Augmenter l'apport en fonds propres.")
			}
		}
	}
	return ps
}

// AnnualRent prefers the annual figure and falls back to twelve months.
func AnnualRent(r *model.Revenues) *float64 {
	if a := guard.PositivePtr(r.AnnualRent); a != nil {
		return a
	}
	return guard.Scale(guard.PositivePtr(r.MonthlyRent), 12)
}

func scoreRevenue(s *model.OperationSummary) PillarScore {
	r := s.Revenues
	if r == nil {
		return noData("Revenus de l'opération non renseignés.", "Renseigner les revenus attendus.")
	}
	var total *float64
	if s.Budget != nil {
		total = BudgetTotal(s.Budget)
	}

	switch s.Profile {
	case model.ProfileDeveloper:
		pre := guard.FinitePtr(r.PresalesPct)
		if pre == nil {
			return noData("Taux de pré-commercialisation inconnu.", "Fournir l'état de pré-commercialisation.")
		}
		ps := PillarScore{HasData: true, Raw: bucket(*pre, 30, [2]float64{50, 90}, [2]float64{30, 70}, [2]float64{15, 50})}
		ps.Reasons = append(ps.Reasons, fmt.Sprintf("Pré-commercialisation : %.0f %%.", *pre))
		if *pre < 30 {
			ps.Actions = append(ps.Actions, "Atteindre 30 % de pré-commercialisation avant déblocage.")
		}
		return ps

	case model.ProfileTrader:
		margin := guard.FinitePtr(s.KPIs.MarginPct)
		if margin == nil && total != nil {
			if resale := guard.PositivePtr(r.ResalePrice); resale != nil {
				margin = guard.Finite((*resale - *total) / *total * 100)
			}
		}
		if margin == nil {
			return noData("Marge de l'opération non calculable.", "Fournir le prix de revente estimé.")
		}
		ps := PillarScore{HasData: true, Raw: bucket(*margin, 25, [2]float64{15, 90}, [2]float64{10, 70}, [2]float64{5, 50})}
		ps.Reasons = append(ps.Reasons, fmt.Sprintf("Marge prévisionnelle : %.1f %%.", *margin))
		if *margin < 10 {
			ps.Actions = append(ps.Actions, "Sécuriser la marge (prix d'achat, coût des travaux, prix de revente).")
		}
		return ps

	default:
		yield := guard.FinitePtr(s.KPIs.YieldPct)
		if yield == nil {
			if y := guard.Ratio(AnnualRent(r), total); y != nil {
				yield = guard.Of(*y * 100)
			}
		}
		if yield == nil {
			return noData("Rendement locatif non calculable.", "Fournir l'état locatif ou une estimation des loyers.")
		}
		ps := PillarScore{HasData: true, Raw: bucket(*yield, 35, [2]float64{7, 90}, [2]float64{5, 70}, [2]float64{4, 55})}
		ps.Reasons = append(ps.Reasons, fmt.Sprintf("Rendement brut : %.1f %%.", *yield))
		if occ := guard.FinitePtr(r.OccupancyRate); occ != nil && *occ < 0.9 {
			ps.adjust(-10)
			ps.Reasons = append(ps.Reasons, fmt.Sprintf("Taux d'occupation de %.0f %%.", *occ*100))
			ps.Actions = append(ps.Actions, "Justifier la stratégie de relocation.")
		}
		if *yield < 4 {
			ps.Actions = append(ps.Actions, "Revoir le plan de financement au regard d'un rendement inférieur à 4 %.")
		}
		return ps
	}
}

func scoreMarket(s *model.OperationSummary) PillarScore {
	m := s.Market
	if m == nil {
		return noData("Aucune étude de marché.", "Réaliser une étude de marché (DVF, comparables).")
	}
	ps := PillarScore{HasData: true}
	switch {
	case guard.FinitePtr(m.Score) != nil:
		ps.Raw = int(math.Round(guard.Clamp(*m.Score, 0, 100)))
		ps.Reasons = append(ps.Reasons, fmt.Sprintf("Score de marché : %.0f/100.", *m.Score))
	case guard.PositivePtr(m.PricePerSqm) != nil && guard.PositivePtr(m.MarketPricePerSqm) != nil:
		gap := (*m.PricePerSqm - *m.MarketPricePerSqm) / *m.MarketPricePerSqm * 100
		ps.Raw = 30
		switch {
		case gap <= -10:
			ps.Raw = 85
		case gap <= 5:
			ps.Raw = 70
		case gap <= 15:
			ps.Raw = 50
		}
		ps.Reasons = append(ps.Reasons, fmt.Sprintf("Prix au m² à %+.0f %% du marché.", gap))
		if gap > 5 {
			ps.Actions = append(ps.Actions, "Justifier le prix d'acquisition au regard des comparables.")
		}
	default:
		return noData("Étude de marché sans indicateur exploitable.", "Compléter l'étude de marché (prix au m², comparables).")
	}

	if m.TransactionCount != nil && *m.TransactionCount < 20 {
		ps.adjust(-10)
		ps.Reasons = append(ps.Reasons, fmt.Sprintf("Faible liquidité : %d transaction(s) DVF.", *m.TransactionCount))
		ps.Actions = append(ps.Actions, "Faire réaliser une expertise indépendante.")
	}
	return ps
}

func scoreGeoRisk(s *model.OperationSummary) PillarScore {
	r := s.Risk
	if r == nil {
		return noData("Risques géographiques non analysés.", "Interroger les bases de risques naturels et technologiques.")
	}
	ps := PillarScore{Raw: 100, HasData: true}
	for _, h := range r.Hazards {
		label := h.Label
		if label == "" {
			label = h.Kind
		}
		switch h.Level {
		case model.HazardHigh:
			ps.adjust(-30)
			ps.Reasons = append(ps.Reasons, fmt.Sprintf("Risque %s élevé.", label))
			ps.Actions = append(ps.Actions, fmt.Sprintf("Documenter les mesures de prévention du risque %s.", label))
		case model.HazardMedium:
			ps.adjust(-15)
			ps.Reasons = append(ps.Reasons, fmt.Sprintf("Risque %s modéré.", label))
		case model.HazardLow:
			ps.adjust(-5)
		}
	}
	if r.FloodZone {
		ps.adjust(-15)
		ps.Reasons = append(ps.Reasons, "Bien situé en zone inondable.")
		ps.Actions = append(ps.Actions, "Vérifier l'assurabilité du bien en zone inondable.")
	}
	if r.UrbanismCompliant != nil && !*r.UrbanismCompliant {
		ps.adjust(-25)
		ps.Reasons = append(ps.Reasons, "Non-conformité aux règles d'urbanisme.")
		ps.Actions = append(ps.Actions, "Régulariser la situation d'urbanisme.")
	}
	if len(ps.Reasons) == 0 {
		ps.Reasons = append(ps.Reasons, "Aucun risque significatif identifié.")
	}
	return ps
}

var propertyStateScores = map[string]int{
	"new":         95,
	"good":        80,
	"average":     60,
	"poor":        40,
	"to_renovate": 35,
}

var permitScores = map[string]int{
	"purged":   100,
	"obtained": 80,
	"filed":    50,
	"none":     20,
}

var executionScores = map[model.RiskLevelTag]int{
	model.HazardLow:    90,
	model.HazardMedium: 60,
	model.HazardHigh:   30,
}

func scoreFeasibility(s *model.OperationSummary) PillarScore {
	ps := PillarScore{}
	var subs []int

	if p := s.Property; p != nil {
		if v, ok := propertyStateScores[p.State]; ok {
			switch strings.ToUpper(p.EnergyClass) {
			case "F", "G":
				v -= 15
				ps.Reasons = append(ps.Reasons, fmt.Sprintf("Classe énergétique %s.", strings.ToUpper(p.EnergyClass)))
				ps.Actions = append(ps.Actions, "Chiffrer les travaux de rénovation énergétique.")
			}
			subs = append(subs, v)
			ps.Reasons = append(ps.Reasons, fmt.Sprintf("État du bien : %s.", p.State))
		}
	}
	if r := s.Risk; r != nil {
		if v, ok := permitScores[r.PermitStatus]; ok {
			subs = append(subs, v)
			ps.Reasons = append(ps.Reasons, fmt.Sprintf("Autorisation d'urbanisme : %s.", r.PermitStatus))
			if v < 80 {
				ps.Actions = append(ps.Actions, "Obtenir un permis purgé de tout recours.")
			}
		}
		if v, ok := executionScores[r.ExecutionRisk]; ok {
			subs = append(subs, v)
			ps.Reasons = append(ps.Reasons, fmt.Sprintf("Risque d'exécution : %s.", r.ExecutionRisk))
		}
	}

	if len(subs) == 0 {
		return noData("Faisabilité non documentée.", "Documenter l'état du bien et les autorisations.")
	}
	ps.HasData = true
	ps.Raw = int(guard.Clamp(math.Round(mean(subs)), 0, 100))
	return ps
}

func scorePlanning(s *model.OperationSummary) PillarScore {
	c := s.Calendar
	if c == nil || c.DurationMonths == nil || *c.DurationMonths <= 0 {
		return noData("Planning de l'opération non renseigné.", "Fournir un planning détaillé de l'opération.")
	}
	d := float64(*c.DurationMonths)
	ps := PillarScore{HasData: true, Raw: 30}
	switch {
	case d <= 12:
		ps.Raw = 90
	case d <= 18:
		ps.Raw = 75
	case d <= 24:
		ps.Raw = 60
	case d <= 36:
		ps.Raw = 45
	}
	ps.Reasons = append(ps.Reasons, fmt.Sprintf("Durée prévisionnelle : %d mois.", *c.DurationMonths))

	if c.DelayMonths != nil {
		switch {
		case *c.DelayMonths > 3:
			ps.adjust(-20)
			ps.Reasons = append(ps.Reasons, fmt.Sprintf("Retard constaté de %d mois.", *c.DelayMonths))
			ps.Actions = append(ps.Actions, "Présenter un planning de rattrapage.")
		case *c.DelayMonths > 0:
			ps.adjust(-10)
			ps.Reasons = append(ps.Reasons, fmt.Sprintf("Retard constaté de %d mois.", *c.DelayMonths))
		}
	}
	if c.StartDate == "" {
		ps.adjust(-5)
		ps.Actions = append(ps.Actions, "Préciser la date de démarrage.")
	}
	return ps
}

func scoreRatios(s *model.OperationSummary) PillarScore {
	k := s.KPIs
	ps := PillarScore{}
	var subs []int

	if dscr := guard.FinitePtr(k.DSCR); dscr != nil {
		subs = append(subs, bucket(*dscr, 20, [2]float64{1.5, 100}, [2]float64{1.3, 85}, [2]float64{1.2, 70}, [2]float64{1.0, 50}))
		ps.Reasons = append(ps.Reasons, fmt.Sprintf("DSCR : %.2f.", *dscr))
		if *dscr < 1.2 {
			ps.Actions = append(ps.Actions, "Améliorer la couverture du service de la dette (DSCR ≥ 1,2).")
		}
	}
	if ltv := guard.FinitePtr(k.LTV); ltv != nil {
		v := 25
		switch {
		case *ltv <= 50:
			v = 100
		case *ltv <= 60:
			v = 85
		case *ltv <= 70:
			v = 70
		case *ltv <= 80:
			v = 50
		}
		subs = append(subs, v)
		ps.Reasons = append(ps.Reasons, fmt.Sprintf("LTV : %.1f %%.", *ltv))
		if *ltv > 70 {
			ps.Actions = append(ps.Actions, "Réduire le LTV par un apport complémentaire.")
		}
	}
	if dr := guard.FinitePtr(k.DebtRatio); dr != nil {
		v := 35
		switch {
		case *dr <= 33:
			v = 90
		case *dr <= 40:
			v = 65
		}
		subs = append(subs, v)
		ps.Reasons = append(ps.Reasons, fmt.Sprintf("Taux d'endettement : %.0f %%.", *dr))
		if *dr > 35 {
			ps.Actions = append(ps.Actions, "Ramener le taux d'endettement sous 35 %.")
		}
	}

	if len(subs) == 0 {
		return noData("Aucun ratio financier disponible.", "Calculer DSCR, LTV et taux d'endettement.")
	}
	ps.HasData = true
	ps.Raw = int(guard.Clamp(math.Round(mean(subs)), 0, 100))
	return ps
}

func mean(vs []int) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vs {
		sum += v
	}
	return float64(sum) / float64(len(vs))
}

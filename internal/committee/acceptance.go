package committee

import (
	"sort"

	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/model"
)

const (
	acceptanceBaseline     = 50
	missingPointsPerItem   = 3
	missingPenaltyCap      = 20
	acceptanceHighFloor    = 70
	acceptanceAverageFloor = 45
)

// AcceptanceLabel buckets the acceptance score.
type AcceptanceLabel string

const (
	AcceptanceHigh    AcceptanceLabel = "elevee"
	AcceptanceAverage AcceptanceLabel = "moyenne"
	AcceptanceLow     AcceptanceLabel = "faible"
)

// AcceptanceDriver is one factor of the additive model.
type AcceptanceDriver struct {
	Factor string `json:"factor"`
	Impact int    `json:"impact"`
	Detail string `json:"detail"`
}

// Acceptance is the estimated probability, 0-100, that the committee
// approves the operation.
type Acceptance struct {
	Score   int                `json:"score"`
	Label   AcceptanceLabel    `json:"label"`
	Drivers []AcceptanceDriver `json:"drivers"`
}

// EstimateAcceptance applies the additive bucket model to a report.
func EstimateAcceptance(in model.ReportInput) Acceptance {
	return acceptanceOf(metricsOf(in))
}

func acceptanceOf(m metrics) Acceptance {
	drivers := []AcceptanceDriver{}
	add := func(factor string, impact int, detail string) {
		drivers = append(drivers, AcceptanceDriver{Factor: factor, Impact: impact, Detail: detail})
	}

	if d := m.dscr; d != nil {
		v := fmtRatio(*d)
		switch {
		case *d >= 1.5:
			add("dscr", 18, "DSCR de "+v+", couverture très confortable.")
		case *d >= 1.3:
			add("dscr", 14, "DSCR de "+v+", couverture confortable.")
		case *d >= DSCRComfort:
			add("dscr", 10, "DSCR de "+v+", au seuil de confort.")
		case *d >= DSCRFloor:
			add("dscr", 2, "DSCR de "+v+", couverture tendue.")
		case *d >= 0.9:
			add("dscr", -12, "DSCR de "+v+", revenus insuffisants.")
		default:
			add("dscr", -25, "DSCR de "+v+", déficit de couverture marqué.")
		}
	}

	if l := m.ltv; l != nil {
		v := fmtPct(*l)
		switch {
		case *l <= 40:
			add("ltv", 15, "LTV de "+v+", très bien garanti.")
		case *l <= LTVConservative:
			add("ltv", 10, "LTV de "+v+", bien garanti.")
		case *l <= 60:
			add("ltv", 5, "LTV de "+v+", garantie correcte.")
		case *l <= LTVModerate:
			add("ltv", -2, "LTV de "+v+", garantie juste.")
		case *l <= LTVCeiling:
			add("ltv", -8, "LTV de "+v+", garantie tendue.")
		default:
			add("ltv", -18, "LTV de "+v+", au-delà du plafond.")
		}
	}

	if s := m.score; s != nil {
		v := fmtScore(*s)
		switch {
		case *s >= 75:
			add("smartscore", 12, "SmartScore de "+v+", excellent.")
		case *s >= 60:
			add("smartscore", 7, "SmartScore de "+v+", bon.")
		case *s >= 45:
			add("smartscore", 0, "SmartScore de "+v+", neutre.")
		case *s >= 30:
			add("smartscore", -6, "SmartScore de "+v+", faible.")
		default:
			add("smartscore", -14, "SmartScore de "+v+", très faible.")
		}
	}

	if s := m.market; s != nil {
		v := fmtScore(*s)
		switch {
		case *s >= 70:
			add("market", 8, "Marché porteur ("+v+").")
		case *s >= 50:
			add("market", 3, "Marché correct ("+v+").")
		case *s >= 30:
			add("market", -3, "Marché hésitant ("+v+").")
		default:
			add("market", -10, "Marché défavorable ("+v+").")
		}
	}

	if mg := m.margin; mg != nil {
		switch {
		case *mg >= MarginTarget:
			add("margin", 4, "Marge de "+fmtPct(*mg)+", solide.")
		case *mg < MarginFloor:
			add("margin", -5, "Marge de "+fmtPct(*mg)+", insuffisante.")
		}
	}

	if y := m.yield; y != nil {
		switch {
		case *y >= YieldTarget:
			add("yield", 4, "Rendement de "+fmtPct(*y)+", attractif.")
		case *y < YieldFloor:
			add("yield", -4, "Rendement de "+fmtPct(*y)+", faible.")
		}
	}

	if n := len(m.missing); n > 0 {
		p := n * missingPointsPerItem
		if p > missingPenaltyCap {
			p = missingPenaltyCap
		}
		add("missing", -p, fmtInt(n)+" élément(s) manquant(s).")
	}

	total := acceptanceBaseline
	for _, d := range drivers {
		total += d.Impact
	}
	score := int(guard.Clamp(float64(total), 0, 100))

	sort.SliceStable(drivers, func(i, j int) bool { return abs(drivers[i].Impact) > abs(drivers[j].Impact) })
	return Acceptance{Score: score, Label: acceptanceLabel(score), Drivers: drivers}
}

func acceptanceLabel(score int) AcceptanceLabel {
	switch {
	case score >= acceptanceHighFloor:
		return AcceptanceHigh
	case score >= acceptanceAverageFloor:
		return AcceptanceAverage
	default:
		return AcceptanceLow
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

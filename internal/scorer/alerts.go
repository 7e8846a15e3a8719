package scorer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/dossier-cli/internal/model"
)

// AlertSeverity orders alerts for display.
type AlertSeverity string

const (
	AlertInfo     AlertSeverity = "info"
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

func (s AlertSeverity) rank() int {
	switch s {
	case AlertCritical:
		return 0
	case AlertWarning:
		return 1
	default:
		return 2
	}
}

// Alert is one flat, severity-tagged finding for the dashboard.
type Alert struct {
	Severity AlertSeverity `json:"severity"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Source   string        `json:"source"`
}

// CleanMissing trims labels, drops items without a key or label and keeps
// the first occurrence of each key.
func CleanMissing(items []model.MissingItem) []model.MissingItem {
	out := make([]model.MissingItem, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, m := range items {
		m.Key = strings.TrimSpace(m.Key)
		m.Label = strings.TrimSpace(m.Label)
		if m.Key == "" || m.Label == "" || seen[m.Key] {
			continue
		}
		seen[m.Key] = true
		out = append(out, m)
	}
	return out
}

// DeriveAlerts turns pillar scores, KPI thresholds and missing-data items
// into a flat list, most severe first. Order within a severity follows
// pillars, then KPIs, then missing items.
func DeriveAlerts(res *Result, kpis model.KPIs, missing []model.MissingItem) []Alert {
	alerts := []Alert{}

	if res != nil {
		for _, p := range res.Pillars {
			if !p.HasData {
				continue
			}
			switch {
			case p.RawScore < 25:
				alerts = append(alerts, Alert{AlertCritical, "pillar_critical",
					fmt.Sprintf("Pilier « %s » très faible (%d/100).", p.Label, p.RawScore), string(p.Key)})
			case p.RawScore < 40:
				alerts = append(alerts, Alert{AlertWarning, "pillar_weak",
					fmt.Sprintf("Pilier « %s » faible (%d/100).", p.Label, p.RawScore), string(p.Key)})
			}
		}
	}

	if v := kpis.DSCR; v != nil {
		switch {
		case *v < 1:
			alerts = append(alerts, Alert{AlertCritical, "dscr_below_one",
				fmt.Sprintf("DSCR de %.2f : les revenus ne couvrent pas le service de la dette.", *v), "kpi"})
		case *v < 1.2:
			alerts = append(alerts, Alert{AlertWarning, "dscr_tight",
				fmt.Sprintf("DSCR de %.2f, sous le seuil de confort de 1,20.", *v), "kpi"})
		}
	}
	if v := kpis.LTV; v != nil {
		switch {
		case *v > 80:
			alerts = append(alerts, Alert{AlertCritical, "ltv_excessive",
				fmt.Sprintf("LTV de %.1f %%, au-delà de 80 %%.", *v), "kpi"})
		case *v > 70:
			alerts = append(alerts, Alert{AlertWarning, "ltv_high",
				fmt.Sprintf("LTV de %.1f %%, au-delà de 70 %%.", *v), "kpi"})
		}
	}
	if v := kpis.MarginPct; v != nil && *v < 5 {
		alerts = append(alerts, Alert{AlertWarning, "margin_low",
			fmt.Sprintf("Marge de %.1f %%, inférieure à 5 %%.", *v), "kpi"})
	}
	if v := kpis.YieldPct; v != nil && *v < 4 {
		alerts = append(alerts, Alert{AlertWarning, "yield_low",
			fmt.Sprintf("Rendement de %.1f %%, inférieur à 4 %%.", *v), "kpi"})
	}

	for _, m := range CleanMissing(missing) {
		sev := AlertInfo
		switch m.Severity {
		case model.SeverityBlocker:
			sev = AlertCritical
		case model.SeverityWarn:
			sev = AlertWarning
		}
		alerts = append(alerts, Alert{sev, "missing_" + m.Key, "Donnée manquante : " + m.Label + ".", "missing"})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.rank() < alerts[j].Severity.rank()
	})
	return alerts
}

// Package committee drafts the credit-committee memo from a flattened report:
// narrative, decision scenarios, acceptance probability, risk/return matrix
// and stress tests. Every component reads the same thresholds so the memo
// text and the charts agree.
package committee

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/model"
)

// Shared committee thresholds. LTV, yield and margin are percentages.
const (
	DSCRFloor   = 1.0
	DSCRComfort = 1.2

	LTVConservative = 50.0
	LTVModerate     = 70.0
	LTVCeiling      = 80.0

	YieldFloor  = 4.0
	YieldTarget = 7.0

	MarginFloor  = 5.0
	MarginTarget = 15.0

	// DVFLiquidity is the transaction count under which a market is
	// considered illiquid.
	DVFLiquidity = 20

	insufficientData = "Données insuffisantes pour analyser cette section."
)

// metrics is the guarded view of a report input every component reads from.
type metrics struct {
	ltv       *float64
	dscr      *float64
	rent      *float64
	cost      *float64
	yield     *float64
	margin    *float64
	debtRatio *float64
	score     *float64
	grade     string
	market    *float64
	txCount   *int
	missing   []string
	weak      []model.PillarBrief
}

func metricsOf(in model.ReportInput) metrics {
	m := metrics{
		ltv:       guard.PositivePtr(in.KPIs.LTV),
		dscr:      guard.PositivePtr(in.KPIs.DSCR),
		rent:      guard.PositivePtr(in.KPIs.Rent),
		cost:      guard.PositivePtr(in.KPIs.Cost),
		margin:    guard.FinitePtr(in.KPIs.Margin),
		debtRatio: guard.FinitePtr(in.KPIs.DebtRatio),
		missing:   cleanLabels(in.Missing),
	}
	m.yield = yieldOf(m.rent, m.cost)
	if s := in.SmartScore; s != nil {
		m.score = guard.Of(float64(s.Score))
		m.grade = s.Grade
		m.weak = s.WeakPillars()
	}
	if mk := in.Market; mk != nil {
		m.market = guard.FinitePtr(mk.Score)
		if mk.TransactionCount != nil && *mk.TransactionCount >= 0 {
			n := *mk.TransactionCount
			m.txCount = &n
		}
	}
	return m
}

// yieldOf is annual rent over total cost, as a percentage.
func yieldOf(rent, cost *float64) *float64 {
	return guard.Scale(guard.Ratio(rent, cost), 100)
}

func cleanLabels(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func below(p *float64, limit float64) bool { return p != nil && *p < limit }
func above(p *float64, limit float64) bool { return p != nil && *p > limit }

// illiquid reports whether the DVF transaction count is known and low.
func (m metrics) illiquid() bool { return m.txCount != nil && *m.txCount < DVFLiquidity }

// weakGuarantee reports whether a weak pillar is about guarantees or sureties.
func (m metrics) weakGuarantee() bool {
	for _, p := range m.weak {
		l := strings.ToLower(p.Label + " " + p.Key)
		for _, kw := range []string{"garantie", "sûreté", "surete", "guarantee", "caution"} {
			if strings.Contains(l, kw) {
				return true
			}
		}
	}
	return false
}

var fr = message.NewPrinter(language.French)

func fmtPct(v float64) string { return fr.Sprintf("%.1f %%", v) }
func fmtRatio(v float64) string { return fr.Sprintf("%.2f", v) }
func fmtEuros(v float64) string { return fr.Sprintf("%.0f €", v) }
func fmtScore(v float64) string { return fr.Sprintf("%.0f/100", v) }
func fmtInt(n int) string { return fr.Sprintf("%d", n) }

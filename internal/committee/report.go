package committee

import (
	"strings"

	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/intake"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/scorer"
)

// NewReportInput flattens a dossier, its operation summary and its latest
// SmartScore into the memo input. Summary and score may be nil.
func NewReportInput(d *model.Dossier, s *model.OperationSummary, score *scorer.Result) model.ReportInput {
	in := model.ReportInput{ProgrammeName: programmeName(d)}
	if score != nil {
		in.SmartScore = score.Brief()
	}

	// Without an enriched summary, fall back to the intake LTV.
	if s == nil {
		if d != nil {
			in.KPIs.LTV = guard.RoundPtr(guard.Scale(intake.ComputeLTV(d), 100), 1)
		}
		return in
	}

	in.KPIs = model.ReportKPIs{
		LTV:       guard.FinitePtr(s.KPIs.LTV),
		DSCR:      guard.FinitePtr(s.KPIs.DSCR),
		Margin:    guard.FinitePtr(s.KPIs.MarginPct),
		DebtRatio: guard.FinitePtr(s.KPIs.DebtRatio),
	}
	if in.KPIs.LTV == nil && d != nil {
		in.KPIs.LTV = guard.RoundPtr(guard.Scale(intake.ComputeLTV(d), 100), 1)
	}
	if s.Revenues != nil {
		in.KPIs.Rent = scorer.AnnualRent(s.Revenues)
	}
	if s.Budget != nil {
		in.KPIs.Cost = scorer.BudgetTotal(s.Budget)
	}

	if mk := s.Market; mk != nil {
		in.Market = &model.MarketStudy{
			Score:             mk.Score,
			TransactionCount:  mk.TransactionCount,
			PricePerSqm:       mk.PricePerSqm,
			MarketPricePerSqm: mk.MarketPricePerSqm,
			Tension:           mk.Tension,
		}
	}

	for _, m := range scorer.CleanMissing(s.Missing) {
		in.Missing = append(in.Missing, m.Label)
	}
	return in
}

func programmeName(d *model.Dossier) string {
	if d == nil {
		return ""
	}
	for _, s := range []string{d.ProgrammeName, d.Reference, d.ID} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

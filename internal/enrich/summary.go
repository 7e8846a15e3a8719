package enrich

import (
	"bytes"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/catalog"
	"github.com/sells-group/dossier-cli/internal/guard"
	"github.com/sells-group/dossier-cli/internal/intake"
	"github.com/sells-group/dossier-cli/internal/model"
)

// Missing-item keys set by BuildSummary.
const (
	MissingLoanAmount   = "financing.loan_amount"
	MissingProjectValue = "project.value"
	MissingGuarantees   = "financing.guarantees"
	missingDocPrefix    = "document."
)

// BuildSummary derives the initial operation summary of a dossier, before
// any enrichment: completeness snapshot, financing, intake LTV and the
// missing-data list.
func BuildSummary(d *model.Dossier, cat *catalog.Catalog) *model.OperationSummary {
	if cat == nil {
		cat = catalog.Default()
	}
	c := intake.ComputeCompleteness(d.Documents, cat.For(d.Profile))

	s := &model.OperationSummary{
		DossierID:    d.ID,
		Profile:      d.Profile,
		Completeness: c.Snapshot(),
		Financing: &model.Financing{
			LoanAmount: guard.Positive(d.RequestedAmount),
			Guarantees: append([]model.Guarantee{}, d.Guarantees...),
		},
		Missing: []model.MissingItem{},
	}
	s.KPIs.LTV = guard.RoundPtr(guard.Scale(intake.ComputeLTV(d), 100), 1)

	if s.Financing.LoanAmount == nil {
		s.Missing = append(s.Missing, model.MissingItem{
			Key: MissingLoanAmount, Label: "Montant du financement", Severity: model.SeverityBlocker,
		})
	}
	if guard.Positive(d.ProjectValue) == nil {
		s.Missing = append(s.Missing, model.MissingItem{
			Key: MissingProjectValue, Label: "Valeur du projet", Severity: model.SeverityWarn,
		})
	}
	if !d.HasGuarantees() {
		s.Missing = append(s.Missing, model.MissingItem{
			Key: MissingGuarantees, Label: "Garanties", Severity: model.SeverityWarn,
		})
	}

	// Documents already weigh on the documents pillar; listed for display only.
	supplied := make(map[string]bool, len(d.Documents))
	skipped := make(map[string]bool, len(d.Documents))
	for _, doc := range d.Documents {
		supplied[doc.ID] = doc.Status == model.DocumentSupplied
		skipped[doc.ID] = doc.Status == model.DocumentNotApplicable
	}
	for _, req := range cat.For(d.Profile) {
		if supplied[req.ID] || skipped[req.ID] {
			continue
		}
		s.Missing = append(s.Missing, model.MissingItem{
			Key: missingDocPrefix + req.ID, Label: req.Label, Severity: model.SeverityInfo,
		})
	}
	return s
}

// Enrichment is the normalized output of the enrichment sources for one
// dossier. Market parts are in priority order.
type Enrichment struct {
	Risk   *model.RiskProfile
	Market []*model.MarketData
}

// Apply fills the summary's risk and market records. Values already on the
// summary take precedence over enrichment.
func (e Enrichment) Apply(s *model.OperationSummary) {
	if s.Risk == nil && e.Risk != nil {
		r := *e.Risk
		s.Risk = &r
	}
	if len(e.Market) > 0 {
		s.Market = MergeMarket(append([]*model.MarketData{s.Market}, e.Market...)...)
	}
}

// FromPayloads parses raw enrichment payloads: an optional risk payload and
// DVF listings in priority order. Empty and null payloads are skipped.
func FromPayloads(risk []byte, dvf ...[]byte) (Enrichment, error) {
	var e Enrichment
	if !blank(risk) {
		rp, err := ParseRiskPayload(risk)
		if err != nil {
			return Enrichment{}, eris.Wrap(err, "enrich: risk payload")
		}
		e.Risk = rp
	}
	for i, raw := range dvf {
		if blank(raw) {
			continue
		}
		md, err := ParseDVF(raw)
		if err != nil {
			return Enrichment{}, eris.Wrapf(err, "enrich: market payload %d", i)
		}
		e.Market = append(e.Market, md)
	}
	return e, nil
}

func blank(raw []byte) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

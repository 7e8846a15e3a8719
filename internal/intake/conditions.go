package intake

import (
	"strconv"
	"sync/atomic"

	"github.com/sells-group/dossier-cli/internal/catalog"
	"github.com/sells-group/dossier-cli/internal/model"
)

// maxListedDocuments is the number of missing documents above which a single
// grouped condition replaces the per-document ones.
const maxListedDocuments = 5

// Sequence hands out condition identifiers. It is safe for concurrent use;
// callers wanting deterministic ids own their Sequence and Reset it.
type Sequence struct {
	prefix string
	n      atomic.Int64
}

// NewSequence returns a sequence producing "<prefix>-1", "<prefix>-2", ...
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "cond"
	}
	return &Sequence{prefix: prefix}
}

// Next returns the next identifier.
func (s *Sequence) Next() string {
	return s.prefix + "-" + strconv.FormatInt(s.n.Add(1), 10)
}

// Reset restarts the sequence at 1.
func (s *Sequence) Reset() {
	s.n.Store(0)
}

// SuggestConditions derives the auto conditions for a dossier. All rules are
// evaluated independently; a complete, guaranteed, low-risk dossier with no
// profile-specific gap gets none.
func SuggestConditions(d *model.Dossier, c Completeness, ltv *float64, risk RiskLevel, seq *Sequence) []model.Condition {
	conds := []model.Condition{}
	add := func(text string) {
		conds = append(conds, model.Condition{
			ID:     seq.Next(),
			Text:   text,
			Source: model.ConditionAuto,
		})
	}

	if n := len(c.Missing); n > maxListedDocuments {
		add(fr.Sprintf("Fournir les %d documents manquants du dossier", n))
	} else {
		for _, label := range c.Missing {
			add(fr.Sprintf("Fournir le document « %s »", label))
		}
	}

	if !d.HasGuarantees() {
		add("Constituer une garantie réelle ou personnelle (hypothèque, caution, nantissement)")
	}

	if ltv != nil && *ltv > ltvHighBand {
		add(fr.Sprintf("Ramener le LTV (actuellement %.1f %%) sous 80 %%", *ltv*100))
	}

	if risk == RiskHigh {
		add("Niveau de risque élevé : renforcer l'analyse et les sûretés")
	}

	switch d.Profile {
	case model.ProfileDeveloper:
		if !d.HasSupplied(catalog.DocPrecommercialisation) {
			add("Justifier d'un taux de pré-commercialisation suffisant")
		}
	case model.ProfileTrader:
		if !d.HasSupplied(catalog.DocPlanningTravaux) {
			add("Fournir le planning de travaux et de revente")
		}
	}

	return conds
}

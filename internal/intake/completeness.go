// Package intake implements the intake-time pipeline: document completeness,
// loan-to-value and risk classification, auto-suggested conditions and the
// committee decision draft. Every function recomputes from the dossier as it
// stands; nothing is cached.
package intake

import (
	"math"

	"github.com/sells-group/dossier-cli/internal/catalog"
	"github.com/sells-group/dossier-cli/internal/model"
)

// Completeness is the document completeness of a dossier against its catalog.
type Completeness struct {
	Provided   int      `json:"provided"`
	Total      int      `json:"total"`
	Percentage int      `json:"percentage"`
	Missing    []string `json:"missing"`
}

// Snapshot converts the result into its summary form.
func (c Completeness) Snapshot() *model.CompletenessSnapshot {
	return &model.CompletenessSnapshot{Provided: c.Provided, Total: c.Total, Percentage: c.Percentage}
}

// ComputeCompleteness counts the catalog requirements covered by the dossier's
// documents. A requirement with no matching document counts as required and
// missing; one marked not-applicable is left out of the total.
func ComputeCompleteness(docs []model.Document, reqs []catalog.Requirement) Completeness {
	byID := make(map[string]model.DocumentStatus, len(docs))
	for _, d := range docs {
		byID[d.ID] = d.Status
	}

	res := Completeness{Missing: []string{}}
	for _, r := range reqs {
		status, found := byID[r.ID]
		if found && status == model.DocumentNotApplicable {
			continue
		}
		res.Total++
		if found && status == model.DocumentSupplied {
			res.Provided++
			continue
		}
		res.Missing = append(res.Missing, r.Label)
	}
	if res.Total > 0 {
		res.Percentage = int(math.Round(float64(res.Provided) / float64(res.Total) * 100))
	}
	return res
}

package committee

import (
	"context"
	"time"

	"github.com/sells-group/dossier-cli/internal/model"
)

// Memo bundles every committee output computed from one report input.
type Memo struct {
	ProgrammeName string      `json:"programme_name"`
	GeneratedAt   time.Time   `json:"generated_at"`
	Narrative     Narrative   `json:"narrative"`
	Scenarios     []Scenario  `json:"scenarios"`
	Acceptance    Acceptance  `json:"acceptance"`
	Matrix        Matrix      `json:"matrix"`
	Stress        *StressPack `json:"stress"`
}

// BuildMemo computes the full committee memo.
func BuildMemo(ctx context.Context, in model.ReportInput) (*Memo, error) {
	stress, err := RunStressTest(ctx, in)
	if err != nil {
		return nil, err
	}
	return &Memo{
		ProgrammeName: in.ProgrammeName,
		GeneratedAt:   time.Now().UTC(),
		Narrative:     BuildNarrative(in),
		Scenarios:     GenerateScenarios(in),
		Acceptance:    EstimateAcceptance(in),
		Matrix:        ClassifyRiskReturn(in),
		Stress:        stress,
	}, nil
}

// Package pipeline runs the full assessment of a dossier: intake checks,
// summary enrichment, SmartScore and the committee report input, then
// persists the results with an audit trail.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/catalog"
	"github.com/sells-group/dossier-cli/internal/committee"
	"github.com/sells-group/dossier-cli/internal/enrich"
	"github.com/sells-group/dossier-cli/internal/intake"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/scorer"
	"github.com/sells-group/dossier-cli/internal/store"
)

const conditionPrefix = "cond"

// Input is one assessment request. Summary is optional: when absent the
// summary is derived from the dossier alone.
type Input struct {
	Dossier    *model.Dossier
	Summary    *model.OperationSummary
	Enrichment enrich.Enrichment
}

// Assessment is the outcome of one pipeline run.
type Assessment struct {
	DossierID string                  `json:"dossier_id,omitempty"`
	Intake    intake.Result           `json:"intake"`
	Summary   *model.OperationSummary `json:"summary"`
	Score     *scorer.Result          `json:"smartscore"`
	Alerts    []scorer.Alert          `json:"alerts"`
	Report    model.ReportInput       `json:"report_input"`
}

// Pipeline orchestrates the assessment phases.
type Pipeline struct {
	store   store.Store
	catalog *catalog.Catalog
	engine  *scorer.Engine
}

// New creates a Pipeline. The store may be nil for stateless use.
func New(st store.Store, cat *catalog.Catalog, engine *scorer.Engine) *Pipeline {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Pipeline{store: st, catalog: cat, engine: engine}
}

// Assess runs every engine phase against the dossier's current state.
// Condition ids restart at 1 on every call.
func (p *Pipeline) Assess(in Input) (*Assessment, error) {
	if in.Dossier == nil {
		return nil, eris.New("pipeline: dossier is required")
	}
	d := in.Dossier
	log := zap.L().With(zap.String("dossier_id", d.ID), zap.String("profile", string(d.Profile)))

	start := time.Now()
	a := &Assessment{DossierID: d.ID}

	a.Intake = p.Intake(d)

	a.Summary = mergeSummary(in.Summary, enrich.BuildSummary(d, p.catalog))
	in.Enrichment.Apply(a.Summary)

	res, err := p.engine.Score(a.Summary)
	if err != nil {
		log.Error("pipeline: score failed", zap.Error(err))
		return nil, eris.Wrap(err, "pipeline: score")
	}
	a.Score = res
	a.Alerts = scorer.DeriveAlerts(res, a.Summary.KPIs, a.Summary.Missing)

	a.Report = committee.NewReportInput(d, a.Summary, a.Score)

	log.Info("pipeline: assessment complete",
		zap.String("verdict", string(a.Intake.Draft.Verdict)),
		zap.Int("score", a.Score.Score),
		zap.String("grade", a.Score.Grade),
		zap.Duration("elapsed", time.Since(start)),
	)
	return a, nil
}

// Intake runs the intake checks alone.
func (p *Pipeline) Intake(d *model.Dossier) intake.Result {
	return intake.Evaluate(d, p.catalog, intake.NewSequence(conditionPrefix))
}

// Scored is the outcome of scoring a summary without a dossier.
type Scored struct {
	Summary *model.OperationSummary `json:"summary"`
	Score   *scorer.Result          `json:"smartscore"`
	Alerts  []scorer.Alert          `json:"alerts"`
}

// Score scores a ready-made summary after applying enrichment. The summary
// is copied, never mutated.
func (p *Pipeline) Score(s *model.OperationSummary, enr enrich.Enrichment) (*Scored, error) {
	if s == nil {
		return nil, eris.New("pipeline: summary is required")
	}
	sum := *s
	enr.Apply(&sum)
	res, err := p.engine.Score(&sum)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: score")
	}
	return &Scored{Summary: &sum, Score: res, Alerts: scorer.DeriveAlerts(res, sum.KPIs, sum.Missing)}, nil
}

// Run loads a stored dossier, assesses it and persists the decision draft,
// the SmartScore snapshot and the matching audit events.
func (p *Pipeline) Run(ctx context.Context, dossierID string, summary *model.OperationSummary, enr enrich.Enrichment, actor string) (*Assessment, error) {
	if p.store == nil {
		return nil, eris.New("pipeline: no store configured")
	}
	d, err := p.store.GetDossier(ctx, dossierID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load dossier")
	}

	a, err := p.Assess(Input{Dossier: d, Summary: summary, Enrichment: enr})
	if err != nil {
		return nil, err
	}

	if err := p.store.SaveDecisionDraft(ctx, d.ID, &a.Intake.Draft); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist decision draft")
	}
	if err := p.store.SaveSmartScore(ctx, d.ID, a.Score); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist smartscore")
	}

	for _, ev := range auditEvents(d.ID, actor, a) {
		if err := p.store.AppendAudit(ctx, &ev); err != nil {
			zap.L().Warn("pipeline: failed to append audit event",
				zap.String("dossier_id", d.ID),
				zap.String("action", ev.Action),
				zap.Error(err),
			)
		}
	}
	return a, nil
}

// Memo builds the committee memo from an assessment.
func (p *Pipeline) Memo(ctx context.Context, a *Assessment) (*committee.Memo, error) {
	memo, err := committee.BuildMemo(ctx, a.Report)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: memo")
	}
	return memo, nil
}

func auditEvents(dossierID, actor string, a *Assessment) []store.AuditEvent {
	draft := a.Intake.Draft
	return []store.AuditEvent{
		{
			DossierID: dossierID,
			Action:    store.ActionEvaluated,
			Actor:     actor,
			Message: fmt.Sprintf("Décision proposée : %s (confiance %.0f %%), complétude %d %%, %d condition(s).",
				draft.Verdict, draft.Confidence*100, a.Intake.Completeness.Percentage, len(draft.Conditions)),
		},
		{
			DossierID: dossierID,
			Action:    store.ActionScored,
			Actor:     actor,
			Message: fmt.Sprintf("SmartScore %d/100 (%s), verdict %s, %d alerte(s).",
				a.Score.Score, a.Score.Grade, a.Score.Verdict, len(a.Alerts)),
		},
	}
}

// mergeSummary completes a caller-supplied summary with the values derived
// from the dossier. Caller values win.
func mergeSummary(s, derived *model.OperationSummary) *model.OperationSummary {
	if s == nil {
		return derived
	}
	out := *s
	if out.DossierID == "" {
		out.DossierID = derived.DossierID
	}
	if out.Profile == "" {
		out.Profile = derived.Profile
	}
	if out.Completeness == nil {
		out.Completeness = derived.Completeness
	}
	if out.Financing == nil {
		out.Financing = derived.Financing
	}
	if out.KPIs.LTV == nil {
		out.KPIs.LTV = derived.KPIs.LTV
	}
	if out.Missing == nil {
		out.Missing = derived.Missing
	}
	return &out
}

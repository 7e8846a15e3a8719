package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sells-group/dossier-cli/internal/committee"
	"github.com/sells-group/dossier-cli/internal/intake"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/pipeline"
	"github.com/sells-group/dossier-cli/internal/scorer"
	"github.com/sells-group/dossier-cli/internal/store"
)

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func optFloat(p *float64, decimals int) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", decimals, *p)
}

func renderIntake(w io.Writer, res intake.Result) {
	t := newTable(w, "Intake")
	t.AppendRows([]table.Row{
		{"Dossier", res.DossierID},
		{"Completeness", fmt.Sprintf("%d/%d (%d%%)", res.Completeness.Provided, res.Completeness.Total, res.Completeness.Percentage)},
		{"LTV", optFloat(res.LTV, 2)},
		{"Risk level", res.RiskLevel},
		{"Verdict", res.Draft.Verdict},
		{"Confidence", fmt.Sprintf("%.2f", res.Draft.Confidence)},
	})
	if len(res.Completeness.Missing) > 0 {
		t.AppendRow(table.Row{"Missing", strings.Join(res.Completeness.Missing, ", ")})
	}
	t.Render()

	if len(res.Conditions) > 0 {
		c := newTable(w, "Conditions")
		c.AppendHeader(table.Row{"ID", "Condition", "Source"})
		for _, cond := range res.Conditions {
			c.AppendRow(table.Row{cond.ID, cond.Text, cond.Source})
		}
		c.Render()
	}
	fmt.Fprintln(w, res.Draft.Motivation) //nolint:errcheck
}

func renderDraft(w io.Writer, d *intake.DecisionDraft) {
	t := newTable(w, "Decision draft")
	t.AppendRows([]table.Row{
		{"Verdict", d.Verdict},
		{"Confidence", fmt.Sprintf("%.2f", d.Confidence)},
		{"Risk level", d.RiskLevel},
		{"LTV", optFloat(d.LTV, 2)},
		{"Drafted", d.CreatedAt.Format("2006-01-02 15:04")},
	})
	t.Render()
	fmt.Fprintln(w, d.Motivation) //nolint:errcheck
}

func renderScore(w io.Writer, res *scorer.Result, alerts []scorer.Alert) {
	t := newTable(w, fmt.Sprintf("SmartScore %d/100 (%s, %s)", res.Score, res.Grade, res.Verdict))
	t.AppendHeader(table.Row{"Pillar", "Raw", "Points", "Max", "Data"})
	for _, p := range res.Pillars {
		data := "yes"
		if !p.HasData {
			data = "no"
		}
		t.AppendRow(table.Row{p.Label, p.RawScore, p.Points, p.MaxPoints, data})
	}
	if len(res.MissingPenalties) > 0 {
		t.AppendSeparator()
		for _, mp := range res.MissingPenalties {
			t.AppendRow(table.Row{mp.Label, "", -mp.Points, "", mp.Severity})
		}
	}
	t.Render()

	if len(alerts) > 0 {
		a := newTable(w, "Alerts")
		a.AppendHeader(table.Row{"Severity", "Code", "Message"})
		for _, al := range alerts {
			a.AppendRow(table.Row{al.Severity, al.Code, al.Message})
		}
		a.Render()
	}
	for i, rec := range res.Recommendations {
		fmt.Fprintf(w, "%d. %s\n", i+1, rec) //nolint:errcheck
	}
}

func renderAssessment(w io.Writer, a *pipeline.Assessment) {
	renderIntake(w, a.Intake)
	renderScore(w, a.Score, a.Alerts)
}

func renderStress(w io.Writer, pack *committee.StressPack) {
	t := newTable(w, "Stress test")
	t.AppendHeader(table.Row{"Case", "DSCR", "LTV %", "Yield %", "Acceptance"})
	for _, c := range pack.Cases {
		t.AppendRow(table.Row{c.Label, optFloat(c.DSCR, 2), optFloat(c.LTV, 1), optFloat(c.Yield, 2),
			fmt.Sprintf("%d (%s)", c.Acceptance, c.AcceptanceLabel)})
	}
	t.Render()
	for _, f := range pack.Summary.Findings {
		fmt.Fprintln(w, "- "+f) //nolint:errcheck
	}
}

func renderMemo(w io.Writer, memo *committee.Memo) {
	fmt.Fprintf(w, "%s\n\n%s\n\n", memo.ProgrammeName, memo.Narrative.ExecutiveSummary) //nolint:errcheck
	for _, s := range memo.Narrative.Sections {
		fmt.Fprintf(w, "%s\n%s\n\n", s.Title, strings.Join(s.Paragraphs, "\n")) //nolint:errcheck
	}
	fmt.Fprintln(w, memo.Narrative.DecisionLine) //nolint:errcheck

	sc := newTable(w, "Scenarios")
	sc.AppendHeader(table.Row{"Stance", "Decision", "Confidence", "Max LTV", "Min DSCR"})
	for _, s := range memo.Scenarios {
		sc.AppendRow(table.Row{s.Label, s.Decision, fmt.Sprintf("%.2f", s.Confidence), s.Targets.MaxLTV, s.Targets.MinDSCR})
	}
	sc.Render()

	m := newTable(w, "Committee")
	m.AppendRows([]table.Row{
		{"Acceptance", fmt.Sprintf("%d/100 (%s)", memo.Acceptance.Score, memo.Acceptance.Label)},
		{"Risk / return", fmt.Sprintf("%d / %d (%s)", memo.Matrix.RiskScore, memo.Matrix.ReturnScore, memo.Matrix.Quadrant)},
		{"Dominant risk", memo.Matrix.DominantRiskLabel},
	})
	m.Render()

	if memo.Stress != nil {
		renderStress(w, memo.Stress)
	}
}

func renderDossiers(w io.Writer, ds []model.Dossier) {
	t := newTable(w, "")
	t.AppendHeader(table.Row{"ID", "Reference", "Programme", "Profile", "Requested", "Updated"})
	for _, d := range ds {
		t.AppendRow(table.Row{d.ID, d.Reference, d.ProgrammeName, d.Profile,
			fmt.Sprintf("%.0f", d.RequestedAmount), d.UpdatedAt.Format("2006-01-02 15:04")})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(ds)})
	t.Render()
}

func renderAudit(w io.Writer, events []store.AuditEvent) {
	t := newTable(w, "Audit")
	t.AppendHeader(table.Row{"When", "Action", "Actor", "Message"})
	for _, ev := range events {
		t.AppendRow(table.Row{ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Action, ev.Actor, ev.Message})
	}
	t.Render()
}

func renderProfiles(w io.Writer, v profilesView) {
	for _, p := range v.Profiles {
		t := newTable(w, fmt.Sprintf("Profile %s (catalog %s, %d documents)", p.Profile, p.CatalogKey, p.Documents))
		t.AppendHeader(table.Row{"Pillar", "Label", "Weight"})
		total := 0
		for _, pw := range p.Pillars {
			t.AppendRow(table.Row{pw.Key, pw.Label, pw.Weight})
			total += pw.Weight
		}
		t.AppendFooter(table.Row{"", "Total", total})
		t.Render()
		fmt.Fprintf(w, "Grades: A >= %d, B >= %d, C >= %d, D >= %d\n\n", //nolint:errcheck
			p.Grades.A, p.Grades.B, p.Grades.C, p.Grades.D)
	}
	fmt.Fprintln(w, "Catalog keys: "+strings.Join(v.CatalogKeys, ", ")) //nolint:errcheck
}

package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/intake"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/scorer"
	"github.com/sells-group/dossier-cli/internal/store"
)

var dossierCmd = &cobra.Command{
	Use:   "dossier",
	Short: "Manage stored dossiers",
}

var dossierListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored dossiers, most recently updated first",
	RunE:  runDossierList,
}

var dossierShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a dossier with its latest decision draft and SmartScore",
	Args:  cobra.ExactArgs(1),
	RunE:  runDossierShow,
}

var dossierEvaluateCmd = &cobra.Command{
	Use:   "evaluate <id>",
	Short: "Assess a stored dossier and persist the results",
	Args:  cobra.ExactArgs(1),
	RunE:  runDossierEvaluate,
}

func init() {
	lf := dossierListCmd.Flags()
	lf.String("profile", "", "only list dossiers of this profile")
	lf.Int("limit", 0, "maximum number of dossiers (0 = default)")
	lf.Int("offset", 0, "number of dossiers to skip")
	lf.String("format", formatTable, "output format: table or json")

	dossierShowCmd.Flags().String("format", formatTable, "output format: table or json")
	dossierShowCmd.Flags().Bool("audit", false, "include the audit trail")

	ef := dossierEvaluateCmd.Flags()
	ef.String("summary", "", "operation summary JSON file")
	ef.String("risk", "", "geographic risk payload JSON file")
	ef.StringArray("market", nil, "DVF market payload JSON file (repeatable, priority order)")
	ef.String("actor", "cli", "actor recorded in the audit trail")
	ef.String("format", formatTable, "output format: table or json")

	dossierCmd.AddCommand(dossierListCmd, dossierShowCmd, dossierEvaluateCmd)
	rootCmd.AddCommand(dossierCmd)
}

func runDossierList(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}
	profile, _ := cmd.Flags().GetString("profile")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	if limit < 0 || offset < 0 {
		return eris.New("dossier list: limit and offset must be positive")
	}

	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	ds, err := st.ListDossiers(cmd.Context(), store.DossierFilter{Profile: model.Profile(profile), Limit: limit, Offset: offset})
	if err != nil {
		return err
	}
	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), ds)
	}
	renderDossiers(cmd.OutOrStdout(), ds)
	return nil
}

type dossierDetail struct {
	Dossier    *model.Dossier        `json:"dossier"`
	Draft      *intake.DecisionDraft `json:"decision_draft,omitempty"`
	SmartScore *scorer.Result        `json:"smartscore,omitempty"`
	Audit      []store.AuditEvent    `json:"audit,omitempty"`
}

func runDossierShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, _ := cmd.Flags().GetString("format")
	withAudit, _ := cmd.Flags().GetBool("audit")
	if err := checkFormat(format); err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	var out dossierDetail
	if out.Dossier, err = st.GetDossier(ctx, args[0]); err != nil {
		return err
	}
	if out.Draft, err = st.LatestDecisionDraft(ctx, args[0]); err != nil && !eris.Is(err, store.ErrNotFound) {
		return err
	}
	if out.SmartScore, err = st.LatestSmartScore(ctx, args[0]); err != nil && !eris.Is(err, store.ErrNotFound) {
		return err
	}
	if withAudit {
		if out.Audit, err = st.ListAudit(ctx, args[0]); err != nil {
			return err
		}
	}

	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	w := cmd.OutOrStdout()
	renderDossiers(w, []model.Dossier{*out.Dossier})
	if out.Draft != nil {
		renderDraft(w, out.Draft)
	}
	if out.SmartScore != nil {
		renderScore(w, out.SmartScore, nil)
	}
	if withAudit {
		renderAudit(w, out.Audit)
	}
	return nil
}

func runDossierEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, _ := cmd.Flags().GetString("format")
	actor, _ := cmd.Flags().GetString("actor")
	if err := checkFormat(format); err != nil {
		return err
	}
	summary, err := loadSummary(cmd)
	if err != nil {
		return err
	}
	enr, err := loadEnrichment(cmd)
	if err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	p, err := newPipeline(st)
	if err != nil {
		return err
	}
	a, err := p.Run(ctx, args[0], summary, enr, actor)
	if err != nil {
		return err
	}
	zap.L().Info("dossier evaluated",
		zap.String("dossier_id", a.DossierID),
		zap.Int("score", a.Score.Score),
		zap.String("verdict", string(a.Intake.Draft.Verdict)),
	)

	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), a)
	}
	renderAssessment(cmd.OutOrStdout(), a)
	return nil
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/dossier-cli/internal/committee"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/pipeline"
)

var memoCmd = &cobra.Command{
	Use:   "memo",
	Short: "Draft the committee memo",
	Long: `Draft the committee memo: narrative, scenarios, acceptance estimate,
risk/return matrix and stress test.

The input is a report input JSON document. With --from-dossier the input is
a dossier instead; it is assessed first (with --summary, --risk and --market
as for the score command) and the memo is drafted from the assessment.`,
	Example: `  dossier-cli memo --file report.json
  dossier-cli memo --from-dossier --file dossier.json --risk georisques.json`,
	RunE: runMemo,
}

var stressCmd = &cobra.Command{
	Use:     "stress",
	Short:   "Run the committee stress test",
	Example: `  dossier-cli stress --file report.json --format json`,
	RunE:    runStress,
}

func init() {
	f := memoCmd.Flags()
	f.String("file", "", "report input (or dossier) JSON file, - for stdin (required)")
	f.Bool("from-dossier", false, "treat the input as a dossier and assess it first")
	f.String("summary", "", "operation summary JSON file (with --from-dossier)")
	f.String("risk", "", "geographic risk payload JSON file (with --from-dossier)")
	f.StringArray("market", nil, "DVF market payload JSON file (with --from-dossier)")
	f.String("format", formatTable, "output format: table or json")
	_ = memoCmd.MarkFlagRequired("file")

	sf := stressCmd.Flags()
	sf.String("file", "", "report input JSON file, - for stdin (required)")
	sf.String("format", formatTable, "output format: table or json")
	_ = stressCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(memoCmd, stressCmd)
}

func runMemo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	path, _ := cmd.Flags().GetString("file")
	format, _ := cmd.Flags().GetString("format")
	fromDossier, _ := cmd.Flags().GetBool("from-dossier")
	if err := checkFormat(format); err != nil {
		return err
	}

	var (
		memo *committee.Memo
		err  error
	)
	if fromDossier {
		memo, err = memoFromDossier(cmd, path)
	} else {
		var in model.ReportInput
		if err := readJSONFile(path, &in); err != nil {
			return err
		}
		memo, err = committee.BuildMemo(ctx, in)
	}
	if err != nil {
		return err
	}

	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), memo)
	}
	renderMemo(cmd.OutOrStdout(), memo)
	return nil
}

func memoFromDossier(cmd *cobra.Command, path string) (*committee.Memo, error) {
	var d model.Dossier
	if err := readJSONFile(path, &d); err != nil {
		return nil, err
	}
	summary, err := loadSummary(cmd)
	if err != nil {
		return nil, err
	}
	enr, err := loadEnrichment(cmd)
	if err != nil {
		return nil, err
	}
	p, err := newPipeline(nil)
	if err != nil {
		return nil, err
	}
	a, err := p.Assess(pipeline.Input{Dossier: &d, Summary: summary, Enrichment: enr})
	if err != nil {
		return nil, err
	}
	return p.Memo(cmd.Context(), a)
}

func runStress(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	var in model.ReportInput
	if err := readJSONFile(path, &in); err != nil {
		return err
	}
	pack, err := committee.RunStressTest(cmd.Context(), in)
	if err != nil {
		return err
	}

	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), pack)
	}
	renderStress(cmd.OutOrStdout(), pack)
	return nil
}

package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dossier-cli/internal/enrich"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/pipeline"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute the SmartScore of a dossier",
	Long: `Compute the multi-pillar SmartScore of a dossier.

The operation summary is derived from the dossier. A hand-written summary
(--summary) completes it: its values win over derived ones. Risk and market
payloads are normalized before scoring; market payloads are merged in the
order given, the first value present winning.`,
	Example: `  dossier-cli score --file dossier.json
  dossier-cli score --file dossier.json --summary summary.json \
    --risk georisques.json --market dvf-2024.json --market dvf-2023.json`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("file", "", "dossier JSON file, - for stdin (required)")
	f.String("summary", "", "operation summary JSON file")
	f.String("risk", "", "geographic risk payload JSON file")
	f.StringArray("market", nil, "DVF market payload JSON file (repeatable, priority order)")
	f.String("format", formatTable, "output format: table or json")
	_ = scoreCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(scoreCmd)
}

// loadEnrichment reads and normalizes the --risk and --market payloads.
func loadEnrichment(cmd *cobra.Command) (enrich.Enrichment, error) {
	riskPath, _ := cmd.Flags().GetString("risk")
	marketPaths, _ := cmd.Flags().GetStringArray("market")

	risk, err := readOptional(riskPath)
	if err != nil {
		return enrich.Enrichment{}, err
	}
	dvf := make([][]byte, 0, len(marketPaths))
	for _, p := range marketPaths {
		data, err := readInput(p)
		if err != nil {
			return enrich.Enrichment{}, err
		}
		dvf = append(dvf, data)
	}
	enr, err := enrich.FromPayloads(risk, dvf...)
	if err != nil {
		return enrich.Enrichment{}, eris.Wrap(err, "score: enrichment")
	}
	return enr, nil
}

func loadSummary(cmd *cobra.Command) (*model.OperationSummary, error) {
	path, _ := cmd.Flags().GetString("summary")
	if path == "" {
		return nil, nil
	}
	var s model.OperationSummary
	if err := readJSONFile(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func runScore(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	var d model.Dossier
	if err := readJSONFile(path, &d); err != nil {
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
	p, err := newPipeline(nil)
	if err != nil {
		return err
	}

	a, err := p.Assess(pipeline.Input{Dossier: &d, Summary: summary, Enrichment: enr})
	if err != nil {
		return err
	}
	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), a)
	}
	renderScore(cmd.OutOrStdout(), a.Score, a.Alerts)
	return nil
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/dossier-cli/internal/model"
)

var intakeCmd = &cobra.Command{
	Use:   "intake",
	Short: "Evaluate a dossier's completeness and draft a decision",
	Example: `  dossier-cli intake --file dossier.json
  cat dossier.json | dossier-cli intake --file - --format json`,
	RunE: runIntake,
}

func init() {
	f := intakeCmd.Flags()
	f.String("file", "", "dossier JSON file, - for stdin (required)")
	f.String("format", formatTable, "output format: table or json")
	_ = intakeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(intakeCmd)
}

func runIntake(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("file")
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	var d model.Dossier
	if err := readJSONFile(path, &d); err != nil {
		return err
	}
	p, err := newPipeline(nil)
	if err != nil {
		return err
	}

	res := p.Intake(&d)
	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	renderIntake(cmd.OutOrStdout(), res)
	return nil
}

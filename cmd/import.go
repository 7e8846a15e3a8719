package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/store"
)

var dossierImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load dossiers from a JSON array",
	Long: `Bulk-load dossiers from a JSON array file. The import is atomic: a
duplicate id or an invalid profile aborts it and nothing is written.`,
	Example: `  dossier-cli dossier import --file dossiers.json`,
	RunE:    runDossierImport,
}

func init() {
	dossierImportCmd.Flags().String("file", "", "JSON array of dossiers, - for stdin (required)")
	dossierImportCmd.Flags().String("actor", "cli", "actor recorded in the audit trail")
	_ = dossierImportCmd.MarkFlagRequired("file")
	dossierCmd.AddCommand(dossierImportCmd)
}

func validateImport(ds []model.Dossier) error {
	if len(ds) == 0 {
		return eris.New("dossier import: no dossiers in input")
	}
	for i, d := range ds {
		if !d.Profile.Valid() {
			return eris.Errorf("dossier import: entry %d: unknown profile %q", i, d.Profile)
		}
	}
	return nil
}

func runDossierImport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	path, _ := cmd.Flags().GetString("file")
	actor, _ := cmd.Flags().GetString("actor")

	var ds []model.Dossier
	if err := readJSONFile(path, &ds); err != nil {
		return err
	}
	if err := validateImport(ds); err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	n, err := st.ImportDossiers(ctx, ds)
	if err != nil {
		return eris.Wrap(err, "dossier import")
	}
	for _, d := range ds {
		ev := &store.AuditEvent{DossierID: d.ID, Action: store.ActionImported, Actor: actor, Message: "Dossier importé."}
		if err := st.AppendAudit(ctx, ev); err != nil {
			zap.L().Warn("dossier import: failed to append audit event", zap.String("dossier_id", d.ID), zap.Error(err))
		}
	}

	zap.L().Info("import complete", zap.Int("imported", n), zap.String("file", path))
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d dossier(s)\n", n) //nolint:errcheck
	return nil
}

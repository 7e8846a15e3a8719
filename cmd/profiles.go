package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/sells-group/dossier-cli/internal/catalog"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/scorer"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the scoring profiles and the document catalog in effect",
	Long: `List each borrower profile with its pillar weights, grade thresholds and
required documents, then the catalog keys. Overrides from the configuration
(scoring.profiles_file, catalog.file) are taken into account.`,
	RunE: runProfiles,
}

func init() {
	profilesCmd.Flags().String("format", formatTable, "output format: table or json")
	rootCmd.AddCommand(profilesCmd)
}

type pillarView struct {
	Key    scorer.PillarKey `json:"key"`
	Label  string           `json:"label"`
	Weight int              `json:"weight"`
}

type profileView struct {
	Profile    model.Profile          `json:"profile"`
	Pillars    []pillarView           `json:"pillars"`
	Grades     scorer.GradeThresholds `json:"grades"`
	CatalogKey string                 `json:"catalog_key"`
	Documents  int                    `json:"documents"`
}

type profilesView struct {
	Profiles    []profileView `json:"profiles"`
	CatalogKeys []string      `json:"catalog_keys"`
}

func buildProfilesView(engine *scorer.Engine, cat *catalog.Catalog) profilesView {
	profiles := engine.Profiles()
	names := make([]model.Profile, 0, len(profiles))
	for p := range profiles {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	v := profilesView{Profiles: make([]profileView, 0, len(names)), CatalogKeys: cat.Keys()}
	for _, p := range names {
		cfg := profiles[p]
		pv := profileView{
			Profile:    p,
			Pillars:    make([]pillarView, 0, len(cfg.Pillars)),
			Grades:     cfg.Grades,
			CatalogKey: catalog.KeyFor(p),
			Documents:  len(cat.For(p)),
		}
		for _, pw := range cfg.Pillars {
			pv.Pillars = append(pv.Pillars, pillarView{Key: pw.Key, Label: scorer.Label(pw.Key), Weight: pw.Weight})
		}
		v.Profiles = append(v.Profiles, pv)
	}
	return v
}

func runProfiles(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	engine, err := newEngine()
	if err != nil {
		return err
	}

	v := buildProfilesView(engine, cat)
	if format == formatJSON {
		return writeJSON(cmd.OutOrStdout(), v)
	}
	renderProfiles(cmd.OutOrStdout(), v)
	return nil
}

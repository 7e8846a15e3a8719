package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/catalog"
	"github.com/sells-group/dossier-cli/internal/pipeline"
	"github.com/sells-group/dossier-cli/internal/scorer"
	"github.com/sells-group/dossier-cli/internal/store"
)

// loadCatalog returns the configured document catalog, or the embedded one.
func loadCatalog() (*catalog.Catalog, error) {
	if cfg.Catalog.File == "" {
		return catalog.Default(), nil
	}
	c, err := catalog.Load(cfg.Catalog.File)
	if err != nil {
		return nil, eris.Wrap(err, "load catalog")
	}
	zap.L().Debug("catalog loaded", zap.String("file", cfg.Catalog.File))
	return c, nil
}

// newEngine builds the scoring engine from the configured profile table,
// or the embedded one.
func newEngine() (*scorer.Engine, error) {
	profiles := scorer.DefaultProfiles()
	if cfg.Scoring.ProfilesFile != "" {
		p, err := scorer.LoadProfiles(cfg.Scoring.ProfilesFile)
		if err != nil {
			return nil, eris.Wrap(err, "load scoring profiles")
		}
		profiles = p
	}
	return scorer.NewEngine(profiles)
}

// newPipeline wires catalog, engine and the optional store.
func newPipeline(st store.Store) (*pipeline.Pipeline, error) {
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	engine, err := newEngine()
	if err != nil {
		return nil, err
	}
	return pipeline.New(st, cat, engine), nil
}

// openStore opens the configured store and applies the schema.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

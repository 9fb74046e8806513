package app

import (
	"fmt"

	"github.com/specialistvlad/cellgridgo/internal/engine"
	"github.com/specialistvlad/cellgridgo/internal/hclmodel"
	"github.com/specialistvlad/cellgridgo/internal/termmodel"
)

// load builds the engine from the configured HCL files, or from the built-in
// term model when there are none.
func (a *App) load() error {
	if len(a.config.ModelPaths) == 0 {
		return a.loadBuiltin()
	}

	a.logger.Debug("Loading HCL model...", "paths", a.config.ModelPaths)
	m, err := hclmodel.Load(a.ctx, a.config.ModelPaths...)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	a.engine = engine.New(append(a.engineOptions(), engine.WithSource(m.Tables))...)
	if err := m.Instantiate(a.ctx, a.engine); err != nil {
		return fmt.Errorf("failed to instantiate model: %w", err)
	}
	a.logger.Info("Model loaded.", "spaces", len(m.Order), "tables", len(m.Tables.Names()))
	return nil
}

func (a *App) loadBuiltin() error {
	a.logger.Debug("No model paths given, using the built-in term model.")
	a.engine = engine.New(a.engineOptions()...)
	if _, err := termmodel.Load(a.ctx, a.engine, termmodel.DefaultBasis()); err != nil {
		return fmt.Errorf("failed to load built-in model: %w", err)
	}
	if a.config.Space == termmodel.Realistic {
		a.defaults = defaults{cells: termmodel.Cells, totals: termmodel.Totals}
	}
	return nil
}

package app

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/cellgridgo/internal/ctxlog"
	"github.com/specialistvlad/cellgridgo/internal/engine"
	"github.com/specialistvlad/cellgridgo/internal/extract"
	"github.com/specialistvlad/cellgridgo/internal/value"
)

// Run evaluates the configured cells over the configured range, prints the
// table followed by the totals, and reports every failed entry. Rows that
// evaluated are printed even when others failed.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.startHealthCheckServer()
	defer func() {
		if cerr := a.closeHealthCheckServer(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	inst, ok := a.engine.Space(a.config.Space)
	if !ok {
		return fmt.Errorf("space %q is not defined; have %v", a.config.Space, a.engine.Spaces())
	}
	cells, totals := a.selection(inst)
	if len(cells) == 0 && len(totals) == 0 {
		a.logger.Warn("No cells to evaluate.", "space", a.config.Space)
		return nil
	}

	getters, err := handles(inst, cells)
	if err != nil {
		return err
	}
	rows := extract.Range(a.config.From, a.config.To)
	opts := extract.Options{Workers: a.config.Workers}

	a.logger.Info("🚀 Evaluating model...", "space", a.config.Space, "cells", len(cells), "rows", len(rows), "workers", a.config.Workers)
	table := extract.RunTable(ctx, getters, rows, opts)
	if err := extract.WriteTable(a.outW, table); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	var errs *multierror.Error
	if err := table.Err(); err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, name := range totals {
		col, ok := table.Column(name)
		if !ok {
			getter, err := handles(inst, []string{name})
			if err != nil {
				return err
			}
			col = extract.Run(ctx, getter[0], rows, opts)
		}
		total, err := extract.Sum(col)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("total of %s: %w", name, err))
			continue
		}
		fmt.Fprintf(a.outW, "total %s: %s\n", name, extract.FormatValue(value.Float(total)))
	}
	a.logger.Info("🏁 Evaluation finished.", "spaces", len(a.engine.Spaces()))

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	return nil
}

// selection returns the cells and totals to report: the configured ones,
// else the model's suggestion, else every cell taking one argument.
func (a *App) selection(inst *engine.Instance) (cells, totals []string) {
	cells, totals = a.config.Cells, a.config.Totals
	if len(cells) == 0 {
		cells = a.defaults.cells
	}
	if len(totals) == 0 {
		totals = a.defaults.totals
	}
	if len(cells) > 0 {
		return cells, totals
	}

	for _, name := range inst.CellNames() {
		if c, err := inst.CellHandle(name); err == nil && len(c.Params()) == 1 {
			cells = append(cells, name)
		}
	}
	return cells, totals
}

func handles(inst *engine.Instance, names []string) ([]extract.Getter, error) {
	getters := make([]extract.Getter, 0, len(names))
	for _, name := range names {
		c, err := inst.CellHandle(name)
		if err != nil {
			return nil, err
		}
		if n := len(c.Params()); n != 1 {
			return nil, fmt.Errorf("cell %s takes %d arguments; only one-argument cells can be tabulated", c, n)
		}
		getters = append(getters, c)
	}
	return getters, nil
}

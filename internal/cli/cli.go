package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/cellgridgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// listFlag collects a comma separated flag that may also be repeated.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("cellgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
CellGrid - evaluate memoized cell models over a range of arguments.

Usage:
  cellgrid [options] [MODEL_PATH...]

Arguments:
  MODEL_PATH
    Path to a single .hcl file or a directory containing .hcl files.
    Without one, the built-in nested term model is evaluated.

Options:
`)
		flagSet.PrintDefaults()
	}

	var models, cells, totals listFlag
	flagSet.Var(&models, "model", "Path to a model file or directory. May be repeated.")
	flagSet.Var(&cells, "cells", "Comma separated cells to tabulate. Default: every one-argument cell.")
	flagSet.Var(&totals, "total", "Comma separated cells to sum over the range.")
	spaceFlag := flagSet.String("space", app.DefaultSpace, "Root space whose cells are evaluated.")
	fromFlag := flagSet.Int("from", 0, "First argument, inclusive.")
	toFlag := flagSet.Int("to", 121, "Last argument, exclusive.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent evaluations per cell.")
	capacityFlag := flagSet.Int("capacity", 0, "Maximum dynamic instances kept per child space. 0 is unbounded.")
	metricsPortFlag := flagSet.Int("metrics-port", 0, "Port for the /health and /metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	paths := append([]string(nil), models...)
	paths = append(paths, flagSet.Args()...)
	slog.Debug("Model paths determined.", "paths", paths)

	config, err := app.NewConfig(app.Config{
		ModelPaths:  paths,
		Space:       *spaceFlag,
		Cells:       cells,
		Totals:      totals,
		From:        *fromFlag,
		To:          *toFlag,
		Workers:     *workersFlag,
		Capacity:    *capacityFlag,
		LogFormat:   strings.ToLower(*logFormatFlag),
		LogLevel:    strings.ToLower(*logLevelFlag),
		MetricsPort: *metricsPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

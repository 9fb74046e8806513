package app

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/cellgridgo/internal/nodeid"
)

// DefaultSpace is the root space reported when none is configured.
const DefaultSpace = "RealisticTerm"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ModelPaths []string // hcl files or directories; empty runs the built-in term model

	Space  string   // root space whose cells are reported
	Cells  []string // cells to tabulate; empty means every one-argument cell
	Totals []string // cells summed over the range
	From   int      // first argument, inclusive
	To     int      // last argument, exclusive

	Workers  int // concurrent evaluations per column; 0 or 1 is sequential
	Capacity int // bound on dynamic instances per child registry; 0 is unbounded

	LogFormat   string
	LogLevel    string
	MetricsPort int
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Space == "" {
		cfg.Space = DefaultSpace
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	var errs *multierror.Error
	if !nodeid.IsValidName(cfg.Space) {
		errs = multierror.Append(errs, fmt.Errorf("invalid space name %q", cfg.Space))
	}
	for _, c := range append(append([]string(nil), cfg.Cells...), cfg.Totals...) {
		if !nodeid.IsValidName(c) {
			errs = multierror.Append(errs, fmt.Errorf("invalid cell name %q", c))
		}
	}
	if cfg.To < cfg.From {
		errs = multierror.Append(errs, fmt.Errorf("range end %d is before its start %d", cfg.To, cfg.From))
	}
	if cfg.Workers < 0 {
		errs = multierror.Append(errs, errors.New("workers must not be negative"))
	}
	if cfg.Capacity < 0 {
		errs = multierror.Append(errs, errors.New("capacity must not be negative"))
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("metrics port %d is out of range", cfg.MetricsPort))
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		errs = multierror.Append(errs, err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = multierror.Append(errs, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

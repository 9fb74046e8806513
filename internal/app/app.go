package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/cellgridgo/internal/ctxlog"
	"github.com/specialistvlad/cellgridgo/internal/engine"
	"github.com/specialistvlad/cellgridgo/internal/metrics"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	ctx    context.Context
	logger *slog.Logger
	config *Config

	engine   *engine.Model
	metrics  *metrics.Metrics
	defaults defaults

	httpServer *http.Server
}

// defaults are the cells and totals a model suggests when the config names
// none.
type defaults struct {
	cells  []string
	totals []string
}

// NewApp is the constructor for the main application. Results are written to
// outW and logs to logW. It loads and instantiates the model; a model that
// fails to load is a fatal startup error and panics.
func NewApp(outW, logW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:    outW,
		ctx:     ctx,
		logger:  logger,
		config:  cfg,
		metrics: metrics.New(cfg.MetricsPort > 0),
	}
	if err := a.load(); err != nil {
		panic(err)
	}
	logger.Debug("Model loaded.", "spaces", a.engine.Spaces())
	return a
}

// Engine returns the application's model. This is primarily for testing.
func (a *App) Engine() *engine.Model {
	return a.engine
}

func (a *App) engineOptions() []engine.Option {
	return []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithMetrics(a.metrics),
		engine.WithInstanceCapacity(a.config.Capacity),
	}
}

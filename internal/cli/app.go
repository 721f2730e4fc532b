package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/wayfind/indoornav/internal/catalog"
	"github.com/wayfind/indoornav/internal/config"
	"github.com/wayfind/indoornav/internal/logging"
	"github.com/wayfind/indoornav/internal/otel"
	"github.com/wayfind/indoornav/internal/surface"
)

// app holds the process-wide services shared by the subcommands.
type app struct {
	start   time.Time
	logs    *logging.SlogManager
	logger  *slog.Logger
	metrics *otel.Provider

	// frame is read by the log context provider once a navigator runs
	frame atomic.Pointer[func() uint64]

	files []*os.File
}

type appOptions struct {
	// logWriter receives log records. When nil the log goes to a session
	// file under logsDir, or stdout when logsDir is empty.
	logWriter io.Writer
}

func newApp(opts appOptions) (*app, error) {
	a := &app{
		start: time.Now(),
		logs:  logging.NewSlogManager(),
	}

	w := opts.logWriter
	if w == nil {
		if dir := resolvePath(config.GetString("logsDir")); dir != "" {
			f, err := a.create(logging.LogFilePath(dir, "indoornav", a.start))
			if err != nil {
				return nil, fmt.Errorf("opening log file: %w", err)
			}
			w = f
		}
	}

	provider, err := a.newTelemetry(config.GetOTelConfig())
	if err != nil {
		a.closeFiles()
		return nil, err
	}
	a.metrics = provider

	a.logs.Setup(w, config.GetString("logLevel"), a.contextAttrs, provider.LoggerProvider())
	a.logger = a.logs.Logger()
	if !configFound {
		a.logger.Warn("No config file found, using defaults", "dir", configDir, "file", config.FileName)
	}
	return a, nil
}

// newTelemetry sets up metrics and OTel log export. Both go to stderr
// unless a file is configured.
func (a *app) newTelemetry(cfg config.OTelConfig) (*otel.Provider, error) {
	var metricsWriter, logWriter io.Writer
	if cfg.Enabled {
		metricsWriter, logWriter = os.Stderr, os.Stderr
		if path := resolvePath(cfg.MetricsFile); path != "" {
			f, err := a.create(path)
			if err != nil {
				return nil, fmt.Errorf("opening metrics file: %w", err)
			}
			metricsWriter = f
		}
		if path := resolvePath(cfg.LogsFile); path != "" {
			f, err := a.create(path)
			if err != nil {
				return nil, fmt.Errorf("opening otel log file: %w", err)
			}
			logWriter = f
		}
	}
	provider, err := otel.New(otel.Config{
		Enabled:        cfg.Enabled,
		ServiceName:    cfg.ServiceName,
		ExportInterval: cfg.ExportInterval,
		MetricWriter:   metricsWriter,
		LogWriter:      logWriter,
		BatchTimeout:   cfg.BatchTimeout,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	return provider, nil
}

// resolvePath makes a relative config path relative to the config directory.
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}

func (a *app) create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	a.files = append(a.files, f)
	return f, nil
}

func (a *app) contextAttrs() []slog.Attr {
	frame := a.frame.Load()
	if frame == nil {
		return nil
	}
	return []slog.Attr{slog.Uint64("frame", (*frame)())}
}

// trackFrame adds the frame number of fn to every following log record.
func (a *app) trackFrame(fn func() uint64) {
	a.frame.Store(&fn)
}

// Close flushes metrics and OTel logs and closes the files opened by newApp.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.metrics.Shutdown(ctx)
	return errors.Join(err, a.closeFiles())
}

func (a *app) closeFiles() error {
	var errs []error
	for _, f := range a.files {
		errs = append(errs, f.Close())
	}
	a.files = nil
	return errors.Join(errs...)
}

// loadEngine builds the waypoint-graph engine from the configured surface
// file. Relative paths resolve against the config directory.
func loadEngine() (*surface.GraphEngine, error) {
	cfg := config.GetSurfaceConfig()
	def, err := surface.LoadDefinition(resolvePath(cfg.File))
	if err != nil {
		return nil, err
	}
	return surface.NewGraphEngine(def, surface.WithSnapDistance(cfg.SnapDistance))
}

func loadCatalog(logger *slog.Logger) (*catalog.Catalog, error) {
	dests, err := config.GetDestinations()
	if err != nil {
		return nil, err
	}
	return catalog.FromConfig(dests, logger)
}

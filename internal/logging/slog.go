package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// otelScope is the instrumentation scope of bridged log records.
const otelScope = "indoornav"

// indirections so tests can capture console output
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager owns the process logger and its level, with optional OTel
// log export.
type SlogManager struct {
	logger *slog.Logger
	level  slog.LevelVar

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system. Records go to file when it is set,
// otherwise to stdout. A non-nil provider adds its attributes to every record.
// A non-nil logProvider also receives every record through the otelslog bridge.
func (m *SlogManager) Setup(file io.Writer, level string, provider ContextProvider, logProvider *sdklog.LoggerProvider) {
	m.level.Set(parseLevel(level))
	m.logProvider = logProvider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: &m.level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}
	if logProvider != nil {
		otelHandler := otelslog.NewHandler(otelScope, otelslog.WithLoggerProvider(logProvider))
		handlers = append(handlers, leveled{Handler: otelHandler, level: &m.level})
	}

	var handler slog.Handler = NewFanout(handlers...)
	if provider != nil {
		handler = NewContextHandler(handler, provider)
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", level)
}

// SetLevel changes the level of an already configured logger.
func (m *SlogManager) SetLevel(level string) {
	m.level.Set(parseLevel(level))
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// LogFilePath names the log file of a session started at start, e.g.
// navlogs/indoornav.20260212_213836.log.
func LogFilePath(logsDir, app string, start time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", app, start.Format("20060102_150405")))
}

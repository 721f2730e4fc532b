package logging

import "log/slog"

// DispatcherLogger lets the dispatcher log through slog.
type DispatcherLogger struct {
	logger *slog.Logger
}

// NewDispatcherLogger tags records with component=dispatcher. A nil logger
// means slog.Default.
func NewDispatcherLogger(logger *slog.Logger) *DispatcherLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatcherLogger{logger: logger.With("component", "dispatcher")}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

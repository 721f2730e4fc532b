package render

import (
	"log/slog"

	"github.com/wayfind/indoornav/internal/geo"
	"github.com/wayfind/indoornav/internal/storage"
	"github.com/wayfind/indoornav/pkg/core"
)

// Recorder writes every update into a storage backend as route history.
type Recorder struct {
	backend storage.Backend
	logger  *slog.Logger
}

// NewRecorder creates a Recorder writing to backend.
func NewRecorder(backend storage.Backend, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{backend: backend, logger: logger}
}

// RenderPath records u. Storage errors are logged and otherwise ignored.
func (r *Recorder) RenderPath(u Update) {
	rec := &core.RouteRecord{
		Frame:       u.Frame,
		Time:        u.Time,
		Destination: u.Destination,
		User:        u.User,
		Corners:     core.NewPath(u.Path.Corners).Corners,
		Length:      geo.PathLength(u.Path),
	}
	if err := r.backend.RecordRoute(rec); err != nil {
		r.logger.Warn("Failed to record route", "frame", u.Frame, "error", err)
	}
}

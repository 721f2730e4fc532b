// Package render holds Path Renderer sinks for computed routes.
package render

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wayfind/indoornav/internal/geo"
	"github.com/wayfind/indoornav/pkg/core"
)

// Update is one path-updated output. An empty Path means any previously
// drawn route must be cleared.
type Update struct {
	Frame       uint64
	Time        time.Time
	Destination string
	User        core.Position3D
	Path        core.Path
}

// Renderer consumes path updates.
type Renderer interface {
	RenderPath(u Update)
}

// Func adapts a function to Renderer.
type Func func(u Update)

// RenderPath calls f.
func (f Func) RenderPath(u Update) { f(u) }

// Multi fans an update out to several renderers in order.
type Multi struct {
	renderers []Renderer
}

// NewMulti creates a Multi, skipping nil renderers.
func NewMulti(renderers ...Renderer) *Multi {
	valid := make([]Renderer, 0, len(renderers))
	for _, r := range renderers {
		if r != nil {
			valid = append(valid, r)
		}
	}
	return &Multi{renderers: valid}
}

// RenderPath forwards u to every renderer.
func (m *Multi) RenderPath(u Update) {
	for _, r := range m.renderers {
		r.RenderPath(u)
	}
}

// Latest keeps the most recent update. Safe for concurrent readers.
type Latest struct {
	mu     sync.RWMutex
	update Update
	count  int
}

// RenderPath stores u.
func (l *Latest) RenderPath(u Update) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u.Path = core.NewPath(u.Path.Corners)
	l.update = u
	l.count++
}

// Path returns the last rendered path.
func (l *Latest) Path() core.Path {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return core.NewPath(l.update.Path.Corners)
}

// Update returns the last update.
func (l *Latest) Update() Update {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.update
}

// Count returns how many updates were rendered.
func (l *Latest) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// LogRenderer writes route changes to a logger. Steady empty paths are only
// logged once, when the route is cleared; an unchanged route logs at debug.
type LogRenderer struct {
	logger  *slog.Logger
	cleared bool
	last    core.Path
}

// NewLogRenderer creates a LogRenderer.
func NewLogRenderer(logger *slog.Logger) *LogRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRenderer{logger: logger.With("component", "render"), cleared: true}
}

// RenderPath logs u.
func (r *LogRenderer) RenderPath(u Update) {
	if u.Path.IsEmpty() {
		if !r.cleared {
			r.logger.Info("Route cleared", "destination", u.Destination, "frame", u.Frame)
			r.cleared = true
		}
		r.last = core.EmptyPath()
		return
	}
	r.cleared = false
	level := slog.LevelInfo
	if u.Path.Equal(r.last) {
		level = slog.LevelDebug
	}
	r.last = core.NewPath(u.Path.Corners)
	r.logger.Log(context.Background(), level, "Route updated",
		"destination", u.Destination,
		"frame", u.Frame,
		"corners", u.Path.Len(),
		"length", geo.PathLength(u.Path),
	)
}

// Package alignment keeps one navigable surface registered to the live pose
// of the tracked marker.
//
// A Manager is not safe for concurrent use. Tracker callbacks must be
// serialized onto the goroutine that drives planning, for example through
// dispatcher.Serialized.
package alignment

import (
	"log/slog"

	"github.com/wayfind/indoornav/internal/geo"
	"github.com/wayfind/indoornav/internal/surface"
	"github.com/wayfind/indoornav/pkg/core"
)

// Observer is notified after every change of the active surface.
type Observer func(marker core.Marker, created bool, pose core.Pose)

// Option configures a Manager.
type Option func(*Manager)

// ReleasePrevious makes a repeated marker add release the surface it
// replaces, when that surface implements surface.Releaser. Off by default:
// the replaced instance is abandoned.
func ReleasePrevious(enabled bool) Option {
	return func(m *Manager) {
		m.releasePrevious = enabled
	}
}

// WithObserver registers a callback for surface creation and pose changes.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		m.observers = append(m.observers, o)
	}
}

// Manager owns zero or one active navigable surface.
type Manager struct {
	engine surface.Engine
	logger *slog.Logger

	current    surface.Surface
	generation uint64
	abandoned  int

	releasePrevious bool
	observers       []Observer
}

// New creates a Manager that instantiates surfaces from engine.
func New(engine surface.Engine, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		engine: engine,
		logger: logger.With("component", "alignment"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply processes one tracker batch: additions, then updates, then removals.
func (m *Manager) Apply(changes core.MarkerChanges) {
	for _, marker := range changes.Added {
		m.OnMarkerAdded(marker)
	}
	for _, marker := range changes.Updated {
		m.OnMarkerUpdated(marker)
	}
	for _, marker := range changes.Removed {
		m.OnMarkerRemoved(marker)
	}
}

// OnMarkerAdded instantiates a new surface at the marker pose and makes it
// current. A surface from an earlier detection is replaced.
func (m *Manager) OnMarkerAdded(marker core.Marker) {
	pose := geo.LevelPose(marker.Pose)

	s, err := m.engine.Instantiate(pose)
	if err != nil {
		m.logger.Error("Failed to instantiate navigable surface", "marker", marker.ID, "error", err)
		return
	}

	if m.current != nil {
		m.abandoned++
		m.logger.Warn("Marker added while a surface is active, replacing it",
			"marker", marker.ID, "abandoned", m.abandoned)
		if m.releasePrevious {
			m.release(m.current)
		}
	}

	m.current = s
	m.generation++
	m.logger.Info("Navigable surface created", "marker", marker.ID,
		"x", pose.Position.X, "y", pose.Position.Y, "z", pose.Position.Z)
	m.notify(marker, true, pose)
}

// OnMarkerUpdated moves the current surface to the marker position with a
// yaw-only orientation. Without a current surface the update is ignored.
func (m *Manager) OnMarkerUpdated(marker core.Marker) {
	if m.current == nil {
		m.logger.Debug("Marker update before any surface exists, ignoring", "marker", marker.ID)
		return
	}

	pose := geo.LevelPose(marker.Pose)
	m.current.SetPose(pose)
	m.generation++
	m.notify(marker, false, pose)
}

// OnMarkerRemoved is accepted but changes nothing; the surface stays where
// it was last seen.
func (m *Manager) OnMarkerRemoved(marker core.Marker) {
	m.logger.Debug("Marker removed, keeping surface", "marker", marker.ID)
}

// CurrentSurface returns the active surface, or false before the first
// marker detection.
func (m *Manager) CurrentSurface() (surface.Surface, bool) {
	if m.current == nil {
		return nil, false
	}
	return m.current, true
}

// Generation counts surface creations and pose changes.
func (m *Manager) Generation() uint64 {
	return m.generation
}

// Abandoned counts surfaces replaced by a later marker add.
func (m *Manager) Abandoned() int {
	return m.abandoned
}

// Close releases the current surface if it supports it.
func (m *Manager) Close() error {
	if m.current == nil {
		return nil
	}
	var err error
	if r, ok := m.current.(surface.Releaser); ok {
		err = r.Release()
	}
	m.current = nil
	return err
}

func (m *Manager) release(s surface.Surface) {
	r, ok := s.(surface.Releaser)
	if !ok {
		return
	}
	if err := r.Release(); err != nil {
		m.logger.Warn("Failed to release replaced surface", "error", err)
	}
}

func (m *Manager) notify(marker core.Marker, created bool, pose core.Pose) {
	for _, o := range m.observers {
		o(marker, created, pose)
	}
}

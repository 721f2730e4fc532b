// Package memory keeps route history in memory and exports it as JSON when
// a session ends.
package memory

import (
	"sync"

	"github.com/wayfind/indoornav/internal/config"
	"github.com/wayfind/indoornav/internal/storage"
	"github.com/wayfind/indoornav/pkg/core"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	routes     []core.RouteRecord
	alignments []core.AlignmentRecord

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and resets collections
func (b *Backend) StartSession(session *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = session
	b.routes = nil
	b.alignments = nil
	return nil
}

// EndSession exports the session data and forgets the session
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return storage.ErrNoSession
	}
	err := b.exportJSON()
	b.session = nil
	return err
}

// RecordRoute stores a path update
func (b *Backend) RecordRoute(r *core.RouteRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return storage.ErrNoSession
	}
	rec := *r
	rec.Corners = append([]core.Position3D(nil), r.Corners...)
	b.routes = append(b.routes, rec)
	return nil
}

// RecordAlignment stores a surface pose change
func (b *Backend) RecordAlignment(a *core.AlignmentRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return storage.ErrNoSession
	}
	b.alignments = append(b.alignments, *a)
	return nil
}

// Routes returns a copy of the recorded routes
func (b *Backend) Routes() []core.RouteRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.RouteRecord(nil), b.routes...)
}

// Alignments returns a copy of the recorded alignments
func (b *Backend) Alignments() []core.AlignmentRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.AlignmentRecord(nil), b.alignments...)
}

// GetExportedFilePath returns the path of the last exported file
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

package storage

import (
	"errors"

	"github.com/wayfind/indoornav/pkg/core"
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("no active session")

// Backend is the interface all route history storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(session *core.Session) error
	EndSession() error

	// Recording
	RecordRoute(r *core.RouteRecord) error
	RecordAlignment(a *core.AlignmentRecord) error
}

// Exportable is an optional interface for backends that write a file
// when a session ends.
type Exportable interface {
	GetExportedFilePath() string
}

// Nop discards everything. It backs storage.type "none".
type Nop struct{}

func (Nop) Init() error                                 { return nil }
func (Nop) Close() error                                { return nil }
func (Nop) StartSession(*core.Session) error            { return nil }
func (Nop) EndSession() error                           { return nil }
func (Nop) RecordRoute(*core.RouteRecord) error         { return nil }
func (Nop) RecordAlignment(*core.AlignmentRecord) error { return nil }

// Package navigator wires the alignment manager, planner and selection state
// to their collaborators and applies the trigger policy: one route per tick
// and one immediately on every selection change.
//
// Start, Tick, SelectDestination, ProcessEvents and Close must be called from
// the host loop goroutine. Tracker and selector callbacks may arrive on any
// goroutine; they are queued and applied on the next ProcessEvents or Tick.
package navigator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wayfind/indoornav/internal/alignment"
	"github.com/wayfind/indoornav/internal/catalog"
	"github.com/wayfind/indoornav/internal/dispatcher"
	"github.com/wayfind/indoornav/internal/logging"
	"github.com/wayfind/indoornav/internal/planner"
	"github.com/wayfind/indoornav/internal/render"
	"github.com/wayfind/indoornav/internal/selection"
	"github.com/wayfind/indoornav/internal/storage"
	"github.com/wayfind/indoornav/internal/surface"
	"github.com/wayfind/indoornav/pkg/core"
)

// Dispatcher commands.
const (
	CommandMarkerChanged    = "marker:changed"
	CommandSelectionChanged = "selection:changed"
)

var (
	ErrAlreadyStarted = errors.New("navigator already started")
	ErrClosed         = errors.New("navigator closed")
)

// Tracker delivers marker lifecycle batches.
type Tracker interface {
	Subscribe(fn func(core.MarkerChanges)) (unsubscribe func())
}

// Selector is the destination chooser shown to the user.
type Selector interface {
	SetOptions(names []string, selected int)
	Subscribe(fn func(name string)) (unsubscribe func())
}

// PositionSource reports the live user position.
type PositionSource interface {
	Position() core.Position3D
}

// Options are behaviour switches, usually from config.NavigatorConfig.
type Options struct {
	// ReleasePrevious releases a surface replaced by a repeated marker add.
	ReleasePrevious bool
	// SkipUnchanged skips a tick's recompute when position, selection and
	// alignment are all unchanged since the last route.
	SkipUnchanged bool
}

// Dependencies holds all dependencies for the navigator
type Dependencies struct {
	Engine   surface.Engine
	Catalog  *catalog.Catalog
	Tracker  Tracker
	Selector Selector
	Player   PositionSource
	Renderer render.Renderer

	// Dispatcher serializes collaborator callbacks. Created when nil.
	Dispatcher *dispatcher.Dispatcher
	// History receives alignment records. Optional.
	History storage.Backend
	Logger  *slog.Logger
	Options Options
	// Now stamps updates. Defaults to time.Now.
	Now func() time.Time
}

type inputs struct {
	position   core.Position3D
	name       string
	generation uint64
}

// Navigator drives route planning for one session.
type Navigator struct {
	deps      Dependencies
	logger    *slog.Logger
	alignment *alignment.Manager
	planner   *planner.Planner
	selection *selection.State
	events    *dispatcher.Dispatcher

	frame       atomic.Uint64
	recomputes  int
	last        inputs
	haveLast    bool
	subscribers []func()
	started     bool
	closed      bool
}

// New builds a Navigator. Nothing is subscribed until Start.
func New(deps Dependencies) (*Navigator, error) {
	if deps.Engine == nil {
		return nil, errors.New("surface engine is required")
	}
	if deps.Player == nil {
		return nil, errors.New("position source is required")
	}
	if deps.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.New(nil, deps.Logger)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	n := &Navigator{
		deps:      deps,
		logger:    logger.With("component", "navigator"),
		selection: selection.New(deps.Catalog),
	}

	n.events = deps.Dispatcher
	if n.events == nil {
		d, err := dispatcher.New(logging.NewDispatcherLogger(logger), dispatcher.DefaultQueueSize)
		if err != nil {
			return nil, fmt.Errorf("creating dispatcher: %w", err)
		}
		n.events = d
	}

	n.alignment = alignment.New(deps.Engine, logger,
		alignment.ReleasePrevious(deps.Options.ReleasePrevious),
		alignment.WithObserver(n.recordAlignment),
	)

	p, err := planner.New(planner.Dependencies{
		Surfaces: n.alignment,
		Catalog:  deps.Catalog,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating planner: %w", err)
	}
	n.planner = p
	return n, nil
}

// Start populates the selector, subscribes to the collaborators and draws
// the route to the default destination.
func (n *Navigator) Start() error {
	if n.closed {
		return ErrClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}
	n.started = true

	n.events.Register(CommandMarkerChanged, n.handleMarkerChanged, dispatcher.Serialized(), dispatcher.Logged())
	n.events.Register(CommandSelectionChanged, n.handleSelectionChanged, dispatcher.Serialized(), dispatcher.Logged())

	if n.deps.Selector != nil {
		selected := -1
		if !n.deps.Catalog.Empty() {
			selected = 0
		}
		n.deps.Selector.SetOptions(n.deps.Catalog.Names(), selected)
		n.subscribers = append(n.subscribers, n.deps.Selector.Subscribe(n.onSelectorChanged))
	}
	if n.deps.Tracker != nil {
		n.subscribers = append(n.subscribers, n.deps.Tracker.Subscribe(n.onTrackerChanged))
	}

	if n.deps.Catalog.Empty() {
		n.logger.Info("Navigation idle until destinations are configured")
		return nil
	}

	name, _ := n.selection.Current()
	n.logger.Info("Navigation started", "destinations", n.deps.Catalog.Len(), "selected", name)
	n.recompute()
	return nil
}

// Tick applies queued events, then recomputes and renders the route once.
func (n *Navigator) Tick() {
	if n.closed {
		return
	}
	n.frame.Add(1)
	n.events.Drain()

	if n.deps.Catalog.Empty() {
		return
	}
	if n.deps.Options.SkipUnchanged && n.haveLast && n.currentInputs() == n.last {
		return
	}
	n.recompute()
}

// ProcessEvents applies queued tracker and selector events without ticking.
func (n *Navigator) ProcessEvents() int {
	if n.closed {
		return 0
	}
	return n.events.Drain()
}

// SelectDestination changes the selection and immediately recomputes. Names
// missing from the catalog are accepted and yield the empty route; the empty
// name clears the selection. With no destinations configured the call is
// ignored and nothing stays selected.
func (n *Navigator) SelectDestination(name string) {
	if n.closed {
		return
	}
	if n.deps.Catalog.Empty() {
		n.logger.Debug("Ignoring selection without destinations", "name", name)
		return
	}
	if name == "" {
		n.selection.Clear()
	} else {
		n.selection.Set(name)
	}
	n.recompute()
}

// Close releases subscriptions and the active surface. Safe to call more
// than once and before Start.
func (n *Navigator) Close() error {
	if n.closed {
		return nil
	}
	n.closed = true

	for i := len(n.subscribers) - 1; i >= 0; i-- {
		if unsubscribe := n.subscribers[i]; unsubscribe != nil {
			unsubscribe()
		}
	}
	n.subscribers = nil

	if n.started {
		n.events.Unregister(CommandMarkerChanged)
		n.events.Unregister(CommandSelectionChanged)
	}

	if err := n.alignment.Close(); err != nil {
		return fmt.Errorf("releasing surface: %w", err)
	}
	n.logger.Info("Navigation stopped", "frames", n.Frame(), "routes", n.recomputes)
	return nil
}

// Frame returns the number of ticks so far. Safe from any goroutine.
func (n *Navigator) Frame() uint64 {
	return n.frame.Load()
}

// Selection returns the selected destination name.
func (n *Navigator) Selection() (string, bool) {
	return n.selection.Current()
}

// Alignment exposes the alignment manager for inspection.
func (n *Navigator) Alignment() *alignment.Manager {
	return n.alignment
}

// Recomputes counts route computations since New.
func (n *Navigator) Recomputes() int {
	return n.recomputes
}

func (n *Navigator) currentInputs() inputs {
	name, _ := n.selection.Current()
	return inputs{
		position:   n.deps.Player.Position(),
		name:       name,
		generation: n.alignment.Generation(),
	}
}

func (n *Navigator) recompute() {
	in := n.currentInputs()
	path := n.planner.Recompute(in.position, in.name)
	n.recomputes++
	n.last, n.haveLast = in, true

	n.deps.Renderer.RenderPath(render.Update{
		Frame:       n.Frame(),
		Time:        n.deps.Now(),
		Destination: in.name,
		User:        in.position,
		Path:        path,
	})
}

func (n *Navigator) onTrackerChanged(changes core.MarkerChanges) {
	if changes.Empty() {
		return
	}
	if _, err := n.events.Dispatch(dispatcher.Event{Command: CommandMarkerChanged, Payload: changes}); err != nil {
		n.logger.Warn("Dropped marker event", "error", err)
	}
}

func (n *Navigator) onSelectorChanged(name string) {
	if _, err := n.events.Dispatch(dispatcher.Event{Command: CommandSelectionChanged, Payload: name}); err != nil {
		n.logger.Warn("Dropped selection event", "name", name, "error", err)
	}
}

func (n *Navigator) handleMarkerChanged(e dispatcher.Event) (any, error) {
	changes, ok := e.Payload.(core.MarkerChanges)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", e.Payload)
	}
	n.alignment.Apply(changes)
	return nil, nil
}

func (n *Navigator) handleSelectionChanged(e dispatcher.Event) (any, error) {
	name, ok := e.Payload.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", e.Payload)
	}
	n.SelectDestination(name)
	return nil, nil
}

func (n *Navigator) recordAlignment(marker core.Marker, created bool, pose core.Pose) {
	if n.deps.History == nil {
		return
	}
	err := n.deps.History.RecordAlignment(&core.AlignmentRecord{
		Frame:    n.Frame(),
		Time:     n.deps.Now(),
		MarkerID: marker.ID,
		Created:  created,
		Pose:     pose,
	})
	if err != nil {
		n.logger.Warn("Failed to record alignment", "marker", marker.ID, "error", err)
	}
}

// Package planner computes the walking route from the user to the selected
// destination against whatever surface is currently aligned.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wayfind/indoornav/internal/catalog"
	"github.com/wayfind/indoornav/internal/surface"
	"github.com/wayfind/indoornav/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Planning outcomes. They exist for diagnostics only; every one of them
// yields the empty path.
var (
	ErrEmptyCatalog     = errors.New("no destinations in catalog")
	ErrNoActiveSurface  = errors.New("no navigable surface aligned yet")
	ErrNoSelection      = errors.New("no destination selected")
	ErrUnknownSelection = errors.New("selected destination not in catalog")
	ErrUnreachable      = errors.New("destination unreachable")
	ErrQuery            = errors.New("surface query failed")
)

// SurfaceSource yields the surface to plan against. *alignment.Manager
// satisfies it.
type SurfaceSource interface {
	CurrentSurface() (surface.Surface, bool)
}

// Dependencies holds all dependencies for the planner
type Dependencies struct {
	Surfaces SurfaceSource
	Catalog  *catalog.Catalog
	Logger   *slog.Logger
}

// Planner issues one fresh surface query per call; nothing is cached.
type Planner struct {
	deps   Dependencies
	logger *slog.Logger

	// names already warned about since the last successful route
	unknown    map[string]struct{}
	recomputes metric.Int64Counter
}

// New creates a Planner. Metrics go to the global OTel meter.
func New(deps Dependencies) (*Planner, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Planner{
		deps:    deps,
		logger:  logger.With("component", "planner"),
		unknown: make(map[string]struct{}),
	}

	var err error
	p.recomputes, err = otel.Meter("github.com/wayfind/indoornav/internal/planner").Int64Counter(
		"planner.recompute",
		metric.WithDescription("Route recomputations by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating recompute counter: %w", err)
	}
	return p, nil
}

// Plan computes the route from user to the destination named name. An empty
// name means nothing is selected. Whenever err is non-nil the path is empty;
// err only says why.
func (p *Planner) Plan(user core.Position3D, name string) (core.Path, error) {
	if p.deps.Catalog == nil || p.deps.Catalog.Empty() {
		return core.EmptyPath(), ErrEmptyCatalog
	}
	if name == "" {
		return core.EmptyPath(), ErrNoSelection
	}
	dest, ok := p.deps.Catalog.Lookup(name)
	if !ok {
		return core.EmptyPath(), fmt.Errorf("%w: %q", ErrUnknownSelection, name)
	}
	s, ok := p.currentSurface()
	if !ok {
		return core.EmptyPath(), ErrNoActiveSurface
	}

	q, err := s.CalculatePath(user, dest.Position)
	if err != nil {
		return core.EmptyPath(), fmt.Errorf("%w: %w", ErrQuery, err)
	}
	if q.Status != core.PathComplete {
		return core.EmptyPath(), fmt.Errorf("%w: query status %s", ErrUnreachable, q.Status)
	}
	if len(q.Corners) < 2 {
		return core.EmptyPath(), fmt.Errorf("%w: complete route with %d corners", ErrQuery, len(q.Corners))
	}
	return core.NewPath(q.Corners), nil
}

// Recompute is Plan with every failure folded into the empty path. It never
// fails and never panics on a misbehaving surface.
func (p *Planner) Recompute(user core.Position3D, name string) (path core.Path) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Surface query panicked", "destination", name, "panic", r)
			p.record(ErrQuery)
			path = core.EmptyPath()
		}
	}()

	path, err := p.Plan(user, name)
	p.record(err)

	switch {
	case errors.Is(err, ErrUnknownSelection):
		if _, seen := p.unknown[name]; !seen {
			p.logger.Warn("No valid destination found", "name", name)
			p.unknown[name] = struct{}{}
		} else {
			p.logger.Debug("No valid destination found", "name", name)
		}
	case errors.Is(err, ErrQuery):
		p.logger.Warn("Surface query failed", "destination", name, "error", err)
	case err != nil:
		p.logger.Debug("No route", "destination", name, "reason", err)
	default:
		clear(p.unknown)
	}
	return path
}

func (p *Planner) currentSurface() (surface.Surface, bool) {
	if p.deps.Surfaces == nil {
		return nil, false
	}
	s, ok := p.deps.Surfaces.CurrentSurface()
	if !ok || s == nil {
		return nil, false
	}
	return s, true
}

func (p *Planner) record(err error) {
	p.recomputes.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", Outcome(err))))
}

// Outcome names the planning result for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "complete"
	case errors.Is(err, ErrEmptyCatalog):
		return "empty_catalog"
	case errors.Is(err, ErrNoSelection):
		return "no_selection"
	case errors.Is(err, ErrUnknownSelection):
		return "unknown_selection"
	case errors.Is(err, ErrNoActiveSurface):
		return "no_surface"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	default:
		return "query_error"
	}
}

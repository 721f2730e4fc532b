// Package catalog holds the destinations discovered at startup.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/wayfind/indoornav/internal/config"
	"github.com/wayfind/indoornav/pkg/core"
)

// ErrInvalidDestination is returned for a configured destination that cannot be used.
var ErrInvalidDestination = errors.New("invalid destination")

// Catalog is an immutable, ordered set of destinations with O(1) name lookup.
type Catalog struct {
	ordered []core.Destination
	byName  map[string]core.Destination
}

// New builds a catalog from dests, keeping their order. Unnamed entries are
// skipped and duplicate names keep the first entry; both are logged. An empty
// catalog is logged once as a warning.
func New(dests []core.Destination, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		ordered: make([]core.Destination, 0, len(dests)),
		byName:  make(map[string]core.Destination, len(dests)),
	}
	for i, d := range dests {
		if d.Name == "" {
			logger.Warn("Skipping destination without a name", "index", i)
			continue
		}
		if _, dup := c.byName[d.Name]; dup {
			logger.Warn("Duplicate destination name, keeping the first", "name", d.Name, "index", i)
			continue
		}
		c.byName[d.Name] = d
		c.ordered = append(c.ordered, d)
	}
	if len(c.ordered) == 0 {
		logger.Warn("No destinations found, navigation stays idle")
	}
	return c
}

// FromConfig converts configured destinations.
func FromConfig(entries []config.DestinationConfig, logger *slog.Logger) (*Catalog, error) {
	dests := make([]core.Destination, 0, len(entries))
	for i, e := range entries {
		if len(e.Position) != 3 {
			return nil, fmt.Errorf("%w: destination %d (%q) needs 3 position values, got %d",
				ErrInvalidDestination, i, e.Name, len(e.Position))
		}
		dests = append(dests, core.Destination{
			Name:     e.Name,
			Position: core.Position3D{X: e.Position[0], Y: e.Position[1], Z: e.Position[2]},
		})
	}
	return New(dests, logger), nil
}

// Lookup finds a destination by name.
func (c *Catalog) Lookup(name string) (core.Destination, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Len returns the number of destinations.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// Empty reports whether no destinations were discovered.
func (c *Catalog) Empty() bool {
	return len(c.ordered) == 0
}

// First returns the first destination in catalog order.
func (c *Catalog) First() (core.Destination, bool) {
	if len(c.ordered) == 0 {
		return core.Destination{}, false
	}
	return c.ordered[0], true
}

// Names returns destination names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.ordered))
	for i, d := range c.ordered {
		names[i] = d.Name
	}
	return names
}

// Destinations returns a copy of the destinations in catalog order.
func (c *Catalog) Destinations() []core.Destination {
	out := make([]core.Destination, len(c.ordered))
	copy(out, c.ordered)
	return out
}

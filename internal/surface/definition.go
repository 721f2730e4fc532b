package surface

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/wayfind/indoornav/pkg/core"
)

// ErrEmptyDefinition is returned for a surface definition without nodes.
var ErrEmptyDefinition = errors.New("surface definition has no nodes")

// NodeDefinition is a waypoint on the baked surface, in surface-local coordinates.
type NodeDefinition struct {
	ID       int64     `json:"id"`
	Position []float64 `json:"position"`
}

// Definition is the baked navigable surface: waypoints plus the walkable
// edges between them.
type Definition struct {
	Name  string           `json:"name"`
	Nodes []NodeDefinition `json:"nodes"`
	Edges [][2]int64       `json:"edges"`
}

// LoadDefinition reads a JSON surface definition from disk.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading surface definition: %w", err)
	}
	return ParseDefinition(data)
}

// ParseDefinition decodes and validates a JSON surface definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse surface definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks node identity and edge endpoints.
func (d *Definition) Validate() error {
	if len(d.Nodes) == 0 {
		return ErrEmptyDefinition
	}
	seen := make(map[int64]struct{}, len(d.Nodes))
	for i, n := range d.Nodes {
		if len(n.Position) != 3 {
			return fmt.Errorf("node %d: position must have 3 values, got %d", i, len(n.Position))
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("node %d: duplicate id %d", i, n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	for i, e := range d.Edges {
		for _, id := range e {
			if _, ok := seen[id]; !ok {
				return fmt.Errorf("edge %d: unknown node %d", i, id)
			}
		}
		if e[0] == e[1] {
			return fmt.Errorf("edge %d: self loop on node %d", i, e[0])
		}
	}
	return nil
}

func (n NodeDefinition) position() core.Position3D {
	return core.Position3D{X: n.Position[0], Y: n.Position[1], Z: n.Position[2]}
}

// Package replay drives a navigator from a recorded scenario: marker
// detections, destination choices, user movement and ticks.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/wayfind/indoornav/pkg/core"
)

// ErrInvalidScenario wraps every scenario validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// MarkerJSON is one tracked marker. Rotation is [w, x, y, z] and defaults
// to identity.
type MarkerJSON struct {
	ID       string    `json:"id"`
	Position []float64 `json:"position"`
	Rotation []float64 `json:"rotation,omitempty"`
}

// MarkerStep is one tracker batch.
type MarkerStep struct {
	Added   []MarkerJSON `json:"added,omitempty"`
	Updated []MarkerJSON `json:"updated,omitempty"`
	Removed []MarkerJSON `json:"removed,omitempty"`
}

// Step does exactly one thing.
type Step struct {
	Marker *MarkerStep `json:"marker,omitempty"`
	Select *string     `json:"select,omitempty"`
	Move   []float64   `json:"move,omitempty"`
	Ticks  int         `json:"ticks,omitempty"`
}

// Kind names what the step does.
func (s Step) Kind() string {
	switch {
	case s.Marker != nil:
		return "marker"
	case s.Select != nil:
		return "select"
	case s.Move != nil:
		return "move"
	case s.Ticks > 0:
		return "ticks"
	default:
		return "empty"
	}
}

// Scenario is a replayable session.
type Scenario struct {
	Name   string    `json:"name"`
	Player []float64 `json:"player"`
	Steps  []Step    `json:"steps"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks every step has exactly one action and well-formed values.
func (sc *Scenario) Validate() error {
	if sc.Player != nil {
		if _, err := position(sc.Player); err != nil {
			return fmt.Errorf("%w: player: %w", ErrInvalidScenario, err)
		}
	}
	for i, step := range sc.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("%w: step %d: %w", ErrInvalidScenario, i, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	actions := 0
	if s.Marker != nil {
		actions++
		if _, err := s.Marker.Changes(); err != nil {
			return err
		}
	}
	if s.Select != nil {
		actions++
	}
	if s.Move != nil {
		actions++
		if _, err := position(s.Move); err != nil {
			return fmt.Errorf("move: %w", err)
		}
	}
	if s.Ticks < 0 {
		return fmt.Errorf("negative ticks %d", s.Ticks)
	}
	if s.Ticks > 0 {
		actions++
	}
	if actions != 1 {
		return fmt.Errorf("want exactly one action, got %d", actions)
	}
	return nil
}

// StartPosition returns the initial user position.
func (sc *Scenario) StartPosition() core.Position3D {
	p, _ := position(sc.Player)
	return p
}

// Changes converts the step to a tracker batch.
func (m *MarkerStep) Changes() (core.MarkerChanges, error) {
	var changes core.MarkerChanges
	var err error
	if changes.Added, err = markers(m.Added); err != nil {
		return changes, fmt.Errorf("added: %w", err)
	}
	if changes.Updated, err = markers(m.Updated); err != nil {
		return changes, fmt.Errorf("updated: %w", err)
	}
	if changes.Removed, err = markers(m.Removed); err != nil {
		return changes, fmt.Errorf("removed: %w", err)
	}
	return changes, nil
}

func markers(in []MarkerJSON) ([]core.Marker, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]core.Marker, 0, len(in))
	for _, m := range in {
		marker, err := m.Marker()
		if err != nil {
			return nil, err
		}
		out = append(out, marker)
	}
	return out, nil
}

// Marker converts to the tracker representation.
func (m MarkerJSON) Marker() (core.Marker, error) {
	if m.ID == "" {
		return core.Marker{}, errors.New("marker without id")
	}
	pos, err := position(m.Position)
	if err != nil {
		return core.Marker{}, fmt.Errorf("marker %s: %w", m.ID, err)
	}
	rot := core.IdentityRotation
	switch len(m.Rotation) {
	case 0:
	case 4:
		rot = core.Rotation{W: m.Rotation[0], X: m.Rotation[1], Y: m.Rotation[2], Z: m.Rotation[3]}
	default:
		return core.Marker{}, fmt.Errorf("marker %s: rotation needs 4 values, got %d", m.ID, len(m.Rotation))
	}
	return core.Marker{ID: m.ID, Pose: core.Pose{Position: pos, Rotation: rot}}, nil
}

func position(v []float64) (core.Position3D, error) {
	switch len(v) {
	case 0:
		return core.Position3D{}, nil
	case 3:
		return core.Position3D{X: v[0], Y: v[1], Z: v[2]}, nil
	default:
		return core.Position3D{}, fmt.Errorf("position needs 3 values, got %d", len(v))
	}
}

// pkg/core/path.go
package core

import "fmt"

// PathStatus classifies the result of a surface path query.
type PathStatus int

const (
	// PathInvalid means no path could be computed, for example because an
	// endpoint is off the navigable surface.
	PathInvalid PathStatus = iota
	// PathPartial means the route stops short of the requested end point.
	PathPartial
	// PathComplete means a fully connected route was found.
	PathComplete
)

func (s PathStatus) String() string {
	switch s {
	case PathInvalid:
		return "invalid"
	case PathPartial:
		return "partial"
	case PathComplete:
		return "complete"
	default:
		return fmt.Sprintf("PathStatus(%d)", int(s))
	}
}

// Path is an ordered walkable polyline. An empty path means "no route";
// any valid route has at least two corners (start and end).
type Path struct {
	Corners []Position3D `json:"corners"`
}

// EmptyPath returns the "no route" path.
func EmptyPath() Path {
	return Path{}
}

// NewPath copies corners into a new Path.
func NewPath(corners []Position3D) Path {
	if len(corners) == 0 {
		return Path{}
	}
	c := make([]Position3D, len(corners))
	copy(c, corners)
	return Path{Corners: c}
}

// IsEmpty reports whether the path denotes "no route".
func (p Path) IsEmpty() bool {
	return len(p.Corners) == 0
}

// Len returns the corner count.
func (p Path) Len() int {
	return len(p.Corners)
}

// Equal reports whether both paths have identical corners.
func (p Path) Equal(other Path) bool {
	if len(p.Corners) != len(other.Corners) {
		return false
	}
	for i := range p.Corners {
		if p.Corners[i] != other.Corners[i] {
			return false
		}
	}
	return true
}

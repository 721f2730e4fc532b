// Package surface defines the boundary to the navigable-surface engine and
// ships a waypoint-graph engine usable by hosts without a native one.
package surface

import (
	"github.com/wayfind/indoornav/pkg/core"
)

// Query is the raw result of a shortest-path query.
type Query struct {
	Status  core.PathStatus
	Corners []core.Position3D
}

// Surface is one placed instance of the navigable surface.
type Surface interface {
	// Pose returns the current world pose of the surface.
	Pose() core.Pose
	// SetPose moves the surface in world space.
	SetPose(pose core.Pose)
	// CalculatePath queries the shortest walkable route between two
	// world-space points against the current pose.
	CalculatePath(from, to core.Position3D) (Query, error)
}

// Engine creates surface instances.
type Engine interface {
	Instantiate(pose core.Pose) (Surface, error)
}

// Releaser is implemented by surfaces that hold resources which should be
// freed when the instance is abandoned.
type Releaser interface {
	Release() error
}

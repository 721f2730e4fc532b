// pkg/core/types.go
package core

// Position3D is a world-space point in metres. The world is Y-up: the floor
// lies in the XZ plane and heading (yaw) is measured about +Y.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"` // height
	Z float64 `json:"z"`
}

// Rotation is a unit quaternion.
type Rotation struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// IdentityRotation is the rotation that leaves every vector unchanged.
var IdentityRotation = Rotation{W: 1}

// Pose is a position plus orientation in world space.
type Pose struct {
	Position Position3D `json:"position"`
	Rotation Rotation   `json:"rotation"`
}

// IdentityPose sits at the world origin with no rotation.
var IdentityPose = Pose{Rotation: IdentityRotation}

// Destination is a named point of interest that can be selected as a
// navigation target. Destinations are immutable once discovered.
type Destination struct {
	Name     string     `json:"name"`
	Position Position3D `json:"position"`
}

// Marker is one tracked visual marker as reported by the marker tracker.
type Marker struct {
	ID   string `json:"id"`
	Pose Pose   `json:"pose"`
}

// MarkerChanges is a single batch of tracker lifecycle events.
type MarkerChanges struct {
	Added   []Marker `json:"added,omitempty"`
	Updated []Marker `json:"updated,omitempty"`
	Removed []Marker `json:"removed,omitempty"`
}

// Empty reports whether the batch carries no events.
func (c MarkerChanges) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

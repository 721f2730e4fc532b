// pkg/core/records.go
package core

import "time"

// Session identifies one run of the navigator for route history.
type Session struct {
	ID        string
	Site      string
	StartTime time.Time
}

// RouteRecord is one rendered path update.
type RouteRecord struct {
	Frame       uint64
	Time        time.Time
	Destination string
	User        Position3D
	Corners     []Position3D
	Length      float64
}

// AlignmentRecord is one change of the navigable surface pose.
type AlignmentRecord struct {
	Frame    uint64
	Time     time.Time
	MarkerID string
	Created  bool // true when a new surface was instantiated
	Pose     Pose
}

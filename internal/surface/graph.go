package surface

import (
	"errors"
	"math"
	"sync"

	"github.com/wayfind/indoornav/internal/geo"
	"github.com/wayfind/indoornav/pkg/core"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// DefaultSnapDistance is how far, in metres, a query endpoint may be from the
// nearest waypoint and still count as on the surface.
const DefaultSnapDistance = 1.5

// ErrReleased is returned when querying a surface after Release.
var ErrReleased = errors.New("surface has been released")

// GraphOption configures a GraphEngine.
type GraphOption func(*GraphEngine)

// WithSnapDistance overrides DefaultSnapDistance.
func WithSnapDistance(d float64) GraphOption {
	return func(e *GraphEngine) {
		if d > 0 {
			e.snapDistance = d
		}
	}
}

// GraphEngine is a navigable surface baked as a waypoint graph. The graph is
// immutable and shared by every instance the engine creates; each instance
// only carries its own pose.
type GraphEngine struct {
	name         string
	g            *simple.WeightedUndirectedGraph
	nodes        map[int64]core.Position3D // surface-local
	snapDistance float64
}

// NewGraphEngine builds an engine from a validated definition.
func NewGraphEngine(def *Definition, opts ...GraphOption) (*GraphEngine, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	e := &GraphEngine{
		name:         def.Name,
		g:            simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
		nodes:        make(map[int64]core.Position3D, len(def.Nodes)),
		snapDistance: DefaultSnapDistance,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, n := range def.Nodes {
		e.nodes[n.ID] = n.position()
		e.g.AddNode(simple.Node(n.ID))
	}
	for _, edge := range def.Edges {
		from, to := simple.Node(edge[0]), simple.Node(edge[1])
		w := geo.Distance(e.nodes[edge[0]], e.nodes[edge[1]])
		e.g.SetWeightedEdge(e.g.NewWeightedEdge(from, to, w))
	}

	return e, nil
}

// Name returns the definition name.
func (e *GraphEngine) Name() string {
	return e.name
}

// NodeCount returns the number of waypoints.
func (e *GraphEngine) NodeCount() int {
	return len(e.nodes)
}

// Instantiate places a new surface instance at pose.
func (e *GraphEngine) Instantiate(pose core.Pose) (Surface, error) {
	return &GraphSurface{engine: e, pose: pose}, nil
}

// nearest returns the waypoint closest to a local point, if any lies within
// the snap distance.
func (e *GraphEngine) nearest(local core.Position3D) (int64, bool) {
	best := int64(0)
	bestDist := math.Inf(1)
	for id, p := range e.nodes {
		d := geo.Distance(p, local)
		if d < bestDist || (d == bestDist && id < best) {
			best, bestDist = id, d
		}
	}
	return best, bestDist <= e.snapDistance
}

func (e *GraphEngine) heuristic(x, y graph.Node) float64 {
	return geo.Distance(e.nodes[x.ID()], e.nodes[y.ID()])
}

// GraphSurface is one placed instance of a GraphEngine surface.
type GraphSurface struct {
	engine *GraphEngine

	mu       sync.RWMutex
	pose     core.Pose
	released bool
}

// Pose returns the current world pose.
func (s *GraphSurface) Pose() core.Pose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose
}

// SetPose moves the surface.
func (s *GraphSurface) SetPose(pose core.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose = pose
}

// Release marks the instance as no longer usable.
func (s *GraphSurface) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	return nil
}

// CalculatePath finds the shortest waypoint route between two world points.
func (s *GraphSurface) CalculatePath(from, to core.Position3D) (Query, error) {
	s.mu.RLock()
	pose, released := s.pose, s.released
	s.mu.RUnlock()

	if released {
		return Query{Status: core.PathInvalid}, ErrReleased
	}

	e := s.engine
	start, ok := e.nearest(geo.ToLocal(pose, from))
	if !ok {
		return Query{Status: core.PathInvalid}, nil
	}
	goal, ok := e.nearest(geo.ToLocal(pose, to))
	if !ok {
		return Query{Status: core.PathInvalid}, nil
	}

	shortest, _ := path.AStar(simple.Node(start), simple.Node(goal), e.g, e.heuristic)
	nodes, weight := shortest.To(goal)
	if len(nodes) > 0 && !math.IsInf(weight, 1) {
		return Query{Status: core.PathComplete, Corners: s.corners(pose, from, nodes, &to)}, nil
	}

	// Unreachable: walk as far as the reachable waypoint closest to the goal.
	reach := path.DijkstraFrom(simple.Node(start), e.g)
	goalLocal := e.nodes[goal]
	closest := start
	closestDist := geo.Distance(e.nodes[start], goalLocal)
	for id, p := range e.nodes {
		if _, w := reach.To(id); math.IsInf(w, 1) {
			continue
		}
		if d := geo.Distance(p, goalLocal); d < closestDist || (d == closestDist && id < closest) {
			closest, closestDist = id, d
		}
	}
	partial, _ := reach.To(closest)
	return Query{Status: core.PathPartial, Corners: s.corners(pose, from, partial, nil)}, nil
}

// corners assembles the world polyline: the query start, the waypoints, and
// the query end when given. Waypoints coinciding with the previous corner are
// dropped; start and end are always kept.
func (s *GraphSurface) corners(pose core.Pose, from core.Position3D, nodes []graph.Node, to *core.Position3D) []core.Position3D {
	out := make([]core.Position3D, 0, len(nodes)+2)
	out = append(out, from)
	for _, n := range nodes {
		p := geo.ToWorld(pose, s.engine.nodes[n.ID()])
		if geo.Distance(p, out[len(out)-1]) < 1e-9 {
			continue
		}
		out = append(out, p)
	}
	if to != nil {
		if len(out) > 1 && geo.Distance(out[len(out)-1], *to) < 1e-9 {
			out = out[:len(out)-1]
		}
		out = append(out, *to)
	}
	return out
}

package navigator

import (
	"sync"

	"github.com/wayfind/indoornav/internal/render"
	"github.com/wayfind/indoornav/internal/surface"
	"github.com/wayfind/indoornav/pkg/core"
)

// stubSurface answers every query with a scripted status. Complete queries
// return [from, to].
type stubSurface struct {
	pose     core.Pose
	status   core.PathStatus
	calls    int
	released bool
}

func (s *stubSurface) Pose() core.Pose        { return s.pose }
func (s *stubSurface) SetPose(pose core.Pose) { s.pose = pose }
func (s *stubSurface) Release() error         { s.released = true; return nil }

func (s *stubSurface) CalculatePath(from, to core.Position3D) (surface.Query, error) {
	s.calls++
	switch s.status {
	case core.PathComplete:
		return surface.Query{Status: core.PathComplete, Corners: []core.Position3D{from, to}}, nil
	case core.PathPartial:
		return surface.Query{Status: core.PathPartial, Corners: []core.Position3D{from}}, nil
	default:
		return surface.Query{Status: core.PathInvalid}, nil
	}
}

type stubEngine struct {
	status    core.PathStatus
	instances []*stubSurface
}

func (e *stubEngine) Instantiate(pose core.Pose) (surface.Surface, error) {
	s := &stubSurface{pose: pose, status: e.status}
	e.instances = append(e.instances, s)
	return s, nil
}

func (e *stubEngine) queries() int {
	n := 0
	for _, s := range e.instances {
		n += s.calls
	}
	return n
}

type fakeTracker struct {
	mu   sync.Mutex
	subs map[int]func(core.MarkerChanges)
	next int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{subs: make(map[int]func(core.MarkerChanges))}
}

func (t *fakeTracker) Subscribe(fn func(core.MarkerChanges)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

func (t *fakeTracker) emit(changes core.MarkerChanges) {
	t.mu.Lock()
	subs := make([]func(core.MarkerChanges), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()
	for _, fn := range subs {
		fn(changes)
	}
}

func (t *fakeTracker) subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

type fakeSelector struct {
	names    []string
	selected int
	subs     []func(string)
}

func (s *fakeSelector) SetOptions(names []string, selected int) {
	s.names, s.selected = names, selected
}

func (s *fakeSelector) Subscribe(fn func(string)) func() {
	s.subs = append(s.subs, fn)
	i := len(s.subs) - 1
	return func() { s.subs[i] = nil }
}

func (s *fakeSelector) choose(name string) {
	for _, fn := range s.subs {
		if fn != nil {
			fn(name)
		}
	}
}

type fixedPlayer struct {
	mu  sync.Mutex
	pos core.Position3D
}

func (p *fixedPlayer) Position() core.Position3D {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

func (p *fixedPlayer) moveTo(pos core.Position3D) {
	p.mu.Lock()
	p.pos = pos
	p.mu.Unlock()
}

type captureRenderer struct {
	updates []render.Update
}

func (r *captureRenderer) RenderPath(u render.Update) {
	r.updates = append(r.updates, u)
}

func (r *captureRenderer) last() render.Update {
	if len(r.updates) == 0 {
		return render.Update{}
	}
	return r.updates[len(r.updates)-1]
}

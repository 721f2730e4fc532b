package replay

import (
	"sync"

	"github.com/wayfind/indoornav/pkg/core"
)

// Feed is a marker tracker fed by hand.
type Feed struct {
	mu   sync.Mutex
	subs map[int]func(core.MarkerChanges)
	next int
}

// NewFeed creates a Feed with no subscribers.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]func(core.MarkerChanges))}
}

// Subscribe registers fn for every emitted batch.
func (f *Feed) Subscribe(fn func(core.MarkerChanges)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Emit delivers changes to every subscriber.
func (f *Feed) Emit(changes core.MarkerChanges) {
	f.mu.Lock()
	subs := make([]func(core.MarkerChanges), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(changes)
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Dropdown is a destination chooser.
type Dropdown struct {
	mu       sync.Mutex
	options  []string
	selected int
	subs     map[int]func(string)
	next     int
}

// NewDropdown creates an empty Dropdown.
func NewDropdown() *Dropdown {
	return &Dropdown{selected: -1, subs: make(map[int]func(string))}
}

// SetOptions replaces the listed names.
func (d *Dropdown) SetOptions(names []string, selected int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.options = append([]string(nil), names...)
	d.selected = selected
}

// Subscribe registers fn for every choice.
func (d *Dropdown) Subscribe(fn func(string)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.next
	d.next++
	d.subs[id] = fn
	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

// Choose selects name as a user would. Names not in the list are passed on
// unchanged and leave the highlighted index alone.
func (d *Dropdown) Choose(name string) {
	d.mu.Lock()
	for i, option := range d.options {
		if option == name {
			d.selected = i
			break
		}
	}
	subs := make([]func(string), 0, len(d.subs))
	for _, fn := range d.subs {
		subs = append(subs, fn)
	}
	d.mu.Unlock()

	for _, fn := range subs {
		fn(name)
	}
}

// Options returns the listed names.
func (d *Dropdown) Options() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.options...)
}

// Selected returns the highlighted index, -1 when none.
func (d *Dropdown) Selected() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected
}

// Player is the user position.
type Player struct {
	mu  sync.RWMutex
	pos core.Position3D
}

// NewPlayer creates a Player at start.
func NewPlayer(start core.Position3D) *Player {
	return &Player{pos: start}
}

// Position returns the current position.
func (p *Player) Position() core.Position3D {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pos
}

// MoveTo sets the current position.
func (p *Player) MoveTo(pos core.Position3D) {
	p.mu.Lock()
	p.pos = pos
	p.mu.Unlock()
}

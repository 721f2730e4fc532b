// Package selection tracks which destination name is currently chosen.
package selection

import "github.com/wayfind/indoornav/internal/catalog"

// State is the current destination choice. Names are not validated against
// the catalog; unknown names are resolved, and rejected, at planning time.
type State struct {
	name string
	set  bool
}

// New starts with the first catalog destination selected, or nothing when
// the catalog is empty.
func New(cat *catalog.Catalog) *State {
	s := &State{}
	if cat == nil {
		return s
	}
	if first, ok := cat.First(); ok {
		s.name, s.set = first.Name, true
	}
	return s
}

// Set selects name.
func (s *State) Set(name string) {
	s.name, s.set = name, true
}

// Clear removes the selection.
func (s *State) Clear() {
	s.name, s.set = "", false
}

// Current returns the selected name, or false when nothing is selected.
func (s *State) Current() (string, bool) {
	return s.name, s.set
}

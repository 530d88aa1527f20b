// Package filter marks rendered topology elements matching a search text.
//
// Matching is a case-insensitive substring test against precomputed,
// lowercase search keys. Nothing is re-rendered: a State only says
// which elements are active and whether filtering mode is on.
package filter

import (
	"slices"
	"strings"
	"sync"
)

// Target is a searchable element of a rendered page.
type Target struct {
	// ID is the element ID.
	ID string
	// Key is the lowercase search key of the element.
	Key string
}

// State is the result of applying a filter text.
type State struct {
	// Filtering is set when a non-empty filter text is applied.
	Filtering bool `json:"filtering"`
	// Active holds the IDs of all matching elements in page order.
	Active []string `json:"active"`
}

// Contains returns whether the element with the given ID is active.
func (s State) Contains(id string) bool {
	return slices.Contains(s.Active, id)
}

// ActiveSet returns the active element IDs as a set.
func (s State) ActiveSet() map[string]bool {
	set := make(map[string]bool, len(s.Active))
	for _, id := range s.Active {
		set[id] = true
	}
	return set
}

// Normalize returns the normalized filter text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// MakeKey builds a lowercase search key from the given parts.
func MakeKey(parts ...string) string {
	return strings.ToLower(strings.Join(parts, " "))
}

// Filter applies filter texts to a fixed set of targets.
type Filter struct {
	targets []Target

	text  string
	state State
	lock  sync.Mutex
}

// New returns a new filter over the given targets.
func New(targets []Target) *Filter {
	return &Filter{
		targets: targets,
	}
}

// Match returns the state for the given filter text without changing
// the filter.
func (f *Filter) Match(text string) State {
	return match(f.targets, Normalize(text))
}

// Apply applies the given filter text. The state is only recomputed when
// the normalized text differs from the previously applied one.
func (f *Filter) Apply(text string) (state State, changed bool) {
	f.lock.Lock()
	defer f.lock.Unlock()

	text = Normalize(text)
	if text == f.text {
		return f.state, false
	}

	f.text = text
	f.state = match(f.targets, text)
	return f.state, true
}

// Text returns the currently applied normalized filter text.
func (f *Filter) Text() string {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.text
}

func match(targets []Target, text string) State {
	// An empty filter clears all markings and exits filtering mode.
	if text == "" {
		return State{}
	}

	state := State{
		Filtering: true,
		Active:    make([]string, 0, 8),
	}
	for _, t := range targets {
		if strings.Contains(t.Key, text) {
			state.Active = append(state.Active, t.ID)
		}
	}
	return state
}

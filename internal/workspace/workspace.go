// Package workspace is the canonical registry of compositor workspaces.
//
// Entries are reference counted: every sighting reported by a backend adds a
// reference, removals drop them, and an entry is destroyed once no reference
// is left. Names in the pinned set never disappear; when the compositor stops
// materializing them they are kept as dormant placeholders carrying the
// handle.Dormant id, and come back to life on the next sighting.
package workspace

import (
	"strings"

	"github.com/bnema/wlbar/internal/handle"
)

// State is a bit set describing a workspace
type State uint8

const (
	Focused State = 1 << iota
	Visible
	Urgent
	Hidden
)

// reported is the subset of bits a backend may assert through NewOrUpdate.
// Focused and Visible are owned by SetFocus and SetActive.
const reported = Urgent | Hidden

func (s State) Has(s2 State) bool {
	return s&s2 == s2
}

func (s State) String() string {
	var parts []string
	for _, b := range []struct {
		bit  State
		name string
	}{{Focused, "focused"}, {Visible, "visible"}, {Urgent, "urgent"}, {Hidden, "hidden"}} {
		if s.Has(b.bit) {
			parts = append(parts, b.name)
		}
	}
	return strings.Join(parts, "|")
}

// Phase is the lifecycle position of an entry
type Phase uint8

const (
	Live Phase = iota
	Dormant
)

func (p Phase) String() string {
	if p == Dormant {
		return "dormant"
	}
	return "live"
}

// Workspace is a snapshot of one registry entry
type Workspace struct {
	ID       handle.ID
	Name     string
	State    State
	Output   string
	Refcount int
	Phase    Phase
	Pinned   bool
}

// Dormant reports whether this is a pinned placeholder
func (w Workspace) Dormant() bool {
	return w.Phase == Dormant
}

// Change describes why a workspace was committed
type Change uint8

const (
	Added Change = iota
	Changed
	Removed
)

func (c Change) String() string {
	switch c {
	case Added:
		return "added"
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners for every invalidation
type Event struct {
	Change    Change
	Workspace Workspace
}

// Listener receives invalidations. It must not mutate the registry synchronously.
type Listener func(Event)

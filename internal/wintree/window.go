// Package wintree holds the canonical, backend-agnostic registry of open windows.
package wintree

import (
	"slices"
	"strings"

	"github.com/bnema/wlbar/internal/handle"
)

// UnknownPID marks a window whose owning process is not known
const UnknownPID = -1

// State is a bit set describing a window
type State uint16

const (
	Focused State = 1 << iota
	Minimized
	Maximized
	Fullscreen
	IdleInhibited
	UserState
	UserState2
)

var stateNames = []struct {
	bit  State
	name string
}{
	{Focused, "focused"},
	{Minimized, "minimized"},
	{Maximized, "maximized"},
	{Fullscreen, "fullscreen"},
	{IdleInhibited, "idle-inhibited"},
	{UserState, "user"},
	{UserState2, "user2"},
}

// Has reports whether all bits of s2 are set
func (s State) Has(s2 State) bool {
	return s&s2 == s2
}

// Names lists the set bits
func (s State) Names() []string {
	names := []string{}
	for _, sn := range stateNames {
		if s.Has(sn.bit) {
			names = append(names, sn.name)
		}
	}
	return names
}

func (s State) String() string {
	return strings.Join(s.Names(), "|")
}

// Window is one top-level application window. Values handed out by the Tree
// are snapshots; mutate through the Tree so listeners are notified.
type Window struct {
	ID        handle.ID
	Title     string
	AppID     string
	PID       int
	State     State
	Workspace handle.ID
	Outputs   []string
	Floating  bool
}

// NewWindow allocates a zero-initialized window record with an unknown pid
func NewWindow(id handle.ID) *Window {
	return &Window{
		ID:  id,
		PID: UnknownPID,
	}
}

// OnOutput reports whether the window spans the named output
func (w Window) OnOutput(name string) bool {
	return slices.Contains(w.Outputs, name)
}

func (w *Window) clone() Window {
	c := *w
	c.Outputs = slices.Clone(w.Outputs)
	return c
}

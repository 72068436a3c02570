package wintree

import (
	"slices"
	"sort"
	"sync"

	"github.com/bnema/wlbar/internal/handle"
)

// Change describes why a window was committed
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

// Event is delivered to listeners for every commit
type Event struct {
	Change Change
	Window Window
}

// Listener receives invalidations. It runs on the mutating goroutine and must
// not mutate the tree synchronously.
type Listener func(Event)

// Tree is the window registry. All mutation goes through its methods, which
// serialize on one mutex and route every change through commit.
type Tree struct {
	mu      sync.Mutex
	windows map[handle.ID]*Window
	focused handle.ID

	// emitMu keeps listener delivery in mutation order
	emitMu    sync.Mutex
	listeners map[int]Listener
	nextToken int
}

// New creates an empty tree
func New() *Tree {
	return &Tree{
		windows:   make(map[handle.ID]*Window),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers a listener and returns a function removing it
func (t *Tree) Subscribe(l Listener) func() {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	token := t.nextToken
	t.nextToken++
	t.listeners[token] = l

	return func() {
		t.emitMu.Lock()
		defer t.emitMu.Unlock()
		delete(t.listeners, token)
	}
}

// unlockAndEmit releases the registry lock and delivers events in order
func (t *Tree) unlockAndEmit(events []Event) {
	t.emitMu.Lock()
	t.mu.Unlock()
	defer t.emitMu.Unlock()

	if len(events) == 0 {
		return
	}

	tokens := make([]int, 0, len(t.listeners))
	for token := range t.listeners {
		tokens = append(tokens, token)
	}
	sort.Ints(tokens)

	for _, ev := range events {
		for _, token := range tokens {
			t.listeners[token](ev)
		}
	}
}

// Append inserts a window. It is idempotent: a known id is left untouched and
// false is returned.
func (t *Tree) Append(w *Window) bool {
	if w == nil || w.ID.IsNil() {
		return false
	}

	t.mu.Lock()
	if _, ok := t.windows[w.ID]; ok {
		t.unlockAndEmit(nil)
		return false
	}

	stored := w.clone()
	if stored.Focused() {
		// focus is owned by SetFocus
		stored.State &^= Focused
	}
	t.windows[stored.ID] = &stored

	t.unlockAndEmit([]Event{{Change: Added, Window: stored.clone()}})
	return true
}

// Delete removes a window. Unknown ids are ignored.
func (t *Tree) Delete(id handle.ID) bool {
	t.mu.Lock()
	w, ok := t.windows[id]
	if !ok {
		t.unlockAndEmit(nil)
		return false
	}

	delete(t.windows, id)
	if t.focused == id {
		t.focused = handle.Nil
	}

	t.unlockAndEmit([]Event{{Change: Removed, Window: w.clone()}})
	return true
}

// Find returns a snapshot of the window with the given id
func (t *Tree) Find(id handle.ID) (Window, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[id]
	if !ok {
		return Window{}, false
	}
	return w.clone(), true
}

// FindByPID returns the first window (in listing order) owned by pid
func (t *Tree) FindByPID(pid int) (Window, bool) {
	if pid == UnknownPID {
		return Window{}, false
	}
	for _, w := range t.List() {
		if w.PID == pid {
			return w, true
		}
	}
	return Window{}, false
}

// CountByPID returns how many tracked windows pid owns
func (t *Tree) CountByPID(pid int) int {
	if pid == UnknownPID {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, w := range t.windows {
		if w.PID == pid {
			n++
		}
	}
	return n
}

// Len returns the number of tracked windows
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.windows)
}

// List returns all windows sorted by title, then id. The order is recomputed
// on every call so title changes need no re-sort bookkeeping.
func (t *Tree) List() []Window {
	t.mu.Lock()
	out := make([]Window, 0, len(t.windows))
	for _, w := range t.windows {
		out = append(out, w.clone())
	}
	t.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID.Less(out[j].ID)
	})
	return out
}

// Focused returns the id of the focused window, or handle.Nil
func (t *Tree) Focused() handle.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.focused
}

// IsFocused reports whether id holds the focus
func (t *Tree) IsFocused(id handle.ID) bool {
	if id.IsNil() {
		return false
	}
	return t.Focused() == id
}

// SetFocus moves focus to id. The previous holder is un-focused and each
// affected window is committed once. Focusing an unknown id clears focus.
func (t *Tree) SetFocus(id handle.ID) {
	t.mu.Lock()
	if t.focused == id {
		t.unlockAndEmit(nil)
		return
	}

	var events []Event
	if old, ok := t.windows[t.focused]; ok {
		old.State &^= Focused
		events = append(events, Event{Change: Changed, Window: old.clone()})
	}

	t.focused = handle.Nil
	if w, ok := t.windows[id]; ok {
		w.State |= Focused
		t.focused = id
		events = append(events, Event{Change: Changed, Window: w.clone()})
	}

	t.unlockAndEmit(events)
}

// SetTitle changes the title and commits
func (t *Tree) SetTitle(id handle.ID, title string) bool {
	return t.Update(id, func(w *Window) {
		w.Title = title
	})
}

// SetAppID changes the app id and commits
func (t *Tree) SetAppID(id handle.ID, appID string) bool {
	return t.Update(id, func(w *Window) {
		w.AppID = appID
	})
}

// SetState sets or clears state bits. Focused is owned by SetFocus and ignored here.
func (t *Tree) SetState(id handle.ID, bits State, on bool) bool {
	bits &^= Focused
	return t.Update(id, func(w *Window) {
		if on {
			w.State |= bits
		} else {
			w.State &^= bits
		}
	})
}

// SetWorkspace moves the window's workspace back-reference
func (t *Tree) SetWorkspace(id handle.ID, ws handle.ID) bool {
	return t.Update(id, func(w *Window) {
		w.Workspace = ws
	})
}

// AddOutput records that the window entered an output
func (t *Tree) AddOutput(id handle.ID, output string) bool {
	return t.Update(id, func(w *Window) {
		if !slices.Contains(w.Outputs, output) {
			w.Outputs = append(w.Outputs, output)
		}
	})
}

// RemoveOutput records that the window left an output
func (t *Tree) RemoveOutput(id handle.ID, output string) bool {
	return t.Update(id, func(w *Window) {
		w.Outputs = slices.DeleteFunc(w.Outputs, func(o string) bool { return o == output })
	})
}

// Update applies fn to the stored window and commits if anything changed.
// It returns false when the id is unknown or nothing changed.
func (t *Tree) Update(id handle.ID, fn func(w *Window)) bool {
	t.mu.Lock()
	w, ok := t.windows[id]
	if !ok {
		t.unlockAndEmit(nil)
		return false
	}

	before := w.clone()
	fn(w)
	// identity and focus are not editable through Update
	w.ID = before.ID
	w.State = w.State&^Focused | before.State&Focused

	if before.equal(w) {
		t.unlockAndEmit(nil)
		return false
	}
	t.unlockAndEmit([]Event{{Change: Changed, Window: w.clone()}})
	return true
}

// Commit notifies listeners that id must be re-derived, without changing it
func (t *Tree) Commit(id handle.ID) {
	t.mu.Lock()
	w, ok := t.windows[id]
	if !ok {
		t.unlockAndEmit(nil)
		return
	}
	t.unlockAndEmit([]Event{{Change: Changed, Window: w.clone()}})
}

// Clear drops every window, e.g. when a backend re-enumerates from scratch
func (t *Tree) Clear() {
	t.mu.Lock()
	events := make([]Event, 0, len(t.windows))
	for _, w := range t.windows {
		events = append(events, Event{Change: Removed, Window: w.clone()})
	}
	t.windows = make(map[handle.ID]*Window)
	t.focused = handle.Nil
	t.unlockAndEmit(events)
}

// Focused reports whether the window carries the Focused bit
func (w Window) Focused() bool {
	return w.State.Has(Focused)
}

func (w *Window) equal(o *Window) bool {
	return w.ID == o.ID &&
		w.Title == o.Title &&
		w.AppID == o.AppID &&
		w.PID == o.PID &&
		w.State == o.State &&
		w.Workspace == o.Workspace &&
		w.Floating == o.Floating &&
		slices.Equal(w.Outputs, o.Outputs)
}

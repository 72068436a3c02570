package workspace

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"

	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/logger"
)

var (
	// ErrNotFound is returned when an id matches no live workspace
	ErrNotFound = errors.New("workspace not found")
	// ErrNameTaken is returned when a rename collides with another live workspace
	ErrNameTaken = errors.New("workspace name already in use")
)

// Registry owns every workspace known to the active backend. Workspace counts
// are small, so lookups are linear scans over a slice.
type Registry struct {
	mu      sync.Mutex
	entries []*Workspace
	pinned  map[string]bool
	focused handle.ID
	active  map[string]handle.ID

	emitMu    sync.Mutex
	listeners map[int]Listener
	nextToken int
}

// NewRegistry creates an empty registry with the given pinned names. Each
// pinned name starts out as a dormant placeholder.
func NewRegistry(pinned ...string) *Registry {
	r := &Registry{
		pinned:    make(map[string]bool),
		active:    make(map[string]handle.ID),
		listeners: make(map[int]Listener),
	}
	for _, name := range pinned {
		if name == "" || r.pinned[name] {
			continue
		}
		r.pinned[name] = true
		r.entries = append(r.entries, placeholder(name))
	}
	return r
}

func placeholder(name string) *Workspace {
	return &Workspace{ID: handle.Dormant, Name: name, Phase: Dormant, Pinned: true}
}

// Subscribe registers a listener and returns a function removing it
func (r *Registry) Subscribe(l Listener) func() {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	token := r.nextToken
	r.nextToken++
	r.listeners[token] = l

	return func() {
		r.emitMu.Lock()
		defer r.emitMu.Unlock()
		delete(r.listeners, token)
	}
}

func (r *Registry) unlockAndEmit(events []Event) {
	r.emitMu.Lock()
	r.mu.Unlock()
	defer r.emitMu.Unlock()

	if len(events) == 0 {
		return
	}
	tokens := make([]int, 0, len(r.listeners))
	for token := range r.listeners {
		tokens = append(tokens, token)
	}
	sort.Ints(tokens)
	for _, ev := range events {
		for _, token := range tokens {
			r.listeners[token](ev)
		}
	}
}

// byID finds a live entry. Dormant placeholders never match an id.
func (r *Registry) byID(id handle.ID) *Workspace {
	if id.IsNil() || id.IsDormant() {
		return nil
	}
	for _, ws := range r.entries {
		if ws.Phase == Live && ws.ID == id {
			return ws
		}
	}
	return nil
}

func (r *Registry) byName(name string) *Workspace {
	for _, ws := range r.entries {
		if ws.Name == name {
			return ws
		}
	}
	return nil
}

func (r *Registry) remove(target *Workspace) {
	r.entries = slices.DeleteFunc(r.entries, func(ws *Workspace) bool { return ws == target })
}

// NewOrUpdate records a sighting of a workspace. It matches by id first and
// falls back to the name, so a dormant placeholder or a lazily-identified
// entry adopts the id. Each accepted call adds one reference; listeners are
// only notified when the entry is created or its name or state changes.
//
// Only the Urgent and Hidden bits of state are taken from the caller. A name
// already held by a different live id is a protocol inconsistency: the
// sighting is logged and ignored, and false is returned.
func (r *Registry) NewOrUpdate(id handle.ID, name string, state State) (Workspace, bool) {
	if id.IsNil() || id.IsDormant() {
		logger.Debugf("Ignoring workspace %q without a usable id", name)
		return Workspace{}, false
	}
	state &= reported

	r.mu.Lock()
	var events []Event

	ws := r.byID(id)
	if ws == nil && name != "" {
		if other := r.byName(name); other != nil {
			if other.Phase == Live {
				logger.Debugf("Workspace name %q already held by %s, ignoring %s", name, other.ID, id)
				r.unlockAndEmit(nil)
				return Workspace{}, false
			}
			ws = other
		}
	}

	if ws == nil {
		ws = &Workspace{
			ID:       id,
			Name:     name,
			State:    state,
			Refcount: 1,
			Pinned:   r.pinned[name],
		}
		r.entries = append(r.entries, ws)
		snapshot := *ws
		r.unlockAndEmit([]Event{{Change: Added, Workspace: snapshot}})
		return snapshot, true
	}

	before := *ws
	if ws.Phase == Dormant {
		ws.Phase = Live
		ws.ID = id
	}
	if name != "" && name != ws.Name {
		renamed, err := r.renameLocked(ws, name)
		if err != nil {
			logger.Debugf("Workspace %s: %v", id, err)
			// undo a revival so the placeholder stays intact
			*ws = before
			r.unlockAndEmit(nil)
			return Workspace{}, false
		}
		events = append(events, renamed...)
	}
	ws.State = ws.State&^reported | state
	ws.Refcount++

	if differs(before, *ws) {
		events = append(events, Event{Change: Changed, Workspace: *ws})
	}
	snapshot := *ws
	r.unlockAndEmit(events)
	return snapshot, true
}

// differs compares everything listeners care about; the refcount is internal
func differs(a, b Workspace) bool {
	return a.ID != b.ID || a.Name != b.Name || a.State != b.State ||
		a.Output != b.Output || a.Phase != b.Phase || a.Pinned != b.Pinned
}

// Unref drops one reference. At zero the workspace is destroyed, or becomes
// dormant when its name is pinned.
func (r *Registry) Unref(id handle.ID) bool {
	r.mu.Lock()
	ws := r.byID(id)
	if ws == nil {
		r.unlockAndEmit(nil)
		return false
	}
	ws.Refcount--
	var events []Event
	if ws.Refcount <= 0 {
		events = r.retireLocked(ws)
	}
	r.unlockAndEmit(events)
	return true
}

// Delete drops every reference to id at once, for backends that report
// removal as a single authoritative event.
func (r *Registry) Delete(id handle.ID) bool {
	r.mu.Lock()
	ws := r.byID(id)
	if ws == nil {
		r.unlockAndEmit(nil)
		return false
	}
	events := r.retireLocked(ws)
	r.unlockAndEmit(events)
	return true
}

// Reconcile retires every live workspace whose id is not in seen. Polling
// backends call it after a full enumeration.
func (r *Registry) Reconcile(seen []handle.ID) int {
	r.mu.Lock()
	var stale []*Workspace
	for _, ws := range r.entries {
		if ws.Phase == Live && !slices.Contains(seen, ws.ID) {
			stale = append(stale, ws)
		}
	}
	var events []Event
	for _, ws := range stale {
		events = append(events, r.retireLocked(ws)...)
	}
	r.unlockAndEmit(events)
	return len(stale)
}

func (r *Registry) retireLocked(ws *Workspace) []Event {
	id := ws.ID
	if r.focused == id {
		r.focused = handle.Nil
	}
	for output, active := range r.active {
		if active == id {
			delete(r.active, output)
		}
	}

	if !r.pinned[ws.Name] {
		r.remove(ws)
		gone := *ws
		gone.Refcount = 0
		return []Event{{Change: Removed, Workspace: gone}}
	}

	*ws = *placeholder(ws.Name)
	return []Event{{Change: Changed, Workspace: *ws}}
}

// Rename re-keys a live workspace by name, keeping its id and refcount
func (r *Registry) Rename(id handle.ID, name string) error {
	r.mu.Lock()
	ws := r.byID(id)
	if ws == nil {
		r.unlockAndEmit(nil)
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if ws.Name == name {
		r.unlockAndEmit(nil)
		return nil
	}

	events, err := r.renameLocked(ws, name)
	if err != nil {
		r.unlockAndEmit(nil)
		return err
	}
	events = append(events, Event{Change: Changed, Workspace: *ws})
	r.unlockAndEmit(events)
	return nil
}

// renameLocked applies the name change and returns the placeholder events it
// caused. The caller commits ws itself.
func (r *Registry) renameLocked(ws *Workspace, name string) ([]Event, error) {
	var events []Event

	if other := r.byName(name); other != nil && other != ws {
		if other.Phase == Live {
			return nil, fmt.Errorf("%w: %q is %s", ErrNameTaken, name, other.ID)
		}
		// the live workspace takes over the pinned placeholder
		r.remove(other)
		events = append(events, Event{Change: Removed, Workspace: *other})
	}

	oldName := ws.Name
	ws.Name = name
	ws.Pinned = r.pinned[name]

	if oldName != "" && r.pinned[oldName] && ws.Phase == Live {
		p := placeholder(oldName)
		r.entries = append(r.entries, p)
		events = append(events, Event{Change: Added, Workspace: *p})
	}
	return events, nil
}

// SetFocus makes id the single focused workspace. Both the previous and the
// new holder are committed. An unknown id clears focus.
func (r *Registry) SetFocus(id handle.ID) {
	r.mu.Lock()
	if r.focused == id {
		r.unlockAndEmit(nil)
		return
	}

	var events []Event
	if old := r.byID(r.focused); old != nil {
		old.State &^= Focused
		events = append(events, Event{Change: Changed, Workspace: *old})
	}

	r.focused = handle.Nil
	if ws := r.byID(id); ws != nil {
		ws.State |= Focused
		r.focused = id
		events = append(events, Event{Change: Changed, Workspace: *ws})
	} else if !id.IsNil() {
		logger.Debugf("Focus moved to unknown workspace %s", id)
	}
	r.unlockAndEmit(events)
}

// SetActive records that output now displays workspace id
func (r *Registry) SetActive(output string, id handle.ID) {
	r.mu.Lock()
	prev, had := r.active[output]
	if had && prev == id {
		r.unlockAndEmit(nil)
		return
	}

	var events []Event
	if id.IsNil() {
		delete(r.active, output)
	} else {
		r.active[output] = id
	}

	if old := r.byID(prev); had && old != nil && !r.activeElsewhere(prev) {
		old.State &^= Visible
		events = append(events, Event{Change: Changed, Workspace: *old})
	}
	if ws := r.byID(id); ws != nil {
		before := *ws
		ws.State |= Visible
		ws.Output = output
		if differs(before, *ws) {
			events = append(events, Event{Change: Changed, Workspace: *ws})
		}
	}
	r.unlockAndEmit(events)
}

func (r *Registry) activeElsewhere(id handle.ID) bool {
	for _, active := range r.active {
		if active == id {
			return true
		}
	}
	return false
}

// RemoveOutput forgets an output, clearing Visible from what it displayed
func (r *Registry) RemoveOutput(output string) {
	r.SetActive(output, handle.Nil)
}

// SetState sets or clears Urgent/Hidden bits on a live workspace
func (r *Registry) SetState(id handle.ID, bits State, on bool) bool {
	return r.update(id, func(ws *Workspace) {
		bits &= reported
		if on {
			ws.State |= bits
		} else {
			ws.State &^= bits
		}
	})
}

// SetOutput records which output a workspace belongs to
func (r *Registry) SetOutput(id handle.ID, output string) bool {
	return r.update(id, func(ws *Workspace) {
		ws.Output = output
	})
}

func (r *Registry) update(id handle.ID, fn func(*Workspace)) bool {
	r.mu.Lock()
	ws := r.byID(id)
	if ws == nil {
		r.unlockAndEmit(nil)
		return false
	}
	before := *ws
	fn(ws)
	if !differs(before, *ws) {
		r.unlockAndEmit(nil)
		return false
	}
	r.unlockAndEmit([]Event{{Change: Changed, Workspace: *ws}})
	return true
}

// Pin marks name as persistent. If nothing by that name exists a dormant
// placeholder is created.
func (r *Registry) Pin(name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	if r.pinned[name] {
		r.unlockAndEmit(nil)
		return
	}
	r.pinned[name] = true

	if ws := r.byName(name); ws != nil {
		ws.Pinned = true
		r.unlockAndEmit([]Event{{Change: Changed, Workspace: *ws}})
		return
	}
	p := placeholder(name)
	r.entries = append(r.entries, p)
	r.unlockAndEmit([]Event{{Change: Added, Workspace: *p}})
}

// Unpin removes name from the pinned set. A dormant placeholder is destroyed.
func (r *Registry) Unpin(name string) {
	r.mu.Lock()
	if !r.pinned[name] {
		r.unlockAndEmit(nil)
		return
	}
	delete(r.pinned, name)

	ws := r.byName(name)
	switch {
	case ws == nil:
		r.unlockAndEmit(nil)
	case ws.Phase == Dormant:
		r.remove(ws)
		ws.Pinned = false
		r.unlockAndEmit([]Event{{Change: Removed, Workspace: *ws}})
	default:
		ws.Pinned = false
		r.unlockAndEmit([]Event{{Change: Changed, Workspace: *ws}})
	}
}

// IsPinned reports whether name is in the pinned set
func (r *Registry) IsPinned(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pinned[name]
}

// Pinned returns the pinned names in listing order
func (r *Registry) Pinned() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.pinned))
	for name := range r.pinned {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Slice(names, func(i, j int) bool { return nameLess(names[i], names[j]) })
	return names
}

// Find returns the live workspace with the given id
func (r *Registry) Find(id handle.ID) (Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ws := r.byID(id); ws != nil {
		return *ws, true
	}
	return Workspace{}, false
}

// FindByName returns the workspace (live or dormant) with the given name
func (r *Registry) FindByName(name string) (Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ws := r.byName(name); ws != nil {
		return *ws, true
	}
	return Workspace{}, false
}

// Focused returns the focused workspace id, or handle.Nil
func (r *Registry) Focused() handle.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focused
}

// ActiveOn returns the workspace displayed on output
func (r *Registry) ActiveOn(output string) (handle.ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.active[output]
	return id, ok
}

// Outputs lists every output with an active workspace
func (r *Registry) Outputs() []string {
	r.mu.Lock()
	outputs := make([]string, 0, len(r.active))
	for output := range r.active {
		outputs = append(outputs, output)
	}
	r.mu.Unlock()
	sort.Strings(outputs)
	return outputs
}

// Len returns the number of entries, dormant placeholders included
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// List returns every workspace, dormant placeholders included. Names with a
// numeric prefix sort first by that number.
func (r *Registry) List() []Workspace {
	r.mu.Lock()
	out := make([]Workspace, 0, len(r.entries))
	for _, ws := range r.entries {
		out = append(out, *ws)
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return nameLess(out[i].Name, out[j].Name)
		}
		return out[i].ID.Less(out[j].ID)
	})
	return out
}

func nameLess(a, b string) bool {
	na, aok := leadingNumber(a)
	nb, bok := leadingNumber(b)
	switch {
	case aok && bok && na != nb:
		return na < nb
	case aok != bok:
		return aok
	default:
		return a < b
	}
}

func leadingNumber(s string) (int, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	return n, err == nil
}

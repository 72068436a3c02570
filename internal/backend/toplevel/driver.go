// Package toplevel drives any compositor that speaks the wlr foreign
// toplevel management protocol, with ext-workspace for workspaces when the
// compositor offers it.
package toplevel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/logger"
	"github.com/bnema/wlbar/internal/placement"
	"github.com/bnema/wlbar/internal/protocols"
	"github.com/bnema/wlbar/internal/wintree"
	"github.com/bnema/wlbar/internal/workspace"
)

var errUnknownWindow = errors.New("unknown toplevel")

// toplevelProxy is the request side of one foreign toplevel handle
type toplevelProxy interface {
	SetMaximized() error
	UnsetMaximized() error
	SetMinimized() error
	UnsetMinimized() error
	Activate() error
	Close() error
}

type workspaceProxy interface {
	Activate() error
}

type committer interface {
	Commit() error
}

// pendingWindow accumulates double-buffered toplevel properties until done
type pendingWindow struct {
	id        handle.ID
	proxy     toplevelProxy
	title     string
	appID     string
	states    []uint32
	outputs   []uint32
	committed bool
}

type pendingWorkspace struct {
	id        handle.ID
	proxy     workspaceProxy
	name      string
	state     uint32
	group     uint32
	removed   bool
	committed bool
	active    bool
}

type group struct {
	outputs []uint32
}

// Driver is the native Wayland backend. Object ids are never reused as
// handles: every toplevel and workspace gets a fresh serial.
type Driver struct {
	opts backend.Options
	env  *backend.Env
	log  *log.Logger
	conn *session

	mu         sync.Mutex
	serial     uint64
	windows    map[uint32]*pendingWindow
	outputs    map[uint32]string
	groups     map[uint32]*group
	workspaces map[uint32]*pendingWorkspace
	manager    committer

	alive atomic.Bool
}

// New creates a native Wayland driver
func New(opts backend.Options) *Driver {
	return &Driver{
		opts:       opts,
		log:        logger.With("backend", "wayland"),
		windows:    make(map[uint32]*pendingWindow),
		outputs:    make(map[uint32]string),
		groups:     make(map[uint32]*group),
		workspaces: make(map[uint32]*pendingWorkspace),
	}
}

func (d *Driver) Kind() handle.Kind {
	return handle.KindWayland
}

func (d *Driver) nextID() handle.ID {
	d.serial++
	return handle.New(handle.KindWayland, d.serial)
}

// outputNames maps output object ids to names, skipping unnamed outputs
func (d *Driver) outputNames(objs []uint32) []string {
	names := []string{}
	for _, obj := range objs {
		if name, ok := d.outputs[obj]; ok && name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Toplevel events

func (d *Driver) addToplevel(obj uint32, proxy toplevelProxy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows[obj] = &pendingWindow{id: d.nextID(), proxy: proxy}
}

func (d *Driver) pending(obj uint32, fn func(p *pendingWindow)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.windows[obj]; ok {
		fn(p)
		return
	}
	d.log.Debug("Event for unknown toplevel", "object", obj)
}

func (d *Driver) toplevelTitle(obj uint32, title string) {
	d.pending(obj, func(p *pendingWindow) { p.title = title })
}

func (d *Driver) toplevelAppID(obj uint32, appID string) {
	d.pending(obj, func(p *pendingWindow) { p.appID = appID })
}

func (d *Driver) toplevelState(obj uint32, states []uint32) {
	d.pending(obj, func(p *pendingWindow) { p.states = states })
}

func (d *Driver) toplevelOutput(obj, output uint32, enter bool) {
	d.pending(obj, func(p *pendingWindow) {
		p.outputs = slices.DeleteFunc(p.outputs, func(o uint32) bool { return o == output })
		if enter {
			p.outputs = append(p.outputs, output)
		}
	})
}

// toplevelDone applies the buffered state: the first done appends the
// window, later ones update it
func (d *Driver) toplevelDone(obj uint32) {
	d.mu.Lock()
	p, ok := d.windows[obj]
	if !ok {
		d.mu.Unlock()
		return
	}
	w := wintree.NewWindow(p.id)
	w.Title = p.title
	w.AppID = p.appID
	w.Outputs = d.outputNames(p.outputs)
	activated := false
	for _, s := range p.states {
		switch s {
		case protocols.ToplevelStateMaximized:
			w.State |= wintree.Maximized
		case protocols.ToplevelStateMinimized:
			w.State |= wintree.Minimized
		case protocols.ToplevelStateFullscreen:
			w.State |= wintree.Fullscreen
		case protocols.ToplevelStateActivated:
			activated = true
		}
	}
	first := !p.committed
	p.committed = true
	d.mu.Unlock()

	tree := d.env.Tree
	if first {
		tree.Append(w)
	} else {
		tree.Update(w.ID, func(cur *wintree.Window) {
			cur.Title = w.Title
			cur.AppID = w.AppID
			cur.Outputs = w.Outputs
			cur.State = w.State
		})
	}

	switch {
	case activated:
		tree.SetFocus(w.ID)
	case tree.IsFocused(w.ID):
		tree.SetFocus(handle.Nil)
	}
}

func (d *Driver) toplevelClosed(obj uint32) {
	d.mu.Lock()
	p, ok := d.windows[obj]
	delete(d.windows, obj)
	d.mu.Unlock()
	if ok {
		d.env.Tree.Delete(p.id)
	}
}

// Outputs

func (d *Driver) outputName(obj uint32, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs[obj] = name
}

// outputGone forgets a removed wl_output and whatever was shown on it
func (d *Driver) outputGone(obj uint32) {
	d.mu.Lock()
	name, ok := d.outputs[obj]
	delete(d.outputs, obj)
	d.mu.Unlock()
	if ok && name != "" {
		d.env.Workspaces.RemoveOutput(name)
	}
}

// Workspace events

func (d *Driver) addGroup(obj uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[obj] = &group{}
}

func (d *Driver) groupOutput(obj, output uint32, enter bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.groups[obj]
	if !ok {
		return
	}
	g.outputs = slices.DeleteFunc(g.outputs, func(o uint32) bool { return o == output })
	if enter {
		g.outputs = append(g.outputs, output)
	}
}

func (d *Driver) groupWorkspace(obj, ws uint32, enter bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.workspaces[ws]
	if !ok {
		return
	}
	switch {
	case enter:
		p.group = obj
	case p.group == obj:
		p.group = 0
	}
}

func (d *Driver) groupRemoved(obj uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.groups, obj)
	for _, p := range d.workspaces {
		if p.group == obj {
			p.group = 0
		}
	}
}

func (d *Driver) addWorkspace(obj uint32, proxy workspaceProxy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.workspaces[obj] = &pendingWorkspace{id: d.nextID(), proxy: proxy}
}

func (d *Driver) workspaceName(obj uint32, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.workspaces[obj]; ok {
		p.name = name
	}
}

func (d *Driver) workspaceState(obj uint32, state uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.workspaces[obj]; ok {
		p.state = state
	}
}

func (d *Driver) workspaceRemoved(obj uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.workspaces[obj]; ok {
		p.removed = true
	}
}

type workspaceUpdate struct {
	id        handle.ID
	name      string
	state     workspace.State
	output    string
	active    bool
	activated bool
	removed   bool
}

// workspacesDone applies the batch the manager's done event closes.
// The workspace activated last in the batch takes focus.
func (d *Driver) workspacesDone() {
	d.mu.Lock()
	objs := make([]uint32, 0, len(d.workspaces))
	for obj := range d.workspaces {
		objs = append(objs, obj)
	}
	slices.Sort(objs)

	updates := make([]workspaceUpdate, 0, len(objs))
	for _, obj := range objs {
		p := d.workspaces[obj]
		u := workspaceUpdate{id: p.id, name: p.name, removed: p.removed}
		if u.name == "" {
			u.name = strconv.FormatUint(p.id.Value, 10)
		}
		if p.removed {
			delete(d.workspaces, obj)
			if p.committed {
				updates = append(updates, u)
			}
			continue
		}
		if p.state&protocols.WorkspaceStateUrgent != 0 {
			u.state |= workspace.Urgent
		}
		if p.state&protocols.WorkspaceStateHidden != 0 {
			u.state |= workspace.Hidden
		}
		if g, ok := d.groups[p.group]; ok {
			if names := d.outputNames(g.outputs); len(names) > 0 {
				u.output = names[0]
			}
		}
		u.active = p.state&protocols.WorkspaceStateActive != 0
		u.activated = u.active && !p.active
		p.active = u.active
		p.committed = true
		updates = append(updates, u)
	}
	d.mu.Unlock()

	reg := d.env.Workspaces
	focus := handle.Nil
	for _, u := range updates {
		if u.removed {
			reg.Delete(u.id)
			continue
		}
		if _, ok := reg.NewOrUpdate(u.id, u.name, u.state); !ok {
			continue
		}
		if u.output != "" {
			reg.SetOutput(u.id, u.output)
		}
		if u.active && u.output != "" {
			reg.SetActive(u.output, u.id)
		}
		if shown, ok := reg.ActiveOn(u.output); !u.active && ok && shown == u.id {
			reg.SetActive(u.output, handle.Nil)
		}
		if u.activated {
			focus = u.id
		}
	}
	if !focus.IsNil() {
		reg.SetFocus(focus)
	}
}

// Commands

func (d *Driver) proxyFor(id handle.ID) (pendingWindow, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.windows {
		if p.id == id {
			return *p, nil
		}
	}
	return pendingWindow{}, fmt.Errorf("%w: %s", errUnknownWindow, id)
}

func (d *Driver) request(id handle.ID, fn func(toplevelProxy) error) error {
	p, err := d.proxyFor(id)
	if err != nil {
		return err
	}
	return fn(p.proxy)
}

func (d *Driver) Minimize(_ context.Context, id handle.ID) error {
	return d.request(id, toplevelProxy.SetMinimized)
}

func (d *Driver) Unminimize(_ context.Context, id handle.ID) error {
	return d.request(id, toplevelProxy.UnsetMinimized)
}

func (d *Driver) Maximize(_ context.Context, id handle.ID) error {
	return d.request(id, toplevelProxy.SetMaximized)
}

func (d *Driver) Unmaximize(_ context.Context, id handle.ID) error {
	return d.request(id, toplevelProxy.UnsetMaximized)
}

func (d *Driver) CloseWindow(_ context.Context, id handle.ID) error {
	return d.request(id, toplevelProxy.Close)
}

// Focus restores a minimized toplevel before activating it
func (d *Driver) Focus(_ context.Context, id handle.ID) error {
	return d.request(id, func(p toplevelProxy) error {
		if w, ok := d.env.Tree.Find(id); ok && w.State.Has(wintree.Minimized) {
			if err := p.UnsetMinimized(); err != nil {
				return err
			}
		}
		return p.Activate()
	})
}

// MoveToWorkspace has no protocol request: foreign toplevels carry no
// workspace membership
func (d *Driver) MoveToWorkspace(_ context.Context, _, _ handle.ID) error {
	return backend.ErrUnsupported
}

func (d *Driver) SetWorkspace(_ context.Context, ws workspace.Workspace) error {
	d.mu.Lock()
	manager := d.manager
	var proxy workspaceProxy
	for _, p := range d.workspaces {
		if p.id == ws.ID && !p.removed {
			proxy = p.proxy
		}
	}
	d.mu.Unlock()

	if manager == nil {
		return fmt.Errorf("%w: no workspace manager", backend.ErrUnsupported)
	}
	if proxy == nil {
		return fmt.Errorf("%w: workspace %q is not materialized", backend.ErrUnsupported, ws.Name)
	}
	if err := proxy.Activate(); err != nil {
		return err
	}
	return manager.Commit()
}

// Geometry is unavailable: the protocol exposes no window rectangles
func (d *Driver) Geometry(_ context.Context, _, _ handle.ID) (placement.Geometry, error) {
	return placement.Geometry{}, backend.ErrUnsupported
}

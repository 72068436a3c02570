// Package hyprland drives Hyprland through its request socket and its
// line-oriented event socket.
package hyprland

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/logger"
	"github.com/bnema/wlbar/internal/wintree"
	"github.com/bnema/wlbar/internal/wire"
)

// requester sends one command on the request socket and returns the reply
type requester interface {
	Request(ctx context.Context, command string) ([]byte, error)
}

type socketRequester struct {
	dialer *wire.Dialer
}

func (s socketRequester) Request(ctx context.Context, command string) ([]byte, error) {
	return s.dialer.Raw(ctx, []byte(command))
}

// Driver is the Hyprland backend
type Driver struct {
	opts   backend.Options
	events *wire.Dialer
	req    requester
	env    *backend.Env
	log    *log.Logger

	mu             sync.Mutex
	focusedMonitor string

	stream *wire.Stream[string]
	alive  atomic.Bool
}

// New creates a Hyprland driver
func New(opts backend.Options) *Driver {
	return &Driver{
		opts: opts,
		log:  logger.With("backend", "hyprland"),
	}
}

// socketDir locates the instance directory, preferring $XDG_RUNTIME_DIR/hypr
// over the legacy /tmp/hypr location
func socketDir() string {
	sig := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if sig == "" {
		return ""
	}
	var candidates []string
	if rt := os.Getenv("XDG_RUNTIME_DIR"); rt != "" {
		candidates = append(candidates, filepath.Join(rt, "hypr", sig))
	}
	candidates = append(candidates, filepath.Join("/tmp", "hypr", sig))

	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, ".socket.sock")); err == nil {
			return dir
		}
	}
	return ""
}

func (d *Driver) Kind() handle.Kind {
	return handle.KindHyprland
}

func (d *Driver) Probe(ctx context.Context) error {
	dir := socketDir()
	if dir == "" {
		return backend.ErrNotPresent
	}

	requests := d.opts.Dialer(filepath.Join(dir, ".socket.sock"))
	if err := requests.Probe(ctx); err != nil {
		return fmt.Errorf("%w: %w", backend.ErrNotPresent, err)
	}
	d.events = d.opts.Dialer(filepath.Join(dir, ".socket2.sock"))
	if d.req == nil {
		d.req = socketRequester{dialer: requests}
	}
	return nil
}

func (d *Driver) Activate(ctx context.Context, env *backend.Env) error {
	if d.req == nil || d.events == nil {
		return fmt.Errorf("hyprland: activate before probe")
	}
	d.env = env
	env.Controls.Bind(handle.KindHyprland, d, d)

	if err := d.sync(ctx); err != nil {
		return err
	}

	conn, err := d.events.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open event socket: %w", err)
	}
	d.stream = wire.NewStream(conn, wire.LineDecoder(d.opts.MaxMessageSize))
	d.alive.Store(true)
	return nil
}

func (d *Driver) Run(ctx context.Context) error {
	if d.stream == nil {
		return fmt.Errorf("hyprland: run before activate")
	}
	defer d.alive.Store(false)

	err := d.stream.Run(ctx, func(line string) {
		d.handleLine(ctx, line)
	})
	if err != nil {
		d.log.Warn("Event stream ended, state is frozen", "err", err)
	}
	return nil
}

func (d *Driver) Alive() bool {
	return d.alive.Load()
}

func (d *Driver) Close() error {
	if d.stream != nil {
		d.stream.Close()
	}
	return nil
}

// query runs a j/ command and decodes its JSON reply
func (d *Driver) query(ctx context.Context, command string, out any) error {
	reply, err := d.req.Request(ctx, "j/"+command)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return fmt.Errorf("malformed %s reply: %w", command, err)
	}
	return nil
}

func (d *Driver) clients(ctx context.Context) ([]client, error) {
	var list []client
	err := d.query(ctx, "clients", &list)
	return list, err
}

func (d *Driver) monitors(ctx context.Context) ([]monitor, error) {
	var list []monitor
	err := d.query(ctx, "monitors", &list)
	return list, err
}

// sync enumerates monitors, workspaces and clients into the registries
func (d *Driver) sync(ctx context.Context) error {
	mons, err := d.monitors(ctx)
	if err != nil {
		return fmt.Errorf("failed to list monitors: %w", err)
	}

	var spaces []workspaceInfo
	if err := d.query(ctx, "workspaces", &spaces); err != nil {
		return fmt.Errorf("failed to list workspaces: %w", err)
	}

	clients, err := d.clients(ctx)
	if err != nil {
		return fmt.Errorf("failed to list clients: %w", err)
	}

	reg := d.env.Workspaces
	for _, ws := range spaces {
		ref := workspaceRef{ID: ws.ID, Name: ws.Name}
		if ref.special() {
			continue
		}
		if _, ok := reg.NewOrUpdate(workspaceID(ws.ID), ws.Name, 0); ok {
			reg.SetOutput(workspaceID(ws.ID), ws.Monitor)
		}
	}

	monitorNames := make(map[int]string, len(mons))
	focusedWS := handle.Nil
	for _, m := range mons {
		monitorNames[m.ID] = m.Name
		if m.ActiveWorkspace.special() {
			continue
		}
		reg.SetActive(m.Name, workspaceID(m.ActiveWorkspace.ID))
		if m.Focused {
			d.setFocusedMonitor(m.Name)
			focusedWS = workspaceID(m.ActiveWorkspace.ID)
		}
	}
	if !focusedWS.IsNil() {
		reg.SetFocus(focusedWS)
	}

	for _, c := range clients {
		if !c.Mapped {
			continue
		}
		id, ok := windowFromAddress(c.Address)
		if !ok {
			continue
		}
		w := wintree.NewWindow(id)
		applyClient(w, c, monitorNames)
		d.env.Tree.Append(w)
	}

	var active client
	if err := d.query(ctx, "activewindow", &active); err == nil {
		if id, ok := windowFromAddress(active.Address); ok {
			d.env.Tree.SetFocus(id)
		}
	}
	return nil
}

// applyClient copies a j/clients entry onto a window record
func applyClient(w *wintree.Window, c client, monitorNames map[int]string) {
	w.Title = c.Title
	w.AppID = c.Class
	if c.PID > 0 {
		w.PID = c.PID
	}
	w.Floating = c.Floating

	w.State &^= wintree.Fullscreen | wintree.Maximized
	switch c.Fullscreen {
	case 1:
		w.State |= wintree.Maximized
	case 2, 3:
		w.State |= wintree.Fullscreen | wintree.Maximized
	}
	applyWorkspace(w, c.Workspace)

	w.Outputs = w.Outputs[:0]
	if name, ok := monitorNames[c.Monitor]; ok && !w.State.Has(wintree.Minimized) {
		w.Outputs = append(w.Outputs, name)
	}
}

// applyWorkspace translates membership of the minimized special workspace
// into the Minimized bit
func applyWorkspace(w *wintree.Window, ref workspaceRef) {
	switch {
	case ref.Name == minimizedWorkspace:
		w.State |= wintree.Minimized
		w.Workspace = handle.Nil
	case ref.special():
		w.State &^= wintree.Minimized
		w.Workspace = handle.Nil
	default:
		w.State &^= wintree.Minimized
		w.Workspace = workspaceID(ref.ID)
	}
}

func (d *Driver) setFocusedMonitor(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focusedMonitor = name
}

func (d *Driver) currentMonitor() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.focusedMonitor
}

// refreshClient re-reads one client so fields missing from events (pid,
// floating, monitor) are filled in
func (d *Driver) refreshClient(ctx context.Context, id handle.ID) (wintree.Window, bool) {
	clients, err := d.clients(ctx)
	if err != nil {
		d.log.Debug("Failed to list clients", "err", err)
		return wintree.Window{}, false
	}
	mons, err := d.monitors(ctx)
	if err != nil {
		d.log.Debug("Failed to list monitors", "err", err)
	}
	names := make(map[int]string, len(mons))
	for _, m := range mons {
		names[m.ID] = m.Name
	}

	for _, c := range clients {
		cid, ok := windowFromAddress(c.Address)
		if !ok || cid != id {
			continue
		}
		d.env.Tree.Update(id, func(w *wintree.Window) {
			applyClient(w, c, names)
		})
		return d.env.Tree.Find(id)
	}
	return wintree.Window{}, false
}

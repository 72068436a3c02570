// Package wayfire drives Wayfire through its IPC plugin: length-prefixed
// JSON requests of the form {"method", "data"} on $WAYFIRE_SOCKET.
package wayfire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/logger"
	"github.com/bnema/wlbar/internal/wintree"
	"github.com/bnema/wlbar/internal/wire"
)

var watchedEvents = []string{
	"view-mapped",
	"view-unmapped",
	"view-title-changed",
	"view-app-id-changed",
	"view-focused",
	"view-minimized",
	"view-fullscreen",
	"view-tiled",
	"view-geometry-changed",
	"view-workspace-changed",
	"view-set-output",
	"wset-workspace-changed",
	"output-added",
	"output-removed",
}

// requester performs one length-prefixed request/response cycle
type requester interface {
	Request(ctx context.Context, payload []byte) ([]byte, error)
}

type socketRequester struct {
	dialer *wire.Dialer
}

func (s socketRequester) Request(ctx context.Context, payload []byte) ([]byte, error) {
	return s.dialer.Prefixed(ctx, payload)
}

// Driver is the Wayfire backend
type Driver struct {
	opts   backend.Options
	dialer *wire.Dialer
	req    requester
	env    *backend.Env
	log    *log.Logger

	mu      sync.Mutex
	outputs map[int]output
	grid    grid

	stream *wire.Stream[[]byte]
	alive  atomic.Bool
}

// New creates a Wayfire driver
func New(opts backend.Options) *Driver {
	return &Driver{
		opts:    opts,
		log:     logger.With("backend", "wayfire"),
		outputs: make(map[int]output),
		grid:    grid{GridWidth: 1, GridHeight: 1},
	}
}

func (d *Driver) Kind() handle.Kind {
	return handle.KindWayfire
}

func (d *Driver) Probe(ctx context.Context) error {
	path := os.Getenv("WAYFIRE_SOCKET")
	if path == "" {
		return backend.ErrNotPresent
	}
	dialer := d.opts.Dialer(path)
	if err := dialer.Probe(ctx); err != nil {
		return fmt.Errorf("%w: %w", backend.ErrNotPresent, err)
	}
	d.dialer = dialer
	if d.req == nil {
		d.req = socketRequester{dialer: dialer}
	}
	return nil
}

func (d *Driver) Activate(ctx context.Context, env *backend.Env) error {
	if d.req == nil || d.dialer == nil {
		return fmt.Errorf("wayfire: activate before probe")
	}
	d.env = env
	env.Controls.Bind(handle.KindWayfire, d, d)

	if err := d.sync(ctx); err != nil {
		return err
	}

	conn, err := d.watch(ctx)
	if err != nil {
		return err
	}
	d.stream = wire.NewStream(conn, wire.PrefixedDecoder(d.opts.MaxMessageSize))
	d.alive.Store(true)
	return nil
}

// watch opens the event connection and registers for the handled events
func (d *Driver) watch(ctx context.Context) (net.Conn, error) {
	conn, err := d.dialer.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open event socket: %w", err)
	}

	payload, err := json.Marshal(request{
		Method: methodWatch,
		Data:   map[string]any{"events": watchedEvents},
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := wire.WritePrefixed(conn, payload); err != nil {
		conn.Close()
		return nil, err
	}

	reply, err := wire.ReadPrefixed(conn, d.opts.MaxMessageSize)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read watch reply: %w", err)
	}
	var st status
	if err := json.Unmarshal(reply, &st); err != nil || st.Result != watchReplyOK {
		conn.Close()
		return nil, fmt.Errorf("watch rejected: %s", reply)
	}
	return conn, nil
}

func (d *Driver) Run(ctx context.Context) error {
	if d.stream == nil {
		return fmt.Errorf("wayfire: run before activate")
	}
	defer d.alive.Store(false)

	err := d.stream.Run(ctx, func(msg []byte) {
		d.handleMessage(ctx, msg)
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

// call sends one method and decodes the reply into out when out is not nil.
// Object replies carrying an "error" member are failures.
func (d *Driver) call(ctx context.Context, method string, data any, out any) error {
	if data == nil {
		data = struct{}{}
	}
	payload, err := json.Marshal(request{Method: method, Data: data})
	if err != nil {
		return err
	}

	reply, err := d.req.Request(ctx, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	reply = bytes.TrimSpace(reply)

	if len(reply) > 0 && reply[0] == '{' {
		var st status
		if err := json.Unmarshal(reply, &st); err == nil && st.Error != "" {
			return fmt.Errorf("%s: %s", method, st.Error)
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return fmt.Errorf("malformed %s reply: %w", method, err)
	}
	return nil
}

func (d *Driver) listViews(ctx context.Context) ([]view, error) {
	var views []view
	err := d.call(ctx, methodListViews, nil, &views)
	return views, err
}

func (d *Driver) listOutputs(ctx context.Context) ([]output, error) {
	var outs []output
	err := d.call(ctx, methodListOutputs, nil, &outs)
	return outs, err
}

// sync enumerates outputs, the workspace grid and every mapped view
func (d *Driver) sync(ctx context.Context) error {
	outs, err := d.listOutputs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list outputs: %w", err)
	}
	views, err := d.listViews(ctx)
	if err != nil {
		return fmt.Errorf("failed to list views: %w", err)
	}

	d.setOutputs(outs)
	seen := d.syncGrid()
	d.env.Workspaces.Reconcile(seen)

	focusedOutput := -1
	if len(outs) > 0 {
		focusedOutput = outs[0].ID
	}
	focused := handle.Nil
	for _, v := range views {
		if !v.toplevel() || !v.Mapped {
			continue
		}
		w := wintree.NewWindow(windowID(v.ID))
		d.applyView(w, v)
		d.env.Tree.Append(w)
		if v.Activated {
			focused = w.ID
			focusedOutput = v.OutputID
		}
	}
	if !focused.IsNil() {
		d.env.Tree.SetFocus(focused)
	}
	if o, ok := d.output(focusedOutput); ok {
		d.env.Workspaces.SetFocus(d.current(o))
	}
	return nil
}

// syncGrid materializes one workspace per grid cell and marks the cell each
// output shows
func (d *Driver) syncGrid() []handle.ID {
	d.mu.Lock()
	g := d.grid
	outs := make([]output, 0, len(d.outputs))
	for _, o := range d.outputs {
		outs = append(outs, o)
	}
	d.mu.Unlock()

	reg := d.env.Workspaces
	seen := make([]handle.ID, 0, g.GridWidth*g.GridHeight)
	for y := 0; y < g.GridHeight; y++ {
		for x := 0; x < g.GridWidth; x++ {
			id := workspaceID(x, y, g.GridWidth)
			reg.NewOrUpdate(id, workspaceName(id), 0)
			seen = append(seen, id)
		}
	}
	for _, o := range outs {
		reg.SetActive(o.Name, d.current(o))
	}
	return seen
}

func (d *Driver) setOutputs(outs []output) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs = make(map[int]output, len(outs))
	for _, o := range outs {
		d.outputs[o.ID] = o
		if o.Workspace.GridWidth > 0 && o.Workspace.GridHeight > 0 {
			d.grid = grid{GridWidth: o.Workspace.GridWidth, GridHeight: o.Workspace.GridHeight}
		}
	}
}

func (d *Driver) output(id int) (output, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.outputs[id]
	return o, ok
}

func (d *Driver) outputByName(name string) (output, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, o := range d.outputs {
		if o.Name == name {
			return o, true
		}
	}
	return output{}, false
}

func (d *Driver) gridWidth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.grid.GridWidth
}

// current is the workspace shown on o
func (d *Driver) current(o output) handle.ID {
	return workspaceID(o.Workspace.X, o.Workspace.Y, d.gridWidth())
}

// membership finds the grid cell under the center of v. View geometry is
// relative to the workspace its output currently shows.
func (d *Driver) membership(v view) handle.ID {
	o, ok := d.output(v.OutputID)
	if !ok || o.Geometry.Width <= 0 || o.Geometry.Height <= 0 {
		return handle.Nil
	}
	d.mu.Lock()
	g := d.grid
	d.mu.Unlock()

	cx := v.Geometry.X + v.Geometry.Width/2
	cy := v.Geometry.Y + v.Geometry.Height/2
	x := o.Workspace.X + floorDiv(cx, o.Geometry.Width)
	y := o.Workspace.Y + floorDiv(cy, o.Geometry.Height)
	if x < 0 || y < 0 || x >= g.GridWidth || y >= g.GridHeight {
		return handle.Nil
	}
	return workspaceID(x, y, g.GridWidth)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// applyView copies a view report onto a window record
func (d *Driver) applyView(w *wintree.Window, v view) {
	w.Title = v.Title
	w.AppID = v.AppID
	if v.PID > 0 {
		w.PID = v.PID
	}
	w.Floating = v.floating()

	w.State &^= wintree.Minimized | wintree.Maximized | wintree.Fullscreen
	if v.Minimized {
		w.State |= wintree.Minimized
	}
	if v.Fullscreen {
		w.State |= wintree.Fullscreen | wintree.Maximized
	}
	if v.TiledEdges == allEdges {
		w.State |= wintree.Maximized
	}

	w.Workspace = d.membership(v)
	w.Outputs = w.Outputs[:0]
	if v.OutputName != "" {
		w.Outputs = append(w.Outputs, v.OutputName)
	}
}

// findView re-reads one view
func (d *Driver) findView(ctx context.Context, id handle.ID) (view, error) {
	views, err := d.listViews(ctx)
	if err != nil {
		return view{}, err
	}
	for _, v := range views {
		if v.ID == viewID(id) {
			return v, nil
		}
	}
	return view{}, errViewGone
}

var errViewGone = errors.New("view not listed")

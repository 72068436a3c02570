package sway

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/placement"
	"github.com/bnema/wlbar/internal/wintree"
	"github.com/bnema/wlbar/internal/wire"
	"github.com/bnema/wlbar/internal/workspace"
)

const workspacesJSON = `[
	{"id": 10, "num": 1, "name": "1", "visible": true, "focused": true, "urgent": false, "output": "DP-1"},
	{"id": 11, "num": 2, "name": "2", "visible": false, "focused": false, "urgent": true, "output": "DP-1"}
]`

const baseTree = `{
	"id": 1, "type": "root", "name": "root",
	"nodes": [
		{"id": 2, "type": "output", "name": "__i3", "nodes": [
			{"id": 3, "type": "workspace", "name": "__i3_scratch", "floating_nodes": [
				{"id": 50, "type": "floating_con", "name": "mpv", "app_id": "mpv", "pid": 300}
			]}
		]},
		{"id": 4, "type": "output", "name": "DP-1", "rect": {"x": 0, "y": 0, "width": 1920, "height": 1080}, "nodes": [
			{"id": 10, "type": "workspace", "name": "1", "output": "DP-1",
				"nodes": [
					{"id": 41, "type": "con", "name": "term", "app_id": "foot", "pid": 100, "focused": true,
						"rect": {"x": 0, "y": 0, "width": 1920, "height": 1080}}
				],
				"floating_nodes": [
					{"id": 43, "type": "floating_con", "name": "Volume", "app_id": "pavucontrol", "pid": 200,
						"rect": {"x": 0, "y": 0, "width": 960, "height": 1080}}
				]
			},
			{"id": 11, "type": "workspace", "name": "2", "output": "DP-1", "nodes": [
				{"id": 44, "type": "con", "name": "xterm", "window": 6291459, "app_id": null,
					"window_properties": {"class": "XTerm", "instance": "xterm", "title": "xterm"}, "pid": 400}
			]}
		]}
	]
}`

type fakeSway struct {
	mu         sync.Mutex
	tree       string
	workspaces string
	commands   []string
	fail       error
}

func (f *fakeSway) Request(_ context.Context, msgType uint32, payload []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return nil, f.fail
	}
	switch msgType {
	case msgGetTree:
		return []byte(f.tree), nil
	case msgGetWorkspaces:
		return []byte(f.workspaces), nil
	case msgRunCommand:
		f.commands = append(f.commands, string(payload))
		return []byte(`[{"success": true}]`), nil
	}
	return nil, errors.New("unexpected request")
}

func (f *fakeSway) setTree(tree string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tree = tree
}

func newTestDriver(t *testing.T, tree string) (*Driver, *fakeSway) {
	t.Helper()
	fake := &fakeSway{tree: tree, workspaces: workspacesJSON}
	d := New(backend.DefaultOptions())
	d.req = fake
	d.env = backend.NewEnv(nil, placement.DefaultConfig())

	ctx := context.Background()
	require.NoError(t, d.syncWorkspaces(ctx))
	require.NoError(t, d.syncWindows(ctx))
	return d, fake
}

func sendWindow(d *Driver, payload string) {
	d.handleFrame(context.Background(), wire.Frame{Type: eventWindow, Payload: []byte(payload)})
}

func sendWorkspace(d *Driver, payload string) {
	d.handleFrame(context.Background(), wire.Frame{Type: eventWorkspace, Payload: []byte(payload)})
}

func TestInitialEnumeration(t *testing.T) {
	d, _ := newTestDriver(t, baseTree)
	tree := d.env.Tree

	assert.Equal(t, 4, tree.Len())
	assert.Equal(t, windowID(41), tree.Focused())

	term, ok := tree.Find(windowID(41))
	require.True(t, ok)
	assert.Equal(t, "foot", term.AppID)
	assert.Equal(t, 100, term.PID)
	assert.Equal(t, workspaceID(10), term.Workspace)
	assert.Equal(t, []string{"DP-1"}, term.Outputs)
	assert.False(t, term.Floating)

	mpv, _ := tree.Find(windowID(50))
	assert.True(t, mpv.State.Has(wintree.Minimized))
	assert.Equal(t, handle.Nil, mpv.Workspace)
	assert.Empty(t, mpv.Outputs)

	xterm, _ := tree.Find(windowID(44))
	assert.Equal(t, "XTerm", xterm.AppID)

	vol, _ := tree.Find(windowID(43))
	assert.True(t, vol.Floating)

	reg := d.env.Workspaces
	assert.Equal(t, 2, reg.Len())
	_, found := reg.FindByName(scratchpad)
	assert.False(t, found)
	assert.Equal(t, workspaceID(10), reg.Focused())
	active, _ := reg.ActiveOn("DP-1")
	assert.Equal(t, workspaceID(10), active)
	two, _ := reg.Find(workspaceID(11))
	assert.True(t, two.State.Has(workspace.Urgent))
}

func TestNewWindowThenTitle(t *testing.T) {
	d, fake := newTestDriver(t, baseTree)
	fake.setTree(`{"id": 1, "type": "root", "nodes": [
		{"id": 4, "type": "output", "name": "DP-1", "nodes": [
			{"id": 10, "type": "workspace", "name": "1", "nodes": [
				{"id": 42, "type": "con", "name": null, "app_id": "firefox", "pid": 500}
			]}
		]}
	]}`)

	sendWindow(d, `{"change": "new", "container": {"id": 42, "type": "con", "name": null, "app_id": "firefox", "pid": 500}}`)

	w, ok := d.env.Tree.Find(windowID(42))
	require.True(t, ok)
	assert.Equal(t, "", w.Title)
	assert.Equal(t, "firefox", w.AppID)
	assert.Equal(t, workspaceID(10), w.Workspace)

	var events []wintree.Event
	cancel := d.env.Tree.Subscribe(func(ev wintree.Event) { events = append(events, ev) })
	defer cancel()

	sendWindow(d, `{"change": "title", "container": {"id": 42, "type": "con", "name": "Mozilla Firefox", "app_id": "firefox"}}`)

	require.Len(t, events, 1)
	assert.Equal(t, wintree.Changed, events[0].Change)
	assert.Equal(t, "Mozilla Firefox", events[0].Window.Title)
}

func TestWindowLifecycleEvents(t *testing.T) {
	d, _ := newTestDriver(t, baseTree)
	tree := d.env.Tree

	sendWindow(d, `{"change": "focus", "container": {"id": 44, "type": "con"}}`)
	assert.Equal(t, windowID(44), tree.Focused())
	prev, _ := tree.Find(windowID(41))
	assert.False(t, prev.Focused())

	sendWindow(d, `{"change": "fullscreen_mode", "container": {"id": 44, "type": "con", "fullscreen_mode": 1}}`)
	w, _ := tree.Find(windowID(44))
	assert.True(t, w.State.Has(wintree.Fullscreen|wintree.Maximized))

	sendWindow(d, `{"change": "floating", "container": {"id": 44, "type": "floating_con"}}`)
	w, _ = tree.Find(windowID(44))
	assert.True(t, w.Floating)

	sendWindow(d, `{"change": "close", "container": {"id": 44, "type": "con"}}`)
	_, ok := tree.Find(windowID(44))
	assert.False(t, ok)
	assert.Equal(t, handle.Nil, tree.Focused())

	// events for unknown windows are dropped
	sendWindow(d, `{"change": "title", "container": {"id": 999, "type": "con", "name": "ghost"}}`)
	assert.Equal(t, 3, tree.Len())
}

func TestMinimizeIsScratchpadMembership(t *testing.T) {
	d, fake := newTestDriver(t, baseTree)
	tree := d.env.Tree

	fake.setTree(`{"id": 1, "type": "root", "nodes": [
		{"id": 2, "type": "output", "name": "__i3", "nodes": [
			{"id": 3, "type": "workspace", "name": "__i3_scratch", "floating_nodes": [
				{"id": 41, "type": "floating_con", "name": "term", "app_id": "foot"}
			]}
		]}
	]}`)
	sendWindow(d, `{"change": "move", "container": {"id": 41, "type": "floating_con"}}`)

	w, _ := tree.Find(windowID(41))
	assert.True(t, w.State.Has(wintree.Minimized))
	assert.Equal(t, handle.Nil, w.Workspace)

	// an unrelated workspace event does not disturb the derived state
	sendWorkspace(d, `{"change": "focus", "current": {"id": 11, "type": "workspace", "name": "2", "output": "DP-1"}}`)
	w, _ = tree.Find(windowID(41))
	assert.True(t, w.State.Has(wintree.Minimized))

	fake.setTree(baseTree)
	sendWindow(d, `{"change": "move", "container": {"id": 41, "type": "con"}}`)
	w, _ = tree.Find(windowID(41))
	assert.False(t, w.State.Has(wintree.Minimized))
	assert.Equal(t, workspaceID(10), w.Workspace)
}

func TestWorkspaceEvents(t *testing.T) {
	d, _ := newTestDriver(t, baseTree)
	reg := d.env.Workspaces

	sendWorkspace(d, `{"change": "init", "current": {"id": 12, "type": "workspace", "name": "3", "output": "HDMI-A-1"}}`)
	ws, ok := reg.Find(workspaceID(12))
	require.True(t, ok)
	assert.Equal(t, "HDMI-A-1", ws.Output)

	sendWorkspace(d, `{"change": "focus", "current": {"id": 12, "type": "workspace", "name": "3", "output": "HDMI-A-1"},
		"old": {"id": 10, "type": "workspace", "name": "1"}}`)
	assert.Equal(t, workspaceID(12), reg.Focused())
	one, _ := reg.Find(workspaceID(10))
	assert.False(t, one.State.Has(workspace.Focused))

	sendWorkspace(d, `{"change": "rename", "current": {"id": 12, "type": "workspace", "name": "mail"}}`)
	ws, _ = reg.Find(workspaceID(12))
	assert.Equal(t, "mail", ws.Name)

	sendWorkspace(d, `{"change": "urgent", "current": {"id": 12, "type": "workspace", "name": "mail", "urgent": true}}`)
	ws, _ = reg.Find(workspaceID(12))
	assert.True(t, ws.State.Has(workspace.Urgent))

	sendWorkspace(d, `{"change": "empty", "current": {"id": 12, "type": "workspace", "name": "mail"}}`)
	_, ok = reg.Find(workspaceID(12))
	assert.False(t, ok)

	// the scratchpad never enters the registry
	sendWorkspace(d, `{"change": "init", "current": {"id": 3, "type": "workspace", "name": "__i3_scratch"}}`)
	assert.Equal(t, 2, reg.Len())
}

func TestMalformedEventsAreDropped(t *testing.T) {
	d, _ := newTestDriver(t, baseTree)
	assert.NotPanics(t, func() {
		sendWindow(d, `{"change": "new", "container": `)
		sendWorkspace(d, `not json`)
		d.handleFrame(context.Background(), wire.Frame{Type: 0x80000007, Payload: []byte(`{}`)})
	})
	assert.Equal(t, 4, d.env.Tree.Len())
}

func TestCommands(t *testing.T) {
	d, fake := newTestDriver(t, baseTree)
	ctx := context.Background()

	require.NoError(t, d.Minimize(ctx, windowID(41)))
	require.NoError(t, d.Unminimize(ctx, windowID(50)))
	require.NoError(t, d.Maximize(ctx, windowID(41)))
	require.NoError(t, d.Unmaximize(ctx, windowID(41)))
	require.NoError(t, d.CloseWindow(ctx, windowID(41)))
	require.NoError(t, d.Focus(ctx, windowID(44)))
	require.NoError(t, d.MoveToWorkspace(ctx, windowID(41), workspaceID(11)))
	require.NoError(t, d.SetWorkspace(ctx, workspace.Workspace{ID: handle.Dormant, Name: `my "ws"`}))
	require.NoError(t, d.MoveWindow(ctx, windowID(43), 960, 0))

	assert.Equal(t, []string{
		`[con_id=41] move window to scratchpad`,
		`[con_id=50] move window to workspace "1"; [con_id=50] focus`,
		`[con_id=41] fullscreen enable`,
		`[con_id=41] fullscreen disable`,
		`[con_id=41] kill`,
		`[con_id=44] focus`,
		`[con_id=41] move window to workspace "2"`,
		`workspace "my \"ws\""`,
		`[con_id=43] move absolute position 960 0`,
	}, fake.commands)

	// focusing a minimized window goes through the scratchpad path
	fake.commands = nil
	require.NoError(t, d.Focus(ctx, windowID(50)))
	assert.Equal(t, []string{`[con_id=50] move window to workspace "1"; [con_id=50] focus`}, fake.commands)

	assert.Error(t, d.MoveToWorkspace(ctx, windowID(41), workspaceID(77)))
}

func TestCommandFailureIsReported(t *testing.T) {
	d, fake := newTestDriver(t, baseTree)
	fake.fail = errors.New("connection refused")
	assert.Error(t, d.Minimize(context.Background(), windowID(41)))
}

func TestGeometryCollectsFloatingSiblings(t *testing.T) {
	d, _ := newTestDriver(t, baseTree)

	geom, err := d.Geometry(context.Background(), workspaceID(10), windowID(43))
	require.NoError(t, err)
	assert.Equal(t, placement.Rect{Width: 1920, Height: 1080}, geom.Output)
	assert.Equal(t, 1, geom.Count())
	assert.Equal(t, 0, geom.Focused)

	_, err = d.Geometry(context.Background(), handle.Nil, windowID(50))
	assert.ErrorIs(t, err, backend.ErrUnsupported)
}

func TestNewFloatingWindowIsPlaced(t *testing.T) {
	d, fake := newTestDriver(t, baseTree)
	cfg := placement.DefaultConfig()
	cfg.Enabled = true
	d.env.Placer = placement.NewEngine(cfg, d.env.Tree)

	fake.setTree(`{"id": 1, "type": "root", "nodes": [
		{"id": 4, "type": "output", "name": "DP-1", "rect": {"x": 0, "y": 0, "width": 1920, "height": 1080}, "nodes": [
			{"id": 10, "type": "workspace", "name": "1", "floating_nodes": [
				{"id": 43, "type": "floating_con", "app_id": "pavucontrol", "rect": {"x": 0, "y": 0, "width": 960, "height": 1080}},
				{"id": 45, "type": "floating_con", "app_id": "calc", "rect": {"x": 560, "y": 240, "width": 800, "height": 600}}
			]}
		]}
	]}`)
	sendWindow(d, `{"change": "new", "container": {"id": 45, "type": "floating_con", "app_id": "calc", "pid": 600}}`)

	assert.Equal(t, []string{`[con_id=45] move absolute position 960 0`}, fake.commands)
}

func TestProbeWithoutSocket(t *testing.T) {
	t.Setenv("SWAYSOCK", "")
	t.Setenv("I3SOCK", "")
	assert.ErrorIs(t, New(backend.DefaultOptions()).Probe(context.Background()), backend.ErrNotPresent)

	t.Setenv("SWAYSOCK", filepath.Join(t.TempDir(), "missing.sock"))
	assert.ErrorIs(t, New(backend.DefaultOptions()).Probe(context.Background()), backend.ErrNotPresent)
}

// fakeServer speaks enough i3-ipc to activate a driver and push events
func fakeServer(t *testing.T, events <-chan wire.Frame) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sway.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				for {
					req, err := wire.DecodeFrame(conn, 0)
					if err != nil {
						return
					}
					switch req.Type {
					case msgGetTree:
						_ = wire.EncodeFrame(conn, wire.Frame{Type: req.Type, Payload: []byte(baseTree)})
					case msgGetWorkspaces:
						_ = wire.EncodeFrame(conn, wire.Frame{Type: req.Type, Payload: []byte(workspacesJSON)})
					case msgSubscribe:
						_ = wire.EncodeFrame(conn, wire.Frame{Type: req.Type, Payload: []byte(`{"success": true}`)})
						for ev := range events {
							_ = wire.EncodeFrame(conn, ev)
						}
						return
					default:
						_ = wire.EncodeFrame(conn, wire.Frame{Type: req.Type, Payload: []byte(`[{"success": true}]`)})
					}
				}
			}(conn)
		}
	}()
	return path
}

func TestActivateAndRunOverSocket(t *testing.T) {
	events := make(chan wire.Frame, 4)
	t.Setenv("SWAYSOCK", fakeServer(t, events))
	t.Setenv("I3SOCK", "")

	env := backend.NewEnv(nil, placement.DefaultConfig())
	d := New(backend.DefaultOptions())
	ctx := context.Background()

	require.NoError(t, d.Probe(ctx))
	require.NoError(t, d.Activate(ctx, env))
	assert.True(t, d.Alive())
	assert.Equal(t, handle.KindSway, env.Controls.Kind())
	assert.Equal(t, 4, env.Tree.Len())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	events <- wire.Frame{Type: eventWindow, Payload: []byte(`{"change": "close", "container": {"id": 44, "type": "con"}}`)}
	events <- wire.Frame{Type: eventShutdown, Payload: []byte(`{"change": "exit"}`)}
	close(events)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop after shutdown")
	}
	assert.False(t, d.Alive())
	assert.Equal(t, 3, env.Tree.Len())
}

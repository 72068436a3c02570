package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/ipc"
	"github.com/bnema/wlbar/internal/placement"
	"github.com/bnema/wlbar/internal/wintree"
	"github.com/bnema/wlbar/internal/workspace"
)

type fakeDriver struct {
	mu    sync.Mutex
	calls []string
}

func (d *fakeDriver) Kind() handle.Kind                            { return handle.KindSway }
func (d *fakeDriver) Probe(context.Context) error                  { return nil }
func (d *fakeDriver) Activate(context.Context, *backend.Env) error { return nil }
func (d *fakeDriver) Run(context.Context) error                    { return nil }
func (d *fakeDriver) Alive() bool                                  { return true }
func (d *fakeDriver) Close() error                                 { return nil }

func (d *fakeDriver) record(call string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
	return nil
}

func (d *fakeDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDriver) Minimize(_ context.Context, id handle.ID) error   { return d.record("minimize " + id.String()) }
func (d *fakeDriver) Unminimize(_ context.Context, id handle.ID) error { return d.record("unminimize " + id.String()) }
func (d *fakeDriver) Maximize(_ context.Context, id handle.ID) error   { return d.record("maximize " + id.String()) }
func (d *fakeDriver) Unmaximize(_ context.Context, id handle.ID) error { return d.record("unmaximize " + id.String()) }
func (d *fakeDriver) CloseWindow(_ context.Context, id handle.ID) error {
	return d.record("close " + id.String())
}
func (d *fakeDriver) Focus(_ context.Context, id handle.ID) error { return d.record("focus " + id.String()) }

func (d *fakeDriver) MoveToWorkspace(_ context.Context, id, ws handle.ID) error {
	return d.record("move " + id.String() + " " + ws.String())
}

func (d *fakeDriver) SetWorkspace(_ context.Context, ws workspace.Workspace) error {
	return d.record("switch " + ws.Name)
}

func (d *fakeDriver) Geometry(context.Context, handle.ID, handle.ID) (placement.Geometry, error) {
	return placement.Geometry{}, backend.ErrUnsupported
}

// startDaemon serves a small sway session and returns the socket path
func startDaemon(t *testing.T) (string, *fakeDriver, *backend.Env) {
	t.Helper()

	env := backend.NewEnv([]string{"mail"}, placement.DefaultConfig())
	drv := &fakeDriver{}
	env.Controls.Bind(drv.Kind(), drv, drv)

	ws1 := handle.New(handle.KindSway, 1)
	env.Workspaces.NewOrUpdate(ws1, "1", 0)
	env.Workspaces.NewOrUpdate(handle.New(handle.KindSway, 2), "2", 0)
	env.Workspaces.SetFocus(ws1)

	w := wintree.NewWindow(handle.New(handle.KindSway, 10))
	w.Title, w.AppID = "foot", "foot"
	w.Workspace = ws1
	require.True(t, env.Tree.Append(w))
	env.Tree.SetFocus(w.ID)

	// unix socket paths are length limited, keep it short
	dir, err := os.MkdirTemp("", "wlbar")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "ctl.sock")
	server := ipc.NewSocketServer(path, ipc.NewService(env, drv))
	require.NoError(t, server.Start())
	t.Cleanup(server.Stop)
	return path, drv, env
}

func TestListCommands(t *testing.T) {
	isolate(t)
	sock, _, _ := startDaemon(t)

	out, err := executeCommand("windows", "-o", "json", "--socket", sock)
	require.NoError(t, err)
	var windows []ipc.WindowInfo
	require.NoError(t, json.Unmarshal([]byte(out), &windows))
	require.Len(t, windows, 1)
	assert.Equal(t, "sway:10", windows[0].ID)
	assert.True(t, windows[0].Focused)

	out, err = executeCommand("workspaces", "-o", "yaml", "--socket", sock)
	require.NoError(t, err)
	var list []ipc.WorkspaceInfo
	require.NoError(t, yaml.Unmarshal([]byte(out), &list))
	require.Len(t, list, 3)
	names := []string{}
	for _, ws := range list {
		names = append(names, ws.Name)
	}
	assert.ElementsMatch(t, []string{"1", "2", "mail"}, names)

	out, err = executeCommand("status", "-o", "json", "--socket", sock)
	require.NoError(t, err)
	var st ipc.Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "sway", st.Backend)
	assert.Equal(t, 1, st.Windows)
	assert.Equal(t, []string{"mail"}, st.Pinned)

	out, err = executeCommand("windows", "-o", "table", "--socket", sock)
	require.NoError(t, err)
	assert.Contains(t, out, "foot")
}

func TestWindowCommands(t *testing.T) {
	isolate(t)
	sock, drv, _ := startDaemon(t)

	_, err := executeCommand("focus", "sway:10", "--socket", sock)
	require.NoError(t, err)
	_, err = executeCommand("maximize", "sway:10", "--socket", sock)
	require.NoError(t, err)
	_, err = executeCommand("move", "2", "sway:10", "--socket", sock)
	require.NoError(t, err)
	_, err = executeCommand("switch", "mail", "--socket", sock)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"focus sway:10",
		"maximize sway:10",
		"move sway:10 sway:2",
		"switch mail",
	}, drv.Calls())

	_, err = executeCommand("focus", "sway:99", "--socket", sock)
	assert.ErrorIs(t, err, ipc.ErrServer)
}

func TestPinCommand(t *testing.T) {
	isolate(t)
	sock, _, env := startDaemon(t)

	_, err := executeCommand("pin", "chat", "-u=false", "-s=false", "--socket", sock)
	require.NoError(t, err)
	assert.True(t, env.Workspaces.IsPinned("chat"))

	_, err = executeCommand("pin", "chat", "-u", "-s=false", "--socket", sock)
	require.NoError(t, err)
	assert.False(t, env.Workspaces.IsPinned("chat"))
}

func TestPinSaveWithoutDaemon(t *testing.T) {
	home := isolate(t)
	missing := filepath.Join(home, "missing.sock")

	_, err := executeCommand("pin", "chat", "-u=false", "-s=false", "--socket", missing)
	assert.Error(t, err)

	_, err = executeCommand("pin", "chat", "-u=false", "-s", "--socket", missing)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(home, ".config", "wlbar", "wlbar.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "chat")
}

package sway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/placement"
	"github.com/bnema/wlbar/internal/workspace"
)

// reachable skips socket discovery so Activate runs against the fake requester
type reachable struct {
	*Driver
}

func (reachable) Probe(context.Context) error { return nil }

// fallback is a healthy second backend
type fallback struct {
	focused []handle.ID
}

func (f *fallback) Kind() handle.Kind           { return handle.KindHyprland }
func (f *fallback) Probe(context.Context) error { return nil }
func (f *fallback) Run(context.Context) error   { return nil }
func (f *fallback) Alive() bool                 { return true }
func (f *fallback) Close() error                { return nil }

func (f *fallback) Activate(_ context.Context, env *backend.Env) error {
	env.Controls.Bind(f.Kind(), f, f)
	env.Workspaces.NewOrUpdate(handle.New(handle.KindHyprland, 1), "1", workspace.Focused)
	return nil
}

func (f *fallback) Minimize(context.Context, handle.ID) error    { return nil }
func (f *fallback) Unminimize(context.Context, handle.ID) error  { return nil }
func (f *fallback) Maximize(context.Context, handle.ID) error    { return nil }
func (f *fallback) Unmaximize(context.Context, handle.ID) error  { return nil }
func (f *fallback) CloseWindow(context.Context, handle.ID) error { return nil }

func (f *fallback) Focus(_ context.Context, id handle.ID) error {
	f.focused = append(f.focused, id)
	return nil
}

func (f *fallback) MoveToWorkspace(context.Context, handle.ID, handle.ID) error { return nil }

func (f *fallback) SetWorkspace(context.Context, workspace.Workspace) error { return nil }

func (f *fallback) Geometry(context.Context, handle.ID, handle.ID) (placement.Geometry, error) {
	return placement.Geometry{}, backend.ErrUnsupported
}

func TestFailedEnumerationLeavesNoControls(t *testing.T) {
	fake := &fakeSway{tree: `{"nodes": [`, workspaces: workspacesJSON}
	broken := New(backend.DefaultOptions())
	broken.req = fake
	next := &fallback{}

	env := backend.NewEnv([]string{"mail"}, placement.DefaultConfig())
	s := backend.NewSelector(reachable{broken}, next)
	d, err := s.Select(context.Background(), env)
	require.NoError(t, err)

	assert.Equal(t, handle.KindHyprland, d.Kind())
	assert.Equal(t, handle.KindHyprland, s.Active())
	assert.Equal(t, handle.KindHyprland, env.Controls.Kind())

	// sway's workspaces were enumerated before the tree failed
	for _, ws := range env.Workspaces.List() {
		assert.NotEqual(t, handle.KindSway, ws.ID.Kind, "workspace %q left behind", ws.Name)
	}
	assert.True(t, env.Workspaces.IsPinned("mail"))

	id := handle.New(handle.KindHyprland, 42)
	env.Controls.Focus(context.Background(), id)
	assert.Equal(t, []handle.ID{id}, next.focused)
	assert.Empty(t, fake.commands)
}

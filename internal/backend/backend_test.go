package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/placement"
	"github.com/bnema/wlbar/internal/workspace"
)

type fakeDriver struct {
	kind        handle.Kind
	present     bool
	activateErr error

	probes      int
	activations int
	closed      bool
	calls       []string
}

func (f *fakeDriver) Kind() handle.Kind { return f.kind }

func (f *fakeDriver) Probe(context.Context) error {
	f.probes++
	if !f.present {
		return ErrNotPresent
	}
	return nil
}

// Activate binds and publishes a workspace before failing, the order the
// real drivers use
func (f *fakeDriver) Activate(_ context.Context, env *Env) error {
	f.activations++
	env.Controls.Bind(f.kind, f, f)
	env.Workspaces.NewOrUpdate(handle.New(f.kind, 1), f.kind.String(), 0)
	return f.activateErr
}

func (f *fakeDriver) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (f *fakeDriver) Alive() bool { return true }

func (f *fakeDriver) Close() error {
	f.closed = true
	return nil
}

func (f *fakeDriver) record(op string) error {
	f.calls = append(f.calls, op)
	return nil
}

func (f *fakeDriver) Minimize(context.Context, handle.ID) error   { return f.record("minimize") }
func (f *fakeDriver) Unminimize(context.Context, handle.ID) error { return f.record("unminimize") }
func (f *fakeDriver) Maximize(context.Context, handle.ID) error   { return f.record("maximize") }
func (f *fakeDriver) Unmaximize(context.Context, handle.ID) error { return f.record("unmaximize") }
func (f *fakeDriver) CloseWindow(context.Context, handle.ID) error { return f.record("close") }
func (f *fakeDriver) Focus(context.Context, handle.ID) error      { return f.record("focus") }
func (f *fakeDriver) MoveToWorkspace(context.Context, handle.ID, handle.ID) error {
	return f.record("move")
}

func (f *fakeDriver) SetWorkspace(context.Context, workspace.Workspace) error {
	return f.record("switch")
}

func (f *fakeDriver) Geometry(context.Context, handle.ID, handle.ID) (placement.Geometry, error) {
	return placement.Geometry{}, ErrUnsupported
}

func newEnv() *Env {
	return NewEnv(nil, placement.DefaultConfig())
}

func TestSelectorPicksFirstPresent(t *testing.T) {
	kinds := []handle.Kind{handle.KindSway, handle.KindHyprland, handle.KindWayland, handle.KindWayfire}

	for k := range kinds {
		t.Run(kinds[k].String(), func(t *testing.T) {
			var drivers []Driver
			fakes := make([]*fakeDriver, len(kinds))
			for i, kind := range kinds {
				fakes[i] = &fakeDriver{kind: kind, present: i == k}
				drivers = append(drivers, fakes[i])
			}

			env := newEnv()
			s := NewSelector(drivers...)
			d, err := s.Select(context.Background(), env)
			require.NoError(t, err)
			assert.Equal(t, kinds[k], d.Kind())
			assert.Equal(t, kinds[k], s.Active())
			assert.Equal(t, kinds[k], env.Controls.Kind())

			for i, f := range fakes {
				if i <= k {
					assert.Equal(t, 1, f.probes, "driver %d", i)
				} else {
					assert.Zero(t, f.probes, "driver %d probed after a success", i)
				}
				if i == k {
					assert.Equal(t, 1, f.activations)
				} else {
					assert.Zero(t, f.activations)
				}
			}

			// selection is run-once
			again, err := s.Select(context.Background(), newEnv())
			require.NoError(t, err)
			assert.Same(t, d, again)
			assert.Equal(t, 1, fakes[k].probes)
		})
	}
}

func TestSelectorNoBackend(t *testing.T) {
	s := NewSelector(&fakeDriver{kind: handle.KindSway}, &fakeDriver{kind: handle.KindWayfire})
	_, err := s.Select(context.Background(), newEnv())
	assert.ErrorIs(t, err, ErrNoBackend)
	assert.Equal(t, handle.KindNone, s.Active())
}

func TestSelectorSkipsFailedActivation(t *testing.T) {
	broken := &fakeDriver{kind: handle.KindSway, present: true, activateErr: errors.New("enumeration failed")}
	good := &fakeDriver{kind: handle.KindHyprland, present: true}

	env := NewEnv([]string{"mail"}, placement.Config{Enabled: true, XStep: 5, YStep: 5})
	s := NewSelector(broken, good)
	d, err := s.Select(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, handle.KindHyprland, d.Kind())
	assert.True(t, broken.closed)

	// nothing from the failed activation survives
	assert.Equal(t, handle.KindHyprland, s.Active())
	assert.Equal(t, handle.KindHyprland, env.Controls.Kind())
	_, found := env.Workspaces.FindByName("sway")
	assert.False(t, found)
	_, found = env.Workspaces.FindByName("hyprland")
	assert.True(t, found)

	// configuration carried over to the winner's registries
	assert.Equal(t, []string{"mail"}, env.Workspaces.Pinned())
	assert.Equal(t, 5, env.Placer.Config().XStep)

	env.Controls.Focus(context.Background(), handle.New(handle.KindHyprland, 7))
	assert.Equal(t, []string{"focus"}, good.calls)
	assert.Empty(t, broken.calls)
}

func TestDetect(t *testing.T) {
	absent := &fakeDriver{kind: handle.KindSway}
	present := &fakeDriver{kind: handle.KindWayland, present: true}
	kind, err := Detect(context.Background(), absent, present)
	require.NoError(t, err)
	assert.Equal(t, handle.KindWayland, kind)
	assert.True(t, present.closed, "probe left its connection open")
	assert.Zero(t, present.activations)

	_, err = Detect(context.Background(), &fakeDriver{kind: handle.KindSway})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestControlsUnboundAreNoops(t *testing.T) {
	c := NewControls()
	id := handle.New(handle.KindSway, 1)

	assert.NotPanics(t, func() {
		c.Minimize(context.Background(), id)
		c.Focus(context.Background(), id)
		c.SetWorkspace(context.Background(), workspace.Workspace{ID: id, Name: "1"})
	})
	_, err := c.Geometry(context.Background(), id, id)
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestControlsFirstBindWins(t *testing.T) {
	c := NewControls()
	sway := &fakeDriver{kind: handle.KindSway}
	hypr := &fakeDriver{kind: handle.KindHyprland}

	require.True(t, c.Bind(handle.KindSway, sway, sway))
	assert.False(t, c.Bind(handle.KindSway, sway, sway))
	assert.False(t, c.Bind(handle.KindHyprland, hypr, hypr))

	ctx := context.Background()
	id := handle.New(handle.KindSway, 7)
	c.Minimize(ctx, id)
	c.CloseWindow(ctx, id)
	c.MoveToWorkspace(ctx, id, handle.New(handle.KindSway, 2))
	c.SetWorkspace(ctx, workspace.Workspace{ID: handle.New(handle.KindSway, 2), Name: "2"})

	assert.Equal(t, []string{"minimize", "close", "move", "switch"}, sway.calls)
	assert.Empty(t, hypr.calls)

	// ids from another backend never reach the driver
	c.Focus(ctx, handle.New(handle.KindHyprland, 7))
	assert.Len(t, sway.calls, 4)
}

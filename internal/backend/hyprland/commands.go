package hyprland

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/placement"
	"github.com/bnema/wlbar/internal/wintree"
	"github.com/bnema/wlbar/internal/workspace"
)

// dispatch sends one or more dispatcher calls, batched when there are
// several, and checks that every one answered "ok"
func (d *Driver) dispatch(ctx context.Context, calls ...string) error {
	cmds := make([]string, len(calls))
	for i, c := range calls {
		cmds[i] = "dispatch " + c
	}
	command := cmds[0]
	if len(cmds) > 1 {
		command = "[[BATCH]]" + strings.Join(cmds, "; ")
	}

	reply, err := d.req.Request(ctx, command)
	if err != nil {
		return err
	}

	var errs []error
	for _, part := range strings.Split(string(reply), "\n") {
		part = strings.TrimSpace(part)
		if part != "" && part != "ok" {
			errs = append(errs, fmt.Errorf("%q: %s", command, part))
		}
	}
	return errors.Join(errs...)
}

func (d *Driver) Minimize(ctx context.Context, id handle.ID) error {
	return d.dispatch(ctx, fmt.Sprintf("movetoworkspacesilent %s,%s", minimizedWorkspace, address(id)))
}

func (d *Driver) Unminimize(ctx context.Context, id handle.ID) error {
	target, err := d.activeWorkspace(ctx)
	if err != nil {
		return err
	}
	return d.dispatch(ctx,
		fmt.Sprintf("movetoworkspacesilent %s,%s", target, address(id)),
		"focuswindow "+address(id),
	)
}

// activeWorkspace returns the dispatcher argument for the focused workspace
func (d *Driver) activeWorkspace(ctx context.Context) (string, error) {
	if ws, ok := d.env.Workspaces.Find(d.env.Workspaces.Focused()); ok {
		return fmt.Sprintf("%d", ws.ID.Value), nil
	}
	var ref workspaceRef
	if err := d.query(ctx, "activeworkspace", &ref); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", ref.ID), nil
}

func (d *Driver) Maximize(ctx context.Context, id handle.ID) error {
	return d.toggleFullscreen(ctx, id, true)
}

func (d *Driver) Unmaximize(ctx context.Context, id handle.ID) error {
	return d.toggleFullscreen(ctx, id, false)
}

// toggleFullscreen works around hyprland's fullscreen acting on the active
// window: focus the target, toggle, then focus the previous window again.
// Nothing is sent when the window is already in the requested state, since
// the dispatcher toggles.
func (d *Driver) toggleFullscreen(ctx context.Context, id handle.ID, on bool) error {
	w, ok := d.env.Tree.Find(id)
	if !ok {
		return fmt.Errorf("unknown window %s", id)
	}
	if w.State.Has(wintree.Maximized) == on {
		return nil
	}

	var prior client
	if err := d.query(ctx, "activewindow", &prior); err != nil {
		return err
	}

	calls := []string{
		"focuswindow " + address(id),
		"fullscreen 1",
	}
	if prev, ok := windowFromAddress(prior.Address); ok && prev != id {
		calls = append(calls, "focuswindow "+address(prev))
	}
	return d.dispatch(ctx, calls...)
}

func (d *Driver) CloseWindow(ctx context.Context, id handle.ID) error {
	return d.dispatch(ctx, "closewindow "+address(id))
}

func (d *Driver) Focus(ctx context.Context, id handle.ID) error {
	if w, ok := d.env.Tree.Find(id); ok && w.State.Has(wintree.Minimized) {
		return d.Unminimize(ctx, id)
	}
	return d.dispatch(ctx, "focuswindow "+address(id))
}

func (d *Driver) MoveToWorkspace(ctx context.Context, id, ws handle.ID) error {
	if _, ok := d.env.Workspaces.Find(ws); !ok {
		return fmt.Errorf("unknown workspace %s", ws)
	}
	return d.dispatch(ctx, fmt.Sprintf("movetoworkspacesilent %d,%s", ws.Value, address(id)))
}

// SetWorkspace switches by id when the workspace exists and by name otherwise
func (d *Driver) SetWorkspace(ctx context.Context, ws workspace.Workspace) error {
	if ws.Phase == workspace.Live && ws.ID.Kind == handle.KindHyprland {
		return d.dispatch(ctx, fmt.Sprintf("workspace %d", ws.ID.Value))
	}
	if ws.Name == "" {
		return fmt.Errorf("workspace %s has no name", ws.ID)
	}
	return d.dispatch(ctx, "workspace name:"+ws.Name)
}

// Geometry reports the floating windows sharing the target's workspace
func (d *Driver) Geometry(ctx context.Context, ws, window handle.ID) (placement.Geometry, error) {
	clients, err := d.clients(ctx)
	if err != nil {
		return placement.Geometry{}, err
	}
	mons, err := d.monitors(ctx)
	if err != nil {
		return placement.Geometry{}, err
	}

	wsValue, monitorID := -1, -1
	if ws.Kind == handle.KindHyprland {
		wsValue = int(ws.Value) //nolint:gosec // workspace ids are small
	}
	for _, c := range clients {
		if id, ok := windowFromAddress(c.Address); ok && id == window {
			wsValue, monitorID = c.Workspace.ID, c.Monitor
		}
	}
	if wsValue < 0 {
		return placement.Geometry{}, fmt.Errorf("%w: %s not on a workspace", backend.ErrUnsupported, window)
	}

	geom := placement.Geometry{Focused: -1}
	outputFound := false
	for _, m := range mons {
		if m.ID == monitorID || (monitorID < 0 && m.ActiveWorkspace.ID == wsValue) {
			geom.Output = m.rect()
			outputFound = true
		}
	}
	if !outputFound {
		return placement.Geometry{}, fmt.Errorf("%w: no monitor shows workspace %d", backend.ErrUnsupported, wsValue)
	}

	for _, c := range clients {
		if c.Workspace.ID != wsValue || !c.Floating || !c.Mapped || c.Hidden {
			continue
		}
		if id, ok := windowFromAddress(c.Address); ok && id == window {
			geom.Focused = len(geom.Windows)
		}
		geom.Windows = append(geom.Windows, c.rect())
	}
	return geom, nil
}

func (d *Driver) MoveWindow(ctx context.Context, id handle.ID, x, y int) error {
	return d.dispatch(ctx, fmt.Sprintf("movewindowpixel exact %d %d,%s", x, y, address(id)))
}

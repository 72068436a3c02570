package wayfire

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/placement"
	"github.com/bnema/wlbar/internal/wintree"
	"github.com/bnema/wlbar/internal/workspace"
)

type viewState struct {
	ViewID int  `json:"view_id"`
	State  bool `json:"state"`
}

type viewRef struct {
	ID int `json:"id"`
}

func (d *Driver) Minimize(ctx context.Context, id handle.ID) error {
	return d.call(ctx, methodSetMinimized, viewState{ViewID: viewID(id), State: true}, nil)
}

func (d *Driver) Unminimize(ctx context.Context, id handle.ID) error {
	return d.call(ctx, methodSetMinimized, viewState{ViewID: viewID(id), State: false}, nil)
}

func (d *Driver) Maximize(ctx context.Context, id handle.ID) error {
	return d.call(ctx, methodSetFullscreen, viewState{ViewID: viewID(id), State: true}, nil)
}

func (d *Driver) Unmaximize(ctx context.Context, id handle.ID) error {
	return d.call(ctx, methodSetFullscreen, viewState{ViewID: viewID(id), State: false}, nil)
}

func (d *Driver) CloseWindow(ctx context.Context, id handle.ID) error {
	return d.call(ctx, methodCloseView, viewRef{ID: viewID(id)}, nil)
}

// Focus restores a minimized view before focusing it
func (d *Driver) Focus(ctx context.Context, id handle.ID) error {
	if w, ok := d.env.Tree.Find(id); ok && w.State.Has(wintree.Minimized) {
		if err := d.Unminimize(ctx, id); err != nil {
			return err
		}
	}
	return d.call(ctx, methodFocusView, viewRef{ID: viewID(id)}, nil)
}

func (d *Driver) MoveToWorkspace(ctx context.Context, id, ws handle.ID) error {
	if _, ok := d.env.Workspaces.Find(ws); !ok || ws.Kind != handle.KindWayfire {
		return fmt.Errorf("unknown workspace %s", ws)
	}
	x, y := cell(ws, d.gridWidth())

	data := map[string]any{"view-id": viewID(id), "x": x, "y": y}
	if w, ok := d.env.Tree.Find(id); ok && len(w.Outputs) > 0 {
		if o, found := d.outputByName(w.Outputs[0]); found {
			data["output-id"] = o.ID
		}
	}
	return d.call(ctx, methodSendView, data, nil)
}

// SetWorkspace switches the grid of the workspace's output. A dormant
// workspace is only reachable when its name is a grid cell number.
func (d *Driver) SetWorkspace(ctx context.Context, ws workspace.Workspace) error {
	id := ws.ID
	if ws.Dormant() || id.Kind != handle.KindWayfire {
		n, err := strconv.Atoi(ws.Name)
		d.mu.Lock()
		cells := d.grid.GridWidth * d.grid.GridHeight
		d.mu.Unlock()
		if err != nil || n < 1 || n > cells {
			return fmt.Errorf("%w: workspace %q is not a grid cell", backend.ErrUnsupported, ws.Name)
		}
		id = handle.New(handle.KindWayfire, uint64(n)) //nolint:gosec // checked above
	}
	x, y := cell(id, d.gridWidth())

	o, ok := d.targetOutput(ws.Output)
	if !ok {
		return fmt.Errorf("no output to switch")
	}
	return d.call(ctx, methodSetWorkspace, map[string]any{"x": x, "y": y, "output-id": o.ID}, nil)
}

// targetOutput prefers the named output, then the focused window's output,
// then the lowest output id
func (d *Driver) targetOutput(name string) (output, bool) {
	if name != "" {
		if o, ok := d.outputByName(name); ok {
			return o, true
		}
	}
	if w, ok := d.env.Tree.Find(d.env.Tree.Focused()); ok && len(w.Outputs) > 0 {
		if o, found := d.outputByName(w.Outputs[0]); found {
			return o, true
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]int, 0, len(d.outputs))
	for id := range d.outputs {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return output{}, false
	}
	slices.Sort(ids)
	return d.outputs[ids[0]], true
}

// Geometry reports the floating views on the target's output. Only the
// workspace currently shown is answered, since that is the space view
// coordinates are reported in.
func (d *Driver) Geometry(ctx context.Context, ws, window handle.ID) (placement.Geometry, error) {
	views, err := d.listViews(ctx)
	if err != nil {
		return placement.Geometry{}, err
	}

	idx := slices.IndexFunc(views, func(v view) bool { return v.ID == viewID(window) })
	if idx < 0 {
		return placement.Geometry{}, fmt.Errorf("%w: %s", errViewGone, window)
	}
	target := views[idx]

	o, ok := d.output(target.OutputID)
	if !ok {
		return placement.Geometry{}, fmt.Errorf("%w: unknown output %d", backend.ErrUnsupported, target.OutputID)
	}
	shown := d.current(o)
	if !ws.IsNil() && ws != shown {
		return placement.Geometry{}, fmt.Errorf("%w: workspace %s is not shown", backend.ErrUnsupported, ws)
	}

	geom := placement.Geometry{Output: o.area(), Focused: -1}
	for _, v := range views {
		if !v.toplevel() || !v.Mapped || v.Minimized || !v.floating() || v.OutputID != o.ID {
			continue
		}
		if d.membership(v) != shown {
			continue
		}
		if v.ID == target.ID {
			geom.Focused = len(geom.Windows)
		}
		geom.Windows = append(geom.Windows, v.Geometry.toPlacement())
	}
	return geom, nil
}

// MoveWindow keeps the view's size; configure-view always takes all four
func (d *Driver) MoveWindow(ctx context.Context, id handle.ID, x, y int) error {
	v, err := d.findView(ctx, id)
	if err != nil {
		return err
	}
	return d.call(ctx, methodConfigureView, map[string]any{
		"id":     v.ID,
		"x":      x,
		"y":      y,
		"width":  v.Geometry.Width,
		"height": v.Geometry.Height,
	}, nil)
}

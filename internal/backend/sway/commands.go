package sway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/placement"
	"github.com/bnema/wlbar/internal/wintree"
	"github.com/bnema/wlbar/internal/workspace"
)

// run sends a RUN_COMMAND and fails if any of its commands failed
func (d *Driver) run(ctx context.Context, command string) error {
	var results []commandResult
	if err := d.query(ctx, msgRunCommand, []byte(command), &results); err != nil {
		return err
	}
	var errs []error
	for _, r := range results {
		if !r.Success {
			errs = append(errs, fmt.Errorf("%q: %s", command, r.Error))
		}
	}
	return errors.Join(errs...)
}

func criteria(id handle.ID) string {
	return fmt.Sprintf("[con_id=%d]", id.Value)
}

func (d *Driver) Minimize(ctx context.Context, id handle.ID) error {
	return d.run(ctx, criteria(id)+" move window to scratchpad")
}

// Unminimize brings a window back from the scratchpad onto the focused
// workspace, which is read with a round trip first.
func (d *Driver) Unminimize(ctx context.Context, id handle.ID) error {
	name, err := d.focusedWorkspace(ctx)
	if err != nil {
		return err
	}
	c := criteria(id)
	return d.run(ctx, fmt.Sprintf("%s move window to workspace %s; %s focus", c, strconv.Quote(name), c))
}

func (d *Driver) focusedWorkspace(ctx context.Context) (string, error) {
	var list []workspaceReply
	if err := d.query(ctx, msgGetWorkspaces, nil, &list); err != nil {
		return "", err
	}
	for _, ws := range list {
		if ws.Focused {
			return ws.Name, nil
		}
	}
	return "", fmt.Errorf("no focused workspace")
}

func (d *Driver) Maximize(ctx context.Context, id handle.ID) error {
	return d.run(ctx, criteria(id)+" fullscreen enable")
}

func (d *Driver) Unmaximize(ctx context.Context, id handle.ID) error {
	return d.run(ctx, criteria(id)+" fullscreen disable")
}

func (d *Driver) CloseWindow(ctx context.Context, id handle.ID) error {
	return d.run(ctx, criteria(id)+" kill")
}

// Focus raises a window; a minimized one is taken out of the scratchpad first
func (d *Driver) Focus(ctx context.Context, id handle.ID) error {
	if w, ok := d.env.Tree.Find(id); ok && w.State.Has(wintree.Minimized) {
		return d.Unminimize(ctx, id)
	}
	return d.run(ctx, criteria(id)+" focus")
}

func (d *Driver) MoveToWorkspace(ctx context.Context, id, ws handle.ID) error {
	target, ok := d.env.Workspaces.Find(ws)
	if !ok {
		return fmt.Errorf("unknown workspace %s", ws)
	}
	return d.run(ctx, fmt.Sprintf("%s move window to workspace %s", criteria(id), strconv.Quote(target.Name)))
}

// SetWorkspace switches by name, so a dormant pinned workspace is created
func (d *Driver) SetWorkspace(ctx context.Context, ws workspace.Workspace) error {
	if strings.TrimSpace(ws.Name) == "" {
		return fmt.Errorf("workspace %s has no name", ws.ID)
	}
	return d.run(ctx, "workspace "+strconv.Quote(ws.Name))
}

// Geometry walks the full tree to find the window's floating siblings
func (d *Driver) Geometry(ctx context.Context, ws, window handle.ID) (placement.Geometry, error) {
	root, err := d.tree(ctx)
	if err != nil {
		return placement.Geometry{}, err
	}
	var wsValue, winValue uint64
	if ws.Kind == handle.KindSway {
		wsValue = ws.Value
	}
	if window.Kind == handle.KindSway {
		winValue = window.Value
	}
	geom, ok := floatingGeometry(root, wsValue, winValue)
	if !ok {
		return placement.Geometry{}, fmt.Errorf("%w: %s not on a workspace", backend.ErrUnsupported, window)
	}
	return geom, nil
}

func (d *Driver) MoveWindow(ctx context.Context, id handle.ID, x, y int) error {
	return d.run(ctx, fmt.Sprintf("%s move absolute position %d %d", criteria(id), x, y))
}

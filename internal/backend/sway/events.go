package sway

import (
	"context"
	"encoding/json"

	"github.com/bnema/wlbar/internal/wintree"
	"github.com/bnema/wlbar/internal/wire"
	"github.com/bnema/wlbar/internal/workspace"
)

func urgency(urgent bool) workspace.State {
	if urgent {
		return workspace.Urgent
	}
	return 0
}

// handleFrame dispatches one subscription message by event type
func (d *Driver) handleFrame(ctx context.Context, f wire.Frame) {
	switch f.Type {
	case eventWindow:
		var ev windowEvent
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			d.log.Debug("Dropping malformed window event", "err", err)
			return
		}
		d.handleWindow(ctx, ev)

	case eventWorkspace:
		var ev workspaceEvent
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			d.log.Debug("Dropping malformed workspace event", "err", err)
			return
		}
		d.handleWorkspace(ctx, ev)

	case eventOutput:
		// outputs were added, removed or reconfigured
		if err := d.syncWorkspaces(ctx); err != nil {
			d.log.Debug("Failed to resync workspaces", "err", err)
		}

	case eventShutdown:
		d.log.Info("Compositor is shutting down")
		if d.stream != nil {
			d.stream.Close()
		}

	default:
		d.log.Debug("Ignoring message", "type", f.Type)
	}
}

func (d *Driver) handleWindow(ctx context.Context, ev windowEvent) {
	tree := d.env.Tree
	c := &ev.Container
	id := windowID(c.ID)

	switch ev.Change {
	case "new":
		w := toWindow(view{node: c})
		w.State &^= wintree.Focused
		if !tree.Append(w) {
			return
		}
		d.refreshMembership(ctx, c.ID)
		if c.Focused {
			tree.SetFocus(id)
		}
		if c.floating() && d.env.Placer != nil {
			if placed, ok := tree.Find(id); ok {
				d.env.Placer.Place(ctx, d, placed)
			}
		}

	case "close":
		tree.Delete(id)

	case "focus":
		tree.SetFocus(id)

	case "title":
		tree.Update(id, func(w *wintree.Window) {
			w.Title = c.Name
			w.AppID = c.appID()
		})

	case "fullscreen_mode":
		tree.SetState(id, wintree.Fullscreen|wintree.Maximized, c.FullscreenMode != 0)

	case "move":
		// covers scratchpad moves, which is how minimize is reported
		d.refreshMembership(ctx, c.ID)

	case "floating":
		tree.Update(id, func(w *wintree.Window) {
			w.Floating = c.floating()
		})

	default:
		d.log.Debug("Ignoring window event", "change", ev.Change, "id", id)
	}
}

// refreshMembership re-derives workspace, minimized and output of one window
// from a full tree query. Whatever the compositor reports last wins.
func (d *Driver) refreshMembership(ctx context.Context, conID uint64) {
	root, err := d.tree(ctx)
	if err != nil {
		d.log.Debug("Failed to query tree", "err", err)
		return
	}
	v, ok := findView(root, conID)
	if !ok {
		d.log.Debug("Window not in tree", "id", conID)
		return
	}
	d.env.Tree.Update(windowID(conID), func(w *wintree.Window) {
		membership(w, v)
	})
}

func (d *Driver) handleWorkspace(ctx context.Context, ev workspaceEvent) {
	reg := d.env.Workspaces

	switch ev.Change {
	case "reload":
		if err := d.syncWorkspaces(ctx); err != nil {
			d.log.Debug("Failed to resync workspaces", "err", err)
		}
		return
	}

	cur := ev.Current
	if cur == nil || cur.Name == scratchpad {
		return
	}
	id := workspaceID(cur.ID)

	switch ev.Change {
	case "init":
		if _, ok := reg.NewOrUpdate(id, cur.Name, urgency(cur.Urgent)); ok {
			reg.SetOutput(id, cur.Output)
		}

	case "empty":
		reg.Delete(id)

	case "focus":
		if _, ok := reg.Find(id); !ok {
			// focus can race ahead of init
			reg.NewOrUpdate(id, cur.Name, urgency(cur.Urgent))
		}
		if cur.Output != "" {
			reg.SetActive(cur.Output, id)
		}
		reg.SetFocus(id)

	case "rename":
		if err := reg.Rename(id, cur.Name); err != nil {
			d.log.Debug("Ignoring rename", "id", id, "err", err)
		}

	case "urgent":
		reg.SetState(id, workspace.Urgent, cur.Urgent)

	case "move":
		reg.SetOutput(id, cur.Output)

	default:
		d.log.Debug("Ignoring workspace event", "change", ev.Change)
	}
}

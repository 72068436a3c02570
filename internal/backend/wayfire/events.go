package wayfire

import (
	"context"
	"encoding/json"

	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/wintree"
)

// handleMessage dispatches one event from the watch connection
func (d *Driver) handleMessage(ctx context.Context, msg []byte) {
	var ev event
	if err := json.Unmarshal(msg, &ev); err != nil {
		d.log.Debug("Dropping malformed event", "err", err)
		return
	}

	switch ev.Event {
	case "view-mapped":
		if ev.View != nil && ev.View.toplevel() {
			d.mapView(ctx, *ev.View)
		}

	case "view-unmapped":
		if ev.View != nil {
			d.env.Tree.Delete(windowID(ev.View.ID))
		}

	case "view-focused":
		if ev.View == nil || !ev.View.toplevel() {
			d.env.Tree.SetFocus(handle.Nil)
			break
		}
		id := windowID(ev.View.ID)
		d.updateView(*ev.View)
		d.env.Tree.SetFocus(id)

	case "view-title-changed", "view-app-id-changed", "view-minimized",
		"view-fullscreen", "view-tiled", "view-geometry-changed",
		"view-workspace-changed", "view-set-output":
		if ev.View != nil {
			d.updateView(*ev.View)
		}

	case "wset-workspace-changed":
		d.workspaceChanged(ev)

	case "output-added", "output-removed":
		if ev.Event == "output-removed" {
			if o, ok := ev.outputRef(); ok && o.Name != "" {
				d.env.Workspaces.RemoveOutput(o.Name)
			}
		}
		d.resyncOutputs(ctx)

	case "":
		// replies to the watch request carry no event name
	default:
		d.log.Debug("Ignoring event", "event", ev.Event)
	}
}

// mapView appends a newly mapped view and places it when it floats
func (d *Driver) mapView(ctx context.Context, v view) {
	w := wintree.NewWindow(windowID(v.ID))
	d.applyView(w, v)
	if !d.env.Tree.Append(w) {
		return
	}
	if w.Floating && d.env.Placer != nil {
		if placed, ok := d.env.Tree.Find(w.ID); ok {
			d.env.Placer.Place(ctx, d, placed)
		}
	}
}

// updateView refreshes a known window from an event's view snapshot
func (d *Driver) updateView(v view) {
	d.env.Tree.Update(windowID(v.ID), func(w *wintree.Window) {
		d.applyView(w, v)
	})
}

// workspaceChanged records the new grid position of one output. Later view
// geometry is relative to it.
func (d *Driver) workspaceChanged(ev event) {
	o, ok := ev.outputRef()
	if !ok || ev.NewWorkspace == nil {
		d.log.Debug("Dropping workspace change without output", "event", ev.Event)
		return
	}

	d.mu.Lock()
	known, found := d.outputs[o.ID]
	if found {
		known.Workspace.X, known.Workspace.Y = ev.NewWorkspace.X, ev.NewWorkspace.Y
		d.outputs[o.ID] = known
	}
	width := d.grid.GridWidth
	d.mu.Unlock()
	if !found {
		return
	}

	id := workspaceID(ev.NewWorkspace.X, ev.NewWorkspace.Y, width)
	d.env.Workspaces.SetActive(known.Name, id)
	d.env.Workspaces.SetFocus(id)
}

// resyncOutputs reloads the output list after a hotplug
func (d *Driver) resyncOutputs(ctx context.Context) {
	outs, err := d.listOutputs(ctx)
	if err != nil {
		d.log.Debug("Failed to list outputs", "err", err)
		return
	}
	d.setOutputs(outs)
	d.env.Workspaces.Reconcile(d.syncGrid())
}

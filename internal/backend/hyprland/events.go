package hyprland

import (
	"context"
	"strconv"

	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/wintree"
	"github.com/bnema/wlbar/internal/wire"
	"github.com/bnema/wlbar/internal/workspace"
)

// handleLine dispatches one name>>data event
func (d *Driver) handleLine(ctx context.Context, raw string) {
	ev, ok := wire.ParseLine(raw)
	if !ok {
		d.log.Debug("Dropping malformed event", "line", raw)
		return
	}

	tree := d.env.Tree
	reg := d.env.Workspaces

	switch ev.Name {
	case "openwindow":
		f := ev.Fields(4)
		if len(f) < 4 {
			break
		}
		d.openWindow(ctx, f[0], f[1], f[2], f[3])

	case "closewindow":
		if id, ok := windowFromAddress(ev.Data); ok {
			tree.Delete(id)
		}

	case "activewindowv2":
		id, ok := windowFromAddress(ev.Data)
		if !ok {
			id = handle.Nil
		}
		tree.SetFocus(id)

	case "windowtitlev2":
		f := ev.Fields(2)
		if len(f) < 2 {
			break
		}
		if id, ok := windowFromAddress(f[0]); ok {
			tree.SetTitle(id, f[1])
		}

	case "movewindowv2":
		f := ev.Fields(3)
		if len(f) < 3 {
			break
		}
		id, ok := windowFromAddress(f[0])
		if !ok {
			break
		}
		wsID, err := strconv.Atoi(f[1])
		if err != nil {
			d.log.Debug("Bad workspace id", "event", ev.Name, "data", ev.Data)
			break
		}
		ref := workspaceRef{ID: wsID, Name: f[2]}
		tree.Update(id, func(w *wintree.Window) {
			applyWorkspace(w, ref)
		})

	case "fullscreen":
		// applies to whatever window is active
		on := ev.Data == "1"
		tree.SetState(tree.Focused(), wintree.Fullscreen|wintree.Maximized, on)

	case "changefloatingmode":
		f := ev.Fields(2)
		if len(f) < 2 {
			break
		}
		if id, ok := windowFromAddress(f[0]); ok {
			tree.Update(id, func(w *wintree.Window) {
				w.Floating = f[1] == "1"
			})
		}

	case "urgent":
		if id, ok := windowFromAddress(ev.Data); ok {
			if w, found := tree.Find(id); found && !w.Workspace.IsNil() {
				reg.SetState(w.Workspace, workspace.Urgent, true)
			}
		}

	case "minimized":
		// another client asked for a minimize, hyprland leaves it to us
		f := ev.Fields(2)
		if len(f) < 2 {
			break
		}
		if id, ok := windowFromAddress(f[0]); ok {
			var err error
			if f[1] == "1" {
				err = d.Minimize(ctx, id)
			} else {
				err = d.Unminimize(ctx, id)
			}
			if err != nil {
				d.log.Debug("Failed to honour minimize request", "id", id, "err", err)
			}
		}

	case "workspacev2":
		f := ev.Fields(2)
		if len(f) < 2 {
			break
		}
		d.focusWorkspace(f[0], f[1], d.currentMonitor())

	case "focusedmon":
		f := ev.Fields(2)
		if len(f) < 2 {
			break
		}
		d.setFocusedMonitor(f[0])
		if ws, ok := reg.FindByName(f[1]); ok && !ws.Dormant() {
			reg.SetActive(f[0], ws.ID)
			reg.SetFocus(ws.ID)
		}

	case "createworkspacev2":
		f := ev.Fields(2)
		if len(f) < 2 {
			break
		}
		if wsID, ok := d.workspaceRef(f[0], f[1]); ok {
			reg.NewOrUpdate(wsID, f[1], 0)
		}

	case "destroyworkspacev2":
		f := ev.Fields(2)
		if len(f) < 2 {
			break
		}
		if wsID, ok := d.workspaceRef(f[0], f[1]); ok {
			reg.Delete(wsID)
		}

	case "renameworkspace":
		f := ev.Fields(2)
		if len(f) < 2 {
			break
		}
		if wsID, ok := d.workspaceRef(f[0], f[1]); ok {
			if err := reg.Rename(wsID, f[1]); err != nil {
				d.log.Debug("Ignoring rename", "id", wsID, "err", err)
			}
		}

	case "moveworkspacev2":
		f := ev.Fields(3)
		if len(f) < 3 {
			break
		}
		if wsID, ok := d.workspaceRef(f[0], f[1]); ok {
			reg.SetOutput(wsID, f[2])
		}

	case "monitorremoved":
		reg.RemoveOutput(ev.Data)

	default:
		// hyprland emits many events this layer has no use for
	}
}

func (d *Driver) workspaceRef(idField, name string) (handle.ID, bool) {
	id, err := strconv.Atoi(idField)
	if err != nil {
		d.log.Debug("Bad workspace id", "id", idField)
		return handle.Nil, false
	}
	ref := workspaceRef{ID: id, Name: name}
	if ref.special() {
		return handle.Nil, false
	}
	return workspaceID(id), true
}

// focusWorkspace records that a workspace became active on output. Seeing a
// workspace also clears its urgency.
func (d *Driver) focusWorkspace(idField, name, output string) {
	wsID, ok := d.workspaceRef(idField, name)
	if !ok {
		return
	}
	reg := d.env.Workspaces
	if _, found := reg.Find(wsID); !found {
		reg.NewOrUpdate(wsID, name, 0)
	}
	if output != "" {
		reg.SetActive(output, wsID)
	}
	reg.SetFocus(wsID)
	reg.SetState(wsID, workspace.Urgent, false)
}

// openWindow handles openwindow>>ADDR,WORKSPACE,CLASS,TITLE
func (d *Driver) openWindow(ctx context.Context, addr, wsName, class, title string) {
	id, ok := windowFromAddress(addr)
	if !ok {
		d.log.Debug("Bad window address", "address", addr)
		return
	}

	w := wintree.NewWindow(id)
	w.AppID = class
	w.Title = title
	if ws, found := d.env.Workspaces.FindByName(wsName); found && !ws.Dormant() {
		w.Workspace = ws.ID
	}
	if wsName == minimizedWorkspace {
		w.State |= wintree.Minimized
	}
	if !d.env.Tree.Append(w) {
		return
	}

	placed, ok := d.refreshClient(ctx, id)
	if ok && placed.Floating && d.env.Placer != nil {
		d.env.Placer.Place(ctx, d, placed)
	}
}

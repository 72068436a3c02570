package sway

import (
	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/placement"
	"github.com/bnema/wlbar/internal/wintree"
)

// view is an application window found in the layout tree together with the
// workspace and output that contain it
type view struct {
	node      *node
	workspace *node
	output    *node
}

func (v view) minimized() bool {
	return v.workspace != nil && v.workspace.Name == scratchpad
}

// walk visits every view under root in tree order, tiled before floating
func walk(root *node, visit func(view)) {
	var rec func(n, ws, out *node)
	rec = func(n, ws, out *node) {
		switch n.Type {
		case "output":
			out = n
		case "workspace":
			ws = n
		}
		if n.isView() {
			visit(view{node: n, workspace: ws, output: out})
		}
		for i := range n.Nodes {
			rec(&n.Nodes[i], ws, out)
		}
		for i := range n.FloatingNodes {
			rec(&n.FloatingNodes[i], ws, out)
		}
	}
	rec(root, nil, nil)
}

// findView locates one container by id
func findView(root *node, id uint64) (view, bool) {
	var found view
	ok := false
	walk(root, func(v view) {
		if !ok && v.node.ID == id {
			found, ok = v, true
		}
	})
	return found, ok
}

// findWorkspace locates a workspace node and its output by id
func findWorkspace(root *node, id uint64) (ws, out *node) {
	for i := range root.Nodes {
		o := &root.Nodes[i]
		for j := range o.Nodes {
			if o.Nodes[j].Type == "workspace" && o.Nodes[j].ID == id {
				return &o.Nodes[j], o
			}
		}
	}
	return nil, nil
}

func windowID(id uint64) handle.ID {
	return handle.New(handle.KindSway, id)
}

func workspaceID(id uint64) handle.ID {
	return handle.New(handle.KindSway, id)
}

// membership applies the tree position of v to w. Windows in the scratchpad
// carry Minimized and no workspace.
func membership(w *wintree.Window, v view) {
	if v.minimized() {
		w.State |= wintree.Minimized
		w.Workspace = handle.Nil
	} else {
		w.State &^= wintree.Minimized
		if v.workspace != nil {
			w.Workspace = workspaceID(v.workspace.ID)
		}
	}

	w.Outputs = w.Outputs[:0]
	if v.output != nil && !v.minimized() {
		w.Outputs = append(w.Outputs, v.output.Name)
	}
	w.Floating = v.node.floating()
}

// toWindow converts a view into a fresh tree record
func toWindow(v view) *wintree.Window {
	n := v.node
	w := wintree.NewWindow(windowID(n.ID))
	w.Title = n.Name
	w.AppID = n.appID()
	if n.PID > 0 {
		w.PID = n.PID
	}
	if n.FullscreenMode != 0 {
		w.State |= wintree.Fullscreen | wintree.Maximized
	}
	if n.Focused {
		w.State |= wintree.Focused
	}
	membership(w, v)
	return w
}

// floatingGeometry collects the floating siblings of a window on its
// workspace. It needs the full tree because no single-container query
// returns sibling rectangles.
func floatingGeometry(root *node, wsID, target uint64) (placement.Geometry, bool) {
	var ws, out *node
	if target != 0 {
		if v, ok := findView(root, target); ok && !v.minimized() {
			ws, out = v.workspace, v.output
		}
	}
	if ws == nil && wsID != 0 {
		ws, out = findWorkspace(root, wsID)
	}
	if ws == nil || out == nil {
		return placement.Geometry{}, false
	}

	geom := placement.Geometry{Output: out.Rect.toPlacement(), Focused: -1}
	for i := range ws.FloatingNodes {
		n := &ws.FloatingNodes[i]
		if n.ID == target {
			geom.Focused = len(geom.Windows)
		}
		geom.Windows = append(geom.Windows, n.Rect.toPlacement())
	}
	return geom, true
}

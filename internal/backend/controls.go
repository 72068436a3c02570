package backend

import (
	"context"
	"sync"

	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/logger"
	"github.com/bnema/wlbar/internal/placement"
	"github.com/bnema/wlbar/internal/workspace"
)

// Controls is the process-wide capability table. The first driver to bind
// wins; later binds are ignored. Calls made before anything is bound are
// no-ops, and driver errors are logged here instead of reaching callers.
type Controls struct {
	mu         sync.RWMutex
	kind       handle.Kind
	windows    WindowController
	workspaces WorkspaceController
}

// NewControls returns an empty, unbound table
func NewControls() *Controls {
	return &Controls{}
}

// Bind installs a driver's controllers. It returns false if a driver is
// already bound. Binding the same kind twice is a no-op.
func (c *Controls) Bind(kind handle.Kind, windows WindowController, workspaces WorkspaceController) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kind != handle.KindNone {
		if c.kind != kind {
			logger.Warnf("Ignoring %s controls: %s is already bound", kind, c.kind)
		}
		return false
	}
	c.kind = kind
	c.windows = windows
	c.workspaces = workspaces
	return true
}

// Kind returns the backend whose controls are bound, or KindNone
func (c *Controls) Kind() handle.Kind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kind
}

// Bound reports whether any driver has bound its controls
func (c *Controls) Bound() bool {
	return c.Kind() != handle.KindNone
}

func (c *Controls) window() WindowController {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.windows
}

func (c *Controls) workspace() WorkspaceController {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.workspaces
}

func (c *Controls) dispatch(op string, id handle.ID, fn func(WindowController) error) {
	wc := c.window()
	if wc == nil {
		logger.Debugf("%s %s: no backend bound", op, id)
		return
	}
	if id.Kind != c.Kind() {
		logger.Debugf("%s %s: id belongs to another backend", op, id)
		return
	}
	if err := fn(wc); err != nil {
		logger.Warnf("%s %s failed: %v", op, id, err)
	}
}

func (c *Controls) Minimize(ctx context.Context, id handle.ID) {
	c.dispatch("minimize", id, func(wc WindowController) error { return wc.Minimize(ctx, id) })
}

func (c *Controls) Unminimize(ctx context.Context, id handle.ID) {
	c.dispatch("unminimize", id, func(wc WindowController) error { return wc.Unminimize(ctx, id) })
}

func (c *Controls) Maximize(ctx context.Context, id handle.ID) {
	c.dispatch("maximize", id, func(wc WindowController) error { return wc.Maximize(ctx, id) })
}

func (c *Controls) Unmaximize(ctx context.Context, id handle.ID) {
	c.dispatch("unmaximize", id, func(wc WindowController) error { return wc.Unmaximize(ctx, id) })
}

func (c *Controls) CloseWindow(ctx context.Context, id handle.ID) {
	c.dispatch("close", id, func(wc WindowController) error { return wc.CloseWindow(ctx, id) })
}

func (c *Controls) Focus(ctx context.Context, id handle.ID) {
	c.dispatch("focus", id, func(wc WindowController) error { return wc.Focus(ctx, id) })
}

func (c *Controls) MoveToWorkspace(ctx context.Context, id, ws handle.ID) {
	c.dispatch("move", id, func(wc WindowController) error { return wc.MoveToWorkspace(ctx, id, ws) })
}

// SetWorkspace activates a workspace
func (c *Controls) SetWorkspace(ctx context.Context, ws workspace.Workspace) {
	wsc := c.workspace()
	if wsc == nil {
		logger.Debugf("switch %q: no backend bound", ws.Name)
		return
	}
	if err := wsc.SetWorkspace(ctx, ws); err != nil {
		logger.Warnf("switch %q failed: %v", ws.Name, err)
	}
}

// Geometry queries workspace geometry. Unlike commands it reports failure,
// since placement needs to know when to skip.
func (c *Controls) Geometry(ctx context.Context, ws, window handle.ID) (placement.Geometry, error) {
	wsc := c.workspace()
	if wsc == nil {
		return placement.Geometry{}, ErrNoBackend
	}
	return wsc.Geometry(ctx, ws, window)
}

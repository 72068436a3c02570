package ipc

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/wintree"
	"github.com/bnema/wlbar/internal/workspace"
)

// MessageHandler serves the control socket operations
type MessageHandler interface {
	Windows() []WindowInfo
	Workspaces() []WorkspaceInfo
	Status() Status
	Command(ctx context.Context, action, target, arg string) error
	Pin(name string, pinned bool) error
	Subscribe(fn func(Invalidation)) (cancel func())
}

// Service answers socket requests from the registries of an activated backend
type Service struct {
	env    *backend.Env
	driver backend.Driver
}

// NewService creates a handler over env. driver is the selected backend.
func NewService(env *backend.Env, driver backend.Driver) *Service {
	return &Service{env: env, driver: driver}
}

func (s *Service) Windows() []WindowInfo {
	windows := s.env.Tree.List()
	out := make([]WindowInfo, 0, len(windows))
	for _, w := range windows {
		out = append(out, windowInfo(w))
	}
	return out
}

func (s *Service) Workspaces() []WorkspaceInfo {
	list := s.env.Workspaces.List()
	out := make([]WorkspaceInfo, 0, len(list))
	for _, ws := range list {
		out = append(out, workspaceInfo(ws))
	}
	return out
}

func (s *Service) Status() Status {
	st := Status{
		Backend:          handle.KindNone.String(),
		Windows:          s.env.Tree.Len(),
		Workspaces:       s.env.Workspaces.Len(),
		FocusedWindow:    s.env.Tree.Focused().String(),
		FocusedWorkspace: s.env.Workspaces.Focused().String(),
		Pinned:           s.env.Workspaces.Pinned(),
	}
	if s.driver != nil {
		st.Backend = s.driver.Kind().String()
		st.Alive = s.driver.Alive()
	}
	return st
}

// Command runs a window or workspace action. Lookup failures are reported;
// backend failures are logged by the control tables.
func (s *Service) Command(ctx context.Context, action, target, arg string) error {
	controls := s.env.Controls

	if action == ActionSwitch {
		ws, err := s.lookupWorkspace(target)
		if err != nil {
			return err
		}
		controls.SetWorkspace(ctx, ws)
		return nil
	}

	w, err := s.lookupWindow(target)
	if err != nil {
		return err
	}

	switch action {
	case ActionFocus:
		controls.Focus(ctx, w.ID)
	case ActionMinimize:
		controls.Minimize(ctx, w.ID)
	case ActionUnminimize:
		controls.Unminimize(ctx, w.ID)
	case ActionMaximize:
		controls.Maximize(ctx, w.ID)
	case ActionUnmaximize:
		controls.Unmaximize(ctx, w.ID)
	case ActionClose:
		controls.CloseWindow(ctx, w.ID)
	case ActionMove:
		ws, err := s.lookupWorkspace(arg)
		if err != nil {
			return err
		}
		if ws.Dormant() {
			return fmt.Errorf("workspace %q does not exist yet", ws.Name)
		}
		controls.MoveToWorkspace(ctx, w.ID, ws.ID)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

func (s *Service) Pin(name string, pinned bool) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("workspace name is empty")
	}
	if pinned {
		s.env.Workspaces.Pin(name)
	} else {
		s.env.Workspaces.Unpin(name)
	}
	return nil
}

func (s *Service) Subscribe(fn func(Invalidation)) func() {
	stopWindows := s.env.Tree.Subscribe(func(ev wintree.Event) {
		fn(Invalidation{Kind: KindWindow, Change: ev.Change.String(), ID: ev.Window.ID.String()})
	})
	stopWorkspaces := s.env.Workspaces.Subscribe(func(ev workspace.Event) {
		fn(Invalidation{Kind: KindWorkspace, Change: ev.Change.String(), ID: ev.Workspace.Name})
	})
	return func() {
		stopWindows()
		stopWorkspaces()
	}
}

func (s *Service) lookupWindow(target string) (wintree.Window, error) {
	id, err := handle.Parse(target)
	if err != nil {
		return wintree.Window{}, err
	}
	if id.IsNil() {
		id = s.env.Tree.Focused()
	}
	w, ok := s.env.Tree.Find(id)
	if !ok {
		return wintree.Window{}, fmt.Errorf("no window %s", target)
	}
	return w, nil
}

// lookupWorkspace accepts a workspace id or name; names win when both parse
func (s *Service) lookupWorkspace(target string) (workspace.Workspace, error) {
	if ws, ok := s.env.Workspaces.FindByName(target); ok {
		return ws, nil
	}
	if id, err := handle.Parse(target); err == nil && !id.IsNil() {
		if ws, ok := s.env.Workspaces.Find(id); ok {
			return ws, nil
		}
	}
	return workspace.Workspace{}, fmt.Errorf("no workspace %q", target)
}

func windowInfo(w wintree.Window) WindowInfo {
	outputs := w.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	return WindowInfo{
		ID:        w.ID.String(),
		Title:     w.Title,
		AppID:     w.AppID,
		PID:       w.PID,
		Workspace: w.Workspace.String(),
		Outputs:   outputs,
		State:     w.State.Names(),
		Floating:  w.Floating,
		Focused:   w.Focused(),
	}
}

func workspaceInfo(ws workspace.Workspace) WorkspaceInfo {
	state := []string{}
	if s := ws.State.String(); s != "" {
		state = strings.Split(s, "|")
	}
	return WorkspaceInfo{
		ID:      ws.ID.String(),
		Name:    ws.Name,
		Output:  ws.Output,
		State:   state,
		Pinned:  ws.Pinned,
		Dormant: ws.Dormant(),
		Focused: ws.State.Has(workspace.Focused),
	}
}

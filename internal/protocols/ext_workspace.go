package protocols

import (
	"github.com/bnema/wlturbo/wl"
)

// Protocol interface names
const (
	WorkspaceManagerInterface = "ext_workspace_manager_v1"
	WorkspaceGroupInterface   = "ext_workspace_group_handle_v1"
	WorkspaceHandleInterface  = "ext_workspace_handle_v1"
)

// Workspace state bits
const (
	WorkspaceStateActive uint32 = 1
	WorkspaceStateUrgent uint32 = 2
	WorkspaceStateHidden uint32 = 4
)

// WorkspaceManager announces workspace groups and workspaces. Changes are
// applied atomically on done; requests take effect on Commit.
type WorkspaceManager struct {
	wl.BaseProxy
	groupHandler     func(*WorkspaceGroup)
	workspaceHandler func(*WorkspaceHandle)
	doneHandler      func()
	finishedHandler  func()
}

// NewWorkspaceManager creates a manager proxy; bind it through the registry
func NewWorkspaceManager(ctx *wl.Context) *WorkspaceManager {
	manager := &WorkspaceManager{}
	manager.SetContext(ctx)
	return manager
}

func (m *WorkspaceManager) SetGroupHandler(handler func(*WorkspaceGroup)) {
	m.groupHandler = handler
}

func (m *WorkspaceManager) SetWorkspaceHandler(handler func(*WorkspaceHandle)) {
	m.workspaceHandler = handler
}

func (m *WorkspaceManager) SetDoneHandler(handler func()) {
	m.doneHandler = handler
}

func (m *WorkspaceManager) SetFinishedHandler(handler func()) {
	m.finishedHandler = handler
}

// Commit applies every pending workspace request
func (m *WorkspaceManager) Commit() error {
	// Opcode 0: commit
	const opcode = 0
	return m.Context().SendRequest(m, opcode)
}

// Stop asks the compositor to stop sending events
func (m *WorkspaceManager) Stop() error {
	// Opcode 1: stop
	const opcode = 1
	return m.Context().SendRequest(m, opcode)
}

// Dispatch handles incoming events
func (m *WorkspaceManager) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // workspace_group
		group := NewWorkspaceGroup(m.Context())
		group.SetID(event.Uint32())
		m.Context().Register(group)
		if m.groupHandler != nil {
			m.groupHandler(group)
		}
	case 1: // workspace
		ws := NewWorkspaceHandle(m.Context())
		ws.SetID(event.Uint32())
		m.Context().Register(ws)
		if m.workspaceHandler != nil {
			m.workspaceHandler(ws)
		}
	case 2: // done
		if m.doneHandler != nil {
			m.doneHandler()
		}
	case 3: // finished
		if m.finishedHandler != nil {
			m.finishedHandler()
		}
		m.Context().Unregister(m)
	}
}

// WorkspaceGroup ties workspaces to outputs
type WorkspaceGroup struct {
	wl.BaseProxy
	outputEnterHandler    func(uint32)
	outputLeaveHandler    func(uint32)
	workspaceEnterHandler func(uint32)
	workspaceLeaveHandler func(uint32)
	removedHandler        func()
}

// NewWorkspaceGroup creates a group proxy
func NewWorkspaceGroup(ctx *wl.Context) *WorkspaceGroup {
	group := &WorkspaceGroup{}
	group.SetContext(ctx)
	return group
}

func (g *WorkspaceGroup) SetOutputEnterHandler(handler func(uint32)) {
	g.outputEnterHandler = handler
}

func (g *WorkspaceGroup) SetOutputLeaveHandler(handler func(uint32)) {
	g.outputLeaveHandler = handler
}

// SetWorkspaceEnterHandler receives the ext_workspace_handle_v1 object id
func (g *WorkspaceGroup) SetWorkspaceEnterHandler(handler func(uint32)) {
	g.workspaceEnterHandler = handler
}

func (g *WorkspaceGroup) SetWorkspaceLeaveHandler(handler func(uint32)) {
	g.workspaceLeaveHandler = handler
}

func (g *WorkspaceGroup) SetRemovedHandler(handler func()) {
	g.removedHandler = handler
}

// Destroy releases the group
func (g *WorkspaceGroup) Destroy() error {
	// Opcode 1: destroy
	const opcode = 1
	err := g.Context().SendRequest(g, opcode)
	g.Context().Unregister(g)
	return err
}

// Dispatch handles incoming events
func (g *WorkspaceGroup) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // capabilities
	case 1: // output_enter
		output := event.Uint32()
		if g.outputEnterHandler != nil {
			g.outputEnterHandler(output)
		}
	case 2: // output_leave
		output := event.Uint32()
		if g.outputLeaveHandler != nil {
			g.outputLeaveHandler(output)
		}
	case 3: // workspace_enter
		ws := event.Uint32()
		if g.workspaceEnterHandler != nil {
			g.workspaceEnterHandler(ws)
		}
	case 4: // workspace_leave
		ws := event.Uint32()
		if g.workspaceLeaveHandler != nil {
			g.workspaceLeaveHandler(ws)
		}
	case 5: // removed
		if g.removedHandler != nil {
			g.removedHandler()
		}
	}
}

// WorkspaceHandle is one workspace
type WorkspaceHandle struct {
	wl.BaseProxy
	nameHandler    func(string)
	stateHandler   func(uint32)
	removedHandler func()
}

// NewWorkspaceHandle creates a workspace proxy
func NewWorkspaceHandle(ctx *wl.Context) *WorkspaceHandle {
	ws := &WorkspaceHandle{}
	ws.SetContext(ctx)
	return ws
}

func (w *WorkspaceHandle) SetNameHandler(handler func(string)) {
	w.nameHandler = handler
}

func (w *WorkspaceHandle) SetStateHandler(handler func(uint32)) {
	w.stateHandler = handler
}

func (w *WorkspaceHandle) SetRemovedHandler(handler func()) {
	w.removedHandler = handler
}

// Activate requests activation; it takes effect on the manager's Commit
func (w *WorkspaceHandle) Activate() error {
	// Opcode 1: activate
	const opcode = 1
	return w.Context().SendRequest(w, opcode)
}

// Destroy releases the workspace handle
func (w *WorkspaceHandle) Destroy() error {
	// Opcode 0: destroy
	const opcode = 0
	err := w.Context().SendRequest(w, opcode)
	w.Context().Unregister(w)
	return err
}

// Dispatch handles incoming events
func (w *WorkspaceHandle) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 1: // name
		name := event.String()
		if w.nameHandler != nil {
			w.nameHandler(name)
		}
	case 3: // state
		state := event.Uint32()
		if w.stateHandler != nil {
			w.stateHandler(state)
		}
	case 5: // removed
		if w.removedHandler != nil {
			w.removedHandler()
		}
	}
}

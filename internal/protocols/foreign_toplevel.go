package protocols

import (
	"encoding/binary"

	"github.com/bnema/wlturbo/wl"
)

// Protocol interface names
const (
	ForeignToplevelManagerInterface = "zwlr_foreign_toplevel_manager_v1"
	ForeignToplevelHandleInterface  = "zwlr_foreign_toplevel_handle_v1"
)

// Toplevel states carried by the state event
const (
	ToplevelStateMaximized  uint32 = 0
	ToplevelStateMinimized  uint32 = 1
	ToplevelStateActivated  uint32 = 2
	ToplevelStateFullscreen uint32 = 3
)

// ForeignToplevelManager announces every toplevel of the session
type ForeignToplevelManager struct {
	wl.BaseProxy
	toplevelHandler func(*ForeignToplevelHandle)
	finishedHandler func()
}

// NewForeignToplevelManager creates a manager proxy; bind it through the registry
func NewForeignToplevelManager(ctx *wl.Context) *ForeignToplevelManager {
	manager := &ForeignToplevelManager{}
	manager.SetContext(ctx)
	return manager
}

// SetToplevelHandler sets the handler for new toplevels
func (m *ForeignToplevelManager) SetToplevelHandler(handler func(*ForeignToplevelHandle)) {
	m.toplevelHandler = handler
}

// SetFinishedHandler sets the handler for the finished event
func (m *ForeignToplevelManager) SetFinishedHandler(handler func()) {
	m.finishedHandler = handler
}

// Stop asks the compositor to stop sending events
func (m *ForeignToplevelManager) Stop() error {
	// Opcode 0: stop
	const opcode = 0
	return m.Context().SendRequest(m, opcode)
}

// Dispatch handles incoming events
func (m *ForeignToplevelManager) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // toplevel
		handle := NewForeignToplevelHandle(m.Context())
		handle.SetID(event.Uint32())
		m.Context().Register(handle)
		if m.toplevelHandler != nil {
			m.toplevelHandler(handle)
		}
	case 1: // finished
		if m.finishedHandler != nil {
			m.finishedHandler()
		}
		m.Context().Unregister(m)
	}
}

// ForeignToplevelHandle is one toplevel window. Property events are
// double-buffered until done.
type ForeignToplevelHandle struct {
	wl.BaseProxy
	titleHandler       func(string)
	appIDHandler       func(string)
	outputEnterHandler func(uint32)
	outputLeaveHandler func(uint32)
	stateHandler       func([]uint32)
	doneHandler        func()
	closedHandler      func()
}

// NewForeignToplevelHandle creates a handle proxy
func NewForeignToplevelHandle(ctx *wl.Context) *ForeignToplevelHandle {
	handle := &ForeignToplevelHandle{}
	handle.SetContext(ctx)
	return handle
}

func (h *ForeignToplevelHandle) SetTitleHandler(handler func(string)) {
	h.titleHandler = handler
}

func (h *ForeignToplevelHandle) SetAppIDHandler(handler func(string)) {
	h.appIDHandler = handler
}

// SetOutputEnterHandler receives the wl_output object id
func (h *ForeignToplevelHandle) SetOutputEnterHandler(handler func(uint32)) {
	h.outputEnterHandler = handler
}

func (h *ForeignToplevelHandle) SetOutputLeaveHandler(handler func(uint32)) {
	h.outputLeaveHandler = handler
}

func (h *ForeignToplevelHandle) SetStateHandler(handler func([]uint32)) {
	h.stateHandler = handler
}

func (h *ForeignToplevelHandle) SetDoneHandler(handler func()) {
	h.doneHandler = handler
}

func (h *ForeignToplevelHandle) SetClosedHandler(handler func()) {
	h.closedHandler = handler
}

// SetMaximized requests that the toplevel be maximized
func (h *ForeignToplevelHandle) SetMaximized() error {
	// Opcode 0: set_maximized
	const opcode = 0
	return h.Context().SendRequest(h, opcode)
}

// UnsetMaximized requests that the toplevel be unmaximized
func (h *ForeignToplevelHandle) UnsetMaximized() error {
	// Opcode 1: unset_maximized
	const opcode = 1
	return h.Context().SendRequest(h, opcode)
}

// SetMinimized requests that the toplevel be minimized
func (h *ForeignToplevelHandle) SetMinimized() error {
	// Opcode 2: set_minimized
	const opcode = 2
	return h.Context().SendRequest(h, opcode)
}

// UnsetMinimized requests that the toplevel be restored
func (h *ForeignToplevelHandle) UnsetMinimized() error {
	// Opcode 3: unset_minimized
	const opcode = 3
	return h.Context().SendRequest(h, opcode)
}

// Activate focuses the toplevel for seat
func (h *ForeignToplevelHandle) Activate(seat *wl.Seat) error {
	// Opcode 4: activate
	const opcode = 4
	return h.Context().SendRequest(h, opcode, seat)
}

// Close asks the toplevel to close
func (h *ForeignToplevelHandle) Close() error {
	// Opcode 5: close
	const opcode = 5
	return h.Context().SendRequest(h, opcode)
}

// Destroy releases the handle
func (h *ForeignToplevelHandle) Destroy() error {
	// Opcode 7: destroy
	const opcode = 7
	err := h.Context().SendRequest(h, opcode)
	h.Context().Unregister(h)
	return err
}

// Dispatch handles incoming events
func (h *ForeignToplevelHandle) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case 0: // title
		title := event.String()
		if h.titleHandler != nil {
			h.titleHandler(title)
		}
	case 1: // app_id
		appID := event.String()
		if h.appIDHandler != nil {
			h.appIDHandler(appID)
		}
	case 2: // output_enter
		output := event.Uint32()
		if h.outputEnterHandler != nil {
			h.outputEnterHandler(output)
		}
	case 3: // output_leave
		output := event.Uint32()
		if h.outputLeaveHandler != nil {
			h.outputLeaveHandler(output)
		}
	case 4: // state
		states := DecodeUint32Array(event.Data())
		if h.stateHandler != nil {
			h.stateHandler(states)
		}
	case 5: // done
		if h.doneHandler != nil {
			h.doneHandler()
		}
	case 6: // closed
		if h.closedHandler != nil {
			h.closedHandler()
		}
	}
}

// DecodeUint32Array decodes a wire array argument: a byte length followed by
// that many bytes of little-endian uint32 values. A truncated array yields
// the complete entries only.
func DecodeUint32Array(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	size := int(binary.LittleEndian.Uint32(data[:4]))
	body := data[4:]
	if size < len(body) {
		body = body[:size]
	}

	values := make([]uint32, 0, len(body)/4)
	for len(body) >= 4 {
		values = append(values, binary.LittleEndian.Uint32(body[:4]))
		body = body[4:]
	}
	return values
}

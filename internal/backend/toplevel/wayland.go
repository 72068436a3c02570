package toplevel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bnema/wlturbo/wl"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/protocols"
)

// Highest protocol versions the proxies implement
const (
	toplevelVersion  = 3
	workspaceVersion = 1
	outputVersion    = 4
	seatVersion      = 5
)

var errNoSeat = errors.New("no seat bound")

// session is the wlturbo connection plus the globals seen on the registry
type session struct {
	display  *wl.Display
	context  *wl.Context
	registry *wl.Registry

	mu        sync.Mutex
	globals   map[uint32]wl.RegistryGlobalEvent
	outputs   map[uint32]uint32 // global name -> output object id
	seat      *wl.Seat
	driver    *Driver
	activated bool

	closeOnce sync.Once
	closeErr  error
}

// HandleRegistryGlobal implements wl.RegistryGlobalHandler
func (s *session) HandleRegistryGlobal(event wl.RegistryGlobalEvent) {
	s.mu.Lock()
	s.globals[event.Name] = event
	live := s.activated
	s.mu.Unlock()

	// outputs plugged in after activation
	if live && event.Interface == protocols.OutputInterface {
		if err := s.bindOutput(event); err != nil {
			s.driver.log.Debug("Failed to bind output", "err", err)
		}
	}
}

// HandleRegistryGlobalRemove implements wl.RegistryGlobalRemoveHandler
func (s *session) HandleRegistryGlobalRemove(event wl.RegistryGlobalRemoveEvent) {
	s.mu.Lock()
	delete(s.globals, event.Name)
	obj, isOutput := s.outputs[event.Name]
	delete(s.outputs, event.Name)
	driver := s.driver
	s.mu.Unlock()

	if isOutput && driver != nil {
		driver.outputGone(obj)
	}
}

func (s *session) find(iface string) (wl.RegistryGlobalEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.globals {
		if g.Interface == iface {
			return g, true
		}
	}
	return wl.RegistryGlobalEvent{}, false
}

func (s *session) findAll(iface string) []wl.RegistryGlobalEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wl.RegistryGlobalEvent
	for _, g := range s.globals {
		if g.Interface == iface {
			out = append(out, g)
		}
	}
	return out
}

func (s *session) bind(g wl.RegistryGlobalEvent, maxVersion uint32) (uint32, error) {
	return s.registry.BindID(g.Name, g.Interface, min(g.Version, maxVersion))
}

func (s *session) bindOutput(g wl.RegistryGlobalEvent) error {
	if g.Version < protocols.OutputNameSince {
		return fmt.Errorf("wl_output version %d has no name event", g.Version)
	}
	id, err := s.bind(g, outputVersion)
	if err != nil {
		return err
	}
	output := protocols.NewOutput(s.context)
	output.SetID(id)
	s.context.Register(output)
	output.SetNameHandler(func(name string) {
		s.driver.outputName(id, name)
	})

	s.mu.Lock()
	s.outputs[g.Name] = id
	s.mu.Unlock()
	return nil
}

// roundtrip runs display.Roundtrip, giving up after timeout. A timed out
// session is closed so the abandoned roundtrip stops reading the socket.
func (s *session) roundtrip(timeout time.Duration) error {
	return withTimeout(timeout, s.display.Roundtrip, s.close)
}

// withTimeout runs fn and waits at most timeout for it. On timeout abort is
// called, and fn must return once abort has run.
func withTimeout(timeout time.Duration, fn, abort func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		if err := abort(); err != nil {
			return fmt.Errorf("roundtrip timed out after %s (close: %v)", timeout, err)
		}
		return fmt.Errorf("roundtrip timed out after %s", timeout)
	}
}

func (s *session) close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.context.Close()
	})
	return s.closeErr
}

func (d *Driver) Probe(_ context.Context) error {
	if os.Getenv("WAYLAND_DISPLAY") == "" && os.Getenv("WAYLAND_SOCKET") == "" {
		return backend.ErrNotPresent
	}

	display, err := wl.Connect("")
	if err != nil {
		return fmt.Errorf("%w: %w", backend.ErrNotPresent, err)
	}

	s := &session{
		display: display,
		context: display.Context(),
		globals: make(map[uint32]wl.RegistryGlobalEvent),
		outputs: make(map[uint32]uint32),
		driver:  d,
	}
	s.registry = display.GetRegistry()
	s.registry.AddGlobalHandler(s)
	s.registry.AddGlobalRemoveHandler(s)

	if err := s.roundtrip(d.opts.ProbeTimeout * 10); err != nil {
		_ = s.close()
		return fmt.Errorf("%w: %w", backend.ErrNotPresent, err)
	}
	if _, ok := s.find(protocols.ForeignToplevelManagerInterface); !ok {
		_ = s.close()
		return fmt.Errorf("%w: compositor has no %s", backend.ErrNotPresent, protocols.ForeignToplevelManagerInterface)
	}

	d.conn = s
	return nil
}

func (d *Driver) Activate(_ context.Context, env *backend.Env) error {
	s := d.conn
	if s == nil {
		return fmt.Errorf("wayland: activate before probe")
	}
	d.env = env
	env.Controls.Bind(d.Kind(), d, d)

	if g, ok := s.find("wl_seat"); ok {
		id, err := s.bind(g, seatVersion)
		if err == nil {
			seat := wl.NewSeat(s.context)
			seat.SetID(id)
			s.context.Register(seat)
			s.mu.Lock()
			s.seat = seat
			s.mu.Unlock()
		}
	}

	for _, g := range s.findAll(protocols.OutputInterface) {
		if err := s.bindOutput(g); err != nil {
			d.log.Debug("Skipping output", "err", err)
		}
	}

	if g, ok := s.find(protocols.WorkspaceManagerInterface); ok {
		if err := d.bindWorkspaces(s, g); err != nil {
			d.log.Warn("Workspace protocol unavailable", "err", err)
		}
	}

	g, _ := s.find(protocols.ForeignToplevelManagerInterface)
	if err := d.bindToplevels(s, g); err != nil {
		return err
	}

	s.mu.Lock()
	s.activated = true
	s.mu.Unlock()

	// the first roundtrip announces the handles, the second delivers their
	// properties and done events
	for range 2 {
		if err := s.roundtrip(d.opts.RequestTimeout); err != nil {
			return fmt.Errorf("failed to enumerate toplevels: %w", err)
		}
	}
	d.alive.Store(true)
	return nil
}

func (d *Driver) bindToplevels(s *session, g wl.RegistryGlobalEvent) error {
	id, err := s.bind(g, toplevelVersion)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", g.Interface, err)
	}
	manager := protocols.NewForeignToplevelManager(s.context)
	manager.SetID(id)
	s.context.Register(manager)

	manager.SetToplevelHandler(func(h *protocols.ForeignToplevelHandle) {
		obj := h.ID()
		d.addToplevel(obj, &seatToplevel{handle: h, session: s})
		h.SetTitleHandler(func(title string) { d.toplevelTitle(obj, title) })
		h.SetAppIDHandler(func(appID string) { d.toplevelAppID(obj, appID) })
		h.SetStateHandler(func(states []uint32) { d.toplevelState(obj, states) })
		h.SetOutputEnterHandler(func(output uint32) { d.toplevelOutput(obj, output, true) })
		h.SetOutputLeaveHandler(func(output uint32) { d.toplevelOutput(obj, output, false) })
		h.SetDoneHandler(func() { d.toplevelDone(obj) })
		h.SetClosedHandler(func() {
			d.toplevelClosed(obj)
			if err := h.Destroy(); err != nil {
				d.log.Debug("Failed to destroy toplevel handle", "err", err)
			}
		})
	})
	manager.SetFinishedHandler(func() {
		d.log.Warn("Toplevel manager finished, state is frozen")
		d.alive.Store(false)
	})
	return nil
}

func (d *Driver) bindWorkspaces(s *session, g wl.RegistryGlobalEvent) error {
	id, err := s.bind(g, workspaceVersion)
	if err != nil {
		return err
	}
	manager := protocols.NewWorkspaceManager(s.context)
	manager.SetID(id)
	s.context.Register(manager)

	manager.SetGroupHandler(func(grp *protocols.WorkspaceGroup) {
		obj := grp.ID()
		d.addGroup(obj)
		grp.SetOutputEnterHandler(func(output uint32) { d.groupOutput(obj, output, true) })
		grp.SetOutputLeaveHandler(func(output uint32) { d.groupOutput(obj, output, false) })
		grp.SetWorkspaceEnterHandler(func(ws uint32) { d.groupWorkspace(obj, ws, true) })
		grp.SetWorkspaceLeaveHandler(func(ws uint32) { d.groupWorkspace(obj, ws, false) })
		grp.SetRemovedHandler(func() {
			d.groupRemoved(obj)
			_ = grp.Destroy()
		})
	})
	manager.SetWorkspaceHandler(func(ws *protocols.WorkspaceHandle) {
		obj := ws.ID()
		d.addWorkspace(obj, ws)
		ws.SetNameHandler(func(name string) { d.workspaceName(obj, name) })
		ws.SetStateHandler(func(state uint32) { d.workspaceState(obj, state) })
		ws.SetRemovedHandler(func() {
			d.workspaceRemoved(obj)
			_ = ws.Destroy()
		})
	})
	manager.SetDoneHandler(d.workspacesDone)

	d.mu.Lock()
	d.manager = manager
	d.mu.Unlock()
	return nil
}

// Run dispatches protocol events until the connection fails or ctx is done
func (d *Driver) Run(ctx context.Context) error {
	s := d.conn
	if s == nil || d.env == nil {
		return fmt.Errorf("wayland: run before activate")
	}
	defer d.alive.Store(false)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.close()
		case <-stop:
		}
	}()

	for {
		if err := s.display.Dispatch(); err != nil {
			if ctx.Err() == nil {
				d.log.Warn("Wayland connection lost, state is frozen", "err", err)
			}
			return nil
		}
	}
}

func (d *Driver) Alive() bool {
	return d.alive.Load()
}

func (d *Driver) Close() error {
	d.alive.Store(false)
	if d.conn == nil {
		return nil
	}
	s := d.conn
	d.conn = nil
	return s.close()
}

// seatToplevel binds activation to the session's seat
type seatToplevel struct {
	handle  *protocols.ForeignToplevelHandle
	session *session
}

func (t *seatToplevel) SetMaximized() error   { return t.handle.SetMaximized() }
func (t *seatToplevel) UnsetMaximized() error { return t.handle.UnsetMaximized() }
func (t *seatToplevel) SetMinimized() error   { return t.handle.SetMinimized() }
func (t *seatToplevel) UnsetMinimized() error { return t.handle.UnsetMinimized() }
func (t *seatToplevel) Close() error          { return t.handle.Close() }

func (t *seatToplevel) Activate() error {
	t.session.mu.Lock()
	seat := t.session.seat
	t.session.mu.Unlock()
	if seat == nil {
		return errNoSeat
	}
	return t.handle.Activate(seat)
}

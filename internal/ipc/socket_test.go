package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockHandler implements MessageHandler for testing
type MockHandler struct {
	mu         sync.Mutex
	commands   []string
	pins       map[string]bool
	commandErr error
	listeners  []func(Invalidation)
}

func (m *MockHandler) Windows() []WindowInfo {
	return []WindowInfo{{ID: "sway:4", Title: "foot", AppID: "foot", PID: 100, Workspace: "sway:1", Outputs: []string{"DP-1"}, State: []string{"focused"}, Focused: true}}
}

func (m *MockHandler) Workspaces() []WorkspaceInfo {
	return []WorkspaceInfo{
		{ID: "sway:1", Name: "1", Output: "DP-1", State: []string{"focused", "visible"}, Focused: true},
		{ID: "dormant", Name: "mail", State: []string{}, Pinned: true, Dormant: true},
	}
}

func (m *MockHandler) Status() Status {
	return Status{Backend: "sway", Alive: true, Windows: 1, Workspaces: 2, FocusedWindow: "sway:4", Pinned: []string{"mail"}}
}

func (m *MockHandler) Command(_ context.Context, action, target, arg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commandErr != nil {
		return m.commandErr
	}
	m.commands = append(m.commands, action+" "+target+" "+arg)
	return nil
}

func (m *MockHandler) Pin(name string, pinned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pins == nil {
		m.pins = make(map[string]bool)
	}
	m.pins[name] = pinned
	return nil
}

func (m *MockHandler) Subscribe(fn func(Invalidation)) func() {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.listeners = nil
		m.mu.Unlock()
	}
}

func (m *MockHandler) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *MockHandler) emit(inv Invalidation) {
	m.mu.Lock()
	listeners := append([]func(Invalidation){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(inv)
	}
}

func startServer(t *testing.T, handler MessageHandler) (*SocketServer, *Client) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wlbar.sock")
	server := NewSocketServer(path, handler)
	require.NoError(t, server.Start())
	t.Cleanup(server.Stop)
	return server, NewClientWithTimeout(path, time.Second)
}

func TestSocketServerStartStop(t *testing.T) {
	server, _ := startServer(t, &MockHandler{})

	info, err := os.Stat(server.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// a second server on the same path must not steal the socket
	assert.Error(t, NewSocketServer(server.Path(), &MockHandler{}).Start())

	server.Stop()
	_, err = os.Stat(server.Path())
	assert.True(t, os.IsNotExist(err), "socket file should be removed")

	// stopping twice is harmless
	server.Stop()
}

func TestStaleSocketIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wlbar.sock")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	server := NewSocketServer(path, &MockHandler{})
	require.NoError(t, server.Start())
	server.Stop()
}

func TestClientQueries(t *testing.T) {
	_, client := startServer(t, &MockHandler{})
	ctx := context.Background()

	st, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sway", st.Backend)
	assert.True(t, st.Alive)
	assert.Equal(t, []string{"mail"}, st.Pinned)
	assert.True(t, client.IsRunning(ctx))

	windows, err := client.Windows(ctx)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "sway:4", windows[0].ID)
	assert.True(t, windows[0].Focused)

	list, err := client.Workspaces(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[1].Dormant)
	assert.Equal(t, "mail", list[1].Name)
}

func TestClientCommands(t *testing.T) {
	handler := &MockHandler{}
	_, client := startServer(t, handler)
	ctx := context.Background()

	require.NoError(t, client.Command(ctx, ActionMove, "sway:4", "mail"))
	require.NoError(t, client.Command(ctx, ActionSwitch, "2", ""))
	require.NoError(t, client.Pin(ctx, "chat", true))
	assert.Equal(t, []string{"move sway:4 mail", "switch 2 "}, handler.commands)
	assert.True(t, handler.pins["chat"])

	handler.mu.Lock()
	handler.commandErr = errors.New("no window sway:9")
	handler.mu.Unlock()
	err := client.Command(ctx, ActionFocus, "sway:9", "")
	assert.ErrorIs(t, err, ErrServer)
	assert.Contains(t, err.Error(), "no window sway:9")
}

func TestUnknownOperation(t *testing.T) {
	_, client := startServer(t, &MockHandler{})
	err := client.call(context.Background(), Request{Op: "reboot"}, nil)
	assert.ErrorIs(t, err, ErrServer)
}

func TestClientWithoutDaemon(t *testing.T) {
	client := NewClientWithTimeout(filepath.Join(t.TempDir(), "missing.sock"), 100*time.Millisecond)
	assert.False(t, client.IsRunning(context.Background()))
}

func TestSubscribe(t *testing.T) {
	handler := &MockHandler{}
	_, client := startServer(t, handler)

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan Invalidation, 4)
	done := make(chan error, 1)
	go func() {
		done <- client.Subscribe(ctx, func(inv Invalidation) { received <- inv })
	}()

	require.Eventually(t, func() bool { return handler.subscribers() == 1 }, time.Second, 5*time.Millisecond)

	handler.emit(Invalidation{Kind: KindWindow, Change: "added", ID: "sway:7"})
	handler.emit(Invalidation{Kind: KindWorkspace, Change: "removed", ID: "3"})

	for _, want := range []Invalidation{
		{Kind: KindWindow, Change: "added", ID: "sway:7"},
		{Kind: KindWorkspace, Change: "removed", ID: "3"},
	} {
		select {
		case got := <-received:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for invalidation")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscribe did not return after cancel")
	}

	// the server drops the listener once the client hangs up
	assert.Eventually(t, func() bool { return handler.subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

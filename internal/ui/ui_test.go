package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wlbar/internal/ipc"
)

func TestFormatControl(t *testing.T) {
	got := FormatControl("tab", "switch table")
	assert.Contains(t, got, "tab")
	assert.Contains(t, got, "switch table")
}

func TestFormatStatus(t *testing.T) {
	assert.True(t, strings.HasPrefix(FormatStatus(true, "sway"), AliveIndicator))
	assert.True(t, strings.HasPrefix(FormatStatus(false, "sway"), DeadIndicator))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"foot", 10, "foot"},
		{"Mozilla Firefox", 8, "Mozilla…"},
		{"日本語のタイトル", 4, "日本語…"},
		{"abc", 1, "…"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.n))
		})
	}
}

func TestWindowTable(t *testing.T) {
	out := WindowTable([]ipc.WindowInfo{
		{ID: "sway:4", Title: "foot", AppID: "foot", PID: 100, Workspace: "sway:1", Outputs: []string{"DP-1"}, State: []string{"focused", "maximized"}, Focused: true},
		{ID: "sway:5", Title: "pavucontrol", AppID: "pavucontrol", PID: -1, Workspace: "-", State: []string{}, Floating: true},
	})
	for _, want := range []string{"TITLE", "sway:4", "foot", "100", "DP-1", "maximized", "pavucontrol", "floating", IconFocused} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "focused,", "the focused bit has its own column")
}

func TestWorkspaceTable(t *testing.T) {
	out := WorkspaceTable([]ipc.WorkspaceInfo{
		{ID: "sway:1", Name: "1", Output: "DP-1", State: []string{"focused", "visible"}, Focused: true},
		{ID: "dormant", Name: "mail", State: []string{}, Pinned: true, Dormant: true},
	})
	for _, want := range []string{"NAME", "sway:1", "DP-1", "focused,visible", "mail " + IconPinned, "dormant"} {
		assert.Contains(t, out, want)
	}
}

type fakeSource struct {
	calls int
	err   error
}

func (f *fakeSource) Status(context.Context) (ipc.Status, error) {
	f.calls++
	return ipc.Status{Backend: "hyprland", Alive: true}, f.err
}

func (f *fakeSource) Windows(context.Context) ([]ipc.WindowInfo, error) {
	return []ipc.WindowInfo{{ID: "hyprland:0x1", Title: "foot"}}, nil
}

func (f *fakeSource) Workspaces(context.Context) ([]ipc.WorkspaceInfo, error) {
	return []ipc.WorkspaceInfo{{ID: "hyprland:1", Name: "1"}}, nil
}

func TestWatchModelLifecycle(t *testing.T) {
	src := &fakeSource{}
	m := NewWatchModel(context.Background(), src)
	require.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "Waiting")

	snap := m.fetch()()
	_, cmd := m.Update(snap)
	assert.Nil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "backend hyprland")
	assert.Contains(t, view, "foot")

	// an invalidation triggers a fetch, further ones coalesce
	_, cmd = m.Update(InvalidatedMsg{Invalidation: ipc.Invalidation{Kind: ipc.KindWindow, Change: "added", ID: "hyprland:0x2"}})
	require.NotNil(t, cmd)
	_, again := m.Update(InvalidatedMsg{Invalidation: ipc.Invalidation{Kind: ipc.KindWindow, Change: "changed", ID: "hyprland:0x2"}})
	assert.Nil(t, again)

	// completing the in-flight fetch runs exactly one follow-up
	_, follow := m.Update(cmd())
	require.NotNil(t, follow)
	_, done := m.Update(follow())
	assert.Nil(t, done)
	assert.Contains(t, m.View(), "2 events")

	// tab switches tables
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, TabWorkspaces, m.tab)
	assert.Contains(t, m.View(), "NAME")

	m.Update(SubscriptionEndedMsg{})
	assert.Contains(t, m.View(), "closed the event stream")

	_, quit := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, quit)
	assert.IsType(t, tea.QuitMsg{}, quit())
}

func TestWatchModelFetchError(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	m := NewWatchModel(context.Background(), src)
	m.Init()
	m.Update(m.fetch()())
	assert.Contains(t, m.View(), "connection refused")
}

func TestPickerOptions(t *testing.T) {
	opts := WindowOptions([]ipc.WindowInfo{
		{ID: "sway:4", AppID: "foot", Title: "~/src", Focused: true},
		{ID: "sway:5", AppID: "firefox", Title: "GitHub"},
	})
	require.Len(t, opts, 2)
	assert.Equal(t, "sway:4", opts[0].Value)
	assert.Contains(t, opts[0].Key, "foot")
	assert.Contains(t, opts[0].Key, IconFocused)

	wsOpts := WorkspaceOptions([]ipc.WorkspaceInfo{{Name: "1", Output: "DP-1"}, {Name: "mail", Dormant: true}})
	assert.Equal(t, "1 (DP-1)", wsOpts[0].Key)
	assert.Equal(t, "mail", wsOpts[1].Value)
}

func TestPickAutoSelects(t *testing.T) {
	id, err := PickWindow("Focus", []ipc.WindowInfo{{ID: "sway:4", Title: "foot"}})
	require.NoError(t, err)
	assert.Equal(t, "sway:4", id)

	_, err = PickWindow("Focus", nil)
	assert.ErrorIs(t, err, ErrNothingToPick)
	_, err = PickWorkspace("Switch", nil)
	assert.ErrorIs(t, err, ErrNothingToPick)
}

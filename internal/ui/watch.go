package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/wlbar/internal/ipc"
)

// Source is the read side of the daemon the watch view polls
type Source interface {
	Status(ctx context.Context) (ipc.Status, error)
	Windows(ctx context.Context) ([]ipc.WindowInfo, error)
	Workspaces(ctx context.Context) ([]ipc.WorkspaceInfo, error)
}

// Tab selects the table shown by the watch view
type Tab int

const (
	TabWindows Tab = iota
	TabWorkspaces
)

// SnapshotMsg carries a fresh copy of the daemon state
type SnapshotMsg struct {
	Status     ipc.Status
	Windows    []ipc.WindowInfo
	Workspaces []ipc.WorkspaceInfo
	Err        error
}

// InvalidatedMsg is sent for every invalidation pushed by the daemon
type InvalidatedMsg struct {
	Invalidation ipc.Invalidation
}

// SubscriptionEndedMsg reports that the daemon closed the stream
type SubscriptionEndedMsg struct {
	Err error
}

// WatchModel is a live view of the window tree and workspace registry.
// Invalidations arriving while a fetch is in flight are coalesced into one
// follow-up fetch.
type WatchModel struct {
	ctx     context.Context
	source  Source
	spinner spinner.Model

	tab      Tab
	loading  bool
	fetching bool
	dirty    bool
	ended    bool

	snapshot SnapshotMsg
	events   int
	last     ipc.Invalidation
	err      error

	width  int
	height int
}

// NewWatchModel creates the watch view over source
func NewWatchModel(ctx context.Context, source Source) *WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return &WatchModel{
		ctx:     ctx,
		source:  source,
		spinner: s,
		loading: true,
	}
}

func (m *WatchModel) Init() tea.Cmd {
	m.fetching = true
	return tea.Batch(m.spinner.Tick, m.fetch())
}

// fetch queries the three snapshots off the UI goroutine
func (m *WatchModel) fetch() tea.Cmd {
	ctx, source := m.ctx, m.source
	return func() tea.Msg {
		var snap SnapshotMsg
		var err error
		if snap.Status, err = source.Status(ctx); err != nil {
			return SnapshotMsg{Err: err}
		}
		if snap.Windows, err = source.Windows(ctx); err != nil {
			return SnapshotMsg{Err: err}
		}
		if snap.Workspaces, err = source.Workspaces(ctx); err != nil {
			return SnapshotMsg{Err: err}
		}
		return snap
	}
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "right", "left":
			m.tab = (m.tab + 1) % 2
		case "w":
			m.tab = TabWindows
		case "s":
			m.tab = TabWorkspaces
		case "r":
			return m, m.requestFetch()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case SnapshotMsg:
		m.fetching = false
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
		} else {
			m.err = nil
			m.snapshot = msg
		}
		if m.dirty {
			m.dirty = false
			return m, m.requestFetch()
		}

	case InvalidatedMsg:
		m.events++
		m.last = msg.Invalidation
		return m, m.requestFetch()

	case SubscriptionEndedMsg:
		m.ended = true
		if msg.Err != nil {
			m.err = msg.Err
		}

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *WatchModel) requestFetch() tea.Cmd {
	if m.fetching {
		m.dirty = true
		return nil
	}
	m.fetching = true
	return m.fetch()
}

func (m *WatchModel) View() string {
	if m.loading {
		return m.spinner.View() + " Waiting for wlbar daemon..."
	}

	var b strings.Builder
	st := m.snapshot.Status
	backend := fmt.Sprintf("backend %s", st.Backend)
	if !st.Alive {
		backend += " (frozen)"
	}
	b.WriteString(FormatAppHeader("wlbar watch", ""))
	b.WriteString(" ")
	b.WriteString(FormatStatus(st.Alive && !m.ended, backend))
	b.WriteString("\n\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	switch m.tab {
	case TabWindows:
		b.WriteString(WindowTable(m.snapshot.Windows))
	case TabWorkspaces:
		b.WriteString(WorkspaceTable(m.snapshot.Workspaces))
	}
	b.WriteString("\n")

	footer := fmt.Sprintf("%d windows, %d workspaces, %d events", len(m.snapshot.Windows), len(m.snapshot.Workspaces), m.events)
	if m.last.Kind != "" {
		footer += fmt.Sprintf(" (last: %s %s %s)", m.last.Kind, m.last.Change, m.last.ID)
	}
	b.WriteString(SubtleStyle.Render(footer))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(ErrorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	case m.ended:
		b.WriteString(WarningStyle.Render("daemon closed the event stream"))
		b.WriteString("\n")
	}

	b.WriteString(strings.Join([]string{
		FormatControl("tab", "switch table"),
		FormatControl("r", "refresh"),
		FormatControl("q", "quit"),
	}, "  "))
	return b.String()
}

func (m *WatchModel) renderTabs() string {
	active := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Underline(true)
	inactive := SubtleStyle
	names := []string{"Windows", "Workspaces"}
	parts := make([]string, len(names))
	for i, name := range names {
		if Tab(i) == m.tab {
			parts[i] = active.Render(name)
		} else {
			parts[i] = inactive.Render(name)
		}
	}
	return strings.Join(parts, "  ")
}

// Subscriber streams invalidations until ctx is done
type Subscriber interface {
	Subscribe(ctx context.Context, fn func(ipc.Invalidation)) error
}

// RunWatch runs the watch view until the user quits or ctx is done
func RunWatch(ctx context.Context, source Source, sub Subscriber) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewWatchModel(ctx, source), tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		err := sub.Subscribe(ctx, func(inv ipc.Invalidation) {
			p.Send(InvalidatedMsg{Invalidation: inv})
		})
		if ctx.Err() == nil {
			p.Send(SubscriptionEndedMsg{Err: err})
		}
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

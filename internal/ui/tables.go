package ui

import (
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/bnema/wlbar/internal/ipc"
)

// maxTitle truncates long window titles in tables
const maxTitle = 48

var (
	headerCell = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)
	idCell = lipgloss.NewStyle().
		Foreground(ColorInfo).
		Padding(0, 1)
	plainCell = lipgloss.NewStyle().
			Foreground(ColorText).
			Padding(0, 1)
	focusedCell = lipgloss.NewStyle().
			Foreground(ColorFocused).
			Bold(true).
			Padding(0, 1)
	urgentCell = lipgloss.NewStyle().
			Foreground(ColorUrgent).
			Padding(0, 1)
	dormantCell = lipgloss.NewStyle().
			Foreground(ColorDormant).
			Italic(true).
			Padding(0, 1)
)

func newTable(rowStyle func(row, col int) lipgloss.Style) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorSubtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return rowStyle(row, col)
		})
}

// WindowTable renders windows as a bordered table
func WindowTable(windows []ipc.WindowInfo) string {
	rows := make([][]string, 0, len(windows))
	for _, w := range windows {
		pid := "-"
		if w.PID >= 0 {
			pid = strconv.Itoa(w.PID)
		}
		marker := ""
		if w.Focused {
			marker = IconFocused
		}
		rows = append(rows, []string{
			w.ID,
			Truncate(w.Title, maxTitle),
			w.AppID,
			pid,
			w.Workspace,
			strings.Join(w.Outputs, ","),
			strings.Join(windowFlags(w), ","),
			marker,
		})
	}

	t := newTable(func(row, col int) lipgloss.Style {
		if row < 0 || row >= len(windows) {
			return plainCell
		}
		w := windows[row]
		switch {
		case w.Focused:
			return focusedCell
		case col == 0:
			return idCell
		case slices.Contains(w.State, "minimized"):
			return dormantCell
		default:
			return plainCell
		}
	})
	return t.Headers("ID", "TITLE", "APP", "PID", "WORKSPACE", "OUTPUTS", "STATE", "").
		Rows(rows...).
		String()
}

// WorkspaceTable renders workspaces as a bordered table
func WorkspaceTable(list []ipc.WorkspaceInfo) string {
	rows := make([][]string, 0, len(list))
	for _, ws := range list {
		name := ws.Name
		if ws.Pinned {
			name += " " + IconPinned
		}
		output := ws.Output
		if output == "" {
			output = "-"
		}
		marker := ""
		if ws.Focused {
			marker = IconFocused
		}
		rows = append(rows, []string{ws.ID, name, output, strings.Join(ws.State, ","), marker})
	}

	t := newTable(func(row, col int) lipgloss.Style {
		if row < 0 || row >= len(list) {
			return plainCell
		}
		ws := list[row]
		switch {
		case ws.Dormant:
			return dormantCell
		case ws.Focused:
			return focusedCell
		case slices.Contains(ws.State, "urgent"):
			return urgentCell
		case col == 0:
			return idCell
		default:
			return plainCell
		}
	})
	return t.Headers("ID", "NAME", "OUTPUT", "STATE", "").
		Rows(rows...).
		String()
}

// windowFlags lists state names plus floating, without the focused bit
// which has its own column
func windowFlags(w ipc.WindowInfo) []string {
	flags := make([]string, 0, len(w.State)+1)
	for _, s := range w.State {
		if s != "focused" {
			flags = append(flags, s)
		}
	}
	if w.Floating {
		flags = append(flags, "floating")
	}
	return flags
}

// Truncate shortens s to at most n runes, ending in an ellipsis
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/bnema/wlbar/internal/ipc"
	"github.com/bnema/wlbar/internal/logger"
)

// ErrNothingToPick is returned when the candidate list is empty
var ErrNothingToPick = errors.New("nothing to choose from")

// WindowOptions builds the select options for windows, labelled by app and title
func WindowOptions(windows []ipc.WindowInfo) []huh.Option[string] {
	options := make([]huh.Option[string], len(windows))
	for i, w := range windows {
		label := fmt.Sprintf("%-12s %s", Truncate(w.AppID, 12), Truncate(w.Title, maxTitle))
		if w.Focused {
			label += " " + IconFocused
		}
		options[i] = huh.NewOption(label, w.ID)
	}
	return options
}

// WorkspaceOptions builds the select options for workspaces
func WorkspaceOptions(list []ipc.WorkspaceInfo) []huh.Option[string] {
	options := make([]huh.Option[string], len(list))
	for i, ws := range list {
		label := ws.Name
		if ws.Output != "" {
			label += " (" + ws.Output + ")"
		}
		if ws.Dormant {
			label += " " + IconPinned
		}
		options[i] = huh.NewOption(label, ws.Name)
	}
	return options
}

// PickWindow presents an interactive selection and returns the window id
func PickWindow(title string, windows []ipc.WindowInfo) (string, error) {
	if len(windows) == 0 {
		return "", fmt.Errorf("%w: no windows", ErrNothingToPick)
	}
	// If only one window, use it automatically
	if len(windows) == 1 {
		logger.Infof("Auto-selected window: %s", windows[0].Title)
		return windows[0].ID, nil
	}
	return pick(title, "Choose a window", WindowOptions(windows))
}

// PickWorkspace presents an interactive selection and returns the workspace name
func PickWorkspace(title string, list []ipc.WorkspaceInfo) (string, error) {
	if len(list) == 0 {
		return "", fmt.Errorf("%w: no workspaces", ErrNothingToPick)
	}
	return pick(title, "Choose a workspace", WorkspaceOptions(list))
}

func pick(title, description string, options []huh.Option[string]) (string, error) {
	var selected string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Description(description).
				Options(options...).
				Value(&selected),
		),
	)

	if err := form.Run(); err != nil {
		return "", fmt.Errorf("selection cancelled: %w", err)
	}
	return selected, nil
}

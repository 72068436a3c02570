package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/wlbar/internal/ipc"
	"github.com/bnema/wlbar/internal/ui"
)

var windowActions = []struct {
	action string
	short  string
	title  string
}{
	{ipc.ActionFocus, "Focus a window", "Focus which window?"},
	{ipc.ActionMinimize, "Minimize a window", "Minimize which window?"},
	{ipc.ActionUnminimize, "Restore a minimized window", "Restore which window?"},
	{ipc.ActionMaximize, "Maximize a window", "Maximize which window?"},
	{ipc.ActionUnmaximize, "Restore a maximized window", "Restore which window?"},
	{ipc.ActionClose, "Ask a window to close", "Close which window?"},
}

// resolveWindow returns the id argument, or asks the user to pick one
func resolveWindow(ctx context.Context, client *ipc.Client, args []string, title string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	windows, err := client.Windows(ctx)
	if err != nil {
		return "", err
	}
	return ui.PickWindow(title, windows)
}

// resolveWorkspace returns the name argument, or asks the user to pick one
func resolveWorkspace(ctx context.Context, client *ipc.Client, args []string, title string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	list, err := client.Workspaces(ctx)
	if err != nil {
		return "", err
	}
	return ui.PickWorkspace(title, list)
}

func newWindowCommand(action, short, title string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [window-id]",
		Short: short,
		Long: short + `. Without an id an interactive picker lists the open windows.
The command is fire-and-forget: the compositor reports the result as events.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			id, err := resolveWindow(cmd.Context(), client, args, title)
			if err != nil {
				return err
			}
			return client.Command(cmd.Context(), action, id, "")
		},
	}
}

var moveCmd = &cobra.Command{
	Use:   "move <workspace> [window-id]",
	Short: "Move a window to another workspace",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		id, err := resolveWindow(cmd.Context(), client, args[1:], "Move which window?")
		if err != nil {
			return err
		}
		return client.Command(cmd.Context(), ipc.ActionMove, id, args[0])
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch [workspace]",
	Short: "Switch to a workspace",
	Long: `Switch to a workspace by name or id. A pinned workspace the compositor has
not created yet is created where the backend allows it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		name, err := resolveWorkspace(cmd.Context(), client, args, "Switch to which workspace?")
		if err != nil {
			return err
		}
		if err := client.Command(cmd.Context(), ipc.ActionSwitch, name, ""); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(true, "switching to "+name))
		return nil
	},
}

func init() {
	for _, a := range windowActions {
		rootCmd.AddCommand(newWindowCommand(a.action, a.short, a.title))
	}
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(switchCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/wlbar/internal/ui"
)

var outputFormat string

var windowsCmd = &cobra.Command{
	Use:     "windows",
	Aliases: []string{"ls"},
	Short:   "List open windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		windows, err := newClient().Windows(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), outputFormat, windows, func() string {
			if len(windows) == 0 {
				return ui.SubtleStyle.Render("No windows")
			}
			return ui.WindowTable(windows)
		})
	},
}

var workspacesCmd = &cobra.Command{
	Use:     "workspaces",
	Aliases: []string{"ws"},
	Short:   "List workspaces, including pinned placeholders",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newClient().Workspaces(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), outputFormat, list, func() string {
			if len(list) == 0 {
				return ui.SubtleStyle.Render("No workspaces")
			}
			return ui.WorkspaceTable(list)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the wlbar daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newClient().Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("wlbar daemon is not running: %w", err)
		}
		return render(cmd.OutOrStdout(), outputFormat, st, func() string {
			backend := "backend " + st.Backend
			if !st.Alive {
				backend += " (compositor gone, state frozen)"
			}
			lines := ui.FormatAppHeader("wlbar", "") + " " + ui.FormatStatus(st.Alive, backend) + "\n\n"
			lines += fmt.Sprintf("  Windows:    %d (focused %s)\n", st.Windows, st.FocusedWindow)
			lines += fmt.Sprintf("  Workspaces: %d (focused %s)\n", st.Workspaces, st.FocusedWorkspace)
			if len(st.Pinned) > 0 {
				lines += fmt.Sprintf("  Pinned:     %v\n", st.Pinned)
			}
			return lines
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{windowsCmd, workspacesCmd, statusCmd} {
		c.Flags().StringVarP(&outputFormat, "output", "o", formatTable, "Output format (table, json, yaml)")
		rootCmd.AddCommand(c)
	}
}

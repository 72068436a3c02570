package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/wlbar/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of windows and workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		return ui.RunWatch(cmd.Context(), client, client)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

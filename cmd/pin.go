package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/wlbar/internal/config"
	"github.com/bnema/wlbar/internal/logger"
	"github.com/bnema/wlbar/internal/ui"
)

var (
	unpin   bool
	pinSave bool
)

var pinCmd = &cobra.Command{
	Use:   "pin <name>",
	Short: "Keep a workspace name listed even when it does not exist",
	Long: `Pin a workspace name in the running daemon. With --save the name is also
written to the config file so it stays pinned across restarts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		verb := "pinned"
		if unpin {
			verb = "unpinned"
		}

		live := true
		if err := newClient().Pin(cmd.Context(), name, !unpin); err != nil {
			if !pinSave {
				return err
			}
			// saving still works without a daemon
			logger.Debugf("Daemon not updated: %v", err)
			live = false
		}

		if pinSave {
			var err error
			if unpin {
				err = config.RemovePinned(name)
			} else {
				err = config.AddPinned(name)
			}
			if err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(true, fmt.Sprintf("%s %s in %s", verb, name, config.GetConfigPath())))
		}
		if live {
			fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(true, fmt.Sprintf("%s %s", verb, name)))
		}
		return nil
	},
}

func init() {
	pinCmd.Flags().BoolVarP(&unpin, "unpin", "u", false, "Remove the name from the pinned set")
	pinCmd.Flags().BoolVarP(&pinSave, "save", "s", false, "Also persist the change in the config file")
	rootCmd.AddCommand(pinCmd)
}

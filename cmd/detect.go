package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/config"
	"github.com/bnema/wlbar/internal/ui"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print the backend the daemon would use",
	Long: `Probe the configured backends in order without activating any and print the
first one whose compositor is running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		drivers, err := newDrivers(cfg)
		if err != nil {
			return err
		}
		defer func() {
			for _, d := range drivers {
				_ = d.Close()
			}
		}()

		kind, err := backend.Detect(cmd.Context(), drivers...)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), ui.FormatResult(false, fmt.Sprintf("no compositor found (tried %v)", cfg.Backends())))
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), kind)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

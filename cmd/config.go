package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/wlbar/internal/config"
	"github.com/bnema/wlbar/internal/logger"
	"github.com/bnema/wlbar/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage wlbar configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("output")
		return render(cmd.OutOrStdout(), format, viper.AllSettings(), func() string {
			return formatConfig(config.Get(), config.GetConfigPath())
		})
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.GetConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				logger.Infof("Configuration file already exists at: %s", configPath)
				logger.Info("Use --force to overwrite")
				return nil
			}
		}

		if err := config.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.FormatResult(true, "Configuration written to "+configPath))
		return nil
	},
}

func formatConfig(cfg *config.Config, path string) string {
	var b strings.Builder
	b.WriteString(ui.FormatAppHeader("wlbar configuration", path))
	b.WriteString("\n\n")

	section := func(name string) {
		b.WriteString(ui.HeaderStyle.Render("[" + name + "]"))
		b.WriteString("\n")
	}
	line := func(key string, value any) {
		fmt.Fprintf(&b, "  %-18s %v\n", key, value)
	}

	section("backend")
	line("order", cfg.Backend.Order)
	if cfg.Backend.Force != "" {
		line("force", cfg.Backend.Force)
	}
	line("probe_timeout", cfg.Backend.ProbeTimeout)
	line("request_timeout", cfg.Backend.RequestTimeout)
	line("max_message_size", cfg.Backend.MaxMessageSize)

	section("placement")
	line("enabled", cfg.Placement.Enabled)
	line("step", fmt.Sprintf("%d%% x %d%%", cfg.Placement.XStep, cfg.Placement.YStep))
	line("origin", fmt.Sprintf("%d%% x %d%%", cfg.Placement.XOrigin, cfg.Placement.YOrigin))
	line("check_pid", cfg.Placement.CheckPID)

	section("workspaces")
	line("pinned", cfg.Workspaces.Pinned)

	section("ipc")
	line("socket_path", cfg.IPC.SocketPath)

	section("logging")
	level := cfg.Logging.LogLevel
	if level == "" {
		level = "(LOG_LEVEL)"
	}
	line("log_level", level)
	return b.String()
}

func init() {
	configShowCmd.Flags().StringP("output", "o", formatTable, "Output format (table, json, yaml)")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

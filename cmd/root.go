package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/wlbar/internal/config"
	"github.com/bnema/wlbar/internal/ipc"
	"github.com/bnema/wlbar/internal/logger"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "wlbar",
		Short: "wlbar - window and workspace state for Wayland status bars",
		Long: `wlbar keeps a live model of the windows and workspaces of the running
Wayland compositor (sway, Hyprland, wayfire, or any compositor exposing the
foreign toplevel protocol) and serves it to status bar widgets over a local
control socket.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

// Execute runs the root command
func Execute() error {
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("socket", "", "Control socket path")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("ipc.socket_path", rootCmd.PersistentFlags().Lookup("socket"))
}

func initConfig(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		config.SetConfigPath(configPath)
	}
	if err := config.Init(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if level := config.Get().Logging.LogLevel; level != "" {
		logger.SetLevel(level)
	}
	return nil
}

// newClient returns a control socket client for the configured path
func newClient() *ipc.Client {
	return ipc.NewClient(config.Get().IPC.SocketPath)
}


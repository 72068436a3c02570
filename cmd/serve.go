package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/config"
	"github.com/bnema/wlbar/internal/ipc"
	"github.com/bnema/wlbar/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the wlbar daemon",
	Long: `Detect the running compositor, mirror its windows and workspaces, and serve
them on the control socket until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("backend", "b", "", "Force a backend (sway, hyprland, wayland, wayfire)")
	serveCmd.Flags().Bool("placement", false, "Place new floating windows on the free grid")
	serveCmd.Flags().StringSlice("pin", nil, "Workspace names to keep visible")

	// Bind flags to viper
	_ = viper.BindPFlag("backend.force", serveCmd.Flags().Lookup("backend"))
	_ = viper.BindPFlag("placement.enabled", serveCmd.Flags().Lookup("placement"))
	_ = viper.BindPFlag("workspaces.pinned", serveCmd.Flags().Lookup("pin"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	drivers, err := newDrivers(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := backend.NewEnv(cfg.Workspaces.Pinned, cfg.PlacementEngineConfig())
	selector := backend.NewSelector(drivers...)
	driver, err := selector.Select(ctx, env)
	if err != nil {
		return fmt.Errorf("%w (tried %v)", err, cfg.Backends())
	}
	defer func() {
		if err := driver.Close(); err != nil {
			logger.Debugf("Failed to close %s backend: %v", driver.Kind(), err)
		}
	}()

	logger.Infof("Tracking %d windows on %d workspaces", env.Tree.Len(), env.Workspaces.Len())

	server := ipc.NewSocketServer(cfg.IPC.SocketPath, ipc.NewService(env, driver))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// the daemon stays up with frozen state when the compositor goes away
		if err := driver.Run(ctx); err != nil {
			logger.Warnf("%s backend stopped: %v", driver.Kind(), err)
		}
		return nil
	})
	g.Go(func() error {
		return server.Serve(ctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	logger.Info("Shutting down")
	return nil
}

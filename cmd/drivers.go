package cmd

import (
	"fmt"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/backend/hyprland"
	"github.com/bnema/wlbar/internal/backend/sway"
	"github.com/bnema/wlbar/internal/backend/toplevel"
	"github.com/bnema/wlbar/internal/backend/wayfire"
	"github.com/bnema/wlbar/internal/config"
)

// newDrivers builds the drivers named by the config, in priority order
func newDrivers(cfg *config.Config) ([]backend.Driver, error) {
	opts := cfg.BackendOptions()
	names := cfg.Backends()
	drivers := make([]backend.Driver, 0, len(names))
	for _, name := range names {
		switch name {
		case "sway":
			drivers = append(drivers, sway.New(opts))
		case "hyprland":
			drivers = append(drivers, hyprland.New(opts))
		case "wayland":
			drivers = append(drivers, toplevel.New(opts))
		case "wayfire":
			drivers = append(drivers, wayfire.New(opts))
		default:
			return nil, fmt.Errorf("unknown backend %q", name)
		}
	}
	if len(drivers) == 0 {
		return nil, fmt.Errorf("backend.order is empty")
	}
	return drivers, nil
}

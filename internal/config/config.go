// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/wlbar/internal/backend"
	"github.com/bnema/wlbar/internal/placement"
	"github.com/bnema/wlbar/internal/wire"
)

// Config represents the application configuration
type Config struct {
	Backend    BackendConfig    `mapstructure:"backend"`
	Placement  PlacementConfig  `mapstructure:"placement"`
	Workspaces WorkspacesConfig `mapstructure:"workspaces"`
	IPC        IPCConfig        `mapstructure:"ipc"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// BackendConfig controls compositor detection and the socket transports
type BackendConfig struct {
	Order          []string      `mapstructure:"order"`
	Force          string        `mapstructure:"force"` // skip detection and use this backend
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxMessageSize int           `mapstructure:"max_message_size"`
}

// PlacementConfig positions new floating windows on a percent grid
type PlacementConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	XStep    int  `mapstructure:"x_step"`
	YStep    int  `mapstructure:"y_step"`
	XOrigin  int  `mapstructure:"x_origin"`
	YOrigin  int  `mapstructure:"y_origin"`
	CheckPID bool `mapstructure:"check_pid"`
}

// WorkspacesConfig lists workspace names kept visible even when empty
type WorkspacesConfig struct {
	Pinned []string `mapstructure:"pinned"`
}

// IPCConfig contains the control socket settings
type IPCConfig struct {
	SocketPath string `mapstructure:"socket_path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Backend: BackendConfig{
			Order:          []string{"sway", "hyprland", "wayland", "wayfire"},
			ProbeTimeout:   wire.DefaultProbeTimeout,
			RequestTimeout: wire.DefaultRequestTimeout,
			MaxMessageSize: wire.DefaultMaxPayload,
		},
		Placement: PlacementConfig{
			Enabled:  false,
			XStep:    10,
			YStep:    10,
			XOrigin:  10,
			YOrigin:  10,
			CheckPID: true,
		},
		Workspaces: WorkspacesConfig{
			Pinned: []string{},
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath(),
		},
		Logging: LoggingConfig{
			LogLevel: "", // Empty means use LOG_LEVEL env var
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("wlbar")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		// Add config paths in order of precedence
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "wlbar"))
		}
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "wlbar"))
		}
		viper.AddConfigPath("/etc/wlbar")
		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	// Set defaults - need to set individual fields for proper merging
	viper.SetDefault("backend.order", DefaultConfig.Backend.Order)
	viper.SetDefault("backend.force", DefaultConfig.Backend.Force)
	viper.SetDefault("backend.probe_timeout", DefaultConfig.Backend.ProbeTimeout)
	viper.SetDefault("backend.request_timeout", DefaultConfig.Backend.RequestTimeout)
	viper.SetDefault("backend.max_message_size", DefaultConfig.Backend.MaxMessageSize)

	viper.SetDefault("placement.enabled", DefaultConfig.Placement.Enabled)
	viper.SetDefault("placement.x_step", DefaultConfig.Placement.XStep)
	viper.SetDefault("placement.y_step", DefaultConfig.Placement.YStep)
	viper.SetDefault("placement.x_origin", DefaultConfig.Placement.XOrigin)
	viper.SetDefault("placement.y_origin", DefaultConfig.Placement.YOrigin)
	viper.SetDefault("placement.check_pid", DefaultConfig.Placement.CheckPID)

	viper.SetDefault("workspaces.pinned", DefaultConfig.Workspaces.Pinned)
	viper.SetDefault("ipc.socket_path", DefaultConfig.IPC.SocketPath)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	return nil
}

// Validate rejects values no component can work with
func (c *Config) Validate() error {
	known := map[string]bool{"sway": true, "hyprland": true, "wayland": true, "wayfire": true}
	for _, name := range c.Backend.Order {
		if !known[strings.ToLower(name)] {
			return fmt.Errorf("backend.order: unknown backend %q", name)
		}
	}
	if c.Backend.Force != "" && !known[strings.ToLower(c.Backend.Force)] {
		return fmt.Errorf("backend.force: unknown backend %q", c.Backend.Force)
	}
	if c.Backend.MaxMessageSize < 0 {
		return fmt.Errorf("backend.max_message_size must not be negative")
	}
	p := c.Placement
	if p.XStep <= 0 || p.YStep <= 0 {
		return fmt.Errorf("placement steps must be positive, got x=%d y=%d", p.XStep, p.YStep)
	}
	if p.XOrigin < 0 || p.XOrigin > 100 || p.YOrigin < 0 || p.YOrigin > 100 {
		return fmt.Errorf("placement origin must be a percentage, got x=%d y=%d", p.XOrigin, p.YOrigin)
	}
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Backends returns the detection order, or just the forced backend
func (c *Config) Backends() []string {
	if c.Backend.Force != "" {
		return []string{strings.ToLower(c.Backend.Force)}
	}
	order := make([]string, 0, len(c.Backend.Order))
	for _, name := range c.Backend.Order {
		name = strings.ToLower(name)
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}
	return order
}

// BackendOptions returns the transport limits for the drivers
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{
		ProbeTimeout:   c.Backend.ProbeTimeout,
		RequestTimeout: c.Backend.RequestTimeout,
		MaxMessageSize: c.Backend.MaxMessageSize,
	}
}

// PlacementEngineConfig converts the placement section for the engine
func (c *Config) PlacementEngineConfig() placement.Config {
	return placement.Config{
		Enabled:  c.Placement.Enabled,
		XStep:    c.Placement.XStep,
		YStep:    c.Placement.YStep,
		XOrigin:  c.Placement.XOrigin,
		YOrigin:  c.Placement.YOrigin,
		CheckPID: c.Placement.CheckPID,
	}
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		if os.IsPermission(err) && strings.HasPrefix(configPath, "/etc/") {
			return fmt.Errorf("failed to create config directory %s: permission denied. Try running with sudo", dir)
		}
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	// Check if config file is already loaded
	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wlbar", "wlbar.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/wlbar/wlbar.toml"
	}
	return filepath.Join(home, ".config", "wlbar", "wlbar.toml")
}

// AddPinned pins a workspace name in the saved configuration
func AddPinned(name string) error {
	c := Get()
	if slices.Contains(c.Workspaces.Pinned, name) {
		return nil
	}
	c.Workspaces.Pinned = append(c.Workspaces.Pinned, name)
	viper.Set("workspaces.pinned", c.Workspaces.Pinned)
	return Save()
}

// RemovePinned unpins a workspace name in the saved configuration
func RemovePinned(name string) error {
	c := Get()
	i := slices.Index(c.Workspaces.Pinned, name)
	if i < 0 {
		return fmt.Errorf("workspace %s is not pinned", name)
	}
	c.Workspaces.Pinned = slices.Delete(c.Workspaces.Pinned, i, i+1)
	viper.Set("workspaces.pinned", c.Workspaces.Pinned)
	return Save()
}

func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "wlbar.sock")
	}
	user := os.Getenv("USER")
	if user == "" {
		user = fmt.Sprint(os.Getuid())
	}
	return filepath.Join(os.TempDir(), "wlbar-"+user+".sock")
}

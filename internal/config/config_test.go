package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useConfigFile points Init at a fresh file for the duration of the test
func useConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wlbar.toml")
	if contents != "" {
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}
	viper.Reset()
	SetConfigPath(path)
	t.Cleanup(func() {
		SetConfigPath("")
		Set(nil)
		viper.Reset()
	})
	return path
}

func TestInit(t *testing.T) {
	t.Run("initializes with defaults when no config exists", func(t *testing.T) {
		viper.Reset()
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("HOME", t.TempDir())
		t.Chdir(t.TempDir())
		t.Cleanup(func() { Set(nil) })

		require.NoError(t, Init())
		c := Get()
		assert.Equal(t, []string{"sway", "hyprland", "wayland", "wayfire"}, c.Backend.Order)
		assert.Equal(t, 100*time.Millisecond, c.Backend.ProbeTimeout)
		assert.Equal(t, 2*time.Second, c.Backend.RequestTimeout)
		assert.Equal(t, 16<<20, c.Backend.MaxMessageSize)
		assert.False(t, c.Placement.Enabled)
		assert.True(t, c.Placement.CheckPID)
		assert.Equal(t, 10, c.Placement.XStep)
	})

	t.Run("reads values from file", func(t *testing.T) {
		useConfigFile(t, `
[backend]
order = ["hyprland", "sway"]
probe_timeout = "250ms"
max_message_size = 1024

[placement]
enabled = true
x_step = 5

[workspaces]
pinned = ["mail", "chat"]

[ipc]
socket_path = "/tmp/test.sock"

[logging]
log_level = "debug"
`)
		require.NoError(t, Init())
		c := Get()
		assert.Equal(t, []string{"hyprland", "sway"}, c.Backend.Order)
		assert.Equal(t, 250*time.Millisecond, c.Backend.ProbeTimeout)
		assert.Equal(t, 2*time.Second, c.Backend.RequestTimeout, "unset keys keep defaults")
		assert.Equal(t, 1024, c.Backend.MaxMessageSize)
		assert.True(t, c.Placement.Enabled)
		assert.Equal(t, 5, c.Placement.XStep)
		assert.Equal(t, 10, c.Placement.YStep)
		assert.Equal(t, []string{"mail", "chat"}, c.Workspaces.Pinned)
		assert.Equal(t, "/tmp/test.sock", c.IPC.SocketPath)
		assert.Equal(t, "debug", c.Logging.LogLevel)
	})

	t.Run("invalid TOML is an error", func(t *testing.T) {
		useConfigFile(t, "[backend\norder = 1")
		assert.Error(t, Init())
	})

	t.Run("unknown backend is rejected", func(t *testing.T) {
		useConfigFile(t, "[backend]\norder = [\"kwin\"]\n")
		err := Init()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kwin")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"forced backend", func(c *Config) { c.Backend.Force = "Wayfire" }, false},
		{"unknown forced backend", func(c *Config) { c.Backend.Force = "mutter" }, true},
		{"zero step", func(c *Config) { c.Placement.XStep = 0 }, true},
		{"origin over 100", func(c *Config) { c.Placement.YOrigin = 120 }, true},
		{"negative message size", func(c *Config) { c.Backend.MaxMessageSize = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig
			c.Backend.Order = append([]string(nil), DefaultConfig.Backend.Order...)
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBackends(t *testing.T) {
	c := DefaultConfig
	c.Backend.Order = []string{"Hyprland", "sway", "hyprland"}
	assert.Equal(t, []string{"hyprland", "sway"}, c.Backends())

	c.Backend.Force = "Wayland"
	assert.Equal(t, []string{"wayland"}, c.Backends())
}

func TestConversions(t *testing.T) {
	c := DefaultConfig
	c.Placement.Enabled = true
	c.Placement.XOrigin = 30

	p := c.PlacementEngineConfig()
	assert.True(t, p.Enabled)
	assert.Equal(t, 30, p.XOrigin)
	assert.True(t, p.CheckPID)

	o := c.BackendOptions()
	assert.Equal(t, c.Backend.ProbeTimeout, o.ProbeTimeout)
	assert.Equal(t, c.Backend.MaxMessageSize, o.MaxMessageSize)
}

func TestConfigPathResolution(t *testing.T) {
	t.Run("override wins", func(t *testing.T) {
		path := useConfigFile(t, "")
		assert.Equal(t, path, GetConfigPath())
	})

	t.Run("xdg config home", func(t *testing.T) {
		viper.Reset()
		t.Setenv("XDG_CONFIG_HOME", "/home/testuser/.xdg")
		assert.Equal(t, "/home/testuser/.xdg/wlbar/wlbar.toml", GetConfigPath())
	})

	t.Run("home fallback", func(t *testing.T) {
		viper.Reset()
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/testuser")
		assert.Equal(t, "/home/testuser/.config/wlbar/wlbar.toml", GetConfigPath())
	})
}

func TestPinnedPersistence(t *testing.T) {
	path := useConfigFile(t, "[workspaces]\npinned = [\"mail\"]\n")
	require.NoError(t, Init())

	require.NoError(t, AddPinned("chat"))
	require.NoError(t, AddPinned("mail"))
	assert.Equal(t, []string{"mail", "chat"}, Get().Workspaces.Pinned)

	require.NoError(t, RemovePinned("mail"))
	assert.Error(t, RemovePinned("music"))

	// a fresh load sees the saved file
	viper.Reset()
	SetConfigPath(path)
	require.NoError(t, Init())
	assert.Equal(t, []string{"chat"}, Get().Workspaces.Pinned)
}

func TestDefaultSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/wlbar.sock", defaultSocketPath())

	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("USER", "alice")
	assert.Equal(t, filepath.Join(os.TempDir(), "wlbar-alice.sock"), defaultSocketPath())
}

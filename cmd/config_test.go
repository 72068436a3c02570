package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bnema/wlbar/internal/config"
)

// isolate points the config file at a temporary home. The path is pinned
// because viper keeps the first config file it finds for the process.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Chdir(t.TempDir())
	config.SetConfigPath(filepath.Join(home, ".config", "wlbar", "wlbar.toml"))
	t.Cleanup(func() {
		config.SetConfigPath("")
		config.Set(nil)
	})
	return home
}

func executeCommand(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, err := executeCommand("version")
	require.NoError(t, err)
	assert.Contains(t, out, "wlbar "+Version)
}

func TestConfigPath(t *testing.T) {
	home := isolate(t)
	out, err := executeCommand("config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "wlbar", "wlbar.toml"), strings.TrimSpace(out))
}

func TestConfigInit(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".config", "wlbar", "wlbar.toml")

	_, err := executeCommand("config", "init")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[backend]")

	// an existing file is left alone without --force
	require.NoError(t, os.WriteFile(path, []byte("[workspaces]\npinned = [\"mail\"]\n"), 0o644))
	_, err = executeCommand("config", "init")
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mail")
}

func TestConfigShow(t *testing.T) {
	isolate(t)

	out, err := executeCommand("config", "show", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "[backend]")
	assert.Contains(t, out, "sway")

	out, err = executeCommand("config", "show", "-o", "json")
	require.NoError(t, err)
	var settings map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &settings))
	assert.Contains(t, settings, "placement")
}

func TestRender(t *testing.T) {
	v := map[string]any{"name": "mail", "pinned": true}
	table := func() string { return "TABLE" }

	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{"", func(t *testing.T, out string) { assert.Equal(t, "TABLE\n", out) }},
		{"table", func(t *testing.T, out string) { assert.Equal(t, "TABLE\n", out) }},
		{"json", func(t *testing.T, out string) {
			var got map[string]any
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			assert.Equal(t, "mail", got["name"])
		}},
		{"yaml", func(t *testing.T, out string) {
			var got map[string]any
			require.NoError(t, yaml.Unmarshal([]byte(out), &got))
			assert.Equal(t, true, got["pinned"])
		}},
	}

	for _, tt := range tests {
		t.Run("format "+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, render(&buf, tt.format, v, table))
			tt.check(t, buf.String())
		})
	}

	assert.Error(t, render(&bytes.Buffer{}, "xml", v, table))
}

func TestNewDrivers(t *testing.T) {
	cfg := config.DefaultConfig
	drivers, err := newDrivers(&cfg)
	require.NoError(t, err)

	var kinds []string
	for _, d := range drivers {
		kinds = append(kinds, d.Kind().String())
	}
	assert.Equal(t, []string{"sway", "hyprland", "wayland", "wayfire"}, kinds)

	cfg.Backend.Force = "wayfire"
	drivers, err = newDrivers(&cfg)
	require.NoError(t, err)
	require.Len(t, drivers, 1)
	assert.Equal(t, "wayfire", drivers[0].Kind().String())

	cfg.Backend.Force = ""
	cfg.Backend.Order = nil
	_, err = newDrivers(&cfg)
	assert.Error(t, err)
}

package hyprland

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/placement"
)

// minimizedWorkspace is the special workspace standing in for "minimized"
const minimizedWorkspace = "special:minimized"

type workspaceRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// special reports whether the reference is a special (scratch) workspace.
// Those are never listed in the registry.
func (w workspaceRef) special() bool {
	return w.ID < 0 || strings.HasPrefix(w.Name, "special:")
}

// fullscreenMode decodes both the legacy boolean and the current 0/1/2 value
type fullscreenMode int

func (f *fullscreenMode) UnmarshalJSON(b []byte) error {
	var asBool bool
	if err := json.Unmarshal(b, &asBool); err == nil {
		if asBool {
			*f = 2
		} else {
			*f = 0
		}
		return nil
	}
	var asInt int
	if err := json.Unmarshal(b, &asInt); err != nil {
		return fmt.Errorf("fullscreen: %w", err)
	}
	*f = fullscreenMode(asInt)
	return nil
}

type client struct {
	Address    string         `json:"address"`
	Mapped     bool           `json:"mapped"`
	Hidden     bool           `json:"hidden"`
	At         []int          `json:"at"`
	Size       []int          `json:"size"`
	Workspace  workspaceRef   `json:"workspace"`
	Floating   bool           `json:"floating"`
	Monitor    int            `json:"monitor"`
	Class      string         `json:"class"`
	Title      string         `json:"title"`
	PID        int            `json:"pid"`
	Fullscreen fullscreenMode `json:"fullscreen"`
}

func (c client) rect() placement.Rect {
	var r placement.Rect
	if len(c.At) == 2 {
		r.X, r.Y = c.At[0], c.At[1]
	}
	if len(c.Size) == 2 {
		r.Width, r.Height = c.Size[0], c.Size[1]
	}
	return r
}

type workspaceInfo struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Monitor string `json:"monitor"`
	Windows int    `json:"windows"`
}

type monitor struct {
	ID              int          `json:"id"`
	Name            string       `json:"name"`
	X               int          `json:"x"`
	Y               int          `json:"y"`
	Width           int          `json:"width"`
	Height          int          `json:"height"`
	Scale           float64      `json:"scale"`
	Transform       int          `json:"transform"`
	Focused         bool         `json:"focused"`
	ActiveWorkspace workspaceRef `json:"activeWorkspace"`
}

// rect returns the monitor area in layout (logical) coordinates
func (m monitor) rect() placement.Rect {
	w, h := m.Width, m.Height
	if m.Transform%2 == 1 {
		w, h = h, w
	}
	if m.Scale > 0 {
		w = int(float64(w) / m.Scale)
		h = int(float64(h) / m.Scale)
	}
	return placement.Rect{X: m.X, Y: m.Y, Width: w, Height: h}
}

func parseAddress(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	return strconv.ParseUint(s, 16, 64)
}

func windowID(addr uint64) handle.ID {
	return handle.New(handle.KindHyprland, addr)
}

func windowFromAddress(s string) (handle.ID, bool) {
	addr, err := parseAddress(s)
	if err != nil || addr == 0 {
		return handle.Nil, false
	}
	return windowID(addr), true
}

func workspaceID(id int) handle.ID {
	return handle.New(handle.KindHyprland, uint64(id)) //nolint:gosec // special workspaces are filtered first
}

func address(id handle.ID) string {
	return fmt.Sprintf("address:0x%x", id.Value)
}

package sway

import (
	"github.com/bnema/wlbar/internal/placement"
)

// i3-ipc message types
const (
	msgRunCommand    uint32 = 0
	msgGetWorkspaces uint32 = 1
	msgSubscribe     uint32 = 2
	msgGetTree       uint32 = 4
)

// i3-ipc event types (high bit set)
const (
	eventWorkspace uint32 = 0x80000000
	eventOutput    uint32 = 0x80000001
	eventWindow    uint32 = 0x80000003
	eventShutdown  uint32 = 0x80000006
)

// scratchpad is the pseudo-workspace holding minimized windows
const scratchpad = "__i3_scratch"

var subscribedEvents = []string{"window", "workspace", "output", "shutdown"}

type rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r rect) toPlacement() placement.Rect {
	return placement.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

type windowProperties struct {
	Class    string `json:"class"`
	Instance string `json:"instance"`
	Title    string `json:"title"`
}

// node is a container in the sway layout tree
type node struct {
	ID             uint64            `json:"id"`
	Name           string            `json:"name"`
	Type           string            `json:"type"`
	Output         string            `json:"output"`
	AppID          *string           `json:"app_id"`
	PID            int               `json:"pid"`
	Focused        bool              `json:"focused"`
	Urgent         bool              `json:"urgent"`
	FullscreenMode int               `json:"fullscreen_mode"`
	Rect           rect              `json:"rect"`
	Window         *int              `json:"window"`
	Properties     *windowProperties `json:"window_properties"`
	Nodes          []node            `json:"nodes"`
	FloatingNodes  []node            `json:"floating_nodes"`
}

// isView reports whether the node is an application window rather than a
// split container
func (n *node) isView() bool {
	if n.Type != "con" && n.Type != "floating_con" {
		return false
	}
	return n.AppID != nil || n.Window != nil || n.Properties != nil
}

func (n *node) appID() string {
	if n.AppID != nil {
		return *n.AppID
	}
	if n.Properties != nil {
		return n.Properties.Class
	}
	return ""
}

func (n *node) floating() bool {
	return n.Type == "floating_con"
}

type workspaceReply struct {
	ID      uint64 `json:"id"`
	Num     int    `json:"num"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Focused bool   `json:"focused"`
	Urgent  bool   `json:"urgent"`
	Output  string `json:"output"`
	Rect    rect   `json:"rect"`
}

type commandResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type windowEvent struct {
	Change    string `json:"change"`
	Container node   `json:"container"`
}

type workspaceEvent struct {
	Change  string `json:"change"`
	Current *node  `json:"current"`
	Old     *node  `json:"old"`
}

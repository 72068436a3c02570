package wayfire

import (
	"encoding/json"
	"strconv"

	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/placement"
)

const (
	methodListViews     = "window-rules/list-views"
	methodListOutputs   = "window-rules/list-outputs"
	methodWatch         = "window-rules/events/watch"
	methodFocusView     = "window-rules/focus-view"
	methodCloseView     = "window-rules/close-view"
	methodConfigureView = "window-rules/configure-view"
	methodSetMinimized  = "wm-actions/set-minimized"
	methodSetFullscreen = "wm-actions/set-fullscreen"
	methodSetWorkspace  = "vswitch/set-workspace"
	methodSendView      = "vswitch/send-view"
	allEdges            = 15
	toplevelRole        = "toplevel"
	watchReplyOK        = "ok"
)

type request struct {
	Method string `json:"method"`
	Data   any    `json:"data"`
}

// status is the generic {"result": "ok"} / {"error": "..."} reply
type status struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

type rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r rect) toPlacement() placement.Rect {
	return placement.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

type grid struct {
	X          int `json:"x"`
	Y          int `json:"y"`
	GridWidth  int `json:"grid_width"`
	GridHeight int `json:"grid_height"`
}

type output struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Geometry  rect   `json:"geometry"`
	Workarea  rect   `json:"workarea"`
	Workspace grid   `json:"workspace"`
}

// area is the usable output area in output-local coordinates, which is the
// space view geometry is reported in
func (o output) area() placement.Rect {
	if o.Workarea.Width > 0 && o.Workarea.Height > 0 {
		return o.Workarea.toPlacement()
	}
	return placement.Rect{Width: o.Geometry.Width, Height: o.Geometry.Height}
}

type view struct {
	ID         int    `json:"id"`
	PID        int    `json:"pid"`
	Title      string `json:"title"`
	AppID      string `json:"app-id"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	Mapped     bool   `json:"mapped"`
	Minimized  bool   `json:"minimized"`
	Fullscreen bool   `json:"fullscreen"`
	TiledEdges int    `json:"tiled-edges"`
	Activated  bool   `json:"activated"`
	OutputID   int    `json:"output-id"`
	OutputName string `json:"output-name"`
	Geometry   rect   `json:"geometry"`
}

// toplevel filters out panels, backgrounds and other shell surfaces
func (v view) toplevel() bool {
	if v.Role != "" {
		return v.Role == toplevelRole
	}
	return v.Type == toplevelRole
}

func (v view) floating() bool {
	return v.TiledEdges == 0 && !v.Fullscreen
}

type coords struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type event struct {
	Event        string          `json:"event"`
	View         *view           `json:"view"`
	Output       json.RawMessage `json:"output"`
	OutputData   *output         `json:"output-data"`
	NewWorkspace *coords         `json:"new-workspace"`
}

// outputRef decodes the "output" member, which is an id on workspace events
// and a full object on output add/remove events
func (e event) outputRef() (output, bool) {
	if e.OutputData != nil {
		return *e.OutputData, true
	}
	if len(e.Output) == 0 {
		return output{}, false
	}
	var o output
	if err := json.Unmarshal(e.Output, &o); err == nil {
		return o, true
	}
	var id int
	if err := json.Unmarshal(e.Output, &id); err == nil {
		return output{ID: id}, true
	}
	return output{}, false
}

func windowID(id int) handle.ID {
	return handle.New(handle.KindWayfire, uint64(id)) //nolint:gosec // view ids are positive
}

func viewID(id handle.ID) int {
	return int(id.Value) //nolint:gosec // ids come from windowID
}

// workspaceID numbers grid cells row by row starting at 1
func workspaceID(x, y, width int) handle.ID {
	return handle.New(handle.KindWayfire, uint64(y*width+x+1)) //nolint:gosec // grid cells are small
}

// cell is the inverse of workspaceID
func cell(id handle.ID, width int) (x, y int) {
	n := int(id.Value) - 1 //nolint:gosec // grid cells are small
	return n % width, n / width
}

func workspaceName(id handle.ID) string {
	return strconv.FormatUint(id.Value, 10)
}

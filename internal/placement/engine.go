package placement

import (
	"context"
	"slices"

	"github.com/bnema/wlbar/internal/handle"
	"github.com/bnema/wlbar/internal/logger"
	"github.com/bnema/wlbar/internal/wintree"
)

// Config holds the placement parameters. Steps and origins are percentages
// of the output size.
type Config struct {
	Enabled  bool
	XStep    int
	YStep    int
	XOrigin  int
	YOrigin  int
	CheckPID bool
}

// DefaultConfig returns placement disabled with a 10% grid
func DefaultConfig() Config {
	return Config{
		XStep:    10,
		YStep:    10,
		XOrigin:  10,
		YOrigin:  10,
		CheckPID: true,
	}
}

// Target is the backend side of placement: a geometry query and a move
// command. Backends that cannot answer the query return an error.
type Target interface {
	Geometry(ctx context.Context, workspace, window handle.ID) (Geometry, error)
	MoveWindow(ctx context.Context, window handle.ID, x, y int) error
}

// PIDCounter reports how many tracked windows a process owns
type PIDCounter interface {
	CountByPID(pid int) int
}

// Engine places newly mapped floating windows
type Engine struct {
	cfg     Config
	windows PIDCounter
}

// NewEngine creates an engine. windows may be nil when the pid policy is off.
func NewEngine(cfg Config, windows PIDCounter) *Engine {
	return &Engine{cfg: cfg, windows: windows}
}

// Config returns the engine's parameters
func (e *Engine) Config() Config {
	return e.cfg
}

// Place positions w on its workspace and sends a single move command. It
// returns false whenever placement was skipped; failures are never errors.
func (e *Engine) Place(ctx context.Context, target Target, w wintree.Window) (Rect, bool) {
	if e == nil || !e.cfg.Enabled || target == nil {
		return Rect{}, false
	}

	if e.cfg.CheckPID && e.windows != nil && w.PID != wintree.UnknownPID {
		// the candidate itself is already in the tree
		if e.windows.CountByPID(w.PID) > 1 {
			logger.Debugf("Skipping placement of %s: pid %d already has a window", w.ID, w.PID)
			return Rect{}, false
		}
	}

	geom, err := target.Geometry(ctx, w.Workspace, w.ID)
	if err != nil {
		logger.Debugf("Skipping placement of %s: %v", w.ID, err)
		return Rect{}, false
	}

	self, ok := geom.Target()
	if !ok {
		logger.Debugf("Skipping placement of %s: window not in geometry", w.ID)
		return Rect{}, false
	}

	pos, ok := Compute(e.cfg, self, geom.Output, geom.Obstacles())
	if !ok {
		return Rect{}, false
	}

	if err := target.MoveWindow(ctx, w.ID, pos.X, pos.Y); err != nil {
		logger.Debugf("Failed to move %s: %v", w.ID, err)
		return Rect{}, false
	}
	return pos, true
}

// Compute finds a position for win on output that avoids obstacles. Only the
// top-left corner of win is changed. With no obstacles the configured origin
// is used directly.
func Compute(cfg Config, win, output Rect, obstacles []Rect) (Rect, bool) {
	if output.Empty() {
		return Rect{}, false
	}

	if len(obstacles) == 0 {
		return win.At(
			output.X+output.Width*cfg.XOrigin/100,
			output.Y+output.Height*cfg.YOrigin/100,
		), true
	}

	best, found := stepPass(cfg, win, output, obstacles)

	if precise, ok := edgePass(win, output, obstacles); ok {
		return precise, true
	}
	return best, found
}

// stepPass walks the percentage grid and takes the first position that does
// not stack exactly on an obstacle's top-left corner.
func stepPass(cfg Config, win, output Rect, obstacles []Rect) (Rect, bool) {
	xs := steps(output.X, output.Width, cfg.XOrigin, cfg.XStep)
	ys := steps(output.Y, output.Height, cfg.YOrigin, cfg.YStep)

	for _, y := range ys {
		for _, x := range xs {
			stacked := slices.ContainsFunc(obstacles, func(o Rect) bool {
				return o.X == x && o.Y == y
			})
			if !stacked {
				return win.At(x, y), true
			}
		}
	}
	return Rect{}, false
}

func steps(base, size, origin, step int) []int {
	if step <= 0 {
		step = 100
	}
	var out []int
	for pct := origin; pct < 100; pct += step {
		out = append(out, base+size*pct/100)
	}
	return out
}

// edgePass tries every combination of obstacle edges and the output origin,
// from the highest coordinates down, keeping the last valid position. The
// result is the valid position furthest to the top-left.
func edgePass(win, output Rect, obstacles []Rect) (Rect, bool) {
	xs := []int{output.X}
	ys := []int{output.Y}
	for _, o := range obstacles {
		xs = append(xs, o.X, o.Right())
		ys = append(ys, o.Y, o.Bottom())
	}
	xs = descending(xs)
	ys = descending(ys)

	var best Rect
	found := false
	for _, x := range xs {
		for _, y := range ys {
			candidate := win.At(x, y)
			if !output.Contains(candidate) {
				continue
			}
			if slices.ContainsFunc(obstacles, candidate.Overlaps) {
				continue
			}
			best = candidate
			found = true
		}
	}
	return best, found
}

func descending(v []int) []int {
	slices.Sort(v)
	v = slices.Compact(v)
	slices.Reverse(v)
	return v
}

// Package placement computes non-overlapping positions for new floating windows.
package placement

import "fmt"

// Rect is an axis-aligned rectangle in compositor layout coordinates
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) Right() int  { return r.X + r.Width }
func (r Rect) Bottom() int { return r.Y + r.Height }

// At returns r moved so its top-left corner is (x, y)
func (r Rect) At(x, y int) Rect {
	r.X, r.Y = x, y
	return r
}

// Overlaps reports whether r and o share any area. Touching edges do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	if r.Right() <= o.X || o.Right() <= r.X {
		return false
	}
	if r.Bottom() <= o.Y || o.Bottom() <= r.Y {
		return false
	}
	return true
}

// Contains reports whether o lies entirely inside r
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.Right() <= r.Right() && o.Bottom() <= r.Bottom()
}

// Empty reports whether r has no area
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Geometry describes a workspace as seen by a backend: the rectangles of its
// windows, the rectangle of the output it is shown on, and the index in
// Windows of the window being placed (-1 when it is not among them).
type Geometry struct {
	Windows []Rect `json:"windows"`
	Output  Rect   `json:"output"`
	Focused int    `json:"focused"`
}

// Count is the number of window rectangles
func (g Geometry) Count() int {
	return len(g.Windows)
}

// Target returns the rectangle of the window being placed
func (g Geometry) Target() (Rect, bool) {
	if g.Focused < 0 || g.Focused >= len(g.Windows) {
		return Rect{}, false
	}
	return g.Windows[g.Focused], true
}

// Obstacles returns every rectangle except the target's
func (g Geometry) Obstacles() []Rect {
	out := make([]Rect, 0, len(g.Windows))
	for i, r := range g.Windows {
		if i != g.Focused {
			out = append(out, r)
		}
	}
	return out
}

package window

import (
	"errors"

	"github.com/Carmen-Shannon/prism/common"
)

var errNotOpen = errors.New("window: not open")

type dragEvent struct {
	button common.MouseButton
	dx, dy float32
}

// dragTracker turns button and cursor events into per-button movement deltas.
type dragTracker struct {
	held   []common.MouseButton
	x, y   float64
	placed bool
}

func (d *dragTracker) button(b common.MouseButton, pressed bool, x, y float64) {
	i := d.index(b)
	switch {
	case pressed && i < 0:
		d.held = append(d.held, b)
	case !pressed && i >= 0:
		d.held = append(d.held[:i], d.held[i+1:]...)
	}
	d.x, d.y, d.placed = x, y, true
}

// move records the cursor position and returns one event per held button. The first
// position seen produces no movement.
func (d *dragTracker) move(x, y float64) []dragEvent {
	dx, dy := float32(x-d.x), float32(y-d.y)
	first := !d.placed
	d.x, d.y, d.placed = x, y, true
	if first || (dx == 0 && dy == 0) {
		return nil
	}
	out := make([]dragEvent, 0, len(d.held))
	for _, b := range d.held {
		out = append(out, dragEvent{button: b, dx: dx, dy: dy})
	}
	return out
}

func (d *dragTracker) index(b common.MouseButton) int {
	for i, h := range d.held {
		if h == b {
			return i
		}
	}
	return -1
}

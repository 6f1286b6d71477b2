package drawing

import (
	"math"

	"spill-map/pkg/geometry"
)

// PointerEvent carries the positions a pointer event may report.
// Page is relative to the whole window. Layer is relative to the surface.
// Legacy is the older surface-relative field some sources still send.
type PointerEvent struct {
	Page   *geometry.Point2D
	Layer  *geometry.Point2D
	Legacy *geometry.Point2D
}

// At builds an event reporting the same surface position in Layer and the
// page position offset by origin.
func At(x, y float64, origin geometry.Point2D) PointerEvent {
	layer := geometry.Point2D{X: x, Y: y}
	page := layer.Add(origin)
	return PointerEvent{Page: &page, Layer: &layer}
}

// Normalize returns the surface-relative position of ev, preferring Layer
// over Legacy. It reports false when neither is usable.
func Normalize(ev PointerEvent) (geometry.Point2D, bool) {
	for _, p := range []*geometry.Point2D{ev.Layer, ev.Legacy} {
		if p != nil && finite(*p) {
			return *p, true
		}
	}
	return geometry.Point2D{}, false
}

// release computes where a pointer-up landed on a surface whose top-left
// corner sits at offset in page space.
func release(ev PointerEvent, offset geometry.Point2D) (geometry.Point2D, bool) {
	if ev.Page != nil && finite(*ev.Page) {
		return ev.Page.Sub(offset), true
	}
	return Normalize(ev)
}

func finite(p geometry.Point2D) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Gesture is the state of a drag in progress.
type Gesture struct {
	Pressed bool
	Moved   bool
	Origin  geometry.Point2D
}

// Package selection handles rectangle selection and click capture over the
// displayed frame, in page coordinates.
package selection

import (
	"log/slog"

	"spill-map/internal/app"
	"spill-map/internal/cursor"
	"spill-map/internal/logging"
	"spill-map/pkg/geometry"
)

// AffordanceSource reports which interactions the current mode allows.
type AffordanceSource interface {
	Affordances() cursor.Affordances
}

// Tracker turns selection gestures and clicks into bus events.
// It is not safe for concurrent use.
type Tracker struct {
	modes AffordanceSource
	bus   *app.Bus
	log   *slog.Logger

	active bool
	start  geometry.Point2D
}

// NewTracker creates a Tracker.
func NewTracker(modes AffordanceSource, bus *app.Bus, logger *slog.Logger) *Tracker {
	if bus == nil {
		bus = app.NewBus()
	}
	return &Tracker{modes: modes, bus: bus, log: logging.Component(logger, "selection")}
}

// Start records where a selection drag began.
func (t *Tracker) Start(page geometry.Point2D) {
	t.active = true
	t.start = page
}

// End finishes a selection drag and emits EventDraggingFinished when
// rectangle selection is enabled. It reports whether an event was emitted.
func (t *Tracker) End(page geometry.Point2D) bool {
	if !t.active {
		return false
	}
	t.active = false
	if !t.modes.Affordances().RectangleSelect {
		return false
	}
	t.log.Debug("selection finished", "start", t.start, "end", page)
	t.bus.Emit(app.EventDraggingFinished, app.DraggingFinished{t.start, page})
	return true
}

// Click emits EventMapClicked with the raw page position when click capture
// is enabled and the click landed on the displayed frame.
func (t *Tracker) Click(page geometry.Point2D, onDisplayedFrame bool) bool {
	if !onDisplayedFrame || !t.modes.Affordances().ClickCapture {
		return false
	}
	t.bus.Emit(app.EventMapClicked, app.MapClicked{X: page.X, Y: page.Y})
	return true
}

// Normalize orders two selection corners into a rectangle.
func Normalize(start, end geometry.Point2D) geometry.Rect {
	return geometry.RectFromCorners(start, end)
}

// Clamp trims a selection rectangle to the map's bounding box.
func Clamp(r, bbox geometry.Rect) geometry.Rect {
	return r.Intersect(bbox)
}

// Inside reports whether p lies strictly within the bounding box.
func Inside(p geometry.Point2D, bbox geometry.Rect) bool {
	return bbox.ContainsStrict(p)
}

// RectInside reports whether both corners of r lie strictly within bbox.
func RectInside(r, bbox geometry.Rect) bool {
	return Inside(r.TopLeft(), bbox) && Inside(r.BottomRight(), bbox)
}

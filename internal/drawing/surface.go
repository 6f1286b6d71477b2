package drawing

import (
	"image/color"
	"log/slog"

	"spill-map/internal/app"
	"spill-map/internal/logging"
	"spill-map/internal/metrics"
	"spill-map/internal/transform"
	"spill-map/pkg/geometry"
)

// Gate reports whether drags currently draw spills.
type Gate interface {
	DrawingEnabled() bool
}

// Options configures a Surface.
type Options struct {
	Gate   Gate
	Bounds *geometry.GeoBounds
	Bus    *app.Bus
	Logger *slog.Logger
	View   string
	// Color of preview and committed lines. Defaults to app.SpillColor.
	Color *color.RGBA
}

// Surface owns a persistent layer for committed spills and a preview layer
// for the drag in progress. It is not safe for concurrent use.
type Surface struct {
	gate   Gate
	bounds *geometry.GeoBounds
	bus    *app.Bus
	log    *slog.Logger
	view   string
	color  color.RGBA

	size       geometry.Size
	persistent *Layer
	preview    *Layer
	gesture    Gesture
	offset     geometry.Point2D
}

// NewSurface creates a surface without layers. Call Resize once the map
// image size is known.
func NewSurface(opts Options) *Surface {
	bus := opts.Bus
	if bus == nil {
		bus = app.NewBus()
	}
	col := color.RGBAModel.Convert(app.SpillColor).(color.RGBA)
	if opts.Color != nil {
		col = *opts.Color
	}
	return &Surface{
		gate:   opts.Gate,
		bounds: opts.Bounds,
		bus:    bus,
		log:    logging.Component(opts.Logger, "drawing"),
		view:   opts.View,
		color:  col,
	}
}

// Resize recreates both layers at size and drops any gesture in progress.
func (s *Surface) Resize(size geometry.Size) {
	s.gesture = Gesture{}
	if size.IsEmpty() {
		s.Teardown()
		return
	}
	w, h := size.Ints()
	s.size = size
	s.persistent = NewLayer(w, h)
	s.preview = NewLayer(w, h)
}

// Teardown removes both layers.
func (s *Surface) Teardown() {
	s.size = geometry.Size{}
	s.persistent = nil
	s.preview = nil
	s.gesture = Gesture{}
}

// SetOffset records where the surface's top-left corner is in page space.
func (s *Surface) SetOffset(p geometry.Point2D) {
	s.offset = p
}

// Offset returns the page offset set by SetOffset.
func (s *Surface) Offset() geometry.Point2D {
	return s.offset
}

// Layers returns the persistent and preview layers, both nil before Resize.
func (s *Surface) Layers() (persistent, preview *Layer) {
	return s.persistent, s.preview
}

// Gesture returns the current drag state.
func (s *Surface) Gesture() Gesture {
	return s.gesture
}

func (s *Surface) enabled() bool {
	return s.gate != nil && s.gate.DrawingEnabled()
}

func (s *Surface) transform() transform.Transform {
	return transform.New(s.bounds, s.size)
}

// PointerDown starts a drag when drawing is enabled.
func (s *Surface) PointerDown(ev PointerEvent) {
	if !s.enabled() {
		return
	}
	origin, ok := Normalize(ev)
	if !ok {
		s.log.Debug("pointer down without position")
		return
	}
	s.gesture = Gesture{Pressed: true, Origin: origin}
}

// PointerMove redraws the preview line from the drag origin.
func (s *Surface) PointerMove(ev PointerEvent) {
	if !s.gesture.Pressed || !s.enabled() {
		return
	}
	cur, ok := Normalize(ev)
	if !ok {
		return
	}
	s.gesture.Moved = true
	if s.preview == nil {
		return
	}
	s.preview.Clear()
	s.preview.DrawLine(s.gesture.Origin.Round(), cur.Round(), s.color, LineWidth)
}

// PointerUp commits the drag to the persistent layer and, if the pointer
// moved, emits EventSpillDrawn with both ends in [lon, lat].
func (s *Surface) PointerUp(ev PointerEvent) {
	if !s.gesture.Pressed || !s.enabled() {
		return
	}
	g := s.gesture
	s.gesture = Gesture{}

	end, ok := release(ev, s.offset)
	if !ok {
		s.log.Debug("pointer up without position, drag dropped")
		if s.preview != nil {
			s.preview.Clear()
		}
		return
	}

	if s.persistent != nil {
		s.persistent.DrawLine(g.Origin.Round(), end.Round(), s.color, LineWidth)
		s.preview.Clear()
	}

	if !g.Moved {
		return
	}

	t := s.transform()
	start, err := t.PixelToGeo(g.Origin)
	if err != nil {
		s.log.Error("spill dropped", "error", err)
		return
	}
	stop, err := t.PixelToGeo(end)
	if err != nil {
		s.log.Error("spill dropped", "error", err)
		return
	}

	outside := !t.Bounds.Contains(start) || !t.Bounds.Contains(stop)
	if outside {
		s.log.Warn("spill extends past the map region", "start", start.LonLat(), "end", stop.LonLat())
	}

	metrics.SpillsDrawn.WithLabelValues(s.view).Inc()
	s.log.Info("spill drawn", "start", start.LonLat(), "end", stop.LonLat())
	s.bus.Emit(app.EventSpillDrawn, app.SpillDrawn{Start: start.LonLat(), End: stop.LonLat(), Outside: outside})
}

// RenderSpills clears both layers and draws a mark for every spill with a
// start position. Coincident endpoints get a short diagonal so the mark
// stays visible. It does nothing before Resize.
func (s *Surface) RenderSpills(spills []Spill) error {
	if s.persistent == nil || s.preview == nil {
		return nil
	}
	s.persistent.Clear()
	s.preview.Clear()

	t := s.transform()
	for _, sp := range spills {
		start, end, ok := sp.Endpoints()
		if !ok {
			continue
		}
		a, err := t.GeoToPixel(start)
		if err != nil {
			return err
		}
		b, err := t.GeoToPixel(end)
		if err != nil {
			return err
		}
		if start == end {
			b = b.Add(2, 2)
		}
		s.persistent.DrawLine(a, b, s.color, LineWidth)
	}
	return nil
}

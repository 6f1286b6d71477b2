// Package canvas provides the fyne widget that displays a map view and feeds
// it pointer input.
package canvas

import (
	"context"
	"image"
	"sync"
	"time"

	"spill-map/internal/app"
	"spill-map/internal/cursor"
	"spill-map/internal/drawing"
	"spill-map/internal/mapview"
	"spill-map/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

const renderTimeout = 250 * time.Millisecond

// MapCanvas shows the composited map and routes mouse input to the view.
type MapCanvas struct {
	widget.BaseWidget

	view *mapview.View

	raster      *fynecanvas.Raster
	content     *pointerContent
	scroll      *container.Scroll
	placeholder *widget.Label
	stack       *fyne.Container

	mu      sync.Mutex
	imgSize fyne.Size
	pressed bool
}

// NewMapCanvas creates a canvas bound to view.
func NewMapCanvas(view *mapview.View) *MapCanvas {
	mc := &MapCanvas{
		view:    view,
		imgSize: fyne.NewSize(400, 300),
	}

	mc.raster = fynecanvas.NewRaster(mc.draw)
	mc.raster.ScaleMode = fynecanvas.ImageScalePixels
	mc.raster.SetMinSize(mc.imgSize)

	mc.content = newPointerContent(mc)
	mc.scroll = container.NewScroll(mc.content)

	mc.placeholder = widget.NewLabel("No map loaded")
	mc.placeholder.Alignment = fyne.TextAlignCenter
	mc.placeholder.Hide()

	mc.stack = container.NewStack(mc.scroll, container.NewCenter(mc.placeholder))

	mc.subscribe(view.Bus())
	mc.ExtendBaseWidget(mc)
	return mc
}

// subscribe wires view events to redraws. Listeners may run on the view's
// loop, so anything that queries the view is moved to its own goroutine.
func (mc *MapCanvas) subscribe(bus *app.Bus) {
	redraw := func(interface{}) { mc.raster.Refresh() }

	bus.On(app.EventFrameChanged, redraw)
	bus.On(app.EventSpillDrawn, redraw)
	bus.On(app.EventReady, func(interface{}) { go mc.syncSize() })
	bus.On(app.EventPlaceholderChanged, func(data interface{}) {
		if show, ok := data.(bool); ok && show {
			mc.placeholder.Show()
		} else {
			mc.placeholder.Hide()
		}
		mc.raster.Refresh()
	})
	bus.On(app.EventModeChanged, func(interface{}) {
		mc.mu.Lock()
		mc.pressed = false
		mc.mu.Unlock()
	})
}

// syncSize resizes the content to the loaded background.
func (mc *MapCanvas) syncSize() {
	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	st, err := mc.view.State(ctx)
	if err != nil || st.Size.IsEmpty() {
		return
	}

	size := fyne.NewSize(float32(st.Size.Width), float32(st.Size.Height))
	mc.mu.Lock()
	mc.imgSize = size
	mc.mu.Unlock()

	mc.raster.SetMinSize(size)
	mc.content.Resize(size)
	mc.scroll.Refresh()
	mc.raster.Refresh()
}

// Container returns the canvas container for embedding in layouts.
func (mc *MapCanvas) Container() fyne.CanvasObject {
	return mc
}

// Refresh redraws the map.
func (mc *MapCanvas) Refresh() {
	mc.raster.Refresh()
}

// draw is the raster drawing function.
func (mc *MapCanvas) draw(w, h int) image.Image {
	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()

	img, err := mc.view.Render(ctx)
	if err != nil {
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return img
}

// CreateRenderer implements fyne.Widget.
func (mc *MapCanvas) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(mc.stack)
}

// pointerEvent converts a fyne point event into the view's pointer event.
// Position is relative to the map content and AbsolutePosition to the window.
func pointerEvent(ev fyne.PointEvent) drawing.PointerEvent {
	layer := geometry.NewPoint2D(float64(ev.Position.X), float64(ev.Position.Y))
	page := pagePoint(ev)
	return drawing.PointerEvent{Page: &page, Layer: &layer}
}

func pagePoint(ev fyne.PointEvent) geometry.Point2D {
	return geometry.NewPoint2D(float64(ev.AbsolutePosition.X), float64(ev.AbsolutePosition.Y))
}

// cursorFor picks the system cursor closest to the mode's cursor style.
func cursorFor(a cursor.Affordances) desktop.Cursor {
	switch {
	case a.DrawingEnabled, a.ClickCapture:
		return desktop.CrosshairCursor
	case a.Pan:
		return desktop.PointerCursor
	default:
		return desktop.DefaultCursor
	}
}

// pointerContent wraps the raster to handle mouse events.
type pointerContent struct {
	widget.BaseWidget
	canvas *MapCanvas
}

func newPointerContent(mc *MapCanvas) *pointerContent {
	pc := &pointerContent{canvas: mc}
	pc.ExtendBaseWidget(pc)
	return pc
}

func (pc *pointerContent) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(pc.canvas.raster)
}

func (pc *pointerContent) MinSize() fyne.Size {
	return pc.canvas.raster.MinSize()
}

// MouseDown starts a spill drag and a selection drag.
func (pc *pointerContent) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	mc := pc.canvas
	mc.mu.Lock()
	mc.pressed = true
	mc.mu.Unlock()

	if drv := fyne.CurrentApp().Driver(); drv != nil {
		abs := drv.AbsolutePositionForObject(pc)
		mc.view.SetSurfaceOffset(geometry.NewPoint2D(float64(abs.X), float64(abs.Y)))
	}
	mc.view.PointerDown(pointerEvent(ev.PointEvent))
	mc.view.SelectStart(pagePoint(ev.PointEvent))
}

// MouseUp commits the drags started in MouseDown.
func (pc *pointerContent) MouseUp(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	mc := pc.canvas
	mc.mu.Lock()
	mc.pressed = false
	mc.mu.Unlock()

	mc.view.PointerUp(pointerEvent(ev.PointEvent))
	mc.view.SelectEnd(pagePoint(ev.PointEvent))
	mc.raster.Refresh()
}

func (pc *pointerContent) MouseIn(*desktop.MouseEvent) {}

// MouseMoved updates the spill preview while the button is held.
func (pc *pointerContent) MouseMoved(ev *desktop.MouseEvent) {
	mc := pc.canvas
	mc.mu.Lock()
	pressed := mc.pressed
	mc.mu.Unlock()
	if !pressed {
		return
	}
	mc.view.PointerMove(pointerEvent(ev.PointEvent))
	mc.raster.Refresh()
}

func (pc *pointerContent) MouseOut() {}

// Dragged pans in moving mode and otherwise extends the spill preview.
func (pc *pointerContent) Dragged(ev *fyne.DragEvent) {
	mc := pc.canvas
	if mc.view.Affordances().Pan {
		mc.scroll.Offset = fyne.NewPos(mc.scroll.Offset.X-ev.Dragged.DX, mc.scroll.Offset.Y-ev.Dragged.DY)
		mc.scroll.Refresh()
		return
	}
	mc.view.PointerMove(pointerEvent(ev.PointEvent))
	mc.raster.Refresh()
}

func (pc *pointerContent) DragEnd() {}

// Tapped reports a click on the map.
func (pc *pointerContent) Tapped(ev *fyne.PointEvent) {
	pc.canvas.view.Click(pagePoint(*ev))
}

// Cursor implements desktop.Cursorable.
func (pc *pointerContent) Cursor() desktop.Cursor {
	return cursorFor(pc.canvas.view.Affordances())
}

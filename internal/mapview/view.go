// Package mapview composes the frame scheduler, cursor modes, drawing
// surface, and selection tracker into one map view driven by a single loop
// goroutine.
//
// Public methods are safe to call from any goroutine. Bus listeners may run
// on the loop goroutine and must not call methods that wait on the loop.
package mapview

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"golang.org/x/image/draw"

	"spill-map/internal/app"
	"spill-map/internal/config"
	"spill-map/internal/cursor"
	"spill-map/internal/drawing"
	"spill-map/internal/frames"
	"spill-map/internal/loader"
	"spill-map/internal/logging"
	"spill-map/internal/metrics"
	"spill-map/internal/selection"
	"spill-map/pkg/geometry"
)

// ErrNoBackground is returned by Render before a background has loaded.
var ErrNoBackground = errors.New("map background not loaded")

// ErrStopped is returned when the loop is no longer running.
var ErrStopped = errors.New("map view stopped")

// Fetcher loads an image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

// Options configures a View.
type Options struct {
	Config  config.MapConfig
	Bus     *app.Bus
	Logger  *slog.Logger
	Fetcher Fetcher
}

// State is a snapshot of the view.
type State struct {
	Background  string
	Size        geometry.Size
	Placeholder bool
	FrameID     int64
	HasFrame    bool
	Frames      int
	Mode        cursor.Mode
}

// View is a map view instance.
type View struct {
	cfg     config.MapConfig
	bounds  *geometry.GeoBounds
	bus     *app.Bus
	log     *slog.Logger
	fetcher Fetcher

	actions chan func()
	done    chan struct{}
	ctx     context.Context

	cursor    *cursor.Controller
	frames    *frames.Scheduler
	surface   *drawing.Surface
	selection *selection.Tracker

	// Owned by the loop.
	backgroundURL string
	background    image.Image
	size          geometry.Size
	placeholder   bool
	spills        []drawing.Spill
	bgGeneration  uint64
}

// New builds a View. Call Run to start processing.
func New(opts Options) (*View, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	bounds, err := opts.Config.GeoBounds()
	if err != nil {
		return nil, err
	}

	bus := opts.Bus
	if bus == nil {
		bus = app.NewBus()
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = loader.New(opts.Config.LoadTimeout)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("view", opts.Config.Element)

	v := &View{
		cfg:     opts.Config,
		bounds:  bounds,
		bus:     bus,
		log:     logging.Component(logger, "mapview"),
		fetcher: fetcher,
		actions: make(chan func(), 256),
		done:    make(chan struct{}),
		ctx:     context.Background(),
	}

	v.cursor = cursor.NewController(logger, opts.Config.Element)
	v.cursor.OnChange(func(m cursor.Mode, _ cursor.Affordances) {
		bus.Emit(app.EventModeChanged, m.String())
	})
	v.frames = frames.New(frames.Options{
		Policy: frames.Policy{Threshold: opts.Config.AnimationThreshold},
		Timer:  loopTimer{v},
		Loader: loopLoader{v},
		Bus:    bus,
		Logger: logger,
		View:   opts.Config.Element,
	})
	v.surface = drawing.NewSurface(drawing.Options{
		Gate:   v.cursor,
		Bounds: bounds,
		Bus:    bus,
		Logger: logger,
		View:   opts.Config.Element,
	})
	v.selection = selection.NewTracker(v.cursor, bus, logger)

	bus.On(app.EventFrameChanged, func(interface{}) {
		if f, _, ok := v.frames.Displayed(); ok {
			v.log.Debug("frame shown", "frame", f.ID, "class", v.cfg.FrameClass+" "+v.cfg.ActiveFrameClass)
		}
	})

	return v, nil
}

// Bus returns the event bus the view publishes on.
func (v *View) Bus() *app.Bus {
	return v.bus
}

// Config returns the configuration the view was built with.
func (v *View) Config() config.MapConfig {
	return v.cfg
}

// Run processes posted work until ctx is cancelled.
func (v *View) Run(ctx context.Context) error {
	v.ctx = ctx
	defer close(v.done)

	v.log.Info("map view started")
	for {
		select {
		case <-ctx.Done():
			v.log.Info("map view stopped")
			return ctx.Err()
		case fn := <-v.actions:
			fn()
		}
	}
}

func (v *View) post(fn func()) {
	select {
	case v.actions <- fn:
	case <-v.done:
	}
}

// Do runs fn on the loop and waits for it to finish.
func (v *View) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case v.actions <- wrapped:
	case <-v.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-v.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

type loopTimer struct{ v *View }

func (t loopTimer) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { t.v.post(fn) })
}

type loopLoader struct{ v *View }

func (l loopLoader) Load(url string, done func(image.Image, error)) {
	ctx := l.v.ctx
	go func() {
		img, err := l.v.fetch(ctx, url)
		l.v.post(func() { done(img, err) })
	}()
}

func (v *View) fetch(ctx context.Context, url string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.LoadTimeout)
	defer cancel()
	return v.fetcher.Fetch(ctx, url)
}

// SetMode switches the cursor mode. It takes effect immediately.
func (v *View) SetMode(m cursor.Mode) {
	v.cursor.SetMode(m)
}

// Mode returns the current cursor mode.
func (v *View) Mode() cursor.Mode {
	return v.cursor.Mode()
}

// Affordances returns what the current mode enables.
func (v *View) Affordances() cursor.Affordances {
	return v.cursor.Affordances()
}

// ProduceFrame hands a newly produced frame to the scheduler.
func (v *View) ProduceFrame(f frames.Frame) {
	v.post(func() { v.frames.Produce(f) })
}

// SetBackground resets the view and loads a new background. An empty url
// shows the placeholder instead.
func (v *View) SetBackground(url string) {
	v.post(func() { v.setBackground(url) })
}

// ClearBackground resets the view and shows the placeholder.
func (v *View) ClearBackground() {
	v.SetBackground("")
}

func (v *View) setBackground(url string) {
	v.frames.Reset()
	v.surface.Teardown()
	v.background = nil
	v.size = geometry.Size{}
	v.backgroundURL = url
	v.bgGeneration++

	if url == "" {
		v.setPlaceholder(true)
		return
	}
	v.setPlaceholder(false)

	gen := v.bgGeneration
	ctx := v.ctx
	go func() {
		img, err := v.fetch(ctx, url)
		v.post(func() { v.backgroundLoaded(gen, url, img, err) })
	}()
}

func (v *View) backgroundLoaded(gen uint64, url string, img image.Image, err error) {
	if gen != v.bgGeneration {
		v.log.Debug("dropping superseded background", "url", url)
		return
	}
	if err != nil {
		metrics.ImageLoadFailures.WithLabelValues(v.cfg.Element, "background").Inc()
		v.log.Warn("background failed to load", "url", url, "error", err)
		v.setPlaceholder(true)
		v.bus.Emit(app.EventBackgroundLoadFailed, app.LoadFailed{URL: url, Err: err})
		return
	}

	b := img.Bounds()
	v.background = img
	v.size = geometry.NewSize(float64(b.Dx()), float64(b.Dy()))
	v.surface.Resize(v.size)
	if err := v.surface.RenderSpills(v.spills); err != nil {
		v.log.Error("could not redraw spills", "error", err)
	}

	v.log.Info("background loaded", "url", url, "width", b.Dx(), "height", b.Dy())
	v.bus.Emit(app.EventReady, nil)
}

func (v *View) setPlaceholder(show bool) {
	if v.placeholder == show {
		return
	}
	v.placeholder = show
	v.log.Debug("placeholder toggled", "class", v.cfg.PlaceholderClass, "visible", show)
	v.bus.Emit(app.EventPlaceholderChanged, show)
}

// PointerDown forwards a pointer press to the drawing surface.
func (v *View) PointerDown(ev drawing.PointerEvent) {
	v.post(func() { v.surface.PointerDown(ev) })
}

// PointerMove forwards pointer motion to the drawing surface.
func (v *View) PointerMove(ev drawing.PointerEvent) {
	v.post(func() { v.surface.PointerMove(ev) })
}

// PointerUp forwards a pointer release to the drawing surface.
func (v *View) PointerUp(ev drawing.PointerEvent) {
	v.post(func() { v.surface.PointerUp(ev) })
}

// SelectStart begins a rectangle selection at a page position.
func (v *View) SelectStart(page geometry.Point2D) {
	v.post(func() { v.selection.Start(page) })
}

// SelectEnd finishes a rectangle selection at a page position.
func (v *View) SelectEnd(page geometry.Point2D) {
	v.post(func() { v.selection.End(page) })
}

// Click reports a click at a page position. It only counts when it lands
// on the displayed frame.
func (v *View) Click(page geometry.Point2D) {
	v.post(func() {
		_, _, shown := v.frames.Displayed()
		v.selection.Click(page, shown && v.boundingBox().Contains(page))
	})
}

// BoundingBox returns the page rectangle covered by the map image.
func (v *View) BoundingBox(ctx context.Context) (geometry.Rect, error) {
	var r geometry.Rect
	err := v.Do(ctx, func() { r = v.boundingBox() })
	return r, err
}

func (v *View) boundingBox() geometry.Rect {
	off := v.surface.Offset()
	return geometry.NewRect(off.X, off.Y, v.size.Width, v.size.Height)
}

// SetSurfaceOffset records the page position of the map's top-left corner.
func (v *View) SetSurfaceOffset(p geometry.Point2D) {
	v.post(func() { v.surface.SetOffset(p) })
}

// DrawSpills replaces the spill marks. The list is kept and redrawn when
// the background changes.
func (v *View) DrawSpills(ctx context.Context, spills []drawing.Spill) error {
	var renderErr error
	err := v.Do(ctx, func() {
		v.spills = append([]drawing.Spill(nil), spills...)
		renderErr = v.surface.RenderSpills(v.spills)
	})
	if err != nil {
		return err
	}
	return renderErr
}

// State returns a snapshot of the view.
func (v *View) State(ctx context.Context) (State, error) {
	var s State
	err := v.Do(ctx, func() {
		s = State{
			Background:  v.backgroundURL,
			Size:        v.size,
			Placeholder: v.placeholder,
			Frames:      v.frames.Len(),
			Mode:        v.cursor.Mode(),
		}
		if f, _, ok := v.frames.Displayed(); ok {
			s.FrameID = f.ID
			s.HasFrame = true
		}
	})
	return s, err
}

// Render composites the background, the displayed frame, and both drawing
// layers into a new image the size of the background.
func (v *View) Render(ctx context.Context) (*image.RGBA, error) {
	var out *image.RGBA
	err := v.Do(ctx, func() { out = v.render() })
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrNoBackground
	}
	return out, nil
}

func (v *View) render() *image.RGBA {
	if v.background == nil {
		return nil
	}
	w, h := v.size.Ints()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), v.background, v.background.Bounds().Min, draw.Src)

	if _, img, ok := v.frames.Displayed(); ok && img != nil {
		draw.ApproxBiLinear.Scale(out, out.Bounds(), img, img.Bounds(), draw.Over, nil)
	}

	persistent, preview := v.surface.Layers()
	for _, l := range []*drawing.Layer{persistent, preview} {
		if l != nil {
			draw.Draw(out, out.Bounds(), l.Image(), image.Point{}, draw.Over)
		}
	}
	return out
}

package mapview

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"
	"time"

	"spill-map/internal/app"
	"spill-map/internal/config"
	"spill-map/internal/cursor"
	"spill-map/internal/drawing"
	"spill-map/internal/frames"
	"spill-map/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var (
	white = color.RGBA{0xff, 0xff, 0xff, 0xff}
	blue  = color.RGBA{0x00, 0x00, 0xff, 0xff}
)

func solid(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

type fakeFetcher struct {
	mu     sync.Mutex
	images map[string]image.Image
	gates  map[string]chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	f.mu.Lock()
	img, ok := f.images[url]
	gate := f.gates[url]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("%s: not found", url)
	}
	return img, nil
}

type recorder struct {
	mu     sync.Mutex
	events []app.EventType
	data   []interface{}
}

func (r *recorder) listen(bus *app.Bus) {
	for et := app.EventFrameChanged; et <= app.EventModeChanged; et++ {
		et := et
		bus.On(et, func(d interface{}) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, et)
			r.data = append(r.data, d)
		})
	}
}

func (r *recorder) count(et app.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == et {
			n++
		}
	}
	return n
}

func (r *recorder) last(et app.EventType) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i] == et {
			return r.data[i]
		}
	}
	return nil
}

func (r *recorder) await(t *testing.T, et app.EventType, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return r.count(et) >= n }, waitFor, tick, "waiting for %s", et)
}

func testConfig() config.MapConfig {
	return config.MapConfig{
		Bounds:             [][]float64{{-10, -5}, {-10, 5}, {10, 5}, {10, -5}},
		AnimationThreshold: 20 * time.Millisecond,
		LoadTimeout:        time.Second,
		Element:            "test",
		FrameClass:         "frame",
		ActiveFrameClass:   "active",
		PlaceholderClass:   "placeholder",
	}
}

type env struct {
	v       *View
	fetcher *fakeFetcher
	rec     *recorder
	cancel  context.CancelFunc
	stopped chan error
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		fetcher: &fakeFetcher{
			images: map[string]image.Image{
				"bg":    solid(800, 400, white),
				"step1": solid(80, 40, blue),
			},
			gates: map[string]chan struct{}{},
		},
		rec:     &recorder{},
		stopped: make(chan error, 1),
	}

	bus := app.NewBus()
	e.rec.listen(bus)

	v, err := New(Options{Config: testConfig(), Bus: bus, Fetcher: e.fetcher})
	require.NoError(t, err)
	e.v = v

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	go func() { e.stopped <- v.Run(ctx) }()
	t.Cleanup(cancel)
	return e
}

func (e *env) ready(t *testing.T) {
	t.Helper()
	n := e.rec.count(app.EventReady)
	e.v.SetBackground("bg")
	e.rec.await(t, app.EventReady, n+1)
}

func (e *env) state(t *testing.T) State {
	t.Helper()
	s, err := e.v.State(context.Background())
	require.NoError(t, err)
	return s
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Bounds = [][]float64{{0, 0}, {0, 0}, {0, 0}, {0, 0}}
	_, err := New(Options{Config: cfg})
	assert.Error(t, err)
}

func TestBackgroundLoadSizesView(t *testing.T) {
	e := newEnv(t)
	e.ready(t)

	s := e.state(t)
	assert.Equal(t, geometry.NewSize(800, 400), s.Size)
	assert.False(t, s.Placeholder)
	assert.Equal(t, "bg", s.Background)

	img, err := e.v.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 400), img.Bounds())
	assert.Equal(t, white, img.RGBAAt(10, 10))
}

func TestBackgroundFailureShowsPlaceholder(t *testing.T) {
	e := newEnv(t)

	e.v.SetBackground("missing")
	e.rec.await(t, app.EventBackgroundLoadFailed, 1)

	failed := e.rec.last(app.EventBackgroundLoadFailed).(app.LoadFailed)
	assert.Equal(t, "missing", failed.URL)
	assert.Error(t, failed.Err)
	assert.True(t, e.state(t).Placeholder)

	_, err := e.v.Render(context.Background())
	assert.ErrorIs(t, err, ErrNoBackground)
}

func TestClearBackgroundResets(t *testing.T) {
	e := newEnv(t)
	e.ready(t)

	e.v.ProduceFrame(frames.Frame{ID: 1, URL: "step1"})
	e.rec.await(t, app.EventFrameChanged, 1)

	e.v.ClearBackground()
	s := e.state(t)
	assert.True(t, s.Placeholder)
	assert.Zero(t, s.Frames)
	assert.False(t, s.HasFrame)
	assert.Equal(t, true, e.rec.last(app.EventPlaceholderChanged))
}

func TestFramesArePacedAndComposited(t *testing.T) {
	e := newEnv(t)
	e.ready(t)

	e.v.ProduceFrame(frames.Frame{ID: 1, URL: "step1", ProductionLatency: 5 * time.Millisecond})
	e.rec.await(t, app.EventFrameChanged, 1)
	assert.Equal(t, 1, e.rec.count(app.EventContainerRevealed))

	s := e.state(t)
	require.True(t, s.HasFrame)
	assert.Equal(t, int64(1), s.FrameID)

	img, err := e.v.Render(context.Background())
	require.NoError(t, err)
	px := img.RGBAAt(400, 200)
	assert.Greater(t, px.B, uint8(0xf0))
	assert.Less(t, px.R, uint8(0x10))
}

func TestMissingFrameImageSignalsFailure(t *testing.T) {
	e := newEnv(t)
	e.ready(t)

	e.v.ProduceFrame(frames.Frame{ID: 9, URL: "nowhere"})
	e.rec.await(t, app.EventFrameLoadFailed, 1)
	assert.Equal(t, int64(9), e.rec.last(app.EventFrameLoadFailed).(app.LoadFailed).FrameID)
	assert.False(t, e.state(t).HasFrame)
}

func TestDrawingSpillThroughView(t *testing.T) {
	e := newEnv(t)
	e.ready(t)

	offset := geometry.NewPoint2D(10, 20)
	e.v.SetMode(cursor.ModeDrawingSpill)
	e.v.SetSurfaceOffset(offset)
	e.v.PointerDown(drawing.At(400, 200, offset))
	e.v.PointerMove(drawing.At(500, 150, offset))
	e.v.PointerUp(drawing.At(600, 100, offset))

	e.rec.await(t, app.EventSpillDrawn, 1)
	drawn := e.rec.last(app.EventSpillDrawn).(app.SpillDrawn)
	assert.InDelta(t, 0, drawn.Start[0], 1e-9)
	assert.InDelta(t, 0, drawn.Start[1], 1e-9)
	assert.InDelta(t, 5, drawn.End[0], 1e-9)
	assert.InDelta(t, 2.5, drawn.End[1], 1e-9)
}

func TestDrawingIgnoredOutsideSpillMode(t *testing.T) {
	e := newEnv(t)
	e.ready(t)

	offset := geometry.NewPoint2D(0, 0)
	e.v.SetMode(cursor.ModeMoving)
	e.v.PointerDown(drawing.At(400, 200, offset))
	e.v.PointerMove(drawing.At(500, 150, offset))
	e.v.PointerUp(drawing.At(600, 100, offset))

	img, err := e.v.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, white, img.RGBAAt(500, 150))
	assert.Zero(t, e.rec.count(app.EventSpillDrawn))
}

func TestSpillsRedrawnWhenBackgroundLoads(t *testing.T) {
	e := newEnv(t)

	spills := []drawing.Spill{{Name: "centre", StartPosition: []float64{0, 0}}}
	require.NoError(t, e.v.DrawSpills(context.Background(), spills))

	e.ready(t)

	img, err := e.v.Render(context.Background())
	require.NoError(t, err)
	want := color.RGBAModel.Convert(app.SpillColor).(color.RGBA)
	assert.Equal(t, want, img.RGBAAt(400, 200))
	assert.Equal(t, want, img.RGBAAt(402, 202))
}

func TestSupersededBackgroundIsDropped(t *testing.T) {
	e := newEnv(t)
	gate := make(chan struct{})
	e.fetcher.mu.Lock()
	e.fetcher.images["slow"] = solid(10, 10, blue)
	e.fetcher.gates["slow"] = gate
	e.fetcher.mu.Unlock()

	e.v.SetBackground("slow")
	e.ready(t)
	close(gate)

	assert.Never(t, func() bool { return e.rec.count(app.EventReady) > 1 }, 100*time.Millisecond, tick)
	s := e.state(t)
	assert.Equal(t, "bg", s.Background)
	assert.Equal(t, geometry.NewSize(800, 400), s.Size)
}

func TestClickAndSelection(t *testing.T) {
	e := newEnv(t)
	e.ready(t)
	e.v.SetSurfaceOffset(geometry.NewPoint2D(10, 20))

	e.v.SetMode(cursor.ModeZoomingOut)
	e.v.Click(geometry.NewPoint2D(50, 60))
	// No frame displayed yet.
	assert.Never(t, func() bool { return e.rec.count(app.EventMapClicked) > 0 }, 50*time.Millisecond, tick)

	e.v.ProduceFrame(frames.Frame{ID: 1, URL: "step1"})
	e.rec.await(t, app.EventFrameChanged, 1)

	e.v.Click(geometry.NewPoint2D(50, 60))
	e.rec.await(t, app.EventMapClicked, 1)
	assert.Equal(t, app.MapClicked{X: 50, Y: 60}, e.rec.last(app.EventMapClicked))

	e.v.SetMode(cursor.ModeZoomingIn)
	e.v.SelectStart(geometry.NewPoint2D(20, 30))
	e.v.SelectEnd(geometry.NewPoint2D(200, 130))
	e.rec.await(t, app.EventDraggingFinished, 1)
	assert.Equal(t,
		app.DraggingFinished{{X: 20, Y: 30}, {X: 200, Y: 130}},
		e.rec.last(app.EventDraggingFinished))

	box, err := e.v.BoundingBox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, geometry.NewRect(10, 20, 800, 400), box)
}

func TestModeChangePublished(t *testing.T) {
	e := newEnv(t)
	e.v.SetMode(cursor.ModeDrawingSpill)

	assert.Equal(t, cursor.ModeDrawingSpill, e.v.Mode())
	assert.True(t, e.v.Affordances().DrawingEnabled)
	assert.Equal(t, "spill", e.rec.last(app.EventModeChanged))
}

func TestStoppedView(t *testing.T) {
	e := newEnv(t)
	e.cancel()

	select {
	case err := <-e.stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("loop did not stop")
	}

	_, err := e.v.State(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.NotPanics(t, func() { e.v.SetBackground("bg") })
}

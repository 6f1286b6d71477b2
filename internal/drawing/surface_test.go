package drawing

import (
	"errors"
	"image/color"
	"strings"
	"testing"

	"spill-map/internal/app"
	"spill-map/internal/transform"
	"spill-map/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gate bool

func (g *gate) DrawingEnabled() bool { return bool(*g) }

var pageOffset = geometry.Point2D{X: 10, Y: 20}

type fixture struct {
	gate  *gate
	s     *Surface
	drawn []app.SpillDrawn
}

func newFixture(enabled bool) *fixture {
	g := gate(enabled)
	f := &fixture{gate: &g}
	bus := app.NewBus()
	bus.On(app.EventSpillDrawn, func(d interface{}) {
		f.drawn = append(f.drawn, d.(app.SpillDrawn))
	})
	f.s = NewSurface(Options{
		Gate:   f.gate,
		Bounds: geometry.NewGeoBounds(-10, -5, 10, 5),
		Bus:    bus,
		View:   "test",
	})
	f.s.Resize(geometry.NewSize(800, 400))
	f.s.SetOffset(pageOffset)
	return f
}

func (f *fixture) painted() (persistent, preview int) {
	p, v := f.s.Layers()
	return p.Painted(), v.Painted()
}

func TestGateClosedLeavesSurfaceUntouched(t *testing.T) {
	f := newFixture(false)

	f.s.PointerDown(At(400, 200, pageOffset))
	f.s.PointerMove(At(500, 150, pageOffset))
	f.s.PointerUp(At(600, 100, pageOffset))

	p, v := f.painted()
	assert.Zero(t, p)
	assert.Zero(t, v)
	assert.Empty(t, f.drawn)
	assert.Equal(t, Gesture{}, f.s.Gesture())
}

func TestDragPreviewsThenCommits(t *testing.T) {
	f := newFixture(true)

	f.s.PointerDown(At(400, 200, pageOffset))
	assert.True(t, f.s.Gesture().Pressed)

	f.s.PointerMove(At(500, 150, pageOffset))
	p, v := f.painted()
	assert.Zero(t, p, "preview must not touch the persistent layer")
	assert.NotZero(t, v)

	f.s.PointerUp(At(600, 100, pageOffset))
	p, v = f.painted()
	assert.NotZero(t, p)
	assert.Zero(t, v)

	require.Len(t, f.drawn, 1)
	assert.InDelta(t, 0, f.drawn[0].Start[0], 1e-9)
	assert.InDelta(t, 0, f.drawn[0].Start[1], 1e-9)
	assert.InDelta(t, 5, f.drawn[0].End[0], 1e-9)
	assert.InDelta(t, 2.5, f.drawn[0].End[1], 1e-9)
	assert.Equal(t, Gesture{}, f.s.Gesture())
}

func TestDragPastImageEdgeIsFlagged(t *testing.T) {
	f := newFixture(true)

	f.s.PointerDown(At(400, 200, pageOffset))
	f.s.PointerMove(At(600, 150, pageOffset))
	f.s.PointerUp(At(600, 150, pageOffset))

	f.s.PointerDown(At(400, 200, pageOffset))
	f.s.PointerMove(At(900, 100, pageOffset))
	f.s.PointerUp(At(900, 100, pageOffset))

	require.Len(t, f.drawn, 2)
	assert.False(t, f.drawn[0].Outside)
	assert.True(t, f.drawn[1].Outside)
	assert.InDelta(t, 12.5, f.drawn[1].End[0], 1e-9)
}

func TestPreviewIsReplacedOnEachMove(t *testing.T) {
	f := newFixture(true)

	f.s.PointerDown(At(100, 100, pageOffset))
	f.s.PointerMove(At(300, 100, pageOffset))
	_, long := f.painted()
	f.s.PointerMove(At(110, 100, pageOffset))
	_, short := f.painted()

	assert.Less(t, short, long)
}

func TestReleaseWithoutMoveDrawsButDoesNotEmit(t *testing.T) {
	f := newFixture(true)

	f.s.PointerDown(At(50, 50, pageOffset))
	f.s.PointerUp(At(50, 50, pageOffset))

	p, _ := f.painted()
	assert.NotZero(t, p)
	assert.Empty(t, f.drawn)
	assert.False(t, f.s.Gesture().Pressed)
}

func TestMalformedReleaseResetsGesture(t *testing.T) {
	f := newFixture(true)

	f.s.PointerDown(At(50, 50, pageOffset))
	f.s.PointerMove(At(80, 90, pageOffset))
	f.s.PointerUp(PointerEvent{})

	p, v := f.painted()
	assert.Zero(t, p)
	assert.Zero(t, v)
	assert.Empty(t, f.drawn)
	assert.Equal(t, Gesture{}, f.s.Gesture())
}

func TestMalformedDownIsIgnored(t *testing.T) {
	f := newFixture(true)
	f.s.PointerDown(PointerEvent{})
	assert.False(t, f.s.Gesture().Pressed)
}

func TestReleaseWithoutPageUsesSurfacePosition(t *testing.T) {
	f := newFixture(true)

	f.s.PointerDown(At(400, 200, pageOffset))
	f.s.PointerMove(At(500, 200, pageOffset))
	layer := geometry.NewPoint2D(600, 100)
	f.s.PointerUp(PointerEvent{Layer: &layer})

	require.Len(t, f.drawn, 1)
	assert.InDelta(t, 5, f.drawn[0].End[0], 1e-9)
	assert.InDelta(t, 2.5, f.drawn[0].End[1], 1e-9)
}

func TestDragBeforeResizeIsDropped(t *testing.T) {
	f := newFixture(true)
	f.s.Teardown()

	f.s.PointerDown(At(1, 1, pageOffset))
	f.s.PointerMove(At(5, 5, pageOffset))
	assert.NotPanics(t, func() { f.s.PointerUp(At(9, 9, pageOffset)) })
	assert.Empty(t, f.drawn)
}

func TestNormalizePrefersLayer(t *testing.T) {
	layer := geometry.NewPoint2D(1, 2)
	legacy := geometry.NewPoint2D(3, 4)

	p, ok := Normalize(PointerEvent{Layer: &layer, Legacy: &legacy})
	require.True(t, ok)
	assert.Equal(t, layer, p)

	p, ok = Normalize(PointerEvent{Legacy: &legacy})
	require.True(t, ok)
	assert.Equal(t, legacy, p)

	_, ok = Normalize(PointerEvent{})
	assert.False(t, ok)
}

func TestRenderCoincidentSpillLeavesMark(t *testing.T) {
	f := newFixture(true)

	spill := Spill{Name: "point", StartPosition: []float64{0, 0}}
	require.NoError(t, f.s.RenderSpills([]Spill{spill}))

	p, _ := f.s.Layers()
	assert.Greater(t, p.Painted(), LineWidth*LineWidth)
	assert.NotZero(t, p.Image().RGBAAt(402, 202).A)
}

func TestRenderSpillsReplacesPreviousMarks(t *testing.T) {
	f := newFixture(true)

	line := Spill{StartPosition: []float64{-5, 0}, EndPosition: []float64{5, 0}}
	require.NoError(t, f.s.RenderSpills([]Spill{line, {Name: "no start"}}))
	p, _ := f.painted()
	assert.NotZero(t, p)

	require.NoError(t, f.s.RenderSpills(nil))
	p, _ = f.painted()
	assert.Zero(t, p)
}

func TestRenderSpillsBeforeResize(t *testing.T) {
	f := newFixture(true)
	f.s.Teardown()

	assert.NoError(t, f.s.RenderSpills([]Spill{{StartPosition: []float64{0, 0}}}))
	p, v := f.s.Layers()
	assert.Nil(t, p)
	assert.Nil(t, v)
}

func TestRenderSpillsWithoutBounds(t *testing.T) {
	s := NewSurface(Options{})
	s.Resize(geometry.NewSize(10, 10))

	err := s.RenderSpills([]Spill{{StartPosition: []float64{0, 0}}})
	assert.True(t, errors.Is(err, transform.ErrMissingBounds))
}

func TestDrawLineClipsToLayer(t *testing.T) {
	l := NewLayer(4, 4)
	red := color.RGBA{R: 0xff, A: 0xff}

	assert.NotPanics(t, func() {
		l.DrawLine(geometry.PointInt{X: -10, Y: -10}, geometry.PointInt{X: 10, Y: 10}, red, LineWidth)
	})
	assert.NotZero(t, l.Painted())

	l.Clear()
	assert.Zero(t, l.Painted())
}

func TestLoadSpills(t *testing.T) {
	doc := `
spills:
  - name: tanker
    start_position: [-71.2, 42.3, 0]
  - name: pipeline
    start_position: [-71.0, 42.1]
    end_position: [-70.9, 42.0]
`
	spills, err := LoadSpills(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, spills, 2)

	start, end, ok := spills[0].Endpoints()
	require.True(t, ok)
	assert.Equal(t, start, end)
	assert.Equal(t, geometry.GeoPoint{Lon: -71.2, Lat: 42.3}, start)

	_, end, _ = spills[1].Endpoints()
	assert.Equal(t, geometry.GeoPoint{Lon: -70.9, Lat: 42.0}, end)

	empty, err := LoadSpills(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = LoadSpills(strings.NewReader("spills: {"))
	assert.Error(t, err)
}

// Package geometry holds the pixel and geographic value types shared by the
// map view packages.
package geometry

import (
	"math"
)

// Point2D is a position in page or layer pixels. Sub-pixel values are kept
// until something is drawn.
type Point2D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Add translates p by other.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub gives p relative to origin other.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Round snaps the point to the nearest pixel, rounding halves up.
func (p Point2D) Round() PointInt {
	return PointInt{X: RoundHalfUp(p.X), Y: RoundHalfUp(p.Y)}
}

// PointInt is a whole-pixel position on a drawing layer.
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ToFloat widens p to a Point2D.
func (p PointInt) ToFloat() Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// Add offsets p by dx, dy pixels.
func (p PointInt) Add(dx, dy int) PointInt {
	return PointInt{X: p.X + dx, Y: p.Y + dy}
}

// Rect is an axis-aligned pixel box anchored at its top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// RectFromCorners builds a rectangle spanning two arbitrary corners.
func RectFromCorners(a, b Point2D) Rect {
	x1, x2 := math.Min(a.X, b.X), math.Max(a.X, b.X)
	y1, y2 := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Contains includes the edges.
func (r Rect) Contains(p Point2D) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// ContainsStrict is Contains without the edges.
func (r Rect) ContainsStrict(p Point2D) bool {
	return p.X > r.X && p.X < r.X+r.Width &&
		p.Y > r.Y && p.Y < r.Y+r.Height
}

func (r Rect) TopLeft() Point2D {
	return Point2D{X: r.X, Y: r.Y}
}

func (r Rect) BottomRight() Point2D {
	return Point2D{X: r.X + r.Width, Y: r.Y + r.Height}
}

// Intersect returns the overlap of two rectangles. The result has zero
// size when they do not overlap.
func (r Rect) Intersect(other Rect) Rect {
	x1 := math.Max(r.X, other.X)
	y1 := math.Max(r.Y, other.Y)
	x2 := math.Min(r.X+r.Width, other.X+other.Width)
	y2 := math.Min(r.Y+r.Height, other.Y+other.Height)
	if x2 < x1 || y2 < y1 {
		return Rect{X: x1, Y: y1}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Size is the pixel extent of the background image.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// IsEmpty reports whether either dimension is not positive.
func (s Size) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Ints returns the size truncated to whole pixels.
func (s Size) Ints() (w, h int) {
	return int(s.Width), int(s.Height)
}

// RoundHalfUp rounds to the nearest integer with .5 going toward +Inf,
// the convention browsers use for pixel snapping.
func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

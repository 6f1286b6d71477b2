// Package drawing implements the two-layer surface spills are drawn on.
package drawing

import (
	"image"
	"image/color"
	"image/draw"

	"spill-map/pkg/geometry"
)

// LineWidth is the stroke width of spill marks, in pixels.
const LineWidth = 2

// Layer is a transparent raster the size of the map image.
type Layer struct {
	img *image.RGBA
}

// NewLayer allocates a cleared layer of w×h pixels.
func NewLayer(w, h int) *Layer {
	return &Layer{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// Image returns the backing raster.
func (l *Layer) Image() *image.RGBA {
	return l.img
}

// Clear makes every pixel transparent.
func (l *Layer) Clear() {
	draw.Draw(l.img, l.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// Painted counts pixels with non-zero alpha.
func (l *Layer) Painted() int {
	n := 0
	for i := 3; i < len(l.img.Pix); i += 4 {
		if l.img.Pix[i] != 0 {
			n++
		}
	}
	return n
}

// DrawLine draws a line between two points using Bresenham's algorithm.
// Each step stamps a thickness×thickness square; pixels off the layer are
// skipped.
func (l *Layer) DrawLine(a, b geometry.PointInt, col color.RGBA, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	bounds := l.img.Bounds()
	x1, y1, x2, y2 := a.X, a.Y, b.X, b.Y

	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy
	lo := -(thickness - 1) / 2
	hi := thickness / 2

	for {
		for t := lo; t <= hi; t++ {
			for s := lo; s <= hi; s++ {
				px, py := x1+s, y1+t
				if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
					l.img.SetRGBA(px, py, col)
				}
			}
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// Package transform converts between geographic coordinates and pixel
// coordinates of the rendered background image.
//
// Pixel space has its origin at the top-left corner with y growing
// downward. Geographic space has its origin at the bottom-left corner of the
// bounding region with latitude growing upward, so the y axis is flipped.
package transform

import (
	"errors"
	"fmt"

	"spill-map/pkg/geometry"
)

var (
	// ErrMissingImageSize is returned when no background size is known yet.
	ErrMissingImageSize = errors.New("no current image size detected")

	// ErrMissingBounds is returned when the map has no boundary data.
	ErrMissingBounds = errors.New("map is missing boundary data")
)

// Transform binds a bounding region to the current image size.
// The zero value has neither and fails every conversion.
type Transform struct {
	Bounds *geometry.GeoBounds
	Size   geometry.Size
}

// New returns a Transform for the given region and image size.
func New(bounds *geometry.GeoBounds, size geometry.Size) Transform {
	return Transform{Bounds: bounds, Size: size}
}

// GeoToPixel projects p onto the image, rounding to whole pixels.
func (t Transform) GeoToPixel(p geometry.GeoPoint) (geometry.PointInt, error) {
	return GeoToPixel(t.Bounds, t.Size, p)
}

// PixelToGeo maps an image position back to geographic coordinates.
func (t Transform) PixelToGeo(p geometry.Point2D) (geometry.GeoPoint, error) {
	return PixelToGeo(t.Bounds, t.Size, p)
}

// GeoToPixel projects p onto an image of the given size covering bounds.
func GeoToPixel(bounds *geometry.GeoBounds, size geometry.Size, p geometry.GeoPoint) (geometry.PointInt, error) {
	if err := check(bounds, size); err != nil {
		return geometry.PointInt{}, err
	}

	lonSpan, latSpan := bounds.Span()

	x := ((p.Lon - bounds.MinLon()) / lonSpan) * size.Width
	y := ((p.Lat - bounds.MinLat()) / latSpan) * size.Height
	y = size.Height - y

	return geometry.PointInt{X: geometry.RoundHalfUp(x), Y: geometry.RoundHalfUp(y)}, nil
}

// PixelToGeo is the inverse of GeoToPixel without rounding.
func PixelToGeo(bounds *geometry.GeoBounds, size geometry.Size, p geometry.Point2D) (geometry.GeoPoint, error) {
	if err := check(bounds, size); err != nil {
		return geometry.GeoPoint{}, err
	}

	lonSpan, latSpan := bounds.Span()
	y := size.Height - p.Y

	lat := latSpan*(y/size.Height) + bounds.MinLat()
	lon := lonSpan*(p.X/size.Width) + bounds.MinLon()

	return geometry.GeoPoint{Lon: lon, Lat: lat}, nil
}

func check(bounds *geometry.GeoBounds, size geometry.Size) error {
	if size.IsEmpty() {
		return fmt.Errorf("transform %vx%v: %w", size.Width, size.Height, ErrMissingImageSize)
	}
	if bounds == nil {
		return ErrMissingBounds
	}
	return nil
}

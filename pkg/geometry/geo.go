package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// GeoPoint is a WGS 84 position.
type GeoPoint struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// LonLat returns the point as a [longitude, latitude] pair.
func (g GeoPoint) LonLat() [2]float64 {
	return [2]float64{g.Lon, g.Lat}
}

// GeoBounds holds the four corners of a mapped region, ordered
// bottom-left, top-left, top-right, bottom-right.
type GeoBounds struct {
	Corners [4]GeoPoint
}

// NewGeoBounds builds an axis-aligned region from its extremes.
func NewGeoBounds(minLon, minLat, maxLon, maxLat float64) *GeoBounds {
	return &GeoBounds{Corners: [4]GeoPoint{
		{Lon: minLon, Lat: minLat},
		{Lon: minLon, Lat: maxLat},
		{Lon: maxLon, Lat: maxLat},
		{Lon: maxLon, Lat: minLat},
	}}
}

// GeoBoundsFromPairs converts [lon, lat] corner pairs, as found in map
// metadata, into bounds.
func GeoBoundsFromPairs(pairs [][]float64) (*GeoBounds, error) {
	if len(pairs) != 4 {
		return nil, fmt.Errorf("bounds need 4 corners, got %d", len(pairs))
	}
	var b GeoBounds
	for i, p := range pairs {
		if len(p) < 2 {
			return nil, fmt.Errorf("corner %d needs [lon, lat], got %v", i, p)
		}
		b.Corners[i] = GeoPoint{Lon: p[0], Lat: p[1]}
	}
	return &b, nil
}

// MinLon is the western edge.
func (b *GeoBounds) MinLon() float64 { return b.Corners[0].Lon }

// MinLat is the southern edge.
func (b *GeoBounds) MinLat() float64 { return b.Corners[0].Lat }

// MaxLon is the eastern edge.
func (b *GeoBounds) MaxLon() float64 { return b.Corners[2].Lon }

// MaxLat is the northern edge.
func (b *GeoBounds) MaxLat() float64 { return b.Corners[1].Lat }

// Span returns the longitude and latitude extents.
func (b *GeoBounds) Span() (lon, lat float64) {
	s := b.Box().Size()
	return s.X, s.Y
}

// Box returns the region in (lon, lat) space.
func (b *GeoBounds) Box() r2.Box {
	return r2.Box{
		Min: r2.Vec{X: b.MinLon(), Y: b.MinLat()},
		Max: r2.Vec{X: b.MaxLon(), Y: b.MaxLat()},
	}
}

// Contains reports whether p lies inside the region, edges included.
func (b *GeoBounds) Contains(p GeoPoint) bool {
	return b.Box().Contains(r2.Vec{X: p.Lon, Y: p.Lat})
}

// Validate checks the region is non-degenerate.
func (b *GeoBounds) Validate() error {
	if !(b.MaxLat() > b.MinLat()) {
		return fmt.Errorf("max latitude %v must exceed min latitude %v", b.MaxLat(), b.MinLat())
	}
	if !(b.MaxLon() > b.MinLon()) {
		return fmt.Errorf("max longitude %v must exceed min longitude %v", b.MaxLon(), b.MinLon())
	}
	return nil
}

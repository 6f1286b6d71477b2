package drawing

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"spill-map/pkg/geometry"
)

// Spill is a release location. Positions are [lon, lat] with an optional
// third depth component that is ignored when drawing.
type Spill struct {
	Name          string    `yaml:"name" json:"name"`
	StartPosition []float64 `yaml:"start_position" json:"start_position"`
	EndPosition   []float64 `yaml:"end_position,omitempty" json:"end_position,omitempty"`
}

// Endpoints returns the start and end of the spill. The end defaults to
// the start. ok is false when the spill has no start position.
func (s Spill) Endpoints() (start, end geometry.GeoPoint, ok bool) {
	if len(s.StartPosition) < 2 {
		return geometry.GeoPoint{}, geometry.GeoPoint{}, false
	}
	start = geometry.GeoPoint{Lon: s.StartPosition[0], Lat: s.StartPosition[1]}
	end = start
	if len(s.EndPosition) >= 2 {
		end = geometry.GeoPoint{Lon: s.EndPosition[0], Lat: s.EndPosition[1]}
	}
	return start, end, true
}

type spillFile struct {
	Spills []Spill `yaml:"spills"`
}

// LoadSpills decodes a YAML document with a top-level "spills" list.
func LoadSpills(r io.Reader) ([]Spill, error) {
	var f spillFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode spills: %w", err)
	}
	return f.Spills, nil
}

package views

import (
	"math"

	"github.com/cyclescene/cyclescene/internal/ride"
)

// DuplicateOffset is the step in degrees applied to each further marker
// sharing a coordinate. Both latitude and longitude move by rank times this.
const DuplicateOffset = 0.0009

// FeatureCollection is a GeoJSON collection of ride markers.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string          `json:"type"`
	Geometry   Point           `json:"geometry"`
	Properties PointProperties `json:"properties"`
}

type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type PointProperties struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MarkerIcon string `json:"group_marker_icon,omitempty"`
}

type coordKey struct{ lat, lng int64 }

// keyOf rounds to six decimals, roughly ten centimetres.
func keyOf(p ride.Position) coordKey {
	return coordKey{lat: int64(math.Round(p.Lat * 1e6)), lng: int64(math.Round(p.Lng * 1e6))}
}

// MapPoints builds one marker per ride with a position. Rides that share a
// rounded coordinate are fanned out in input order: the first keeps its
// position, the k-th duplicate moves by k*DuplicateOffset on both axes.
// Stored coordinates are not changed.
func MapPoints(rides []ride.Ride) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
	rank := make(map[coordKey]int)

	for _, r := range rides {
		p, ok := r.Position()
		if !ok {
			continue
		}
		k := keyOf(p)
		if n := rank[k]; n > 0 {
			off := float64(n) * DuplicateOffset
			p.Lat += off
			p.Lng += off
		}
		rank[k]++
		fc.Features = append(fc.Features, feature(r, p))
	}
	return fc
}

// SingleRidePoint is the marker of one ride at its stored position.
func SingleRidePoint(r ride.Ride) (FeatureCollection, bool) {
	p, ok := r.Position()
	if !ok {
		return FeatureCollection{}, false
	}
	return FeatureCollection{Type: "FeatureCollection", Features: []Feature{feature(r, p)}}, true
}

func feature(r ride.Ride, p ride.Position) Feature {
	return Feature{
		Type: "Feature",
		Geometry: Point{
			Type:        "Point",
			Coordinates: [2]float64{p.Lng, p.Lat},
		},
		Properties: PointProperties{
			ID:         r.ID,
			Name:       r.Title,
			MarkerIcon: r.MarkerIcon(),
		},
	}
}

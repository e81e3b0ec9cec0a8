package ride

// KilometersToMiles converts route distances between the two unit systems
// published with each route.
const KilometersToMiles = 0.621371

// Route is a named polyline published as a GeoJSON Feature.
type Route struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Geometry   LineString      `json:"geometry"`
	Properties RouteProperties `json:"properties"`
}

// LineString holds [longitude, latitude, elevation] triples. Elevation may
// be absent on individual points.
type LineString struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

type RouteProperties struct {
	Name       string  `json:"name"`
	DistanceKM float64 `json:"distance_km"`
	DistanceMI float64 `json:"distance_mi"`
}

func (r Route) RecordID() string   { return r.ID }
func (r Route) RecordDate() string { return "" }

// Path returns the route vertices as positions, skipping malformed points.
func (r Route) Path() []Position {
	out := make([]Position, 0, len(r.Geometry.Coordinates))
	for _, c := range r.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		out = append(out, Position{Lat: c[1], Lng: c[0]})
	}
	return out
}

package ride

import (
	"encoding/json"
	"math"
	"testing"
)

func TestUnmarshalWireRide(t *testing.T) {
	raw := `{
		"id": "r1",
		"title": "Taco Tuesday",
		"date": "2024-06-01",
		"starttime": "18:00:00",
		"lat": "45.52",
		"lng": -122.68,
		"audience": "F",
		"cancelled": 0,
		"loopride": true,
		"safetyplan": 1,
		"group_marker": "tacos"
	}`

	var r Ride
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if r.Date != MustDate("2024-06-01") {
		t.Errorf("date = %v, want 2024-06-01", r.Date)
	}
	p, ok := r.Position()
	if !ok || p.Lat != 45.52 || p.Lng != -122.68 {
		t.Errorf("position = %v, %v", p, ok)
	}
	if bool(r.Cancelled) || !bool(r.LoopRide) || !r.HasSafetyPlan() {
		t.Errorf("flags = %v %v %v", r.Cancelled, r.LoopRide, r.SafetyPlan)
	}
	if !r.IsFamilyFriendly() || r.IsAdultsOnly() {
		t.Errorf("audience = %q", r.Audience)
	}
	if got := r.MarkerIcon(); got != "group-marker-tacos" {
		t.Errorf("marker = %q", got)
	}
}

func TestUnmarshalRejectsBadFlag(t *testing.T) {
	var r Ride
	if err := json.Unmarshal([]byte(`{"id":"x","cancelled":"maybe"}`), &r); err == nil {
		t.Fatal("expected error for invalid flag")
	}
}

func TestIsMappable(t *testing.T) {
	fallback := Position{Lat: 45.515232, Lng: -122.6783853}

	tests := []struct {
		name     string
		lat, lng Coord
		want     bool
	}{
		{"real point", NewCoord(45.5), NewCoord(-122.6), true},
		{"missing lat", Coord{}, NewCoord(-122.6), false},
		{"missing both", Coord{}, Coord{}, false},
		{"zero lat", NewCoord(0), NewCoord(-122.6), false},
		{"zero lng", NewCoord(45.5), NewCoord(0), false},
		{"fallback", NewCoord(fallback.Lat), NewCoord(fallback.Lng), false},
		{"nan", NewCoord(math.NaN()), NewCoord(-122.6), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Ride{ID: "r", Lat: tt.lat, Lng: tt.lng}
			if got := r.IsMappable(fallback); got != tt.want {
				t.Errorf("IsMappable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCoordRoundTrip(t *testing.T) {
	r := Ride{ID: "r", Lat: NewCoord(45.5)}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Ride
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Lat != r.Lat || back.Lng.Valid {
		t.Errorf("got lat %v lng %v", back.Lat, back.Lng)
	}
}

func TestDateArithmetic(t *testing.T) {
	d := MustDate("2024-02-28")

	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Errorf("AddDays(1) = %s", got)
	}
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Errorf("AddDays(2) = %s", got)
	}
	if got := d.AddDays(-28).String(); got != "2024-01-31" {
		t.Errorf("AddDays(-28) = %s", got)
	}
	if !d.Before(d.AddDays(1)) || d.Compare(d) != 0 {
		t.Error("compare mismatch")
	}
	if _, err := ParseDate("2024-13-01"); err == nil {
		t.Error("expected error for month 13")
	}
	if got := MustDate("2024-06-01T07:00:00Z").String(); got != "2024-06-01" {
		t.Errorf("timestamp date = %s", got)
	}
}

func TestParseClock(t *testing.T) {
	tests := map[string][2]int{
		"18:00:00": {18, 0},
		"9:30":     {9, 30},
		"6:15 PM":  {18, 15},
	}
	for in, want := range tests {
		h, m, err := ParseClock(in)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", in, err)
		}
		if h != want[0] || m != want[1] {
			t.Errorf("ParseClock(%q) = %d:%d", in, h, m)
		}
	}
	if _, _, err := ParseClock("soon"); err == nil {
		t.Error("expected error")
	}
}

func TestRoutePath(t *testing.T) {
	r := Route{Geometry: LineString{Coordinates: [][]float64{{-122.6, 45.5, 10}, {1}, {-122.7, 45.6}}}}
	path := r.Path()
	if len(path) != 2 {
		t.Fatalf("len = %d, want 2", len(path))
	}
	if path[0] != (Position{Lat: 45.5, Lng: -122.6}) {
		t.Errorf("path[0] = %v", path[0])
	}
}

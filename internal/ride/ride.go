// Package ride defines the ride and route records mirrored from the
// remote API. It has no external dependencies.
package ride

import "math"

// Audience is the intended audience of a ride as published by the API.
type Audience string

const (
	AudienceGeneral     Audience = "G"
	AudienceFamily      Audience = "F"
	AudienceAdults      Audience = "A"
	AudienceExperienced Audience = "E"
)

// Ride is one scheduled or past cycling event. Records are read-only on the
// client and persisted verbatim.
type Ride struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Date          Date     `json:"date"`
	StartTime     string   `json:"starttime"`
	EndTime       string   `json:"endtime,omitempty"`
	EventDuration int      `json:"eventduration,omitempty"`
	Lat           Coord    `json:"lat"`
	Lng           Coord    `json:"lng"`
	Audience      Audience `json:"audience"`
	Address       string   `json:"address,omitempty"`
	Venue         string   `json:"venue,omitempty"`
	LocDetails    string   `json:"locdetails,omitempty"`
	LocEnd        string   `json:"locend,omitempty"`
	Details       string   `json:"details,omitempty"`
	TimeDetails   string   `json:"timedetails,omitempty"`
	NewsFlash     string   `json:"newsflash,omitempty"`
	Organizer     string   `json:"organizer,omitempty"`
	Email         string   `json:"email,omitempty"`
	WebURL        string   `json:"weburl,omitempty"`
	WebName       string   `json:"webname,omitempty"`
	Shareable     string   `json:"shareable,omitempty"`
	Image         string   `json:"image,omitempty"`
	ImageSrcset   string   `json:"image_srcset,omitempty"`
	RideSource    string   `json:"ridesource,omitempty"`
	Cancelled     Flag     `json:"cancelled"`
	LoopRide      Flag     `json:"loopride"`
	SafetyPlan    Flag     `json:"safetyplan"`
	GroupCode     string   `json:"group_code,omitempty"`
	GroupMarker   string   `json:"group_marker,omitempty"`
	RouteID       string   `json:"route_id,omitempty"`
}

// RecordID returns the storage key of the ride.
func (r Ride) RecordID() string { return r.ID }

// RecordDate returns the ride date in ISO form, used for date-ordered reads.
func (r Ride) RecordDate() string { return r.Date.String() }

// Position is a WGS84 point.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Position returns the ride's coordinates when both components are present.
func (r Ride) Position() (Position, bool) {
	if !r.Lat.Valid || !r.Lng.Valid {
		return Position{}, false
	}
	return Position{Lat: r.Lat.Value, Lng: r.Lng.Value}, true
}

// IsMappable reports whether the ride has a real location: both components
// present, finite and non-zero, and not the city fallback point.
func (r Ride) IsMappable(fallback Position) bool {
	p, ok := r.Position()
	if !ok {
		return false
	}
	if !usable(p.Lat) || !usable(p.Lng) {
		return false
	}
	return p != fallback
}

func usable(v float64) bool {
	return v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (r Ride) IsAdultsOnly() bool     { return r.Audience == AudienceAdults }
func (r Ride) IsFamilyFriendly() bool { return r.Audience == AudienceFamily }
func (r Ride) HasSafetyPlan() bool    { return bool(r.SafetyPlan) }

// Location is the human readable place of the ride: the venue, or the
// street address when no venue is known.
func (r Ride) Location() string {
	if r.Venue != "" {
		return r.Venue
	}
	return r.Address
}

// MarkerIcon is the map sprite key for the ride's group, empty for rides
// without a registered group.
func (r Ride) MarkerIcon() string {
	if r.GroupMarker == "" {
		return ""
	}
	return "group-marker-" + r.GroupMarker
}

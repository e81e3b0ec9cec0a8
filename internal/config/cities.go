package config

import (
	"strings"
	"time"

	"github.com/cyclescene/cyclescene/internal/ride"
)

// DefaultCityCode is used when no city has been configured or the configured
// code is unknown.
const DefaultCityCode = "pdx"

// City describes a supported city. Start doubles as the fallback coordinate
// for rides published without a real location.
type City struct {
	Code     string
	Name     string
	TimeZone string
	Start    ride.Position
}

var cities = map[string]City{
	"pdx": {
		Code:     "pdx",
		Name:     "Portland",
		TimeZone: "America/Los_Angeles",
		Start:    ride.Position{Lat: 45.515232, Lng: -122.6783853},
	},
	"slc": {
		Code:     "slc",
		Name:     "Salt Lake City",
		TimeZone: "America/Denver",
		Start:    ride.Position{Lat: 40.76078, Lng: -111.89105},
	},
}

// LookupCity returns the city for code. Unknown codes resolve to the default
// city and ok is false.
func LookupCity(code string) (City, bool) {
	c, ok := cities[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return cities[DefaultCityCode], false
	}
	return c, true
}

// Location loads the city's time zone, falling back to UTC.
func (c City) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

package views

import (
	"math"
	"slices"
	"time"

	"github.com/cyclescene/cyclescene/internal/ride"
)

// The projections below are pure: the same inputs always produce the same
// output, and input slices are never modified.

// SameDay returns rides dated exactly day.
func SameDay(rides []ride.Ride, day ride.Date) []ride.Ride {
	return filter(rides, func(r ride.Ride) bool { return r.Date == day })
}

// Mappable returns rides with a real location.
func Mappable(rides []ride.Ride, fallback ride.Position) []ride.Ride {
	return filter(rides, func(r ride.Ride) bool { return r.IsMappable(fallback) })
}

// Unmappable returns rides without a real location, so they can be listed
// without being plotted.
func Unmappable(rides []ride.Ride, fallback ride.Position) []ride.Ride {
	return filter(rides, func(r ride.Ride) bool { return !r.IsMappable(fallback) })
}

// DateGroup is the saved rides of one day in insertion order.
type DateGroup struct {
	Date  ride.Date   `json:"date"`
	Rides []ride.Ride `json:"rides"`
}

// GroupSavedByDate groups saved rides by date, ascending.
func GroupSavedByDate(saved []ride.Ride) []DateGroup {
	var groups []DateGroup
	pos := make(map[ride.Date]int)
	for _, r := range saved {
		i, ok := pos[r.Date]
		if !ok {
			i = len(groups)
			pos[r.Date] = i
			groups = append(groups, DateGroup{Date: r.Date})
		}
		groups[i].Rides = append(groups[i].Rides, r)
	}
	slices.SortStableFunc(groups, func(a, b DateGroup) int { return a.Date.Compare(b.Date) })
	return groups
}

// NavigationDates is the set of dates with saved rides plus today, ascending.
func NavigationDates(groups []DateGroup, today ride.Date) []ride.Date {
	dates := make([]ride.Date, 0, len(groups)+1)
	hasToday := false
	for _, g := range groups {
		dates = append(dates, g.Date)
		hasToday = hasToday || g.Date == today
	}
	if !hasToday {
		dates = append(dates, today)
	}
	slices.SortFunc(dates, func(a, b ride.Date) int { return a.Compare(b) })
	return dates
}

// SavedForDay returns the saved rides of day.
func SavedForDay(groups []DateGroup, day ride.Date) []ride.Ride {
	for _, g := range groups {
		if g.Date == day {
			return g.Rides
		}
	}
	return nil
}

// SplitSavedByToday separates saved rides dated today or later from
// earlier ones.
func SplitSavedByToday(saved []ride.Ride, today ride.Date) (upcoming, past []ride.Ride) {
	for _, r := range saved {
		if isUpcoming(r, today) {
			upcoming = append(upcoming, r)
		} else {
			past = append(past, r)
		}
	}
	return upcoming, past
}

// Filter names an upcoming-rides category.
type Filter string

const (
	FilterAdultsOnly     Filter = "adults"
	FilterFamilyFriendly Filter = "family"
	FilterSafetyPlan     Filter = "safety"
)

// Upcoming returns rides dated today or later that match f. A ride earlier
// today is still upcoming for the whole day.
func Upcoming(rides []ride.Ride, today ride.Date, f Filter) []ride.Ride {
	var match func(ride.Ride) bool
	switch f {
	case FilterAdultsOnly:
		match = ride.Ride.IsAdultsOnly
	case FilterFamilyFriendly:
		match = ride.Ride.IsFamilyFriendly
	case FilterSafetyPlan:
		match = ride.Ride.HasSafetyPlan
	default:
		return nil
	}
	return filter(rides, func(r ride.Ride) bool { return isUpcoming(r, today) && match(r) })
}

func UpcomingAdultsOnly(rides []ride.Ride, today ride.Date) []ride.Ride {
	return Upcoming(rides, today, FilterAdultsOnly)
}

func UpcomingFamilyFriendly(rides []ride.Ride, today ride.Date) []ride.Ride {
	return Upcoming(rides, today, FilterFamilyFriendly)
}

func UpcomingWithSafetyPlan(rides []ride.Ride, today ride.Date) []ride.Ride {
	return Upcoming(rides, today, FilterSafetyPlan)
}

func isUpcoming(r ride.Ride, today ride.Date) bool {
	return !r.Date.Before(today)
}

// DateLabel is the heading shown for day relative to today.
func DateLabel(day, today ride.Date) string {
	switch day {
	case today:
		return "Today"
	case today.AddDays(1):
		return "Tomorrow"
	case today.AddDays(-1):
		return "Yesterday"
	}
	return day.In(time.UTC).Format("Mon, Jan 2")
}

// Zoom levels for FitViewport.
const (
	CityZoom   = 12
	RideZoom   = 16
	FitPadding = 100
)

// Viewport tells the map where to look. Either Center/Zoom or Bounds is set.
type Viewport struct {
	Center  *ride.Position `json:"center,omitempty"`
	Zoom    float64        `json:"zoom,omitempty"`
	Bounds  *Bounds        `json:"bounds,omitempty"`
	Padding int            `json:"padding,omitempty"`
}

type Bounds struct {
	SouthWest ride.Position `json:"southWest"`
	NorthEast ride.Position `json:"northEast"`
}

// FitViewport frames the mappable rides: the city at zoom 12 when there are
// none, the ride at zoom 16 when there is one, bounds around all otherwise.
func FitViewport(mappable []ride.Ride, city ride.Position) Viewport {
	var points []ride.Position
	for _, r := range mappable {
		if p, ok := r.Position(); ok {
			points = append(points, p)
		}
	}

	switch len(points) {
	case 0:
		return Viewport{Center: &city, Zoom: CityZoom}
	case 1:
		return Viewport{Center: &points[0], Zoom: RideZoom}
	}

	b := Bounds{
		SouthWest: ride.Position{Lat: math.Inf(1), Lng: math.Inf(1)},
		NorthEast: ride.Position{Lat: math.Inf(-1), Lng: math.Inf(-1)},
	}
	for _, p := range points {
		b.SouthWest.Lat = min(b.SouthWest.Lat, p.Lat)
		b.SouthWest.Lng = min(b.SouthWest.Lng, p.Lng)
		b.NorthEast.Lat = max(b.NorthEast.Lat, p.Lat)
		b.NorthEast.Lng = max(b.NorthEast.Lng, p.Lng)
	}
	return Viewport{Bounds: &b, Padding: FitPadding}
}

// FindRide returns the ride with id.
func FindRide(rides []ride.Ride, id string) (ride.Ride, bool) {
	if id == "" {
		return ride.Ride{}, false
	}
	for _, r := range rides {
		if r.ID == id {
			return r, true
		}
	}
	return ride.Ride{}, false
}

// FindRoute returns the route with id.
func FindRoute(routes []ride.Route, id string) (ride.Route, bool) {
	if id == "" {
		return ride.Route{}, false
	}
	for _, r := range routes {
		if r.ID == id {
			return r, true
		}
	}
	return ride.Route{}, false
}

func filter(rides []ride.Ride, keep func(ride.Ride) bool) []ride.Ride {
	var out []ride.Ride
	for _, r := range rides {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

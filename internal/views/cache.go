package views

import (
	"time"

	"github.com/cyclescene/cyclescene/internal/coordinator"
	"github.com/cyclescene/cyclescene/internal/ride"
)

type CacheOptions struct {
	// Fallback is the city center; rides placed exactly there are unmappable.
	Fallback ride.Position
	Location *time.Location
	Now      func() time.Time
}

// Cache holds the inputs of one session and every projection derived from
// them. Subscribers registered on Graph must not block and must not call
// into the coordinators feeding the cache.
type Cache struct {
	g   *Graph
	loc *time.Location
	now func() time.Time

	rides      *Source[coordinator.State[ride.Ride]]
	saved      *Source[coordinator.State[ride.Ride]]
	routes     *Source[coordinator.State[ride.Route]]
	today      *Source[ride.Date]
	selectedID *Source[string]

	Date      *DateCursor
	SavedDate *DateCursor
	Nav       *Navigator

	dayRides       *Derived[[]ride.Ride]
	mappable       *Derived[[]ride.Ride]
	unmappable     *Derived[[]ride.Ride]
	points         *Derived[FeatureCollection]
	viewport       *Derived[Viewport]
	selected       *Derived[*ride.Ride]
	selectedPoint  *Derived[*FeatureCollection]
	selectedRoute  *Derived[*ride.Route]
	groups         *Derived[[]DateGroup]
	navDates       *Derived[[]ride.Date]
	savedForDay    *Derived[[]ride.Ride]
	savedSplit     *Derived[savedSplit]
	upcomingAdults *Derived[[]ride.Ride]
	upcomingFamily *Derived[[]ride.Ride]
	upcomingSafety *Derived[[]ride.Ride]
}

type savedSplit struct{ upcoming, past []ride.Ride }

func NewCache(opts CacheOptions) *Cache {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	g := NewGraph()
	c := &Cache{
		g:          g,
		loc:        opts.Location,
		now:        opts.Now,
		rides:      NewSource(g, coordinator.State[ride.Ride]{}),
		saved:      NewSource(g, coordinator.State[ride.Ride]{}),
		routes:     NewSource(g, coordinator.State[ride.Route]{}),
		today:      NewSource(g, ride.Today(opts.Now(), opts.Location)),
		selectedID: NewSource(g, ""),
		Date:       NewDateCursor(g, opts.Location, opts.Now),
		SavedDate:  NewDateCursor(g, opts.Location, opts.Now),
		Nav:        NewNavigator(g),
	}

	fallback := opts.Fallback
	c.dayRides = Derive2(g, c.rides, c.Date.Value(), func(s coordinator.State[ride.Ride], d ride.Date) []ride.Ride {
		return SameDay(s.Data, d)
	})
	c.mappable = Derive1(g, c.dayRides, func(rs []ride.Ride) []ride.Ride { return Mappable(rs, fallback) })
	c.unmappable = Derive1(g, c.dayRides, func(rs []ride.Ride) []ride.Ride { return Unmappable(rs, fallback) })
	c.points = Derive1(g, c.mappable, MapPoints)
	c.viewport = Derive1(g, c.mappable, func(rs []ride.Ride) Viewport { return FitViewport(rs, fallback) })

	c.selected = Derive3(g, c.rides, c.saved, c.selectedID, func(rs, sv coordinator.State[ride.Ride], id string) *ride.Ride {
		if r, ok := FindRide(rs.Data, id); ok {
			return &r
		}
		// a saved ride stays viewable after it drops out of the feed
		if r, ok := FindRide(sv.Data, id); ok {
			return &r
		}
		return nil
	})
	c.selectedPoint = Derive1(g, c.selected, func(r *ride.Ride) *FeatureCollection {
		if r == nil || !r.IsMappable(fallback) {
			return nil
		}
		fc, _ := SingleRidePoint(*r)
		return &fc
	})
	c.selectedRoute = Derive2(g, c.selected, c.routes, func(r *ride.Ride, s coordinator.State[ride.Route]) *ride.Route {
		if r == nil {
			return nil
		}
		if rt, ok := FindRoute(s.Data, r.RouteID); ok {
			return &rt
		}
		return nil
	})

	c.groups = Derive1(g, c.saved, func(s coordinator.State[ride.Ride]) []DateGroup { return GroupSavedByDate(s.Data) })
	c.navDates = Derive2(g, c.groups, c.today, NavigationDates)
	c.savedForDay = Derive2(g, c.groups, c.SavedDate.Value(), SavedForDay)
	c.savedSplit = Derive2(g, c.saved, c.today, func(s coordinator.State[ride.Ride], today ride.Date) savedSplit {
		up, past := SplitSavedByToday(s.Data, today)
		return savedSplit{upcoming: up, past: past}
	})

	upcoming := func(f Filter) *Derived[[]ride.Ride] {
		return Derive2(g, c.rides, c.today, func(s coordinator.State[ride.Ride], today ride.Date) []ride.Ride {
			return Upcoming(s.Data, today, f)
		})
	}
	c.upcomingAdults = upcoming(FilterAdultsOnly)
	c.upcomingFamily = upcoming(FilterFamilyFriendly)
	c.upcomingSafety = upcoming(FilterSafetyPlan)
	return c
}

// Graph returns the graph for change subscriptions.
func (c *Cache) Graph() *Graph { return c.g }

func (c *Cache) SetRides(s coordinator.State[ride.Ride])   { c.rides.Set(s) }
func (c *Cache) SetSaved(s coordinator.State[ride.Ride])   { c.saved.Set(s) }
func (c *Cache) SetRoutes(s coordinator.State[ride.Route]) { c.routes.Set(s) }

// Select opens the details of a ride; an empty id clears the selection.
func (c *Cache) Select(id string) { c.selectedID.Set(id) }

// SelectOnDay moves the cursor to day and selects id in one step, so readers
// never see the ride of one day paired with another day's list.
func (c *Cache) SelectOnDay(id string, day ride.Date) {
	c.g.Update(func(tx *Tx) {
		Put(tx, c.selectedID, id)
		Put(tx, c.Date.date, day)
	})
}

// rollToday advances today when the clock passed midnight.
func (c *Cache) rollToday() {
	t := ride.Today(c.now(), c.loc)
	c.g.Update(func(tx *Tx) {
		if c.today.value != t {
			Put(tx, c.today, t)
		}
	})
}

// Snapshot is every projection of one consistent input combination.
type Snapshot struct {
	Version uint64    `json:"version"`
	Today   ride.Date `json:"today"`
	Date    ride.Date `json:"date"`
	Label   string    `json:"label"`

	Rides  coordinator.State[ride.Ride]  `json:"-"`
	Saved  coordinator.State[ride.Ride]  `json:"-"`
	Routes coordinator.State[ride.Route] `json:"-"`

	DayRides   []ride.Ride       `json:"dayRides"`
	Mappable   []ride.Ride       `json:"mappable"`
	Unmappable []ride.Ride       `json:"unmappable"`
	Points     FeatureCollection `json:"points"`
	Viewport   Viewport          `json:"viewport"`

	Selected      *ride.Ride         `json:"selected,omitempty"`
	SelectedPoint *FeatureCollection `json:"selectedPoint,omitempty"`
	SelectedRoute *ride.Route        `json:"selectedRoute,omitempty"`

	SavedGroups     []DateGroup `json:"savedGroups"`
	NavigationDates []ride.Date `json:"navigationDates"`
	SavedDate       ride.Date   `json:"savedDate"`
	SavedForDay     []ride.Ride `json:"savedForDay"`
	SavedUpcoming   []ride.Ride `json:"savedUpcoming"`
	SavedPast       []ride.Ride `json:"savedPast"`

	UpcomingAdultsOnly     []ride.Ride `json:"upcomingAdultsOnly"`
	UpcomingFamilyFriendly []ride.Ride `json:"upcomingFamilyFriendly"`
	UpcomingWithSafetyPlan []ride.Ride `json:"upcomingWithSafetyPlan"`

	Stack  []View `json:"stack"`
	Active View   `json:"active"`
}

// Snapshot reads all projections under one graph lock.
func (c *Cache) Snapshot() Snapshot {
	c.rollToday()

	var s Snapshot
	c.g.Read(func(r Snap) {
		s.Version = c.g.clock
		s.Today = Get(r, c.today)
		s.Date = Get(r, c.Date.Value())
		s.Label = DateLabel(s.Date, s.Today)

		s.Rides = Get(r, c.rides)
		s.Saved = Get(r, c.saved)
		s.Routes = Get(r, c.routes)

		s.DayRides = Get(r, c.dayRides)
		s.Mappable = Get(r, c.mappable)
		s.Unmappable = Get(r, c.unmappable)
		s.Points = Get(r, c.points)
		s.Viewport = Get(r, c.viewport)

		s.Selected = Get(r, c.selected)
		s.SelectedPoint = Get(r, c.selectedPoint)
		s.SelectedRoute = Get(r, c.selectedRoute)

		s.SavedGroups = Get(r, c.groups)
		s.NavigationDates = Get(r, c.navDates)
		s.SavedDate = Get(r, c.SavedDate.Value())
		s.SavedForDay = Get(r, c.savedForDay)
		split := Get(r, c.savedSplit)
		s.SavedUpcoming, s.SavedPast = split.upcoming, split.past

		s.UpcomingAdultsOnly = Get(r, c.upcomingAdults)
		s.UpcomingFamilyFriendly = Get(r, c.upcomingFamily)
		s.UpcomingWithSafetyPlan = Get(r, c.upcomingSafety)

		stack := Get(r, c.Nav.Value())
		s.Stack = append([]View(nil), stack...)
		s.Active = stack[len(stack)-1]
	})
	return s
}

// Upcoming returns the upcoming rides of one audience category.
func (s Snapshot) Upcoming(f Filter) ([]ride.Ride, bool) {
	switch f {
	case FilterAdultsOnly:
		return s.UpcomingAdultsOnly, true
	case FilterFamilyFriendly:
		return s.UpcomingFamilyFriendly, true
	case FilterSafetyPlan:
		return s.UpcomingWithSafetyPlan, true
	}
	return nil, false
}

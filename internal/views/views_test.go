package views

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cyclescene/cyclescene/internal/coordinator"
	"github.com/cyclescene/cyclescene/internal/ride"
)

var portland = ride.Position{Lat: 45.515232, Lng: -122.6783853}

func at(id, date string, lat, lng float64) ride.Ride {
	return ride.Ride{ID: id, Title: "Ride " + id, Date: ride.MustDate(date), Lat: ride.NewCoord(lat), Lng: ride.NewCoord(lng)}
}

func ids(rs []ride.Ride) string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return fmt.Sprint(out)
}

func TestMappablePartitionsSameDay(t *testing.T) {
	day := "2024-06-01"
	rides := []ride.Ride{
		at("real", day, 45.5, -122.6),
		at("fallback", day, portland.Lat, portland.Lng),
		{ID: "nowhere", Date: ride.MustDate(day)},
		at("zero", day, 0, -122.6),
		at("other-day", "2024-06-02", 45.5, -122.6),
	}

	same := SameDay(rides, ride.MustDate(day))
	m := Mappable(same, portland)
	u := Unmappable(same, portland)

	if ids(m) != "[real]" {
		t.Errorf("mappable = %s", ids(m))
	}
	if ids(u) != "[fallback nowhere zero]" {
		t.Errorf("unmappable = %s", ids(u))
	}
	if len(m)+len(u) != len(same) {
		t.Errorf("partition lost rides: %d + %d != %d", len(m), len(u), len(same))
	}
}

func TestMapPointsOffsetsDuplicates(t *testing.T) {
	rides := []ride.Ride{
		at("a", "2024-06-01", 45.5, -122.6),
		at("b", "2024-06-01", 45.5, -122.6),
		at("c", "2024-06-01", 45.6, -122.7),
		at("d", "2024-06-01", 45.5000001, -122.6000001),
	}

	fc := MapPoints(rides)

	if fc.Type != "FeatureCollection" || len(fc.Features) != 4 {
		t.Fatalf("collection = %+v", fc)
	}
	want := map[string][2]float64{
		"a": {-122.6, 45.5},
		"b": {-122.6 + DuplicateOffset, 45.5 + DuplicateOffset},
		"c": {-122.7, 45.6},
		"d": {-122.6000001 + 2*DuplicateOffset, 45.5000001 + 2*DuplicateOffset},
	}
	for _, f := range fc.Features {
		w := want[f.Properties.ID]
		got := f.Geometry.Coordinates
		if math.Abs(got[0]-w[0]) > 1e-9 || math.Abs(got[1]-w[1]) > 1e-9 {
			t.Errorf("%s at %v, want %v", f.Properties.ID, got, w)
		}
	}

	// Stored coordinates stay untouched and the result is repeatable.
	if rides[1].Lat.Value != 45.5 {
		t.Error("input ride modified")
	}
	if fmt.Sprint(MapPoints(rides)) != fmt.Sprint(fc) {
		t.Error("map points not deterministic")
	}
}

func TestSingleRidePoint(t *testing.T) {
	r := at("a", "2024-06-01", 45.5, -122.6)
	r.GroupMarker = "tacos"

	fc, ok := SingleRidePoint(r)
	if !ok || len(fc.Features) != 1 || fc.Features[0].Properties.MarkerIcon != "group-marker-tacos" {
		t.Errorf("point = %+v, %v", fc, ok)
	}
	if _, ok := SingleRidePoint(ride.Ride{ID: "x"}); ok {
		t.Error("ride without position produced a point")
	}
}

func TestGroupSavedByDate(t *testing.T) {
	saved := []ride.Ride{
		at("b1", "2024-07-02", 1, 1),
		at("a1", "2024-07-01", 1, 1),
		at("b2", "2024-07-02", 1, 1),
	}
	today := ride.MustDate("2024-07-05")

	groups := GroupSavedByDate(saved)
	if len(groups) != 2 || groups[0].Date.String() != "2024-07-01" || ids(groups[1].Rides) != "[b1 b2]" {
		t.Fatalf("groups = %+v", groups)
	}

	dates := NavigationDates(groups, today)
	if fmt.Sprint(dates) != "[2024-07-01 2024-07-02 2024-07-05]" {
		t.Errorf("navigation dates = %v", dates)
	}
	if got := NavigationDates(nil, today); fmt.Sprint(got) != "[2024-07-05]" {
		t.Errorf("empty navigation dates = %v", got)
	}
	if got := ids(SavedForDay(groups, ride.MustDate("2024-07-02"))); got != "[b1 b2]" {
		t.Errorf("saved for day = %s", got)
	}
	if got := SavedForDay(groups, today); len(got) != 0 {
		t.Errorf("saved for today = %v", got)
	}
}

func TestUpcomingFilters(t *testing.T) {
	today := ride.MustDate("2024-06-10")
	mk := func(id, date string, aud ride.Audience, safety bool) ride.Ride {
		return ride.Ride{ID: id, Date: ride.MustDate(date), Audience: aud, SafetyPlan: ride.Flag(safety)}
	}
	rides := []ride.Ride{
		mk("past-adult", "2024-06-09", ride.AudienceAdults, false),
		mk("today-adult", "2024-06-10", ride.AudienceAdults, true),
		mk("future-family", "2024-06-11", ride.AudienceFamily, false),
		mk("future-general", "2024-06-12", ride.AudienceGeneral, true),
	}

	tests := []struct {
		f    Filter
		want string
	}{
		{FilterAdultsOnly, "[today-adult]"},
		{FilterFamilyFriendly, "[future-family]"},
		{FilterSafetyPlan, "[today-adult future-general]"},
		{Filter("unknown"), "[]"},
	}
	for _, tt := range tests {
		t.Run(string(tt.f), func(t *testing.T) {
			if got := ids(Upcoming(rides, today, tt.f)); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	up, past := SplitSavedByToday(rides, today)
	if len(up) != 3 || ids(past) != "[past-adult]" {
		t.Errorf("split = %s / %s", ids(up), ids(past))
	}
}

func TestDateLabel(t *testing.T) {
	today := ride.MustDate("2024-06-10")
	tests := []struct {
		day  string
		want string
	}{
		{"2024-06-10", "Today"},
		{"2024-06-11", "Tomorrow"},
		{"2024-06-09", "Yesterday"},
		{"2024-06-14", "Fri, Jun 14"},
	}
	for _, tt := range tests {
		if got := DateLabel(ride.MustDate(tt.day), today); got != tt.want {
			t.Errorf("DateLabel(%s) = %q, want %q", tt.day, got, tt.want)
		}
	}
}

func TestFitViewport(t *testing.T) {
	v := FitViewport(nil, portland)
	if v.Center == nil || *v.Center != portland || v.Zoom != CityZoom || v.Bounds != nil {
		t.Errorf("empty = %+v", v)
	}

	one := at("a", "2024-06-01", 45.5, -122.6)
	v = FitViewport([]ride.Ride{one}, portland)
	if v.Center == nil || v.Center.Lat != 45.5 || v.Zoom != RideZoom {
		t.Errorf("single = %+v", v)
	}

	v = FitViewport([]ride.Ride{one, at("b", "2024-06-01", 45.6, -122.7)}, portland)
	if v.Bounds == nil || v.Padding != FitPadding {
		t.Fatalf("multi = %+v", v)
	}
	if v.Bounds.SouthWest != (ride.Position{Lat: 45.5, Lng: -122.7}) || v.Bounds.NorthEast != (ride.Position{Lat: 45.6, Lng: -122.6}) {
		t.Errorf("bounds = %+v", *v.Bounds)
	}
}

func TestNavigatorNeverEmpty(t *testing.T) {
	n := NewNavigator(NewGraph())

	n.Back()
	if n.Active() != DefaultView || len(n.Stack()) != 1 {
		t.Fatalf("after back on fresh stack = %v", n.Stack())
	}

	n.Push(ViewList, false)
	n.Push(ViewRideDetails, false)
	n.Back()
	n.Back()
	n.Back()
	if fmt.Sprint(n.Stack()) != "[map]" {
		t.Errorf("stack = %v", n.Stack())
	}
}

func TestNavigatorPushAndJump(t *testing.T) {
	n := NewNavigator(NewGraph())

	n.Push(ViewList, false)
	n.Push(ViewList, false)
	if fmt.Sprint(n.Stack()) != "[map list]" {
		t.Errorf("duplicate push = %v", n.Stack())
	}
	n.Push(ViewList, true)
	n.Push(ViewRideDetails, false)
	n.Push(ViewSaved, false)

	if !n.JumpTo(ViewList) {
		t.Fatal("jump to list failed")
	}
	if fmt.Sprint(n.Stack()) != "[map list list]" || n.Active() != ViewList {
		t.Errorf("after jump = %v", n.Stack())
	}
	if n.JumpTo(ViewSettings) {
		t.Error("jump to missing view reported success")
	}
	if fmt.Sprint(n.Stack()) != "[map list list]" {
		t.Errorf("missing jump changed stack = %v", n.Stack())
	}
}

func TestNavigatorSkipsUnchangedStack(t *testing.T) {
	g := NewGraph()
	n := NewNavigator(g)
	n.Push(ViewList, false)
	before := g.Version()

	n.JumpTo(ViewSettings)
	n.JumpTo(ViewList)
	n.Push(ViewList, false)

	if got := g.Version(); got != before {
		t.Errorf("version = %d, want %d", got, before)
	}

	n.Back()
	after := g.Version()
	n.Back()
	if g.Version() != after {
		t.Error("back on the default view advanced the graph")
	}
}

func TestParseView(t *testing.T) {
	if v, ok := ParseView("rideDetails"); !ok || v != ViewRideDetails {
		t.Errorf("ParseView = %q, %v", v, ok)
	}
	if _, ok := ParseView("nope"); ok {
		t.Error("unknown view accepted")
	}
}

func TestDerivedMemoizes(t *testing.T) {
	g := NewGraph()
	a := NewSource(g, 1)
	b := NewSource(g, "x")
	calls := 0
	d := Derive2(g, a, b, func(n int, s string) string {
		calls++
		return fmt.Sprint(s, n)
	})

	if d.Get() != "x1" || d.Get() != "x1" || calls != 1 {
		t.Fatalf("value %q after %d calls", d.Get(), calls)
	}
	a.Set(2)
	if d.Get() != "x2" || calls != 2 {
		t.Errorf("value %q after %d calls", d.Get(), calls)
	}

	// A derived value of a derived value only recomputes when its input did.
	upper := 0
	dd := Derive1(g, d, func(s string) int { upper++; return len(s) })
	dd.Get()
	dd.Get()
	if upper != 1 {
		t.Errorf("chained recomputes = %d", upper)
	}
}

func TestUpdateIsGlitchFree(t *testing.T) {
	g := NewGraph()
	a := NewSource(g, 0)
	b := NewSource(g, 0)
	diff := Derive2(g, a, b, func(x, y int) int { return x - y })

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			g.Update(func(tx *Tx) {
				Put(tx, a, i)
				Put(tx, b, i)
			})
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		if v := diff.Get(); v != 0 {
			t.Fatalf("observed half-applied update, diff = %d", v)
		}
	}
}

func TestSubscribeNotifiesOnCommit(t *testing.T) {
	g := NewGraph()
	s := NewSource(g, 0)
	var got []int
	cancel := g.Subscribe(func() { got = append(got, s.Get()) })

	s.Set(1)
	g.Update(func(*Tx) {})
	s.Set(2)
	cancel()
	s.Set(3)

	if fmt.Sprint(got) != "[1 2]" {
		t.Errorf("notifications = %v", got)
	}
}

func TestCacheSnapshot(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }
	c := NewCache(CacheOptions{Fallback: portland, Now: now})

	c.SetRides(coordinator.State[ride.Ride]{Status: coordinator.StatusReady, Data: []ride.Ride{
		at("a", "2024-06-01", 45.5, -122.6),
		at("b", "2024-06-01", portland.Lat, portland.Lng),
		at("c", "2024-06-02", 45.5, -122.6),
	}})
	c.SetSaved(coordinator.State[ride.Ride]{Status: coordinator.StatusReady, Data: []ride.Ride{
		at("c", "2024-06-02", 45.5, -122.6),
	}})
	c.SetRoutes(coordinator.State[ride.Route]{Data: []ride.Route{{ID: "rt1"}}})

	s := c.Snapshot()
	if s.Label != "Today" || ids(s.DayRides) != "[a b]" {
		t.Fatalf("day = %s %s", s.Label, ids(s.DayRides))
	}
	if ids(s.Mappable) != "[a]" || ids(s.Unmappable) != "[b]" || len(s.Points.Features) != 1 {
		t.Errorf("mappable = %s, unmappable = %s", ids(s.Mappable), ids(s.Unmappable))
	}
	if s.Viewport.Zoom != RideZoom {
		t.Errorf("viewport = %+v", s.Viewport)
	}
	if fmt.Sprint(s.NavigationDates) != "[2024-06-01 2024-06-02]" {
		t.Errorf("navigation dates = %v", s.NavigationDates)
	}
	if s.Active != DefaultView {
		t.Errorf("active = %q", s.Active)
	}

	c.Date.AddDays(1)
	s = c.Snapshot()
	if s.Label != "Tomorrow" || ids(s.DayRides) != "[c]" {
		t.Errorf("next day = %s %s", s.Label, ids(s.DayRides))
	}

	rides := append([]ride.Ride(nil), s.Rides.Data...)
	rides[2].RouteID = "rt1"
	c.SetRides(coordinator.State[ride.Ride]{Data: rides})
	c.Select("c")
	s = c.Snapshot()
	if s.Selected == nil || s.Selected.ID != "c" || s.SelectedRoute == nil || s.SelectedPoint == nil {
		t.Errorf("selection = %+v route=%v", s.Selected, s.SelectedRoute)
	}

	// A saved ride stays selectable once it leaves the feed.
	c.SetRides(coordinator.State[ride.Ride]{})
	if s = c.Snapshot(); s.Selected == nil || s.Selected.ID != "c" {
		t.Errorf("saved selection = %+v", s.Selected)
	}
}

func TestCacheRollsToday(t *testing.T) {
	clock := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC)
	c := NewCache(CacheOptions{Now: func() time.Time { return clock }})
	c.SetRides(coordinator.State[ride.Ride]{Data: []ride.Ride{
		{ID: "a", Date: ride.MustDate("2024-06-01"), Audience: ride.AudienceAdults},
	}})

	if s := c.Snapshot(); ids(s.UpcomingAdultsOnly) != "[a]" {
		t.Fatalf("upcoming = %s", ids(s.UpcomingAdultsOnly))
	}
	clock = clock.Add(2 * time.Minute)
	s := c.Snapshot()
	if s.Today.String() != "2024-06-02" || len(s.UpcomingAdultsOnly) != 0 {
		t.Errorf("after midnight today=%s upcoming=%s", s.Today, ids(s.UpcomingAdultsOnly))
	}
}

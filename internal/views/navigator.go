package views

import (
	"slices"
	"time"

	"github.com/cyclescene/cyclescene/internal/ride"
)

// View identifies a screen of the single-page shell.
type View string

const (
	ViewMap         View = "map"
	ViewList        View = "list"
	ViewRideDetails View = "rideDetails"
	ViewSaved       View = "saved"
	ViewSettings    View = "settings"
	ViewOtherRides  View = "otherRides"
	ViewDatePicker  View = "datePicker"

	// settings subviews
	ViewAppearance          View = "appearance"
	ViewData                View = "data"
	ViewAbout               View = "about"
	ViewAdultOnlyRides      View = "adultOnlyRides"
	ViewFamilyFriendlyRides View = "familyFriendlyRides"
	ViewSafetyRides         View = "covideSafetyRides"
	ViewPrivacyPolicy       View = "privacyPolicy"
	ViewTermsOfUse          View = "termsOfUse"
	ViewChangeLog           View = "changeLog"
	ViewContact             View = "contact"
)

// DefaultView is the bottom of every navigation stack.
const DefaultView = ViewMap

var knownViews = []View{
	ViewMap, ViewList, ViewRideDetails, ViewSaved, ViewSettings, ViewOtherRides, ViewDatePicker,
	ViewAppearance, ViewData, ViewAbout, ViewAdultOnlyRides, ViewFamilyFriendlyRides,
	ViewSafetyRides, ViewPrivacyPolicy, ViewTermsOfUse, ViewChangeLog, ViewContact,
}

// ParseView validates a view identifier.
func ParseView(s string) (View, bool) {
	v := View(s)
	return v, slices.Contains(knownViews, v)
}

// Navigator is the view history of one session. The top of the stack is the
// active view; the stack is never empty.
type Navigator struct {
	stack *Source[[]View]
}

func NewNavigator(g *Graph) *Navigator {
	return &Navigator{stack: NewSource(g, []View{DefaultView})}
}

// Push puts v on top of the stack. Pushing the active view again is ignored
// unless force is set.
func (n *Navigator) Push(v View, force bool) {
	n.update(func(s []View) ([]View, bool) {
		if !force && s[len(s)-1] == v {
			return s, false
		}
		return append(slices.Clip(s), v), true
	})
}

// JumpTo drops everything above the most recent occurrence of v. It reports
// false and leaves the stack alone when v is not on it.
func (n *Navigator) JumpTo(v View) bool {
	found := false
	n.update(func(s []View) ([]View, bool) {
		i := len(s) - 1
		for i >= 0 && s[i] != v {
			i--
		}
		if i < 0 {
			return s, false
		}
		found = true
		return slices.Clip(s[:i+1]), i+1 < len(s)
	})
	return found
}

// Back pops the active view. Popping the last view leaves the default view.
func (n *Navigator) Back() {
	n.update(func(s []View) ([]View, bool) {
		if len(s) <= 1 {
			return []View{DefaultView}, s[0] != DefaultView
		}
		return slices.Clip(s[:len(s)-1]), true
	})
}

// update writes the stack only when fn reports a change, so unchanged
// history does not advance the graph.
func (n *Navigator) update(fn func(s []View) ([]View, bool)) {
	n.stack.g.Update(func(tx *Tx) {
		if next, changed := fn(n.stack.value); changed {
			Put(tx, n.stack, next)
		}
	})
}

func (n *Navigator) Active() View {
	s := n.stack.Get()
	return s[len(s)-1]
}

// Stack returns a copy of the history, bottom first.
func (n *Navigator) Stack() []View {
	return slices.Clone(n.stack.Get())
}

// Value exposes the stack to derived values.
func (n *Navigator) Value() Value[[]View] { return n.stack }

// DateCursor is the date the ride list and map are showing.
type DateCursor struct {
	date *Source[ride.Date]
	loc  *time.Location
	now  func() time.Time
}

func NewDateCursor(g *Graph, loc *time.Location, now func() time.Time) *DateCursor {
	if now == nil {
		now = time.Now
	}
	return &DateCursor{date: NewSource(g, ride.Today(now(), loc)), loc: loc, now: now}
}

func (c *DateCursor) Get() ride.Date   { return c.date.Get() }
func (c *DateCursor) Set(d ride.Date)  { c.date.Set(d) }
func (c *DateCursor) Today() ride.Date { return ride.Today(c.now(), c.loc) }
func (c *DateCursor) SetToday()        { c.date.Set(c.Today()) }
func (c *DateCursor) AddDays(days int) {
	c.date.Modify(func(d ride.Date) ride.Date { return d.AddDays(days) })
}

func (c *DateCursor) Value() Value[ride.Date] { return c.date }

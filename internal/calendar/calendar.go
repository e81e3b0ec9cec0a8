// Package calendar exports rides as iCalendar files.
package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/cyclescene/cyclescene/internal/ride"
)

const (
	ProductID = "CycleScene"
	uidDomain = "cyclescene.com"

	// DefaultDuration applies when a ride publishes no end time.
	DefaultDuration = 2 * time.Hour
)

var ErrNoDate = errors.New("ride has no date")

// Event renders r as a single-event calendar. Wall-clock times are read in
// loc, the ride's city.
func Event(r ride.Ride, loc *time.Location, stamp time.Time) ([]byte, error) {
	if r.Date.IsZero() {
		return nil, ErrNoDate
	}
	if loc == nil {
		loc = time.UTC
	}
	start, err := at(r.Date, r.StartTime, loc)
	if err != nil {
		return nil, fmt.Errorf("start time: %w", err)
	}
	end := start.Add(DefaultDuration)
	if r.EndTime != "" {
		if end, err = at(r.Date, r.EndTime, loc); err != nil {
			return nil, fmt.Errorf("end time: %w", err)
		}
		// rides past midnight end the next day
		if end.Before(start) {
			end = end.AddDate(0, 0, 1)
		}
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ProductID)

	ev := cal.AddEvent(r.ID + "@" + uidDomain)
	ev.SetDtStampTime(stamp)
	ev.SetStartAt(start)
	ev.SetEndAt(end)
	ev.SetSummary(r.Title)
	ev.SetDescription(description(r))
	if where := r.Location(); where != "" {
		ev.SetLocation(where)
	}
	if r.Shareable != "" {
		ev.SetURL(r.Shareable)
	}
	if r.Cancelled {
		ev.SetStatus(ics.ObjectStatusCancelled)
	}
	return []byte(cal.Serialize()), nil
}

func description(r ride.Ride) string {
	details := strings.ReplaceAll(r.Details, "\r\n", "\n")
	details = strings.ReplaceAll(details, "\r", "\n")
	return "Join the ride! Details: " + details + "\nLink: " + r.Shareable
}

// at combines a calendar date with an optional wall-clock time; an empty
// time means midnight.
func at(d ride.Date, clock string, loc *time.Location) (time.Time, error) {
	hour, minute := 0, 0
	if clock != "" {
		var err error
		if hour, minute, err = ride.ParseClock(clock); err != nil {
			return time.Time{}, err
		}
	}
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc), nil
}

var unsafeChars = regexp.MustCompile(`[\s\W]+`)

// Filename is the download name for the event of r.
func Filename(r ride.Ride) string {
	return unsafeChars.ReplaceAllString(r.Title, "_") + "_" + r.Date.String() + ".ics"
}

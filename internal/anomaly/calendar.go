package anomaly

import (
	"fmt"
	"strings"
	"time"
)

// Calendar answers whether a posting falls on a configured non-working
// day. Timestamps are shifted into the engagement's timezone before
// the weekday or date is read.
type Calendar struct {
	loc      *time.Location
	weekdays map[time.Weekday]bool
	dates    map[string]bool
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NewCalendar builds a calendar from a timezone name ("" means UTC),
// weekday names and exact "2006-01-02" dates.
func NewCalendar(timezone string, weekdays []string, dates []string) (*Calendar, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
	}

	c := &Calendar{
		loc:      loc,
		weekdays: make(map[time.Weekday]bool),
		dates:    make(map[string]bool),
	}
	for _, name := range weekdays {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		c.weekdays[wd] = true
	}
	for _, d := range dates {
		d = strings.TrimSpace(d)
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("invalid calendar date %q", d)
		}
		c.dates[d] = true
	}
	return c, nil
}

// OffDay reports whether t falls on a configured non-working day and
// why: "holiday" for an exact date hit, "weekend" for a weekday hit.
// An exact date wins when both apply.
func (c *Calendar) OffDay(t time.Time) (string, bool) {
	local := t.In(c.loc)
	if c.dates[local.Format("2006-01-02")] {
		return "holiday", true
	}
	if c.weekdays[local.Weekday()] {
		return "weekend", true
	}
	return "", false
}

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

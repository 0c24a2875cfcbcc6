package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a time of day expressed as minutes after midnight.
// 1440 ("24:00") is allowed as an end-of-day bound.
type ClockTime int

const EndOfDay ClockTime = 24 * 60

// ParseClockTime parses "HH:MM" (00:00..24:00).
func ParseClockTime(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("clock time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("clock time %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("clock time %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock time %q: out of range", s)
	}
	return ClockTime(h*60 + m), nil
}

// MustClock is ParseClockTime for literals; it panics on bad input.
func MustClock(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On returns the instant at this time of day on day's calendar date.
func (c ClockTime) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, int(c), 0, 0, day.Location())
}

// Window is a reusable time-of-day template. An empty Days list means every day.
type Window struct {
	Start ClockTime      `json:"start"`
	End   ClockTime      `json:"end"`
	Days  []time.Weekday `json:"days,omitempty"`
}

// ActiveOn reports whether the window applies on weekday d.
func (w Window) ActiveOn(d time.Weekday) bool {
	if len(w.Days) == 0 {
		return true
	}
	for _, x := range w.Days {
		if x == d {
			return true
		}
	}
	return false
}

// Range materializes the window on day's date.
func (w Window) Range(day time.Time) DateRange {
	return DateRange{Start: w.Start.On(day), End: w.End.On(day)}
}

// ActiveHours holds the per-category templates.
type ActiveHours struct {
	Personal []Window `json:"personal"`
	Work     []Window `json:"work"`
	Meeting  []Window `json:"meeting"`
}

// For returns the templates configured for c. Unknown categories get none.
func (a ActiveHours) For(c Category) []Window {
	switch c {
	case CategoryPersonal:
		return a.Personal
	case CategoryWork:
		return a.Work
	case CategoryMeeting:
		return a.Meeting
	default:
		return nil
	}
}

// Package clock holds the quarter-hour rounding rules used everywhere a
// time value is produced, plus an injectable source of "now".
package clock

import "time"

// Quarter is the scheduling granularity.
const Quarter = 15 * time.Minute

// Clock supplies the current instant. Scheduling reads it exactly once per pass.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

// Fixed is a Clock frozen at a single instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// RoundUp returns t moved forward to the next 15-minute boundary in t's own
// location. Seconds and sub-seconds are dropped; instants already on a
// boundary are returned unchanged.
func RoundUp(t time.Time) time.Time {
	down := RoundDown(t)
	if down.Equal(t) {
		return down
	}
	return down.Add(Quarter)
}

// RoundDown truncates t to the previous 15-minute boundary.
func RoundDown(t time.Time) time.Time {
	m := t.Minute() - t.Minute()%15
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), m, 0, 0, t.Location())
}

// CeilDuration rounds d up to a whole number of quarter hours.
func CeilDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	q := d / Quarter
	if d%Quarter != 0 {
		q++
	}
	return q * Quarter
}

// FloorDuration rounds d down to a whole number of quarter hours.
func FloorDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return (d / Quarter) * Quarter
}

// NearestDuration rounds d to the closest quarter hour, halves going up.
func NearestDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return FloorDuration(d + Quarter/2)
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// HourOf returns the fractional hour of day of t (9:30 -> 9.5).
func HourOf(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}

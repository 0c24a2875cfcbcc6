package optimize

import (
	"time"

	"slotcal/internal/clock"
	"slotcal/internal/model"
)

// Anchor times used when a habit only has a coarse preference.
var preferenceAnchors = map[model.TimePreference]model.ClockTime{
	model.PreferenceMorning:   9 * 60,
	model.PreferenceAfternoon: 14 * 60,
	model.PreferenceEvening:   18 * 60,
	model.PreferenceNight:     22 * 60,
}

// IdealStartForHabit chooses where inside slot a habit of the given length
// should begin: at its ideal time when that fits, else near its preference
// anchor, else as close to noon as the slot allows. The result sits on a
// quarter-hour boundary and keeps the habit inside the slot when possible.
func IdealStartForHabit(h model.HabitDurationConfig, slot model.TimeSlotInfo, minutes int) time.Time {
	dur := time.Duration(minutes) * time.Minute
	latestStart := slot.End.Add(-dur)

	if h.IdealTime != "" {
		if c, err := model.ParseClockTime(h.IdealTime); err == nil {
			t := c.On(slot.Start)
			if !t.Before(slot.Start) && !t.After(latestStart) {
				return fitQuarter(t, slot, dur)
			}
		}
	}

	anchor := model.ClockTime(noonHour * 60)
	if a, ok := preferenceAnchors[h.TimePreference]; ok {
		anchor = a
	}
	return fitQuarter(clamp(anchor.On(slot.Start), slot.Start, latestStart), slot, dur)
}

// IdealStartForTask places a task as soon as possible: the slot start, or
// now when now already falls inside the slot.
func IdealStartForTask(_ TaskSlotConfig, slot model.TimeSlotInfo, _ int, now time.Time) time.Time {
	start := slot.Start
	if now.After(start) {
		start = now
	}
	return clock.RoundUp(start)
}

// fitQuarter rounds t up to a quarter hour, falling back to rounding down
// when the rounded start would push the end past the slot.
func fitQuarter(t time.Time, slot model.TimeSlotInfo, dur time.Duration) time.Time {
	up := clock.RoundUp(t)
	if !up.Add(dur).After(slot.End) {
		return up
	}
	down := clock.RoundDown(t)
	if !down.Before(slot.Start) {
		return down
	}
	return up
}

func clamp(t, lo, hi time.Time) time.Time {
	if hi.Before(lo) {
		return lo
	}
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

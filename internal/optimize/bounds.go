// Package optimize sizes habits and ranks candidate slots for habits,
// preference-bound tasks and energy-sensitive tasks.
package optimize

import (
	"math"

	"slotcal/internal/model"
)

const (
	// Floor for a derived minimum duration, in minutes.
	minDerivedMinutes = 15
	// Ceiling for a derived maximum duration, in minutes.
	maxDerivedMinutes = 180
)

// Bounds are effective habit durations in minutes.
type Bounds struct {
	Min       int
	Preferred int
	Max       int
}

// EffectiveDurationBounds fills in missing min/max from the preferred duration:
// min defaults to half of it (never under 15), max to 150% of it (never over 180).
func EffectiveDurationBounds(h model.HabitDurationConfig) Bounds {
	b := Bounds{Preferred: h.DurationMinutes}

	if h.MinDurationMinutes != nil {
		b.Min = *h.MinDurationMinutes
	} else {
		b.Min = max(minDerivedMinutes, int(math.Floor(float64(h.DurationMinutes)*0.5)))
	}

	if h.MaxDurationMinutes != nil {
		b.Max = *h.MaxDurationMinutes
	} else {
		b.Max = min(maxDerivedMinutes, int(math.Ceil(float64(h.DurationMinutes)*1.5)))
	}
	return b
}

// OptimalDuration picks how long a habit should run in slot.
// A slot holding the ideal time gets as much as allowed, a preference match
// gets the preferred length, anything else takes what the slot offers up to
// the preferred length. Zero means the habit does not fit. The ideal-time case
// skips the minimum check; FindBestSlotForHabit drops short slots first.
func OptimalDuration(h model.HabitDurationConfig, slot model.TimeSlotInfo, ch Characteristics) int {
	b := EffectiveDurationBounds(h)
	if ch.MatchesIdealTime {
		return min(b.Max, slot.MaxAvailable)
	}
	if slot.MaxAvailable < b.Min {
		return 0
	}

	switch {
	case ch.MatchesPreference:
		return min(b.Preferred, slot.MaxAvailable)
	default:
		if slot.MaxAvailable <= b.Preferred {
			return slot.MaxAvailable
		}
		return b.Preferred
	}
}

package optimize

import (
	"math"
	"time"

	"slotcal/internal/clock"
	"slotcal/internal/model"
)

// Weights tunes slot scoring. Zero fields fall back to DefaultWeights.
type Weights struct {
	IdealTimeBonus      float64
	PreferenceBonus     float64
	FitsPreferredBonus  float64
	TaskPreferenceBonus float64
}

func DefaultWeights() Weights {
	return Weights{
		IdealTimeBonus:      1000,
		PreferenceBonus:     500,
		FitsPreferredBonus:  200,
		TaskPreferenceBonus: 500,
	}
}

func (w Weights) withDefaults() Weights {
	d := DefaultWeights()
	if w.IdealTimeBonus == 0 {
		w.IdealTimeBonus = d.IdealTimeBonus
	}
	if w.PreferenceBonus == 0 {
		w.PreferenceBonus = d.PreferenceBonus
	}
	if w.FitsPreferredBonus == 0 {
		w.FitsPreferredBonus = d.FitsPreferredBonus
	}
	if w.TaskPreferenceBonus == 0 {
		w.TaskPreferenceBonus = d.TaskPreferenceBonus
	}
	return w
}

const (
	earlyTiebreakPerHour = 0.1
	noonTiebreakPerHour  = 0.5
	noonHour             = 12
)

// ScoreSlotForHabit ranks slot for h; higher is better.
// Habits with an ideal time or preference lean earlier, the rest lean toward noon.
func ScoreSlotForHabit(h model.HabitDurationConfig, slot model.TimeSlotInfo, w Weights) float64 {
	w = w.withDefaults()
	b := EffectiveDurationBounds(h)
	ch := SlotCharacteristics(h, slot)

	score := 0.0
	if ch.MatchesIdealTime {
		score += w.IdealTimeBonus
	}
	if ch.MatchesPreference {
		score += w.PreferenceBonus
	}
	if slot.MaxAvailable >= b.Preferred {
		score += w.FitsPreferredBonus
	}

	hour := clock.HourOf(slot.Start)
	if h.IdealTime != "" || h.TimePreference != model.PreferenceNone {
		score -= hour * earlyTiebreakPerHour
	} else {
		score -= math.Abs(hour-noonHour) * noonTiebreakPerHour
	}
	return score
}

// FindBestSlotForHabit returns the highest scoring slot that can hold the
// habit's minimum, or nil. Equal scores go to the earlier slot.
func FindBestSlotForHabit(h model.HabitDurationConfig, slots []model.TimeSlotInfo) *model.TimeSlotInfo {
	b := EffectiveDurationBounds(h)
	w := DefaultWeights()
	return pickBest(slots, b.Min, func(s model.TimeSlotInfo) float64 {
		return ScoreSlotForHabit(h, s, w)
	})
}

// TaskSlotConfig is what task scoring needs to know about a task.
type TaskSlotConfig struct {
	Deadline           *time.Time
	Priority           model.Priority
	PreferredTimeOfDay model.TimePreference
}

const (
	urgentWithin = 24 * time.Hour
	soonWithin   = 72 * time.Hour
	// Slots larger than this earn no extra size credit.
	sizeCreditCapMinutes = 120
)

var priorityBonus = map[model.Priority]float64{
	model.PriorityCritical: 200,
	model.PriorityHigh:     100,
	model.PriorityLow:      -50,
}

// ScoreSlotForTask ranks slot for a regular task. Tasks go as soon as
// possible; urgency sharpens that, priority shifts the whole score and a
// matching time preference outweighs both.
func ScoreSlotForTask(t TaskSlotConfig, slot model.TimeSlotInfo, now time.Time, w Weights) float64 {
	w = w.withDefaults()
	hour := clock.HourOf(slot.Start)

	score := 300 - hour*2
	score += float64(min(slot.MaxAvailable, sizeCreditCapMinutes)) / sizeCreditCapMinutes * 50

	if t.Deadline != nil {
		left := t.Deadline.Sub(now)
		switch {
		case left < urgentWithin:
			score += 200 - hour*5
		case left < soonWithin:
			score += 50 - hour
		}
	}

	score += priorityBonus[t.Priority]

	if t.PreferredTimeOfDay != model.PreferenceNone && SlotMatchesPreference(t.PreferredTimeOfDay, slot) {
		score += w.TaskPreferenceBonus
	}
	return score
}

// FindBestSlotForTask returns the best slot with at least minMinutes free, or nil.
func FindBestSlotForTask(t TaskSlotConfig, slots []model.TimeSlotInfo, minMinutes int, now time.Time) *model.TimeSlotInfo {
	w := DefaultWeights()
	return pickBest(slots, minMinutes, func(s model.TimeSlotInfo) float64 {
		return ScoreSlotForTask(t, s, now, w)
	})
}

func pickBest(slots []model.TimeSlotInfo, minMinutes int, score func(model.TimeSlotInfo) float64) *model.TimeSlotInfo {
	var (
		best      *model.TimeSlotInfo
		bestScore float64
	)
	for i := range slots {
		s := slots[i]
		if s.MaxAvailable < minMinutes {
			continue
		}
		sc := score(s)
		if best == nil || sc > bestScore || (sc == bestScore && s.Start.Before(best.Start)) {
			picked := s
			best = &picked
			bestScore = sc
		}
	}
	return best
}

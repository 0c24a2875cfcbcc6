package optimize

import (
	"time"

	"slotcal/internal/model"
)

// preferenceWindows maps each time preference onto its band of the day.
var preferenceWindows = map[model.TimePreference]model.Window{
	model.PreferenceMorning:   {Start: 6 * 60, End: 12 * 60},
	model.PreferenceAfternoon: {Start: 12 * 60, End: 17 * 60},
	model.PreferenceEvening:   {Start: 17 * 60, End: 21 * 60},
	model.PreferenceNight:     {Start: 21 * 60, End: model.EndOfDay},
}

// PreferenceWindow returns the band for p; ok is false for none/unknown.
func PreferenceWindow(p model.TimePreference) (model.Window, bool) {
	w, ok := preferenceWindows[p]
	return w, ok
}

// Characteristics describes how a slot relates to a habit's wishes.
type Characteristics struct {
	MatchesIdealTime  bool
	MatchesPreference bool
}

// TimeMatchesSlot reports whether "HH:MM" on the slot's day falls in
// [slot.Start, slot.End). Unparseable times never match.
func TimeMatchesSlot(ideal string, slot model.TimeSlotInfo) bool {
	c, err := model.ParseClockTime(ideal)
	if err != nil {
		return false
	}
	t := c.On(slot.Start)
	return !t.Before(slot.Start) && t.Before(slot.End)
}

// SlotMatchesPreference reports whether the slot overlaps the preference band.
func SlotMatchesPreference(p model.TimePreference, slot model.TimeSlotInfo) bool {
	w, ok := PreferenceWindow(p)
	if !ok {
		return false
	}
	r := w.Range(slot.Start)
	return slot.Start.Before(r.End) && slot.End.After(r.Start)
}

// ClipToPreference narrows r to the part that lies inside the preference band
// on r's start day. ok is false when nothing is left.
func ClipToPreference(p model.TimePreference, r model.DateRange) (model.DateRange, bool) {
	w, found := PreferenceWindow(p)
	if !found {
		return r, true
	}
	band := w.Range(r.Start)
	out := model.DateRange{Start: latest(r.Start, band.Start), End: earliest(r.End, band.End)}
	return out, out.Valid()
}

func SlotCharacteristics(h model.HabitDurationConfig, slot model.TimeSlotInfo) Characteristics {
	var ch Characteristics
	if h.IdealTime != "" {
		ch.MatchesIdealTime = TimeMatchesSlot(h.IdealTime, slot)
	}
	if h.TimePreference != model.PreferenceNone {
		ch.MatchesPreference = SlotMatchesPreference(h.TimePreference, slot)
	}
	return ch
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

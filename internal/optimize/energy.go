package optimize

import (
	"strings"

	"slotcal/internal/clock"
	"slotcal/internal/model"
)

// EnergyProfile is a chronotype with a peak-focus window.
type EnergyProfile struct {
	Name string
	Peak model.Window
}

var energyProfiles = map[string]EnergyProfile{
	"morning_person":   {Name: "morning_person", Peak: model.Window{Start: 8 * 60, End: 12 * 60}},
	"afternoon_person": {Name: "afternoon_person", Peak: model.Window{Start: 13 * 60, End: 17 * 60}},
	"night_owl":        {Name: "night_owl", Peak: model.Window{Start: 20 * 60, End: model.EndOfDay}},
}

// LookupEnergyProfile resolves a profile name case-insensitively.
func LookupEnergyProfile(name string) (EnergyProfile, bool) {
	p, ok := energyProfiles[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// InPeak reports whether slot overlaps the profile's peak window on its day.
func (p EnergyProfile) InPeak(slot model.TimeSlotInfo) bool {
	r := p.Peak.Range(slot.Start)
	return slot.Start.Before(r.End) && slot.End.After(r.Start)
}

// ScoreSlotForEnergy favors slots touching the peak window; among equals the
// earlier start wins.
func ScoreSlotForEnergy(p EnergyProfile, slot model.TimeSlotInfo, w Weights) float64 {
	w = w.withDefaults()
	score := 0.0
	if p.InPeak(slot) {
		score += w.TaskPreferenceBonus
	}
	return score - clock.HourOf(slot.Start)*earlyTiebreakPerHour
}

// FindBestSlotForEnergy returns the best slot with at least minMinutes free, or nil.
func FindBestSlotForEnergy(p EnergyProfile, slots []model.TimeSlotInfo, minMinutes int) *model.TimeSlotInfo {
	w := DefaultWeights()
	return pickBest(slots, minMinutes, func(s model.TimeSlotInfo) float64 {
		return ScoreSlotForEnergy(p, s, w)
	})
}

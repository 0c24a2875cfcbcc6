package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCategory   = errors.New("unknown category")
	ErrUnknownPriority   = errors.New("unknown priority")
	ErrUnknownPreference = errors.New("unknown time preference")
)

// Category partitions tasks and active-hour templates.
type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryMeeting  Category = "meeting"
)

// Categories lists every category in a fixed order.
var Categories = []Category{CategoryWork, CategoryPersonal, CategoryMeeting}

func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryWork:
		return CategoryWork, nil
	case CategoryPersonal:
		return CategoryPersonal, nil
	case CategoryMeeting:
		return CategoryMeeting, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// ParsePriority accepts the four named levels; the empty string is "unset".
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "", PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPriority, s)
}

// TimePreference is a coarse time-of-day band.
type TimePreference string

const (
	PreferenceNone      TimePreference = ""
	PreferenceMorning   TimePreference = "morning"
	PreferenceAfternoon TimePreference = "afternoon"
	PreferenceEvening   TimePreference = "evening"
	PreferenceNight     TimePreference = "night"
)

func ParseTimePreference(s string) (TimePreference, error) {
	p := TimePreference(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PreferenceNone, PreferenceMorning, PreferenceAfternoon, PreferenceEvening, PreferenceNight:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPreference, s)
}

type EnergyLoad string

const (
	EnergyNormal EnergyLoad = ""
	EnergyLow    EnergyLoad = "low"
	EnergyHigh   EnergyLoad = "high"
)

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"slotcal/internal/model"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ToActiveHours converts the configured templates.
func (c *Config) ToActiveHours() (model.ActiveHours, error) {
	var (
		out  model.ActiveHours
		errs []error
		err  error
	)
	if out.Work, err = toWindows("work", c.ActiveHours.Work); err != nil {
		errs = append(errs, err)
	}
	if out.Personal, err = toWindows("personal", c.ActiveHours.Personal); err != nil {
		errs = append(errs, err)
	}
	if out.Meeting, err = toWindows("meeting", c.ActiveHours.Meeting); err != nil {
		errs = append(errs, err)
	}
	return out, errors.Join(errs...)
}

func toWindows(name string, in []WindowConfig) ([]model.Window, error) {
	out := make([]model.Window, 0, len(in))
	var errs []error
	for i, wc := range in {
		w, err := toWindow(wc)
		if err != nil {
			errs = append(errs, fmt.Errorf("active_hours.%s[%d]: %w", name, i, err))
			continue
		}
		out = append(out, w)
	}
	return out, errors.Join(errs...)
}

func toWindow(wc WindowConfig) (model.Window, error) {
	start, err := model.ParseClockTime(wc.Start)
	if err != nil {
		return model.Window{}, err
	}
	end, err := model.ParseClockTime(wc.End)
	if err != nil {
		return model.Window{}, err
	}
	if end <= start {
		return model.Window{}, fmt.Errorf("end %s is not after start %s", wc.End, wc.Start)
	}
	w := model.Window{Start: start, End: end}
	for _, d := range wc.Days {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(d))]
		if !ok {
			return model.Window{}, fmt.Errorf("unknown weekday %q", d)
		}
		w.Days = append(w.Days, wd)
	}
	return w, nil
}

// ToTasks converts the configured tasks, resolving dates in loc.
func (c *Config) ToTasks(loc *time.Location) ([]model.Task, error) {
	out := make([]model.Task, 0, len(c.Tasks))
	var errs []error
	for _, tc := range c.Tasks {
		t, err := tc.toTask(loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("task %q: %w", tc.ID, err))
			continue
		}
		out = append(out, t)
	}
	return out, errors.Join(errs...)
}

func (tc TaskConfig) toTask(loc *time.Location) (model.Task, error) {
	if tc.DurationMinutes <= 0 {
		return model.Task{}, errors.New("duration_minutes must be positive")
	}
	cat, err := model.ParseCategory(tc.Category)
	if err != nil {
		return model.Task{}, err
	}
	prio, err := model.ParsePriority(tc.Priority)
	if err != nil {
		return model.Task{}, err
	}
	pref, err := model.ParseTimePreference(tc.TimePreference)
	if err != nil {
		return model.Task{}, err
	}
	load := model.EnergyLoad(strings.ToLower(strings.TrimSpace(tc.EnergyLoad)))
	switch load {
	case model.EnergyNormal, model.EnergyLow, model.EnergyHigh:
	default:
		return model.Task{}, fmt.Errorf("unknown energy_load %q", tc.EnergyLoad)
	}
	if tc.IdealTime != "" {
		if _, err := model.ParseClockTime(tc.IdealTime); err != nil {
			return model.Task{}, err
		}
	}

	name := tc.Name
	if name == "" {
		name = tc.ID
	}
	t := model.Task{
		ID:             tc.ID,
		Name:           name,
		Duration:       minutes(tc.DurationMinutes),
		MinDuration:    minutes(tc.MinDurationMinutes),
		MaxDuration:    minutes(tc.MaxDurationMinutes),
		Category:       cat,
		Priority:       prio,
		AllowSplit:     tc.AllowSplit == nil || *tc.AllowSplit,
		IsHabit:        tc.Habit,
		IdealTime:      tc.IdealTime,
		TimePreference: pref,
		EnergyLoad:     load,
	}
	if tc.Deadline != "" {
		d, err := ParseInstant(tc.Deadline, loc, true)
		if err != nil {
			return model.Task{}, fmt.Errorf("deadline: %w", err)
		}
		t.Deadline = &d
	}
	if tc.NotBefore != "" {
		d, err := ParseInstant(tc.NotBefore, loc, false)
		if err != nil {
			return model.Task{}, fmt.Errorf("not_before: %w", err)
		}
		t.NotBefore = &d
	}
	return t, nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

var instantLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseInstant reads RFC3339, a local "2006-01-02 15:04" or a bare date.
// With endOfDay a bare date means the following midnight.
func ParseInstant(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q", s)
	}
	if endOfDay {
		d = d.AddDate(0, 0, 1)
	}
	return d, nil
}

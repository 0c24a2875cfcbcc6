// Package webadapter converts between the calendar UI's row shapes and the
// scheduler's model types.
package webadapter

import (
	"fmt"
	"math"
	"time"

	"slotcal/internal/model"
)

const (
	DefaultMinSplitMinutes = 30
	DefaultMaxSplitMinutes = 120

	// LockedName is the placeholder name given to existing calendar rows.
	LockedName      = "Existing event"
	defaultTaskName = "Task"
)

// CalendarHours selects which hour template a task is scheduled into.
type CalendarHours string

const (
	WorkHours     CalendarHours = "work_hours"
	PersonalHours CalendarHours = "personal_hours"
	MeetingHours  CalendarHours = "meeting_hours"
)

// Category maps the hour type onto a scheduling category; anything
// unrecognised is work.
func (h CalendarHours) Category() model.Category {
	switch h {
	case PersonalHours:
		return model.CategoryPersonal
	case MeetingHours:
		return model.CategoryMeeting
	default:
		return model.CategoryWork
	}
}

// Color is the calendar color used for events of this hour type.
func (h CalendarHours) Color() string {
	switch h {
	case MeetingHours:
		return "CYAN"
	case PersonalHours:
		return "GREEN"
	default:
		return "BLUE"
	}
}

// WebTask is a task row as stored by the calendar UI.
type WebTask struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`

	// TotalDuration is in hours.
	TotalDuration *float64 `json:"total_duration,omitempty"`
	IsSplittable  *bool    `json:"is_splittable,omitempty"`

	MinSplitDurationMinutes *int `json:"min_split_duration_minutes,omitempty"`
	MaxSplitDurationMinutes *int `json:"max_split_duration_minutes,omitempty"`

	CalendarHours CalendarHours `json:"calendar_hours,omitempty"`
	Priority      string        `json:"priority,omitempty"`

	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// ScheduledMinutes is what earlier passes already placed.
	ScheduledMinutes int `json:"scheduled_minutes,omitempty"`
}

// TotalMinutes is TotalDuration in whole minutes.
func (w WebTask) TotalMinutes() int {
	if w.TotalDuration == nil || *w.TotalDuration <= 0 {
		return 0
	}
	return int(math.Round(*w.TotalDuration * 60))
}

// RemainingMinutes is what is left after subtracting already-scheduled time.
func (w WebTask) RemainingMinutes() int {
	return max(w.TotalMinutes()-w.ScheduledMinutes, 0)
}

// ToTask converts a task row. An unrecognised priority is treated as unset
// so the scheduler infers one from the deadline.
func ToTask(w WebTask) model.Task {
	name := w.Name
	if name == "" {
		name = defaultTaskName
	}
	minSplit, maxSplit := DefaultMinSplitMinutes, DefaultMaxSplitMinutes
	if w.MinSplitDurationMinutes != nil && *w.MinSplitDurationMinutes > 0 {
		minSplit = *w.MinSplitDurationMinutes
	}
	if w.MaxSplitDurationMinutes != nil && *w.MaxSplitDurationMinutes > 0 {
		maxSplit = *w.MaxSplitDurationMinutes
	}
	prio, err := model.ParsePriority(w.Priority)
	if err != nil {
		prio = ""
	}

	return model.Task{
		ID:          w.ID,
		Name:        name,
		Duration:    time.Duration(w.RemainingMinutes()) * time.Minute,
		MinDuration: time.Duration(minSplit) * time.Minute,
		MaxDuration: time.Duration(maxSplit) * time.Minute,
		Category:    w.CalendarHours.Category(),
		Priority:    prio,
		Deadline:    w.EndDate,
		NotBefore:   w.StartDate,
		AllowSplit:  w.IsSplittable == nil || *w.IsSplittable,
	}
}

// ToTasks converts every row, dropping tasks with nothing left to schedule.
func ToTasks(rows []WebTask) []model.Task {
	out := make([]model.Task, 0, len(rows))
	for _, w := range rows {
		if w.RemainingMinutes() == 0 {
			continue
		}
		out = append(out, ToTask(w))
	}
	return out
}

// WebEvent is an existing calendar row.
type WebEvent struct {
	ID      string    `json:"id,omitempty"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// ToLocked converts existing rows into locked events. Rows without an ID get
// a positional one; rows that end before they start are dropped.
func ToLocked(rows []WebEvent) []model.Event {
	out := make([]model.Event, 0, len(rows))
	for i, r := range rows {
		if !r.EndAt.After(r.StartAt) {
			continue
		}
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("existing-%d", i)
		}
		out = append(out, model.Event{
			ID:     id,
			Name:   LockedName,
			Range:  model.DateRange{Start: r.StartAt, End: r.EndAt},
			Locked: true,
		})
	}
	return out
}

package model

import (
	"time"
)

// DateRange is a half-open interval [Start, End).
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether End is strictly after Start.
func (r DateRange) Valid() bool { return r.End.After(r.Start) }

// Duration is End - Start.
func (r DateRange) Duration() time.Duration { return r.End.Sub(r.Start) }

// Overlaps reports whether the two half-open ranges share any instant.
func (r DateRange) Overlaps(o DateRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Event is a committed placement. Locked events are caller-supplied and are
// returned untouched; everything else is produced by the allocator.
type Event struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Range  DateRange `json:"range"`
	TaskID string    `json:"task_id,omitempty"`

	// PartNumber and TotalParts are zero unless the task was split.
	PartNumber int `json:"part_number,omitempty"`
	TotalParts int `json:"total_parts,omitempty"`

	Locked         bool     `json:"locked,omitempty"`
	IsPastDeadline bool     `json:"is_past_deadline,omitempty"`
	Category       Category `json:"category,omitempty"`
}

// Task is one unit of work (or a habit) to be placed on the calendar.
type Task struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Duration is the total time to schedule. MinDuration and MaxDuration
	// bound each individual part.
	Duration    time.Duration `json:"duration"`
	MinDuration time.Duration `json:"min_duration"`
	MaxDuration time.Duration `json:"max_duration"`

	Category Category `json:"category"`
	Priority Priority `json:"priority,omitempty"`

	Deadline *time.Time `json:"deadline,omitempty"`
	// NotBefore keeps every part at or after this instant.
	NotBefore *time.Time `json:"not_before,omitempty"`

	AllowSplit bool `json:"allow_split"`

	IsHabit        bool           `json:"is_habit,omitempty"`
	IdealTime      string         `json:"ideal_time,omitempty"`
	TimePreference TimePreference `json:"time_preference,omitempty"`
	EnergyLoad     EnergyLoad     `json:"energy_load,omitempty"`
	Streak         int            `json:"streak,omitempty"`
}

// HabitDurationConfig is the minutes-based view of a habit used by the optimizer.
type HabitDurationConfig struct {
	DurationMinutes    int            `json:"duration_minutes"`
	MinDurationMinutes *int           `json:"min_duration_minutes,omitempty"`
	MaxDurationMinutes *int           `json:"max_duration_minutes,omitempty"`
	IdealTime          string         `json:"ideal_time,omitempty"`
	TimePreference     TimePreference `json:"time_preference,omitempty"`
}

// TimeSlotInfo is a concrete candidate interval; MaxAvailable is in minutes.
type TimeSlotInfo struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	MaxAvailable int       `json:"max_available"`
}

// SlotFromRange builds a TimeSlotInfo whose capacity is the whole range.
func SlotFromRange(r DateRange) TimeSlotInfo {
	return TimeSlotInfo{
		Start:        r.Start,
		End:          r.End,
		MaxAvailable: int(r.Duration() / time.Minute),
	}
}

type LogType string

const (
	LogWarning LogType = "warning"
	LogError   LogType = "error"
)

type Log struct {
	Type    LogType `json:"type"`
	Message string  `json:"message"`
}

type ScheduleResult struct {
	Events []Event `json:"events"`
	Logs   []Log   `json:"logs"`
}

// EventsForTask returns the events committed for taskID in placement order.
func (r ScheduleResult) EventsForTask(taskID string) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.TaskID == taskID && !e.Locked {
			out = append(out, e)
		}
	}
	return out
}

package webadapter

import (
	"fmt"
	"time"

	appLog "slotcal/internal/log"
	"slotcal/internal/model"
	"slotcal/internal/schedule"
)

const pastDeadlineWarning = "Some events scheduled after the deadline"

// Request is the payload of one scheduling call from the UI.
type Request struct {
	Tasks         []WebTask         `json:"tasks"`
	Events        []WebEvent        `json:"events,omitempty"`
	HourSettings  HourSettings      `json:"hourSettings"`
	Settings      schedule.Settings `json:"schedulingSettings"`
	EnergyProfile string            `json:"energyProfile,omitempty"`
	LookaheadDays int               `json:"lookaheadDays,omitempty"`
	PriorityFirst bool              `json:"priorityFirst,omitempty"`
}

// EventRow is one scheduled event in the UI's row shape.
type EventRow struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	TaskID         string    `json:"task_id,omitempty"`
	PartNumber     int       `json:"partNumber,omitempty"`
	TotalParts     int       `json:"totalParts,omitempty"`
	Color          string    `json:"color"`
	IsPastDeadline bool      `json:"isPastDeadline,omitempty"`
}

// Result aggregates one scheduling call for the UI.
type Result struct {
	Success               bool        `json:"success"`
	Events                []EventRow  `json:"events"`
	TotalScheduledMinutes int         `json:"totalScheduledMinutes"`
	Message               string      `json:"message"`
	Warning               string      `json:"warning,omitempty"`
	Logs                  []model.Log `json:"logs"`
}

// Schedule converts the request, runs one pass at now and shapes the result.
// Hour settings that fail to parse are logged and the valid part is used.
func Schedule(req Request, now time.Time) Result {
	hours, err := ToActiveHours(req.HourSettings)
	if err != nil {
		appLog.Warn("webadapter: hour settings partially invalid", "reason", err.Error())
	}
	opts := schedule.Options{
		Now:           now,
		EnergyProfile: req.EnergyProfile,
		Settings:      req.Settings,
		LookaheadDays: req.LookaheadDays,
	}
	if req.PriorityFirst {
		opts.Ordering = schedule.OrderPriority
	}
	res := schedule.ScheduleTasks(ToTasks(req.Tasks), hours, ToLocked(req.Events), opts)
	return BuildResult(req.Tasks, res)
}

// BuildResult shapes scheduler output into rows. Locked events are omitted;
// totals include minutes the tasks already had scheduled.
func BuildResult(tasks []WebTask, res model.ScheduleResult) Result {
	byID := make(map[string]WebTask, len(tasks))
	total, already := 0, 0
	for _, t := range tasks {
		byID[t.ID] = t
		total += t.TotalMinutes()
		already += min(t.ScheduledMinutes, t.TotalMinutes())
	}

	out := Result{Events: []EventRow{}, Logs: res.Logs}
	if out.Logs == nil {
		out.Logs = []model.Log{}
	}

	added := 0
	past := false
	for _, e := range res.Events {
		if e.Locked {
			continue
		}
		out.Events = append(out.Events, EventRow{
			ID:             e.ID,
			Title:          e.Name,
			StartAt:        e.Range.Start,
			EndAt:          e.Range.End,
			TaskID:         e.TaskID,
			PartNumber:     e.PartNumber,
			TotalParts:     e.TotalParts,
			Color:          byID[e.TaskID].CalendarHours.Color(),
			IsPastDeadline: e.IsPastDeadline,
		})
		added += int(e.Range.Duration() / time.Minute)
		past = past || e.IsPastDeadline
	}

	out.TotalScheduledMinutes = already + added
	out.Success = len(out.Events) > 0
	if past {
		out.Warning = pastDeadlineWarning
	}

	switch remaining := total - out.TotalScheduledMinutes; {
	case already >= total:
		out.Success = true
		out.Message = "Task is already fully scheduled"
	case len(out.Events) == 0:
		out.Message = "No available time slots found"
	case remaining <= 0:
		out.Message = fmt.Sprintf("Task fully scheduled with %d event(s)", len(out.Events))
	default:
		out.Message = fmt.Sprintf("Scheduled %d minutes across %d event(s). %d minutes remaining.",
			added, len(out.Events), remaining)
	}
	return out
}

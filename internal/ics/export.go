package ics

import (
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"slotcal/internal/model"
)

// Custom properties carried on exported events.
const (
	propTaskID       = ical.ComponentProperty("X-SLOTCAL-TASK-ID")
	propPart         = ical.ComponentProperty("X-SLOTCAL-PART")
	propPastDeadline = ical.ComponentProperty("X-SLOTCAL-PAST-DEADLINE")
)

// ExportOptions describe the generated calendar.
type ExportOptions struct {
	Name string
	// Stamp is written as DTSTAMP on every event.
	Stamp time.Time
	// IncludeLocked also writes the locked input events.
	IncludeLocked bool
}

// Export renders scheduled events as an iCalendar document.
func Export(events []model.Event, opts ExportOptions) *ical.Calendar {
	cal := ical.NewCalendarFor("slotcal")
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetName(opts.Name)
		cal.SetXWRCalName(opts.Name)
	}

	for _, e := range events {
		if e.Locked && !opts.IncludeLocked {
			continue
		}
		ve := cal.AddEvent(e.ID + "@slotcal")
		ve.SetDtStampTime(opts.Stamp)
		ve.SetStartAt(e.Range.Start)
		ve.SetEndAt(e.Range.End)
		ve.SetSummary(e.Name)
		if e.Category != "" {
			ve.AddCategory(string(e.Category))
		}
		if e.TaskID != "" {
			ve.AddProperty(propTaskID, e.TaskID)
		}
		if e.TotalParts > 1 {
			ve.AddProperty(propPart, strconv.Itoa(e.PartNumber)+"/"+strconv.Itoa(e.TotalParts))
		}
		if e.IsPastDeadline {
			ve.AddProperty(propPastDeadline, "TRUE")
		}
		if e.Locked {
			ve.SetTimeTransparency(ical.TransparencyOpaque)
		}
	}
	return cal
}

// WriteICS serializes the schedule to w.
func WriteICS(w io.Writer, events []model.Event, opts ExportOptions) error {
	return Export(events, opts).SerializeTo(w)
}

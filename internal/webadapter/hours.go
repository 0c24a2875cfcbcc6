package webadapter

import (
	"errors"
	"fmt"
	"time"

	"slotcal/internal/model"
)

type TimeBlock struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type DayTimeRange struct {
	Enabled    bool        `json:"enabled"`
	TimeBlocks []TimeBlock `json:"timeBlocks"`
}

// WeekTimeRanges is one hour template as the settings UI stores it.
type WeekTimeRanges struct {
	Monday    DayTimeRange `json:"monday"`
	Tuesday   DayTimeRange `json:"tuesday"`
	Wednesday DayTimeRange `json:"wednesday"`
	Thursday  DayTimeRange `json:"thursday"`
	Friday    DayTimeRange `json:"friday"`
	Saturday  DayTimeRange `json:"saturday"`
	Sunday    DayTimeRange `json:"sunday"`
}

func (w WeekTimeRanges) days() []struct {
	wd  time.Weekday
	day DayTimeRange
} {
	return []struct {
		wd  time.Weekday
		day DayTimeRange
	}{
		{time.Monday, w.Monday},
		{time.Tuesday, w.Tuesday},
		{time.Wednesday, w.Wednesday},
		{time.Thursday, w.Thursday},
		{time.Friday, w.Friday},
		{time.Saturday, w.Saturday},
		{time.Sunday, w.Sunday},
	}
}

// HourSettings carries the three templates. A nil template means the
// default of 07:00-23:00 every day.
type HourSettings struct {
	PersonalHours *WeekTimeRanges `json:"personalHours,omitempty"`
	WorkHours     *WeekTimeRanges `json:"workHours,omitempty"`
	MeetingHours  *WeekTimeRanges `json:"meetingHours,omitempty"`
}

// DefaultWeek is 07:00-23:00 on every day.
func DefaultWeek() WeekTimeRanges {
	d := DayTimeRange{Enabled: true, TimeBlocks: []TimeBlock{{StartTime: "07:00", EndTime: "23:00"}}}
	return WeekTimeRanges{
		Monday: d, Tuesday: d, Wednesday: d, Thursday: d,
		Friday: d, Saturday: d, Sunday: d,
	}
}

// ToActiveHours converts hour settings. Malformed blocks are skipped and
// reported in the joined error; the remaining windows are still returned.
func ToActiveHours(s HourSettings) (model.ActiveHours, error) {
	var errs []error
	conv := func(name string, w *WeekTimeRanges) []model.Window {
		week := DefaultWeek()
		if w != nil {
			week = *w
		}
		out, err := weekWindows(name, week)
		if err != nil {
			errs = append(errs, err)
		}
		return out
	}
	hours := model.ActiveHours{
		Personal: conv("personalHours", s.PersonalHours),
		Work:     conv("workHours", s.WorkHours),
		Meeting:  conv("meetingHours", s.MeetingHours),
	}
	return hours, errors.Join(errs...)
}

func weekWindows(name string, week WeekTimeRanges) ([]model.Window, error) {
	var (
		out  []model.Window
		errs []error
	)
	for _, d := range week.days() {
		if !d.day.Enabled {
			continue
		}
		for i, b := range d.day.TimeBlocks {
			w, err := blockWindow(b, d.wd)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s.%s[%d]: %w", name, d.wd, i, err))
				continue
			}
			out = append(out, w)
		}
	}
	return out, errors.Join(errs...)
}

func blockWindow(b TimeBlock, wd time.Weekday) (model.Window, error) {
	start, err := model.ParseClockTime(b.StartTime)
	if err != nil {
		return model.Window{}, err
	}
	end, err := model.ParseClockTime(b.EndTime)
	if err != nil {
		return model.Window{}, err
	}
	if end <= start {
		return model.Window{}, fmt.Errorf("block %s-%s ends before it starts", b.StartTime, b.EndTime)
	}
	return model.Window{Start: start, End: end, Days: []time.Weekday{wd}}, nil
}

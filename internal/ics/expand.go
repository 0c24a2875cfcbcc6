package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "slotcal/internal/log"
	"slotcal/internal/model"
)

const (
	defaultMaxOccurrences = 5000
	// BusyName is used for busy events that have no summary.
	BusyName = "Busy"
)

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// Location is where occurrences are reported. Nil means time.Local.
	Location *time.Location

	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrences caps each recurring event. Zero means 5000.
	MaxOccurrences int
}

// ExpandResult is the locked calendar plus the UIDs that hit the cap.
type ExpandResult struct {
	Locked    []model.Event
	Truncated []string
}

// ExpandBusy expands parsed events into locked events that overlap
// [RangeStart, RangeEnd). Overrides replace the instance they name, EXDATEs
// remove instances and free (transparent or cancelled) entries are dropped.
// The result is sorted by start.
func ExpandBusy(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var res ExpandResult
	if !cfg.RangeEnd.After(cfg.RangeStart) {
		return res, errors.New("expand: range end must be after range start")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrences <= 0 {
		cfg.MaxOccurrences = defaultMaxOccurrences
	}

	bases := make(map[string][]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	var order []string
	for _, ev := range events {
		if ev.IsOverride {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := bases[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	for _, uid := range order {
		for _, ev := range bases[uid] {
			spans, capped := occurrences(ev, cfg)
			if capped {
				res.Truncated = append(res.Truncated, uid)
				appLog.Warn("ics expansion truncated", "uid", uid, "cap", cfg.MaxOccurrences)
			}
			for _, r := range spans {
				occ, orig := ev, r
				if o, ok := overrideFor(overrides[uid], r.Start); ok {
					occ = o
					r = model.DateRange{Start: o.Start, End: o.End}
				}
				if occ.Free || !r.Valid() || !overlaps(r, cfg) {
					continue
				}
				res.Locked = append(res.Locked, lockedEvent(occ, orig.Start, r, cfg.Location))
			}
		}
	}

	sort.SliceStable(res.Locked, func(i, j int) bool {
		return res.Locked[i].Range.Start.Before(res.Locked[j].Range.Start)
	})
	return res, nil
}

// occurrences lists the instance ranges of ev near the configured window.
// Instances are searched one event-length early so anything still running at
// RangeStart is included.
func occurrences(ev ParsedEvent, cfg ExpandConfig) ([]model.DateRange, bool) {
	length := ev.End.Sub(ev.Start)
	if ev.RawRRule == "" {
		return []model.DateRange{{Start: ev.Start, End: ev.End}}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics rrule parse failed", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return []model.DateRange{{Start: ev.Start, End: ev.End}}, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	from := cfg.RangeStart.Add(-length).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())
	starts := set.Between(from, to, true)

	capped := false
	if len(starts) > cfg.MaxOccurrences {
		starts = starts[:cfg.MaxOccurrences]
		capped = true
	}

	out := make([]model.DateRange, 0, len(starts))
	for _, s := range starts {
		if ev.AllDay {
			day := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			out = append(out, model.DateRange{Start: day, End: day.Add(length)})
			continue
		}
		out = append(out, model.DateRange{Start: s, End: s.Add(length)})
	}
	return out, capped
}

func overrideFor(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

func overlaps(r model.DateRange, cfg ExpandConfig) bool {
	return r.Overlaps(model.DateRange{Start: cfg.RangeStart, End: cfg.RangeEnd})
}

// lockedEvent builds the immovable event for one instance. The ID is stable
// across refreshes: source, UID and original instance start.
func lockedEvent(ev ParsedEvent, instance time.Time, r model.DateRange, loc *time.Location) model.Event {
	name := ev.Summary
	if name == "" {
		name = BusyName
	}
	return model.Event{
		ID:     fmt.Sprintf("%s:%s:%s", ev.Source.ID, ev.UID, instance.UTC().Format("20060102T150405Z")),
		Name:   name,
		Range:  model.DateRange{Start: r.Start.In(loc), End: r.End.In(loc)},
		Locked: true,
	}
}

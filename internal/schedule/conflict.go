package schedule

import (
	"sort"
	"time"

	"slotcal/internal/clock"
	"slotcal/internal/model"
)

// MinSlot is the shortest free fragment worth offering.
const MinSlot = clock.Quarter

// SlotQuery bounds a free-slot search.
type SlotQuery struct {
	LookaheadDays int
	// MinBuffer widens every busy event on both sides.
	MinBuffer time.Duration
}

// AvailableSlots returns the free quarter-aligned fragments of the given
// active-hour templates, from `from` through LookaheadDays days, after
// subtracting events (padded by MinBuffer). Fragments shorter than MinSlot are
// dropped. The result is sorted by start.
func AvailableSlots(windows []model.Window, from time.Time, events []model.Event, q SlotQuery) []model.DateRange {
	days := q.LookaheadDays
	if days <= 0 {
		days = DefaultLookaheadDays
	}
	first := clock.StartOfDay(from)
	horizon := first.AddDate(0, 0, days+1)
	busy := busyIntervals(events, from, horizon, q.MinBuffer)

	var out []model.DateRange
	for d := 0; d < days; d++ {
		day := first.AddDate(0, 0, d)
		for _, w := range dayWindows(windows, day) {
			start := w.Start
			if d == 0 && from.After(start) {
				start = from
			}
			r := model.DateRange{Start: clock.RoundUp(start), End: clock.RoundDown(w.End)}
			if r.Duration() < MinSlot {
				continue
			}
			out = appendFree(out, r, busy)
		}
	}
	return out
}

// NextAvailableTime returns the start of the first free slot at or after
// from. When nothing is free in the lookahead it returns the following
// midnight and found=false.
func NextAvailableTime(windows []model.Window, from time.Time, events []model.Event, q SlotQuery) (next time.Time, found bool) {
	slots := AvailableSlots(windows, from, events, q)
	if len(slots) == 0 {
		return clock.StartOfDay(from).AddDate(0, 0, 1), false
	}
	return slots[0].Start, true
}

// nextWindowStart is the earliest template start on the day after from, or
// that day's midnight when no template is active.
func nextWindowStart(windows []model.Window, from time.Time) time.Time {
	day := clock.StartOfDay(from).AddDate(0, 0, 1)
	if ws := dayWindows(windows, day); len(ws) > 0 {
		return clock.RoundUp(ws[0].Start)
	}
	return day
}

// dayWindows materializes the templates active on day, merged and sorted.
func dayWindows(windows []model.Window, day time.Time) []model.DateRange {
	var rs []model.DateRange
	for _, w := range windows {
		if !w.ActiveOn(day.Weekday()) {
			continue
		}
		if r := w.Range(day); r.Valid() {
			rs = append(rs, r)
		}
	}
	return mergeRanges(rs)
}

func busyIntervals(events []model.Event, from, horizon time.Time, buffer time.Duration) []model.DateRange {
	rs := make([]model.DateRange, 0, len(events))
	for _, e := range events {
		r := model.DateRange{Start: e.Range.Start.Add(-buffer), End: e.Range.End.Add(buffer)}
		if !r.End.After(from) || !r.Start.Before(horizon) || !r.Valid() {
			continue
		}
		rs = append(rs, r)
	}
	return mergeRanges(rs)
}

// mergeRanges sorts rs and joins overlapping or touching ranges.
func mergeRanges(rs []model.DateRange) []model.DateRange {
	if len(rs) < 2 {
		return rs
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Start.Before(rs[j].Start) })
	out := rs[:1]
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if !r.Start.After(last.End) {
			if r.End.After(last.End) {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// appendFree subtracts the sorted, disjoint busy list from r.
func appendFree(out []model.DateRange, r model.DateRange, busy []model.DateRange) []model.DateRange {
	i := sort.Search(len(busy), func(i int) bool { return busy[i].End.After(r.Start) })
	cur := r.Start
	for ; i < len(busy) && busy[i].Start.Before(r.End); i++ {
		out = appendFragment(out, cur, busy[i].Start)
		if busy[i].End.After(cur) {
			cur = busy[i].End
		}
	}
	return appendFragment(out, cur, r.End)
}

func appendFragment(out []model.DateRange, start, end time.Time) []model.DateRange {
	f := model.DateRange{Start: clock.RoundUp(start), End: clock.RoundDown(end)}
	if f.Duration() >= MinSlot {
		out = append(out, f)
	}
	return out
}

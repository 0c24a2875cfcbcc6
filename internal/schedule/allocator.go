package schedule

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"slotcal/internal/clock"
	"slotcal/internal/model"
	"slotcal/internal/optimize"
)

// eventNamespace seeds deterministic event IDs.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:slotcal:event"))

const dateLayout = "2006-01-02"

// cursors tracks, per category, the earliest instant the next task may use.
// It is never mutated; advance returns an updated copy.
type cursors map[model.Category]time.Time

func (c cursors) at(cat model.Category, fallback time.Time) time.Time {
	if t, ok := c[cat]; ok && t.After(fallback) {
		return t
	}
	return fallback
}

func (c cursors) advance(cat model.Category, t time.Time) cursors {
	out := make(cursors, len(c)+1)
	maps.Copy(out, c)
	out[cat] = t
	return out
}

// pass holds what one ScheduleTasks call shares between tasks.
type pass struct {
	opts   Options
	hours  model.ActiveHours
	busy   []model.Event
	log    *Logger
	energy *optimize.EnergyProfile
}

// ScheduleTasks places tasks around the locked events inside the active hours
// of each task's category. Locked events come back first and unchanged. The
// pass is greedy: tasks are taken in sequence order and an earlier task is
// never moved to make room for a later one.
func ScheduleTasks(tasks []model.Task, hours model.ActiveHours, locked []model.Event, opts Options) model.ScheduleResult {
	opts = opts.withDefaults()
	p := &pass{
		opts:  opts,
		hours: hours,
		busy:  make([]model.Event, 0, len(locked)+len(tasks)),
		log:   &Logger{},
	}
	p.busy = append(p.busy, locked...)

	if opts.EnergyProfile != "" {
		if prof, ok := optimize.LookupEnergyProfile(opts.EnergyProfile); ok {
			p.energy = &prof
		} else {
			p.log.Warn("unknown energy profile %q; using earliest available slots", opts.EnergyProfile)
		}
	}

	cur := cursors{}
	for _, t := range sequence(tasks, opts) {
		cur = p.schedule(t, cur)
	}

	events := make([]model.Event, len(p.busy))
	copy(events, p.busy)
	return model.ScheduleResult{Events: events, Logs: p.log.Logs()}
}

func (p *pass) schedule(t model.Task, cur cursors) cursors {
	windows := p.hours.For(t.Category)
	if len(windows) == 0 {
		p.log.Error("no active hours configured for category %q; skipping task %q", t.Category, t.Name)
		return cur
	}
	if t.Duration <= 0 {
		p.log.Error("task %q has no duration to schedule", t.Name)
		return cur
	}
	if t.IsHabit {
		p.scheduleHabit(t, windows)
		return cur
	}
	if !t.AllowSplit {
		return p.scheduleWhole(t, windows, cur)
	}
	return p.scheduleSplit(t, windows, cur)
}

// partBounds normalizes task durations to quarter hours.
type partBounds struct {
	total, min, max time.Duration
}

func normalize(t model.Task) partBounds {
	b := partBounds{
		total: clock.CeilDuration(t.Duration),
		min:   max(clock.Quarter, clock.CeilDuration(t.MinDuration)),
		max:   clock.FloorDuration(t.MaxDuration),
	}
	if b.max <= 0 {
		b.max = b.total
	}
	b.max = max(b.max, b.min)
	return b
}

func (p *pass) from(t model.Task, cur cursors) time.Time {
	start := cur.at(t.Category, p.opts.Now)
	if t.NotBefore != nil && t.NotBefore.After(start) {
		start = *t.NotBefore
	}
	return start
}

// scheduleWhole places a non-splittable task as one block or not at all.
func (p *pass) scheduleWhole(t model.Task, windows []model.Window, cur cursors) cursors {
	b := normalize(t)
	slots := AvailableSlots(windows, p.from(t, cur), p.busy, p.opts.query())
	for _, s := range slots {
		if s.Duration() < b.total {
			continue
		}
		end := s.Start.Add(b.total)
		p.commit(t, []model.DateRange{{Start: s.Start, End: end}})
		return cur.advance(t.Category, clock.RoundUp(end))
	}
	p.log.Error("task %q (%d minutes) cannot be split and no single slot within %d days fits it",
		t.Name, minutesOf(b.total), p.opts.LookaheadDays)
	return cur
}

// scheduleSplit fills free slots part by part until the task is placed, the
// attempt budget runs out or no remaining slot can hold a minimum part.
func (p *pass) scheduleSplit(t model.Task, windows []model.Window, cur cursors) cursors {
	b := normalize(t)
	remaining := b.total
	var parts []model.DateRange

	attempts := 0
	for remaining > 0 && attempts < p.opts.MaxAttempts {
		attempts++
		from := p.from(t, cur)
		slots := AvailableSlots(windows, from, p.pendingBusy(t, parts), p.opts.query())
		if len(slots) == 0 {
			next := nextWindowStart(windows, from)
			p.log.Warn("no free slot for %q; moving task to %s", t.Name, next.Format(dateLayout))
			cur = cur.advance(t.Category, next)
			continue
		}

		need := min(b.min, remaining)
		slot, ok := p.pickSlot(t, slots, need)
		if !ok {
			p.log.Warn("no slot within %d days can hold %d minutes of %q",
				p.opts.LookaheadDays, minutesOf(need), t.Name)
			break
		}

		start := clock.RoundUp(slot.Start)
		size := min(remaining, slot.End.Sub(start), b.max)
		size = min(max(size, need), remaining)
		size = clock.FloorDuration(size)
		end := start.Add(size)
		if end.After(slot.End) {
			end = clock.RoundDown(slot.End)
			size = end.Sub(start)
		}
		if size < need || size <= 0 {
			p.log.Error("cannot fit the minimum part of %d minutes for %q", minutesOf(need), t.Name)
			break
		}

		parts = append(parts, model.DateRange{Start: start, End: end})
		remaining -= size
		cur = cur.advance(t.Category, clock.RoundUp(end))
	}

	if len(parts) > 0 {
		p.commit(t, parts)
	}
	if remaining > 0 && attempts >= p.opts.MaxAttempts {
		p.log.Error("gave up on %q after %d attempts", t.Name, attempts)
	}
	if len(parts) > 1 {
		p.log.Warn("task %q was split into %d parts", t.Name, len(parts))
	}
	if remaining > 0 {
		p.log.Warn("%d minutes of %q could not be scheduled", minutesOf(remaining), t.Name)
	}
	return cur
}

// pendingBusy is the committed calendar plus the parts of t placed so far.
func (p *pass) pendingBusy(t model.Task, parts []model.DateRange) []model.Event {
	if len(parts) == 0 {
		return p.busy
	}
	out := make([]model.Event, len(p.busy), len(p.busy)+len(parts))
	copy(out, p.busy)
	for _, r := range parts {
		out = append(out, model.Event{TaskID: t.ID, Range: r})
	}
	return out
}

// pickSlot chooses the slot for the next part. High-load tasks under a known
// energy profile and tasks with a time preference are scored among the
// earliest day's slots; everything else takes the earliest slot that fits.
// The returned range may start later than the slot when the part should sit
// at the start of the peak window.
func (p *pass) pickSlot(t model.Task, slots []model.DateRange, need time.Duration) (model.DateRange, bool) {
	viable := make([]model.DateRange, 0, len(slots))
	for _, s := range slots {
		if s.Duration() >= need {
			viable = append(viable, s)
		}
	}
	if len(viable) == 0 {
		return model.DateRange{}, false
	}

	switch {
	case t.EnergyLoad == model.EnergyHigh && p.energy != nil:
		infos := slotInfos(firstDay(viable))
		best := optimize.FindBestSlotForEnergy(*p.energy, infos, minutesOf(need))
		if best == nil {
			return viable[0], true
		}
		r := model.DateRange{Start: best.Start, End: best.End}
		peak := p.energy.Peak.Range(best.Start).Start
		if peak.After(r.Start) && !peak.Add(need).After(r.End) {
			r.Start = peak
		}
		return r, true
	case t.TimePreference != model.PreferenceNone:
		cfg := optimize.TaskSlotConfig{
			Deadline:           t.Deadline,
			Priority:           t.Priority,
			PreferredTimeOfDay: t.TimePreference,
		}
		best := optimize.FindBestSlotForTask(cfg, slotInfos(firstDay(viable)), minutesOf(need), p.opts.Now)
		if best == nil {
			return viable[0], true
		}
		start := optimize.IdealStartForTask(cfg, *best, minutesOf(need), p.opts.Now)
		return model.DateRange{Start: start, End: best.End}, true
	default:
		return viable[0], true
	}
}

// scheduleHabit places a habit as a single block sized by the optimizer. A
// habit with a time preference only goes inside that preference band.
func (p *pass) scheduleHabit(t model.Task, windows []model.Window) {
	h := habitConfig(t)
	b := optimize.EffectiveDurationBounds(h)
	lo, hi := habitRange(b)
	if lo > hi {
		p.log.Error("habit %q has no quarter-hour length between %d and %d minutes", t.Name, b.Min, b.Max)
		return
	}

	from := p.opts.Now
	if t.NotBefore != nil && t.NotBefore.After(from) {
		from = *t.NotBefore
	}
	slots := AvailableSlots(windows, from, p.busy, p.opts.query())

	var candidates []model.TimeSlotInfo
	for _, s := range slots {
		r, ok := optimize.ClipToPreference(t.TimePreference, s)
		if !ok || r.Duration() < MinSlot || r.Duration() < lo {
			continue
		}
		candidates = append(candidates, model.SlotFromRange(r))
	}

	best := bestHabitSlot(h, candidates)
	if best == nil {
		if t.TimePreference != model.PreferenceNone {
			p.log.Warn("habit %q could not be placed in its %s window", t.Name, t.TimePreference)
		} else {
			p.log.Error("no slot found for habit %q (needs %d minutes)", t.Name, b.Min)
		}
		return
	}

	minutes := optimize.OptimalDuration(h, *best, optimize.SlotCharacteristics(h, *best))
	size := habitSize(minutes, lo, hi, *best)
	start := optimize.IdealStartForHabit(h, *best, minutesOf(size))
	if start.Add(size).After(best.End) {
		start = clock.RoundDown(best.End.Add(-size))
	}
	if start.Before(best.Start) {
		start = best.Start
	}
	p.commit(t, []model.DateRange{{Start: start, End: start.Add(size)}})
}

// bestHabitSlot scores only the earliest day that has a usable slot.
func bestHabitSlot(h model.HabitDurationConfig, candidates []model.TimeSlotInfo) *model.TimeSlotInfo {
	b := optimize.EffectiveDurationBounds(h)
	for i := 0; i < len(candidates); {
		day := clock.StartOfDay(candidates[i].Start)
		j := i
		for j < len(candidates) && clock.StartOfDay(candidates[j].Start).Equal(day) {
			j++
		}
		fits := false
		for _, c := range candidates[i:j] {
			if c.MaxAvailable >= b.Min {
				fits = true
				break
			}
		}
		if fits {
			return optimize.FindBestSlotForHabit(h, candidates[i:j])
		}
		i = j
	}
	return nil
}

// habitRange is the quarter-hour lengths a habit may take: the minimum rounded
// up, the maximum rounded down.
func habitRange(b optimize.Bounds) (lo, hi time.Duration) {
	lo = max(clock.CeilDuration(time.Duration(b.Min)*time.Minute), clock.Quarter)
	hi = clock.FloorDuration(time.Duration(b.Max) * time.Minute)
	return lo, hi
}

// habitSize turns optimizer minutes into a quarter-hour length within
// [lo, hi] that fits slot. Callers only pass slots at least lo long.
func habitSize(minutes int, lo, hi time.Duration, slot model.TimeSlotInfo) time.Duration {
	avail := clock.FloorDuration(time.Duration(slot.MaxAvailable) * time.Minute)
	size := min(clock.FloorDuration(time.Duration(minutes)*time.Minute), avail, hi)
	return max(size, lo)
}

func habitConfig(t model.Task) model.HabitDurationConfig {
	h := model.HabitDurationConfig{
		DurationMinutes: minutesOf(t.Duration),
		IdealTime:       t.IdealTime,
		TimePreference:  t.TimePreference,
	}
	if t.MinDuration > 0 {
		m := minutesOf(t.MinDuration)
		h.MinDurationMinutes = &m
	}
	if t.MaxDuration > 0 {
		m := minutesOf(t.MaxDuration)
		h.MaxDurationMinutes = &m
	}
	return h
}

// commit turns placed ranges into events, tagging parts and deadline overruns.
func (p *pass) commit(t model.Task, parts []model.DateRange) {
	total := len(parts)
	for i, r := range parts {
		e := model.Event{
			Name:     t.Name,
			Range:    r,
			TaskID:   t.ID,
			Category: t.Category,
		}
		if total > 1 {
			e.PartNumber = i + 1
			e.TotalParts = total
			e.Name = fmt.Sprintf("%s (Part %d/%d)", t.Name, i+1, total)
		}
		e.ID = eventID(t.ID, e.PartNumber, r.Start)
		if t.Deadline != nil && r.End.After(*t.Deadline) {
			e.IsPastDeadline = true
			p.log.Warn("%q ends at %s, past its deadline %s",
				e.Name, r.End.Format(time.RFC3339), t.Deadline.Format(time.RFC3339))
		}
		p.busy = append(p.busy, e)
	}
}

func eventID(taskID string, part int, start time.Time) string {
	key := fmt.Sprintf("%s/%d/%s", taskID, part, start.UTC().Format(time.RFC3339))
	return uuid.NewSHA1(eventNamespace, []byte(key)).String()
}

func firstDay(slots []model.DateRange) []model.DateRange {
	day := clock.StartOfDay(slots[0].Start)
	n := 1
	for n < len(slots) && clock.StartOfDay(slots[n].Start).Equal(day) {
		n++
	}
	return slots[:n]
}

func slotInfos(rs []model.DateRange) []model.TimeSlotInfo {
	out := make([]model.TimeSlotInfo, len(rs))
	for i, r := range rs {
		out[i] = model.SlotFromRange(r)
	}
	return out
}

func minutesOf(d time.Duration) int {
	return int(d / time.Minute)
}

package schedule

import (
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotcal/internal/model"
	"slotcal/internal/optimize"
)

func allHours(from, to string) model.ActiveHours {
	w := []model.Window{window(from, to)}
	return model.ActiveHours{Personal: w, Work: w, Meeting: w}
}

func workHours(ws ...model.Window) model.ActiveHours {
	return model.ActiveHours{Work: ws}
}

func baseOpts() Options {
	return Options{Now: at(0, "06:00")}
}

func logsContaining(res model.ScheduleResult, typ model.LogType, substr string) []model.Log {
	var out []model.Log
	for _, l := range res.Logs {
		if l.Type == typ && strings.Contains(l.Message, substr) {
			out = append(out, l)
		}
	}
	return out
}

func requireQuarterHours(t *testing.T, events []model.Event) {
	t.Helper()
	for _, e := range events {
		if e.Locked {
			continue
		}
		mins := int(e.Range.Duration() / time.Minute)
		require.Zero(t, mins%15, "event %q lasts %d minutes", e.Name, mins)
		require.Zero(t, e.Range.Start.Minute()%15, "event %q starts off a quarter hour", e.Name)
	}
}

func requireNoOverlap(t *testing.T, events []model.Event) {
	t.Helper()
	for i := range events {
		for j := i + 1; j < len(events); j++ {
			if events[i].Locked && events[j].Locked {
				continue
			}
			require.False(t, events[i].Range.Overlaps(events[j].Range),
				"%q overlaps %q", events[i].Name, events[j].Name)
		}
	}
}

func requireGap(t *testing.T, events []model.Event, gap time.Duration) {
	t.Helper()
	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Range.Start.Before(sorted[j].Range.Start) })
	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		if prev.Range.End.YearDay() != next.Range.Start.YearDay() {
			continue
		}
		require.GreaterOrEqual(t, next.Range.Start.Sub(prev.Range.End), gap,
			"gap between %q and %q", prev.Name, next.Name)
	}
}

func TestScheduleTasksNonSplittableTooLong(t *testing.T) {
	task := model.Task{ID: "big", Name: "Big", Duration: 10 * time.Hour, Category: model.CategoryWork}
	res := ScheduleTasks([]model.Task{task}, workHours(window("09:00", "12:00")), nil, baseOpts())

	assert.Empty(t, res.Events)
	assert.NotEmpty(t, logsContaining(res, model.LogError, "cannot be split"))
}

func TestScheduleTasksNonSplittableSingleBlock(t *testing.T) {
	task := model.Task{ID: "block", Name: "Block", Duration: 2 * time.Hour, Category: model.CategoryWork}
	res := ScheduleTasks([]model.Task{task}, workHours(window("09:00", "17:00")), nil, baseOpts())

	require.Len(t, res.Events, 1)
	e := res.Events[0]
	assert.Equal(t, span(0, "09:00", "11:00"), e.Range)
	assert.Zero(t, e.PartNumber)
	assert.Zero(t, e.TotalParts)
	assert.Equal(t, "Block", e.Name)
	assert.Equal(t, model.CategoryWork, e.Category)
}

func TestScheduleTasksSplitsLongTask(t *testing.T) {
	task := model.Task{
		ID: "study", Name: "Study", Category: model.CategoryWork, AllowSplit: true,
		Duration: 6 * time.Hour, MinDuration: 30 * time.Minute, MaxDuration: 2 * time.Hour,
	}
	res := ScheduleTasks([]model.Task{task}, workHours(window("09:00", "17:00")), nil, baseOpts())

	require.Len(t, res.Events, 3)
	assert.Contains(t, res.Events[0].Name, "Part 1")
	for i, e := range res.Events {
		assert.Equal(t, fmt.Sprintf("Study (Part %d/3)", i+1), e.Name)
		assert.Equal(t, i+1, e.PartNumber)
		assert.Equal(t, 3, e.TotalParts)
		assert.Equal(t, 2*time.Hour, e.Range.Duration())
	}
	assert.Equal(t, at(0, "09:00"), res.Events[0].Range.Start)
	assert.Equal(t, at(0, "13:00"), res.Events[2].Range.Start)
	assert.Len(t, logsContaining(res, model.LogWarning, "split into 3 parts"), 1)
	requireQuarterHours(t, res.Events)
	requireNoOverlap(t, res.Events)
}

func TestScheduleTasksSkipsSlotsBelowMinimum(t *testing.T) {
	task := model.Task{
		ID: "deep", Name: "Deep work", Category: model.CategoryWork, AllowSplit: true,
		Duration: 2 * time.Hour, MinDuration: time.Hour, MaxDuration: 2 * time.Hour,
	}
	locked := busy(span(0, "09:45", "17:00"))
	res := ScheduleTasks([]model.Task{task}, workHours(window("09:00", "17:00")), locked, baseOpts())

	got := res.EventsForTask("deep")
	require.Len(t, got, 1)
	assert.Equal(t, span(1, "09:00", "11:00"), got[0].Range)
}

func TestScheduleTasksRoundsDurations(t *testing.T) {
	task := model.Task{ID: "odd", Name: "Odd", Category: model.CategoryWork, Duration: 50 * time.Minute}
	res := ScheduleTasks([]model.Task{task}, workHours(window("09:00", "17:00")), nil, baseOpts())

	require.Len(t, res.Events, 1)
	assert.Equal(t, time.Hour, res.Events[0].Range.Duration())
}

func TestScheduleTasksPastDeadline(t *testing.T) {
	late := model.Task{ID: "late", Name: "Report", Category: model.CategoryWork, Duration: 2 * time.Hour, Deadline: ptr(at(0, "10:00"))}
	fine := model.Task{ID: "fine", Name: "Memo", Category: model.CategoryWork, Duration: time.Hour, Deadline: ptr(at(3, "10:00"))}
	res := ScheduleTasks([]model.Task{fine, late}, workHours(window("09:00", "17:00")), nil, baseOpts())

	lateEvents := res.EventsForTask("late")
	require.Len(t, lateEvents, 1)
	assert.True(t, lateEvents[0].IsPastDeadline)
	assert.Len(t, logsContaining(res, model.LogWarning, "past its deadline"), 1)

	fineEvents := res.EventsForTask("fine")
	require.Len(t, fineEvents, 1)
	assert.False(t, fineEvents[0].IsPastDeadline)
}

func TestScheduleTasksMissingCategoryHours(t *testing.T) {
	tasks := []model.Task{
		{ID: "p", Name: "Errand", Category: model.CategoryPersonal, Duration: time.Hour},
		{ID: "w", Name: "Review", Category: model.CategoryWork, Duration: time.Hour},
	}
	res := ScheduleTasks(tasks, workHours(window("09:00", "17:00")), nil, baseOpts())

	assert.Empty(t, res.EventsForTask("p"))
	assert.Len(t, res.EventsForTask("w"), 1)
	assert.NotEmpty(t, logsContaining(res, model.LogError, "no active hours configured"))
}

func TestScheduleTasksZeroDuration(t *testing.T) {
	res := ScheduleTasks([]model.Task{{ID: "z", Name: "Nothing", Category: model.CategoryWork}}, workHours(window("09:00", "17:00")), nil, baseOpts())
	assert.Empty(t, res.Events)
	assert.NotEmpty(t, logsContaining(res, model.LogError, "no duration"))
}

func TestScheduleTasksLockedEventsUnchanged(t *testing.T) {
	locked := []model.Event{
		{ID: "class-1", Name: "Class", Range: span(0, "09:00", "10:30"), Locked: true},
		{ID: "class-2", Name: "Class", Range: span(0, "13:00", "14:30"), Locked: true},
	}
	tasks := []model.Task{
		{ID: "a", Name: "A", Category: model.CategoryWork, Duration: 3 * time.Hour, MaxDuration: time.Hour, AllowSplit: true},
	}
	res := ScheduleTasks(tasks, workHours(window("09:00", "17:00")), locked, baseOpts())

	require.GreaterOrEqual(t, len(res.Events), 2)
	assert.Equal(t, locked, res.Events[:2])
	requireNoOverlap(t, res.Events)
}

func TestScheduleTasksMinBuffer(t *testing.T) {
	tasks := []model.Task{
		{ID: "a", Name: "A", Category: model.CategoryWork, Duration: time.Hour},
		{ID: "b", Name: "B", Category: model.CategoryWork, Duration: time.Hour},
	}
	opts := baseOpts()
	opts.Settings.MinBuffer = 15
	res := ScheduleTasks(tasks, workHours(window("09:00", "17:00")), nil, opts)

	require.Len(t, res.Events, 2)
	assert.Equal(t, at(0, "09:00"), res.Events[0].Range.Start)
	assert.Equal(t, at(0, "10:15"), res.Events[1].Range.Start)
	requireGap(t, res.Events, 15*time.Minute)
}

func TestScheduleTasksHabitPreferenceIsHardFilter(t *testing.T) {
	gym := model.Task{ID: "gym", Name: "Gym", Category: model.CategoryPersonal, Duration: time.Hour, IsHabit: true, TimePreference: model.PreferenceMorning}
	hours := model.ActiveHours{Personal: []model.Window{window("13:00", "22:00")}}
	res := ScheduleTasks([]model.Task{gym}, hours, nil, baseOpts())

	assert.Empty(t, res.Events)
	assert.NotEmpty(t, logsContaining(res, model.LogWarning, "morning window"))
}

func TestScheduleTasksHabitPreferenceUnderScarcity(t *testing.T) {
	var locked []model.Event
	for d := 0; d <= DefaultLookaheadDays; d++ {
		locked = append(locked, model.Event{ID: fmt.Sprintf("busy-%d", d), Range: span(d, "07:00", "11:45"), Locked: true})
	}
	gym := model.Task{ID: "gym", Name: "Gym", Category: model.CategoryPersonal, Duration: time.Hour, IsHabit: true, TimePreference: model.PreferenceMorning}
	res := ScheduleTasks([]model.Task{gym}, allHours("07:00", "22:00"), locked, baseOpts())

	assert.Empty(t, res.EventsForTask("gym"))
	assert.NotEmpty(t, logsContaining(res, model.LogWarning, "could not be placed"))
}

func TestScheduleTasksHabitUsesIdealTimeAndMaxDuration(t *testing.T) {
	meditation := model.Task{
		ID: "med", Name: "Meditation", Category: model.CategoryPersonal, IsHabit: true,
		Duration: 20 * time.Minute, MaxDuration: 30 * time.Minute,
		IdealTime: "06:30", TimePreference: model.PreferenceMorning,
	}
	opts := Options{Now: at(0, "05:00")}
	res := ScheduleTasks([]model.Task{meditation}, allHours("06:00", "22:00"), nil, opts)

	require.Len(t, res.Events, 1)
	assert.Equal(t, span(0, "06:30", "07:00"), res.Events[0].Range)
}

func TestScheduleTasksHabitStaysWithinBounds(t *testing.T) {
	cases := map[string]struct {
		habit model.Task
		want  model.DateRange
	}{
		"explicit max off the quarter grid": {
			habit: model.Task{Duration: 20 * time.Minute, MaxDuration: 25 * time.Minute, IdealTime: "06:30"},
			want:  span(0, "06:30", "06:45"),
		},
		"derived max off the quarter grid": {
			habit: model.Task{Duration: 15 * time.Minute, IdealTime: "06:30"},
			want:  span(0, "06:30", "06:45"),
		},
		"explicit min off the quarter grid": {
			habit: model.Task{Duration: 20 * time.Minute, MinDuration: 20 * time.Minute, MaxDuration: 45 * time.Minute},
			want:  span(0, "12:00", "12:30"),
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := tc.habit
			h.ID, h.Name, h.Category, h.IsHabit = "habit", "Habit", model.CategoryPersonal, true
			res := ScheduleTasks([]model.Task{h}, allHours("06:00", "22:00"), nil, Options{Now: at(0, "05:00")})

			require.Len(t, res.Events, 1)
			e := res.Events[0]
			assert.Equal(t, tc.want, e.Range)
			b := optimize.EffectiveDurationBounds(habitConfig(h))
			mins := minutesOf(e.Range.Duration())
			assert.GreaterOrEqual(t, mins, b.Min)
			assert.LessOrEqual(t, mins, b.Max)
			requireQuarterHours(t, res.Events)
		})
	}
}

func TestScheduleTasksHabitWithoutQuarterLength(t *testing.T) {
	h := model.Task{
		ID: "stretch", Name: "Stretch", Category: model.CategoryPersonal, IsHabit: true,
		Duration: 20 * time.Minute, MinDuration: 20 * time.Minute, MaxDuration: 25 * time.Minute,
	}
	res := ScheduleTasks([]model.Task{h}, allHours("06:00", "09:00"), nil, baseOpts())

	assert.Empty(t, res.Events)
	assert.NotEmpty(t, logsContaining(res, model.LogError, "no quarter-hour length"))
}

func TestScheduleTasksHabitDoesNotAdvanceCursor(t *testing.T) {
	tasks := []model.Task{
		{ID: "walk", Name: "Walk", Category: model.CategoryPersonal, IsHabit: true, Duration: 30 * time.Minute, TimePreference: model.PreferenceEvening},
		{ID: "errand", Name: "Errand", Category: model.CategoryPersonal, Duration: time.Hour},
	}
	res := ScheduleTasks(tasks, allHours("07:00", "22:00"), nil, baseOpts())

	walk := res.EventsForTask("walk")
	errand := res.EventsForTask("errand")
	require.Len(t, walk, 1)
	require.Len(t, errand, 1)
	assert.Equal(t, at(0, "18:00"), walk[0].Range.Start)
	assert.Equal(t, at(0, "07:00"), errand[0].Range.Start)
}

func TestScheduleTasksClassesHabitsAndStudy(t *testing.T) {
	locked := []model.Event{
		{ID: "class-1", Name: "Class", Range: span(0, "09:00", "10:30"), Locked: true},
		{ID: "class-2", Name: "Class", Range: span(0, "13:00", "14:30"), Locked: true},
	}
	tasks := []model.Task{
		{ID: "gym", Name: "Gym", Category: model.CategoryPersonal, IsHabit: true, Duration: time.Hour, TimePreference: model.PreferenceMorning},
		{ID: "lunch", Name: "Lunch", Category: model.CategoryPersonal, IsHabit: true, Duration: time.Hour, TimePreference: model.PreferenceAfternoon},
		{
			ID: "study", Name: "Study", Category: model.CategoryPersonal, AllowSplit: true, EnergyLoad: model.EnergyHigh,
			Duration: 3 * time.Hour, MinDuration: 30 * time.Minute, MaxDuration: 90 * time.Minute,
		},
	}
	opts := baseOpts()
	opts.EnergyProfile = "morning_person"
	opts.Settings.MinBuffer = 15
	res := ScheduleTasks(tasks, allHours("07:00", "22:00"), locked, opts)

	assert.Equal(t, locked, res.Events[:2])

	gym := res.EventsForTask("gym")
	require.Len(t, gym, 1)
	assert.True(t, gym[0].Range.Start.Before(at(0, "12:00")))
	assert.Equal(t, span(0, "07:45", "08:45"), gym[0].Range)

	lunch := res.EventsForTask("lunch")
	require.Len(t, lunch, 1)
	assert.False(t, lunch[0].Range.Start.Before(at(0, "12:00")))
	assert.Equal(t, span(0, "14:45", "15:45"), lunch[0].Range)

	study := res.EventsForTask("study")
	require.Len(t, study, 2)
	assert.Equal(t, span(0, "10:45", "12:15"), study[0].Range)
	assert.Equal(t, span(0, "16:00", "17:30"), study[1].Range)

	requireQuarterHours(t, res.Events)
	requireNoOverlap(t, res.Events)
	requireGap(t, res.Events, 15*time.Minute)
}

func TestScheduleTasksEnergyPeak(t *testing.T) {
	tasks := []model.Task{
		{ID: "hard", Name: "Hard", Category: model.CategoryWork, AllowSplit: true, EnergyLoad: model.EnergyHigh, Duration: time.Hour},
	}
	opts := baseOpts()
	opts.EnergyProfile = "morning_person"
	res := ScheduleTasks(tasks, workHours(window("06:00", "18:00")), nil, opts)

	require.Len(t, res.Events, 1)
	assert.Equal(t, at(0, "08:00"), res.Events[0].Range.Start)

	opts.EnergyProfile = ""
	res = ScheduleTasks(tasks, workHours(window("06:00", "18:00")), nil, opts)
	require.Len(t, res.Events, 1)
	assert.Equal(t, at(0, "06:00"), res.Events[0].Range.Start)
}

func TestScheduleTasksUnknownEnergyProfile(t *testing.T) {
	tasks := []model.Task{
		{ID: "a", Name: "A", Category: model.CategoryWork, AllowSplit: true, EnergyLoad: model.EnergyHigh, Duration: time.Hour},
		{ID: "b", Name: "B", Category: model.CategoryWork, AllowSplit: true, EnergyLoad: model.EnergyHigh, Duration: time.Hour},
	}
	opts := baseOpts()
	opts.EnergyProfile = "vampire"
	res := ScheduleTasks(tasks, workHours(window("09:00", "17:00")), nil, opts)

	assert.Len(t, res.Events, 2)
	assert.Len(t, logsContaining(res, model.LogWarning, "unknown energy profile"), 1)
	assert.Equal(t, at(0, "09:00"), res.Events[0].Range.Start)
}

func TestScheduleTasksTimePreferenceTask(t *testing.T) {
	task := model.Task{ID: "calls", Name: "Calls", Category: model.CategoryWork, AllowSplit: true, Duration: time.Hour, TimePreference: model.PreferenceAfternoon}
	locked := busy(span(0, "12:00", "13:00"))
	res := ScheduleTasks([]model.Task{task}, workHours(window("09:00", "17:00")), locked, baseOpts())

	got := res.EventsForTask("calls")
	require.Len(t, got, 1)
	assert.Equal(t, span(0, "13:00", "14:00"), got[0].Range)
}

func TestScheduleTasksNotBefore(t *testing.T) {
	task := model.Task{ID: "later", Name: "Later", Category: model.CategoryWork, Duration: time.Hour, NotBefore: ptr(at(2, "10:00"))}
	res := ScheduleTasks([]model.Task{task}, workHours(window("09:00", "17:00")), nil, baseOpts())

	require.Len(t, res.Events, 1)
	assert.Equal(t, at(2, "10:00"), res.Events[0].Range.Start)
}

func TestScheduleTasksMovesToNextDay(t *testing.T) {
	task := model.Task{ID: "wed", Name: "Wednesday job", Category: model.CategoryWork, AllowSplit: true, Duration: time.Hour}
	opts := baseOpts()
	opts.LookaheadDays = 1
	res := ScheduleTasks([]model.Task{task}, workHours(window("09:00", "17:00", time.Wednesday)), nil, opts)

	require.Len(t, res.Events, 1)
	assert.Equal(t, at(2, "09:00"), res.Events[0].Range.Start)
	assert.NotEmpty(t, logsContaining(res, model.LogWarning, "moving task to 2025-03-04"))
}

func TestScheduleTasksGivesUpAfterMaxAttempts(t *testing.T) {
	task := model.Task{ID: "sun", Name: "Sunday job", Category: model.CategoryWork, AllowSplit: true, Duration: time.Hour}
	opts := baseOpts()
	opts.LookaheadDays = 1
	opts.MaxAttempts = 3
	res := ScheduleTasks([]model.Task{task}, workHours(window("09:00", "17:00", time.Sunday)), nil, opts)

	assert.Empty(t, res.Events)
	assert.NotEmpty(t, logsContaining(res, model.LogError, "after 3 attempts"))
	assert.NotEmpty(t, logsContaining(res, model.LogWarning, "60 minutes of"))
}

func TestScheduleTasksPriorityOrdering(t *testing.T) {
	tasks := []model.Task{
		{ID: "low", Name: "Low", Category: model.CategoryWork, Duration: time.Hour, Priority: model.PriorityLow, Deadline: ptr(at(5, "12:00"))},
		{ID: "crit", Name: "Critical", Category: model.CategoryWork, Duration: time.Hour, Priority: model.PriorityCritical},
	}
	hours := workHours(window("09:00", "10:00"))

	res := ScheduleTasks(tasks, hours, nil, baseOpts())
	assert.Equal(t, at(0, "09:00"), res.EventsForTask("low")[0].Range.Start)
	assert.Equal(t, at(1, "09:00"), res.EventsForTask("crit")[0].Range.Start)

	opts := baseOpts()
	opts.Ordering = OrderPriority
	res = ScheduleTasks(tasks, hours, nil, opts)
	assert.Equal(t, at(0, "09:00"), res.EventsForTask("crit")[0].Range.Start)
	assert.Equal(t, at(1, "09:00"), res.EventsForTask("low")[0].Range.Start)
}

func TestScheduleTasksDeterministic(t *testing.T) {
	tasks := []model.Task{
		{ID: "a", Name: "A", Category: model.CategoryWork, AllowSplit: true, Duration: 5 * time.Hour, MaxDuration: 2 * time.Hour},
		{ID: "b", Name: "B", Category: model.CategoryWork, Duration: time.Hour},
	}
	snapshot := make([]model.Task, len(tasks))
	copy(snapshot, tasks)

	first := ScheduleTasks(tasks, workHours(window("09:00", "17:00")), nil, baseOpts())
	second := ScheduleTasks(tasks, workHours(window("09:00", "17:00")), nil, baseOpts())

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, tasks)

	seen := map[string]bool{}
	for _, e := range first.Events {
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
}

func TestScheduleTasksFiveHundredTasks(t *testing.T) {
	priorities := []model.Priority{model.PriorityCritical, model.PriorityHigh, model.PriorityNormal, model.PriorityLow}
	tasks := make([]model.Task, 500)
	for i := range tasks {
		tasks[i] = model.Task{
			ID:         fmt.Sprintf("t%03d", i),
			Name:       fmt.Sprintf("Task %d", i),
			Category:   model.Categories[i%len(model.Categories)],
			Priority:   priorities[i%len(priorities)],
			Duration:   30 * time.Minute,
			AllowSplit: true,
		}
	}

	start := time.Now()
	res := ScheduleTasks(tasks, allHours("08:00", "20:00"), nil, baseOpts())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	assert.NotEmpty(t, res.Events)
	requireQuarterHours(t, res.Events)
	requireNoOverlap(t, res.Events)
}

func TestOptionsBoundLookahead(t *testing.T) {
	o := Options{Now: at(0, "06:00"), LookaheadDays: 100000000}.withDefaults()
	assert.Equal(t, MaxLookaheadDays, o.LookaheadDays)

	o = Options{Now: at(0, "06:00")}.withDefaults()
	assert.Equal(t, DefaultLookaheadDays, o.LookaheadDays)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotcal/internal/model"
	"slotcal/internal/schedule"
)

const sampleYAML = `
listen: 0.0.0.0:9000
timezone: Europe/Berlin
refresh: "0 */2 * * *"
lookahead_days: 14
energy_profile: morning_person
min_buffer_minutes: 10
ordering: priority
active_hours:
  work:
    - start: "09:00"
      end: "17:00"
      days: [mon, tue, Wednesday, thu, fri]
  personal:
    - start: "07:00"
      end: "22:00"
busy_calendars:
  - name: Team
    url: https://example.com/team.ics
tasks:
  - id: report
    name: Quarterly report
    duration_minutes: 240
    min_duration_minutes: 60
    max_duration_minutes: 120
    category: work
    priority: high
    deadline: "2025-03-07"
    not_before: "2025-03-04 13:00"
    energy_load: high
  - name: Gym
    duration_minutes: 60
    category: personal
    habit: true
    time_preference: morning
    allow_split: false
output:
  json: /tmp/plan.json
`

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "slotcal.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.ActiveHours, again.ActiveHours)
	assert.Equal(t, cfg.RefreshCron, again.RefreshCron)
	require.NoError(t, again.Validate())
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slotcal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, 14, cfg.LookaheadDays)
	assert.Equal(t, schedule.DefaultMaxAttempts, cfg.MaxAttempts, "filled by Normalize")
	assert.Equal(t, defaultCacheDir, cfg.CacheDir)
	assert.Equal(t, "calendar-1", cfg.BusyCalendars[0].ID)
	assert.Equal(t, "task-2", cfg.Tasks[1].ID)
	assert.Empty(t, cfg.ActiveHours.Meeting)
	assert.Equal(t, "/tmp/plan.json", cfg.Output.JSON)
	assert.Empty(t, cfg.Output.ICS)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slotcal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tasks: [unclosed"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.ErrorIs(t, err, ErrEmptyPath)
	assert.ErrorIs(t, Save("", DefaultConfig()), ErrEmptyPath)
	assert.ErrorIs(t, Save(filepath.Join(t.TempDir(), "x.yaml"), nil), ErrNilConfig)
}

func TestSaveRoundTripLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slotcal.yaml")
	cfg := DefaultConfig()
	cfg.Tasks = []TaskConfig{{ID: "a", DurationMinutes: 30, Category: "work"}}
	require.NoError(t, cfg.Save(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Tasks, loaded.Tasks)
}

func TestToActiveHours(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ActiveHours.Work = []WindowConfig{{Start: "09:00", End: "17:00", Days: []string{"Mon", "friday"}}}

	hours, err := cfg.ToActiveHours()
	require.NoError(t, err)
	require.Len(t, hours.Work, 1)
	assert.Equal(t, model.MustClock("09:00"), hours.Work[0].Start)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, hours.Work[0].Days)
	require.Len(t, hours.Personal, 1)
	assert.Empty(t, hours.Personal[0].Days)
}

func TestToActiveHoursErrors(t *testing.T) {
	cases := map[string]WindowConfig{
		"bad start":   {Start: "9", End: "17:00"},
		"bad end":     {Start: "09:00", End: "25:00"},
		"inverted":    {Start: "17:00", End: "09:00"},
		"unknown day": {Start: "09:00", End: "17:00", Days: []string{"someday"}},
	}
	for name, w := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ActiveHours.Meeting = []WindowConfig{{Start: "10:00", End: "11:00"}, w}
			hours, err := cfg.ToActiveHours()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "active_hours.meeting[1]")
			assert.Len(t, hours.Meeting, 1, "valid windows survive")
		})
	}
}

func TestToTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slotcal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	loc, err := cfg.Location()
	require.NoError(t, err)

	tasks, err := cfg.ToTasks(loc)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	report := tasks[0]
	assert.Equal(t, "Quarterly report", report.Name)
	assert.Equal(t, 4*time.Hour, report.Duration)
	assert.Equal(t, time.Hour, report.MinDuration)
	assert.Equal(t, 2*time.Hour, report.MaxDuration)
	assert.Equal(t, model.CategoryWork, report.Category)
	assert.Equal(t, model.PriorityHigh, report.Priority)
	assert.Equal(t, model.EnergyHigh, report.EnergyLoad)
	assert.True(t, report.AllowSplit)
	require.NotNil(t, report.Deadline)
	assert.True(t, report.Deadline.Equal(time.Date(2025, 3, 8, 0, 0, 0, 0, loc)), "bare date means end of day")
	require.NotNil(t, report.NotBefore)
	assert.True(t, report.NotBefore.Equal(time.Date(2025, 3, 4, 13, 0, 0, 0, loc)))

	gym := tasks[1]
	assert.Equal(t, "Gym", gym.Name)
	assert.True(t, gym.IsHabit)
	assert.False(t, gym.AllowSplit)
	assert.Equal(t, model.PreferenceMorning, gym.TimePreference)
}

func TestToTasksErrors(t *testing.T) {
	cases := map[string]TaskConfig{
		"no duration":    {ID: "x", Category: "work"},
		"bad category":   {ID: "x", DurationMinutes: 30, Category: "chores"},
		"bad priority":   {ID: "x", DurationMinutes: 30, Category: "work", Priority: "asap"},
		"bad preference": {ID: "x", DurationMinutes: 30, Category: "work", TimePreference: "dawn"},
		"bad energy":     {ID: "x", DurationMinutes: 30, Category: "work", EnergyLoad: "extreme"},
		"bad ideal time": {ID: "x", DurationMinutes: 30, Category: "work", IdealTime: "noonish"},
		"bad deadline":   {ID: "x", DurationMinutes: 30, Category: "work", Deadline: "next week"},
		"bad not_before": {ID: "x", DurationMinutes: 30, Category: "work", NotBefore: "03/04/2025"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Tasks = []TaskConfig{tc, {ID: "ok", DurationMinutes: 30, Category: "work"}}
			tasks, err := cfg.ToTasks(time.UTC)
			require.Error(t, err)
			assert.Contains(t, err.Error(), `task "x"`)
			require.Len(t, tasks, 1)
			assert.Equal(t, "ok", tasks[0].ID)
		})
	}
}

func TestParseInstant(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	got, err := ParseInstant("2025-03-04T09:30:00Z", loc, false)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)))

	got, err = ParseInstant("2025-03-04T09:30", loc, false)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 3, 4, 9, 30, 0, 0, loc)))

	got, err = ParseInstant("2025-03-04", loc, false)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, loc)))

	got, err = ParseInstant("2025-03-04", loc, true)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 3, 5, 0, 0, 0, 0, loc)))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	cfg.RefreshCron = "every minute"
	cfg.Ordering = "alphabetical"
	cfg.LookaheadDays = 100000
	cfg.BusyCalendars = []CalendarConfig{{ID: "a"}, {ID: "b", URL: "x.ics"}, {ID: "b", URL: "y.ics"}}

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "timezone")
	assert.Contains(t, msg, "refresh")
	assert.Contains(t, msg, "ordering")
	assert.Contains(t, msg, "lookahead_days 100000")
	assert.Contains(t, msg, `busy calendar "a": url is empty`)
	assert.Contains(t, msg, `busy calendar "b": duplicate id`)
}

func TestValidateAcceptsDescriptors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RefreshCron = "@every 15m"
	assert.NoError(t, cfg.Validate())
}

func TestOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnergyProfile = "night_owl"
	cfg.MinBufferMinutes = 15
	cfg.Ordering = string(schedule.OrderPriority)
	now := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

	opts := cfg.Options(now)
	assert.Equal(t, now, opts.Now)
	assert.Equal(t, "night_owl", opts.EnergyProfile)
	assert.Equal(t, 15, opts.Settings.MinBuffer)
	assert.Equal(t, schedule.OrderPriority, opts.Ordering)
	assert.Equal(t, schedule.DefaultLookaheadDays, opts.LookaheadDays)
	assert.Equal(t, schedule.DefaultMaxAttempts, opts.MaxAttempts)
}

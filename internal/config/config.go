package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"slotcal/internal/schedule"
)

var (
	ErrEmptyPath = errors.New("config path is empty")
	ErrNilConfig = errors.New("config is nil")
)

// CalendarConfig is one busy calendar feed whose events are treated as locked.
type CalendarConfig struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	// URL is http(s), file:// or a local path.
	URL string `yaml:"url" json:"url"`
}

// WindowConfig is one active-hours template, e.g. 09:00-17:00 on weekdays.
type WindowConfig struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
	// Days restricts the window to these weekdays ("mon", "tuesday", ...).
	// Empty means every day.
	Days []string `yaml:"days,omitempty" json:"days,omitempty"`
}

type ActiveHoursConfig struct {
	Work     []WindowConfig `yaml:"work" json:"work"`
	Personal []WindowConfig `yaml:"personal" json:"personal"`
	Meeting  []WindowConfig `yaml:"meeting" json:"meeting"`
}

// TaskConfig is a task or habit declared in the config file.
type TaskConfig struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`

	DurationMinutes    int `yaml:"duration_minutes" json:"duration_minutes"`
	MinDurationMinutes int `yaml:"min_duration_minutes,omitempty" json:"min_duration_minutes,omitempty"`
	MaxDurationMinutes int `yaml:"max_duration_minutes,omitempty" json:"max_duration_minutes,omitempty"`

	Category string `yaml:"category" json:"category"`
	Priority string `yaml:"priority,omitempty" json:"priority,omitempty"`

	// Deadline and NotBefore accept RFC3339, "2006-01-02 15:04" or a bare
	// date. A bare deadline date means the end of that day.
	Deadline  string `yaml:"deadline,omitempty" json:"deadline,omitempty"`
	NotBefore string `yaml:"not_before,omitempty" json:"not_before,omitempty"`

	// AllowSplit defaults to true.
	AllowSplit *bool `yaml:"allow_split,omitempty" json:"allow_split,omitempty"`

	Habit          bool   `yaml:"habit,omitempty" json:"habit,omitempty"`
	IdealTime      string `yaml:"ideal_time,omitempty" json:"ideal_time,omitempty"`
	TimePreference string `yaml:"time_preference,omitempty" json:"time_preference,omitempty"`
	EnergyLoad     string `yaml:"energy_load,omitempty" json:"energy_load,omitempty"`
}

// OutputConfig names the files a plan is written to. Empty disables a format.
type OutputConfig struct {
	JSON string `yaml:"json" json:"json"`
	ICS  string `yaml:"ics" json:"ics"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone schedules are computed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a standard 5-field cron spec for re-planning in serve mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LookaheadDays    int    `yaml:"lookahead_days" json:"lookahead_days"`
	MaxAttempts      int    `yaml:"max_attempts" json:"max_attempts"`
	EnergyProfile    string `yaml:"energy_profile,omitempty" json:"energy_profile,omitempty"`
	MinBufferMinutes int    `yaml:"min_buffer_minutes" json:"min_buffer_minutes"`
	// Ordering is "deadline" (default) or "priority".
	Ordering string `yaml:"ordering" json:"ordering"`

	ActiveHours   ActiveHoursConfig `yaml:"active_hours" json:"active_hours"`
	BusyCalendars []CalendarConfig  `yaml:"busy_calendars" json:"busy_calendars"`
	Tasks         []TaskConfig      `yaml:"tasks" json:"tasks"`

	Output   OutputConfig `yaml:"output" json:"output"`
	CacheDir string       `yaml:"cache_dir" json:"cache_dir"`
	LogLevel string       `yaml:"log_level" json:"log_level"`
}

const (
	defaultListen   = "127.0.0.1:8080"
	defaultTimezone = "UTC"
	defaultRefresh  = "*/30 * * * *"
	defaultCacheDir = "./var/ics-cache"
	defaultLogLevel = "info"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	weekdays := []string{"mon", "tue", "wed", "thu", "fri"}
	return &Config{
		Listen:        defaultListen,
		Timezone:      defaultTimezone,
		RefreshCron:   defaultRefresh,
		LookaheadDays: schedule.DefaultLookaheadDays,
		MaxAttempts:   schedule.DefaultMaxAttempts,
		Ordering:      string(schedule.OrderDeadline),
		ActiveHours: ActiveHoursConfig{
			Work:     []WindowConfig{{Start: "09:00", End: "17:00", Days: weekdays}},
			Personal: []WindowConfig{{Start: "07:00", End: "23:00"}},
			Meeting:  []WindowConfig{{Start: "10:00", End: "16:00", Days: weekdays}},
		},
		BusyCalendars: []CalendarConfig{},
		Tasks:         []TaskConfig{},
		Output:        OutputConfig{JSON: "./var/plan.json", ICS: "./var/plan.ics"},
		CacheDir:      defaultCacheDir,
		LogLevel:      defaultLogLevel,
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = schedule.DefaultLookaheadDays
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = schedule.DefaultMaxAttempts
	}
	if c.MinBufferMinutes < 0 {
		c.MinBufferMinutes = 0
	}
	if c.Ordering == "" {
		c.Ordering = string(schedule.OrderDeadline)
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.BusyCalendars == nil {
		c.BusyCalendars = []CalendarConfig{}
	}
	if c.Tasks == nil {
		c.Tasks = []TaskConfig{}
	}
	for i := range c.BusyCalendars {
		if c.BusyCalendars[i].ID == "" {
			c.BusyCalendars[i].ID = fmt.Sprintf("calendar-%d", i+1)
		}
	}
	for i := range c.Tasks {
		if c.Tasks[i].ID == "" {
			c.Tasks[i].ID = fmt.Sprintf("task-%d", i+1)
		}
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	switch schedule.Ordering(c.Ordering) {
	case schedule.OrderDeadline, schedule.OrderPriority:
	default:
		errs = append(errs, fmt.Errorf("ordering %q: want deadline or priority", c.Ordering))
	}
	if c.LookaheadDays > schedule.MaxLookaheadDays {
		errs = append(errs, fmt.Errorf("lookahead_days %d: want at most %d", c.LookaheadDays, schedule.MaxLookaheadDays))
	}
	if _, err := c.ToActiveHours(); err != nil {
		errs = append(errs, err)
	}
	loc, err := c.Location()
	if err != nil {
		loc = time.UTC
	}
	if _, err := c.ToTasks(loc); err != nil {
		errs = append(errs, err)
	}
	seen := map[string]bool{}
	for _, cal := range c.BusyCalendars {
		if strings.TrimSpace(cal.URL) == "" {
			errs = append(errs, fmt.Errorf("busy calendar %q: url is empty", cal.ID))
		}
		if seen[cal.ID] {
			errs = append(errs, fmt.Errorf("busy calendar %q: duplicate id", cal.ID))
		}
		seen[cal.ID] = true
	}
	return errors.Join(errs...)
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Options builds scheduling options for a pass starting at now.
func (c *Config) Options(now time.Time) schedule.Options {
	return schedule.Options{
		Now:           now,
		EnergyProfile: c.EnergyProfile,
		Settings:      schedule.Settings{MinBuffer: c.MinBufferMinutes},
		LookaheadDays: c.LookaheadDays,
		MaxAttempts:   c.MaxAttempts,
		Ordering:      schedule.Ordering(c.Ordering),
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read, unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return ErrEmptyPath
	}
	if cfg == nil {
		return ErrNilConfig
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".slotcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

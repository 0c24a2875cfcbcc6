// Package planner runs scheduling passes from the config file: it pulls the
// busy calendars, schedules the configured tasks around them and writes the
// result out.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"slotcal/internal/clock"
	"slotcal/internal/config"
	"slotcal/internal/ics"
	appLog "slotcal/internal/log"
	"slotcal/internal/model"
	"slotcal/internal/schedule"
)

// SourceStatus reports what one busy calendar contributed to a plan.
type SourceStatus struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Events    int      `json:"events"`
	FromCache bool     `json:"from_cache,omitempty"`
	Truncated []string `json:"truncated,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Plan is the outcome of one pass.
type Plan struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Timezone    string         `json:"timezone"`
	RangeStart  time.Time      `json:"range_start"`
	RangeEnd    time.Time      `json:"range_end"`
	Events      []model.Event  `json:"events"`
	Logs        []model.Log    `json:"logs"`
	Sources     []SourceStatus `json:"sources"`
}

// Scheduled returns only the events the pass placed.
func (p *Plan) Scheduled() []model.Event {
	out := make([]model.Event, 0, len(p.Events))
	for _, e := range p.Events {
		if !e.Locked {
			out = append(out, e)
		}
	}
	return out
}

type Option func(*Planner)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(p *Planner) { p.clock = c }
}

// WithFetcher replaces the default busy-calendar fetcher.
func WithFetcher(f *ics.Fetcher) Option {
	return func(p *Planner) { p.fetcher = f }
}

// Planner owns the current config and the last plan. It is safe for
// concurrent use; passes are serialized.
type Planner struct {
	runMu sync.Mutex

	mu   sync.RWMutex
	cfg  *config.Config
	last *Plan

	fetcher *ics.Fetcher
	clock   clock.Clock
}

func New(cfg *config.Config, opts ...Option) *Planner {
	p := &Planner{cfg: cfg, clock: clock.System()}
	for _, o := range opts {
		o(p)
	}
	if p.fetcher == nil {
		p.fetcher = ics.NewFetcher(ics.FetcherOptions{CacheDir: cfg.CacheDir})
	}
	return p
}

func (p *Planner) Config() *config.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// SetConfig swaps the config used by the next pass.
func (p *Planner) SetConfig(cfg *config.Config) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

// Last returns the most recent successful plan.
func (p *Planner) Last() (*Plan, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.last != nil
}

// Run performs one pass. Busy calendars that fail to load are reported in
// the plan and logged; they never abort the pass. Output files are written
// when configured.
func (p *Planner) Run(ctx context.Context) (*Plan, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	cfg := p.Config()
	if cfg == nil {
		return nil, config.ErrNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, _ := cfg.Location()
	hours, _ := cfg.ToActiveHours()
	tasks, _ := cfg.ToTasks(loc)

	started := time.Now()
	now := p.clock.Now().In(loc)
	rangeEnd := clock.StartOfDay(now).AddDate(0, 0, cfg.LookaheadDays+1)

	locked, sources := p.busy(ctx, cfg.BusyCalendars, loc, now, rangeEnd)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := schedule.ScheduleTasks(tasks, hours, locked, cfg.Options(now))
	plan := &Plan{
		GeneratedAt: now,
		Timezone:    loc.String(),
		RangeStart:  now,
		RangeEnd:    rangeEnd,
		Events:      res.Events,
		Logs:        res.Logs,
		Sources:     sources,
	}

	p.mu.Lock()
	p.last = plan
	p.mu.Unlock()

	appLog.Info("plan complete",
		"tasks", len(tasks),
		"locked", len(locked),
		"scheduled", len(plan.Scheduled()),
		"logs", len(plan.Logs),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)

	if err := WriteOutputs(plan, cfg.Output, cfg.Timezone); err != nil {
		return plan, fmt.Errorf("write outputs: %w", err)
	}
	return plan, nil
}

// busy fetches, parses and expands every busy calendar into locked events.
func (p *Planner) busy(ctx context.Context, cals []config.CalendarConfig, loc *time.Location, from, to time.Time) ([]model.Event, []SourceStatus) {
	sources := make([]ics.Source, 0, len(cals))
	statuses := make([]SourceStatus, 0, len(cals))
	index := make(map[string]int, len(cals))
	for _, c := range cals {
		sources = append(sources, ics.Source{ID: c.ID, Name: c.Name, URL: c.URL})
		index[c.ID] = len(statuses)
		statuses = append(statuses, SourceStatus{ID: c.ID, Name: c.Name})
	}
	if len(sources) == 0 {
		return nil, statuses
	}

	results, errs := p.fetcher.FetchAll(ctx, sources)
	for _, err := range errs {
		var se *ics.SourceError
		if errors.As(err, &se) {
			statuses[index[se.Source.ID]].Error = se.Err.Error()
		}
	}

	var locked []model.Event
	for _, r := range results {
		st := &statuses[index[r.Source.ID]]
		st.FromCache = r.FromCache

		parsed, err := ics.ParseICS(r.Source, r.Body, loc)
		if err != nil {
			appLog.Error("busy calendar parse failed", err, "id", r.Source.ID)
			st.Error = err.Error()
			continue
		}
		exp, err := ics.ExpandBusy(parsed, ics.ExpandConfig{Location: loc, RangeStart: from, RangeEnd: to})
		if err != nil {
			appLog.Error("busy calendar expand failed", err, "id", r.Source.ID)
			st.Error = err.Error()
			continue
		}
		st.Events = len(exp.Locked)
		st.Truncated = exp.Truncated
		locked = append(locked, exp.Locked...)
	}
	return locked, statuses
}

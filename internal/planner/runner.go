package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"slotcal/internal/config"
	appLog "slotcal/internal/log"
)

const runTimeout = 2 * time.Minute

// Runner re-plans on the configured cron spec.
type Runner struct {
	planner *Planner
	parser  cron.Parser

	mu      sync.Mutex
	c       *cron.Cron
	entryID cron.EntryID
	spec    string
	tz      string

	// ctx is set once by Start before the first job can run.
	ctx context.Context
}

func NewRunner(p *Planner) *Runner {
	return &Runner{
		planner: p,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Start schedules passes from the planner's current config. Passes stop
// when ctx is cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return nil
	}
	r.ctx = ctx
	return r.startLocked(r.planner.Config())
}

func (r *Runner) startLocked(cfg *config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	c := cron.New(cron.WithParser(r.parser), cron.WithLocation(loc))
	id, err := c.AddFunc(cfg.RefreshCron, r.tick)
	if err != nil {
		return fmt.Errorf("refresh %q: %w", cfg.RefreshCron, err)
	}
	r.c, r.entryID = c, id
	r.spec, r.tz = cfg.RefreshCron, cfg.Timezone
	c.Start()
	appLog.Info("refresh scheduler started", "spec", cfg.RefreshCron, "tz", loc.String())
	return nil
}

// Apply installs cfg on the planner and restarts the schedule when the
// refresh spec or timezone changed.
func (r *Runner) Apply(cfg *config.Config) error {
	r.planner.SetConfig(cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil || (cfg.RefreshCron == r.spec && cfg.Timezone == r.tz) {
		return nil
	}
	<-r.c.Stop().Done()
	r.c = nil
	return r.startLocked(cfg)
}

// Next reports when the next pass is due.
func (r *Runner) Next() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil {
		return time.Time{}, false
	}
	return r.c.Entry(r.entryID).Next, true
}

// Stop halts the schedule and waits for a running pass to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}
}

func (r *Runner) tick() {
	parent := r.ctx
	if parent == nil || parent.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, runTimeout)
	defer cancel()
	if _, err := r.planner.Run(ctx); err != nil {
		appLog.Error("scheduled plan failed", err)
	}
}

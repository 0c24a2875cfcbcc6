// Package schedule places tasks and habits into free time. A pass is pure:
// inputs are never modified and nothing is kept between calls.
package schedule

import (
	"time"

	"slotcal/internal/clock"
)

const (
	// DefaultLookaheadDays is how far forward a single slot query looks.
	DefaultLookaheadDays = 30
	// MaxLookaheadDays bounds LookaheadDays; larger values are clamped.
	MaxLookaheadDays = 366
	// DefaultMaxAttempts caps allocation rounds per task.
	DefaultMaxAttempts = 50
)

// Ordering selects how tasks are sequenced before allocation.
type Ordering string

const (
	OrderDeadline Ordering = "deadline"
	OrderPriority Ordering = "priority"
)

// Settings are user-level scheduling preferences.
type Settings struct {
	// MinBuffer is the minimum gap in minutes kept around every event.
	MinBuffer int `json:"min_buffer" yaml:"min_buffer"`
}

// Options configure one scheduling pass. Callers should set Now; a zero Now
// falls back to the wall clock.
type Options struct {
	Now           time.Time
	EnergyProfile string
	Settings      Settings
	LookaheadDays int
	MaxAttempts   int
	Ordering      Ordering
}

func (o Options) withDefaults() Options {
	if o.Now.IsZero() {
		o.Now = clock.System().Now()
	}
	if o.LookaheadDays <= 0 {
		o.LookaheadDays = DefaultLookaheadDays
	}
	o.LookaheadDays = min(o.LookaheadDays, MaxLookaheadDays)
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Ordering == "" {
		o.Ordering = OrderDeadline
	}
	if o.Settings.MinBuffer < 0 {
		o.Settings.MinBuffer = 0
	}
	return o
}

func (o Options) query() SlotQuery {
	return SlotQuery{
		LookaheadDays: o.LookaheadDays,
		MinBuffer:     time.Duration(o.Settings.MinBuffer) * time.Minute,
	}
}

package schedule

import (
	"sort"
	"time"

	"slotcal/internal/model"
)

// PriorityWeights ranks the named priorities; larger is more important.
var PriorityWeights = map[model.Priority]int{
	model.PriorityCritical: 4,
	model.PriorityHigh:     3,
	model.PriorityNormal:   2,
	model.PriorityLow:      1,
}

const (
	criticalWithin = 24 * time.Hour
	highWithin     = 48 * time.Hour
)

// EffectivePriority is p when set. Otherwise it is inferred from the deadline:
// overdue or due within 24h is critical, within 48h high, later normal, and no
// deadline at all low.
func EffectivePriority(p model.Priority, deadline *time.Time, now time.Time) model.Priority {
	if _, ok := PriorityWeights[p]; ok {
		return p
	}
	if deadline == nil {
		return model.PriorityLow
	}
	left := deadline.Sub(now)
	switch {
	case left <= criticalWithin:
		return model.PriorityCritical
	case left <= highWithin:
		return model.PriorityHigh
	default:
		return model.PriorityNormal
	}
}

// TaskPriority is EffectivePriority for a task.
func TaskPriority(t model.Task, now time.Time) model.Priority {
	return EffectivePriority(t.Priority, t.Deadline, now)
}

// ComparePriority is negative when a outranks b, positive when b outranks a.
func ComparePriority(a, b model.Priority) int {
	return PriorityWeights[b] - PriorityWeights[a]
}

// SortByPriority returns tasks ordered by effective priority, then deadline
// (nil last). Remaining ties keep input order.
func SortByPriority(tasks []model.Task, now time.Time) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		c := ComparePriority(TaskPriority(out[i], now), TaskPriority(out[j], now))
		if c != 0 {
			return c < 0
		}
		return deadlineBefore(out[i].Deadline, out[j].Deadline)
	})
	return out
}

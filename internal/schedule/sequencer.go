package schedule

import (
	"sort"
	"time"

	"slotcal/internal/model"
)

// SortByDeadline returns tasks ordered by ascending deadline. Tasks without a
// deadline come after every task that has one. Ties keep their input order.
func SortByDeadline(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		return deadlineBefore(out[i].Deadline, out[j].Deadline)
	})
	return out
}

// deadlineBefore orders deadlines ascending with nil last.
func deadlineBefore(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}

func sequence(tasks []model.Task, o Options) []model.Task {
	if o.Ordering == OrderPriority {
		return SortByPriority(tasks, o.Now)
	}
	return SortByDeadline(tasks)
}

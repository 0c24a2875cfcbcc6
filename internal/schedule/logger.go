package schedule

import (
	"fmt"

	appLog "slotcal/internal/log"
	"slotcal/internal/model"
)

// Logger collects the warnings and errors of one pass. It never fails.
type Logger struct {
	entries []model.Log
}

func (l *Logger) Warn(format string, args ...any) {
	l.add(model.LogWarning, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.add(model.LogError, fmt.Sprintf(format, args...))
}

func (l *Logger) add(t model.LogType, msg string) {
	l.entries = append(l.entries, model.Log{Type: t, Message: msg})
	appLog.Debug("schedule: "+string(t), "message", msg)
}

// Logs returns a copy of everything recorded so far.
func (l *Logger) Logs() []model.Log {
	out := make([]model.Log, len(l.entries))
	copy(out, l.entries)
	return out
}

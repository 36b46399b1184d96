package sk

// Level is the severity attached to an operator notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier delivers operator-facing messages: per-target outcomes, degraded
// configuration warnings and fatal conditions.
type Notifier interface {
	Notify(level Level, subject, message string)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(Level, string, string) {}

package testutil

import (
	"sync"

	"snapkeep/internal/sk"
)

// Notification is one message captured by RecordingNotifier.
type Notification struct {
	Level   sk.Level
	Subject string
	Message string
}

// RecordingNotifier keeps every notification for later inspection.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

var _ sk.Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) Notify(level sk.Level, subject, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Level: level, Subject: subject, Message: message})
}

// Sent returns the captured notifications in order.
func (n *RecordingNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

// AtLevel returns the captured notifications with the given level.
func (n *RecordingNotifier) AtLevel(level sk.Level) []Notification {
	var out []Notification
	for _, s := range n.Sent() {
		if s.Level == level {
			out = append(out, s)
		}
	}
	return out
}

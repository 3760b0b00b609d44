// Package notify is the user-visible notification surface. Notifications are
// fire and forget: a Notifier never reports failure to its caller.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notifier interface {
	Notify(level Level, message string)
}

// Notification is one entry of a Feed.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Log writes notifications to a zerolog logger.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(level Level, message string) {
	var ev *zerolog.Event
	switch level {
	case LevelError:
		ev = l.logger.Error()
	case LevelWarning:
		ev = l.logger.Warn()
	default:
		ev = l.logger.Info()
	}
	ev.Str("surface", "notification").Msg(message)
}

// Feed keeps the most recent notifications until the console UI drains them.
type Feed struct {
	lock  sync.Mutex
	max   int
	items []Notification
	now   func() time.Time
}

// NewFeed keeps at most max notifications, dropping the oldest.
func NewFeed(max int) *Feed {
	if max <= 0 {
		max = 1
	}
	return &Feed{max: max, now: time.Now}
}

func (f *Feed) Notify(level Level, message string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.items = append(f.items, Notification{Level: level, Message: message, At: f.now()})
	if over := len(f.items) - f.max; over > 0 {
		f.items = append(f.items[:0:0], f.items[over:]...)
	}
}

// Drain returns the pending notifications, oldest first, and empties the feed.
func (f *Feed) Drain() []Notification {
	f.lock.Lock()
	defer f.lock.Unlock()
	out := f.items
	f.items = nil
	if out == nil {
		return []Notification{}
	}
	return out
}

func (f *Feed) Len() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.items)
}

type multi []Notifier

// Multi fans a notification out to every notifier.
func Multi(notifiers ...Notifier) Notifier {
	return multi(notifiers)
}

func (m multi) Notify(level Level, message string) {
	for _, n := range m {
		n.Notify(level, message)
	}
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(Level, string) {}

package notify

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is a one-shot message meant for the user, such as a toast.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier surfaces notifications to the user. Each Notify call is shown once.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to the structured log. It is the default for
// headless agents where the console is the only user-facing surface.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	if n.Level == LevelError {
		log.Warn().Str("notification", n.Message).Msg("user notification")
		return
	}
	log.Info().Str("notification", n.Message).Msg("user notification")
}

// Queue buffers notifications until a UI drains them. Drain hands out each
// notification exactly once.
type Queue struct {
	pending []Notification
	lock    sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Notify(n Notification) {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.pending = append(q.pending, n)
}

// Drain returns and forgets every pending notification.
func (q *Queue) Drain() []Notification {
	q.lock.Lock()
	defer q.lock.Unlock()
	drained := q.pending
	q.pending = nil
	return drained
}

// Fanout delivers each notification to every wrapped notifier.
type Fanout []Notifier

func (f Fanout) Notify(n Notification) {
	for _, notifier := range f {
		notifier.Notify(n)
	}
}

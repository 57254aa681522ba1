// File: internal/workflow/notify.go
package workflow

import "time"

// State classifies a status update.
type State string

const (
	StateRunning State = "running"
	StateDone    State = "done"
	StateError   State = "error"
)

// StatusUpdate is one progress event from a running scenario.
type StatusUpdate struct {
	Task      string
	State     State
	Message   string
	Timestamp time.Time
}

// Notifier receives progress events. A nil Notifier is valid and discards
// everything.
type Notifier func(StatusUpdate)

func (n Notifier) emit(task string, state State, msg string) {
	if n == nil {
		return
	}
	n(StatusUpdate{Task: task, State: state, Message: msg, Timestamp: time.Now()})
}

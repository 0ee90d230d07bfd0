package runner

import "time"

// EventType names a runner notification.
type EventType string

const (
	EventState            EventType = "state"
	EventTick             EventType = "tick"
	EventAnswered         EventType = "answered"
	EventNavigated        EventType = "navigated"
	EventFlagged          EventType = "flagged"
	EventSubmitted        EventType = "submitted"
	EventDecisionRequired EventType = "decision_required"
	EventCompleted        EventType = "completed"
	EventError            EventType = "error"
)

// Event is pushed to the sink after each transition.
type Event struct {
	Type          EventType `json:"type"`
	TestSessionID string    `json:"testSessionId"`
	State         State     `json:"state"`
	QuestionID    string    `json:"questionId,omitempty"`
	Current       int       `json:"current"`
	Remaining     int       `json:"remaining"`
	Flagged       bool      `json:"flagged,omitempty"`
	Unanswered    []string  `json:"unanswered,omitempty"`
	Message       string    `json:"message,omitempty"`
	At            time.Time `json:"at"`
}

// EventSink receives runner events. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

type discardSink struct{}

func (discardSink) Publish(Event) {}

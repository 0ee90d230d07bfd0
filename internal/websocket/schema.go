package websocket

import "github.com/stemsi/exstem-runner/internal/runner"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing   Action = "ping"
	ActionView   Action = "view"
	ActionSelect Action = "select"
	ActionNext   Action = "next"
	ActionPrev   Action = "prev"
	ActionGoTo   Action = "goto"
	ActionFlag   Action = "flag"
	ActionSubmit Action = "submit"
	ActionEnd    Action = "end"
	ActionRetry  Action = "retry"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
)

// RequestPayload is one client message. Only the fields of its action are read.
type RequestPayload struct {
	Action Action `json:"action"`
	// Option is the zero-based choice for select.
	Option *int `json:"option,omitempty"`
	// Index is the target question for goto.
	Index *int `json:"index,omitempty"`
	// Mode is the end mode: ask, submit_as_is or fill_unanswered.
	Mode string `json:"mode,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventRunner Event = "runner"
	EventView   Event = "view"
	EventAck    Event = "ack"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// RunnerResponse forwards one runner notification, ticks included.
type RunnerResponse struct {
	Event Event        `json:"event"`
	Data  runner.Event `json:"data"`
}

// ViewResponse carries the full run view, sent on connect and on request.
type ViewResponse struct {
	Event Event       `json:"event"`
	View  runner.View `json:"view"`
}

// AckResponse confirms an action. Result is action-specific.
type AckResponse struct {
	Event  Event       `json:"event"`
	Action Action      `json:"action"`
	Result interface{} `json:"result,omitempty"`
}

type ErrorResponse struct {
	Event   Event       `json:"event"`
	Action  Action      `json:"action,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

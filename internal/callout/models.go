package callout

import "time"

// Callout is an outbound-call campaign.
//
// Lifecycle: created "initialized"; only a running callout may have new phone
// calls dispatched for it. Deletion is restricted while participations or
// batch operations exist.
type Callout struct {
	ID        string `json:"id" db:"id"`
	AccountID string `json:"account_id" db:"account_id"`

	Status Status `json:"status" db:"status"`

	// CallFlowLogic names the registered flow driving voice-menu responses for
	// calls in this campaign.
	CallFlowLogic string `json:"call_flow_logic,omitempty" db:"call_flow_logic"`

	Voice Voice `json:"voice" db:"voice"`

	Metadata    map[string]string `json:"metadata,omitempty" db:"metadata"`
	LocationIDs []string          `json:"location_ids" db:"location_ids"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Voice references the campaign's voice prompt. The media itself lives in
// object storage; we keep enough to enforce type/size checks before the
// callout can be activated.
type Voice struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	ByteSize    int64  `json:"byte_size"`
}

type Status string

const (
	StatusInitialized Status = "initialized"
	StatusRunning     Status = "running"
	StatusPaused      Status = "paused"
	StatusStopped     Status = "stopped"
)

// Event is a requested status change.
type Event string

const (
	EventStart  Event = "start"
	EventPause  Event = "pause"
	EventResume Event = "resume"
	EventStop   Event = "stop"
)

// transitions maps (event, current status) to the next status. Anything not
// present is an invalid transition.
var transitions = map[Event]map[Status]Status{
	EventStart: {
		StatusInitialized: StatusRunning,
	},
	EventPause: {
		StatusRunning: StatusPaused,
	},
	EventResume: {
		StatusPaused:  StatusRunning,
		StatusStopped: StatusRunning,
	},
	EventStop: {
		StatusRunning: StatusStopped,
		StatusPaused:  StatusStopped,
	},
}

// AttemptEvent applies ev if permitted and reports whether the status changed.
// Invalid transitions leave the callout untouched; callers must check the
// returned flag rather than expect an error (non-strict semantics).
func (c *Callout) AttemptEvent(ev Event) bool {
	next, ok := transitions[ev][c.Status]
	if !ok {
		return false
	}
	c.Status = next
	return true
}

// ParseEvent maps an API event name onto an Event.
func ParseEvent(s string) (Event, bool) {
	switch Event(s) {
	case EventStart, EventPause, EventResume, EventStop:
		return Event(s), true
	default:
		return "", false
	}
}

// IsRunning reports whether the callout may currently dispatch calls.
func (c Callout) IsRunning() bool { return c.Status == StatusRunning }

package batchops

import (
	"time"

	"callout-engine/internal/apperrors"
)

// BatchOperation is a polymorphic async job. The Type tag selects the variant
// executed by the worker; it is immutable after creation.
type BatchOperation struct {
	ID        string `json:"id" db:"id"`
	AccountID string `json:"account_id" db:"account_id"`

	// CalloutID scopes callout-bound variants; optional for others.
	CalloutID string `json:"callout_id,omitempty" db:"callout_id"`

	Type   string `json:"type" db:"type"`
	Status Status `json:"status" db:"status"`

	// Parameters is the variant's input bag; Metadata accumulates results.
	Parameters map[string]any `json:"parameters" db:"parameters"`
	Metadata   map[string]any `json:"metadata" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusPreview  Status = "preview"
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
)

type Event string

const (
	EventQueue   Event = "queue"
	EventStart   Event = "start"
	EventFinish  Event = "finish"
	EventRequeue Event = "requeue"
)

// transitions: current status -> event -> next status. The batch-operation
// machine is strict: an invalid event is a conflict, unlike the callout's
// non-strict semantics.
var transitions = map[Event]map[Status]Status{
	EventQueue:   {StatusPreview: StatusQueued},
	EventStart:   {StatusQueued: StatusRunning},
	EventFinish:  {StatusRunning: StatusFinished},
	EventRequeue: {StatusFinished: StatusQueued},
}

// AttemptEvent applies ev or returns a ConflictError leaving the operation
// unchanged.
func (op *BatchOperation) AttemptEvent(ev Event) error {
	next, ok := transitions[ev][op.Status]
	if !ok {
		return apperrors.Conflictf("cannot %s a %s batch operation", ev, op.Status)
	}
	op.Status = next
	return nil
}

// ParseEvent maps an API event name onto an Event accepted on the events
// endpoint (only queue and requeue are caller-visible; start/finish belong to
// the worker).
func ParseEvent(s string) (Event, bool) {
	switch Event(s) {
	case EventQueue, EventRequeue:
		return Event(s), true
	default:
		return "", false
	}
}

func (op BatchOperation) setResult(key string, value any) BatchOperation {
	if op.Metadata == nil {
		op.Metadata = map[string]any{}
	}
	op.Metadata[key] = value
	return op
}

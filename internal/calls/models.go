package calls

import "time"

// PhoneCall is one dispatch attempt for a callout participation.
//
// Status fields are only advanced by inbound provider events and by the
// queue/remote-fetch batch jobs. Rows are immutable once terminal apart from
// those status fields. CreatedAt orders attempts; "most recent attempt" is the
// row with no strictly later CreatedAt for the same participation (ties broken
// by greatest ID).
type PhoneCall struct {
	ID              string `json:"id" db:"id"`
	ParticipationID string `json:"callout_participation_id,omitempty" db:"callout_participation_id"`
	ContactID       string `json:"contact_id,omitempty" db:"contact_id"`

	Msisdn string `json:"msisdn" db:"msisdn"`

	Status Status `json:"status" db:"status"`

	// Remote* mirror the provider's view of this call.
	RemoteCallID       string `json:"remote_call_id,omitempty" db:"remote_call_id"`
	RemoteDirection    string `json:"remote_direction,omitempty" db:"remote_direction"`
	RemoteStatus       string `json:"remote_status,omitempty" db:"remote_status"`
	RemoteErrorMessage string `json:"remote_error_message,omitempty" db:"remote_error_message"`

	// Which batch operations created and queued this attempt.
	CreateBatchOperationID string `json:"create_batch_operation_id,omitempty" db:"create_batch_operation_id"`
	QueueBatchOperationID  string `json:"queue_batch_operation_id,omitempty" db:"queue_batch_operation_id"`

	Metadata map[string]string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusCreated        Status = "created"
	StatusQueued         Status = "queued"
	StatusRemotelyQueued Status = "remotely_queued"
	StatusRinging        Status = "ringing"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusBusy           Status = "busy"
	StatusNoAnswer       Status = "no_answer"
	StatusCanceled       Status = "canceled"
	StatusErrored        Status = "errored"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound-api"
)

// FromRemoteStatus maps a provider call status string onto the internal
// status. Unknown strings map to the zero Status; callers keep the previous
// value in that case.
func FromRemoteStatus(remote string) Status {
	switch remote {
	case "queued", "initiated":
		return StatusRemotelyQueued
	case "ringing":
		return StatusRinging
	case "in-progress":
		return StatusInProgress
	case "completed":
		return StatusCompleted
	case "busy":
		return StatusBusy
	case "failed":
		return StatusFailed
	case "no-answer":
		return StatusNoAnswer
	case "canceled":
		return StatusCanceled
	default:
		return ""
	}
}

// IsTerminal reports whether no further provider events are expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled, StatusErrored:
		return true
	default:
		return false
	}
}

// RemotePhoneCallEvent is an inbound webhook record. Append-only: rows are
// never mutated after creation.
type RemotePhoneCallEvent struct {
	ID          string `json:"id" db:"id"`
	PhoneCallID string `json:"phone_call_id" db:"phone_call_id"`

	// Details is the raw provider payload, field name to value.
	Details map[string]string `json:"details" db:"details"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

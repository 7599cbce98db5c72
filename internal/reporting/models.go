package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics for a callout.
// Tenant isolation: AccountID is required and the callout must belong to it.

type CallsSummaryRequest struct {
	AccountID string    `json:"account_id"`
	CalloutID string    `json:"callout_id"`
	Range     TimeRange `json:"range,omitempty"`
}

type CallsSummary struct {
	AccountID string `json:"account_id"`
	CalloutID string `json:"callout_id"`

	Participations          int `json:"callout_participations"`
	ParticipationsRemaining int `json:"callout_participations_remaining"`

	TotalCalls          int `json:"total_calls"`
	CallsCreated        int `json:"calls_created"`
	CallsQueued         int `json:"calls_queued"`
	CallsRemotelyQueued int `json:"calls_remotely_queued"`
	CallsInProgress     int `json:"calls_in_progress"`
	CallsCompleted      int `json:"calls_completed"`
	CallsFailed         int `json:"calls_failed"`
	CallsBusy           int `json:"calls_busy"`
	CallsNoAnswer       int `json:"calls_no_answer"`
	CallsCanceled       int `json:"calls_canceled"`
	CallsErrored        int `json:"calls_errored"`
}

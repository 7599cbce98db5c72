package targeting

import (
	"context"

	"callout-engine/internal/calls"
	"callout-engine/internal/participation"
)

// DefaultRetryStatuses selects failed attempts only, matching the engine's
// default retry policy.
var DefaultRetryStatuses = []calls.Status{calls.StatusFailed}

// Policy parameterizes the "needs a call" rule for one selection.
type Policy struct {
	// RetryStatuses: a participation whose most recent attempt has one of
	// these statuses is eligible again. Empty means DefaultRetryStatuses.
	RetryStatuses []calls.Status

	// MaxCalls caps total attempts per participation; a participation with
	// MaxCalls or more attempts is never selected. Zero means no cap.
	MaxCalls int
}

// Query is a conjunctive set-membership filter over participations: the
// attribute filter intersected with any set predicates. All predicates are
// expressible as "participation id in S" sets, so stores may evaluate them
// in any order.
type Query struct {
	Attrs participation.Filter

	// NoPhoneCalls selects participations with zero attempts.
	NoPhoneCalls bool

	// HasPhoneCalls selects participations with at least one attempt.
	HasPhoneCalls bool

	// LastAttemptStatuses selects participations whose most recent attempt
	// (greatest CreatedAt; ties broken by greatest phone call ID) has one of
	// the given statuses.
	LastAttemptStatuses []calls.Status

	// NoAttemptsOrLastAttempt is the union of NoPhoneCalls and
	// LastAttemptStatuses(given), the default "needs a call" rule.
	NoAttemptsOrLastAttempt []calls.Status

	// MaxPhoneCallsCount selects participations with strictly fewer attempts
	// than the given count.
	MaxPhoneCallsCount *int
}

// Store evaluates a Query. Results are ordered by participation creation time
// then ID, and contain no duplicates.
type Store interface {
	Select(ctx context.Context, q Query) ([]participation.CalloutParticipation, error)
}

// Engine is the pure read-side selector deciding who gets called next.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine { return &Engine{store: store} }

func (e *Engine) Select(ctx context.Context, q Query) ([]participation.CalloutParticipation, error) {
	return e.store.Select(ctx, q)
}

// EligibleForCall computes the participations of a callout that need a new
// phone call under the given policy, intersected with an arbitrary extra
// attribute filter from the batch-job parameters.
func (e *Engine) EligibleForCall(ctx context.Context, calloutID string, pol Policy, attrs participation.Filter) ([]participation.CalloutParticipation, error) {
	retry := pol.RetryStatuses
	if len(retry) == 0 {
		retry = DefaultRetryStatuses
	}

	q := Query{Attrs: attrs}
	q.Attrs.CalloutID = calloutID
	q.NoAttemptsOrLastAttempt = retry
	if pol.MaxCalls > 0 {
		n := pol.MaxCalls
		q.MaxPhoneCallsCount = &n
	}
	return e.store.Select(ctx, q)
}

package batchops

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"callout-engine/internal/callout"
	"callout-engine/internal/calls"
	"callout-engine/internal/contacts"
	"callout-engine/internal/participation"
	"callout-engine/internal/targeting"
	"callout-engine/internal/telephony"
)

// Variant type tags. The tag is the API-visible discriminator and is
// immutable after creation.
const (
	TypeCalloutPopulation         = "callout_population"
	TypePhoneCallCreate           = "phone_call_create"
	TypePhoneCallQueue            = "phone_call_queue"
	TypePhoneCallQueueRemoteFetch = "phone_call_queue_remote_fetch"
)

// Selection is a preview result: the rows a variant would affect, without
// mutating anything.
type Selection struct {
	ContactIDs       []string `json:"contact_ids,omitempty"`
	ParticipationIDs []string `json:"callout_participation_ids,omitempty"`
	PhoneCallIDs     []string `json:"phone_call_ids,omitempty"`
}

// Variant is one execution semantics behind the shared state machine.
//
// Execute returns an error only for job-fatal conditions (unloadable
// parameters, missing callout). Per-item failures are recorded on the
// affected rows and in op.Metadata, and do not fail the job.
type Variant interface {
	Preview(ctx context.Context, op BatchOperation) (Selection, error)
	Execute(ctx context.Context, op *BatchOperation) error
}

// Deps carries the collaborators variants execute against.
type Deps struct {
	Callouts       callout.Repository
	Contacts       contacts.Repository
	Participations participation.Repository
	Calls          calls.Repository
	Targeting      *targeting.Engine
	Dialer         telephony.Client
	Logger         *slog.Logger

	// Limiter caps concurrent dispatches per callout. Nil means unlimited.
	Limiter DispatchLimiter

	// Defaults applied when batch parameters do not override them.
	DefaultRetryStatuses []calls.Status
	DefaultMaxCalls      int

	// StatusCallbackURL is handed to the provider on dispatch.
	StatusCallbackURL string
}

type variantFactory func(Deps) Variant

var variantFactories = map[string]variantFactory{
	TypeCalloutPopulation:         func(d Deps) Variant { return &calloutPopulation{d} },
	TypePhoneCallCreate:           func(d Deps) Variant { return &phoneCallCreate{d} },
	TypePhoneCallQueue:            func(d Deps) Variant { return &phoneCallQueue{deps: d} },
	TypePhoneCallQueueRemoteFetch: func(d Deps) Variant { return &phoneCallQueue{deps: d, remoteFetch: true} },
}

// KnownType reports whether tag names a registered variant.
func KnownType(tag string) bool {
	_, ok := variantFactories[tag]
	return ok
}

// KnownTypes lists registered variant tags, sorted.
func KnownTypes() []string {
	out := make([]string, 0, len(variantFactories))
	for t := range variantFactories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func newVariant(tag string, deps Deps) (Variant, error) {
	f, ok := variantFactories[tag]
	if !ok {
		return nil, fmt.Errorf("batchops: unknown batch operation type %q", tag)
	}
	return f(deps), nil
}

// decodeParams maps the loosely-typed parameters bag onto a variant's typed
// parameter struct via a JSON round trip. A decode failure is job-fatal.
func decodeParams(params map[string]any, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("batchops: parameters not serializable: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("batchops: parameters malformed: %w", err)
	}
	return nil
}

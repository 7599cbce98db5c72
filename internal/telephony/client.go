package telephony

import (
	"context"
)

// Client is the provider-agnostic interface for outbound call dispatch.
//
// Rules:
//   - No provider SDK calls outside telephony adapters.
//   - Keep request/response types provider-agnostic; raw provider payloads go
//     into call metadata if needed.
type Client interface {
	Name() string

	// Dial asks the provider to place an outbound call.
	Dial(ctx context.Context, req DialRequest) (DialResult, error)

	// FetchCallState re-reads the provider's view of a call. Used by the
	// remote-fetch batch variant before requeueing dispatch.
	FetchCallState(ctx context.Context, remoteCallID string) (CallState, error)
}

// DialRequest carries what the provider needs to place one call.
type DialRequest struct {
	// PhoneCallID is our identifier, echoed back via the status callback URL.
	PhoneCallID string

	// To is the dialed msisdn (E.164 where possible); From is the caller id.
	To   string
	From string

	// StatusCallbackURL receives the provider's call-status webhooks.
	StatusCallbackURL string

	// Params are extra provider request parameters from the batch-operation
	// parameters bag, passed through verbatim.
	Params map[string]string
}

type DialResult struct {
	RemoteCallID string
	RemoteStatus string
}

type CallState struct {
	RemoteCallID string
	RemoteStatus string
}

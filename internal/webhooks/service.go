package webhooks

import (
	"context"
	"errors"
	"log/slog"

	"callout-engine/internal/accounts"
	"callout-engine/internal/apperrors"
	"callout-engine/internal/callflow"
	"callout-engine/internal/callout"
	"callout-engine/internal/calls"
	"callout-engine/internal/contacts"
	"callout-engine/internal/participation"
)

// Request is one provider status callback: the signed URL, the claimed
// signature, and the decoded form parameters.
type Request struct {
	URL       string
	Signature string
	Params    map[string]string
}

// Response carries what the handler writes back on success: the created
// event and the voice-menu markup the provider should execute next.
type Response struct {
	Event calls.RemotePhoneCallEvent
	TwiML string
}

var requiredParams = []string{"CallSid", "AccountSid", "From", "To", "Direction", "CallStatus"}

// Service ingests provider call events. Authentication happens before any
// write: a request with a bad signature leaves no trace.
type Service struct {
	accounts accounts.Repository
	contacts contacts.Repository
	parts    participation.Repository
	callouts callout.Repository
	calls    calls.Repository
	events   calls.EventRepository

	defaultFlow string
	log         *slog.Logger
}

func NewService(
	accountRepo accounts.Repository,
	contactRepo contacts.Repository,
	partRepo participation.Repository,
	calloutRepo callout.Repository,
	callRepo calls.Repository,
	eventRepo calls.EventRepository,
	defaultFlow string,
	log *slog.Logger,
) *Service {
	return &Service{
		accounts:    accountRepo,
		contacts:    contactRepo,
		parts:       partRepo,
		callouts:    calloutRepo,
		calls:       callRepo,
		events:      eventRepo,
		defaultFlow: defaultFlow,
		log:         log,
	}
}

// HandleCallEvent authenticates, records, and answers one provider event.
//
// Error mapping: ErrAuthorization for an unknown account or bad signature,
// ValidationError for missing parameters, ErrNotFound for an event about an
// outbound call this engine never created.
func (s *Service) HandleCallEvent(ctx context.Context, req Request) (Response, error) {
	accountSID := req.Params["AccountSid"]
	if accountSID == "" {
		return Response{}, apperrors.ErrAuthorization
	}
	account, err := s.accounts.FindByPlatformSID(ctx, accountSID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return Response{}, apperrors.ErrAuthorization
		}
		return Response{}, err
	}
	if !ValidSignature(account.PlatformAuthToken, req.URL, req.Params, req.Signature) {
		return Response{}, apperrors.ErrAuthorization
	}

	ve := &apperrors.ValidationError{}
	for _, k := range requiredParams {
		if req.Params[k] == "" {
			ve.Add(k, "is required")
		}
	}
	if !ve.Empty() {
		return Response{}, ve
	}

	pc, err := s.findOrCreateCall(ctx, account, req.Params)
	if err != nil {
		return Response{}, err
	}

	pc, err = s.applyRemoteStatus(ctx, pc.RemoteCallID, req.Params["CallStatus"])
	if err != nil {
		return Response{}, err
	}

	event, err := s.events.Create(ctx, calls.RemotePhoneCallEvent{
		PhoneCallID: pc.ID,
		Details:     req.Params,
	})
	if err != nil {
		return Response{}, err
	}

	twiml, err := s.respond(ctx, account, pc, event)
	if err != nil {
		return Response{}, err
	}
	return Response{Event: event, TwiML: twiml}, nil
}

// findOrCreateCall resolves the event's call. An unknown CallSid with an
// inbound direction is a caller dialing in: the call (and, if needed, the
// contact) is created on the fly. An unknown outbound CallSid is not ours.
func (s *Service) findOrCreateCall(ctx context.Context, account accounts.Account, params map[string]string) (calls.PhoneCall, error) {
	callSID := params["CallSid"]
	pc, err := s.calls.FindByRemoteCallID(ctx, callSID)
	if err == nil {
		return pc, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return calls.PhoneCall{}, err
	}
	if params["Direction"] != calls.DirectionInbound {
		return calls.PhoneCall{}, apperrors.ErrNotFound
	}

	msisdn := contacts.NormalizeMsisdn(params["From"])
	contact, err := s.contacts.FindByMsisdn(ctx, account.ID, msisdn)
	if errors.Is(err, apperrors.ErrNotFound) {
		contact, err = s.contacts.Create(ctx, contacts.Contact{
			AccountID: account.ID,
			Msisdn:    msisdn,
		})
	}
	if err != nil {
		return calls.PhoneCall{}, err
	}

	created, err := s.calls.Create(ctx, calls.PhoneCall{
		ContactID:       contact.ID,
		Msisdn:          msisdn,
		Status:          calls.StatusCreated,
		RemoteCallID:    callSID,
		RemoteDirection: calls.DirectionInbound,
	})
	if err == nil {
		s.log.Info("inbound call created", "phone_call_id", created.ID, "remote_call_id", callSID)
		return created, nil
	}
	if apperrors.IsConflict(err) {
		// a concurrent event for the same CallSid won the race
		return s.calls.FindByRemoteCallID(ctx, callSID)
	}
	return calls.PhoneCall{}, err
}

// applyRemoteStatus folds the provider's status into the call under the
// per-call lock. A terminal call never regresses to a live status; replayed
// events are therefore harmless.
func (s *Service) applyRemoteStatus(ctx context.Context, remoteCallID, remoteStatus string) (calls.PhoneCall, error) {
	return s.calls.UpdateFromRemote(ctx, remoteCallID, func(pc *calls.PhoneCall) {
		pc.RemoteStatus = remoteStatus
		mapped := calls.FromRemoteStatus(remoteStatus)
		if mapped == "" {
			return
		}
		if pc.Status.IsTerminal() && !mapped.IsTerminal() {
			return
		}
		pc.Status = mapped
	})
}

// respond resolves and runs the call flow. A flow resolution failure is a
// configuration error; the event is already recorded by then.
func (s *Service) respond(ctx context.Context, account accounts.Account, pc calls.PhoneCall, event calls.RemotePhoneCallEvent) (string, error) {
	var participationFlow, calloutFlow string
	if pc.ParticipationID != "" {
		p, err := s.parts.Find(ctx, pc.ParticipationID)
		if err == nil {
			participationFlow = p.CallFlowLogic
			if co, err := s.callouts.Find(ctx, p.CalloutID); err == nil {
				calloutFlow = co.CallFlowLogic
			}
		}
	}

	name := callflow.Resolve(participationFlow, calloutFlow, account.DefaultCallFlowLogic, s.defaultFlow)
	flow, err := callflow.New(name)
	if err != nil {
		return "", err
	}

	history, err := s.events.ListByPhoneCall(ctx, pc.ID)
	if err != nil {
		return "", err
	}
	return flow.ToTwiML(ctx, callflow.CallContext{
		Event:     event,
		PhoneCall: pc,
		History:   history,
	})
}

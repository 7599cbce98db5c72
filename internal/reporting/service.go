package reporting

import (
	"context"
	"errors"

	"callout-engine/internal/apperrors"
	"callout-engine/internal/callout"
	"callout-engine/internal/calls"
	"callout-engine/internal/participation"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Service assembles per-callout progress figures from the domain stores.
// Reads only; nothing here mutates campaign state.
type Service struct {
	callouts callout.Repository
	parts    participation.Repository
	calls    calls.Repository
}

func NewService(calloutRepo callout.Repository, partRepo participation.Repository, callRepo calls.Repository) *Service {
	return &Service{callouts: calloutRepo, parts: partRepo, calls: callRepo}
}

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.AccountID == "" || req.CalloutID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}

	co, err := s.callouts.Find(ctx, req.CalloutID)
	if err != nil {
		return CallsSummary{}, err
	}
	if co.AccountID != req.AccountID {
		// no cross-tenant existence leak
		return CallsSummary{}, apperrors.ErrNotFound
	}

	parts, err := s.parts.List(ctx, participation.Filter{CalloutID: req.CalloutID})
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{
		AccountID:      req.AccountID,
		CalloutID:      req.CalloutID,
		Participations: len(parts),
	}

	for _, p := range parts {
		rows, err := s.calls.ListByParticipation(ctx, p.ID)
		if err != nil {
			return CallsSummary{}, err
		}
		if len(rows) == 0 {
			out.ParticipationsRemaining++
		}
		for _, pc := range rows {
			if !inRange(pc, req.Range) {
				continue
			}
			out.TotalCalls++
			switch pc.Status {
			case calls.StatusCreated:
				out.CallsCreated++
			case calls.StatusQueued:
				out.CallsQueued++
			case calls.StatusRemotelyQueued:
				out.CallsRemotelyQueued++
			case calls.StatusRinging, calls.StatusInProgress:
				out.CallsInProgress++
			case calls.StatusCompleted:
				out.CallsCompleted++
			case calls.StatusFailed:
				out.CallsFailed++
			case calls.StatusBusy:
				out.CallsBusy++
			case calls.StatusNoAnswer:
				out.CallsNoAnswer++
			case calls.StatusCanceled:
				out.CallsCanceled++
			case calls.StatusErrored:
				out.CallsErrored++
			}
		}
	}
	return out, nil
}

func inRange(pc calls.PhoneCall, r TimeRange) bool {
	if r.From.IsZero() && r.To.IsZero() {
		return true
	}
	if !r.From.IsZero() && pc.CreatedAt.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !pc.CreatedAt.Before(r.To) {
		return false
	}
	return true
}

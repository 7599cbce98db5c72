package batchops

import (
	"context"

	"callout-engine/internal/callout"
	"callout-engine/internal/calls"
	"callout-engine/internal/telephony"
)

// phoneCallQueue moves `created` phone calls to a dispatch-ready state and
// hands them to the telephony provider. With remoteFetch set, calls already
// known remotely get their provider status re-read first, so a requeued job
// never re-dials a call that progressed since the last run.
type phoneCallQueue struct {
	deps        Deps
	remoteFetch bool
}

type phoneCallQueueParams struct {
	PhoneCallFilter struct {
		Statuses []string `json:"statuses"`
	} `json:"phone_call_filter"`

	// Limit bounds how many calls one run dispatches. Zero means no bound.
	Limit int `json:"limit"`
}

func (v *phoneCallQueue) selectCalls(ctx context.Context, op BatchOperation) ([]calls.PhoneCall, error) {
	var params phoneCallQueueParams
	if err := decodeParams(op.Parameters, &params); err != nil {
		return nil, err
	}

	statuses := []calls.Status{calls.StatusCreated}
	if len(params.PhoneCallFilter.Statuses) > 0 {
		statuses = statuses[:0]
		for _, s := range params.PhoneCallFilter.Statuses {
			statuses = append(statuses, calls.Status(s))
		}
	}

	rows, err := v.deps.Calls.List(ctx, calls.Filter{
		CreateBatchID: stringParam(op.Parameters, "create_batch_operation_id"),
		Statuses:      statuses,
	})
	if err != nil {
		return nil, err
	}

	// scope to the callout when the operation is callout-bound
	if op.CalloutID != "" {
		scoped := rows[:0]
		for _, pc := range rows {
			p, err := v.deps.Participations.Find(ctx, pc.ParticipationID)
			if err != nil {
				continue
			}
			if p.CalloutID == op.CalloutID {
				scoped = append(scoped, pc)
			}
		}
		rows = scoped
	}

	if params.Limit > 0 && len(rows) > params.Limit {
		rows = rows[:params.Limit]
	}
	return rows, nil
}

func (v *phoneCallQueue) Preview(ctx context.Context, op BatchOperation) (Selection, error) {
	rows, err := v.selectCalls(ctx, op)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{}
	for _, pc := range rows {
		sel.PhoneCallIDs = append(sel.PhoneCallIDs, pc.ID)
	}
	return sel, nil
}

func (v *phoneCallQueue) Execute(ctx context.Context, op *BatchOperation) error {
	rows, err := v.selectCalls(ctx, *op)
	if err != nil {
		return err
	}

	var queued, refreshed, skipped, errored int
	for _, pc := range rows {
		// campaign state is checked per call: a pause or stop lands mid-batch
		co, err := v.owningCallout(ctx, pc)
		if err != nil {
			v.deps.Logger.Warn("callout check failed", "phone_call_id", pc.ID, "err", err)
			skipped++
			continue
		}
		if !co.IsRunning() {
			skipped++
			continue
		}

		if v.remoteFetch && pc.RemoteCallID != "" {
			state, err := v.deps.Dialer.FetchCallState(ctx, pc.RemoteCallID)
			if err == nil {
				pc.RemoteStatus = state.RemoteStatus
				if mapped := calls.FromRemoteStatus(state.RemoteStatus); mapped != "" {
					pc.Status = mapped
				}
				if _, err := v.deps.Calls.Update(ctx, pc); err == nil {
					refreshed++
				}
				// a call already live remotely must not be re-dialed
				if pc.Status != calls.StatusCreated {
					continue
				}
			}
		}

		if v.deps.Limiter != nil {
			ok, err := v.deps.Limiter.Acquire(ctx, co.ID)
			if err != nil {
				v.deps.Logger.Warn("dispatch cap check failed", "phone_call_id", pc.ID, "err", err)
				skipped++
				continue
			}
			if !ok {
				// cap reached; the call stays created for the next run
				skipped++
				continue
			}
		}

		result, err := v.deps.Dialer.Dial(ctx, v.dialRequest(pc))
		if v.deps.Limiter != nil {
			v.deps.Limiter.Release(ctx, co.ID)
		}
		if err != nil {
			// per-item failure: record on the row, keep the batch going
			pc.Status = calls.StatusErrored
			pc.RemoteErrorMessage = err.Error()
			if _, uerr := v.deps.Calls.Update(ctx, pc); uerr != nil {
				v.deps.Logger.Error("errored call update failed", "phone_call_id", pc.ID, "err", uerr)
			}
			errored++
			continue
		}

		pc.Status = calls.StatusQueued
		pc.RemoteCallID = result.RemoteCallID
		pc.RemoteStatus = result.RemoteStatus
		pc.RemoteDirection = calls.DirectionOutbound
		pc.QueueBatchOperationID = op.ID
		if _, err := v.deps.Calls.Update(ctx, pc); err != nil {
			v.deps.Logger.Error("queued call update failed", "phone_call_id", pc.ID, "err", err)
			errored++
			continue
		}
		queued++
	}

	*op = op.setResult("phone_calls_selected", len(rows))
	*op = op.setResult("phone_calls_queued", queued)
	if v.remoteFetch {
		*op = op.setResult("phone_calls_refreshed", refreshed)
	}
	if skipped > 0 {
		*op = op.setResult("phone_calls_skipped", skipped)
	}
	if errored > 0 {
		*op = op.setResult("phone_calls_errored", errored)
	}
	return nil
}

func (v *phoneCallQueue) owningCallout(ctx context.Context, pc calls.PhoneCall) (callout.Callout, error) {
	p, err := v.deps.Participations.Find(ctx, pc.ParticipationID)
	if err != nil {
		return callout.Callout{}, err
	}
	return v.deps.Callouts.Find(ctx, p.CalloutID)
}

func (v *phoneCallQueue) dialRequest(pc calls.PhoneCall) telephony.DialRequest {
	return telephony.DialRequest{
		PhoneCallID:       pc.ID,
		To:                pc.Msisdn,
		From:              pc.Metadata["from"],
		StatusCallbackURL: v.deps.StatusCallbackURL,
		Params:            pc.Metadata,
	}
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

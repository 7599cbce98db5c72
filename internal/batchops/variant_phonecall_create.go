package batchops

import (
	"context"
	"fmt"

	"callout-engine/internal/calls"
	"callout-engine/internal/participation"
	"callout-engine/internal/targeting"
)

// phoneCallCreate creates PhoneCall rows, in the `created` status, for
// participations that need a call under the targeting policy. Dispatch itself
// belongs to the queue variant.
type phoneCallCreate struct {
	deps Deps
}

type phoneCallCreateParams struct {
	ParticipationFilter struct {
		CallFlowLogic string            `json:"call_flow_logic"`
		ContactID     string            `json:"contact_id"`
		Metadata      map[string]string `json:"metadata"`
	} `json:"callout_participation_filter"`

	RetryStatuses []string `json:"retry_statuses"`
	MaxCalls      int      `json:"max_calls"`

	// RemoteRequestParams are provider request parameters stamped onto each
	// created call, used later at dispatch time.
	RemoteRequestParams map[string]string `json:"remote_request_params"`
}

func (v *phoneCallCreate) policy(params phoneCallCreateParams) targeting.Policy {
	pol := targeting.Policy{MaxCalls: params.MaxCalls}
	if pol.MaxCalls <= 0 {
		pol.MaxCalls = v.deps.DefaultMaxCalls
	}
	if len(params.RetryStatuses) > 0 {
		for _, s := range params.RetryStatuses {
			pol.RetryStatuses = append(pol.RetryStatuses, calls.Status(s))
		}
	} else {
		pol.RetryStatuses = v.deps.DefaultRetryStatuses
	}
	return pol
}

func (v *phoneCallCreate) selectParticipations(ctx context.Context, op BatchOperation) ([]participation.CalloutParticipation, error) {
	var params phoneCallCreateParams
	if err := decodeParams(op.Parameters, &params); err != nil {
		return nil, err
	}

	attrs := participation.Filter{
		CallFlowLogic: params.ParticipationFilter.CallFlowLogic,
		ContactID:     params.ParticipationFilter.ContactID,
		Metadata:      params.ParticipationFilter.Metadata,
	}
	return v.deps.Targeting.EligibleForCall(ctx, op.CalloutID, v.policy(params), attrs)
}

func (v *phoneCallCreate) Preview(ctx context.Context, op BatchOperation) (Selection, error) {
	rows, err := v.selectParticipations(ctx, op)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{}
	for _, p := range rows {
		sel.ParticipationIDs = append(sel.ParticipationIDs, p.ID)
	}
	return sel, nil
}

func (v *phoneCallCreate) Execute(ctx context.Context, op *BatchOperation) error {
	co, err := v.deps.Callouts.Find(ctx, op.CalloutID)
	if err != nil {
		return fmt.Errorf("batchops: callout %s: %w", op.CalloutID, err)
	}
	if !co.IsRunning() {
		// a paused or stopped campaign dispatches nothing; not a failure
		*op = op.setResult("skipped_reason", "callout not running")
		*op = op.setResult("phone_calls_created", 0)
		return nil
	}

	var params phoneCallCreateParams
	if err := decodeParams(op.Parameters, &params); err != nil {
		return err
	}

	rows, err := v.selectParticipations(ctx, *op)
	if err != nil {
		return err
	}

	var created, failed int
	for _, p := range rows {
		meta := map[string]string{}
		for k, val := range params.RemoteRequestParams {
			meta[k] = val
		}
		_, err := v.deps.Calls.Create(ctx, calls.PhoneCall{
			ParticipationID:        p.ID,
			ContactID:              p.ContactID,
			Msisdn:                 p.Msisdn,
			Status:                 calls.StatusCreated,
			CreateBatchOperationID: op.ID,
			Metadata:               meta,
		})
		if err != nil {
			failed++
			v.deps.Logger.Warn("phone call create failed", "batch_operation_id", op.ID, "callout_participation_id", p.ID, "err", err)
			continue
		}
		created++
	}

	*op = op.setResult("participations_selected", len(rows))
	*op = op.setResult("phone_calls_created", created)
	if failed > 0 {
		*op = op.setResult("phone_calls_failed", failed)
	}
	return nil
}

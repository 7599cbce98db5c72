package batchops

import (
	"context"
	"errors"
	"fmt"

	"callout-engine/internal/contacts"
	"callout-engine/internal/participation"
)

// calloutPopulation enrolls contacts matching a filter into the callout.
//
// Idempotent under requeue: re-selecting an already-enrolled contact hits the
// (callout, contact) uniqueness invariant and is skipped, never duplicated.
type calloutPopulation struct {
	deps Deps
}

type populationParams struct {
	ContactFilter struct {
		Metadata    map[string]string `json:"metadata"`
		LocationIDs []string          `json:"location_ids"`
	} `json:"contact_filter"`
}

func (v *calloutPopulation) selectContacts(ctx context.Context, op BatchOperation) ([]contacts.Contact, error) {
	var params populationParams
	if err := decodeParams(op.Parameters, &params); err != nil {
		return nil, err
	}

	co, err := v.deps.Callouts.Find(ctx, op.CalloutID)
	if err != nil {
		return nil, fmt.Errorf("batchops: callout %s: %w", op.CalloutID, err)
	}

	locations := params.ContactFilter.LocationIDs
	if len(locations) == 0 {
		// default to the callout's own targeting locations
		locations = co.LocationIDs
	}

	return v.deps.Contacts.List(ctx, contacts.Filter{
		AccountID:     op.AccountID,
		Metadata:      params.ContactFilter.Metadata,
		HasLocationIn: locations,
	})
}

func (v *calloutPopulation) Preview(ctx context.Context, op BatchOperation) (Selection, error) {
	rows, err := v.selectContacts(ctx, op)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{}
	for _, c := range rows {
		sel.ContactIDs = append(sel.ContactIDs, c.ID)
	}
	return sel, nil
}

func (v *calloutPopulation) Execute(ctx context.Context, op *BatchOperation) error {
	rows, err := v.selectContacts(ctx, *op)
	if err != nil {
		return err
	}

	co, err := v.deps.Callouts.Find(ctx, op.CalloutID)
	if err != nil {
		return err
	}

	var created, skipped, failed int
	for _, c := range rows {
		_, err := v.deps.Participations.Create(ctx, participation.CalloutParticipation{
			CalloutID:           op.CalloutID,
			ContactID:           c.ID,
			CalloutPopulationID: op.ID,
			Msisdn:              c.Msisdn,
			CallFlowLogic:       co.CallFlowLogic,
		})
		switch {
		case err == nil:
			created++
		case errors.Is(err, participation.ErrDuplicate):
			skipped++
		default:
			// per-item failure: count it and keep going
			failed++
			v.deps.Logger.Warn("population enroll failed", "batch_operation_id", op.ID, "contact_id", c.ID, "err", err)
		}
	}

	*op = op.setResult("contacts_selected", len(rows))
	*op = op.setResult("participations_created", created)
	*op = op.setResult("contacts_skipped", skipped)
	if failed > 0 {
		*op = op.setResult("contacts_failed", failed)
	}
	return nil
}

package participation

import (
	"context"
	"testing"

	"callout-engine/internal/apperrors"
	"callout-engine/internal/calls"
	"callout-engine/internal/contacts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollDefaultsMsisdnFromContact(t *testing.T) {
	svc := NewService(NewMemoryRepo(), calls.NewMemoryRepo())
	ctx := context.Background()

	contact := contacts.Contact{ID: "c1", AccountID: "a1", Msisdn: "+85510202101"}
	p, err := svc.Enroll(ctx, CalloutParticipation{CalloutID: "co1"}, contact)
	require.NoError(t, err)
	assert.Equal(t, "+85510202101", p.Msisdn)
	assert.Equal(t, "c1", p.ContactID)
}

func TestEnrollUniquePerCalloutContactAndMsisdn(t *testing.T) {
	svc := NewService(NewMemoryRepo(), calls.NewMemoryRepo())
	ctx := context.Background()

	contact := contacts.Contact{ID: "c1", Msisdn: "+85510202101"}
	_, err := svc.Enroll(ctx, CalloutParticipation{CalloutID: "co1"}, contact)
	require.NoError(t, err)

	// same contact, same callout
	_, err = svc.Enroll(ctx, CalloutParticipation{CalloutID: "co1"}, contact)
	assert.ErrorIs(t, err, ErrDuplicate)

	// different contact, same msisdn, same callout
	other := contacts.Contact{ID: "c2", Msisdn: "+85510202101"}
	_, err = svc.Enroll(ctx, CalloutParticipation{CalloutID: "co1"}, other)
	assert.ErrorIs(t, err, ErrDuplicate)

	// same contact, different callout is fine
	_, err = svc.Enroll(ctx, CalloutParticipation{CalloutID: "co2"}, contact)
	assert.NoError(t, err)
}

func TestDeleteRestrictedWhileAttemptsExist(t *testing.T) {
	callRepo := calls.NewMemoryRepo()
	svc := NewService(NewMemoryRepo(), callRepo)
	ctx := context.Background()

	contact := contacts.Contact{ID: "c1", Msisdn: "+85510202101"}
	p, err := svc.Enroll(ctx, CalloutParticipation{CalloutID: "co1"}, contact)
	require.NoError(t, err)

	_, err = callRepo.Create(ctx, calls.PhoneCall{ParticipationID: p.ID, Msisdn: p.Msisdn})
	require.NoError(t, err)

	err = svc.Delete(ctx, p.ID)
	assert.True(t, apperrors.IsConflict(err))

	// a participation with no attempts deletes cleanly
	p2, err := svc.Enroll(ctx, CalloutParticipation{CalloutID: "co2"}, contact)
	require.NoError(t, err)
	assert.NoError(t, svc.Delete(ctx, p2.ID))
}

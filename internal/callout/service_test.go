package callout

import (
	"context"
	"testing"

	"callout-engine/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreateRequest() CreateRequest {
	return CreateRequest{
		AccountID:     "acc1",
		CallFlowLogic: "hello_world",
		Voice: Voice{
			URL:         "https://media.example.com/prompt.mp3",
			ContentType: "audio/mpeg",
			ByteSize:    1 << 20,
		},
		LocationIDs: []string{"120101"},
	}
}

func TestCreateStartsInitialized(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	c, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusInitialized, c.Status)
	assert.NotEmpty(t, c.ID)
}

func TestMemoryRepoAssignsIDOnCreate(t *testing.T) {
	repo := NewMemoryRepo()

	c, err := repo.Create(context.Background(), Callout{AccountID: "acc1", Status: StatusInitialized})
	require.NoError(t, err)
	require.NotEmpty(t, c.ID, "rows created through the repo must be retrievable by id")

	got, err := repo.Find(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestCreateRequiresLocationIDs(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	req := validCreateRequest()
	req.LocationIDs = []string{"", ""}

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateRejectsBadVoiceMedia(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	req := validCreateRequest()
	req.Voice.ContentType = "video/mp4"
	_, err := svc.Create(context.Background(), req)
	assert.True(t, apperrors.IsValidation(err), "wrong content type must be rejected")

	req = validCreateRequest()
	req.Voice.ByteSize = 11 << 20
	_, err = svc.Create(context.Background(), req)
	assert.True(t, apperrors.IsValidation(err), "oversized media must be rejected")

	req = validCreateRequest()
	req.Voice = Voice{}
	_, err = svc.Create(context.Background(), req)
	assert.True(t, apperrors.IsValidation(err), "missing voice must be rejected")
}

func TestAttemptEventTransitions(t *testing.T) {
	cases := []struct {
		from    Status
		ev      Event
		to      Status
		applied bool
	}{
		{StatusInitialized, EventStart, StatusRunning, true},
		{StatusRunning, EventPause, StatusPaused, true},
		{StatusPaused, EventResume, StatusRunning, true},
		{StatusStopped, EventResume, StatusRunning, true},
		{StatusRunning, EventStop, StatusStopped, true},
		{StatusPaused, EventStop, StatusStopped, true},

		// invalid transitions leave status unchanged
		{StatusInitialized, EventPause, StatusInitialized, false},
		{StatusInitialized, EventStop, StatusInitialized, false},
		{StatusInitialized, EventResume, StatusInitialized, false},
		{StatusRunning, EventStart, StatusRunning, false},
		{StatusStopped, EventStop, StatusStopped, false},
		{StatusStopped, EventStart, StatusStopped, false},
	}

	for _, tc := range cases {
		c := Callout{Status: tc.from}
		applied := c.AttemptEvent(tc.ev)
		assert.Equal(t, tc.applied, applied, "%s on %s", tc.ev, tc.from)
		assert.Equal(t, tc.to, c.Status, "%s on %s", tc.ev, tc.from)
	}
}

func TestApplyEventPersistsOnlyValidTransitions(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	// pause while initialized is rejected without error
	got, applied, err := svc.ApplyEvent(ctx, c.ID, EventPause)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, StatusInitialized, got.Status)

	got, applied, err = svc.ApplyEvent(ctx, c.ID, EventStart)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StatusRunning, got.Status)

	stored, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, stored.Status)
}

type fakeDeps struct{ has bool }

func (f fakeDeps) CalloutHasDependents(ctx context.Context, calloutID string) (bool, error) {
	return f.has, nil
}

func TestDeleteRestrictedWithDependents(t *testing.T) {
	ctx := context.Background()

	svc := NewService(NewMemoryRepo(), fakeDeps{has: true})
	c, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	err = svc.Delete(ctx, c.ID)
	assert.True(t, apperrors.IsConflict(err))

	svc = NewService(NewMemoryRepo(), fakeDeps{has: false})
	c, err = svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, c.ID))

	_, err = svc.Get(ctx, c.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

package targeting

import (
	"context"
	"testing"
	"time"

	"callout-engine/internal/calls"
	"callout-engine/internal/participation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	parts  *participation.MemoryRepo
	calls  *calls.MemoryRepo
	engine *Engine
}

func newFixture() *fixture {
	parts := participation.NewMemoryRepo()
	callRepo := calls.NewMemoryRepo()
	return &fixture{
		parts:  parts,
		calls:  callRepo,
		engine: NewEngine(NewMemoryStore(parts, callRepo)),
	}
}

func (f *fixture) addParticipation(t *testing.T, calloutID, contactID string) participation.CalloutParticipation {
	t.Helper()
	p, err := f.parts.Create(context.Background(), participation.CalloutParticipation{
		CalloutID: calloutID,
		ContactID: contactID,
		Msisdn:    "+85510" + contactID,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) addCall(t *testing.T, participationID string, status calls.Status, createdAt time.Time) calls.PhoneCall {
	t.Helper()
	pc, err := f.calls.Create(context.Background(), calls.PhoneCall{
		ParticipationID: participationID,
		Status:          status,
		CreatedAt:       createdAt,
	})
	require.NoError(t, err)
	return pc
}

func ids(rows []participation.CalloutParticipation) []string {
	out := make([]string, len(rows))
	for i, p := range rows {
		out[i] = p.ID
	}
	return out
}

func TestNoPhoneCallsPredicate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	fresh := f.addParticipation(t, "co1", "c1")
	called := f.addParticipation(t, "co1", "c2")
	f.addCall(t, called.ID, calls.StatusCompleted, time.Now())

	got, err := f.engine.Select(ctx, Query{NoPhoneCalls: true})
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.ID}, ids(got))

	// once any phone call exists the participation leaves the set
	f.addCall(t, fresh.ID, calls.StatusFailed, time.Now())
	got, err = f.engine.Select(ctx, Query{NoPhoneCalls: true})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLastAttemptStatusUsesLatestCreation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	// attempts: failed, completed, failed at increasing timestamps
	p := f.addParticipation(t, "co1", "c1")
	f.addCall(t, p.ID, calls.StatusFailed, base)
	f.addCall(t, p.ID, calls.StatusCompleted, base.Add(time.Minute))
	f.addCall(t, p.ID, calls.StatusFailed, base.Add(2*time.Minute))

	// latest attempt failed: selected
	got, err := f.engine.Select(ctx, Query{LastAttemptStatuses: []calls.Status{calls.StatusFailed}})
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, ids(got))

	// a later completed attempt removes it, earlier failures notwithstanding
	f.addCall(t, p.ID, calls.StatusCompleted, base.Add(3*time.Minute))
	got, err = f.engine.Select(ctx, Query{LastAttemptStatuses: []calls.Status{calls.StatusFailed}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLastAttemptTimestampTieBrokenByGreatestID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	p := f.addParticipation(t, "co1", "c1")
	a := f.addCall(t, p.ID, calls.StatusFailed, at)
	b := f.addCall(t, p.ID, calls.StatusCompleted, at)

	winner := a
	if b.ID > a.ID {
		winner = b
	}

	got, err := f.engine.Select(ctx, Query{LastAttemptStatuses: []calls.Status{winner.Status}})
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, ids(got), "greatest id wins the tie deterministically")
}

func TestNoAttemptsOrLastAttemptUnion(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	fresh := f.addParticipation(t, "co1", "c1")
	failed := f.addParticipation(t, "co1", "c2")
	done := f.addParticipation(t, "co1", "c3")
	f.addCall(t, failed.ID, calls.StatusFailed, base)
	f.addCall(t, done.ID, calls.StatusCompleted, base)

	got, err := f.engine.Select(ctx, Query{NoAttemptsOrLastAttempt: []calls.Status{calls.StatusFailed}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{fresh.ID, failed.ID}, ids(got))
}

func TestMaxPhoneCallsCountIsStrict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	zero := f.addParticipation(t, "co1", "c1")
	one := f.addParticipation(t, "co1", "c2")
	two := f.addParticipation(t, "co1", "c3")
	f.addCall(t, one.ID, calls.StatusFailed, base)
	f.addCall(t, two.ID, calls.StatusFailed, base)
	f.addCall(t, two.ID, calls.StatusFailed, base.Add(time.Minute))

	max := 2
	got, err := f.engine.Select(ctx, Query{MaxPhoneCallsCount: &max})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{zero.ID, one.ID}, ids(got), "exactly 2 attempts is excluded; 0 and 1 are included")
}

func TestEligibleForCallAppliesPolicyAndScope(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	fresh := f.addParticipation(t, "co1", "c1")
	failedOnce := f.addParticipation(t, "co1", "c2")
	exhausted := f.addParticipation(t, "co1", "c3")
	otherCallout := f.addParticipation(t, "co2", "c4")

	f.addCall(t, failedOnce.ID, calls.StatusFailed, base)
	f.addCall(t, exhausted.ID, calls.StatusFailed, base)
	f.addCall(t, exhausted.ID, calls.StatusFailed, base.Add(time.Minute))
	_ = otherCallout

	got, err := f.engine.EligibleForCall(ctx, "co1", Policy{MaxCalls: 2}, participation.Filter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{fresh.ID, failedOnce.ID}, ids(got))
}

func TestEligibleForCallIntersectsAttributeFilter(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tagged, err := f.parts.Create(ctx, participation.CalloutParticipation{
		CalloutID: "co1", ContactID: "c1", Msisdn: "+85510000001",
		Metadata: map[string]string{"priority": "high"},
	})
	require.NoError(t, err)
	_, err = f.parts.Create(ctx, participation.CalloutParticipation{
		CalloutID: "co1", ContactID: "c2", Msisdn: "+85510000002",
	})
	require.NoError(t, err)

	got, err := f.engine.EligibleForCall(ctx, "co1", Policy{}, participation.Filter{
		Metadata: map[string]string{"priority": "high"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{tagged.ID}, ids(got))
}

func TestSelectionOrderedAndDeduplicated(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var want []string
	for _, contact := range []string{"c1", "c2", "c3"} {
		p := f.addParticipation(t, "co1", contact)
		want = append(want, p.ID)
	}

	got, err := f.engine.Select(ctx, Query{Attrs: participation.Filter{CalloutID: "co1"}})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	seen := map[string]bool{}
	for _, p := range got {
		assert.False(t, seen[p.ID], "no duplicates")
		seen[p.ID] = true
	}
	assert.ElementsMatch(t, want, ids(got))
}

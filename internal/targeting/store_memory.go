package targeting

import (
	"context"

	"callout-engine/internal/calls"
	"callout-engine/internal/participation"
)

// MemoryStore evaluates targeting queries against the in-memory repositories.
// Used by tests and by preview computations in single-process deployments.
type MemoryStore struct {
	parts participation.Repository
	calls calls.Repository
}

func NewMemoryStore(parts participation.Repository, callRepo calls.Repository) *MemoryStore {
	return &MemoryStore{parts: parts, calls: callRepo}
}

func (s *MemoryStore) Select(ctx context.Context, q Query) ([]participation.CalloutParticipation, error) {
	rows, err := s.parts.List(ctx, q.Attrs)
	if err != nil {
		return nil, err
	}

	out := make([]participation.CalloutParticipation, 0, len(rows))
	for _, p := range rows {
		attempts, err := s.calls.ListByParticipation(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if matches(q, attempts) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matches(q Query, attempts []calls.PhoneCall) bool {
	if q.NoPhoneCalls && len(attempts) != 0 {
		return false
	}
	if q.HasPhoneCalls && len(attempts) == 0 {
		return false
	}
	if len(q.LastAttemptStatuses) > 0 && !lastAttemptIn(attempts, q.LastAttemptStatuses) {
		return false
	}
	if len(q.NoAttemptsOrLastAttempt) > 0 {
		if len(attempts) != 0 && !lastAttemptIn(attempts, q.NoAttemptsOrLastAttempt) {
			return false
		}
	}
	if q.MaxPhoneCallsCount != nil && len(attempts) >= *q.MaxPhoneCallsCount {
		return false
	}
	return true
}

// lastAttemptIn reports whether the most recent attempt has one of the given
// statuses. Most recent = no other attempt has a strictly later CreatedAt;
// equal timestamps are broken by the greatest phone call ID.
func lastAttemptIn(attempts []calls.PhoneCall, statuses []calls.Status) bool {
	if len(attempts) == 0 {
		return false
	}
	last := attempts[0]
	for _, pc := range attempts[1:] {
		if pc.CreatedAt.After(last.CreatedAt) {
			last = pc
			continue
		}
		if pc.CreatedAt.Equal(last.CreatedAt) && pc.ID > last.ID {
			last = pc
		}
	}
	for _, s := range statuses {
		if last.Status == s {
			return true
		}
	}
	return false
}

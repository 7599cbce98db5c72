package audit

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only event store. The trail is lost on
// restart; a durable store can replace it behind the Repository interface.

type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the full trail in append order.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsByAccount returns the trail for one account in append order.
func (r *MemoryRepo) EventsByAccount(accountID string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out
}

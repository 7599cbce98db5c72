package batchops

import (
	"context"
	"sort"
	"sync"
	"time"

	"callout-engine/internal/apperrors"

	"github.com/google/uuid"
)

// OutboxEntry is the durable "go execute" signal written in the same atomic
// step as the queue/requeue transition. The relay publishes entries to the
// execution queue; a crash between transition and publish leaves the entry
// pending, never lost.
type OutboxEntry struct {
	ID               string
	BatchOperationID string
	CreatedAt        time.Time
	DispatchedAt     *time.Time
}

type Repository interface {
	Create(ctx context.Context, op BatchOperation) (BatchOperation, error)
	Find(ctx context.Context, id string) (BatchOperation, error)
	Update(ctx context.Context, op BatchOperation) (BatchOperation, error)
	Delete(ctx context.Context, id string) error
	ListByAccount(ctx context.Context, accountID string) ([]BatchOperation, error)
	ListByCallout(ctx context.Context, calloutID string) ([]BatchOperation, error)
	CalloutHasDependents(ctx context.Context, calloutID string) (bool, error)

	// TransitionAndEnqueue persists op (whose status was already advanced to
	// queued) and appends an outbox entry in one atomic step.
	TransitionAndEnqueue(ctx context.Context, op BatchOperation) (BatchOperation, error)

	// PendingOutbox returns undispatched entries in creation order.
	PendingOutbox(ctx context.Context, limit int) ([]OutboxEntry, error)

	// MarkDispatched records that an outbox entry reached the queue.
	MarkDispatched(ctx context.Context, entryID string) error
}

// MemoryRepo holds batch operations and their outbox under one mutex, the
// in-memory stand-in for a database transaction.
type MemoryRepo struct {
	mu     sync.Mutex
	rows   map[string]BatchOperation
	outbox []OutboxEntry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]BatchOperation{}}
}

func (r *MemoryRepo) Create(ctx context.Context, op BatchOperation) (BatchOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	op.UpdatedAt = now
	r.rows[op.ID] = op
	return op, nil
}

func (r *MemoryRepo) Find(ctx context.Context, id string) (BatchOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.rows[id]
	if !ok {
		return BatchOperation{}, apperrors.ErrNotFound
	}
	return op, nil
}

func (r *MemoryRepo) Update(ctx context.Context, op BatchOperation) (BatchOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.rows[op.ID]
	if !ok {
		return BatchOperation{}, apperrors.ErrNotFound
	}
	// the type discriminator is immutable after creation
	op.Type = old.Type
	op.UpdatedAt = time.Now().UTC()
	r.rows[op.ID] = op
	return op, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *MemoryRepo) ListByAccount(ctx context.Context, accountID string) ([]BatchOperation, error) {
	return r.list(func(op BatchOperation) bool { return op.AccountID == accountID })
}

func (r *MemoryRepo) ListByCallout(ctx context.Context, calloutID string) ([]BatchOperation, error) {
	return r.list(func(op BatchOperation) bool { return op.CalloutID == calloutID })
}

func (r *MemoryRepo) CalloutHasDependents(ctx context.Context, calloutID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range r.rows {
		if op.CalloutID == calloutID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) list(keep func(BatchOperation) bool) ([]BatchOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]BatchOperation, 0)
	for _, op := range r.rows {
		if keep(op) {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) TransitionAndEnqueue(ctx context.Context, op BatchOperation) (BatchOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.rows[op.ID]
	if !ok {
		return BatchOperation{}, apperrors.ErrNotFound
	}
	op.Type = old.Type
	op.UpdatedAt = time.Now().UTC()
	r.rows[op.ID] = op
	r.outbox = append(r.outbox, OutboxEntry{
		ID:               uuid.NewString(),
		BatchOperationID: op.ID,
		CreatedAt:        op.UpdatedAt,
	})
	return op, nil
}

func (r *MemoryRepo) PendingOutbox(ctx context.Context, limit int) ([]OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OutboxEntry, 0)
	for _, e := range r.outbox {
		if e.DispatchedAt == nil {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *MemoryRepo) MarkDispatched(ctx context.Context, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.outbox {
		if r.outbox[i].ID == entryID {
			now := time.Now().UTC()
			r.outbox[i].DispatchedAt = &now
			return nil
		}
	}
	return apperrors.ErrNotFound
}

package callout

import (
	"context"
	"sort"
	"sync"

	"callout-engine/internal/apperrors"

	"github.com/google/uuid"
)

// MemoryRepo is a simple in-memory callout repository for tests and early
// development.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Callout
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]Callout{}}
}

func (r *MemoryRepo) Create(ctx context.Context, c Callout) (Callout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.rows[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) Update(ctx context.Context, c Callout) (Callout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[c.ID]; !ok {
		return Callout{}, apperrors.ErrNotFound
	}
	r.rows[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) Find(ctx context.Context, id string) (Callout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return Callout{}, apperrors.ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListByAccount(ctx context.Context, accountID string) ([]Callout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Callout, 0)
	for _, c := range r.rows {
		if c.AccountID == accountID {
			out = append(out, c)
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

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

package contacts

import (
	"context"
	"sort"
	"sync"
	"time"

	"callout-engine/internal/apperrors"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c Contact) (Contact, error)
	Find(ctx context.Context, id string) (Contact, error)
	FindByMsisdn(ctx context.Context, accountID, msisdn string) (Contact, error)
	List(ctx context.Context, f Filter) ([]Contact, error)
	Delete(ctx context.Context, id string) error
}

// MemoryRepo enforces the (account, msisdn) uniqueness invariant under a
// single mutex, mirroring the database unique index.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Contact
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]Contact{}}
}

func (r *MemoryRepo) Create(ctx context.Context, c Contact) (Contact, error) {
	c.Msisdn = NormalizeMsisdn(c.Msisdn)
	if c.AccountID == "" || c.Msisdn == "" {
		return Contact{}, apperrors.NewValidation("msisdn", "account_id and msisdn are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rows {
		if existing.AccountID == c.AccountID && existing.Msisdn == c.Msisdn {
			return Contact{}, apperrors.Conflictf("msisdn already taken for account")
		}
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.rows[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) Find(ctx context.Context, id string) (Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return Contact{}, apperrors.ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) FindByMsisdn(ctx context.Context, accountID, msisdn string) (Contact, error) {
	msisdn = NormalizeMsisdn(msisdn)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.AccountID == accountID && c.Msisdn == msisdn {
			return c, nil
		}
	}
	return Contact{}, apperrors.ErrNotFound
}

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Contact, 0)
	for _, c := range r.rows {
		if f.Matches(c) {
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

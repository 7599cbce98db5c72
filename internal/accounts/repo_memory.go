package accounts

import (
	"context"
	"sync"
	"time"

	"callout-engine/internal/apperrors"

	"github.com/google/uuid"
)

// Repository abstracts account storage. Webhook authentication resolves the
// account by provider SID, never by caller-supplied credentials.
type Repository interface {
	Create(ctx context.Context, a Account) (Account, error)
	Find(ctx context.Context, id string) (Account, error)
	FindByPlatformSID(ctx context.Context, sid string) (Account, error)
}

// MemoryRepo is an in-memory account repository for tests and early development.
type MemoryRepo struct {
	mu    sync.Mutex
	byID  map[string]Account
	bySID map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Account{}, bySID: map[string]string{}}
}

func (r *MemoryRepo) Create(ctx context.Context, a Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.PlatformAccountSID != "" {
		if _, exists := r.bySID[a.PlatformAccountSID]; exists {
			return Account{}, apperrors.Conflictf("platform account sid already taken")
		}
		r.bySID[a.PlatformAccountSID] = a.ID
	}
	r.byID[a.ID] = a
	return a, nil
}

func (r *MemoryRepo) Find(ctx context.Context, id string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return Account{}, apperrors.ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) FindByPlatformSID(ctx context.Context, sid string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySID[sid]
	if !ok {
		return Account{}, apperrors.ErrNotFound
	}
	return r.byID[id], nil
}

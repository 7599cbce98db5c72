package participation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"callout-engine/internal/apperrors"

	"github.com/google/uuid"
)

// ErrDuplicate is returned when a create violates one of the participation
// uniqueness invariants. Concurrent duplicate selection degrades to this
// rejected write rather than a double call.
var ErrDuplicate = errors.New("participation already exists")

type Repository interface {
	Create(ctx context.Context, p CalloutParticipation) (CalloutParticipation, error)
	Find(ctx context.Context, id string) (CalloutParticipation, error)
	List(ctx context.Context, f Filter) ([]CalloutParticipation, error)
	Delete(ctx context.Context, id string) error
	CalloutHasDependents(ctx context.Context, calloutID string) (bool, error)
	PopulationHasDependents(ctx context.Context, populationID string) (bool, error)
}

// MemoryRepo enforces the uniqueness invariants under a single mutex, the
// in-memory stand-in for the database unique indexes.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]CalloutParticipation
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]CalloutParticipation{}}
}

func (r *MemoryRepo) Create(ctx context.Context, p CalloutParticipation) (CalloutParticipation, error) {
	if p.CalloutID == "" || p.ContactID == "" || p.Msisdn == "" {
		return CalloutParticipation{}, apperrors.NewValidation("participation", "callout_id, contact_id and msisdn are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rows {
		if existing.CalloutID != p.CalloutID {
			continue
		}
		if existing.ContactID == p.ContactID || existing.Msisdn == p.Msisdn {
			return CalloutParticipation{}, ErrDuplicate
		}
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.rows[p.ID] = p
	return p, nil
}

func (r *MemoryRepo) Find(ctx context.Context, id string) (CalloutParticipation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return CalloutParticipation{}, apperrors.ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]CalloutParticipation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CalloutParticipation, 0)
	for _, p := range r.rows {
		if f.Matches(p) {
			out = append(out, p)
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

func (r *MemoryRepo) CalloutHasDependents(ctx context.Context, calloutID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.CalloutID == calloutID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) PopulationHasDependents(ctx context.Context, populationID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.CalloutPopulationID == populationID {
			return true, nil
		}
	}
	return false, nil
}

package calls

import (
	"context"
	"sort"
	"sync"
	"time"

	"callout-engine/internal/apperrors"

	"github.com/google/uuid"
)

// Repository abstracts phone call storage.
//
// Concurrency contract: UpdateFromRemote serializes per remote call id;
// concurrent updates for different calls must not block each other.
type Repository interface {
	Create(ctx context.Context, pc PhoneCall) (PhoneCall, error)
	Find(ctx context.Context, id string) (PhoneCall, error)
	FindByRemoteCallID(ctx context.Context, remoteCallID string) (PhoneCall, error)
	ListByParticipation(ctx context.Context, participationID string) ([]PhoneCall, error)
	List(ctx context.Context, f Filter) ([]PhoneCall, error)
	Update(ctx context.Context, pc PhoneCall) (PhoneCall, error)
	UpdateFromRemote(ctx context.Context, remoteCallID string, apply func(pc *PhoneCall)) (PhoneCall, error)
	CountByParticipation(ctx context.Context, participationID string) (int, error)
}

// EventRepository persists the append-only remote event log.
type EventRepository interface {
	Create(ctx context.Context, ev RemotePhoneCallEvent) (RemotePhoneCallEvent, error)
	ListByPhoneCall(ctx context.Context, phoneCallID string) ([]RemotePhoneCallEvent, error)
}

// Filter selects phone calls for queue batch jobs and previews.
// Set fields combine conjunctively.
type Filter struct {
	ParticipationIDs []string
	Statuses         []Status
	CreateBatchID    string
	QueueBatchID     string
	HasRemoteCallID  *bool
}

func (f Filter) matches(pc PhoneCall) bool {
	if len(f.ParticipationIDs) > 0 && !containsString(f.ParticipationIDs, pc.ParticipationID) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if pc.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.CreateBatchID != "" && pc.CreateBatchOperationID != f.CreateBatchID {
		return false
	}
	if f.QueueBatchID != "" && pc.QueueBatchOperationID != f.QueueBatchID {
		return false
	}
	if f.HasRemoteCallID != nil {
		if *f.HasRemoteCallID != (pc.RemoteCallID != "") {
			return false
		}
	}
	return true
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// MemoryRepo keeps phone calls in memory. A per-remote-call-id mutex set
// serializes webhook updates for the same call while letting different calls
// proceed concurrently, mirroring row-level locking in Postgres.
type MemoryRepo struct {
	mu       sync.Mutex
	rows     map[string]PhoneCall
	byRemote map[string]string

	remoteLocks map[string]*sync.Mutex
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		rows:        map[string]PhoneCall{},
		byRemote:    map[string]string{},
		remoteLocks: map[string]*sync.Mutex{},
	}
}

func (r *MemoryRepo) Create(ctx context.Context, pc PhoneCall) (PhoneCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pc.RemoteCallID != "" {
		if _, exists := r.byRemote[pc.RemoteCallID]; exists {
			return PhoneCall{}, apperrors.Conflictf("remote call id already taken")
		}
	}

	if pc.ID == "" {
		pc.ID = uuid.NewString()
	}
	if pc.Status == "" {
		pc.Status = StatusCreated
	}
	now := time.Now().UTC()
	if pc.CreatedAt.IsZero() {
		pc.CreatedAt = now
	}
	pc.UpdatedAt = now

	r.rows[pc.ID] = pc
	if pc.RemoteCallID != "" {
		r.byRemote[pc.RemoteCallID] = pc.ID
	}
	return pc, nil
}

func (r *MemoryRepo) Find(ctx context.Context, id string) (PhoneCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pc, ok := r.rows[id]
	if !ok {
		return PhoneCall{}, apperrors.ErrNotFound
	}
	return pc, nil
}

func (r *MemoryRepo) FindByRemoteCallID(ctx context.Context, remoteCallID string) (PhoneCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRemote[remoteCallID]
	if !ok {
		return PhoneCall{}, apperrors.ErrNotFound
	}
	return r.rows[id], nil
}

func (r *MemoryRepo) ListByParticipation(ctx context.Context, participationID string) ([]PhoneCall, error) {
	return r.List(ctx, Filter{ParticipationIDs: []string{participationID}})
}

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]PhoneCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PhoneCall, 0)
	for _, pc := range r.rows {
		if f.matches(pc) {
			out = append(out, pc)
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

func (r *MemoryRepo) Update(ctx context.Context, pc PhoneCall) (PhoneCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.rows[pc.ID]
	if !ok {
		return PhoneCall{}, apperrors.ErrNotFound
	}
	if old.RemoteCallID != "" && old.RemoteCallID != pc.RemoteCallID {
		delete(r.byRemote, old.RemoteCallID)
	}
	pc.UpdatedAt = time.Now().UTC()
	r.rows[pc.ID] = pc
	if pc.RemoteCallID != "" {
		r.byRemote[pc.RemoteCallID] = pc.ID
	}
	return pc, nil
}

// UpdateFromRemote applies fn to the call identified by remoteCallID while
// holding that call's lock. Last-writer-wins on status fields is acceptable;
// the provider delivers events for one call roughly in order.
func (r *MemoryRepo) UpdateFromRemote(ctx context.Context, remoteCallID string, apply func(pc *PhoneCall)) (PhoneCall, error) {
	lock := r.remoteLock(remoteCallID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	id, ok := r.byRemote[remoteCallID]
	if !ok {
		r.mu.Unlock()
		return PhoneCall{}, apperrors.ErrNotFound
	}
	pc := r.rows[id]
	r.mu.Unlock()

	apply(&pc)
	return r.Update(ctx, pc)
}

func (r *MemoryRepo) CountByParticipation(ctx context.Context, participationID string) (int, error) {
	rows, err := r.ListByParticipation(ctx, participationID)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *MemoryRepo) remoteLock(remoteCallID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.remoteLocks[remoteCallID]
	if !ok {
		l = &sync.Mutex{}
		r.remoteLocks[remoteCallID] = l
	}
	return l
}

// MemoryEventRepo is the in-memory append-only event log.
type MemoryEventRepo struct {
	mu   sync.Mutex
	rows []RemotePhoneCallEvent
}

func NewMemoryEventRepo() *MemoryEventRepo { return &MemoryEventRepo{} }

func (r *MemoryEventRepo) Create(ctx context.Context, ev RemotePhoneCallEvent) (RemotePhoneCallEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	r.rows = append(r.rows, ev)
	return ev, nil
}

func (r *MemoryEventRepo) ListByPhoneCall(ctx context.Context, phoneCallID string) ([]RemotePhoneCallEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RemotePhoneCallEvent, 0)
	for _, ev := range r.rows {
		if ev.PhoneCallID == phoneCallID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Len reports the total number of recorded events. Test helper.
func (r *MemoryEventRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

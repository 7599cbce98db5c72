package batchops

import (
	"context"
	"time"

	"callout-engine/internal/apperrors"

	"github.com/google/uuid"
)

// Service owns batch-operation lifecycle: create in preview, queue/requeue
// synchronously, preview read-only. Execution belongs to the Worker.
type Service struct {
	repo Repo
	deps Deps

	clock func() time.Time
}

// Repo is the subset of Repository the service needs; split out so tests can
// stub it narrowly if they want to.
type Repo = Repository

func NewService(repo Repository, deps Deps) *Service {
	return &Service{repo: repo, deps: deps, clock: time.Now}
}

type CreateRequest struct {
	AccountID  string
	CalloutID  string
	Type       string
	Parameters map[string]any
	Metadata   map[string]any
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (BatchOperation, error) {
	ve := &apperrors.ValidationError{}
	if req.AccountID == "" {
		ve.Add("account_id", "is required")
	}
	if !KnownType(req.Type) {
		ve.Add("type", "unknown batch operation type")
	}
	if !ve.Empty() {
		return BatchOperation{}, ve
	}

	op := BatchOperation{
		ID:         uuid.NewString(),
		AccountID:  req.AccountID,
		CalloutID:  req.CalloutID,
		Type:       req.Type,
		Status:     StatusPreview,
		Parameters: req.Parameters,
		Metadata:   req.Metadata,
	}
	if op.Parameters == nil {
		op.Parameters = map[string]any{}
	}
	if op.Metadata == nil {
		op.Metadata = map[string]any{}
	}
	now := s.clock().UTC()
	op.CreatedAt = now
	op.UpdatedAt = now
	return s.repo.Create(ctx, op)
}

func (s *Service) Get(ctx context.Context, id string) (BatchOperation, error) {
	return s.repo.Find(ctx, id)
}

func (s *Service) ListByAccount(ctx context.Context, accountID string) ([]BatchOperation, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

func (s *Service) ListByCallout(ctx context.Context, calloutID string) ([]BatchOperation, error) {
	return s.repo.ListByCallout(ctx, calloutID)
}

// UpdateParameters replaces the parameters/metadata bags. Only a previewable
// (not yet queued) operation may change its parameters.
func (s *Service) UpdateParameters(ctx context.Context, id string, parameters, metadata map[string]any) (BatchOperation, error) {
	op, err := s.repo.Find(ctx, id)
	if err != nil {
		return BatchOperation{}, err
	}
	if parameters != nil && op.Status != StatusPreview {
		return BatchOperation{}, apperrors.Conflictf("parameters are frozen once the operation is %s", op.Status)
	}
	if parameters != nil {
		op.Parameters = parameters
	}
	if metadata != nil {
		op.Metadata = metadata
	}
	return s.repo.Update(ctx, op)
}

// ApplyEvent performs queue or requeue. The state change and the execution
// signal are persisted in one atomic step; the relay then publishes the
// signal to the durable queue.
func (s *Service) ApplyEvent(ctx context.Context, id string, ev Event) (BatchOperation, error) {
	op, err := s.repo.Find(ctx, id)
	if err != nil {
		return BatchOperation{}, err
	}
	if err := op.AttemptEvent(ev); err != nil {
		return BatchOperation{}, err
	}
	return s.repo.TransitionAndEnqueue(ctx, op)
}

// Preview computes the would-be result set without mutating state.
func (s *Service) Preview(ctx context.Context, id string) (Selection, error) {
	op, err := s.repo.Find(ctx, id)
	if err != nil {
		return Selection{}, err
	}
	v, err := newVariant(op.Type, s.deps)
	if err != nil {
		return Selection{}, err
	}
	return v.Preview(ctx, op)
}

// Delete removes a batch operation. A population job whose participations
// still exist cannot be deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	op, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if op.Type == TypeCalloutPopulation {
		has, err := s.deps.Participations.PopulationHasDependents(ctx, op.ID)
		if err != nil {
			return err
		}
		if has {
			return apperrors.Conflictf("batch operation has dependent participations")
		}
	}
	return s.repo.Delete(ctx, id)
}

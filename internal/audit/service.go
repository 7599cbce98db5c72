package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods exist; the trail is append-only.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.AccountID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCalloutEvent records a campaign state-machine event requested over the
// API, applied or not.
func (s *Service) LogCalloutEvent(ctx context.Context, accountID, calloutID, ip, event string, applied bool) error {
	msg := "callout event " + event + " refused"
	if applied {
		msg = "callout event " + event + " applied"
	}
	return s.Append(ctx, Event{
		AccountID: accountID,
		Type:      EventTypeCalloutEvent,
		IPAddress: ip,
		CalloutID: calloutID,
		Message:   msg,
	})
}

// LogBatchOperationEvent records a queue or requeue accepted on a batch
// operation.
func (s *Service) LogBatchOperationEvent(ctx context.Context, accountID, calloutID, batchOperationID, ip, event string) error {
	return s.Append(ctx, Event{
		AccountID:        accountID,
		Type:             EventTypeBatchOperationEvent,
		IPAddress:        ip,
		CalloutID:        calloutID,
		BatchOperationID: batchOperationID,
		Message:          "batch operation " + event + " accepted",
	})
}

package participation

import (
	"context"

	"callout-engine/internal/apperrors"
	"callout-engine/internal/contacts"
)

// AttemptCounter reports how many phone calls a participation owns.
// Implemented by the calls repository.
type AttemptCounter interface {
	CountByParticipation(ctx context.Context, participationID string) (int, error)
}

type Service struct {
	repo     Repository
	attempts AttemptCounter
}

func NewService(repo Repository, attempts AttemptCounter) *Service {
	return &Service{repo: repo, attempts: attempts}
}

// Enroll creates a participation for a contact. Msisdn falls back to the
// contact's profile number; callFlowLogic falls back to the callout's flow
// (resolved by the caller). Duplicate enrollment returns ErrDuplicate.
func (s *Service) Enroll(ctx context.Context, p CalloutParticipation, contact contacts.Contact) (CalloutParticipation, error) {
	if p.Msisdn == "" {
		p.Msisdn = contact.Msisdn
	}
	p.Msisdn = contacts.NormalizeMsisdn(p.Msisdn)
	p.ContactID = contact.ID
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id string) (CalloutParticipation, error) {
	return s.repo.Find(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]CalloutParticipation, error) {
	return s.repo.List(ctx, f)
}

// Delete removes a participation. Restricted while phone calls exist.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Find(ctx, id); err != nil {
		return err
	}
	n, err := s.attempts.CountByParticipation(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperrors.Conflictf("participation has phone calls")
	}
	return s.repo.Delete(ctx, id)
}

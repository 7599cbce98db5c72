package callout

import (
	"context"
	"time"

	"callout-engine/internal/apperrors"

	"github.com/google/uuid"
)

const (
	maxVoiceByteSize = 10 << 20 // 10 MB
)

var audioContentTypes = map[string]struct{}{
	"audio/mpeg": {},
	"audio/mp3":  {},
	"audio/wav":  {},
}

// Repository abstracts callout storage.
type Repository interface {
	Create(ctx context.Context, c Callout) (Callout, error)
	Update(ctx context.Context, c Callout) (Callout, error)
	Find(ctx context.Context, id string) (Callout, error)
	ListByAccount(ctx context.Context, accountID string) ([]Callout, error)
	Delete(ctx context.Context, id string) error
}

// DependencyChecker reports whether dependent rows exist; delete is restricted
// while they do. Implemented by the participation and batch-operation repos.
type DependencyChecker interface {
	CalloutHasDependents(ctx context.Context, calloutID string) (bool, error)
}

type Service struct {
	repo Repository
	deps []DependencyChecker

	clock func() time.Time
}

func NewService(repo Repository, deps ...DependencyChecker) *Service {
	return &Service{repo: repo, deps: deps, clock: time.Now}
}

type CreateRequest struct {
	AccountID     string
	CallFlowLogic string
	Voice         Voice
	Metadata      map[string]string
	LocationIDs   []string
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Callout, error) {
	c := Callout{
		AccountID:     req.AccountID,
		Status:        StatusInitialized,
		CallFlowLogic: req.CallFlowLogic,
		Voice:         req.Voice,
		Metadata:      req.Metadata,
		LocationIDs:   compactIDs(req.LocationIDs),
	}
	if err := validate(c); err != nil {
		return Callout{}, err
	}
	c.ID = uuid.NewString()
	now := s.clock().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	return s.repo.Create(ctx, c)
}

type UpdateRequest struct {
	CallFlowLogic *string
	Voice         *Voice
	Metadata      map[string]string
	LocationIDs   []string
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (Callout, error) {
	c, err := s.repo.Find(ctx, id)
	if err != nil {
		return Callout{}, err
	}
	if req.CallFlowLogic != nil {
		c.CallFlowLogic = *req.CallFlowLogic
	}
	if req.Voice != nil {
		c.Voice = *req.Voice
	}
	if req.Metadata != nil {
		c.Metadata = req.Metadata
	}
	if req.LocationIDs != nil {
		c.LocationIDs = compactIDs(req.LocationIDs)
	}
	if err := validate(c); err != nil {
		return Callout{}, err
	}
	c.UpdatedAt = s.clock().UTC()
	return s.repo.Update(ctx, c)
}

func (s *Service) Get(ctx context.Context, id string) (Callout, error) {
	return s.repo.Find(ctx, id)
}

func (s *Service) List(ctx context.Context, accountID string) ([]Callout, error) {
	if accountID == "" {
		return nil, apperrors.NewValidation("account_id", "is required")
	}
	return s.repo.ListByAccount(ctx, accountID)
}

// ApplyEvent attempts a status transition. Returns the callout (updated or
// unchanged) and whether the transition was applied.
func (s *Service) ApplyEvent(ctx context.Context, id string, ev Event) (Callout, bool, error) {
	c, err := s.repo.Find(ctx, id)
	if err != nil {
		return Callout{}, false, err
	}
	if !c.AttemptEvent(ev) {
		return c, false, nil
	}
	c.UpdatedAt = s.clock().UTC()
	c, err = s.repo.Update(ctx, c)
	if err != nil {
		return Callout{}, false, err
	}
	return c, true, nil
}

// Delete removes a callout. Restricted while participations or batch
// operations reference it.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Find(ctx, id); err != nil {
		return err
	}
	for _, d := range s.deps {
		has, err := d.CalloutHasDependents(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return apperrors.Conflictf("callout has dependent records")
		}
	}
	return s.repo.Delete(ctx, id)
}

func validate(c Callout) error {
	ve := &apperrors.ValidationError{}
	if c.AccountID == "" {
		ve.Add("account_id", "is required")
	}
	if len(c.LocationIDs) == 0 {
		ve.Add("location_ids", "at least one location id is required")
	}
	validateVoice(ve, c.Voice)
	if ve.Empty() {
		return nil
	}
	return ve
}

func validateVoice(ve *apperrors.ValidationError, v Voice) {
	if v.URL == "" {
		ve.Add("voice", "is required")
		return
	}
	if _, ok := audioContentTypes[v.ContentType]; !ok {
		ve.Add("voice", "content type must be audio/mpeg, audio/mp3 or audio/wav")
	}
	if v.ByteSize > maxVoiceByteSize {
		ve.Add("voice", "file is too big")
	}
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

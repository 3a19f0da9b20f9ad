package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
)

const (
	defaultCacheTTL      = 30 * time.Second
	cacheCleanupInterval = 5 * time.Minute
)

// Service resolves stored queues into display-ready form: participant ids
// expanded to user records, stored order preserved, sentinel and dangling
// ids dropped. Every read query of the system goes through here, so resolved
// user records sit behind a short-TTL cache.
type Service struct {
	queues repository.QueueRepository
	users  repository.UserRepository
	cache  *cache.Cache
}

func NewService(queues repository.QueueRepository, users repository.UserRepository, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Service{
		queues: queues,
		users:  users,
		cache:  cache.New(cacheTTL, cacheCleanupInterval),
	}
}

// GetByCode returns the resolved queue for a code.
func (s *Service) GetByCode(ctx context.Context, code string) (*model.ResolvedQueue, error) {
	q, err := s.queues.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("queue", err)
		}
		return nil, apperrors.Internal(err)
	}
	return s.Resolve(ctx, q)
}

// ListByOwner returns a doctor's own queues, resolved.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.ResolvedQueue, error) {
	queues, err := s.queues.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.resolveAll(ctx, queues)
}

// ListByClinic returns every queue of a clinic's staff, resolved.
func (s *Service) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.ResolvedQueue, error) {
	queues, err := s.queues.ListByClinic(ctx, clinicID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.resolveAll(ctx, queues)
}

// ListByParticipant returns every queue where the caller waits or which the
// caller owns, resolved.
func (s *Service) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*model.ResolvedQueue, error) {
	queues, err := s.queues.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.resolveAll(ctx, queues)
}

// ListCodes returns the codes of all active queues.
func (s *Service) ListCodes(ctx context.Context) ([]string, error) {
	codes, err := s.queues.ListCodes(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return codes, nil
}

// Resolve expands a stored queue into its display-ready form.
func (s *Service) Resolve(ctx context.Context, q *model.Queue) (*model.ResolvedQueue, error) {
	participants, err := s.ResolveParticipants(ctx, q.Participants)
	if err != nil {
		return nil, err
	}
	return &model.ResolvedQueue{
		ID:           q.ID,
		Code:         q.Code,
		OwnerID:      q.OwnerID,
		ClinicID:     q.ClinicID,
		Status:       q.Status,
		Participants: participants,
		CreatedAt:    q.CreatedAt,
		UpdatedAt:    q.UpdatedAt,
	}, nil
}

// ResolveParticipants maps stored slot ids to user records. The sentinel is
// filtered first; ids with no backing record are dropped rather than erroring
// so one deleted account never breaks a whole queue view.
func (s *Service) ResolveParticipants(ctx context.Context, ids []string) ([]*model.User, error) {
	ordered := model.FilterSentinel(ids)

	byID := make(map[string]*model.User, len(ordered))
	var missing []uuid.UUID
	for _, id := range ordered {
		if _, seen := byID[id]; seen {
			continue
		}
		if cached, ok := s.cache.Get(id); ok {
			byID[id] = cached.(*model.User)
			continue
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		byID[id] = nil
		missing = append(missing, parsed)
	}

	if len(missing) > 0 {
		users, err := s.users.ListByIDs(ctx, missing)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		for _, u := range users {
			byID[u.ID.String()] = u
			s.cache.SetDefault(u.ID.String(), u)
		}
	}

	resolved := make([]*model.User, 0, len(ordered))
	for _, id := range ordered {
		if u := byID[id]; u != nil {
			resolved = append(resolved, u)
		}
	}
	return resolved, nil
}

func (s *Service) resolveAll(ctx context.Context, queues []*model.Queue) ([]*model.ResolvedQueue, error) {
	out := make([]*model.ResolvedQueue, 0, len(queues))
	for _, q := range queues {
		resolved, err := s.Resolve(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

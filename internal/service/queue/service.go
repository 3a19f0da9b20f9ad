package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

// maxMutationRetries bounds the compare-and-swap loop on participant writes.
// Contention on one queue is a handful of staff and patients, so a retry
// almost always succeeds on the first repeat read.
const maxMutationRetries = 5

// Service is the queue state machine. It borrows a record from the store,
// computes the new participant list or status, and writes back with the
// revision it read. Status transitions are deliberately permissive: staff may
// set any of the four statuses from any other to correct mistakes.
type Service struct {
	repo    repository.QueueRepository
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewService(repo repository.QueueRepository, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		metrics: m,
		logger:  logger.With().Str("component", "queue-engine").Logger(),
	}
}

// Create opens a new queue for a doctor. The store generates the code and
// initializes status to waiting with an empty line.
func (s *Service) Create(ctx context.Context, ownerID, clinicID uuid.UUID) (*model.Queue, error) {
	q := &model.Queue{
		OwnerID:  ownerID,
		ClinicID: clinicID,
	}
	if err := s.repo.Create(ctx, q); err != nil {
		if errors.Is(err, repository.ErrCodeExhausted) {
			return nil, apperrors.Conflict("could not allocate a queue code", err)
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create queue: %w", err))
	}
	s.metrics.QueueOperations.WithLabelValues("create").Inc()
	return q, nil
}

// Get returns the raw stored queue record.
func (s *Service) Get(ctx context.Context, code string) (*model.Queue, error) {
	q, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return q, nil
}

// Enqueue appends a participant to the tail of the line. Status is
// unaffected. Duplicates are not rejected here; callers avoid them.
func (s *Service) Enqueue(ctx context.Context, code string, participantID uuid.UUID) (*model.Queue, error) {
	q, err := s.mutateParticipants(ctx, code, func(ids []string) []string {
		return append(ids, participantID.String())
	})
	if err != nil {
		return nil, err
	}
	s.metrics.QueueOperations.WithLabelValues("enqueue").Inc()
	return q, nil
}

// RemoveParticipant drops every entry matching participantID, preserving the
// order of the remainder. Removing an absent participant is a no-op.
func (s *Service) RemoveParticipant(ctx context.Context, code string, participantID uuid.UUID) (*model.Queue, error) {
	id := participantID.String()
	q, err := s.mutateParticipants(ctx, code, func(ids []string) []string {
		out := make([]string, 0, len(ids))
		for _, existing := range ids {
			if existing == id {
				continue
			}
			out = append(out, existing)
		}
		return out
	})
	if err != nil {
		return nil, err
	}
	s.metrics.QueueOperations.WithLabelValues("remove").Inc()
	return q, nil
}

// SetReady marks the queue ready for its next appointment.
func (s *Service) SetReady(ctx context.Context, code string) (*model.Queue, error) {
	return s.ChangeStatus(ctx, code, model.QueueStatusReady)
}

// StartAppointment marks the queue in progress.
func (s *Service) StartAppointment(ctx context.Context, code string) (*model.Queue, error) {
	return s.ChangeStatus(ctx, code, model.QueueStatusInProgress)
}

// EndAppointment finishes the current appointment: the head slot is
// overwritten with the sentinel so the just-served participant still occupies
// slot 0 until the line advances, then status moves to done. On an empty
// line only the status changes.
func (s *Service) EndAppointment(ctx context.Context, code string) (*model.Queue, error) {
	_, err := s.mutateParticipants(ctx, code, func(ids []string) []string {
		if len(ids) == 0 {
			return ids
		}
		out := append([]string{}, ids...)
		out[0] = model.SentinelParticipantID
		return out
	})
	if err != nil {
		return nil, err
	}
	q, err := s.ChangeStatus(ctx, code, model.QueueStatusDone)
	if err != nil {
		return nil, err
	}
	s.metrics.QueueOperations.WithLabelValues("end").Inc()
	return q, nil
}

// AdvanceToNextAppointment removes the head slot entirely, sentinel or not,
// and returns the queue to waiting. This is the only operation that shrinks
// the line from the front for good.
func (s *Service) AdvanceToNextAppointment(ctx context.Context, code string) (*model.Queue, error) {
	_, err := s.mutateParticipants(ctx, code, func(ids []string) []string {
		if len(ids) == 0 {
			return ids
		}
		return append([]string{}, ids[1:]...)
	})
	if err != nil {
		return nil, err
	}
	q, err := s.ChangeStatus(ctx, code, model.QueueStatusWaiting)
	if err != nil {
		return nil, err
	}
	s.metrics.QueueOperations.WithLabelValues("advance").Inc()
	return q, nil
}

// ChangeStatus sets the status directly. Used by the lifecycle operations
// above and exposed for staff-driven manual override.
func (s *Service) ChangeStatus(ctx context.Context, code string, status model.QueueStatus) (*model.Queue, error) {
	if !status.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid queue status %q", status), nil)
	}
	q, err := s.repo.UpdateStatus(ctx, code, status)
	if err != nil {
		return nil, mapStoreError(err)
	}
	s.metrics.QueueOperations.WithLabelValues("status").Inc()
	return q, nil
}

// mutateParticipants runs a read-modify-write of the participant list,
// retrying when another writer bumped the revision between the read and the
// write.
func (s *Service) mutateParticipants(ctx context.Context, code string, fn func([]string) []string) (*model.Queue, error) {
	for attempt := 0; attempt < maxMutationRetries; attempt++ {
		q, err := s.repo.GetByCode(ctx, code)
		if err != nil {
			return nil, mapStoreError(err)
		}

		next := fn(append([]string{}, q.Participants...))
		err = s.repo.UpdateParticipants(ctx, code, next, q.Revision)
		if err == nil {
			q.Participants = next
			q.Revision++
			return q, nil
		}
		if errors.Is(err, repository.ErrRevisionMismatch) {
			s.metrics.RevisionRetries.Inc()
			s.logger.Debug().Str("code", code).Int("attempt", attempt+1).Msg("revision mismatch, retrying")
			continue
		}
		return nil, mapStoreError(err)
	}
	return nil, apperrors.Conflict("queue is being modified concurrently", repository.ErrRevisionMismatch)
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("queue", err)
	case errors.Is(err, repository.ErrRevisionMismatch):
		return apperrors.Conflict("queue is being modified concurrently", err)
	default:
		return apperrors.Internal(err)
	}
}

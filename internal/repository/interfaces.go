package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
)

// ErrRevisionMismatch is returned by revision-checked writes when the record
// changed since it was read. Callers retry the read-modify-write.
var ErrRevisionMismatch = errors.New("queue revision mismatch")

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrCodeExhausted is returned when code generation keeps colliding with
// existing queues. With a 900k code space this means the store is near
// capacity, not bad luck.
var ErrCodeExhausted = errors.New("queue code generation exhausted")

// ErrDuplicateEmail is returned when a participant's email is already taken.
var ErrDuplicateEmail = errors.New("email already registered")

// All repository interfaces in one file
type (
	// QueueRepository owns durable queue records. Create generates a unique
	// six-digit code; participant and status writes bump the revision.
	QueueRepository interface {
		Create(ctx context.Context, queue *model.Queue) error
		GetByCode(ctx context.Context, code string) (*model.Queue, error)
		UpdateStatus(ctx context.Context, code string, status model.QueueStatus) (*model.Queue, error)
		UpdateParticipants(ctx context.Context, code string, participants []string, revision int64) error
		ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Queue, error)
		ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Queue, error)
		ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*model.Queue, error)
		ListCodes(ctx context.Context) ([]string, error)
	}

	// UserRepository handles participant record lookups for the Directory.
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error)
	}
)

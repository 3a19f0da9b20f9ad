package postgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

const (
	codeMin = 100000
	codeMax = 999999

	// Collisions in a 900k code space are near-impossible below a few
	// hundred thousand live queues, but the unique index is authoritative.
	maxCodeAttempts = 5

	uniqueViolation = "23505"
)

type queueRepository struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

func NewQueueRepository(db *sqlx.DB, m *metrics.Metrics) repository.QueueRepository {
	return &queueRepository{db: db, metrics: m}
}

func (r *queueRepository) Create(ctx context.Context, queue *model.Queue) error {
	query := `
		INSERT INTO queues (
			id, code, participants, owner_id, clinic_id,
			status, revision, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	queue.ID = uuid.New()
	queue.Status = model.QueueStatusWaiting
	queue.Revision = 0
	queue.CreatedAt = time.Now()
	queue.UpdatedAt = time.Now()
	if queue.Participants == nil {
		queue.Participants = pq.StringArray{}
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return fmt.Errorf("failed to generate queue code: %w", err)
		}
		queue.Code = code

		_, err = r.db.ExecContext(ctx, query,
			queue.ID,
			queue.Code,
			queue.Participants,
			queue.OwnerID,
			queue.ClinicID,
			queue.Status,
			queue.Revision,
			queue.CreatedAt,
			queue.UpdatedAt,
		)
		if err == nil {
			return nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			r.metrics.CodeGenRetries.Inc()
			continue
		}
		return fmt.Errorf("failed to create queue: %w", err)
	}

	return fmt.Errorf("after %d attempts: %w", maxCodeAttempts, repository.ErrCodeExhausted)
}

func (r *queueRepository) GetByCode(ctx context.Context, code string) (*model.Queue, error) {
	query := `
		SELECT id, code, participants, owner_id, clinic_id,
			   status, revision, created_at, updated_at
		FROM queues
		WHERE code = $1
	`
	var queue model.Queue
	err := r.db.GetContext(ctx, &queue, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}
	return &queue, nil
}

func (r *queueRepository) UpdateStatus(ctx context.Context, code string, status model.QueueStatus) (*model.Queue, error) {
	query := `
		UPDATE queues
		SET status = $1, revision = revision + 1, updated_at = $2
		WHERE code = $3
		RETURNING id, code, participants, owner_id, clinic_id,
				  status, revision, created_at, updated_at
	`
	var queue model.Queue
	err := r.db.GetContext(ctx, &queue, query, status, time.Now(), code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update queue status: %w", err)
	}
	return &queue, nil
}

func (r *queueRepository) UpdateParticipants(ctx context.Context, code string, participants []string, revision int64) error {
	query := `
		UPDATE queues
		SET participants = $1, revision = revision + 1, updated_at = $2
		WHERE code = $3 AND revision = $4
	`
	result, err := r.db.ExecContext(ctx, query, pq.StringArray(participants), time.Now(), code, revision)
	if err != nil {
		return fmt.Errorf("failed to update queue participants: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a stale revision from a missing queue.
		if _, err := r.GetByCode(ctx, code); err != nil {
			return err
		}
		r.metrics.RevisionRetries.Inc()
		return repository.ErrRevisionMismatch
	}
	return nil
}

func (r *queueRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Queue, error) {
	query := `
		SELECT id, code, participants, owner_id, clinic_id,
			   status, revision, created_at, updated_at
		FROM queues
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`
	var queues []*model.Queue
	if err := r.db.SelectContext(ctx, &queues, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list queues by owner: %w", err)
	}
	return queues, nil
}

func (r *queueRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Queue, error) {
	query := `
		SELECT id, code, participants, owner_id, clinic_id,
			   status, revision, created_at, updated_at
		FROM queues
		WHERE clinic_id = $1
		ORDER BY created_at ASC
	`
	var queues []*model.Queue
	if err := r.db.SelectContext(ctx, &queues, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list queues by clinic: %w", err)
	}
	return queues, nil
}

func (r *queueRepository) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*model.Queue, error) {
	query := `
		SELECT id, code, participants, owner_id, clinic_id,
			   status, revision, created_at, updated_at
		FROM queues
		WHERE $1 = ANY(participants) OR owner_id = $2
		ORDER BY created_at ASC
	`
	var queues []*model.Queue
	if err := r.db.SelectContext(ctx, &queues, query, participantID.String(), participantID); err != nil {
		return nil, fmt.Errorf("failed to list queues by participant: %w", err)
	}
	return queues, nil
}

func (r *queueRepository) ListCodes(ctx context.Context) ([]string, error) {
	query := `SELECT code FROM queues ORDER BY created_at ASC`
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query); err != nil {
		return nil, fmt.Errorf("failed to list queue codes: %w", err)
	}
	return codes, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

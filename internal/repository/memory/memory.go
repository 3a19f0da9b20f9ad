// Package memory holds in-process implementations of the repository
// contracts, used when the service runs without postgres (local development)
// and by the service-layer tests. Semantics match the postgres store,
// including revision checks and code collision retries.
package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

const (
	codeMin         = 100000
	codeMax         = 999999
	maxCodeAttempts = 5
)

type QueueRepository struct {
	mu     sync.RWMutex
	queues map[string]*model.Queue
}

func NewQueueRepository() *QueueRepository {
	return &QueueRepository{queues: make(map[string]*model.Queue)}
}

func (r *QueueRepository) Create(ctx context.Context, queue *model.Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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
		if _, exists := r.queues[code]; exists {
			continue
		}
		queue.Code = code
		r.queues[code] = cloneQueue(queue)
		return nil
	}
	return fmt.Errorf("after %d attempts: %w", maxCodeAttempts, repository.ErrCodeExhausted)
}

func (r *QueueRepository) GetByCode(ctx context.Context, code string) (*model.Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.queues[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneQueue(q), nil
}

func (r *QueueRepository) UpdateStatus(ctx context.Context, code string, status model.QueueStatus) (*model.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	q.Status = status
	q.Revision++
	q.UpdatedAt = time.Now()
	return cloneQueue(q), nil
}

func (r *QueueRepository) UpdateParticipants(ctx context.Context, code string, participants []string, revision int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[code]
	if !ok {
		return repository.ErrNotFound
	}
	if q.Revision != revision {
		return repository.ErrRevisionMismatch
	}
	q.Participants = append(pq.StringArray{}, participants...)
	q.Revision++
	q.UpdatedAt = time.Now()
	return nil
}

func (r *QueueRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Queue, error) {
	return r.list(func(q *model.Queue) bool {
		return q.OwnerID == ownerID
	}), nil
}

func (r *QueueRepository) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*model.Queue, error) {
	return r.list(func(q *model.Queue) bool {
		return q.ClinicID == clinicID
	}), nil
}

func (r *QueueRepository) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*model.Queue, error) {
	id := participantID.String()
	return r.list(func(q *model.Queue) bool {
		if q.OwnerID == participantID {
			return true
		}
		for _, p := range q.Participants {
			if p == id {
				return true
			}
		}
		return false
	}), nil
}

func (r *QueueRepository) ListCodes(ctx context.Context) ([]string, error) {
	queues := r.list(func(*model.Queue) bool { return true })
	codes := make([]string, 0, len(queues))
	for _, q := range queues {
		codes = append(codes, q.Code)
	}
	return codes, nil
}

func (r *QueueRepository) list(match func(*model.Queue) bool) []*model.Queue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Queue
	for _, q := range r.queues {
		if match(q) {
			out = append(out, cloneQueue(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*model.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uuid.UUID]*model.User)}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	u := *user
	r.users[user.ID] = &u
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			copied := *u
			out = append(out, &copied)
		}
	}
	return out, nil
}

func cloneQueue(q *model.Queue) *model.Queue {
	out := *q
	out.Participants = append(pq.StringArray{}, q.Participants...)
	return &out
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

package queue

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	"github.com/jwalitptl/queue-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("queue_engine_test")

func newTestService(t *testing.T) (*Service, *memory.QueueRepository) {
	t.Helper()
	repo := memory.NewQueueRepository()
	svc := NewService(repo, testMetrics, zerolog.Nop())
	return svc, repo
}

func createQueue(t *testing.T, svc *Service) *model.Queue {
	t.Helper()
	q, err := svc.Create(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.Len(t, q.Code, 6)
	require.Equal(t, model.QueueStatusWaiting, q.Status)
	require.Empty(t, q.Participants)
	return q
}

func TestEnqueuePreservesFIFOOrder(t *testing.T) {
	svc, _ := newTestService(t)
	q := createQueue(t, svc)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		_, err := svc.Enqueue(context.Background(), q.Code, id)
		require.NoError(t, err)
	}

	got, err := svc.Get(context.Background(), q.Code)
	require.NoError(t, err)
	require.Len(t, got.Participants, 3)
	for i, id := range ids {
		assert.Equal(t, id.String(), got.Participants[i])
	}
}

func TestRemoveParticipantIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	q := createQueue(t, svc)

	p1 := uuid.New()
	p2 := uuid.New()
	_, err := svc.Enqueue(context.Background(), q.Code, p1)
	require.NoError(t, err)
	_, err = svc.Enqueue(context.Background(), q.Code, p2)
	require.NoError(t, err)

	got, err := svc.RemoveParticipant(context.Background(), q.Code, p1)
	require.NoError(t, err)
	assert.Equal(t, []string{p2.String()}, []string(got.Participants))

	// Removing an absent participant is a no-op, not an error.
	got, err = svc.RemoveParticipant(context.Background(), q.Code, p1)
	require.NoError(t, err)
	assert.Equal(t, []string{p2.String()}, []string(got.Participants))
}

func TestEndAppointmentTombstonesHead(t *testing.T) {
	svc, _ := newTestService(t)
	q := createQueue(t, svc)

	p1 := uuid.New()
	p2 := uuid.New()
	_, err := svc.Enqueue(context.Background(), q.Code, p1)
	require.NoError(t, err)
	_, err = svc.Enqueue(context.Background(), q.Code, p2)
	require.NoError(t, err)

	got, err := svc.EndAppointment(context.Background(), q.Code)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusDone, got.Status)
	assert.Equal(t, []string{model.SentinelParticipantID, p2.String()}, []string(got.Participants))
}

func TestAdvanceRemovesHeadAndResetsStatus(t *testing.T) {
	svc, _ := newTestService(t)
	q := createQueue(t, svc)

	p1 := uuid.New()
	p2 := uuid.New()
	_, err := svc.Enqueue(context.Background(), q.Code, p1)
	require.NoError(t, err)
	_, err = svc.Enqueue(context.Background(), q.Code, p2)
	require.NoError(t, err)

	_, err = svc.EndAppointment(context.Background(), q.Code)
	require.NoError(t, err)

	got, err := svc.AdvanceToNextAppointment(context.Background(), q.Code)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusWaiting, got.Status)
	assert.Equal(t, []string{p2.String()}, []string(got.Participants))
}

func TestStatusLifecycleCyclesBackToWaiting(t *testing.T) {
	svc, _ := newTestService(t)
	q := createQueue(t, svc)
	ctx := context.Background()

	got, err := svc.SetReady(ctx, q.Code)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusReady, got.Status)

	got, err = svc.StartAppointment(ctx, q.Code)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusInProgress, got.Status)

	got, err = svc.EndAppointment(ctx, q.Code)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusDone, got.Status)

	got, err = svc.AdvanceToNextAppointment(ctx, q.Code)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusWaiting, got.Status)
}

func TestEndAppointmentOnEmptyQueueOnlyChangesStatus(t *testing.T) {
	svc, _ := newTestService(t)
	q := createQueue(t, svc)

	got, err := svc.EndAppointment(context.Background(), q.Code)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusDone, got.Status)
	assert.Empty(t, got.Participants)
}

func TestChangeStatusRejectsUnknownValue(t *testing.T) {
	svc, _ := newTestService(t)
	q := createQueue(t, svc)

	_, err := svc.ChangeStatus(context.Background(), q.Code, model.QueueStatus("cancelled"))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestOperationsOnMissingQueueReturnNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Enqueue(context.Background(), "000000", uuid.New())
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.SetReady(context.Background(), "000000")
	assert.True(t, apperrors.IsNotFound(err))
}

// contentionRepo fails the first n participant writes with a revision
// mismatch, simulating a concurrent writer.
type contentionRepo struct {
	repository.QueueRepository
	failures int
}

func (r *contentionRepo) UpdateParticipants(ctx context.Context, code string, participants []string, revision int64) error {
	if r.failures > 0 {
		r.failures--
		return repository.ErrRevisionMismatch
	}
	return r.QueueRepository.UpdateParticipants(ctx, code, participants, revision)
}

func TestEnqueueRetriesOnRevisionMismatch(t *testing.T) {
	base := memory.NewQueueRepository()
	repo := &contentionRepo{QueueRepository: base, failures: 2}
	svc := NewService(repo, testMetrics, zerolog.Nop())

	q := createQueue(t, svc)
	p := uuid.New()

	got, err := svc.Enqueue(context.Background(), q.Code, p)
	require.NoError(t, err)
	assert.Equal(t, []string{p.String()}, []string(got.Participants))
}

func TestEnqueueSurfacesConflictWhenRetriesExhausted(t *testing.T) {
	base := memory.NewQueueRepository()
	repo := &contentionRepo{QueueRepository: base, failures: maxMutationRetries}
	svc := NewService(repo, testMetrics, zerolog.Nop())

	q := createQueue(t, svc)

	_, err := svc.Enqueue(context.Background(), q.Code, uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestConcurrentEnqueuesBothLand(t *testing.T) {
	svc, _ := newTestService(t)
	q := createQueue(t, svc)

	p1 := uuid.New()
	p2 := uuid.New()

	done := make(chan error, 2)
	go func() {
		_, err := svc.Enqueue(context.Background(), q.Code, p1)
		done <- err
	}()
	go func() {
		_, err := svc.Enqueue(context.Background(), q.Code, p2)
		done <- err
	}()
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	got, err := svc.Get(context.Background(), q.Code)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p1.String(), p2.String()}, []string(got.Participants))
}

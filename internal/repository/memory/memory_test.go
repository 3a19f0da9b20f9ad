package memory

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
)

var codePattern = regexp.MustCompile(`^[1-9]\d{5}$`)

func TestCreateAssignsSixDigitCode(t *testing.T) {
	r := NewQueueRepository()

	for i := 0; i < 20; i++ {
		q := &model.Queue{OwnerID: uuid.New(), ClinicID: uuid.New()}
		require.NoError(t, r.Create(context.Background(), q))
		assert.Regexp(t, codePattern, q.Code)
		assert.Equal(t, model.QueueStatusWaiting, q.Status)
		assert.Equal(t, int64(0), q.Revision)
	}
}

func TestUpdateParticipantsChecksRevision(t *testing.T) {
	r := NewQueueRepository()
	q := &model.Queue{OwnerID: uuid.New(), ClinicID: uuid.New()}
	require.NoError(t, r.Create(context.Background(), q))

	id := uuid.New().String()
	require.NoError(t, r.UpdateParticipants(context.Background(), q.Code, []string{id}, 0))

	// The write bumped the revision, so a second writer holding the old
	// revision must be rejected.
	err := r.UpdateParticipants(context.Background(), q.Code, []string{}, 0)
	assert.ErrorIs(t, err, repository.ErrRevisionMismatch)

	got, err := r.GetByCode(context.Background(), q.Code)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, []string(got.Participants))
	assert.Equal(t, int64(1), got.Revision)
}

func TestUpdateStatusBumpsRevision(t *testing.T) {
	r := NewQueueRepository()
	q := &model.Queue{OwnerID: uuid.New(), ClinicID: uuid.New()}
	require.NoError(t, r.Create(context.Background(), q))

	got, err := r.UpdateStatus(context.Background(), q.Code, model.QueueStatusReady)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusReady, got.Status)
	assert.Equal(t, int64(1), got.Revision)
}

func TestGetByCodeReturnsCopy(t *testing.T) {
	r := NewQueueRepository()
	q := &model.Queue{OwnerID: uuid.New(), ClinicID: uuid.New()}
	require.NoError(t, r.Create(context.Background(), q))

	got, err := r.GetByCode(context.Background(), q.Code)
	require.NoError(t, err)
	got.Participants = append(got.Participants, uuid.New().String())

	again, err := r.GetByCode(context.Background(), q.Code)
	require.NoError(t, err)
	assert.Empty(t, again.Participants)
}

func TestUnknownCodeOperations(t *testing.T) {
	r := NewQueueRepository()

	_, err := r.GetByCode(context.Background(), "123456")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = r.UpdateStatus(context.Background(), "123456", model.QueueStatusReady)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = r.UpdateParticipants(context.Background(), "123456", nil, 0)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListByParticipantIncludesOwnedQueues(t *testing.T) {
	r := NewQueueRepository()
	ownerID := uuid.New()

	owned := &model.Queue{OwnerID: ownerID, ClinicID: uuid.New()}
	require.NoError(t, r.Create(context.Background(), owned))

	joined := &model.Queue{OwnerID: uuid.New(), ClinicID: uuid.New()}
	require.NoError(t, r.Create(context.Background(), joined))
	require.NoError(t, r.UpdateParticipants(context.Background(), joined.Code, []string{ownerID.String()}, 0))

	unrelated := &model.Queue{OwnerID: uuid.New(), ClinicID: uuid.New()}
	require.NoError(t, r.Create(context.Background(), unrelated))

	queues, err := r.ListByParticipant(context.Background(), ownerID)
	require.NoError(t, err)

	codes := make([]string, 0, len(queues))
	for _, q := range queues {
		codes = append(codes, q.Code)
	}
	assert.ElementsMatch(t, []string{owned.Code, joined.Code}, codes)
}

func TestUserRepositoryRoundTrip(t *testing.T) {
	r := NewUserRepository()

	ana := &model.User{Name: "ana", Email: "ana@example.com", UserType: model.UserTypePatient}
	bruno := &model.User{Name: "bruno", Email: "bruno@example.com", UserType: model.UserTypePatient}
	require.NoError(t, r.Create(context.Background(), ana))
	require.NoError(t, r.Create(context.Background(), bruno))

	got, err := r.Get(context.Background(), ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Name)

	users, err := r.ListByIDs(context.Background(), []uuid.UUID{bruno.ID, uuid.New(), ana.ID})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bruno", users[0].Name)
	assert.Equal(t, "ana", users[1].Name)

	_, err = r.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

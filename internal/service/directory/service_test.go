package directory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
)

func newTestDirectory(t *testing.T) (*Service, *memory.QueueRepository, *memory.UserRepository) {
	t.Helper()
	queues := memory.NewQueueRepository()
	users := memory.NewUserRepository()
	return NewService(queues, users, time.Minute), queues, users
}

func addUser(t *testing.T, users *memory.UserRepository, name string) *model.User {
	t.Helper()
	u := &model.User{
		Name:     name,
		Email:    name + "@example.com",
		UserType: model.UserTypePatient,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestResolveParticipantsPreservesStoredOrder(t *testing.T) {
	svc, _, users := newTestDirectory(t)

	a := addUser(t, users, "ana")
	b := addUser(t, users, "bruno")
	c := addUser(t, users, "carla")

	resolved, err := svc.ResolveParticipants(context.Background(),
		[]string{c.ID.String(), a.ID.String(), b.ID.String()})
	require.NoError(t, err)
	require.Len(t, resolved, 3)
	assert.Equal(t, "carla", resolved[0].Name)
	assert.Equal(t, "ana", resolved[1].Name)
	assert.Equal(t, "bruno", resolved[2].Name)
}

func TestResolveParticipantsFiltersSentinel(t *testing.T) {
	svc, _, users := newTestDirectory(t)

	a := addUser(t, users, "ana")
	resolved, err := svc.ResolveParticipants(context.Background(),
		[]string{model.SentinelParticipantID, a.ID.String()})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, a.ID, resolved[0].ID)
}

func TestResolveParticipantsDropsDanglingIDs(t *testing.T) {
	svc, _, users := newTestDirectory(t)

	a := addUser(t, users, "ana")
	resolved, err := svc.ResolveParticipants(context.Background(),
		[]string{uuid.New().String(), a.ID.String()})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, a.ID, resolved[0].ID)
}

func TestResolveParticipantsKeepsDuplicateSlots(t *testing.T) {
	svc, _, users := newTestDirectory(t)

	a := addUser(t, users, "ana")
	resolved, err := svc.ResolveParticipants(context.Background(),
		[]string{a.ID.String(), a.ID.String()})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
}

func TestGetByCodeReturnsNotFoundForUnknownCode(t *testing.T) {
	svc, _, _ := newTestDirectory(t)

	_, err := svc.GetByCode(context.Background(), "123456")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGetByCodeNeverExposesSentinel(t *testing.T) {
	svc, queues, users := newTestDirectory(t)
	ctx := context.Background()

	a := addUser(t, users, "ana")
	b := addUser(t, users, "bruno")

	q := &model.Queue{OwnerID: uuid.New(), ClinicID: uuid.New()}
	require.NoError(t, queues.Create(ctx, q))
	require.NoError(t, queues.UpdateParticipants(ctx, q.Code,
		[]string{model.SentinelParticipantID, a.ID.String(), b.ID.String()}, 0))

	resolved, err := svc.GetByCode(ctx, q.Code)
	require.NoError(t, err)
	require.Len(t, resolved.Participants, 2)
	assert.Equal(t, a.ID, resolved.Participants[0].ID)
	assert.Equal(t, b.ID, resolved.Participants[1].ID)
}

func TestListByParticipantIncludesOwnedQueues(t *testing.T) {
	svc, queues, users := newTestDirectory(t)
	ctx := context.Background()

	doctor := addUser(t, users, "dr-house")
	patient := addUser(t, users, "ana")

	owned := &model.Queue{OwnerID: doctor.ID, ClinicID: uuid.New()}
	require.NoError(t, queues.Create(ctx, owned))

	joined := &model.Queue{OwnerID: uuid.New(), ClinicID: uuid.New()}
	require.NoError(t, queues.Create(ctx, joined))
	require.NoError(t, queues.UpdateParticipants(ctx, joined.Code, []string{doctor.ID.String()}, 0))

	unrelated := &model.Queue{OwnerID: uuid.New(), ClinicID: uuid.New()}
	require.NoError(t, queues.Create(ctx, unrelated))
	require.NoError(t, queues.UpdateParticipants(ctx, unrelated.Code, []string{patient.ID.String()}, 0))

	got, err := svc.ListByParticipant(ctx, doctor.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	codes := []string{got[0].Code, got[1].Code}
	assert.Contains(t, codes, owned.Code)
	assert.Contains(t, codes, joined.Code)
}

func TestListCodes(t *testing.T) {
	svc, queues, _ := newTestDirectory(t)
	ctx := context.Background()

	q1 := &model.Queue{OwnerID: uuid.New(), ClinicID: uuid.New()}
	q2 := &model.Queue{OwnerID: uuid.New(), ClinicID: uuid.New()}
	require.NoError(t, queues.Create(ctx, q1))
	require.NoError(t, queues.Create(ctx, q2))

	codes, err := svc.ListCodes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{q1.Code, q2.Code}, codes)
}

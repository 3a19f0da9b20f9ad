package queue

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/service/directory"
	"github.com/jwalitptl/queue-api/internal/service/queue"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/httputil"
	"github.com/jwalitptl/queue-api/pkg/validator"
)

// Emitter is the gateway surface REST mutations broadcast through, so
// websocket viewers see changes made from staff dashboards too.
type Emitter interface {
	QueueStatusChanged(ctx context.Context, code string, status model.QueueStatus)
	QueueUsersChanged(ctx context.Context, code string, users []*model.User)
	ParticipantEntered(ctx context.Context, code string, users []*model.User)
	ParticipantLeft(ctx context.Context, code string, users []*model.User)
}

type Handler struct {
	engine    *queue.Service
	directory *directory.Service
	emitter   Emitter
	validate  validator.Validator
}

func NewHandler(engine *queue.Service, dir *directory.Service, emitter Emitter) *Handler {
	return &Handler{
		engine:    engine,
		directory: dir,
		emitter:   emitter,
		validate:  validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	queues := r.Group("/queues")
	{
		queues.POST("", h.CreateQueue)
		queues.GET("/codes", h.ListCodes)
		queues.GET("/:code", h.GetQueue)
		queues.POST("/:code/participants", h.JoinQueue)
		queues.DELETE("/:code/participants/:id", h.LeaveQueue)
		queues.POST("/:code/ready", h.SetReady)
		queues.POST("/:code/start", h.StartAppointment)
		queues.POST("/:code/finish", h.EndAppointment)
		queues.POST("/:code/advance", h.AdvanceQueue)
		queues.PATCH("/:code/status", h.ChangeStatus)
	}
	r.GET("/participants/:id/queues", h.ListByParticipant)
	r.GET("/clinics/:id/queues", h.ListByClinic)
	r.GET("/owners/:id/queues", h.ListByOwner)
}

func (h *Handler) CreateQueue(c *gin.Context) {
	var req model.CreateQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	q, err := h.engine.Create(c.Request.Context(), req.OwnerID, req.ClinicID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	resolved, err := h.directory.Resolve(c.Request.Context(), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, resolved)
}

func (h *Handler) GetQueue(c *gin.Context) {
	resolved, err := h.directory.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resolved)
}

func (h *Handler) ListCodes(c *gin.Context) {
	codes, err := h.directory.ListCodes(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, codes)
}

func (h *Handler) JoinQueue(c *gin.Context) {
	var req model.JoinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	code := c.Param("code")
	ctx := c.Request.Context()

	q, err := h.engine.Enqueue(ctx, code, req.ParticipantID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	users, err := h.directory.ResolveParticipants(ctx, q.Participants)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.emitter.QueueUsersChanged(ctx, code, users)
	h.emitter.ParticipantEntered(ctx, code, users)

	resolved, err := h.directory.Resolve(ctx, q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resolved)
}

func (h *Handler) LeaveQueue(c *gin.Context) {
	participantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid participant ID", err))
		return
	}

	code := c.Param("code")
	ctx := c.Request.Context()

	q, err := h.engine.RemoveParticipant(ctx, code, participantID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	users, err := h.directory.ResolveParticipants(ctx, q.Participants)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.emitter.QueueUsersChanged(ctx, code, users)
	h.emitter.ParticipantLeft(ctx, code, users)

	c.Status(http.StatusNoContent)
}

func (h *Handler) SetReady(c *gin.Context) {
	h.statusOperation(c, h.engine.SetReady)
}

func (h *Handler) StartAppointment(c *gin.Context) {
	h.statusOperation(c, h.engine.StartAppointment)
}

// EndAppointment tombstones the head slot and moves the queue to done.
func (h *Handler) EndAppointment(c *gin.Context) {
	code := c.Param("code")
	ctx := c.Request.Context()

	q, err := h.engine.EndAppointment(ctx, code)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.QueueStatusChanged(ctx, code, q.Status)

	users, err := h.directory.ResolveParticipants(ctx, q.Participants)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.emitter.QueueUsersChanged(ctx, code, users)
	h.emitter.ParticipantLeft(ctx, code, users)

	h.respondResolved(c, q)
}

// AdvanceQueue pops the head slot and returns the queue to waiting.
func (h *Handler) AdvanceQueue(c *gin.Context) {
	code := c.Param("code")
	ctx := c.Request.Context()

	q, err := h.engine.AdvanceToNextAppointment(ctx, code)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.QueueStatusChanged(ctx, code, q.Status)

	users, err := h.directory.ResolveParticipants(ctx, q.Participants)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.emitter.QueueUsersChanged(ctx, code, users)

	h.respondResolved(c, q)
}

func (h *Handler) ChangeStatus(c *gin.Context) {
	var req model.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	code := c.Param("code")
	ctx := c.Request.Context()

	q, err := h.engine.ChangeStatus(ctx, code, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.QueueStatusChanged(ctx, code, q.Status)
	h.respondResolved(c, q)
}

func (h *Handler) ListByParticipant(c *gin.Context) {
	h.listOperation(c, h.directory.ListByParticipant)
}

func (h *Handler) ListByClinic(c *gin.Context) {
	h.listOperation(c, h.directory.ListByClinic)
}

func (h *Handler) ListByOwner(c *gin.Context) {
	h.listOperation(c, h.directory.ListByOwner)
}

func (h *Handler) statusOperation(c *gin.Context, op func(context.Context, string) (*model.Queue, error)) {
	code := c.Param("code")
	ctx := c.Request.Context()

	q, err := op(ctx, code)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.emitter.QueueStatusChanged(ctx, code, q.Status)
	h.respondResolved(c, q)
}

func (h *Handler) listOperation(c *gin.Context, op func(context.Context, uuid.UUID) ([]*model.ResolvedQueue, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid ID", err))
		return
	}

	queues, err := op(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, queues)
}

func (h *Handler) respondResolved(c *gin.Context, q *model.Queue) {
	resolved, err := h.directory.Resolve(c.Request.Context(), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resolved)
}

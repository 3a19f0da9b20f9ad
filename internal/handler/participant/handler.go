package participant

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository"
	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
	"github.com/jwalitptl/queue-api/pkg/httputil"
	"github.com/jwalitptl/queue-api/pkg/validator"
)

// Handler registers participant records so queue slots resolve to names.
// Authentication stays with the upstream identity provider; this is the
// directory's write side only.
type Handler struct {
	users    repository.UserRepository
	validate validator.Validator
}

func NewHandler(users repository.UserRepository) *Handler {
	return &Handler{
		users:    users,
		validate: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/participants", h.CreateParticipant)
	r.GET("/participants/:id", h.GetParticipant)
}

func (h *Handler) CreateParticipant(c *gin.Context) {
	var req model.CreateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		UserType: req.UserType,
		ClinicID: req.ClinicID,
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			httputil.RespondWithError(c, apperrors.Conflict("email already registered", err))
			return
		}
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}
	httputil.RespondWithCreated(c, user)
}

func (h *Handler) GetParticipant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid participant ID", err))
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httputil.RespondWithError(c, apperrors.NotFound("participant", err))
			return
		}
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}
	httputil.RespondWithSuccess(c, user)
}
